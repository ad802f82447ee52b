package storage

import (
	"time"
)

// Account statuses. The status column is an open TEXT set; these are the
// values the allocation engine cares about.
const (
	AccountStatusUnused      = "Unused"
	AccountStatusAssigned    = "Assigned"
	AccountStatusLoggedIn    = "LoggedIn"
	AccountStatusLoginError  = "LoginError"
	AccountStatusMaintenance = "Maintenance"
	AccountStatusBroken      = "Broken"
)

// Clone statuses.
const (
	CloneStatusAvailable   = "Available"
	CloneStatusAssigned    = "Assigned"
	CloneStatusLoggedIn    = "LoggedIn"
	CloneStatusLoginError  = "LoginError"
	CloneStatusMaintenance = "Maintenance"
	CloneStatusBroken      = "Broken"
)

// IMAP statuses.
const (
	IMAPStatusOn  = "On"
	IMAPStatusOff = "Off"
)

// Account is a tenant row in ig_accounts. An account is bound to at most one
// clone at any time; the Assigned* fields are the account side of that binding.
type Account struct {
	ID                  int64      `json:"id"`
	RecordID            string     `json:"record_id"`
	InstagramUsername   string     `json:"instagram_username"`
	InstagramPassword   string     `json:"instagram_password,omitempty"`
	EmailAddress        string     `json:"email_address"`
	EmailPassword       string     `json:"email_password,omitempty"`
	Status              string     `json:"status"`
	IMAPStatus          string     `json:"imap_status"`
	AssignedDeviceID    *string    `json:"assigned_device_id"`
	AssignedCloneNumber *int       `json:"assigned_clone_number"`
	AssignedPackageName *string    `json:"assigned_package_name"`
	AssignmentTimestamp *time.Time `json:"assignment_timestamp"`
	LoginTimestamp      *time.Time `json:"login_timestamp"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Clone is an execution slot in clone_inventory, keyed by (device_id, clone_number).
// CurrentAccount is a back-reference by username, not a foreign key.
type Clone struct {
	DeviceID       string     `json:"device_id"`
	CloneNumber    int        `json:"clone_number"`
	CloneStatus    string     `json:"clone_status"`
	CloneHealth    string     `json:"clone_health"`
	CurrentAccount *string    `json:"current_account"`
	PackageName    string     `json:"package_name"`
	DeviceName     string     `json:"device_name"`
	LastScanned    *time.Time `json:"last_scanned"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CloneKey identifies a clone row. Used as the value of a composite-key
// equality condition in filters.
type CloneKey struct {
	DeviceID    string `json:"device_id"`
	CloneNumber int    `json:"clone_number"`
}

// DeviceSummary is the per-device rollup computed from clone_inventory rows.
// It is derived, never persisted.
type DeviceSummary struct {
	DeviceID        string     `json:"device_id"`
	DeviceName      string     `json:"device_name"`
	TotalClones     int        `json:"total_clones"`
	AvailableClones int        `json:"available_clones"`
	AssignedClones  int        `json:"assigned_clones"`
	LoggedInClones  int        `json:"logged_in_clones"`
	BrokenClones    int        `json:"broken_clones"`
	DeviceStatus    string     `json:"device_status"`
	DeviceHealth    string     `json:"device_health"`
	LastScanned     *time.Time `json:"last_scanned"`
}

// DeviceCapacity extends DeviceSummary with computed utilization and an
// efficiency score in [0,100].
type DeviceCapacity struct {
	DeviceSummary
	UtilizationRate float64 `json:"utilization_rate"`
	Efficiency      float64 `json:"efficiency"`
}

// DeviceStats is the fleet-wide aggregation across all devices.
type DeviceStats struct {
	TotalDevices       int     `json:"total_devices"`
	TotalClones        int     `json:"total_clones"`
	AvailableClones    int     `json:"available_clones"`
	AssignedClones     int     `json:"assigned_clones"`
	LoggedInClones     int     `json:"logged_in_clones"`
	BrokenClones       int     `json:"broken_clones"`
	BrokenDevices      int     `json:"broken_devices"`
	MaintenanceDevices int     `json:"maintenance_devices"`
	AvgUtilization     float64 `json:"avg_utilization"`
}

// CapacityAnalysis bundles per-device capacity with fleet totals.
type CapacityAnalysis struct {
	Devices []DeviceCapacity `json:"devices"`
	Stats   DeviceStats      `json:"stats"`
}

// Assignment is one planned or committed account-to-clone pairing.
type Assignment struct {
	AccountID   int64  `json:"account_id"`
	Username    string `json:"username"`
	DeviceID    string `json:"device_id"`
	CloneNumber int    `json:"clone_number"`
	PackageName string `json:"package_name"`
}

// FailedAccount records a pairing that could not be committed, with the reason.
type FailedAccount struct {
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	Error     string `json:"error"`
}

// AutoAssignResult reports the outcome of a bulk assignment call. Callers can
// distinguish "nothing happened", "some of N succeeded", and "all N succeeded"
// from AssignedCount vs TotalRequested.
type AutoAssignResult struct {
	Success        bool            `json:"success"`
	AssignedCount  int             `json:"assigned_count"`
	TotalRequested int             `json:"total_requested"`
	Assignments    []Assignment    `json:"assignments"`
	FailedAccounts []FailedAccount `json:"failed_accounts"`
	Errors         []string        `json:"errors"`
}

// FeasibilityResult reports whether a batch of accounts can plausibly be
// allocated. Errors make IsValid false; warnings never do.
type FeasibilityResult struct {
	IsValid           bool     `json:"is_valid"`
	TotalRequested    int      `json:"total_requested"`
	AvailableAccounts int      `json:"available_accounts"`
	AvailableClones   int      `json:"available_clones"`
	CanAssign         int      `json:"can_assign"`
	Errors            []string `json:"errors"`
	Warnings          []string `json:"warnings"`
}

// ImportResult reports per-row outcomes of a bulk account import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Allocation strategy names accepted by PlanAssignments and AutoAssignAccounts.
const (
	StrategyRoundRobin    = "round-robin"
	StrategyFillFirst     = "fill-first"
	StrategyCapacityBased = "capacity-based"
)
