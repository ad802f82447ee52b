package storage

import (
	"context"
	"fmt"
	"strings"
)

// ValidateAssignmentFeasibility checks whether a requested batch of accounts
// can plausibly be allocated, against current database state. Missing or
// unavailable accounts and an empty clone pool are hard errors; a capacity
// shortfall is only a warning, so IsValid stays true when the batch can
// partially succeed.
func (s *BaseStore) ValidateAssignmentFeasibility(ctx context.Context, accountIDs []int64) (*FeasibilityResult, error) {
	result := &FeasibilityResult{
		IsValid:        true,
		TotalRequested: len(accountIDs),
	}

	if len(accountIDs) == 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, "no accounts specified")
		return result, nil
	}

	accounts, err := s.ListAccounts(ctx,
		Filter{Conds: []Cond{InInt64("id", accountIDs)}}, nil, 0, 0)
	if err != nil {
		return nil, err
	}

	found := make(map[int64]*Account, len(accounts))
	for _, account := range accounts {
		found[account.ID] = account
	}

	var missing []string
	var unavailable []string
	for _, id := range accountIDs {
		account, ok := found[id]
		if !ok {
			missing = append(missing, fmt.Sprintf("%d", id))
			continue
		}
		if account.Status != AccountStatusUnused || account.AssignedDeviceID != nil {
			unavailable = append(unavailable, account.InstagramUsername)
			continue
		}
		result.AvailableAccounts++
	}

	if len(missing) > 0 {
		result.IsValid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("accounts not found: %s", strings.Join(missing, ", ")))
	}
	if len(unavailable) > 0 {
		result.IsValid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("accounts not available for assignment: %s", strings.Join(unavailable, ", ")))
	}

	availableClones, err := s.CountClones(ctx,
		Filter{Conds: []Cond{Eq("cloneStatus", CloneStatusAvailable)}})
	if err != nil {
		return nil, err
	}
	result.AvailableClones = availableClones
	if availableClones == 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, "no available clones in inventory")
	}

	result.CanAssign = result.AvailableAccounts
	if availableClones < result.CanAssign {
		result.CanAssign = availableClones
	}

	if result.CanAssign < result.TotalRequested {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("only %d of %d requested accounts can be assigned", result.CanAssign, result.TotalRequested))
	}
	if availableClones < result.TotalRequested {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("available clones (%d) fewer than requested accounts (%d)", availableClones, result.TotalRequested))
	}

	// Informational only; never affects IsValid.
	stats, err := s.GetDeviceStats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.BrokenDevices > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d device(s) currently broken", stats.BrokenDevices))
	}
	if stats.MaintenanceDevices > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d device(s) currently in maintenance", stats.MaintenanceDevices))
	}

	return result, nil
}
