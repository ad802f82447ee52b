package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Acid-Arch/boutiqueclient-sub000/storage"
	"github.com/Acid-Arch/boutiqueclient-sub000/ws"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		serverLogger.Warn("Failed to encode response", "error", err)
	}
}

// statusForError maps storage errors onto HTTP statuses. Connection-class
// failures surface as 503 so callers know to retry; everything else is a 500.
func statusForError(err error) int {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "refused") || strings.Contains(msg, "reset") {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func parseIntQuery(r *http.Request, key string, def int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func broadcast(msgType string, data map[string]interface{}) {
	if eventHub == nil {
		return
	}
	eventHub.Broadcast(ws.Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// GET lists accounts with query-param filters; POST creates a single account.
func handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		listAccounts(w, r)
	case http.MethodPost:
		createAccount(w, r)
	default:
		http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
	}
}

func listAccounts(w http.ResponseWriter, r *http.Request) {
	var filter storage.Filter
	q := r.URL.Query()

	if status := q.Get("status"); status != "" {
		filter.Conds = append(filter.Conds, storage.Eq("status", status))
	}
	if deviceID := q.Get("device_id"); deviceID != "" {
		filter.Conds = append(filter.Conds, storage.Eq("assignedDeviceId", deviceID))
	}
	switch q.Get("assigned") {
	case "true":
		filter.Conds = append(filter.Conds, storage.NotNull("assignedDeviceId"))
	case "false":
		filter.Conds = append(filter.Conds, storage.IsNull("assignedDeviceId"))
	}
	if search := q.Get("search"); search != "" {
		filter.Conds = append(filter.Conds, storage.ContainsFold("instagramUsername", search))
	}

	limit := parseIntQuery(r, "limit", 0)
	offset := parseIntQuery(r, "offset", 0)

	accounts, err := serverStore.ListAccounts(r.Context(), filter, nil, limit, offset)
	if err != nil {
		serverLogger.Error("Failed to list accounts", "error", err)
		http.Error(w, "Failed to list accounts", statusForError(err))
		return
	}
	total, err := serverStore.CountAccounts(r.Context(), filter)
	if err != nil {
		serverLogger.Error("Failed to count accounts", "error", err)
		http.Error(w, "Failed to count accounts", statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"total":    total,
	})
}

func createAccount(w http.ResponseWriter, r *http.Request) {
	var account storage.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if account.InstagramUsername == "" {
		http.Error(w, "instagram_username is required", http.StatusBadRequest)
		return
	}

	if err := serverStore.CreateAccount(r.Context(), &account); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		serverLogger.Error("Failed to create account", "username", account.InstagramUsername, "error", err)
		http.Error(w, "Failed to create account", statusForError(err))
		return
	}

	serverLogger.Info("Account created", "id", account.ID, "username", account.InstagramUsername)
	writeJSON(w, http.StatusCreated, &account)
}

// Bulk account import. Duplicate usernames are skipped per row; the response
// is 207 when some rows were rejected and 200 when everything landed.
func handleAccountsImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Accounts []*storage.Account `json:"accounts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Accounts) == 0 {
		http.Error(w, "accounts list is empty", http.StatusBadRequest)
		return
	}

	result, err := serverStore.ImportAccounts(r.Context(), req.Accounts)
	if err != nil {
		serverLogger.Error("Account import failed", "error", err)
		http.Error(w, "Import failed", statusForError(err))
		return
	}

	serverLogger.Info("Accounts imported", "imported", result.Imported, "skipped", result.Skipped)
	status := http.StatusOK
	if result.Skipped > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

func handleAccountsBulkStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		AccountIDs []int64 `json:"account_ids"`
		Status     string  `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.AccountIDs) == 0 {
		http.Error(w, "account_ids is empty", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}

	updated, err := serverStore.BulkUpdateAccountStatus(r.Context(), req.AccountIDs, req.Status, nil)
	if err != nil {
		serverLogger.Error("Bulk status update failed", "error", err)
		http.Error(w, "Bulk status update failed", statusForError(err))
		return
	}

	serverLogger.Info("Bulk status applied", "status", req.Status, "requested", len(req.AccountIDs), "updated", updated)
	broadcast(ws.MessageTypeAccountsUpdated, map[string]interface{}{
		"account_ids": req.AccountIDs,
		"status":      req.Status,
		"updated":     updated,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"updated": updated,
	})
}

// Bulk delete releases any clones held by the victims in the same transaction,
// so inventory never points at a deleted account.
func handleAccountsBulkDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		AccountIDs []int64 `json:"account_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.AccountIDs) == 0 {
		http.Error(w, "account_ids is empty", http.StatusBadRequest)
		return
	}

	deleted, err := serverStore.BulkDeleteAccounts(r.Context(), req.AccountIDs)
	if err != nil {
		serverLogger.Error("Bulk delete failed", "error", err)
		http.Error(w, "Bulk delete failed", statusForError(err))
		return
	}

	serverLogger.Info("Accounts deleted", "requested", len(req.AccountIDs), "deleted", deleted)
	broadcast(ws.MessageTypeAccountsDeleted, map[string]interface{}{
		"account_ids": req.AccountIDs,
		"deleted":     deleted,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"deleted": deleted,
	})
}

func handleClones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	var filter storage.Filter
	q := r.URL.Query()

	if deviceID := q.Get("device_id"); deviceID != "" {
		filter.Conds = append(filter.Conds, storage.Eq("deviceId", deviceID))
	}
	if status := q.Get("clone_status"); status != "" {
		filter.Conds = append(filter.Conds, storage.Eq("cloneStatus", status))
	}

	limit := parseIntQuery(r, "limit", 0)
	offset := parseIntQuery(r, "offset", 0)

	clones, err := serverStore.ListClones(r.Context(), filter, nil, limit, offset)
	if err != nil {
		serverLogger.Error("Failed to list clones", "error", err)
		http.Error(w, "Failed to list clones", statusForError(err))
		return
	}
	total, err := serverStore.CountClones(r.Context(), filter)
	if err != nil {
		serverLogger.Error("Failed to count clones", "error", err)
		http.Error(w, "Failed to count clones", statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clones": clones,
		"total":  total,
	})
}

// Direct single-clone assignment. Returns 404 when the clone or the account
// does not exist; the whole operation rolled back in that case.
func handleCloneAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DeviceID    string `json:"device_id"`
		CloneNumber int    `json:"clone_number"`
		Username    string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.DeviceID == "" || req.Username == "" {
		http.Error(w, "device_id and username are required", http.StatusBadRequest)
		return
	}

	assigned, err := serverStore.AssignClone(r.Context(), req.DeviceID, req.CloneNumber, req.Username)
	if err != nil {
		serverLogger.Error("Assignment failed", "device_id", req.DeviceID, "clone_number", req.CloneNumber, "error", err)
		http.Error(w, "Assignment failed", statusForError(err))
		return
	}
	if !assigned {
		http.Error(w, "Clone or account not found", http.StatusNotFound)
		return
	}

	broadcast(ws.MessageTypeCloneAssigned, map[string]interface{}{
		"device_id":    req.DeviceID,
		"clone_number": req.CloneNumber,
		"username":     req.Username,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"device_id":    req.DeviceID,
		"clone_number": req.CloneNumber,
		"username":     req.Username,
	})
}

func handleCloneUnassign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DeviceID    string `json:"device_id"`
		CloneNumber int    `json:"clone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.DeviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}

	released, err := serverStore.UnassignClone(r.Context(), req.DeviceID, req.CloneNumber)
	if err != nil {
		serverLogger.Error("Unassignment failed", "device_id", req.DeviceID, "clone_number", req.CloneNumber, "error", err)
		http.Error(w, "Unassignment failed", statusForError(err))
		return
	}
	if !released {
		http.Error(w, "Clone not found or not assigned", http.StatusNotFound)
		return
	}

	broadcast(ws.MessageTypeCloneReleased, map[string]interface{}{
		"device_id":    req.DeviceID,
		"clone_number": req.CloneNumber,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"device_id":    req.DeviceID,
		"clone_number": req.CloneNumber,
	})
}

// Device rollups. With ?device_id= returns a single summary, 404 when the
// device has no clones.
func handleDeviceSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		summary, err := serverStore.DeviceSummary(r.Context(), deviceID)
		if err != nil {
			serverLogger.Error("Failed to summarize device", "device_id", deviceID, "error", err)
			http.Error(w, "Failed to summarize device", statusForError(err))
			return
		}
		if summary == nil {
			http.Error(w, "Device not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	summaries, err := serverStore.DeviceSummaries(r.Context())
	if err != nil {
		serverLogger.Error("Failed to summarize devices", "error", err)
		http.Error(w, "Failed to summarize devices", statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": summaries,
		"total":   len(summaries),
	})
}

func handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	stats, err := serverStore.GetDeviceStats(r.Context())
	if err != nil {
		serverLogger.Error("Failed to compute device stats", "error", err)
		http.Error(w, "Failed to compute device stats", statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func handleDeviceCapacity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	analysis, err := serverStore.GetCapacityAnalysis(r.Context())
	if err != nil {
		serverLogger.Error("Failed to compute capacity analysis", "error", err)
		http.Error(w, "Failed to compute capacity analysis", statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// Bulk allocation. Status reflects the outcome: 200 all assigned, 207 partial,
// 409 nothing could be assigned, 400 the request failed validation.
func handleAutoAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		AccountIDs []int64 `json:"account_ids"`
		Strategy   string  `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	result, err := serverStore.AutoAssignAccounts(r.Context(), req.AccountIDs, req.Strategy)
	if err != nil {
		serverLogger.Error("Auto-assignment failed", "strategy", req.Strategy, "error", err)
		if result != nil {
			writeJSON(w, statusForError(err), result)
			return
		}
		if strings.Contains(err.Error(), "unknown allocation strategy") {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Auto-assignment failed", statusForError(err))
		return
	}

	if result.AssignedCount > 0 {
		broadcast(ws.MessageTypeAutoAssign, map[string]interface{}{
			"strategy":        req.Strategy,
			"assigned_count":  result.AssignedCount,
			"total_requested": result.TotalRequested,
		})
	}

	status := http.StatusOK
	switch {
	case len(result.Errors) > 0 && result.AssignedCount == 0:
		// Feasibility failures are the caller's fault; exhaustion is a conflict.
		if strings.Contains(strings.Join(result.Errors, " "), "no optimal assignments") {
			status = http.StatusConflict
		} else {
			status = http.StatusBadRequest
		}
	case len(result.FailedAccounts) > 0:
		status = http.StatusMultiStatus
	}

	writeJSON(w, status, result)
}

// Feasibility check. Always 200 with the report; validation problems live in
// the report body, not the HTTP status.
func handleValidateAssignments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		AccountIDs []int64 `json:"account_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	result, err := serverStore.ValidateAssignmentFeasibility(r.Context(), req.AccountIDs)
	if err != nil {
		serverLogger.Error("Feasibility check failed", "error", err)
		http.Error(w, "Feasibility check failed", statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}
