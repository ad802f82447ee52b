package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// AutoAssignAccounts runs the full allocation pipeline: feasibility check,
// strategy planning, then a single transaction that commits every pairing that
// still holds under optimistic guards. Pairings whose clone or account was
// taken between planning and commit are skipped and reported per account; the
// rest commit. Only an infrastructure failure rolls the batch back.
func (s *BaseStore) AutoAssignAccounts(ctx context.Context, accountIDs []int64, strategy string) (*AutoAssignResult, error) {
	result := &AutoAssignResult{TotalRequested: len(accountIDs)}

	feasibility, err := s.ValidateAssignmentFeasibility(ctx, accountIDs)
	if err != nil {
		return nil, err
	}
	if !feasibility.IsValid {
		result.Errors = feasibility.Errors
		return result, nil
	}

	plan, err := s.PlanAssignments(ctx, accountIDs, strategy)
	if err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		result.Errors = append(result.Errors, "no optimal assignments found")
		return result, nil
	}

	// Username lookup for accounts the plan could not place.
	accounts, err := s.ListAccounts(ctx,
		Filter{Conds: []Cond{InInt64("id", accountIDs)}}, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	usernames := make(map[int64]string, len(accounts))
	for _, account := range accounts {
		usernames[account.ID] = account.InstagramUsername
	}

	planned := make(map[int64]bool, len(plan))
	for _, pairing := range plan {
		planned[pairing.AccountID] = true
	}
	for _, id := range accountIDs {
		if !planned[id] {
			result.FailedAccounts = append(result.FailedAccounts, FailedAccount{
				AccountID: id,
				Username:  usernames[id],
				Error:     "no clone available for account",
			})
		}
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, pairing := range plan {
			ok, reason, err := s.commitPairing(ctx, tx, pairing)
			if err != nil {
				return err
			}
			if !ok {
				result.FailedAccounts = append(result.FailedAccounts, FailedAccount{
					AccountID: pairing.AccountID,
					Username:  pairing.Username,
					Error:     reason,
				})
				continue
			}
			result.Assignments = append(result.Assignments, pairing)
			result.AssignedCount++
		}
		return nil
	})
	if err != nil {
		// The whole batch rolled back; nothing above survived.
		failed := make([]FailedAccount, 0, len(plan))
		for _, pairing := range plan {
			failed = append(failed, FailedAccount{
				AccountID: pairing.AccountID,
				Username:  pairing.Username,
				Error:     "transaction rolled back",
			})
		}
		result.Assignments = nil
		result.AssignedCount = 0
		result.FailedAccounts = failed
		result.Errors = append(result.Errors, fmt.Sprintf("assignment transaction failed: %v", err))
		return result, err
	}

	result.Success = result.AssignedCount > 0
	logInfo("Auto-assignment completed",
		"strategy", strategy,
		"requested", result.TotalRequested,
		"assigned", result.AssignedCount,
		"failed", len(result.FailedAccounts))
	return result, nil
}

// commitPairing applies one planned pairing inside the batch transaction.
// Both UPDATEs carry state guards so a pairing raced away since planning is
// detected by rowcount. A clone-side miss skips the pairing; an account-side
// miss additionally reverts the clone row so the transaction stays consistent
// without aborting the batch.
func (s *BaseStore) commitPairing(ctx context.Context, tx *sql.Tx, pairing Assignment) (bool, string, error) {
	res, err := s.txExec(ctx, tx, fmt.Sprintf(`
		UPDATE clone_inventory
		SET clone_status = 'Assigned', current_account = ?, updated_at = %s
		WHERE device_id = ? AND clone_number = ? AND clone_status = 'Available'`,
		s.dialect.CurrentTimestamp()),
		pairing.Username, pairing.DeviceID, pairing.CloneNumber)
	if err != nil {
		return false, "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, "", err
	}
	if n == 0 {
		return false, "clone no longer available", nil
	}

	res, err = s.txExec(ctx, tx, fmt.Sprintf(`
		UPDATE ig_accounts
		SET status = 'Assigned', assigned_device_id = ?, assigned_clone_number = ?,
		    assignment_timestamp = %s, updated_at = %s
		WHERE id = ? AND status = 'Unused' AND assigned_device_id IS NULL`,
		s.dialect.CurrentTimestamp(), s.dialect.CurrentTimestamp()),
		pairing.DeviceID, pairing.CloneNumber, pairing.AccountID)
	if err != nil {
		return false, "", err
	}
	n, err = res.RowsAffected()
	if err != nil {
		return false, "", err
	}
	if n == 0 {
		_, err = s.txExec(ctx, tx, fmt.Sprintf(`
			UPDATE clone_inventory
			SET clone_status = 'Available', current_account = NULL, updated_at = %s
			WHERE device_id = ? AND clone_number = ?`, s.dialect.CurrentTimestamp()),
			pairing.DeviceID, pairing.CloneNumber)
		if err != nil {
			return false, "", err
		}
		return false, "account no longer available for assignment", nil
	}

	return true, "", nil
}
