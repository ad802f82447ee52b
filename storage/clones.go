package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const cloneSelectColumns = `device_id, clone_number, clone_status, clone_health,
       current_account, package_name, device_name, last_scanned, created_at, updated_at`

func scanClone(row rowScanner) (*Clone, error) {
	var c Clone
	var health, pkg, deviceName, currentAccount sql.NullString
	var lastScanned sql.NullTime

	err := row.Scan(
		&c.DeviceID, &c.CloneNumber, &c.CloneStatus, &health,
		&currentAccount, &pkg, &deviceName, &lastScanned, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.CloneHealth = health.String
	c.PackageName = pkg.String
	c.DeviceName = deviceName.String
	c.CurrentAccount = stringPtr(currentAccount)
	c.LastScanned = timePtr(lastScanned)
	return &c, nil
}

// GetClone retrieves a clone by its composite key. Returns nil when not found.
func (s *BaseStore) GetClone(ctx context.Context, deviceID string, cloneNumber int) (*Clone, error) {
	query := fmt.Sprintf("SELECT %s FROM clone_inventory WHERE device_id = ? AND clone_number = ?", cloneSelectColumns)
	clone, err := scanClone(s.queryRowContext(ctx, query, deviceID, cloneNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return clone, err
}

// ListClones returns clones matching the filter, ordered and paginated.
func (s *BaseStore) ListClones(ctx context.Context, filter Filter, orderBy []OrderBy, limit, offset int) ([]*Clone, error) {
	where, args, _, err := buildWhere(entityClone, filter, s.dialect, 1)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM clone_inventory", cloneSelectColumns)
	if where != "" {
		b.WriteString(" WHERE " + where)
	}

	order, err := buildOrderBy(entityClone, orderBy)
	if err != nil {
		return nil, err
	}
	if order != "" {
		b.WriteString(" ORDER BY " + order)
	} else {
		b.WriteString(" ORDER BY device_id ASC, clone_number ASC")
	}
	if lo := s.dialect.LimitOffset(limit, offset); lo != "" {
		b.WriteString(" " + lo)
	}

	rows, err := s.queryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clones []*Clone
	for rows.Next() {
		clone, err := scanClone(rows)
		if err != nil {
			return nil, err
		}
		clones = append(clones, clone)
	}
	return clones, rows.Err()
}

// CountClones counts clones matching the filter.
func (s *BaseStore) CountClones(ctx context.Context, filter Filter) (int, error) {
	where, args, _, err := buildWhere(entityClone, filter, s.dialect, 1)
	if err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM clone_inventory"
	if where != "" {
		query += " WHERE " + where
	}

	var count int
	if err := s.queryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateClones applies a patch to every clone matching the filter.
// An empty filter fails with ErrNoFilter before touching the database.
func (s *BaseStore) UpdateClones(ctx context.Context, filter Filter, patch Patch) (int64, error) {
	setText, setArgs, next, err := buildSet(entityClone, patch, s.dialect, 1)
	if err != nil {
		return 0, err
	}
	if setText == "" {
		return 0, fmt.Errorf("storage: update with empty patch")
	}

	where, whereArgs, _, err := buildWhere(entityClone, filter, s.dialect, next)
	if err != nil {
		return 0, err
	}
	if where == "" {
		return 0, ErrNoFilter
	}

	query := fmt.Sprintf("UPDATE clone_inventory SET %s, updated_at = %s WHERE %s",
		setText, s.dialect.CurrentTimestamp(), where)

	res, err := s.execContext(ctx, query, append(setArgs, whereArgs...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertClone inserts or refreshes an inventory row. Used by the scan intake
// feed; assignment state is owned by the allocation engine, so an upsert never
// touches clone_status or current_account on an existing row.
func (s *BaseStore) UpsertClone(ctx context.Context, clone *Clone) error {
	if clone.CloneStatus == "" {
		clone.CloneStatus = CloneStatusAvailable
	}

	query := fmt.Sprintf(`
		INSERT INTO clone_inventory (
			device_id, clone_number, clone_status, clone_health,
			current_account, package_name, device_name, last_scanned,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, %s, %s)
		ON CONFLICT (device_id, clone_number) DO UPDATE SET
			clone_health = excluded.clone_health,
			package_name = excluded.package_name,
			device_name = excluded.device_name,
			last_scanned = excluded.last_scanned,
			updated_at = excluded.updated_at
	`, s.dialect.CurrentTimestamp(), s.dialect.CurrentTimestamp())

	_, err := s.execContext(ctx, query,
		clone.DeviceID, clone.CloneNumber, clone.CloneStatus, clone.CloneHealth,
		nullStringPtr(clone.CurrentAccount), clone.PackageName, clone.DeviceName,
		nullTimePtr(clone.LastScanned),
	)
	return err
}

// AssignClone atomically binds an account to a clone. Both sides are updated
// in one transaction; if either row is missing the whole thing rolls back and
// the call returns (false, nil). The clone's status is not pre-checked here:
// direct callers may be re-assigning deliberately. The bulk orchestrator adds
// its own Available guard on top.
func (s *BaseStore) AssignClone(ctx context.Context, deviceID string, cloneNumber int, username string) (bool, error) {
	assigned := false

	err := withRetry(ctx, "assign clone", func() error {
		assigned = false
		return s.withTx(ctx, func(tx *sql.Tx) error {
			res, err := s.txExec(ctx, tx, fmt.Sprintf(`
				UPDATE clone_inventory
				SET clone_status = 'Assigned', current_account = ?, updated_at = %s
				WHERE device_id = ? AND clone_number = ?`, s.dialect.CurrentTimestamp()),
				username, deviceID, cloneNumber)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				// Clone identity didn't match; roll back without error.
				return errAssignMiss
			}

			res, err = s.txExec(ctx, tx, fmt.Sprintf(`
				UPDATE ig_accounts
				SET status = 'Assigned', assigned_device_id = ?, assigned_clone_number = ?,
				    assignment_timestamp = %s, updated_at = %s
				WHERE instagram_username = ?`,
				s.dialect.CurrentTimestamp(), s.dialect.CurrentTimestamp()),
				deviceID, cloneNumber, username)
			if err != nil {
				return err
			}
			n, err = res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return errAssignMiss
			}

			assigned = true
			return nil
		})
	})

	if err == errAssignMiss {
		logWarn("Assign failed, target not found", "device_id", deviceID, "clone_number", cloneNumber, "username", username)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	logInfo("Clone assigned", "device_id", deviceID, "clone_number", cloneNumber, "username", username)
	return assigned, nil
}

// errAssignMiss marks an expected rowcount miss inside an assign transaction.
// It forces a rollback but is reported as (false, nil), not as an error.
var errAssignMiss = fmt.Errorf("assignment target not found")

// UnassignClone releases a clone and resets the owning account. Reads the
// clone's current_account first; when the clone holds nothing, the call aborts
// with (false, nil) without opening a mutating transaction.
func (s *BaseStore) UnassignClone(ctx context.Context, deviceID string, cloneNumber int) (bool, error) {
	var currentAccount sql.NullString
	err := s.queryRowContext(ctx,
		"SELECT current_account FROM clone_inventory WHERE device_id = ? AND clone_number = ?",
		deviceID, cloneNumber).Scan(&currentAccount)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !currentAccount.Valid || currentAccount.String == "" {
		// Nothing to release.
		return false, nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := s.txExec(ctx, tx, fmt.Sprintf(`
			UPDATE clone_inventory
			SET clone_status = 'Available', current_account = NULL, updated_at = %s
			WHERE device_id = ? AND clone_number = ?`, s.dialect.CurrentTimestamp()),
			deviceID, cloneNumber)
		if err != nil {
			return err
		}

		_, err = s.txExec(ctx, tx, fmt.Sprintf(`
			UPDATE ig_accounts
			SET status = 'Unused', assigned_device_id = NULL, assigned_clone_number = NULL,
			    assignment_timestamp = NULL, updated_at = %s
			WHERE instagram_username = ?`, s.dialect.CurrentTimestamp()),
			currentAccount.String)
		return err
	})
	if err != nil {
		return false, err
	}

	logInfo("Clone released", "device_id", deviceID, "clone_number", cloneNumber, "username", currentAccount.String)
	return true, nil
}
