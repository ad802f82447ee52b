package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const accountSelectColumns = `id, record_id, instagram_username, instagram_password,
       email_address, email_password, status, imap_status,
       assigned_device_id, assigned_clone_number, assigned_package_name,
       assignment_timestamp, login_timestamp, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *BaseStore) scanAccount(row rowScanner) (*Account, error) {
	var a Account
	var recordID, igPassword, emailAddr, emailPassword sql.NullString
	var assignedDevice, assignedPackage sql.NullString
	var assignedClone sql.NullInt64
	var assignedAt, loginAt sql.NullTime

	err := row.Scan(
		&a.ID, &recordID, &a.InstagramUsername, &igPassword,
		&emailAddr, &emailPassword, &a.Status, &a.IMAPStatus,
		&assignedDevice, &assignedClone, &assignedPackage,
		&assignedAt, &loginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.RecordID = recordID.String
	a.EmailAddress = emailAddr.String
	a.AssignedDeviceID = stringPtr(assignedDevice)
	a.AssignedCloneNumber = intPtr(assignedClone)
	a.AssignedPackageName = stringPtr(assignedPackage)
	a.AssignmentTimestamp = timePtr(assignedAt)
	a.LoginTimestamp = timePtr(loginAt)

	if a.InstagramPassword, err = s.sealer.open(igPassword.String); err != nil {
		return nil, fmt.Errorf("account %s: %w", a.InstagramUsername, err)
	}
	if a.EmailPassword, err = s.sealer.open(emailPassword.String); err != nil {
		return nil, fmt.Errorf("account %s: %w", a.InstagramUsername, err)
	}

	return &a, nil
}

// CreateAccount inserts a new account. Username uniqueness is checked before
// insert; status defaults to Unused when unset. The new ID is written back.
func (s *BaseStore) CreateAccount(ctx context.Context, account *Account) error {
	if account.InstagramUsername == "" {
		return fmt.Errorf("instagram username is required")
	}
	if account.Status == "" {
		account.Status = AccountStatusUnused
	}
	if account.IMAPStatus == "" {
		account.IMAPStatus = IMAPStatusOff
	}

	existing, err := s.GetAccountByUsername(ctx, account.InstagramUsername)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("account %q already exists", account.InstagramUsername)
	}

	igPassword, err := s.sealer.seal(account.InstagramPassword)
	if err != nil {
		return err
	}
	emailPassword, err := s.sealer.seal(account.EmailPassword)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO ig_accounts (
			record_id, instagram_username, instagram_password,
			email_address, email_password, status, imap_status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, %s, %s)
		RETURNING id
	`, s.dialect.CurrentTimestamp(), s.dialect.CurrentTimestamp())

	err = s.queryRowContext(ctx, query,
		account.RecordID, account.InstagramUsername, igPassword,
		account.EmailAddress, emailPassword, account.Status, account.IMAPStatus,
	).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	logDebug("Account created", "id", account.ID, "username", account.InstagramUsername)
	return nil
}

// ImportAccounts feeds a batch of accounts through the create path with
// per-row duplicate reporting. Rows that collide on username are skipped, not
// fatal; genuine infrastructure errors abort the import.
func (s *BaseStore) ImportAccounts(ctx context.Context, accounts []*Account) (*ImportResult, error) {
	result := &ImportResult{}

	for _, account := range accounts {
		if account.InstagramUsername == "" {
			result.Skipped++
			result.Errors = append(result.Errors, "row skipped: missing instagram username")
			continue
		}

		existing, err := s.GetAccountByUsername(ctx, account.InstagramUsername)
		if err != nil {
			return result, err
		}
		if existing != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate username %q skipped", account.InstagramUsername))
			continue
		}

		if err := s.CreateAccount(ctx, account); err != nil {
			return result, err
		}
		result.Imported++
	}

	logInfo("Account import finished", "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// GetAccount retrieves an account by ID. Returns nil when not found.
func (s *BaseStore) GetAccount(ctx context.Context, id int64) (*Account, error) {
	query := fmt.Sprintf("SELECT %s FROM ig_accounts WHERE id = ?", accountSelectColumns)
	account, err := s.scanAccount(s.queryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return account, err
}

// GetAccountByUsername retrieves an account by username. Returns nil when not found.
func (s *BaseStore) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	query := fmt.Sprintf("SELECT %s FROM ig_accounts WHERE instagram_username = ?", accountSelectColumns)
	account, err := s.scanAccount(s.queryRowContext(ctx, query, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return account, err
}

// ListAccounts returns accounts matching the filter, ordered and paginated.
func (s *BaseStore) ListAccounts(ctx context.Context, filter Filter, orderBy []OrderBy, limit, offset int) ([]*Account, error) {
	where, args, _, err := buildWhere(entityAccount, filter, s.dialect, 1)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM ig_accounts", accountSelectColumns)
	if where != "" {
		b.WriteString(" WHERE " + where)
	}

	order, err := buildOrderBy(entityAccount, orderBy)
	if err != nil {
		return nil, err
	}
	if order != "" {
		b.WriteString(" ORDER BY " + order)
	} else {
		b.WriteString(" ORDER BY id ASC")
	}
	if lo := s.dialect.LimitOffset(limit, offset); lo != "" {
		b.WriteString(" " + lo)
	}

	rows, err := s.queryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := s.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// CountAccounts counts accounts matching the filter.
func (s *BaseStore) CountAccounts(ctx context.Context, filter Filter) (int, error) {
	where, args, _, err := buildWhere(entityAccount, filter, s.dialect, 1)
	if err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM ig_accounts"
	if where != "" {
		query += " WHERE " + where
	}

	var count int
	if err := s.queryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// sealPatch seals password assignments in an update patch so credential
// columns never hit the database in the clear when a key is configured.
func (s *BaseStore) sealPatch(patch Patch) (Patch, error) {
	if s.sealer == nil {
		return patch, nil
	}
	sealed := make(Patch, 0, len(patch))
	for _, sf := range patch {
		if sf.Field == "instagramPassword" || sf.Field == "emailPassword" {
			if v, ok := sf.Value.(string); ok {
				sealedVal, err := s.sealer.seal(v)
				if err != nil {
					return nil, err
				}
				sf.Value = sealedVal
			}
		}
		sealed = append(sealed, sf)
	}
	return sealed, nil
}

// UpdateAccounts applies a patch to every account matching the filter.
// An empty filter fails with ErrNoFilter before touching the database.
func (s *BaseStore) UpdateAccounts(ctx context.Context, filter Filter, patch Patch) (int64, error) {
	patch, err := s.sealPatch(patch)
	if err != nil {
		return 0, err
	}

	setText, setArgs, next, err := buildSet(entityAccount, patch, s.dialect, 1)
	if err != nil {
		return 0, err
	}
	if setText == "" {
		return 0, fmt.Errorf("storage: update with empty patch")
	}

	where, whereArgs, _, err := buildWhere(entityAccount, filter, s.dialect, next)
	if err != nil {
		return 0, err
	}
	if where == "" {
		return 0, ErrNoFilter
	}

	query := fmt.Sprintf("UPDATE ig_accounts SET %s, updated_at = %s WHERE %s",
		setText, s.dialect.CurrentTimestamp(), where)

	res, err := s.execContext(ctx, query, append(setArgs, whereArgs...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAccounts deletes every account matching the filter.
// An empty filter fails with ErrNoFilter before touching the database.
func (s *BaseStore) DeleteAccounts(ctx context.Context, filter Filter) (int64, error) {
	where, args, _, err := buildWhere(entityAccount, filter, s.dialect, 1)
	if err != nil {
		return 0, err
	}
	if where == "" {
		return 0, ErrNoFilter
	}

	res, err := s.execContext(ctx, "DELETE FROM ig_accounts WHERE "+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BulkUpdateAccountStatus sets the status (plus any extra columns) on a batch
// of accounts in one transaction. Returns the affected row count.
func (s *BaseStore) BulkUpdateAccountStatus(ctx context.Context, accountIDs []int64, status string, extra Patch) (int64, error) {
	if len(accountIDs) == 0 {
		return 0, fmt.Errorf("no accounts specified")
	}
	if status == "" {
		return 0, fmt.Errorf("status is required")
	}

	patch := Patch{{Field: "status", Value: status}}
	patch = append(patch, extra...)
	patch, err := s.sealPatch(patch)
	if err != nil {
		return 0, err
	}

	setText, setArgs, next, err := buildSet(entityAccount, patch, s.dialect, 1)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("UPDATE ig_accounts SET %s, updated_at = %s WHERE id IN (%s)",
		setText, s.dialect.CurrentTimestamp(), PlaceholderSet(s.dialect, len(accountIDs), next))

	args := setArgs
	for _, id := range accountIDs {
		args = append(args, id)
	}

	var affected int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	logInfo("Bulk status update", "status", status, "requested", len(accountIDs), "affected", affected)
	return affected, nil
}

// BulkDeleteAccounts deletes a batch of accounts in one transaction. Every
// clone held by a targeted account is released first; deleting the account
// rows before releasing would strand clones as Assigned with a dangling
// current_account reference.
func (s *BaseStore) BulkDeleteAccounts(ctx context.Context, accountIDs []int64) (int64, error) {
	if len(accountIDs) == 0 {
		return 0, fmt.Errorf("no accounts specified")
	}

	inSet := PlaceholderSet(s.dialect, len(accountIDs), 1)
	idArgs := make([]interface{}, len(accountIDs))
	for i, id := range accountIDs {
		idArgs[i] = id
	}

	var affected int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// Compensating release: free every clone held by a targeted account.
		releaseQuery := fmt.Sprintf(`
			UPDATE clone_inventory
			SET clone_status = 'Available', current_account = NULL, updated_at = %s
			WHERE current_account IN (
				SELECT instagram_username FROM ig_accounts
				WHERE id IN (%s) AND assigned_device_id IS NOT NULL
			)`, s.dialect.CurrentTimestamp(), inSet)
		if _, err := tx.ExecContext(ctx, releaseQuery, idArgs...); err != nil {
			return fmt.Errorf("release clones: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM ig_accounts WHERE id IN (%s)", inSet), idArgs...)
		if err != nil {
			return fmt.Errorf("delete accounts: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	logInfo("Bulk delete", "requested", len(accountIDs), "deleted", affected)
	return affected, nil
}
