package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCreateAndGetAccount(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	account := &Account{
		InstagramUsername: "alice_auto",
		InstagramPassword: "secret1",
		EmailAddress:      "alice@example.com",
	}
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if account.ID == 0 {
		t.Error("CreateAccount() did not write back the new ID")
	}

	got, err := store.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetAccount() returned nil for existing account")
	}
	if got.InstagramUsername != "alice_auto" {
		t.Errorf("username = %q, want alice_auto", got.InstagramUsername)
	}
	if got.Status != AccountStatusUnused {
		t.Errorf("status = %q, want default %q", got.Status, AccountStatusUnused)
	}
	if got.IMAPStatus != IMAPStatusOff {
		t.Errorf("imap status = %q, want default %q", got.IMAPStatus, IMAPStatusOff)
	}
	if got.AssignedDeviceID != nil {
		t.Errorf("new account has assigned device %v", *got.AssignedDeviceID)
	}

	byName, err := store.GetAccountByUsername(ctx, "alice_auto")
	if err != nil {
		t.Fatalf("GetAccountByUsername() error = %v", err)
	}
	if byName == nil || byName.ID != account.ID {
		t.Errorf("GetAccountByUsername() = %v, want ID %d", byName, account.ID)
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateAccount(ctx, &Account{}); err == nil {
		t.Error("expected error for missing username")
	}

	seedAccount(t, store, "dupe_user")
	err := store.CreateAccount(ctx, &Account{InstagramUsername: "dupe_user"})
	if err == nil {
		t.Fatal("expected error for duplicate username")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("duplicate error = %q, want mention of already exists", err)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetAccount(ctx, 9999)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetAccount(missing) = %v, want nil", got)
	}

	byName, err := store.GetAccountByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetAccountByUsername() error = %v", err)
	}
	if byName != nil {
		t.Errorf("GetAccountByUsername(missing) = %v, want nil", byName)
	}
}

func TestImportAccounts_SkipsDuplicates(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	seedAccount(t, store, "existing_user")

	batch := []*Account{
		{InstagramUsername: "new_one"},
		{InstagramUsername: "existing_user"},
		{InstagramUsername: ""},
		{InstagramUsername: "new_two"},
	}
	result, err := store.ImportAccounts(ctx, batch)
	if err != nil {
		t.Fatalf("ImportAccounts() error = %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("Imported = %d, want 2", result.Imported)
	}
	if result.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", result.Skipped)
	}
	if len(result.Errors) != 2 {
		t.Errorf("Errors = %v, want 2 entries", result.Errors)
	}

	total, err := store.CountAccounts(ctx, Filter{})
	if err != nil {
		t.Fatalf("CountAccounts() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total accounts = %d, want 3", total)
	}
}

func TestListAccounts_FilterAndPagination(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"bot_a", "bot_b", "bot_c", "human_x"} {
		seedAccount(t, store, name)
	}
	if _, err := store.UpdateAccounts(ctx,
		Filter{Conds: []Cond{Eq("instagramUsername", "human_x")}},
		Patch{}.Set("status", AccountStatusBroken)); err != nil {
		t.Fatalf("UpdateAccounts() error = %v", err)
	}

	unused, err := store.ListAccounts(ctx,
		Filter{Conds: []Cond{Eq("status", AccountStatusUnused)}}, nil, 0, 0)
	if err != nil {
		t.Fatalf("ListAccounts() error = %v", err)
	}
	if len(unused) != 3 {
		t.Errorf("got %d unused accounts, want 3", len(unused))
	}

	matched, err := store.ListAccounts(ctx,
		Filter{Conds: []Cond{ContainsFold("instagramUsername", "BOT")}}, nil, 0, 0)
	if err != nil {
		t.Fatalf("ListAccounts(contains) error = %v", err)
	}
	if len(matched) != 3 {
		t.Errorf("got %d matching accounts, want 3", len(matched))
	}

	page, err := store.ListAccounts(ctx, Filter{},
		[]OrderBy{{Field: "instagramUsername"}}, 2, 1)
	if err != nil {
		t.Fatalf("ListAccounts(paged) error = %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d accounts on page, want 2", len(page))
	}
	if page[0].InstagramUsername != "bot_b" || page[1].InstagramUsername != "bot_c" {
		t.Errorf("page = [%s, %s], want [bot_b, bot_c]",
			page[0].InstagramUsername, page[1].InstagramUsername)
	}
}

func TestUpdateAccounts_EmptyFilterRejected(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	seedAccount(t, store, "safe_user")

	_, err := store.UpdateAccounts(ctx, Filter{}, Patch{}.Set("status", AccountStatusBroken))
	if !errors.Is(err, ErrNoFilter) {
		t.Fatalf("UpdateAccounts(empty filter) error = %v, want ErrNoFilter", err)
	}

	// The row must be untouched.
	got, _ := store.GetAccountByUsername(ctx, "safe_user")
	if got.Status != AccountStatusUnused {
		t.Errorf("status changed to %q despite rejected update", got.Status)
	}
}

func TestDeleteAccounts_EmptyFilterRejected(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	seedAccount(t, store, "keep_me")

	if _, err := store.DeleteAccounts(ctx, Filter{}); !errors.Is(err, ErrNoFilter) {
		t.Fatalf("DeleteAccounts(empty filter) error = %v, want ErrNoFilter", err)
	}

	total, _ := store.CountAccounts(ctx, Filter{})
	if total != 1 {
		t.Errorf("account count = %d after rejected delete, want 1", total)
	}
}

func TestBulkUpdateAccountStatus(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, store, "bulk_a")
	b := seedAccount(t, store, "bulk_b")
	seedAccount(t, store, "untouched")

	updated, err := store.BulkUpdateAccountStatus(ctx,
		[]int64{a.ID, b.ID, 9999}, AccountStatusMaintenance, nil)
	if err != nil {
		t.Fatalf("BulkUpdateAccountStatus() error = %v", err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2 (missing ID ignored)", updated)
	}

	got, _ := store.GetAccount(ctx, a.ID)
	if got.Status != AccountStatusMaintenance {
		t.Errorf("status = %q, want %q", got.Status, AccountStatusMaintenance)
	}
	other, _ := store.GetAccountByUsername(ctx, "untouched")
	if other.Status != AccountStatusUnused {
		t.Errorf("untargeted account status = %q, want Unused", other.Status)
	}

	if _, err := store.BulkUpdateAccountStatus(ctx, nil, AccountStatusBroken, nil); err == nil {
		t.Error("expected error for empty ID list")
	}
	if _, err := store.BulkUpdateAccountStatus(ctx, []int64{a.ID}, "", nil); err == nil {
		t.Error("expected error for empty status")
	}
}

func TestBulkDeleteAccounts_ReleasesHeldClones(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	victim := seedAccount(t, store, "doomed_user")
	survivor := seedAccount(t, store, "survivor")
	seedClone(t, store, "device1", 1, CloneStatusAvailable)
	seedClone(t, store, "device1", 2, CloneStatusAvailable)

	assigned, err := store.AssignClone(ctx, "device1", 1, "doomed_user")
	if err != nil || !assigned {
		t.Fatalf("AssignClone() = (%v, %v), want (true, nil)", assigned, err)
	}

	deleted, err := store.BulkDeleteAccounts(ctx, []int64{victim.ID})
	if err != nil {
		t.Fatalf("BulkDeleteAccounts() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	// The held clone is back in the pool with no dangling back-reference.
	clone, err := store.GetClone(ctx, "device1", 1)
	if err != nil {
		t.Fatalf("GetClone() error = %v", err)
	}
	if clone.CloneStatus != CloneStatusAvailable {
		t.Errorf("clone status = %q, want Available after owner deletion", clone.CloneStatus)
	}
	if clone.CurrentAccount != nil {
		t.Errorf("clone current_account = %q, want nil", *clone.CurrentAccount)
	}

	if got, _ := store.GetAccount(ctx, victim.ID); got != nil {
		t.Error("deleted account still present")
	}
	if got, _ := store.GetAccount(ctx, survivor.ID); got == nil {
		t.Error("untargeted account was deleted")
	}
}

func TestAccountPasswordSealing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	key, err := GenerateCredentialsKey()
	if err != nil {
		t.Fatalf("GenerateCredentialsKey() error = %v", err)
	}
	if err := store.SetCredentialsKey(key); err != nil {
		t.Fatalf("SetCredentialsKey() error = %v", err)
	}
	ctx := context.Background()

	account := &Account{
		InstagramUsername: "sealed_user",
		InstagramPassword: "topsecret",
		EmailPassword:     "mailsecret",
	}
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	// The raw column must not contain the plaintext.
	var stored string
	err = store.DB().QueryRow(
		"SELECT instagram_password FROM ig_accounts WHERE id = ?", account.ID).Scan(&stored)
	if err != nil {
		t.Fatalf("raw select error = %v", err)
	}
	if !strings.HasPrefix(stored, sealedPrefix) {
		t.Errorf("stored password %q not sealed", stored)
	}

	// Reads transparently open the sealed value.
	got, err := store.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if got.InstagramPassword != "topsecret" {
		t.Errorf("opened password = %q, want topsecret", got.InstagramPassword)
	}
	if got.EmailPassword != "mailsecret" {
		t.Errorf("opened email password = %q, want mailsecret", got.EmailPassword)
	}
}
