package storage

import (
	"strings"
	"testing"
)

func TestBuildWhere_Basic(t *testing.T) {
	t.Parallel()

	d := &PostgresDialect{}

	tests := []struct {
		name       string
		filter     Filter
		wantClause string
		wantArgs   []interface{}
	}{
		{
			name:       "empty filter",
			filter:     Filter{},
			wantClause: "",
			wantArgs:   nil,
		},
		{
			name:       "single equality",
			filter:     Filter{Conds: []Cond{Eq("status", "Unused")}},
			wantClause: "status = $1",
			wantArgs:   []interface{}{"Unused"},
		},
		{
			name:       "null check",
			filter:     Filter{Conds: []Cond{IsNull("assignedDeviceId")}},
			wantClause: "assigned_device_id IS NULL",
			wantArgs:   nil,
		},
		{
			name:       "not null check",
			filter:     Filter{Conds: []Cond{NotNull("assignedDeviceId")}},
			wantClause: "assigned_device_id IS NOT NULL",
			wantArgs:   nil,
		},
		{
			name: "conjunction numbers placeholders sequentially",
			filter: Filter{Conds: []Cond{
				Eq("status", "Unused"),
				Eq("imapStatus", "On"),
			}},
			wantClause: "status = $1 AND imap_status = $2",
			wantArgs:   []interface{}{"Unused", "On"},
		},
		{
			name:       "in expands values",
			filter:     Filter{Conds: []Cond{InInt64("id", []int64{1, 2, 3})}},
			wantClause: "id IN ($1, $2, $3)",
			wantArgs:   []interface{}{int64(1), int64(2), int64(3)},
		},
		{
			name:       "empty in matches nothing",
			filter:     Filter{Conds: []Cond{InInt64("id", nil)}},
			wantClause: "1=0",
			wantArgs:   nil,
		},
		{
			name:       "empty not-in excludes nothing",
			filter:     Filter{Conds: []Cond{NotIn("status")}},
			wantClause: "",
			wantArgs:   nil,
		},
		{
			name:       "contains wraps with wildcards",
			filter:     Filter{Conds: []Cond{Contains("instagramUsername", "bot")}},
			wantClause: "instagram_username LIKE $1",
			wantArgs:   []interface{}{"%bot%"},
		},
		{
			name:       "blank field skipped",
			filter:     Filter{Conds: []Cond{{Field: ""}, Eq("status", "Unused")}},
			wantClause: "status = $1",
			wantArgs:   []interface{}{"Unused"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clause, args, _, err := buildWhere(entityAccount, tt.filter, d, 1)
			if err != nil {
				t.Fatalf("buildWhere() error = %v", err)
			}
			if clause != tt.wantClause {
				t.Errorf("clause = %q, want %q", clause, tt.wantClause)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestBuildWhere_OrBranchesContinueNumbering(t *testing.T) {
	t.Parallel()

	d := &PostgresDialect{}
	filter := Filter{
		Conds: []Cond{Eq("status", "Unused")},
		Or: []Filter{
			{Conds: []Cond{Eq("imapStatus", "On")}},
			{Conds: []Cond{Eq("imapStatus", "Off"), NotNull("loginTimestamp")}},
		},
	}

	clause, args, next, err := buildWhere(entityAccount, filter, d, 1)
	if err != nil {
		t.Fatalf("buildWhere() error = %v", err)
	}

	want := "status = $1 AND ((imap_status = $2) OR (imap_status = $3 AND login_timestamp IS NOT NULL))"
	if clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 3 {
		t.Errorf("got %d args, want 3", len(args))
	}
	if next != 4 {
		t.Errorf("next index = %d, want 4", next)
	}
}

func TestBuildWhere_CompositeCloneKey(t *testing.T) {
	t.Parallel()

	d := &PostgresDialect{}
	filter := Filter{Conds: []Cond{
		Eq(cloneCompositeKey, CloneKey{DeviceID: "device1", CloneNumber: 3}),
	}}

	clause, args, _, err := buildWhere(entityClone, filter, d, 1)
	if err != nil {
		t.Fatalf("buildWhere() error = %v", err)
	}
	want := "device_id = $1 AND clone_number = $2"
	if clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 2 || args[0] != "device1" || args[1] != 3 {
		t.Errorf("args = %v, want [device1 3]", args)
	}

	// Non-CloneKey values are rejected.
	bad := Filter{Conds: []Cond{Eq(cloneCompositeKey, "device1:3")}}
	if _, _, _, err := buildWhere(entityClone, bad, d, 1); err == nil {
		t.Error("expected error for non-CloneKey composite value")
	}
}

func TestBuildWhere_UnknownField(t *testing.T) {
	t.Parallel()

	d := &SQLiteDialect{}
	filter := Filter{Conds: []Cond{Eq("noSuchField", 1)}}
	if _, _, _, err := buildWhere(entityAccount, filter, d, 1); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, _, _, err := buildWhere(entityClone, filter, d, 1); err == nil {
		t.Error("expected error for unknown clone field")
	}
}

func TestBuildSet(t *testing.T) {
	t.Parallel()

	d := &PostgresDialect{}
	patch := Patch{}.
		Set("status", "Assigned").
		Set("updatedAt", "ignored").
		Set("assignedDeviceId", "device1")

	clause, args, next, err := buildSet(entityAccount, patch, d, 1)
	if err != nil {
		t.Fatalf("buildSet() error = %v", err)
	}
	want := "status = $1, assigned_device_id = $2"
	if clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 2 {
		t.Errorf("got %d args, want 2", len(args))
	}
	if next != 3 {
		t.Errorf("next index = %d, want 3", next)
	}
}

func TestBuildSet_WhereContinuesAfterSet(t *testing.T) {
	t.Parallel()

	// The WHERE clause of an UPDATE must number its placeholders after the
	// SET clause's parameters.
	d := &PostgresDialect{}
	patch := Patch{}.Set("status", "Maintenance")

	setClause, setArgs, next, err := buildSet(entityAccount, patch, d, 1)
	if err != nil {
		t.Fatalf("buildSet() error = %v", err)
	}
	whereClause, whereArgs, _, err := buildWhere(entityAccount,
		Filter{Conds: []Cond{InInt64("id", []int64{7, 8})}}, d, next)
	if err != nil {
		t.Fatalf("buildWhere() error = %v", err)
	}

	if setClause != "status = $1" {
		t.Errorf("set clause = %q", setClause)
	}
	if whereClause != "id IN ($2, $3)" {
		t.Errorf("where clause = %q", whereClause)
	}
	if total := len(setArgs) + len(whereArgs); total != 3 {
		t.Errorf("total args = %d, want 3", total)
	}
}

func TestBuildOrderBy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		terms   []OrderBy
		want    string
		wantErr bool
	}{
		{"empty", nil, "", false},
		{"single asc", []OrderBy{{Field: "id"}}, "id ASC", false},
		{"desc", []OrderBy{{Field: "createdAt", Desc: true}}, "created_at DESC", false},
		{
			"multiple",
			[]OrderBy{{Field: "status"}, {Field: "id", Desc: true}},
			"status ASC, id DESC",
			false,
		},
		{"unknown field", []OrderBy{{Field: "bogus"}}, "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := buildOrderBy(entityAccount, tt.terms)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildOrderBy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("buildOrderBy() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCamelToSnake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"id", "id"},
		{"instagramUsername", "instagram_username"},
		{"assignedCloneNumber", "assigned_clone_number"},
		{"imapStatus", "imap_status"},
	}
	for _, tt := range tests {
		if got := camelToSnake(tt.in); got != tt.want {
			t.Errorf("camelToSnake(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	// Every declared account field must resolve to a column.
	for _, f := range accountFieldNames {
		if accountColumns[f] == "" {
			t.Errorf("account field %q has no column mapping", f)
		}
	}
}

func TestSQLiteDialectPlaceholdersInWhere(t *testing.T) {
	t.Parallel()

	d := &SQLiteDialect{}
	filter := Filter{Conds: []Cond{
		Eq("status", "Unused"),
		InInt64("id", []int64{1, 2}),
	}}
	clause, args, _, err := buildWhere(entityAccount, filter, d, 1)
	if err != nil {
		t.Fatalf("buildWhere() error = %v", err)
	}
	if want := "status = ? AND id IN (?, ?)"; clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 3 {
		t.Errorf("got %d args, want 3", len(args))
	}
	if strings.Contains(clause, "$") {
		t.Errorf("sqlite clause leaked positional placeholders: %q", clause)
	}
}
