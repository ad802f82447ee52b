package storage

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoFilter is returned when a bulk update or delete would compile to an
// empty WHERE clause. Full-table mutations must be impossible by accident.
var ErrNoFilter = errors.New("storage: refusing bulk mutation with empty filter")

// Op is a filter condition operator.
type Op int

const (
	OpEq       Op = iota // col = v, or col IS NULL when v is nil
	OpNot                // col != v, or col IS NOT NULL when v is nil
	OpIn                 // col IN (...)
	OpNotIn              // col NOT IN (...)
	OpContains           // col LIKE %v% (ILIKE when CaseInsensitive)
	OpGt
	OpGte
	OpLt
	OpLte
)

// Cond is a single typed filter condition. Conditions with an empty Field are
// skipped silently, matching the loose-object semantics this replaces.
type Cond struct {
	Field           string
	Op              Op
	Value           interface{}
	Values          []interface{} // In/NotIn only
	CaseInsensitive bool          // Contains only
}

// Filter is a composable WHERE clause: Conds and And entries are conjoined,
// each Or entry is compiled independently and the branches are OR-joined
// inside one parenthesized group.
type Filter struct {
	Conds []Cond
	And   []Filter
	Or    []Filter
}

// IsEmpty reports whether the filter contains no conditions at all.
func (f Filter) IsEmpty() bool {
	return len(f.Conds) == 0 && len(f.And) == 0 && len(f.Or) == 0
}

// Condition constructors. These keep call sites close to the shape of the
// nested filter objects the API accepts.

func Eq(field string, value interface{}) Cond  { return Cond{Field: field, Op: OpEq, Value: value} }
func IsNull(field string) Cond                 { return Cond{Field: field, Op: OpEq, Value: nil} }
func Not(field string, value interface{}) Cond { return Cond{Field: field, Op: OpNot, Value: value} }
func NotNull(field string) Cond                { return Cond{Field: field, Op: OpNot, Value: nil} }
func Gt(field string, value interface{}) Cond  { return Cond{Field: field, Op: OpGt, Value: value} }
func Gte(field string, value interface{}) Cond { return Cond{Field: field, Op: OpGte, Value: value} }
func Lt(field string, value interface{}) Cond  { return Cond{Field: field, Op: OpLt, Value: value} }
func Lte(field string, value interface{}) Cond { return Cond{Field: field, Op: OpLte, Value: value} }

func In(field string, values ...interface{}) Cond {
	return Cond{Field: field, Op: OpIn, Values: values}
}

func NotIn(field string, values ...interface{}) Cond {
	return Cond{Field: field, Op: OpNotIn, Values: values}
}

func Contains(field string, value string) Cond {
	return Cond{Field: field, Op: OpContains, Value: value}
}

func ContainsFold(field string, value string) Cond {
	return Cond{Field: field, Op: OpContains, Value: value, CaseInsensitive: true}
}

// InInt64 expands an int64 slice into an In condition. IN with an empty list
// compiles to a never-true clause.
func InInt64(field string, ids []int64) Cond {
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return In(field, values...)
}

// SetField is one column assignment in an update patch.
type SetField struct {
	Field string
	Value interface{}
}

// Patch is an ordered list of column assignments. Order is preserved so the
// generated SQL is deterministic.
type Patch []SetField

// Set appends a field assignment and returns the patch for chaining.
func (p Patch) Set(field string, value interface{}) Patch {
	return append(p, SetField{Field: field, Value: value})
}

// OrderBy is one ordering term.
type OrderBy struct {
	Field string
	Desc  bool
}

// entity selects the per-entity field-to-column mapping.
type entity int

const (
	entityAccount entity = iota
	entityClone
)

// Account field names map to columns with a generic camelCase-to-snake_case
// rule; the clone table has irregular names, so its map is written out by
// hand. The asymmetry is deliberate configuration, not two code paths.

var accountFieldNames = []string{
	"id", "recordId", "instagramUsername", "instagramPassword",
	"emailAddress", "emailPassword", "status", "imapStatus",
	"assignedDeviceId", "assignedCloneNumber", "assignedPackageName",
	"assignmentTimestamp", "loginTimestamp", "createdAt", "updatedAt",
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

func camelToSnake(s string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(s, "${1}_${2}"))
}

var accountColumns = buildAccountColumns()

func buildAccountColumns() map[string]string {
	m := make(map[string]string, len(accountFieldNames))
	for _, f := range accountFieldNames {
		m[f] = camelToSnake(f)
	}
	return m
}

var cloneColumns = map[string]string{
	"deviceId":       "device_id",
	"cloneNumber":    "clone_number",
	"cloneStatus":    "clone_status",
	"cloneHealth":    "clone_health",
	"currentAccount": "current_account",
	"packageName":    "package_name",
	"deviceName":     "device_name",
	"lastScanned":    "last_scanned",
	"createdAt":      "created_at",
	"updatedAt":      "updated_at",
}

// cloneCompositeKey is the composite-key pseudo-field that expands into two
// equality conditions on device_id and clone_number.
const cloneCompositeKey = "deviceId_cloneNumber"

func columnFor(e entity, field string) (string, error) {
	var col string
	var ok bool
	switch e {
	case entityAccount:
		col, ok = accountColumns[field]
	case entityClone:
		col, ok = cloneColumns[field]
	}
	if !ok {
		return "", fmt.Errorf("storage: unknown filter field %q", field)
	}
	return col, nil
}

// buildWhere compiles a filter into WHERE clause text and ordered parameters.
// Placeholders are numbered sequentially from startIdx so the clause can be
// concatenated after a SET clause's parameters. Returns the clause text
// (without the WHERE keyword, empty when no conditions apply), the parameter
// slice, and the next free placeholder index.
func buildWhere(e entity, f Filter, d Dialect, startIdx int) (string, []interface{}, int, error) {
	var parts []string
	var args []interface{}
	idx := startIdx

	appendCond := func(c Cond) error {
		clause, condArgs, next, err := compileCond(e, c, d, idx)
		if err != nil {
			return err
		}
		if clause == "" {
			return nil
		}
		parts = append(parts, clause)
		args = append(args, condArgs...)
		idx = next
		return nil
	}

	for _, c := range f.Conds {
		if err := appendCond(c); err != nil {
			return "", nil, startIdx, err
		}
	}

	// AND sub-filters merge into the parent conjunction.
	for _, sub := range f.And {
		clause, subArgs, next, err := buildWhere(e, sub, d, idx)
		if err != nil {
			return "", nil, startIdx, err
		}
		if clause == "" {
			continue
		}
		parts = append(parts, clause)
		args = append(args, subArgs...)
		idx = next
	}

	// OR branches compile independently; numbering continues through the
	// branches so placeholders never collide with the parent sequence.
	if len(f.Or) > 0 {
		var branches []string
		for _, sub := range f.Or {
			clause, subArgs, next, err := buildWhere(e, sub, d, idx)
			if err != nil {
				return "", nil, startIdx, err
			}
			if clause == "" {
				continue
			}
			branches = append(branches, "("+clause+")")
			args = append(args, subArgs...)
			idx = next
		}
		if len(branches) > 0 {
			parts = append(parts, "("+strings.Join(branches, " OR ")+")")
		}
	}

	return strings.Join(parts, " AND "), args, idx, nil
}

func compileCond(e entity, c Cond, d Dialect, idx int) (string, []interface{}, int, error) {
	if c.Field == "" {
		return "", nil, idx, nil
	}

	// Composite clone key expands into two equality conditions.
	if e == entityClone && c.Field == cloneCompositeKey {
		if c.Op != OpEq {
			return "", nil, idx, fmt.Errorf("storage: %s only supports equality", cloneCompositeKey)
		}
		key, ok := c.Value.(CloneKey)
		if !ok {
			return "", nil, idx, fmt.Errorf("storage: %s requires a CloneKey value", cloneCompositeKey)
		}
		clause := fmt.Sprintf("device_id = %s AND clone_number = %s",
			d.Placeholder(idx), d.Placeholder(idx+1))
		return clause, []interface{}{key.DeviceID, key.CloneNumber}, idx + 2, nil
	}

	col, err := columnFor(e, c.Field)
	if err != nil {
		return "", nil, idx, err
	}

	switch c.Op {
	case OpEq:
		if c.Value == nil {
			return col + " IS NULL", nil, idx, nil
		}
		return fmt.Sprintf("%s = %s", col, d.Placeholder(idx)), []interface{}{c.Value}, idx + 1, nil

	case OpNot:
		if c.Value == nil {
			return col + " IS NOT NULL", nil, idx, nil
		}
		return fmt.Sprintf("%s != %s", col, d.Placeholder(idx)), []interface{}{c.Value}, idx + 1, nil

	case OpIn:
		if len(c.Values) == 0 {
			// IN over nothing matches nothing.
			return "1=0", nil, idx, nil
		}
		clause := fmt.Sprintf("%s IN (%s)", col, PlaceholderSet(d, len(c.Values), idx))
		return clause, c.Values, idx + len(c.Values), nil

	case OpNotIn:
		if len(c.Values) == 0 {
			// NOT IN over nothing excludes nothing; emit no condition.
			return "", nil, idx, nil
		}
		clause := fmt.Sprintf("%s NOT IN (%s)", col, PlaceholderSet(d, len(c.Values), idx))
		return clause, c.Values, idx + len(c.Values), nil

	case OpContains:
		s, ok := c.Value.(string)
		if !ok {
			return "", nil, idx, fmt.Errorf("storage: contains on %q requires a string value", c.Field)
		}
		pattern := "%" + s + "%"
		if c.CaseInsensitive {
			return d.ILike(col, idx), []interface{}{pattern}, idx + 1, nil
		}
		return fmt.Sprintf("%s LIKE %s", col, d.Placeholder(idx)), []interface{}{pattern}, idx + 1, nil

	case OpGt, OpGte, OpLt, OpLte:
		if c.Value == nil {
			return "", nil, idx, nil
		}
		sym := map[Op]string{OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<="}[c.Op]
		return fmt.Sprintf("%s %s %s", col, sym, d.Placeholder(idx)), []interface{}{c.Value}, idx + 1, nil

	default:
		return "", nil, idx, fmt.Errorf("storage: unsupported filter operator %d", c.Op)
	}
}

// buildSet compiles an update patch into SET clause text and ordered
// parameters, starting at startIdx. The updatedAt column is excluded; callers
// stamp it with the dialect's current-timestamp expression.
func buildSet(e entity, patch Patch, d Dialect, startIdx int) (string, []interface{}, int, error) {
	var parts []string
	var args []interface{}
	idx := startIdx

	for _, sf := range patch {
		if sf.Field == "" || sf.Field == "updatedAt" {
			continue
		}
		col, err := columnFor(e, sf.Field)
		if err != nil {
			return "", nil, startIdx, err
		}
		parts = append(parts, fmt.Sprintf("%s = %s", col, d.Placeholder(idx)))
		args = append(args, sf.Value)
		idx++
	}

	return strings.Join(parts, ", "), args, idx, nil
}

// buildOrderBy compiles ordering terms into "col ASC|DESC" text, comma-joined.
func buildOrderBy(e entity, terms []OrderBy) (string, error) {
	var parts []string
	for _, term := range terms {
		if term.Field == "" {
			continue
		}
		col, err := columnFor(e, term.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if term.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}
