package schema

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// ColumnType is the storage class of a column.
type ColumnType int

const (
	Blob ColumnType = iota + 1
	Numeric
	Integer
	Real
	Text
)

var columnTypeNames = [...]string{"", "blob", "numeric", "integer", "real", "text"}

// SortOrder is the direction of a primary key index.
type SortOrder int

const (
	Ascending SortOrder = iota + 1
	Descending
)

var sortOrderNames = [...]string{"", "Ascending", "Descending"}
var sortOrderKeywords = [...]string{"", "ASC", "DESC"}

// ConflictPolicy is the ON CONFLICT resolution of a column constraint.
type ConflictPolicy int

const (
	Rollback ConflictPolicy = iota + 1
	Abort
	Fail
	Ignore
	Replace
)

var conflictPolicyNames = [...]string{"", "Rollback", "Abort", "Fail", "Ignore", "Replace"}

// ReferentialAction is what happens to a referring row when its parent
// row is deleted or updated.
type ReferentialAction int

const (
	SetNull ReferentialAction = iota + 1
	SetDefault
	Cascade
	Restrict
	NoAction
)

var referentialActionNames = [...]string{"", "Set Null", "Set Default", "Cascade", "Restrict", "No Action"}

// GeneratedMode selects whether a generated column is computed on read or
// stored on write.
type GeneratedMode int

const (
	Virtual GeneratedMode = iota + 1
	Stored
)

var generatedModeNames = [...]string{"", "Virtual", "Stored"}

// ---------------------------------------------------------------------------
// ColumnType
// ---------------------------------------------------------------------------

// ParseColumnType parses a document type name such as "integer".
func ParseColumnType(s string) (ColumnType, error) {
	return parseName[ColumnType]("column type", columnTypeNames[:], s)
}

func (t ColumnType) Valid() bool { return t >= Blob && t <= Text }

func (t ColumnType) String() string { return nameOf(columnTypeNames[:], int(t)) }

// Keyword returns the SQL type name.
func (t ColumnType) Keyword() string { return strings.ToUpper(t.String()) }

func (t ColumnType) MarshalText() ([]byte, error) { return marshalName(t.Valid(), t.String(), "column type", int(t)) }

func (t *ColumnType) UnmarshalText(b []byte) error {
	v, err := ParseColumnType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ---------------------------------------------------------------------------
// SortOrder
// ---------------------------------------------------------------------------

// ParseSortOrder parses "Ascending" or "Descending".
func ParseSortOrder(s string) (SortOrder, error) {
	return parseName[SortOrder]("sort order", sortOrderNames[:], s)
}

func (o SortOrder) Valid() bool { return o == Ascending || o == Descending }

func (o SortOrder) String() string { return nameOf(sortOrderNames[:], int(o)) }

func (o SortOrder) Keyword() string { return nameOf(sortOrderKeywords[:], int(o)) }

func (o SortOrder) MarshalText() ([]byte, error) { return marshalName(o.Valid(), o.String(), "sort order", int(o)) }

func (o *SortOrder) UnmarshalText(b []byte) error {
	v, err := ParseSortOrder(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// ---------------------------------------------------------------------------
// ConflictPolicy
// ---------------------------------------------------------------------------

// ParseConflictPolicy parses a policy name such as "Replace".
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	return parseName[ConflictPolicy]("conflict policy", conflictPolicyNames[:], s)
}

func (p ConflictPolicy) Valid() bool { return p >= Rollback && p <= Replace }

func (p ConflictPolicy) String() string { return nameOf(conflictPolicyNames[:], int(p)) }

// Keyword returns the policy keyword, e.g. "REPLACE".
func (p ConflictPolicy) Keyword() string { return strings.ToUpper(p.String()) }

// Clause returns the full clause, e.g. "ON CONFLICT REPLACE".
func (p ConflictPolicy) Clause() string { return "ON CONFLICT " + p.Keyword() }

func (p ConflictPolicy) MarshalText() ([]byte, error) {
	return marshalName(p.Valid(), p.String(), "conflict policy", int(p))
}

func (p *ConflictPolicy) UnmarshalText(b []byte) error {
	v, err := ParseConflictPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ---------------------------------------------------------------------------
// ReferentialAction
// ---------------------------------------------------------------------------

// ParseReferentialAction parses an action name. "Set Null", "set_null" and
// "SETNULL" are all accepted.
func ParseReferentialAction(s string) (ReferentialAction, error) {
	return parseName[ReferentialAction]("referential action", referentialActionNames[:], s)
}

func (a ReferentialAction) Valid() bool { return a >= SetNull && a <= NoAction }

func (a ReferentialAction) String() string { return nameOf(referentialActionNames[:], int(a)) }

func (a ReferentialAction) Keyword() string { return strings.ToUpper(a.String()) }

func (a ReferentialAction) MarshalText() ([]byte, error) {
	return marshalName(a.Valid(), a.String(), "referential action", int(a))
}

func (a *ReferentialAction) UnmarshalText(b []byte) error {
	v, err := ParseReferentialAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ---------------------------------------------------------------------------
// GeneratedMode
// ---------------------------------------------------------------------------

// ParseGeneratedMode parses "Virtual" or "Stored".
func ParseGeneratedMode(s string) (GeneratedMode, error) {
	return parseName[GeneratedMode]("generated mode", generatedModeNames[:], s)
}

func (m GeneratedMode) Valid() bool { return m == Virtual || m == Stored }

func (m GeneratedMode) String() string { return nameOf(generatedModeNames[:], int(m)) }

func (m GeneratedMode) Keyword() string { return strings.ToUpper(m.String()) }

func (m GeneratedMode) MarshalText() ([]byte, error) {
	return marshalName(m.Valid(), m.String(), "generated mode", int(m))
}

func (m *GeneratedMode) UnmarshalText(b []byte) error {
	v, err := ParseGeneratedMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// foldName reduces a name to its comparison form: case folded, with spaces
// and underscores removed.
func foldName(s string) string {
	s = cases.Fold().String(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "").Replace(s)
}

func parseName[T ~int](what string, names []string, s string) (T, error) {
	want := foldName(s)
	if want != "" {
		for i := 1; i < len(names); i++ {
			if foldName(names[i]) == want {
				return T(i), nil
			}
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}

func nameOf(names []string, i int) string {
	if i <= 0 || i >= len(names) {
		return fmt.Sprintf("invalid(%d)", i)
	}
	return names[i]
}

func marshalName(valid bool, name, what string, i int) ([]byte, error) {
	if !valid {
		return nil, fmt.Errorf("invalid %s %d", what, i)
	}
	return []byte(name), nil
}
