package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// ReservedPrefix is the name prefix SQLite keeps for its internal objects.
const ReservedPrefix = "sqlite_"

var identPattern = regexp.MustCompile(`^[a-zA-Z_]+$`)

// Identifier is the name of a table, view or column.
type Identifier string

// NewIdentifier checks s against the identifier rules and returns it as an
// Identifier.
func NewIdentifier(s string) (Identifier, error) {
	id := Identifier(s)
	if err := id.Check(); err != nil {
		return "", err
	}
	return id, nil
}

// MustIdentifier is like NewIdentifier but panics on an invalid name.
func MustIdentifier(s string) Identifier {
	id, err := NewIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Check reports whether the identifier is legal: non-empty, letters and
// underscores only, and not starting with ReservedPrefix in any case.
func (id Identifier) Check() error {
	s := string(id)
	switch {
	case s == "":
		return &ValidationError{Kind: KindInvalidIdentifier, Detail: "name is empty"}
	case !identPattern.MatchString(s):
		return &ValidationError{
			Kind:   KindInvalidIdentifier,
			Detail: fmt.Sprintf("%q may only contain letters and underscores", s),
		}
	case strings.HasPrefix(strings.ToLower(s), ReservedPrefix):
		return &ValidationError{
			Kind:   KindInvalidIdentifier,
			Detail: fmt.Sprintf("%q uses the reserved prefix %q", s, ReservedPrefix),
		}
	}
	return nil
}

// String returns the identifier as declared.
func (id Identifier) String() string { return string(id) }

// Key returns the lookup key for the identifier. SQLite compares names
// case-insensitively, so "Users" and "users" collide.
func (id Identifier) Key() string { return strings.ToLower(string(id)) }

// Equal reports whether two identifiers name the same object.
func (id Identifier) Equal(other Identifier) bool { return id.Key() == other.Key() }
