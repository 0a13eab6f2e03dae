package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the rule a schema violates.
type Kind int

const (
	KindInvalidIdentifier Kind = iota + 1
	KindInvalidType
	KindEmptySchema
	KindEmptyTable
	KindEmptyView
	KindDuplicateColumn
	KindDuplicateEntity
	KindDuplicateConstraint
	KindEmptyExpression
	KindUnresolvedForeignKey
	KindConstraintConflict
)

var kindNames = map[Kind]string{
	KindInvalidIdentifier:    "invalid identifier",
	KindInvalidType:          "invalid type",
	KindEmptySchema:          "empty schema",
	KindEmptyTable:           "empty table",
	KindEmptyView:            "empty view",
	KindDuplicateColumn:      "duplicate column name",
	KindDuplicateEntity:      "duplicate table or view name",
	KindDuplicateConstraint:  "duplicate constraint",
	KindEmptyExpression:      "empty expression",
	KindUnresolvedForeignKey: "unresolved foreign key",
	KindConstraintConflict:   "constraint conflict",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinel errors, one per Kind, for use with errors.Is.
var (
	ErrInvalidIdentifier    = errors.New(KindInvalidIdentifier.String())
	ErrInvalidType          = errors.New(KindInvalidType.String())
	ErrEmptySchema          = errors.New(KindEmptySchema.String())
	ErrEmptyTable           = errors.New(KindEmptyTable.String())
	ErrEmptyView            = errors.New(KindEmptyView.String())
	ErrDuplicateColumn      = errors.New(KindDuplicateColumn.String())
	ErrDuplicateEntity      = errors.New(KindDuplicateEntity.String())
	ErrDuplicateConstraint  = errors.New(KindDuplicateConstraint.String())
	ErrEmptyExpression      = errors.New(KindEmptyExpression.String())
	ErrUnresolvedForeignKey = errors.New(KindUnresolvedForeignKey.String())
	ErrConstraintConflict   = errors.New(KindConstraintConflict.String())
)

var kindSentinels = map[Kind]error{
	KindInvalidIdentifier:    ErrInvalidIdentifier,
	KindInvalidType:          ErrInvalidType,
	KindEmptySchema:          ErrEmptySchema,
	KindEmptyTable:           ErrEmptyTable,
	KindEmptyView:            ErrEmptyView,
	KindDuplicateColumn:      ErrDuplicateColumn,
	KindDuplicateEntity:      ErrDuplicateEntity,
	KindDuplicateConstraint:  ErrDuplicateConstraint,
	KindEmptyExpression:      ErrEmptyExpression,
	KindUnresolvedForeignKey: ErrUnresolvedForeignKey,
	KindConstraintConflict:   ErrConstraintConflict,
}

// ValidationError describes the first rule a schema violates.
// Entity names the offending object: "table", "table.column" or "view".
type ValidationError struct {
	Kind        Kind
	Entity      string
	Detail      string
	Suggestions []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Entity != "" {
		fmt.Fprintf(&b, " %q", e.Entity)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

// Is reports whether target is the sentinel for the error's kind.
func (e *ValidationError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// IsValidationError returns true if the error is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// at fills in the entity of a ValidationError that does not carry one yet.
func at(err error, entity string) error {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Entity == "" {
		ve.Entity = entity
	}
	return err
}
