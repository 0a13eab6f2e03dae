package ddl

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/sadopc/sqlayout/internal/resolve"
)

// StatementKind tells a table statement from a view statement.
type StatementKind int

const (
	KindTable StatementKind = iota + 1
	KindView
)

func (k StatementKind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindView:
		return "view"
	default:
		return fmt.Sprintf("StatementKind(%d)", int(k))
	}
}

// Statement is one CREATE statement without its terminating semicolon.
type Statement struct {
	Kind StatementKind
	Name string
	SQL  string
}

// Output is the ordered result of a compilation.
type Output struct {
	Statements []Statement
	// Forward lists deferrable references whose target is created after
	// the referring table.
	Forward []resolve.Edge

	transaction bool
}

const (
	beginStmt  = "BEGIN;\n"
	commitStmt = "COMMIT;"
)

// SQL returns the statements as one script, each terminated by ";" and
// separated by newlines, wrapped in BEGIN/COMMIT when the output was
// compiled WithTransaction.
func (o *Output) SQL() string {
	var b strings.Builder
	b.Grow(o.Len())
	if o.transaction {
		b.WriteString(beginStmt)
	}
	for i, s := range o.Statements {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.SQL)
		b.WriteByte(';')
	}
	if o.transaction {
		if len(o.Statements) > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(commitStmt)
	}
	return b.String()
}

// Len returns len(o.SQL()) without building the script.
func (o *Output) Len() int {
	n := 0
	for _, s := range o.Statements {
		n += len(s.SQL) + 1
	}
	if len(o.Statements) > 1 {
		n += len(o.Statements) - 1
	}
	if o.transaction {
		n += len(beginStmt) + len(commitStmt)
		if len(o.Statements) > 0 {
			n++
		}
	}
	return n
}

// Strings returns the bare statements, ready to be executed one by one.
func (o *Output) Strings() []string {
	out := make([]string, len(o.Statements))
	for i, s := range o.Statements {
		out[i] = s.SQL
	}
	return out
}

// Tables returns the number of table statements.
func (o *Output) Tables() int {
	n := 0
	for _, s := range o.Statements {
		if s.Kind == KindTable {
			n++
		}
	}
	return n
}

// Views returns the number of view statements.
func (o *Output) Views() int { return len(o.Statements) - o.Tables() }

// Fingerprint returns the xxh3 hash of SQL() as 16 hex digits.
func (o *Output) Fingerprint() string {
	return Fingerprint(o.SQL())
}

// Fingerprint returns the xxh3 hash of script as 16 hex digits.
func Fingerprint(script string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(script))
}
