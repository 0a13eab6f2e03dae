package schema

import (
	"fmt"
	"strings"

	"github.com/sadopc/sqlayout/internal/suggest"
)

// maxSuggestions caps the names offered for an unresolved foreign key.
const maxSuggestions = 3

// Option configures validation.
type Option func(*options)

type options struct {
	strict bool
}

// WithStrictChecks enables the constraint combination checks SQLite itself
// would reject at execution time: more than one primary key column, a
// primary key that is also a foreign key or unique, WITHOUT ROWID without
// a primary key, AUTOINCREMENT outside an INTEGER rowid key, and generated
// primary keys.
func WithStrictChecks() Option {
	return func(o *options) { o.strict = true }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Validate checks the whole schema and returns the first violation found,
// walking tables then views in declaration order. A nil error means the
// schema can be compiled.
func Validate(s *Schema, opts ...Option) error {
	if s == nil || len(s.Tables) == 0 {
		return &ValidationError{Kind: KindEmptySchema, Detail: "schema declares no tables"}
	}
	v := &validator{opts: newOptions(opts), tables: make(map[string]*Table, len(s.Tables))}
	for i := range s.Tables {
		t := &s.Tables[i]
		if _, ok := v.tables[t.Name.Key()]; !ok {
			v.tables[t.Name.Key()] = t
			v.tableNames = append(v.tableNames, string(t.Name))
		}
	}

	entities := make(map[string]bool, len(s.Tables)+len(s.Views))
	for i := range s.Tables {
		t := &s.Tables[i]
		if err := v.table(t); err != nil {
			return err
		}
		if entities[t.Name.Key()] {
			return &ValidationError{Kind: KindDuplicateEntity, Entity: string(t.Name), Detail: "table declared more than once"}
		}
		entities[t.Name.Key()] = true
		if err := v.references(t); err != nil {
			return err
		}
		if err := v.strict(t); err != nil {
			return err
		}
	}
	for i := range s.Views {
		vw := &s.Views[i]
		if err := ValidateView(vw); err != nil {
			return err
		}
		if entities[vw.Name.Key()] {
			return &ValidationError{Kind: KindDuplicateEntity, Entity: string(vw.Name), Detail: "name already used by a table or view"}
		}
		entities[vw.Name.Key()] = true
	}
	return nil
}

// ValidateTable checks a single table without resolving its foreign key
// targets.
func ValidateTable(t *Table, opts ...Option) error {
	v := &validator{opts: newOptions(opts)}
	if err := v.table(t); err != nil {
		return err
	}
	return v.strict(t)
}

// nameOr returns the declared name for error reports, or kind when the
// name is empty.
func nameOr(id Identifier, kind string) string {
	if id == "" {
		return kind
	}
	return string(id)
}

// ValidateView checks a single view.
func ValidateView(vw *View) error {
	if err := vw.Name.Check(); err != nil {
		return at(err, nameOr(vw.Name, "view"))
	}
	name := string(vw.Name)
	if len(vw.Columns) == 0 {
		return &ValidationError{Kind: KindEmptyView, Entity: name, Detail: "view declares no columns"}
	}
	seen := make(map[string]bool, len(vw.Columns))
	for i, c := range vw.Columns {
		if err := c.Name.Check(); err != nil {
			return at(err, fmt.Sprintf("%s.#%d", name, i+1))
		}
		if seen[c.Name.Key()] {
			return &ValidationError{Kind: KindDuplicateColumn, Entity: name + "." + string(c.Name), Detail: "view column declared more than once"}
		}
		seen[c.Name.Key()] = true
	}
	if trimStatement(vw.Select) == "" {
		return &ValidationError{Kind: KindEmptyExpression, Entity: name, Detail: "view select is empty"}
	}
	return nil
}

type validator struct {
	opts       options
	tables     map[string]*Table
	tableNames []string
}

func (v *validator) table(t *Table) error {
	if err := t.Name.Check(); err != nil {
		return at(err, nameOr(t.Name, "table"))
	}
	name := string(t.Name)
	if len(t.Columns) == 0 {
		return &ValidationError{Kind: KindEmptyTable, Entity: name, Detail: "table declares no columns"}
	}
	seen := make(map[string]bool, len(t.Columns))
	for i := range t.Columns {
		c := &t.Columns[i]
		if err := c.Name.Check(); err != nil {
			return at(err, fmt.Sprintf("%s.#%d", name, i+1))
		}
		entity := name + "." + string(c.Name)
		if seen[c.Name.Key()] {
			return &ValidationError{Kind: KindDuplicateColumn, Entity: entity, Detail: "column declared more than once"}
		}
		seen[c.Name.Key()] = true
		if err := checkEnums(c); err != nil {
			return at(err, entity)
		}
		if c.Generated != nil && trimStatement(c.Generated.Expr) == "" {
			return &ValidationError{Kind: KindEmptyExpression, Entity: entity, Detail: "generated expression is empty"}
		}
		if fk := c.ForeignKey; fk != nil {
			if err := fk.Table.Check(); err != nil {
				return at(err, entity)
			}
			if err := fk.Column.Check(); err != nil {
				return at(err, entity)
			}
		}
	}
	return nil
}

func checkEnums(c *Column) error {
	bad := func(what string, value fmt.Stringer) error {
		return &ValidationError{Kind: KindInvalidType, Detail: fmt.Sprintf("%s %s", what, value)}
	}
	if !c.Type.Valid() {
		return bad("column type", c.Type)
	}
	if pk := c.PrimaryKey; pk != nil {
		if pk.Order != nil && !pk.Order.Valid() {
			return bad("sort order", *pk.Order)
		}
		if pk.OnConflict != nil && !pk.OnConflict.Valid() {
			return bad("conflict policy", *pk.OnConflict)
		}
	}
	if fk := c.ForeignKey; fk != nil {
		if fk.OnDelete != nil && !fk.OnDelete.Valid() {
			return bad("referential action", *fk.OnDelete)
		}
		if fk.OnUpdate != nil && !fk.OnUpdate.Valid() {
			return bad("referential action", *fk.OnUpdate)
		}
	}
	if u := c.Unique; u != nil && u.OnConflict != nil && !u.OnConflict.Valid() {
		return bad("conflict policy", *u.OnConflict)
	}
	if nn := c.NotNull; nn != nil && nn.OnConflict != nil && !nn.OnConflict.Valid() {
		return bad("conflict policy", *nn.OnConflict)
	}
	if g := c.Generated; g != nil && g.As != nil && !g.As.Valid() {
		return bad("generated mode", *g.As)
	}
	return nil
}

// references resolves every foreign key of t against the schema.
func (v *validator) references(t *Table) error {
	for _, c := range t.Columns {
		fk := c.ForeignKey
		if fk == nil {
			continue
		}
		entity := string(t.Name) + "." + string(c.Name)
		target, ok := v.tables[fk.Table.Key()]
		if !ok {
			return &ValidationError{
				Kind:        KindUnresolvedForeignKey,
				Entity:      entity,
				Detail:      fmt.Sprintf("table %q does not exist", fk.Table),
				Suggestions: suggest.Closest(string(fk.Table), v.tableNames, maxSuggestions),
			}
		}
		if _, ok := target.Column(fk.Column); !ok {
			names := make([]string, len(target.Columns))
			for i, tc := range target.Columns {
				names[i] = string(tc.Name)
			}
			return &ValidationError{
				Kind:        KindUnresolvedForeignKey,
				Entity:      entity,
				Detail:      fmt.Sprintf("column %q does not exist in table %q", fk.Column, target.Name),
				Suggestions: suggest.Closest(string(fk.Column), names, maxSuggestions),
			}
		}
	}
	return nil
}

func (v *validator) strict(t *Table) error {
	if !v.opts.strict {
		return nil
	}
	name := string(t.Name)
	conflict := func(entity, detail string) error {
		return &ValidationError{Kind: KindConstraintConflict, Entity: entity, Detail: detail}
	}
	pks := t.PrimaryKeys()
	if len(pks) > 1 {
		return conflict(name, fmt.Sprintf("%d primary key columns, at most one allowed", len(pks)))
	}
	if t.WithoutRowid && len(pks) == 0 {
		return conflict(name, "WITHOUT ROWID table needs a primary key")
	}
	for _, c := range pks {
		entity := name + "." + string(c.Name)
		switch {
		case c.ForeignKey != nil:
			return conflict(entity, "primary key cannot also be a foreign key")
		case c.Unique != nil:
			return conflict(entity, "primary key cannot also be unique")
		case c.Generated != nil:
			return conflict(entity, "generated column cannot be a primary key")
		case c.PrimaryKey.Autoincrement && c.Type != Integer:
			return conflict(entity, "AUTOINCREMENT needs an INTEGER primary key")
		case c.PrimaryKey.Autoincrement && t.WithoutRowid:
			return conflict(entity, "AUTOINCREMENT is not allowed on a WITHOUT ROWID table")
		case c.PrimaryKey.Autoincrement && c.PrimaryKey.Order != nil && *c.PrimaryKey.Order == Descending:
			return conflict(entity, "AUTOINCREMENT is not allowed on a descending primary key")
		}
	}
	if t.Strict {
		for _, c := range t.Columns {
			if c.Type == Numeric {
				return conflict(name+"."+string(c.Name), "NUMERIC is not a STRICT table type")
			}
		}
	}
	return nil
}

// trimStatement drops surrounding whitespace and trailing semicolons from
// an opaque SQL fragment.
func trimStatement(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "; \t\r\n")
}

// Fragment returns s the way it is embedded in a statement.
func Fragment(s string) string { return trimStatement(s) }
