package schema

import "fmt"

// ColumnOption sets one constraint slot of a column.
type ColumnOption func(*Column) error

// PKOption configures a primary key.
type PKOption interface{ applyPK(*PrimaryKey) }

// FKOption configures a foreign key.
type FKOption interface{ applyFK(*ForeignKey) }

// ConflictOption configures a unique or not-null constraint.
type ConflictOption interface{ applyConflict(**ConflictPolicy) }

// GeneratedOption configures a generated column.
type GeneratedOption interface{ applyGenerated(*Generated) }

type orderOption SortOrder

func (o orderOption) applyPK(pk *PrimaryKey) { pk.Order = Ptr(SortOrder(o)) }

type autoincrementOption struct{}

func (autoincrementOption) applyPK(pk *PrimaryKey) { pk.Autoincrement = true }

type conflictOption ConflictPolicy

func (o conflictOption) applyPK(pk *PrimaryKey) { pk.OnConflict = Ptr(ConflictPolicy(o)) }

func (o conflictOption) applyConflict(p **ConflictPolicy) { *p = Ptr(ConflictPolicy(o)) }

type actionOption struct {
	onUpdate bool
	action   ReferentialAction
}

func (o actionOption) applyFK(fk *ForeignKey) {
	if o.onUpdate {
		fk.OnUpdate = Ptr(o.action)
	} else {
		fk.OnDelete = Ptr(o.action)
	}
}

type deferrableOption struct{}

func (deferrableOption) applyFK(fk *ForeignKey) { fk.Deferrable = true }

type modeOption GeneratedMode

func (o modeOption) applyGenerated(g *Generated) { g.As = Ptr(GeneratedMode(o)) }

// Asc orders the primary key ascending.
func Asc() PKOption { return orderOption(Ascending) }

// Desc orders the primary key descending.
func Desc() PKOption { return orderOption(Descending) }

// Autoincrement adds AUTOINCREMENT to the primary key.
func Autoincrement() PKOption { return autoincrementOption{} }

// OnConflict sets the conflict policy of a primary key, unique or not-null
// constraint.
func OnConflict(p ConflictPolicy) interface {
	PKOption
	ConflictOption
} {
	return conflictOption(p)
}

// OnDelete sets the ON DELETE action of a foreign key.
func OnDelete(a ReferentialAction) FKOption { return actionOption{action: a} }

// OnUpdate sets the ON UPDATE action of a foreign key.
func OnUpdate(a ReferentialAction) FKOption { return actionOption{onUpdate: true, action: a} }

// Deferrable makes the foreign key DEFERRABLE INITIALLY DEFERRED.
func Deferrable() FKOption { return deferrableOption{} }

// AsStored makes a generated column STORED.
func AsStored() GeneratedOption { return modeOption(Stored) }

// AsVirtual makes a generated column explicitly VIRTUAL.
func AsVirtual() GeneratedOption { return modeOption(Virtual) }

func duplicateSlot(what string) error {
	return &ValidationError{Kind: KindDuplicateConstraint, Detail: what + " set more than once"}
}

// PK makes the column the primary key.
func PK(opts ...PKOption) ColumnOption {
	return func(c *Column) error {
		if c.PrimaryKey != nil {
			return duplicateSlot("primary key")
		}
		pk := &PrimaryKey{}
		for _, o := range opts {
			o.applyPK(pk)
		}
		c.PrimaryKey = pk
		return nil
	}
}

// FK makes the column reference table.column.
func FK(table, column string, opts ...FKOption) ColumnOption {
	return func(c *Column) error {
		if c.ForeignKey != nil {
			return duplicateSlot("foreign key")
		}
		fk := &ForeignKey{Table: Identifier(table), Column: Identifier(column)}
		for _, o := range opts {
			o.applyFK(fk)
		}
		c.ForeignKey = fk
		return nil
	}
}

// UniqueKey adds a UNIQUE constraint.
func UniqueKey(opts ...ConflictOption) ColumnOption {
	return func(c *Column) error {
		if c.Unique != nil {
			return duplicateSlot("unique")
		}
		u := &Unique{}
		for _, o := range opts {
			o.applyConflict(&u.OnConflict)
		}
		c.Unique = u
		return nil
	}
}

// Required adds a NOT NULL constraint.
func Required(opts ...ConflictOption) ColumnOption {
	return func(c *Column) error {
		if c.NotNull != nil {
			return duplicateSlot("not null")
		}
		nn := &NotNull{}
		for _, o := range opts {
			o.applyConflict(&nn.OnConflict)
		}
		c.NotNull = nn
		return nil
	}
}

// GeneratedAs computes the column from expr.
func GeneratedAs(expr string, opts ...GeneratedOption) ColumnOption {
	return func(c *Column) error {
		if c.Generated != nil {
			return duplicateSlot("generated")
		}
		g := &Generated{Expr: expr}
		for _, o := range opts {
			o.applyGenerated(g)
		}
		c.Generated = g
		return nil
	}
}

// ---------------------------------------------------------------------------
// TableBuilder
// ---------------------------------------------------------------------------

// TableBuilder assembles a Table. Errors are collected and reported by Build.
type TableBuilder struct {
	table Table
	err   error
}

// NewTable starts a table definition.
func NewTable(name string) *TableBuilder {
	return &TableBuilder{table: Table{Name: Identifier(name)}}
}

// Column appends a column.
func (b *TableBuilder) Column(name string, typ ColumnType, opts ...ColumnOption) *TableBuilder {
	c := Column{Name: Identifier(name), Type: typ}
	for _, opt := range opts {
		if err := opt(&c); err != nil && b.err == nil {
			b.err = at(err, fmt.Sprintf("%s.%s", b.table.Name, name))
		}
	}
	b.table.Columns = append(b.table.Columns, c)
	return b
}

// WithoutRowid declares the table WITHOUT ROWID.
func (b *TableBuilder) WithoutRowid() *TableBuilder {
	b.table.WithoutRowid = true
	return b
}

// Strict declares the table STRICT.
func (b *TableBuilder) Strict() *TableBuilder {
	b.table.Strict = true
	return b
}

// Build returns the table after checking everything that does not depend on
// other tables. Foreign key targets are resolved when the table is part of
// a schema.
func (b *TableBuilder) Build(opts ...Option) (Table, error) {
	if b.err != nil {
		return Table{}, b.err
	}
	if err := ValidateTable(&b.table, opts...); err != nil {
		return Table{}, err
	}
	return b.table, nil
}

// ---------------------------------------------------------------------------
// ViewBuilder
// ---------------------------------------------------------------------------

// ViewBuilder assembles a View.
type ViewBuilder struct {
	view View
}

// NewView starts a view definition over selectSQL.
func NewView(name, selectSQL string) *ViewBuilder {
	return &ViewBuilder{view: View{Name: Identifier(name), Select: selectSQL}}
}

// Temp makes the view TEMP.
func (b *ViewBuilder) Temp() *ViewBuilder {
	b.view.Temp = true
	return b
}

// Column appends an output column name.
func (b *ViewBuilder) Column(name string) *ViewBuilder {
	b.view.Columns = append(b.view.Columns, ViewColumn{Name: Identifier(name)})
	return b
}

// Build returns the view after validation.
func (b *ViewBuilder) Build() (View, error) {
	if err := ValidateView(&b.view); err != nil {
		return View{}, err
	}
	return b.view, nil
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// Builder assembles a Schema from table and view builders.
type Builder struct {
	tables []*TableBuilder
	views  []*ViewBuilder
}

// NewSchema starts an empty schema.
func NewSchema() *Builder { return &Builder{} }

// Table appends a table.
func (b *Builder) Table(t *TableBuilder) *Builder {
	b.tables = append(b.tables, t)
	return b
}

// View appends a view. Views are always emitted after every table.
func (b *Builder) View(v *ViewBuilder) *Builder {
	b.views = append(b.views, v)
	return b
}

// Build assembles the schema and validates it as a whole.
func (b *Builder) Build(opts ...Option) (*Schema, error) {
	s := &Schema{}
	for _, tb := range b.tables {
		if tb.err != nil {
			return nil, tb.err
		}
		s.Tables = append(s.Tables, tb.table)
	}
	for _, vb := range b.views {
		s.Views = append(s.Views, vb.view)
	}
	if err := Validate(s, opts...); err != nil {
		return nil, err
	}
	return s, nil
}
