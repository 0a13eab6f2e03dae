package schema

// PrimaryKey marks a column as the table's primary key.
type PrimaryKey struct {
	Order         *SortOrder
	OnConflict    *ConflictPolicy
	Autoincrement bool
}

// ForeignKey references a column of another (or the same) table by name.
type ForeignKey struct {
	Table    Identifier
	Column   Identifier
	OnDelete *ReferentialAction
	OnUpdate *ReferentialAction
	// Deferrable emits DEFERRABLE INITIALLY DEFERRED, and lets the
	// reference take part in a creation-order cycle.
	Deferrable bool
}

// Unique marks a column as unique.
type Unique struct {
	OnConflict *ConflictPolicy
}

// NotNull marks a column as not nullable.
type NotNull struct {
	OnConflict *ConflictPolicy
}

// Generated makes a column computed from Expr. A nil As leaves the mode to
// SQLite, which defaults to VIRTUAL.
type Generated struct {
	Expr string
	As   *GeneratedMode
}

// Column is one column of a table. Each constraint slot is nil when absent.
type Column struct {
	Name       Identifier
	Type       ColumnType
	PrimaryKey *PrimaryKey
	ForeignKey *ForeignKey
	Unique     *Unique
	NotNull    *NotNull
	Generated  *Generated
}

// Table is a CREATE TABLE definition.
type Table struct {
	Name         Identifier
	Columns      []Column
	WithoutRowid bool
	Strict       bool
}

// Column returns the column with the given name.
func (t *Table) Column(name Identifier) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name.Equal(name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// PrimaryKeys returns the columns that carry a primary key constraint.
func (t *Table) PrimaryKeys() []*Column {
	var out []*Column
	for i := range t.Columns {
		if t.Columns[i].PrimaryKey != nil {
			out = append(out, &t.Columns[i])
		}
	}
	return out
}

// References returns the foreign keys of the table in column order,
// self-references included.
func (t *Table) References() []ForeignKey {
	var out []ForeignKey
	for _, c := range t.Columns {
		if c.ForeignKey != nil {
			out = append(out, *c.ForeignKey)
		}
	}
	return out
}

// Dependencies returns the distinct tables t references, in column order,
// excluding t itself.
func (t *Table) Dependencies() []Identifier {
	var out []Identifier
	seen := map[string]bool{t.Name.Key(): true}
	for _, c := range t.Columns {
		if c.ForeignKey == nil || seen[c.ForeignKey.Table.Key()] {
			continue
		}
		seen[c.ForeignKey.Table.Key()] = true
		out = append(out, c.ForeignKey.Table)
	}
	return out
}

// ViewColumn is one output column of a view.
type ViewColumn struct {
	Name Identifier
}

// View is a CREATE VIEW definition. Select is opaque SQL text.
type View struct {
	Name    Identifier
	Temp    bool
	Select  string
	Columns []ViewColumn
}

// Schema is an ordered set of tables followed by views.
type Schema struct {
	Tables []Table
	Views  []View
}

// Table returns the table with the given name.
func (s *Schema) Table(name Identifier) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name.Equal(name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// View returns the view with the given name.
func (s *Schema) View(name Identifier) (*View, bool) {
	for i := range s.Views {
		if s.Views[i].Name.Equal(name) {
			return &s.Views[i], true
		}
	}
	return nil, false
}

// Ptr returns a pointer to v. It is a convenience for filling the optional
// enum fields of the constraint types.
func Ptr[T any](v T) *T { return &v }
