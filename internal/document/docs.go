package document

import (
	"fmt"

	"github.com/sadopc/sqlayout/internal/schema"
)

// The *Doc types mirror the document grammar with enums kept as text, so a
// bad value can be reported with its path.

type rootDoc struct {
	Schema *schemaDoc `yaml:"schema,omitempty"`
	Table  *tableDoc  `yaml:"table,omitempty"`
	View   *viewDoc   `yaml:"view,omitempty"`
}

type schemaDoc struct {
	Tables []tableDoc `yaml:"tables"`
	Views  []viewDoc  `yaml:"views,omitempty"`
}

type tableDoc struct {
	Name         string      `yaml:"name" xml:"name,attr"`
	WithoutRowid bool        `yaml:"without_rowid,omitempty" xml:"without_rowid,attr,omitempty"`
	Strict       bool        `yaml:"strict,omitempty" xml:"strict,attr,omitempty"`
	Columns      []columnDoc `yaml:"columns"`
}

type columnDoc struct {
	Name      string        `yaml:"name"`
	Type      string        `yaml:"type"`
	PK        *pkDoc        `yaml:"pk,omitempty"`
	FK        *fkDoc        `yaml:"fk,omitempty"`
	Unique    *conflictDoc  `yaml:"unique,omitempty"`
	NotNull   *conflictDoc  `yaml:"not_null,omitempty"`
	Generated *generatedDoc `yaml:"generated,omitempty"`
}

type pkDoc struct {
	Order         string `yaml:"order,omitempty" xml:"order,attr,omitempty"`
	OnConflict    string `yaml:"on_conflict,omitempty" xml:"on_conflict,attr,omitempty"`
	Autoincrement bool   `yaml:"autoincrement,omitempty" xml:"autoincrement,attr,omitempty"`
}

type fkDoc struct {
	ForeignTable  string `yaml:"foreign_table" xml:"foreign_table,attr"`
	ForeignColumn string `yaml:"foreign_column" xml:"foreign_column,attr"`
	OnDelete      string `yaml:"on_delete,omitempty" xml:"on_delete,attr,omitempty"`
	OnUpdate      string `yaml:"on_update,omitempty" xml:"on_update,attr,omitempty"`
	Deferrable    bool   `yaml:"deferrable,omitempty" xml:"deferrable,attr,omitempty"`
}

type conflictDoc struct {
	OnConflict string `yaml:"on_conflict,omitempty" xml:"on_conflict,attr,omitempty"`
}

type generatedDoc struct {
	Expr string `yaml:"expr" xml:"expr,attr"`
	As   string `yaml:"as,omitempty" xml:"as,attr,omitempty"`
}

type viewDoc struct {
	Name    string          `yaml:"name"`
	Temp    bool            `yaml:"temp,omitempty"`
	Select  string          `yaml:"select"`
	Columns []viewColumnDoc `yaml:"columns"`
}

type viewColumnDoc struct {
	Name string `yaml:"name" xml:"name,attr"`
}

// ---------------------------------------------------------------------------
// document -> schema
// ---------------------------------------------------------------------------

func (r *rootDoc) document() (*Document, error) {
	roots := 0
	for _, set := range []bool{r.Schema != nil, r.Table != nil, r.View != nil} {
		if set {
			roots++
		}
	}
	if roots != 1 {
		return nil, &DecodeError{Err: ErrNoRoot}
	}

	switch {
	case r.Table != nil:
		t, err := r.Table.table("table")
		if err != nil {
			return nil, err
		}
		return &Document{Root: RootTable, table: t}, nil
	case r.View != nil:
		return &Document{Root: RootView, view: r.View.view()}, nil
	}

	s := &schema.Schema{}
	for i := range r.Schema.Tables {
		t, err := r.Schema.Tables[i].table(fmt.Sprintf("schema.tables[%d]", i))
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, t)
	}
	for i := range r.Schema.Views {
		s.Views = append(s.Views, r.Schema.Views[i].view())
	}
	return &Document{Root: RootSchema, schema: s}, nil
}

func (d *tableDoc) table(path string) (schema.Table, error) {
	t := schema.Table{
		Name:         schema.Identifier(d.Name),
		WithoutRowid: d.WithoutRowid,
		Strict:       d.Strict,
	}
	for i := range d.Columns {
		c, err := d.Columns[i].column(fmt.Sprintf("%s.columns[%d]", path, i))
		if err != nil {
			return schema.Table{}, err
		}
		t.Columns = append(t.Columns, c)
	}
	return t, nil
}

func (d *columnDoc) column(path string) (schema.Column, error) {
	typ, err := schema.ParseColumnType(d.Type)
	if err != nil {
		return schema.Column{}, &DecodeError{Path: path + ".type", Err: err}
	}
	c := schema.Column{Name: schema.Identifier(d.Name), Type: typ}

	if d.PK != nil {
		pk := &schema.PrimaryKey{Autoincrement: d.PK.Autoincrement}
		if pk.Order, err = optional(d.PK.Order, schema.ParseSortOrder); err != nil {
			return c, &DecodeError{Path: path + ".pk.order", Err: err}
		}
		if pk.OnConflict, err = optional(d.PK.OnConflict, schema.ParseConflictPolicy); err != nil {
			return c, &DecodeError{Path: path + ".pk.on_conflict", Err: err}
		}
		c.PrimaryKey = pk
	}
	if d.FK != nil {
		fk := &schema.ForeignKey{
			Table:      schema.Identifier(d.FK.ForeignTable),
			Column:     schema.Identifier(d.FK.ForeignColumn),
			Deferrable: d.FK.Deferrable,
		}
		if fk.OnDelete, err = optional(d.FK.OnDelete, schema.ParseReferentialAction); err != nil {
			return c, &DecodeError{Path: path + ".fk.on_delete", Err: err}
		}
		if fk.OnUpdate, err = optional(d.FK.OnUpdate, schema.ParseReferentialAction); err != nil {
			return c, &DecodeError{Path: path + ".fk.on_update", Err: err}
		}
		c.ForeignKey = fk
	}
	if d.Unique != nil {
		p, err := optional(d.Unique.OnConflict, schema.ParseConflictPolicy)
		if err != nil {
			return c, &DecodeError{Path: path + ".unique.on_conflict", Err: err}
		}
		c.Unique = &schema.Unique{OnConflict: p}
	}
	if d.NotNull != nil {
		p, err := optional(d.NotNull.OnConflict, schema.ParseConflictPolicy)
		if err != nil {
			return c, &DecodeError{Path: path + ".not_null.on_conflict", Err: err}
		}
		c.NotNull = &schema.NotNull{OnConflict: p}
	}
	if d.Generated != nil {
		mode, err := optional(d.Generated.As, schema.ParseGeneratedMode)
		if err != nil {
			return c, &DecodeError{Path: path + ".generated.as", Err: err}
		}
		c.Generated = &schema.Generated{Expr: d.Generated.Expr, As: mode}
	}
	return c, nil
}

func (d *viewDoc) view() schema.View {
	v := schema.View{Name: schema.Identifier(d.Name), Temp: d.Temp, Select: d.Select}
	for _, c := range d.Columns {
		v.Columns = append(v.Columns, schema.ViewColumn{Name: schema.Identifier(c.Name)})
	}
	return v
}

// optional parses s unless it is empty, which means the value is absent.
func optional[T any](s string, parse func(string) (T, error)) (*T, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ---------------------------------------------------------------------------
// schema -> document
// ---------------------------------------------------------------------------

func schemaToDoc(s *schema.Schema) *schemaDoc {
	d := &schemaDoc{Tables: make([]tableDoc, 0, len(s.Tables))}
	for i := range s.Tables {
		d.Tables = append(d.Tables, tableToDoc(&s.Tables[i]))
	}
	for _, v := range s.Views {
		vd := viewDoc{Name: string(v.Name), Temp: v.Temp, Select: schema.Fragment(v.Select)}
		for _, c := range v.Columns {
			vd.Columns = append(vd.Columns, viewColumnDoc{Name: string(c.Name)})
		}
		d.Views = append(d.Views, vd)
	}
	return d
}

func tableToDoc(t *schema.Table) tableDoc {
	d := tableDoc{Name: string(t.Name), WithoutRowid: t.WithoutRowid, Strict: t.Strict}
	for _, c := range t.Columns {
		cd := columnDoc{Name: string(c.Name), Type: c.Type.String()}
		if pk := c.PrimaryKey; pk != nil {
			cd.PK = &pkDoc{Order: text(pk.Order), OnConflict: text(pk.OnConflict), Autoincrement: pk.Autoincrement}
		}
		if fk := c.ForeignKey; fk != nil {
			cd.FK = &fkDoc{
				ForeignTable:  string(fk.Table),
				ForeignColumn: string(fk.Column),
				OnDelete:      text(fk.OnDelete),
				OnUpdate:      text(fk.OnUpdate),
				Deferrable:    fk.Deferrable,
			}
		}
		if u := c.Unique; u != nil {
			cd.Unique = &conflictDoc{OnConflict: text(u.OnConflict)}
		}
		if nn := c.NotNull; nn != nil {
			cd.NotNull = &conflictDoc{OnConflict: text(nn.OnConflict)}
		}
		if g := c.Generated; g != nil {
			cd.Generated = &generatedDoc{Expr: schema.Fragment(g.Expr), As: text(g.As)}
		}
		d.Columns = append(d.Columns, cd)
	}
	return d
}

func text[T fmt.Stringer](v *T) string {
	if v == nil {
		return ""
	}
	return (*v).String()
}
