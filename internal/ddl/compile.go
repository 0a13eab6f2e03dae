// Package ddl compiles a validated schema into SQLite CREATE statements.
package ddl

import (
	"strings"

	"github.com/sadopc/sqlayout/internal/resolve"
	"github.com/sadopc/sqlayout/internal/schema"
)

// Option configures compilation.
type Option func(*options)

type options struct {
	ifNotExists bool
	transaction bool
	pretty      bool
	resolve     []resolve.Option
	validate    []schema.Option
}

// WithIfNotExists adds IF NOT EXISTS to every statement.
func WithIfNotExists() Option { return func(o *options) { o.ifNotExists = true } }

// WithTransaction wraps Output.SQL in BEGIN and COMMIT.
func WithTransaction() Option { return func(o *options) { o.transaction = true } }

// WithPretty puts every table column on its own line and starts a view's
// select on a new line.
func WithPretty() Option { return func(o *options) { o.pretty = true } }

// WithResolveOptions passes options through to the dependency resolver.
func WithResolveOptions(opts ...resolve.Option) Option {
	return func(o *options) { o.resolve = append(o.resolve, opts...) }
}

// WithValidateOptions passes options through to schema validation.
func WithValidateOptions(opts ...schema.Option) Option {
	return func(o *options) { o.validate = append(o.validate, opts...) }
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Compile validates s, orders its tables and emits one statement per table
// followed by one per view. Nothing is emitted if any step fails.
func Compile(s *schema.Schema, opts ...Option) (*Output, error) {
	o := newOptions(opts)
	if err := schema.Validate(s, o.validate...); err != nil {
		return nil, err
	}
	plan, err := resolve.Order(s, o.resolve...)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Statements:  make([]Statement, 0, len(plan.Tables)+len(plan.Views)),
		Forward:     plan.Forward,
		transaction: o.transaction,
	}
	for i := range plan.Tables {
		out.Statements = append(out.Statements, o.table(&plan.Tables[i]))
	}
	for i := range plan.Views {
		out.Statements = append(out.Statements, o.view(&plan.Views[i]))
	}
	return out, nil
}

// CompileTable compiles a single table. It is validated as a schema of its
// own, so its foreign keys may only reference itself.
func CompileTable(t schema.Table, opts ...Option) (*Output, error) {
	o := newOptions(opts)
	if err := schema.Validate(&schema.Schema{Tables: []schema.Table{t}}, o.validate...); err != nil {
		return nil, err
	}
	return &Output{Statements: []Statement{o.table(&t)}, transaction: o.transaction}, nil
}

// CompileView compiles a single view.
func CompileView(v schema.View, opts ...Option) (*Output, error) {
	o := newOptions(opts)
	if err := schema.ValidateView(&v); err != nil {
		return nil, err
	}
	return &Output{Statements: []Statement{o.view(&v)}, transaction: o.transaction}, nil
}

// ---------------------------------------------------------------------------
// emission
// ---------------------------------------------------------------------------

func (o *options) table(t *schema.Table) Statement {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if o.ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(Quote(string(t.Name)))
	b.WriteString(" (")
	for i := range t.Columns {
		switch {
		case o.pretty:
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString("\n  ")
		case i > 0:
			b.WriteString(", ")
		}
		column(&b, &t.Columns[i])
	}
	if o.pretty {
		b.WriteByte('\n')
	}
	b.WriteByte(')')

	var tableOpts []string
	if t.WithoutRowid {
		tableOpts = append(tableOpts, "WITHOUT ROWID")
	}
	if t.Strict {
		tableOpts = append(tableOpts, "STRICT")
	}
	if len(tableOpts) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(tableOpts, ", "))
	}
	return Statement{Kind: KindTable, Name: string(t.Name), SQL: b.String()}
}

// column writes a column definition. Clauses always appear in the order
// PRIMARY KEY, NOT NULL, UNIQUE, REFERENCES, GENERATED.
func column(b *strings.Builder, c *schema.Column) {
	b.WriteString(Quote(string(c.Name)))
	b.WriteByte(' ')
	b.WriteString(c.Type.Keyword())

	if pk := c.PrimaryKey; pk != nil {
		b.WriteString(" PRIMARY KEY")
		if pk.Order != nil {
			b.WriteByte(' ')
			b.WriteString(pk.Order.Keyword())
		}
		conflict(b, pk.OnConflict)
		if pk.Autoincrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if nn := c.NotNull; nn != nil {
		b.WriteString(" NOT NULL")
		conflict(b, nn.OnConflict)
	}
	if u := c.Unique; u != nil {
		b.WriteString(" UNIQUE")
		conflict(b, u.OnConflict)
	}
	if fk := c.ForeignKey; fk != nil {
		b.WriteString(" REFERENCES ")
		b.WriteString(Quote(string(fk.Table)))
		b.WriteByte('(')
		b.WriteString(Quote(string(fk.Column)))
		b.WriteByte(')')
		if fk.OnDelete != nil {
			b.WriteString(" ON DELETE ")
			b.WriteString(fk.OnDelete.Keyword())
		}
		if fk.OnUpdate != nil {
			b.WriteString(" ON UPDATE ")
			b.WriteString(fk.OnUpdate.Keyword())
		}
		if fk.Deferrable {
			b.WriteString(" DEFERRABLE INITIALLY DEFERRED")
		}
	}
	if g := c.Generated; g != nil {
		b.WriteString(" GENERATED ALWAYS AS (")
		b.WriteString(schema.Fragment(g.Expr))
		b.WriteByte(')')
		if g.As != nil {
			b.WriteByte(' ')
			b.WriteString(g.As.Keyword())
		}
	}
}

func conflict(b *strings.Builder, p *schema.ConflictPolicy) {
	if p != nil {
		b.WriteByte(' ')
		b.WriteString(p.Clause())
	}
}

func (o *options) view(v *schema.View) Statement {
	var b strings.Builder
	b.WriteString("CREATE ")
	if v.Temp {
		b.WriteString("TEMP ")
	}
	b.WriteString("VIEW ")
	if o.ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(Quote(string(v.Name)))
	b.WriteString(" (")
	for i, c := range v.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Quote(string(c.Name)))
	}
	b.WriteString(") AS")
	if o.pretty {
		b.WriteByte('\n')
	} else {
		b.WriteByte(' ')
	}
	b.WriteString(schema.Fragment(v.Select))
	return Statement{Kind: KindView, Name: string(v.Name), SQL: b.String()}
}
