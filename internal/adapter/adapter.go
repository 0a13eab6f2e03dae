// Package adapter defines the database sinks compiled DDL is applied to and
// read back from.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

var (
	ErrNotConnected   = errors.New("not connected to database")
	ErrUnknownAdapter = errors.New("unknown adapter")
)

// Adapter creates database connections.
type Adapter interface {
	Connect(ctx context.Context, dsn string, opts ...Option) (Connection, error)
	Name() string
}

// Connection represents an active database connection.
type Connection interface {
	// Execution
	Apply(ctx context.Context, stmts []string) (*ApplyResult, error)

	// Introspection
	Objects(ctx context.Context) ([]ObjectInfo, error)
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
	Indexes(ctx context.Context, table string) ([]IndexInfo, error)
	ForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Info
	DatabaseName() string
	AdapterName() string
}

// ApplyResult reports a successful Apply.
type ApplyResult struct {
	Statements int
	Duration   time.Duration
}

// ApplyError is returned when a statement fails. Statements before Index
// were rolled back with it.
type ApplyError struct {
	Index     int
	Statement string
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index+1, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// ObjectInfo describes a table or view in the database.
type ObjectInfo struct {
	Schema       string // "main" or "temp"
	Name         string
	Type         string // "table" or "view"
	Columns      int
	WithoutRowid bool
	Strict       bool
}

// ColumnInfo describes a column of a table or view.
type ColumnInfo struct {
	Name    string
	Type    string
	NotNull bool
	Default string
	PKIndex int // 1-based position in the primary key, 0 when not part of it
	Hidden  int // 0 normal, 2 virtual generated, 3 stored generated
}

// Generated reports whether the column is a generated column.
func (c ColumnInfo) Generated() bool { return c.Hidden == 2 || c.Hidden == 3 }

// IndexInfo describes an index, including the automatic ones behind
// UNIQUE and PRIMARY KEY constraints.
type IndexInfo struct {
	Name    string
	Unique  bool
	Origin  string // "c" created, "u" unique constraint, "pk" primary key
	Columns []string
}

// ForeignKeyInfo describes a single foreign key reference.
type ForeignKeyInfo struct {
	ID       int
	Table    string
	From     string
	To       string
	OnUpdate string
	OnDelete string
}

// Options configure a connection.
type Options struct {
	Logger *slog.Logger
}

// Option sets a connection option.
type Option func(*Options)

// WithLogger logs applied statements to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// ApplyOptions resolves opts over the defaults. Adapters call it from Connect.
func ApplyOptions(opts ...Option) Options {
	o := Options{Logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Registry holds all registered adapters by name.
var Registry = map[string]Adapter{}

// Register adds an adapter to the registry.
func Register(a Adapter) {
	Registry[a.Name()] = a
}

// Lookup returns the adapter registered under name.
func Lookup(name string) (Adapter, error) {
	a, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownAdapter, name, Names())
	}
	return a, nil
}

// Names returns the registered adapter names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
