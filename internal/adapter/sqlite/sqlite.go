package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sadopc/sqlayout/internal/adapter"
	"github.com/sadopc/sqlayout/internal/ddl"

	_ "modernc.org/sqlite"
)

func init() {
	adapter.Register(&sqliteAdapter{})
}

// sqliteAdapter implements adapter.Adapter for SQLite databases.
type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string { return "sqlite" }

func (a *sqliteAdapter) Connect(ctx context.Context, dsn string, opts ...adapter.Option) (adapter.Connection, error) {
	dsn = normalizeDSN(dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// PRAGMAs are per connection and every :memory: connection is its own
	// database, so keep a single one.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite enable foreign keys: %w", err)
	}

	return newConn(db, dsn, adapter.ApplyOptions(opts...)), nil
}

func newConn(db *sql.DB, dsn string, o adapter.Options) *sqliteConn {
	dbName := dsn
	if dsn != ":memory:" {
		dbName = filepath.Base(strings.SplitN(dsn, "?", 2)[0])
	}
	return &sqliteConn{
		db:     db,
		dbName: dbName,
		log:    o.Logger.With("adapter", "sqlite", "database", dbName),
	}
}

// normalizeDSN strips common SQLite URI prefixes.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	if strings.HasPrefix(dsn, "file:") {
		return strings.TrimPrefix(dsn, "file:")
	}
	return dsn
}

// sqliteConn implements adapter.Connection.
type sqliteConn struct {
	db     *sql.DB
	dbName string
	log    *slog.Logger
}

func (c *sqliteConn) AdapterName() string  { return "sqlite" }
func (c *sqliteConn) DatabaseName() string { return c.dbName }

func (c *sqliteConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *sqliteConn) Close() error {
	return c.db.Close()
}

// Apply runs stmts in one transaction. The first failing statement rolls
// back everything before it.
func (c *sqliteConn) Apply(ctx context.Context, stmts []string) (*adapter.ApplyResult, error) {
	start := time.Now()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite begin: %w", err)
	}
	for i, stmt := range stmts {
		c.log.Debug("apply statement", "index", i, "statement", firstLine(stmt))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				c.log.Warn("rollback failed", "error", rbErr)
			}
			return nil, &adapter.ApplyError{Index: i, Statement: stmt, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite commit: %w", err)
	}

	res := &adapter.ApplyResult{Statements: len(stmts), Duration: time.Since(start)}
	c.log.Info("applied", "statements", res.Statements, "duration", res.Duration)
	return res, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// Objects returns every user table and view in the main and temp schemas,
// main first, each sorted by name.
func (c *sqliteConn) Objects(ctx context.Context) ([]adapter.ObjectInfo, error) {
	rows, err := c.db.QueryContext(ctx, "PRAGMA table_list")
	if err != nil {
		return nil, fmt.Errorf("sqlite table_list: %w", err)
	}
	defer rows.Close()

	var objects []adapter.ObjectInfo
	for rows.Next() {
		var (
			obj          adapter.ObjectInfo
			withoutRowid int
			strict       int
		)
		if err := rows.Scan(&obj.Schema, &obj.Name, &obj.Type, &obj.Columns, &withoutRowid, &strict); err != nil {
			return nil, fmt.Errorf("sqlite table_list scan: %w", err)
		}
		if strings.HasPrefix(strings.ToLower(obj.Name), "sqlite_") {
			continue
		}
		if obj.Type != "table" && obj.Type != "view" {
			continue
		}
		obj.WithoutRowid = withoutRowid == 1
		obj.Strict = strict == 1
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(objects, func(i, j int) bool {
		if objects[i].Schema != objects[j].Schema {
			return schemaRank(objects[i].Schema) < schemaRank(objects[j].Schema)
		}
		return objects[i].Name < objects[j].Name
	})
	return objects, nil
}

func schemaRank(name string) int {
	switch name {
	case "main":
		return 0
	case "temp":
		return 1
	default:
		return 2
	}
}

// Columns returns column metadata for the given table or view using
// PRAGMA table_xinfo, which also lists generated columns.
func (c *sqliteConn) Columns(ctx context.Context, table string) ([]adapter.ColumnInfo, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_xinfo(%s)", ddl.Quote(table)))
	if err != nil {
		return nil, fmt.Errorf("sqlite columns: %w", err)
	}
	defer rows.Close()

	var columns []adapter.ColumnInfo
	for rows.Next() {
		var (
			cid       int
			col       adapter.ColumnInfo
			notNull   int
			dfltValue sql.NullString
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dfltValue, &col.PKIndex, &col.Hidden); err != nil {
			return nil, fmt.Errorf("sqlite columns scan: %w", err)
		}
		col.NotNull = notNull == 1
		if dfltValue.Valid {
			col.Default = dfltValue.String
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// Indexes returns index information for the given table.
func (c *sqliteConn) Indexes(ctx context.Context, table string) ([]adapter.IndexInfo, error) {
	listRows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", ddl.Quote(table)))
	if err != nil {
		return nil, fmt.Errorf("sqlite index_list: %w", err)
	}

	var indexes []adapter.IndexInfo
	for listRows.Next() {
		var (
			seq     int
			idx     adapter.IndexInfo
			unique  int
			partial int
		)
		if err := listRows.Scan(&seq, &idx.Name, &unique, &idx.Origin, &partial); err != nil {
			listRows.Close()
			return nil, fmt.Errorf("sqlite index_list scan: %w", err)
		}
		idx.Unique = unique == 1
		indexes = append(indexes, idx)
	}
	listRows.Close()
	if err := listRows.Err(); err != nil {
		return nil, err
	}

	// The connection pool holds one connection, so index_info can only run
	// once index_list has been closed.
	for i := range indexes {
		cols, err := c.indexColumns(ctx, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = cols
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i].Name < indexes[j].Name })
	return indexes, nil
}

func (c *sqliteConn) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", ddl.Quote(index)))
	if err != nil {
		return nil, fmt.Errorf("sqlite index_info: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("sqlite index_info scan: %w", err)
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

// ForeignKeys returns the foreign key references of the given table.
func (c *sqliteConn) ForeignKeys(ctx context.Context, table string) ([]adapter.ForeignKeyInfo, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", ddl.Quote(table)))
	if err != nil {
		return nil, fmt.Errorf("sqlite foreign_key_list: %w", err)
	}
	defer rows.Close()

	var fks []adapter.ForeignKeyInfo
	for rows.Next() {
		var (
			fk    adapter.ForeignKeyInfo
			seq   int
			to    sql.NullString
			match string
		)
		if err := rows.Scan(&fk.ID, &seq, &fk.Table, &fk.From, &to, &fk.OnUpdate, &fk.OnDelete, &match); err != nil {
			return nil, fmt.Errorf("sqlite foreign_key_list scan: %w", err)
		}
		fk.To = to.String
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(fks, func(i, j int) bool { return fks[i].From < fks[j].From })
	return fks, nil
}
