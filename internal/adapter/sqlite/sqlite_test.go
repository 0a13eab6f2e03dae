package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sadopc/sqlayout/internal/adapter"
	"github.com/sadopc/sqlayout/internal/ddl"
	"github.com/sadopc/sqlayout/internal/schema"
)

func TestSQLiteAdapter_Name(t *testing.T) {
	a := &sqliteAdapter{}
	if got := a.Name(); got != "sqlite" {
		t.Errorf("Name() = %q, want %q", got, "sqlite")
	}
}

func TestSQLiteAdapter_Registration(t *testing.T) {
	a, err := adapter.Lookup("sqlite")
	if err != nil {
		t.Fatalf("sqlite adapter not found in registry: %v", err)
	}
	if a.Name() != "sqlite" {
		t.Errorf("registered adapter Name() = %q, want %q", a.Name(), "sqlite")
	}
}

func TestNormalizeDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "sqlite:// prefix stripped",
			dsn:  "sqlite:///path/to/file.db",
			want: "/path/to/file.db",
		},
		{
			name: "file: prefix stripped",
			dsn:  "file:test.db",
			want: "test.db",
		},
		{
			name: "memory unchanged",
			dsn:  ":memory:",
			want: ":memory:",
		},
		{
			name: "relative path unchanged",
			dsn:  "relative/path.db",
			want: "relative/path.db",
		},
		{
			name: "empty string",
			dsn:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeDSN(tt.dsn)
			if got != tt.want {
				t.Errorf("normalizeDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestDatabaseName(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ":memory:"},
		{"/var/lib/app/data.db", "data.db"},
		{"data.db?_pragma=busy_timeout(5000)", "data.db"},
	}
	for _, tt := range tests {
		c := newConn(nil, tt.dsn, adapter.ApplyOptions())
		if got := c.DatabaseName(); got != tt.want {
			t.Errorf("DatabaseName() for %q = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// In-memory integration tests (no external database required)
// ---------------------------------------------------------------------------

func openMemory(t *testing.T) adapter.Connection {
	t.Helper()
	a := &sqliteAdapter{}
	conn, err := a.Connect(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Connect(:memory:) error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func blogStatements(t *testing.T) []string {
	t.Helper()
	s, err := schema.NewSchema().
		Table(schema.NewTable("posts").
			Column("id", schema.Integer, schema.PK()).
			Column("author", schema.Integer, schema.FK("users", "id", schema.OnDelete(schema.Cascade))).
			Column("title", schema.Text, schema.Required()).
			Column("slug", schema.Text, schema.GeneratedAs("lower(title)", schema.AsStored())).
			Strict()).
		Table(schema.NewTable("users").
			Column("id", schema.Integer, schema.PK()).
			Column("email", schema.Text, schema.UniqueKey(), schema.Required())).
		View(schema.NewView("recent", "SELECT title FROM posts ORDER BY id DESC LIMIT 10").
			Temp().
			Column("title")).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	out, err := ddl.Compile(s)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	return out.Strings()
}

func TestConnect_InMemory(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	if err := conn.Ping(ctx); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
	if got := conn.AdapterName(); got != "sqlite" {
		t.Errorf("AdapterName() = %q, want %q", got, "sqlite")
	}
	if got := conn.DatabaseName(); got != ":memory:" {
		t.Errorf("DatabaseName() = %q, want %q", got, ":memory:")
	}
}

func TestApply_InMemory(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	stmts := blogStatements(t)
	res, err := conn.Apply(ctx, stmts)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if res.Statements != len(stmts) {
		t.Errorf("Statements = %d, want %d", res.Statements, len(stmts))
	}

	objects, err := conn.Objects(ctx)
	if err != nil {
		t.Fatalf("Objects() error: %v", err)
	}
	want := []struct{ schema, name, typ string }{
		{"main", "posts", "table"},
		{"main", "users", "table"},
		{"temp", "recent", "view"},
	}
	if len(objects) != len(want) {
		t.Fatalf("Objects() returned %d objects, want %d: %+v", len(objects), len(want), objects)
	}
	for i, w := range want {
		o := objects[i]
		if o.Schema != w.schema || o.Name != w.name || o.Type != w.typ {
			t.Errorf("objects[%d] = %s.%s (%s), want %s.%s (%s)", i, o.Schema, o.Name, o.Type, w.schema, w.name, w.typ)
		}
	}
	if !objects[0].Strict {
		t.Error("posts should be STRICT")
	}
	if objects[1].Strict {
		t.Error("users should not be STRICT")
	}
}

func TestColumns_InMemory(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	if _, err := conn.Apply(ctx, blogStatements(t)); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	cols, err := conn.Columns(ctx, "posts")
	if err != nil {
		t.Fatalf("Columns() error: %v", err)
	}
	if len(cols) != 4 {
		t.Fatalf("Columns() returned %d columns, want 4", len(cols))
	}
	if cols[0].Name != "id" || cols[0].PKIndex != 1 {
		t.Errorf("cols[0] = %+v, want id as primary key", cols[0])
	}
	if !cols[2].NotNull {
		t.Error("title should be NOT NULL")
	}
	if cols[3].Name != "slug" || !cols[3].Generated() {
		t.Errorf("cols[3] = %+v, want generated slug", cols[3])
	}
	if cols[3].Hidden != 3 {
		t.Errorf("slug Hidden = %d, want 3 (stored)", cols[3].Hidden)
	}
}

func TestIndexes_InMemory(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	if _, err := conn.Apply(ctx, blogStatements(t)); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	idx, err := conn.Indexes(ctx, "users")
	if err != nil {
		t.Fatalf("Indexes() error: %v", err)
	}
	if len(idx) != 1 {
		t.Fatalf("Indexes() returned %d indexes, want 1: %+v", len(idx), idx)
	}
	if !idx[0].Unique || idx[0].Origin != "u" {
		t.Errorf("index = %+v, want a unique constraint index", idx[0])
	}
	if len(idx[0].Columns) != 1 || idx[0].Columns[0] != "email" {
		t.Errorf("index columns = %v, want [email]", idx[0].Columns)
	}
}

func TestForeignKeys_InMemory(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	if _, err := conn.Apply(ctx, blogStatements(t)); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	fks, err := conn.ForeignKeys(ctx, "posts")
	if err != nil {
		t.Fatalf("ForeignKeys() error: %v", err)
	}
	if len(fks) != 1 {
		t.Fatalf("ForeignKeys() returned %d, want 1", len(fks))
	}
	fk := fks[0]
	if fk.Table != "users" || fk.From != "author" || fk.To != "id" {
		t.Errorf("fk = %+v, want author -> users.id", fk)
	}
	if fk.OnDelete != "CASCADE" {
		t.Errorf("OnDelete = %q, want %q", fk.OnDelete, "CASCADE")
	}
	if fk.OnUpdate != "NO ACTION" {
		t.Errorf("OnUpdate = %q, want %q", fk.OnUpdate, "NO ACTION")
	}
}

func TestApply_RollsBackOnFailure(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	_, err := conn.Apply(ctx, []string{
		`CREATE TABLE "a" ("x" INTEGER)`,
		`CREATE TABLE "b" ("y" INTEGER)`,
		`CREATE TABLE "a" ("z" INTEGER)`,
	})
	var ae *adapter.ApplyError
	if !errors.As(err, &ae) {
		t.Fatalf("Apply() error = %v, want *adapter.ApplyError", err)
	}
	if ae.Index != 2 {
		t.Errorf("Index = %d, want 2", ae.Index)
	}

	objects, err := conn.Objects(ctx)
	if err != nil {
		t.Fatalf("Objects() error: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("expected rollback to leave no objects, got %+v", objects)
	}
}

// ---------------------------------------------------------------------------
// sqlmock tests
// ---------------------------------------------------------------------------

func newMock(t *testing.T) (*sqliteConn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newConn(db, "mock.db", adapter.ApplyOptions()), mock
}

func TestApply_Mock(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE "a" ("x" INTEGER)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE VIEW "v" ("x") AS SELECT x FROM a`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	res, err := conn.Apply(context.Background(), []string{
		`CREATE TABLE "a" ("x" INTEGER)`,
		`CREATE VIEW "v" ("x") AS SELECT x FROM a`,
	})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if res.Statements != 2 {
		t.Errorf("Statements = %d, want 2", res.Statements)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApply_MockRollback(t *testing.T) {
	conn, mock := newMock(t)
	cause := errors.New("disk I/O error")

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE "a" ("x" INTEGER)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE "b" ("y" INTEGER)`).WillReturnError(cause)
	mock.ExpectRollback()

	_, err := conn.Apply(context.Background(), []string{
		`CREATE TABLE "a" ("x" INTEGER)`,
		`CREATE TABLE "b" ("y" INTEGER)`,
		`CREATE TABLE "c" ("z" INTEGER)`,
	})
	if !errors.Is(err, cause) {
		t.Fatalf("Apply() error = %v, want %v", err, cause)
	}
	var ae *adapter.ApplyError
	if errors.As(err, &ae) && ae.Statement != `CREATE TABLE "b" ("y" INTEGER)` {
		t.Errorf("Statement = %q", ae.Statement)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApply_MockBeginFails(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	_, err := conn.Apply(context.Background(), []string{`CREATE TABLE "a" ("x" INTEGER)`})
	if err == nil {
		t.Fatal("expected an error when BEGIN fails")
	}
	var ae *adapter.ApplyError
	if errors.As(err, &ae) {
		t.Error("a failed BEGIN should not be reported as a statement failure")
	}
}

func TestObjects_Mock(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectQuery("PRAGMA table_list").WillReturnRows(
		sqlmock.NewRows([]string{"schema", "name", "type", "ncol", "wr", "strict"}).
			AddRow("temp", "scratch", "table", 1, 0, 0).
			AddRow("main", "users", "table", 2, 0, 1).
			AddRow("main", "sqlite_schema", "table", 5, 0, 0).
			AddRow("main", "fts", "virtual", 3, 0, 0).
			AddRow("main", "kv", "table", 2, 1, 0).
			AddRow("temp", "sqlite_temp_schema", "table", 5, 0, 0),
	)

	objects, err := conn.Objects(context.Background())
	if err != nil {
		t.Fatalf("Objects() error: %v", err)
	}
	want := []string{"main.kv", "main.users", "temp.scratch"}
	if len(objects) != len(want) {
		t.Fatalf("Objects() = %+v, want %v", objects, want)
	}
	for i, w := range want {
		if got := objects[i].Schema + "." + objects[i].Name; got != w {
			t.Errorf("objects[%d] = %q, want %q", i, got, w)
		}
	}
	if !objects[0].WithoutRowid {
		t.Error("kv should be WITHOUT ROWID")
	}
	if !objects[1].Strict {
		t.Error("users should be STRICT")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
