package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sadopc/sqlayout/internal/ddl"
)

// newTestHistory creates a History backed by a SQLite database in the given
// directory.
func newTestHistory(t *testing.T, dir string) *History {
	t.Helper()

	h, err := New(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func build(source, sql string, at time.Time) Entry {
	return Entry{
		Source:      source,
		Root:        "schema",
		Tables:      1,
		Fingerprint: ddl.Fingerprint(sql),
		SQL:         sql,
		BuiltAt:     at,
	}
}

func TestNewCreatesDBFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	h := newTestHistory(t, dir)
	defer h.Close()

	if _, err := os.Stat(filepath.Join(dir, "history.db")); err != nil {
		t.Fatalf("history.db was not created: %v", err)
	}

	entries, err := h.Recent(10)
	if err != nil {
		t.Fatalf("Recent() on new DB error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Recent() on new DB = %d entries, want 0", len(entries))
	}
}

func TestAddAndRecent(t *testing.T) {
	h := newTestHistory(t, t.TempDir())
	defer h.Close()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := range 5 {
		id, err := h.Add(build("shop.yaml", `CREATE TABLE "`+string(rune('A'+i))+`" ("id" INTEGER)`, base.Add(time.Duration(i)*time.Minute)))
		if err != nil {
			t.Fatalf("Add() entry %d error = %v", i, err)
		}
		if id != int64(i+1) {
			t.Errorf("Add() entry %d id = %d, want %d", i, id, i+1)
		}
	}

	entries, err := h.Recent(3)
	if err != nil {
		t.Fatalf("Recent(3) error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Recent(3) returned %d entries, want 3", len(entries))
	}

	// Most recent first: E, D, C
	wantSQL := []string{
		`CREATE TABLE "E" ("id" INTEGER)`,
		`CREATE TABLE "D" ("id" INTEGER)`,
		`CREATE TABLE "C" ("id" INTEGER)`,
	}
	for i, want := range wantSQL {
		if entries[i].SQL != want {
			t.Errorf("entries[%d].SQL = %q, want %q", i, entries[i].SQL, want)
		}
	}
}

func TestRecentSameTimestamp(t *testing.T) {
	h := newTestHistory(t, t.TempDir())
	defer h.Close()

	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, src := range []string{"a.yaml", "b.yaml", "c.yaml"} {
		if _, err := h.Add(build(src, "x", at)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := h.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Source != "c.yaml" || entries[2].Source != "a.yaml" {
		t.Errorf("ties should fall back to insertion order, newest first: %+v", entries)
	}
}

func TestEntryFields(t *testing.T) {
	h := newTestHistory(t, t.TempDir())
	defer h.Close()

	builtAt := time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)
	want := Entry{
		Source:      "/srv/schema/shop.xml",
		Root:        "table",
		Tables:      4,
		Views:       2,
		Fingerprint: "0123456789abcdef",
		SQL:         `CREATE TABLE "users" ("id" INTEGER PRIMARY KEY);`,
		BuiltAt:     builtAt,
	}
	if _, err := h.Add(want); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	entries, err := h.Recent(1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Recent() returned %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.ID == 0 {
		t.Error("ID should be set")
	}
	if got.Source != want.Source || got.Root != want.Root || got.Tables != want.Tables ||
		got.Views != want.Views || got.Fingerprint != want.Fingerprint || got.SQL != want.SQL {
		t.Errorf("entry fields mismatch:\n  got:  %+v\n  want: %+v", got, want)
	}
	// SQLite may lose sub-second precision
	if got.BuiltAt.Sub(builtAt).Abs() > time.Second {
		t.Errorf("BuiltAt = %v, want approximately %v", got.BuiltAt, builtAt)
	}
}

func TestAddDefaultsBuiltAt(t *testing.T) {
	h := newTestHistory(t, t.TempDir())
	defer h.Close()

	before := time.Now().Add(-time.Second)
	if _, err := h.Add(Entry{Source: "a.yaml", Root: "schema", Fingerprint: "f", SQL: "x"}); err != nil {
		t.Fatal(err)
	}
	entries, err := h.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].BuiltAt.Before(before) {
		t.Errorf("BuiltAt = %v, want about now", entries[0].BuiltAt)
	}
}

func TestSearch(t *testing.T) {
	h := newTestHistory(t, t.TempDir())
	defer h.Close()

	now := time.Now().UTC()
	sources := []string{"db/users.yaml", "db/orders.yaml", "other/users.xml", "db/users.yaml"}
	for i, src := range sources {
		if _, err := h.Add(build(src, src, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	entries, err := h.Search("%users%", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Search(%%users%%) returned %d entries, want 3", len(entries))
	}
	if entries[0].Source != "db/users.yaml" || entries[1].Source != "other/users.xml" {
		t.Errorf("entries not newest first: %q, %q", entries[0].Source, entries[1].Source)
	}

	none, err := h.Search("%nothing%", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("Search(%%nothing%%) = %d entries, want 0", len(none))
	}
}

func TestFind(t *testing.T) {
	h := newTestHistory(t, t.TempDir())
	defer h.Close()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, fp := range []string{"abcd000000000000", "abce000000000000", "ffff000000000000", "abcd000000000000"} {
		e := build("s.yaml", "x", base.Add(time.Duration(i)*time.Minute))
		e.Fingerprint = fp
		if _, err := h.Add(e); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		prefix string
		want   int
	}{
		{"abc", 3},
		{"abcd", 2},
		{"abcd000000000000", 2},
		{"ffff", 1},
		{"0", 0},
	}
	for _, tt := range tests {
		got, err := h.Find(tt.prefix)
		if err != nil {
			t.Fatalf("Find(%q) error = %v", tt.prefix, err)
		}
		if len(got) != tt.want {
			t.Errorf("Find(%q) = %d entries, want %d", tt.prefix, len(got), tt.want)
		}
	}

	if _, err := h.Find(""); err == nil {
		t.Error("Find(\"\") should be an error")
	}
}

func TestLast(t *testing.T) {
	h := newTestHistory(t, t.TempDir())
	defer h.Close()

	if _, ok, err := h.Last("shop.yaml"); err != nil || ok {
		t.Fatalf("Last() on empty history = ok %v, err %v", ok, err)
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	h.Add(build("shop.yaml", "v1", base))
	h.Add(build("blog.yaml", "b1", base.Add(time.Minute)))
	h.Add(build("shop.yaml", "v2", base.Add(2*time.Minute)))

	e, ok, err := h.Last("shop.yaml")
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	if !ok {
		t.Fatal("Last() ok = false, want true")
	}
	if e.SQL != "v2" {
		t.Errorf("Last().SQL = %q, want %q", e.SQL, "v2")
	}
	if e.Fingerprint != ddl.Fingerprint("v2") {
		t.Errorf("Last().Fingerprint = %q", e.Fingerprint)
	}
}

func TestRecentWithLimit(t *testing.T) {
	h := newTestHistory(t, t.TempDir())
	defer h.Close()

	now := time.Now().UTC()
	for i := range 10 {
		if _, err := h.Add(build("s.yaml", "x", now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	tests := []struct {
		limit int
		want  int
	}{
		{1, 1},
		{5, 5},
		{10, 10},
		{20, 10},
	}
	for _, tt := range tests {
		entries, err := h.Recent(tt.limit)
		if err != nil {
			t.Fatalf("Recent(%d) error = %v", tt.limit, err)
		}
		if len(entries) != tt.want {
			t.Errorf("Recent(%d) returned %d entries, want %d", tt.limit, len(entries), tt.want)
		}
	}
}

func TestClear(t *testing.T) {
	h := newTestHistory(t, t.TempDir())
	defer h.Close()

	for range 3 {
		if _, err := h.Add(build("s.yaml", "x", time.Time{})); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	entries, err := h.Recent(10)
	if err != nil {
		t.Fatalf("Recent() after Clear() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Recent() after Clear() = %d entries, want 0", len(entries))
	}
}

func TestCloseAndReopen(t *testing.T) {
	dir := t.TempDir()

	// First session: add entries
	h1 := newTestHistory(t, dir)
	for i := range 3 {
		if _, err := h1.Add(build("s.yaml", "v"+string(rune('A'+i)), time.Now().UTC().Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if err := h1.Close(); err != nil {
		t.Fatalf("Close() first session error = %v", err)
	}

	// Second session: reopen and verify entries persist
	h2 := newTestHistory(t, dir)
	defer h2.Close()

	entries, err := h2.Recent(10)
	if err != nil {
		t.Fatalf("Recent() after reopen error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Recent() after reopen = %d entries, want 3", len(entries))
	}
	if entries[0].SQL != "vC" {
		t.Errorf("entries[0].SQL = %q, want %q", entries[0].SQL, "vC")
	}
}
