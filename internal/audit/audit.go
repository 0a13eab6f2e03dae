// Package audit records every schema apply as a JSON Lines entry.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source,omitempty"`
	Adapter      string    `json:"adapter"`
	DatabaseName string    `json:"database_name"`
	DSN          string    `json:"dsn"`
	Statements   int       `json:"statements"`
	DurationMS   int64     `json:"duration_ms"`
	Fingerprint  string    `json:"fingerprint"`
	IsError      bool      `json:"is_error"`
	Error        string    `json:"error,omitempty"`
}

// Logger writes JSON Lines audit entries to a file.
type Logger struct {
	mu        sync.Mutex
	f         *os.File
	enc       *json.Encoder
	path      string
	maxSizeMB int
}

// New creates an audit Logger. It creates parent directories (0o700) and opens
// the file in append mode (0o600). If maxSizeMB > 0, the file is rotated to
// path.1 once it reaches that size.
func New(path string, maxSizeMB int) (*Logger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}

	f, err := openLog(path)
	if err != nil {
		return nil, err
	}

	return &Logger{
		f:         f,
		enc:       json.NewEncoder(f),
		path:      path,
		maxSizeMB: maxSizeMB,
	}, nil
}

func openLog(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}
	return f, nil
}

// Log writes an entry as a JSON line. It is safe for concurrent use.
// DSN is sanitized before it is written. Calling Log on a nil Logger is a
// no-op.
func (l *Logger) Log(e Entry) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.DSN = SanitizeDSN(e.DSN)
	if err := l.enc.Encode(e); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}

	if l.maxSizeMB > 0 {
		return l.rotateIfNeeded()
	}
	return nil
}

// Path returns the file the logger writes to.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close closes the underlying file. Calling Close on a nil Logger is a no-op.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

func (l *Logger) rotateIfNeeded() error {
	info, err := l.f.Stat()
	if err != nil {
		return fmt.Errorf("audit: stat: %w", err)
	}
	if info.Size() < int64(l.maxSizeMB)*1024*1024 {
		return nil
	}
	return l.rotate()
}

func (l *Logger) rotate() error {
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("audit: rotate: %w", err)
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return fmt.Errorf("audit: rotate: %w", err)
	}
	f, err := openLog(l.path)
	if err != nil {
		return err
	}
	l.f = f
	l.enc = json.NewEncoder(f)
	return nil
}

// Read decodes every entry in r, oldest first.
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(strings.TrimSpace(sc.Text())) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("audit: line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// sensitiveParams are DSN query parameters whose values are masked.
var sensitiveParams = map[string]bool{
	"_auth_pass": true,
	"_auth_user": true,
	"_key":       true,
	"key":        true,
	"password":   true,
}

// SanitizeDSN masks credentials in a DSN. SQLite DSNs carry them as query
// parameters, either directly (_auth_pass=...) or as a key pragma
// (_pragma=key('...')). URL userinfo is masked as well.
func SanitizeDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		u.User = url.User("***")
		dsn = u.String()
	}

	base, query, ok := strings.Cut(dsn, "?")
	if !ok {
		return dsn
	}
	params := strings.Split(query, "&")
	for i, p := range params {
		k, v, _ := strings.Cut(p, "=")
		if sensitiveParams[strings.ToLower(k)] || isKeyPragma(k, v) {
			params[i] = k + "=***"
		}
	}
	return base + "?" + strings.Join(params, "&")
}

func isKeyPragma(k, v string) bool {
	if strings.ToLower(k) != "_pragma" {
		return false
	}
	if unescaped, err := url.QueryUnescape(v); err == nil {
		v = unescaped
	}
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.HasPrefix(v, "key") || strings.HasPrefix(v, "rekey") || strings.HasPrefix(v, "hexkey")
}
