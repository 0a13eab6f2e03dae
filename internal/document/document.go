// Package document decodes schema definitions from YAML and XML files.
//
// A document has exactly one root: a whole schema (tables followed by
// views), a single table, or a single view. Decoding checks the grammar
// only; the result still has to pass schema validation, which compiling
// it does.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sadopc/sqlayout/internal/ddl"
	"github.com/sadopc/sqlayout/internal/schema"
)

// Format is a document encoding.
type Format int

const (
	FormatYAML Format = iota + 1
	FormatXML
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatXML:
		return "xml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses "yaml", "yml", "json" or "xml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "yaml", "yml", "json":
		return FormatYAML, nil
	case "xml":
		return FormatXML, nil
	}
	return 0, fmt.Errorf("unknown document format %q", s)
}

// FormatOf picks the format from the file extension. JSON is read as YAML.
func FormatOf(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return 0, fmt.Errorf("%s: no file extension to detect the format from", path)
	}
	return ParseFormat(ext)
}

// RootKind is the kind of a document's root element.
type RootKind int

const (
	RootSchema RootKind = iota + 1
	RootTable
	RootView
)

func (k RootKind) String() string {
	switch k {
	case RootSchema:
		return "schema"
	case RootTable:
		return "table"
	case RootView:
		return "view"
	default:
		return fmt.Sprintf("RootKind(%d)", int(k))
	}
}

// ErrNoRoot is returned when a document has no schema, table or view root.
var ErrNoRoot = errors.New("document needs exactly one of schema, table or view at its root")

// DecodeError locates a grammar violation. Path is a dotted location such
// as "schema.tables[1].columns[0].pk.order", empty when the document could
// not be parsed at all.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Document is a decoded definition.
type Document struct {
	Root   RootKind
	Source string

	schema *schema.Schema
	table  schema.Table
	view   schema.View
}

// Schema returns the document as a schema. A table root becomes a schema
// with one table; a view root a schema with the view and no tables, which
// only CompileView accepts.
func (d *Document) Schema() *schema.Schema {
	switch d.Root {
	case RootTable:
		return &schema.Schema{Tables: []schema.Table{d.table}}
	case RootView:
		return &schema.Schema{Views: []schema.View{d.view}}
	default:
		return d.schema
	}
}

// Table returns the root table of a table document.
func (d *Document) Table() (schema.Table, bool) { return d.table, d.Root == RootTable }

// View returns the root view of a view document.
func (d *Document) View() (schema.View, bool) { return d.view, d.Root == RootView }

// Compile compiles the document with the compiler entry point that fits
// its root.
func (d *Document) Compile(opts ...ddl.Option) (*ddl.Output, error) {
	switch d.Root {
	case RootTable:
		return ddl.CompileTable(d.table, opts...)
	case RootView:
		return ddl.CompileView(d.view, opts...)
	default:
		return ddl.Compile(d.schema, opts...)
	}
}

// Decode reads one document from r.
func Decode(r io.Reader, format Format) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	var root *rootDoc
	switch format {
	case FormatYAML:
		root, err = decodeYAML(data)
	case FormatXML:
		root, err = decodeXML(data)
	default:
		return nil, fmt.Errorf("decode: unsupported format %v", format)
	}
	if err != nil {
		return nil, err
	}
	return root.document()
}

// DecodeFile reads the document at path, picking the format from its
// extension.
func DecodeFile(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	doc, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// Encode writes s as a schema document.
func Encode(w io.Writer, s *schema.Schema, format Format) error {
	root := &rootDoc{Schema: schemaToDoc(s)}
	switch format {
	case FormatYAML:
		return encodeYAML(w, root)
	case FormatXML:
		return encodeXML(w, root)
	default:
		return fmt.Errorf("encode: unsupported format %v", format)
	}
}
