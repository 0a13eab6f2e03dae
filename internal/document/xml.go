package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Namespace is written on the root element of encoded XML documents. It is
// accepted but not required when decoding.
const Namespace = "https://crates.io/crates/sqlayout"

// The XML grammar puts scalar fields in attributes and constraints in child
// elements. Constraint children decode into slices so that a repeated
// element is caught instead of silently overwritten.

type xmlUnknown struct {
	XMLName xml.Name
}

type xmlTable struct {
	Name         string       `xml:"name,attr"`
	WithoutRowid bool         `xml:"without_rowid,attr,omitempty"`
	Strict       bool         `xml:"strict,attr,omitempty"`
	Columns      []xmlColumn  `xml:"column"`
	Unknown      []xmlUnknown `xml:",any"`
	UnknownAttrs []xml.Attr   `xml:",any,attr"`
}

type xmlColumn struct {
	Name         string         `xml:"name,attr"`
	Type         string         `xml:"type,attr"`
	PK           []pkDoc        `xml:"pk"`
	FK           []fkDoc        `xml:"fk"`
	Unique       []conflictDoc  `xml:"unique"`
	NotNull      []conflictDoc  `xml:"not_null"`
	Generated    []generatedDoc `xml:"generated"`
	Unknown      []xmlUnknown   `xml:",any"`
	UnknownAttrs []xml.Attr     `xml:",any,attr"`
}

type xmlView struct {
	Name         string          `xml:"name,attr"`
	Temp         bool            `xml:"temp,attr,omitempty"`
	Select       *string         `xml:"select,attr"`
	SelectElems  []string        `xml:"select"`
	Columns      []viewColumnDoc `xml:"column"`
	Unknown      []xmlUnknown    `xml:",any"`
	UnknownAttrs []xml.Attr      `xml:",any,attr"`
}

// xmlSchema decodes by hand so that every table is known to come before
// the first view.
type xmlSchema struct {
	Tables []xmlTable
	Views  []xmlView
}

func (s *xmlSchema) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if isNamespaceAttr(a) {
			continue
		}
		return fmt.Errorf("unknown attribute %q", a.Name.Local)
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
				if len(s.Views) > 0 {
					return &DecodeError{
						Path: fmt.Sprintf("schema.tables[%d]", len(s.Tables)),
						Err:  errors.New("tables must come before views"),
					}
				}
				var tbl xmlTable
				if err := d.DecodeElement(&tbl, &t); err != nil {
					return err
				}
				s.Tables = append(s.Tables, tbl)
			case "view":
				var v xmlView
				if err := d.DecodeElement(&v, &t); err != nil {
					return err
				}
				s.Views = append(s.Views, v)
			default:
				return &DecodeError{Path: "schema", Err: fmt.Errorf("unknown element <%s>", t.Name.Local)}
			}
		case xml.EndElement:
			return nil
		}
	}
}

func decodeXML(data []byte) (*rootDoc, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	var start *xml.StartElement
	for start == nil {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Err: ErrNoRoot}
		}
		if err != nil {
			return nil, &DecodeError{Err: fmt.Errorf("parse xml: %w", err)}
		}
		if se, ok := tok.(xml.StartElement); ok {
			start = &se
		}
	}

	root := &rootDoc{}
	switch start.Name.Local {
	case "schema":
		var xs xmlSchema
		if err := d.DecodeElement(&xs, start); err != nil {
			return nil, xmlError(err)
		}
		root.Schema = &schemaDoc{}
		for i := range xs.Tables {
			t, err := xs.Tables[i].doc(fmt.Sprintf("schema.tables[%d]", i))
			if err != nil {
				return nil, err
			}
			root.Schema.Tables = append(root.Schema.Tables, t)
		}
		for i := range xs.Views {
			v, err := xs.Views[i].doc(fmt.Sprintf("schema.views[%d]", i))
			if err != nil {
				return nil, err
			}
			root.Schema.Views = append(root.Schema.Views, v)
		}
	case "table":
		var xt xmlTable
		if err := d.DecodeElement(&xt, start); err != nil {
			return nil, xmlError(err)
		}
		t, err := xt.doc("table")
		if err != nil {
			return nil, err
		}
		root.Table = &t
	case "view":
		var xv xmlView
		if err := d.DecodeElement(&xv, start); err != nil {
			return nil, xmlError(err)
		}
		v, err := xv.doc("view")
		if err != nil {
			return nil, err
		}
		root.View = &v
	default:
		return nil, &DecodeError{Err: fmt.Errorf("unknown root element <%s>: %w", start.Name.Local, ErrNoRoot)}
	}
	return root, nil
}

func xmlError(err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return de
	}
	return &DecodeError{Err: fmt.Errorf("parse xml: %w", err)}
}

func unknownContent(path string, elems []xmlUnknown, attrs []xml.Attr) error {
	if len(elems) > 0 {
		return &DecodeError{Path: path, Err: fmt.Errorf("unknown element <%s>", elems[0].XMLName.Local)}
	}
	for _, a := range attrs {
		if isNamespaceAttr(a) {
			continue
		}
		return &DecodeError{Path: path, Err: fmt.Errorf("unknown attribute %q", a.Name.Local)}
	}
	return nil
}

func isNamespaceAttr(a xml.Attr) bool {
	return a.Name.Local == "xmlns" || a.Name.Space == "xmlns"
}

// single returns the only element of s, nil when s is empty, or an error
// when the element is repeated.
func single[T any](path, name string, s []T) (*T, error) {
	switch len(s) {
	case 0:
		return nil, nil
	case 1:
		return &s[0], nil
	default:
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("<%s> given %d times, at most once allowed", name, len(s))}
	}
}

func (x *xmlTable) doc(path string) (tableDoc, error) {
	if err := unknownContent(path, x.Unknown, x.UnknownAttrs); err != nil {
		return tableDoc{}, err
	}
	t := tableDoc{Name: x.Name, WithoutRowid: x.WithoutRowid, Strict: x.Strict}
	for i := range x.Columns {
		c, err := x.Columns[i].doc(fmt.Sprintf("%s.columns[%d]", path, i))
		if err != nil {
			return tableDoc{}, err
		}
		t.Columns = append(t.Columns, c)
	}
	return t, nil
}

func (x *xmlColumn) doc(path string) (columnDoc, error) {
	c := columnDoc{Name: x.Name, Type: x.Type}
	if err := unknownContent(path, x.Unknown, x.UnknownAttrs); err != nil {
		return c, err
	}
	var err error
	if c.PK, err = single(path, "pk", x.PK); err != nil {
		return c, err
	}
	if c.FK, err = single(path, "fk", x.FK); err != nil {
		return c, err
	}
	if c.Unique, err = single(path, "unique", x.Unique); err != nil {
		return c, err
	}
	if c.NotNull, err = single(path, "not_null", x.NotNull); err != nil {
		return c, err
	}
	if c.Generated, err = single(path, "generated", x.Generated); err != nil {
		return c, err
	}
	return c, nil
}

func (x *xmlView) doc(path string) (viewDoc, error) {
	v := viewDoc{Name: x.Name, Temp: x.Temp, Columns: x.Columns}
	if err := unknownContent(path, x.Unknown, x.UnknownAttrs); err != nil {
		return v, err
	}
	// The query is normally the select attribute. A <select> child is
	// accepted for long queries, but not both.
	sel, err := single(path, "select", x.SelectElems)
	if err != nil {
		return v, err
	}
	switch {
	case x.Select != nil && sel != nil:
		return v, &DecodeError{Path: path, Err: errors.New("select given both as attribute and as <select> element")}
	case x.Select != nil:
		v.Select = strings.TrimSpace(*x.Select)
	case sel != nil:
		v.Select = strings.TrimSpace(*sel)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// encoding
// ---------------------------------------------------------------------------

type xmlSchemaOut struct {
	XMLName xml.Name     `xml:"schema"`
	Xmlns   string       `xml:"xmlns,attr"`
	Tables  []xmlTable   `xml:"table"`
	Views   []xmlViewOut `xml:"view"`
}

type xmlViewOut struct {
	Name    string          `xml:"name,attr"`
	Temp    bool            `xml:"temp,attr,omitempty"`
	Select  string          `xml:"select,attr"`
	Columns []viewColumnDoc `xml:"column"`
}

func encodeXML(w io.Writer, root *rootDoc) error {
	out := xmlSchemaOut{Xmlns: Namespace}
	for _, t := range root.Schema.Tables {
		xt := xmlTable{Name: t.Name, WithoutRowid: t.WithoutRowid, Strict: t.Strict}
		for _, c := range t.Columns {
			xc := xmlColumn{Name: c.Name, Type: c.Type}
			if c.PK != nil {
				xc.PK = []pkDoc{*c.PK}
			}
			if c.FK != nil {
				xc.FK = []fkDoc{*c.FK}
			}
			if c.Unique != nil {
				xc.Unique = []conflictDoc{*c.Unique}
			}
			if c.NotNull != nil {
				xc.NotNull = []conflictDoc{*c.NotNull}
			}
			if c.Generated != nil {
				xc.Generated = []generatedDoc{*c.Generated}
			}
			xt.Columns = append(xt.Columns, xc)
		}
		out.Tables = append(out.Tables, xt)
	}
	for _, v := range root.Schema.Views {
		out.Views = append(out.Views, xmlViewOut{Name: v.Name, Temp: v.Temp, Select: v.Select, Columns: v.Columns})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
