package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

func decodeYAML(data []byte) (*rootDoc, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var root rootDoc
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Err: ErrNoRoot}
		}
		return nil, &DecodeError{Err: fmt.Errorf("parse yaml: %w", err)}
	}

	// A second document in the same stream is not part of the grammar.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Err: errors.New("parse yaml: more than one document in stream")}
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("parse yaml: %w", err)}
	}
	markEmptySlots(&node, &root)
	return &root, nil
}

// markEmptySlots gives a constraint written without a value ("pk:" or
// "not_null: ~") an empty spec. yaml.v3 leaves such a pointer nil, which
// would drop the constraint.
func markEmptySlots(doc *yaml.Node, root *rootDoc) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return
	}
	top := doc.Content[0]
	switch {
	case root.Schema != nil:
		tables := mapValue(mapValue(top, "schema"), "tables")
		for i := range root.Schema.Tables {
			markTable(seqItem(tables, i), &root.Schema.Tables[i])
		}
	case root.Table != nil:
		markTable(mapValue(top, "table"), root.Table)
	}
}

func markTable(n *yaml.Node, t *tableDoc) {
	cols := mapValue(n, "columns")
	for i := range t.Columns {
		col := seqItem(cols, i)
		c := &t.Columns[i]
		if isNull(mapValue(col, "pk")) && c.PK == nil {
			c.PK = &pkDoc{}
		}
		if isNull(mapValue(col, "fk")) && c.FK == nil {
			c.FK = &fkDoc{}
		}
		if isNull(mapValue(col, "unique")) && c.Unique == nil {
			c.Unique = &conflictDoc{}
		}
		if isNull(mapValue(col, "not_null")) && c.NotNull == nil {
			c.NotNull = &conflictDoc{}
		}
		if isNull(mapValue(col, "generated")) && c.Generated == nil {
			c.Generated = &generatedDoc{}
		}
	}
}

// mapValue returns the value of key in the mapping n, or nil.
func mapValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func seqItem(n *yaml.Node, i int) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.SequenceNode || i >= len(n.Content) {
		return nil
	}
	return n.Content[i]
}

func isNull(n *yaml.Node) bool {
	if n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func encodeYAML(w io.Writer, root *rootDoc) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
