package document

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sadopc/sqlayout/internal/schema"
)

const shopYAML = `
schema:
  tables:
    - name: orders
      strict: true
      columns:
        - name: id
          type: integer
          pk: {order: Descending, on_conflict: Abort}
        - name: user_id
          type: integer
          not_null: {}
          fk:
            foreign_table: users
            foreign_column: id
            on_delete: set_null
            on_update: Cascade
            deferrable: true
        - name: total
          type: real
          generated: {expr: "id * 1.5", as: Stored}
    - name: users
      without_rowid: true
      columns:
        - name: id
          type: INTEGER
          pk: {}
        - name: email
          type: text
          unique: {on_conflict: Replace}
  views:
    - name: big_orders
      temp: true
      select: SELECT id FROM orders WHERE total > 100
      columns:
        - name: order_id
`

const shopXML = `<?xml version="1.0" encoding="UTF-8"?>
<schema xmlns="https://crates.io/crates/sqlayout">
  <table name="orders" strict="true">
    <column name="id" type="integer">
      <pk order="descending" on_conflict="abort"/>
    </column>
    <column name="user_id" type="integer">
      <fk foreign_table="users" foreign_column="id" on_delete="set_null" on_update="cascade" deferrable="true"/>
      <not_null/>
    </column>
    <column name="total" type="real">
      <generated expr="id * 1.5" as="stored"/>
    </column>
  </table>
  <table name="users" without_rowid="true">
    <column name="id" type="integer"><pk/></column>
    <column name="email" type="text"><unique on_conflict="replace"/></column>
  </table>
  <view name="big_orders" temp="true">
    <select>SELECT id FROM orders WHERE total &gt; 100</select>
    <column name="order_id"/>
  </view>
</schema>
`

func requireShop(t *testing.T, doc *Document) {
	t.Helper()
	require.Equal(t, RootSchema, doc.Root)
	s := doc.Schema()
	require.Len(t, s.Tables, 2)
	require.Len(t, s.Views, 1)

	orders := s.Tables[0]
	require.Equal(t, schema.Identifier("orders"), orders.Name)
	require.True(t, orders.Strict)
	require.False(t, orders.WithoutRowid)
	require.Equal(t, schema.Descending, *orders.Columns[0].PrimaryKey.Order)
	require.Equal(t, schema.Abort, *orders.Columns[0].PrimaryKey.OnConflict)

	fk := orders.Columns[1].ForeignKey
	require.NotNil(t, fk)
	require.Equal(t, schema.Identifier("users"), fk.Table)
	require.Equal(t, schema.SetNull, *fk.OnDelete)
	require.Equal(t, schema.Cascade, *fk.OnUpdate)
	require.True(t, fk.Deferrable)
	require.NotNil(t, orders.Columns[1].NotNull)
	require.Nil(t, orders.Columns[1].NotNull.OnConflict)
	require.Nil(t, orders.Columns[1].Unique)

	g := orders.Columns[2].Generated
	require.Equal(t, "id * 1.5", g.Expr)
	require.Equal(t, schema.Stored, *g.As)

	users := s.Tables[1]
	require.True(t, users.WithoutRowid)
	require.Equal(t, schema.Integer, users.Columns[0].Type)
	require.NotNil(t, users.Columns[0].PrimaryKey)
	require.Nil(t, users.Columns[0].PrimaryKey.Order)
	require.Equal(t, schema.Replace, *users.Columns[1].Unique.OnConflict)

	v := s.Views[0]
	require.True(t, v.Temp)
	require.Equal(t, "SELECT id FROM orders WHERE total > 100", v.Select)
	require.Equal(t, []schema.ViewColumn{{Name: "order_id"}}, v.Columns)
}

func TestDecodeYAML(t *testing.T) {
	doc, err := Decode(strings.NewReader(shopYAML), FormatYAML)
	require.NoError(t, err)
	requireShop(t, doc)
	require.NoError(t, schema.Validate(doc.Schema()))
}

func TestDecodeXML(t *testing.T) {
	doc, err := Decode(strings.NewReader(shopXML), FormatXML)
	require.NoError(t, err)
	requireShop(t, doc)
}

func TestDecodeFormatsAgree(t *testing.T) {
	y, err := Decode(strings.NewReader(shopYAML), FormatYAML)
	require.NoError(t, err)
	x, err := Decode(strings.NewReader(shopXML), FormatXML)
	require.NoError(t, err)

	yOut, err := y.Compile()
	require.NoError(t, err)
	xOut, err := x.Compile()
	require.NoError(t, err)
	require.Equal(t, yOut.SQL(), xOut.SQL())
	require.Equal(t, "users", yOut.Statements[0].Name)
}

func TestDecodeSingleRoots(t *testing.T) {
	t.Run("yaml table", func(t *testing.T) {
		doc, err := Decode(strings.NewReader("table:\n  name: t\n  columns:\n    - {name: a, type: text}\n"), FormatYAML)
		require.NoError(t, err)
		require.Equal(t, RootTable, doc.Root)
		tbl, ok := doc.Table()
		require.True(t, ok)
		require.Equal(t, schema.Identifier("t"), tbl.Name)
		out, err := doc.Compile()
		require.NoError(t, err)
		require.Equal(t, `CREATE TABLE "t" ("a" TEXT);`, out.SQL())
	})

	t.Run("yaml view", func(t *testing.T) {
		doc, err := Decode(strings.NewReader("view:\n  name: v\n  select: SELECT 1\n  columns: [{name: one}]\n"), FormatYAML)
		require.NoError(t, err)
		require.Equal(t, RootView, doc.Root)
		require.Empty(t, doc.Schema().Tables)
		out, err := doc.Compile()
		require.NoError(t, err)
		require.Equal(t, `CREATE VIEW "v" ("one") AS SELECT 1;`, out.SQL())
	})

	t.Run("xml table", func(t *testing.T) {
		doc, err := Decode(strings.NewReader(`<table name="t"><column name="a" type="blob"/></table>`), FormatXML)
		require.NoError(t, err)
		require.Equal(t, RootTable, doc.Root)
		_, ok := doc.View()
		require.False(t, ok)
	})

	t.Run("xml view", func(t *testing.T) {
		doc, err := Decode(strings.NewReader(`<view name="v" select="SELECT 1"><column name="one"/></view>`), FormatXML)
		require.NoError(t, err)
		require.Equal(t, RootView, doc.Root)
		out, err := doc.Compile()
		require.NoError(t, err)
		require.Equal(t, `CREATE VIEW "v" ("one") AS SELECT 1;`, out.SQL())
	})

	t.Run("xml view select element", func(t *testing.T) {
		doc, err := Decode(strings.NewReader(`<view name="v"><select>SELECT 1</select><column name="one"/></view>`), FormatXML)
		require.NoError(t, err)
		v, ok := doc.View()
		require.True(t, ok)
		require.Equal(t, "SELECT 1", v.Select)
	})
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		input  string
		path   string
		want   string
	}{
		{"empty yaml", FormatYAML, "", "", "exactly one of"},
		{"two roots", FormatYAML, "table: {name: t, columns: []}\nview: {name: v, select: x, columns: []}\n", "", "exactly one of"},
		{"unknown key", FormatYAML, "table: {name: t, colums: []}\n", "", "colums"},
		{"duplicate key", FormatYAML, "table:\n  name: t\n  name: u\n", "", "already defined"},
		{"bad type", FormatYAML, "table: {name: t, columns: [{name: a, type: varchar}]}\n", "table.columns[0].type", "unknown column type"},
		{"bad order", FormatYAML, "schema: {tables: [{name: t, columns: [{name: a, type: text, pk: {order: up}}]}]}\n", "schema.tables[0].columns[0].pk.order", "unknown sort order"},
		{"bad action", FormatYAML, "table: {name: t, columns: [{name: a, type: text, fk: {foreign_table: t, foreign_column: a, on_update: explode}}]}\n", "table.columns[0].fk.on_update", "unknown referential action"},
		{"bad mode", FormatYAML, "table: {name: t, columns: [{name: a, type: text, generated: {expr: '1', as: later}}]}\n", "table.columns[0].generated.as", "unknown generated mode"},
		{"two documents", FormatYAML, "table: {name: t, columns: []}\n---\ntable: {name: u, columns: []}\n", "", "more than one document"},
		{"empty xml", FormatXML, "", "", "exactly one of"},
		{"unknown root", FormatXML, "<database/>", "", "unknown root element"},
		{"malformed xml", FormatXML, "<table name=\"t\">", "", "parse xml"},
		{"repeated pk", FormatXML, `<table name="t"><column name="a" type="text"><pk/><pk/></column></table>`, "table.columns[0]", "<pk> given 2 times"},
		{"unknown child", FormatXML, `<table name="t"><column name="a" type="text"><default/></column></table>`, "table.columns[0]", "unknown element <default>"},
		{"unknown attribute", FormatXML, `<table name="t" temp="true"><column name="a" type="text"/></table>`, "table", `unknown attribute "temp"`},
		{"view before table", FormatXML, `<schema><view name="v"><select>SELECT 1</select><column name="a"/></view><table name="t"><column name="a" type="text"/></table></schema>`, "schema.tables[0]", "tables must come before views"},
		{"unknown schema child", FormatXML, `<schema><index name="i"/></schema>`, "schema", "unknown element <index>"},
		{"select attribute and element", FormatXML, `<view name="v" select="SELECT 1"><select>SELECT 2</select><column name="a"/></view>`, "view", "both as attribute and as <select> element"},
		{"repeated select", FormatXML, `<view name="v"><select>a</select><select>b</select><column name="a"/></view>`, "view", "<select> given 2 times"},
		{"bad xml enum", FormatXML, `<table name="t"><column name="a" type="text"><unique on_conflict="sometimes"/></column></table>`, "table.columns[0].unique.on_conflict", "unknown conflict policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), tt.format)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)

			var de *DecodeError
			require.True(t, errors.As(err, &de), "%T", err)
			require.Equal(t, tt.path, de.Path)
		})
	}
}

func TestDecodeEmptyConstraints(t *testing.T) {
	input := `
table:
  name: t
  columns:
    - name: id
      type: integer
      pk:
      not_null: ~
    - name: code
      type: text
      unique:
`
	doc, err := Decode(strings.NewReader(input), FormatYAML)
	require.NoError(t, err)
	tbl, _ := doc.Table()
	require.NotNil(t, tbl.Columns[0].PrimaryKey)
	require.NotNil(t, tbl.Columns[0].NotNull)
	require.Nil(t, tbl.Columns[0].Unique)
	require.NotNil(t, tbl.Columns[1].Unique)

	out, err := doc.Compile()
	require.NoError(t, err)
	require.Equal(t, `CREATE TABLE "t" ("id" INTEGER PRIMARY KEY NOT NULL, "code" TEXT UNIQUE);`, out.SQL())
}

func TestDecodeEmptyGeneratedIsReported(t *testing.T) {
	doc, err := Decode(strings.NewReader("schema:\n  tables:\n    - name: t\n      columns:\n        - name: a\n          type: text\n          generated:\n"), FormatYAML)
	require.NoError(t, err)
	require.NotNil(t, doc.Schema().Tables[0].Columns[0].Generated)
	_, err = doc.Compile()
	require.ErrorIs(t, err, schema.ErrEmptyExpression)
}

func TestDecodeLeavesValidationToCompile(t *testing.T) {
	doc, err := Decode(strings.NewReader("table: {name: sqlite_stat, columns: [{name: a, type: text}]}\n"), FormatYAML)
	require.NoError(t, err)
	_, err = doc.Compile()
	require.ErrorIs(t, err, schema.ErrInvalidIdentifier)
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"shop.yaml": shopYAML,
		"shop.yml":  shopYAML,
		"shop.xml":  shopXML,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		doc, err := DecodeFile(path)
		require.NoError(t, err, name)
		require.Equal(t, path, doc.Source)
		requireShop(t, doc)
	}

	jsonPath := filepath.Join(dir, "t.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"table": {"name": "t", "columns": [{"name": "a", "type": "text"}]}}`), 0o600))
	doc, err := DecodeFile(jsonPath)
	require.NoError(t, err)
	require.Equal(t, RootTable, doc.Root)

	_, err = DecodeFile(filepath.Join(dir, "schema"))
	require.Error(t, err)
	_, err = DecodeFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("table: {name: t, columns: [{name: a, type: nope}]}\n"), 0o600))
	_, err = DecodeFile(bad)
	require.ErrorContains(t, err, bad+": table.columns[0].type")
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatXML} {
		t.Run(format.String(), func(t *testing.T) {
			doc, err := Decode(strings.NewReader(shopYAML), FormatYAML)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, doc.Schema(), format))

			if format == FormatXML {
				require.Contains(t, buf.String(), `<view name="big_orders" temp="true" select="SELECT id FROM orders WHERE total &gt; 100">`)
			}

			again, err := Decode(&buf, format)
			require.NoError(t, err)
			require.Equal(t, doc.Schema(), again.Schema())
		})
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.yaml", FormatYAML},
		{"a.YML", FormatYAML},
		{"dir/a.json", FormatYAML},
		{"a.xml", FormatXML},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.path)
		require.NoError(t, err, tt.path)
		require.Equal(t, tt.want, got, tt.path)
	}
	_, err := FormatOf("a.toml")
	require.Error(t, err)
}
