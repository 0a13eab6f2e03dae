// Package highlight colors SQL for the terminal.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sqlayout/internal/theme"
)

// Highlighter tokenises SQL text using chroma and renders it with lipgloss
// styles from a theme.
type Highlighter struct {
	lexer chroma.Lexer
	theme *theme.Theme
}

// New creates a Highlighter that renders with th. A nil theme turns
// highlighting off and Highlight returns its input unchanged.
func New(th *theme.Theme) *Highlighter {
	l := lexers.Get("SQL")
	if l == nil {
		l = lexers.Fallback
	}
	// Coalesce runs of identical token types so the loop below processes
	// fewer, larger chunks.
	return &Highlighter{lexer: chroma.Coalesce(l), theme: th}
}

// Highlight returns sql with every token styled. Newlines are emitted
// unstyled so multi-line statements render line by line.
func (h *Highlighter) Highlight(sql string) string {
	if h == nil || h.theme == nil || sql == "" {
		return sql
	}

	iter, err := h.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) * 2)

	for _, tok := range iter.Tokens() {
		if tok.Value == "" {
			continue
		}
		style, ok := h.styleFor(tok.Type)
		if !ok {
			b.WriteString(tok.Value)
			continue
		}
		lines := strings.Split(tok.Value, "\n")
		for i, line := range lines {
			if line != "" {
				b.WriteString(style.Render(line))
			}
			if i < len(lines)-1 {
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// styleFor maps a chroma token type to a theme style. The second return
// value is false when the token passes through unstyled.
func (h *Highlighter) styleFor(tt chroma.TokenType) (lipgloss.Style, bool) {
	th := h.theme
	switch {
	// KeywordType is a keyword too; SQL types get their own color.
	case tt == chroma.KeywordType:
		return th.SQLType, true
	case tt == chroma.NameFunction || tt == chroma.NameBuiltin:
		return th.SQLFunction, true
	case tt.InCategory(chroma.Keyword):
		return th.SQLKeyword, true
	// Double-quoted identifiers lex as symbols.
	case tt == chroma.LiteralStringSymbol || tt == chroma.NameVariable:
		return th.SQLIdentifier, true
	case tt.InSubCategory(chroma.LiteralString):
		return th.SQLString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return th.SQLNumber, true
	case tt.InCategory(chroma.Comment):
		return th.SQLComment, true
	case tt.InCategory(chroma.Operator):
		return th.SQLOperator, true
	case tt == chroma.Punctuation:
		return th.SQLPunctuation, true
	default:
		return lipgloss.Style{}, false
	}
}
