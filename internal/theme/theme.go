// Package theme provides the styles sqlayout uses for terminal output and
// the browser UI. Every visual element references a lipgloss.Style held in a
// Theme so the whole look can be swapped by name.
package theme

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds lipgloss.Style values for every styled element.
type Theme struct {
	Name string

	// SQL syntax highlighting
	SQLKeyword     lipgloss.Style
	SQLString      lipgloss.Style
	SQLNumber      lipgloss.Style
	SQLComment     lipgloss.Style
	SQLOperator    lipgloss.Style
	SQLFunction    lipgloss.Style
	SQLType        lipgloss.Style
	SQLIdentifier  lipgloss.Style
	SQLPunctuation lipgloss.Style

	// Browser entity list
	ListTitle    lipgloss.Style
	ListTable    lipgloss.Style
	ListView     lipgloss.Style
	ListSelected lipgloss.Style
	ListMatch    lipgloss.Style

	// Browser preview pane
	PreviewTitle lipgloss.Style

	// Status bar
	StatusBar      lipgloss.Style
	StatusBarKey   lipgloss.Style
	StatusBarValue lipgloss.Style

	// General
	FocusedBorder   lipgloss.Style
	UnfocusedBorder lipgloss.Style
	Heading         lipgloss.Style
	ErrorText       lipgloss.Style
	SuccessText     lipgloss.Style
	WarningText     lipgloss.Style
	MutedText       lipgloss.Style
}

// palette is the handful of colors a theme is derived from.
type palette struct {
	foreground string
	muted      string
	border     string
	accent     string
	selectedFg string
	selectedBg string
	statusBg   string
	panelBg    string

	keyword  string
	str      string
	number   string
	comment  string
	operator string
	function string
	typ      string
	ident    string

	table   string
	view    string
	errorFg string
	success string
	warning string
}

func newTheme(name string, p palette) *Theme {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	border := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(c))
	}

	return &Theme{
		Name: name,

		SQLKeyword:     fg(p.keyword).Bold(true),
		SQLString:      fg(p.str),
		SQLNumber:      fg(p.number),
		SQLComment:     fg(p.comment).Italic(true),
		SQLOperator:    fg(p.operator),
		SQLFunction:    fg(p.function),
		SQLType:        fg(p.typ),
		SQLIdentifier:  fg(p.ident),
		SQLPunctuation: fg(p.foreground),

		ListTitle: fg(p.accent).Bold(true).PaddingLeft(1),
		ListTable: fg(p.table),
		ListView:  fg(p.view),
		ListSelected: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.selectedFg)).
			Background(lipgloss.Color(p.selectedBg)),
		ListMatch: fg(p.warning).Underline(true),

		PreviewTitle: fg(p.accent).Bold(true),

		StatusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.selectedFg)).
			Background(lipgloss.Color(p.statusBg)),
		StatusBarKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(p.selectedFg)).
			Background(lipgloss.Color(p.statusBg)).
			PaddingLeft(1).
			PaddingRight(1),
		StatusBarValue: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.foreground)).
			Background(lipgloss.Color(p.panelBg)).
			PaddingLeft(1).
			PaddingRight(1),

		FocusedBorder:   border(p.accent),
		UnfocusedBorder: border(p.border),
		Heading:         fg(p.accent).Bold(true),
		ErrorText:       fg(p.errorFg).Bold(true),
		SuccessText:     fg(p.success),
		WarningText:     fg(p.warning),
		MutedText:       fg(p.muted),
	}
}

// ---------------------------------------------------------------------------
// Theme definitions
// ---------------------------------------------------------------------------

// newDefaultTheme builds the Default dark theme.
func newDefaultTheme() *Theme {
	return newTheme("default", palette{
		foreground: "#D4D4D4",
		muted:      "#808080",
		border:     "#3C3C3C",
		accent:     "#569CD6",
		selectedFg: "#FFFFFF",
		selectedBg: "#264F78",
		statusBg:   "#007ACC",
		panelBg:    "#1E1E1E",

		keyword:  "#569CD6",
		str:      "#CE9178",
		number:   "#B5CEA8",
		comment:  "#6A9955",
		operator: "#D4D4D4",
		function: "#DCDCAA",
		typ:      "#4EC9B0",
		ident:    "#9CDCFE",

		table:   "#4EC9B0",
		view:    "#C586C0",
		errorFg: "#F44747",
		success: "#6A9955",
		warning: "#CCA700",
	})
}

// newLightTheme builds the Light theme suitable for light terminal backgrounds.
func newLightTheme() *Theme {
	return newTheme("light", palette{
		foreground: "#1E1E1E",
		muted:      "#A0A0A0",
		border:     "#D4D4D4",
		accent:     "#0451A5",
		selectedFg: "#FFFFFF",
		selectedBg: "#0060C0",
		statusBg:   "#0060C0",
		panelBg:    "#F3F3F3",

		keyword:  "#0000FF",
		str:      "#A31515",
		number:   "#098658",
		comment:  "#008000",
		operator: "#1E1E1E",
		function: "#795E26",
		typ:      "#267F99",
		ident:    "#001080",

		table:   "#267F99",
		view:    "#AF00DB",
		errorFg: "#E51400",
		success: "#16825D",
		warning: "#BF8803",
	})
}

// newMonokaiTheme builds a Monokai-inspired dark theme.
func newMonokaiTheme() *Theme {
	return newTheme("monokai", palette{
		foreground: "#F8F8F2",
		muted:      "#75715E",
		border:     "#49483E",
		accent:     "#F92672",
		selectedFg: "#F8F8F2",
		selectedBg: "#49483E",
		statusBg:   "#75715E",
		panelBg:    "#3E3D32",

		keyword:  "#F92672",
		str:      "#E6DB74",
		number:   "#AE81FF",
		comment:  "#75715E",
		operator: "#F92672",
		function: "#A6E22E",
		typ:      "#66D9EF",
		ident:    "#F8F8F2",

		table:   "#A6E22E",
		view:    "#AE81FF",
		errorFg: "#F92672",
		success: "#A6E22E",
		warning: "#E6DB74",
	})
}

// ---------------------------------------------------------------------------
// Registry and accessors
// ---------------------------------------------------------------------------

// Themes maps theme names to their Theme definitions.
var Themes = map[string]*Theme{
	"default": newDefaultTheme(),
	"light":   newLightTheme(),
	"monokai": newMonokaiTheme(),
}

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the theme identified by name. If no theme with that name exists
// it falls back to the default theme.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}

// Lookup is Get without the fallback.
func Lookup(name string) (*Theme, bool) {
	t, ok := Themes[name]
	return t, ok
}

// Names returns the registered theme names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Themes))
	for name := range Themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
