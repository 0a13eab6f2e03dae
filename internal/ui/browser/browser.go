// Package browser is an interactive terminal view of a compiled script: the
// statements in creation order on the left and the highlighted SQL of the
// selected one on the right.
package browser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/sadopc/sqlayout/internal/ddl"
	"github.com/sadopc/sqlayout/internal/highlight"
	"github.com/sadopc/sqlayout/internal/theme"
)

// Item is one statement shown in the list.
type Item struct {
	Kind ddl.StatementKind
	Name string
	SQL  string
	// Forward holds the tables this one references before they exist.
	Forward []string
}

// Items turns a compiled output into list items, keeping creation order.
func Items(out *ddl.Output) []Item {
	if out == nil {
		return nil
	}
	items := make([]Item, len(out.Statements))
	for i, s := range out.Statements {
		items[i] = Item{Kind: s.Kind, Name: s.Name, SQL: s.SQL}
		if s.Kind != ddl.KindTable {
			continue
		}
		for _, e := range out.Forward {
			if strings.EqualFold(e.From, s.Name) {
				items[i].Forward = append(items[i].Forward, e.To)
			}
		}
	}
	return items
}

type focus int

const (
	focusList focus = iota
	focusPreview
)

// row is an item that passed the filter, with the matched byte offsets of
// its name.
type row struct {
	index   int
	matched []int
}

type itemNames []Item

func (n itemNames) String(i int) string { return n[i].Name }
func (n itemNames) Len() int            { return len(n) }

const (
	defaultWidth  = 80
	defaultHeight = 24
	minListWidth  = 20
	maxListWidth  = 40
)

// Model is the browser program.
type Model struct {
	keys   KeyMap
	theme  *theme.Theme
	hl     *highlight.Highlighter
	title  string
	footer string

	items  []Item
	rows   []row
	cursor int
	offset int // scroll offset into rows

	filter    textinput.Model
	filtering bool
	focus     focus

	preview viewport.Model
	help    help.Model

	width  int
	height int
}

// New creates a browser over out. title names the source in the list
// header; a nil theme falls back to the default one.
func New(title string, out *ddl.Output, th *theme.Theme) Model {
	if th == nil {
		th = theme.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "filter..."
	ti.Prompt = "/ "
	ti.Width = maxListWidth

	m := Model{
		keys:    DefaultKeyMap(),
		theme:   th,
		hl:      highlight.New(th),
		title:   title,
		items:   Items(out),
		filter:  ti,
		preview: viewport.New(defaultWidth, defaultHeight),
		help:    help.New(),
	}
	if out != nil {
		m.footer = out.Fingerprint()
	}
	m.applyFilter()
	m.SetSize(defaultWidth, defaultHeight)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// SetSize sets the available space.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width

	m.preview.Width = m.previewWidth()
	m.preview.Height = m.paneHeight() - 1
	if m.preview.Height < 1 {
		m.preview.Height = 1
	}
	m.ensureVisible()
	m.refreshPreview()
}

// Selected returns the item under the cursor.
func (m Model) Selected() (Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return Item{}, false
	}
	return m.items[m.rows[m.cursor].index], true
}

// Filter returns the current filter text.
func (m Model) Filter() string { return m.filter.Value() }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.filtering {
			return m.updateFilter(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.SetSize(m.width, m.height)
			return m, nil
		case key.Matches(msg, m.keys.Filter):
			m.filtering = true
			m.focus = focusList
			return m, m.filter.Focus()
		case key.Matches(msg, m.keys.ClearFilter):
			if m.filter.Value() != "" {
				m.filter.SetValue("")
				m.applyFilter()
			}
			return m, nil
		case key.Matches(msg, m.keys.FocusNext):
			if m.focus == focusList {
				m.focus = focusPreview
			} else {
				m.focus = focusList
			}
			return m, nil
		}

		if m.focus == focusPreview {
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}
		m.moveCursor(msg)
		return m, nil
	}

	var cmd tea.Cmd
	if m.filtering {
		m.filter, cmd = m.filter.Update(msg)
	}
	return m, cmd
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ClearFilter):
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	case key.Matches(msg, m.keys.AcceptInput):
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case msg.Type == tea.KeyUp || msg.Type == tea.KeyDown:
		m.moveCursor(msg)
		return m, nil
	}

	prev := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != prev {
		m.applyFilter()
	}
	return m, cmd
}

func (m *Model) moveCursor(msg tea.KeyMsg) {
	before := m.cursor
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor--
	case key.Matches(msg, m.keys.Down):
		m.cursor++
	case key.Matches(msg, m.keys.PageUp):
		m.cursor -= m.visibleCount()
	case key.Matches(msg, m.keys.PageDown):
		m.cursor += m.visibleCount()
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = len(m.rows) - 1
	default:
		return
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureVisible()
	if m.cursor != before {
		m.refreshPreview()
	}
}

// applyFilter rebuilds the visible rows from the filter text. With no text
// every item is shown in creation order; otherwise the best matches come
// first.
func (m *Model) applyFilter() {
	pattern := strings.TrimSpace(m.filter.Value())
	m.rows = make([]row, 0, len(m.items))
	if pattern == "" {
		for i := range m.items {
			m.rows = append(m.rows, row{index: i})
		}
	} else {
		for _, match := range fuzzy.FindFrom(pattern, itemNames(m.items)) {
			m.rows = append(m.rows, row{index: match.Index, matched: match.MatchedIndexes})
		}
	}
	m.cursor = 0
	m.offset = 0
	m.refreshPreview()
}

func (m *Model) refreshPreview() {
	it, ok := m.Selected()
	if !ok {
		m.preview.SetContent(m.theme.MutedText.Render("no matching statements"))
		m.preview.GotoTop()
		return
	}

	var b strings.Builder
	b.WriteString(m.hl.Highlight(it.SQL + ";"))
	if len(it.Forward) > 0 {
		b.WriteString("\n\n")
		for _, to := range it.Forward {
			b.WriteString(m.theme.WarningText.Render(fmt.Sprintf("-- references %s before it is created (deferred)", ddl.Quote(to))))
			b.WriteByte('\n')
		}
	}
	m.preview.SetContent(strings.TrimRight(b.String(), "\n"))
	m.preview.GotoTop()
}

// View implements tea.Model.
func (m Model) View() string {
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.listView(), m.previewView())
	return lipgloss.JoinVertical(lipgloss.Left,
		body,
		m.statusView(),
		m.help.View(m.keys),
	)
}

func (m Model) listView() string {
	th := m.theme
	w := m.listWidth()
	visible := m.visibleCount()

	lines := []string{th.ListTitle.Render(truncate(m.title, w-1))}
	if m.filtering || m.filter.Value() != "" {
		lines = append(lines, m.filter.View())
	} else {
		lines = append(lines, th.MutedText.Render(fmt.Sprintf(" %d statements", len(m.items))))
	}

	end := min(m.offset+visible, len(m.rows))
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.formatRow(m.rows[i], i == m.cursor, w))
	}
	if len(m.rows) == 0 {
		lines = append(lines, th.MutedText.Render(" no matches"))
	}

	border := th.UnfocusedBorder
	if m.focus == focusList {
		border = th.FocusedBorder
	}
	return border.Width(w).Height(m.paneHeight()).Render(strings.Join(lines, "\n"))
}

func (m Model) formatRow(r row, selected bool, width int) string {
	th := m.theme
	it := m.items[r.index]

	marker := th.ListTable.Render("T")
	if it.Kind == ddl.KindView {
		marker = th.ListView.Render("V")
	}
	name := truncate(it.Name, width-6)
	if selected {
		suffix := ""
		if len(it.Forward) > 0 {
			suffix = " *"
		}
		return th.ListSelected.Render(fmt.Sprintf(" %s %s%s", kindLetter(it.Kind), name, suffix))
	}

	var b strings.Builder
	b.WriteString(" ")
	b.WriteString(marker)
	b.WriteString(" ")
	b.WriteString(renderMatched(name, r.matched, th.ListMatch))
	if len(it.Forward) > 0 {
		b.WriteString(th.WarningText.Render(" *"))
	}
	return b.String()
}

func (m Model) previewView() string {
	th := m.theme
	title := " "
	if it, ok := m.Selected(); ok {
		title = th.PreviewTitle.Render(fmt.Sprintf("%s %s", it.Kind, ddl.Quote(it.Name)))
	}

	border := th.UnfocusedBorder
	if m.focus == focusPreview {
		border = th.FocusedBorder
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.preview.View())
	return border.Width(m.previewWidth()).Height(m.paneHeight()).Render(content)
}

func (m Model) statusView() string {
	th := m.theme
	tables, views := 0, 0
	forward := 0
	for _, it := range m.items {
		if it.Kind == ddl.KindView {
			views++
		} else {
			tables++
		}
		forward += len(it.Forward)
	}

	parts := []string{
		th.StatusBarKey.Render("sqlayout"),
		th.StatusBarValue.Render(fmt.Sprintf("%d tables  %d views", tables, views)),
	}
	if forward > 0 {
		parts = append(parts, th.StatusBarValue.Render(fmt.Sprintf("%d forward refs", forward)))
	}
	if m.footer != "" {
		parts = append(parts, th.StatusBar.Render(" "+m.footer+" "))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) listWidth() int {
	w := m.width / 3
	if w < minListWidth {
		w = minListWidth
	}
	if w > maxListWidth {
		w = maxListWidth
	}
	return w
}

func (m Model) previewWidth() int {
	// Two borders of two columns each.
	w := m.width - m.listWidth() - 4
	if w < minListWidth {
		w = minListWidth
	}
	return w
}

// paneHeight is the inner height of both panes.
func (m Model) paneHeight() int {
	// Border, status bar and help.
	chrome := 2 + 1 + lipgloss.Height(m.help.View(m.keys))
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	return h
}

// visibleCount returns how many rows fit under the list title and filter.
func (m Model) visibleCount() int {
	n := m.paneHeight() - 2
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Model) ensureVisible() {
	visible := m.visibleCount()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

func kindLetter(k ddl.StatementKind) string {
	if k == ddl.KindView {
		return "V"
	}
	return "T"
}

// renderMatched styles the bytes of s at the matched offsets.
func renderMatched(s string, matched []int, style lipgloss.Style) string {
	if len(matched) == 0 {
		return s
	}
	hit := make(map[int]bool, len(matched))
	for _, i := range matched {
		hit[i] = true
	}
	var b strings.Builder
	for i, r := range s {
		if hit[i] {
			b.WriteString(style.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, width int) string {
	if width < 4 {
		width = 4
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
