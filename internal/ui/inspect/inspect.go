// Package inspect renders Java field listings: a static lipgloss table and an
// interactive bubbletea browser over an object proxy.
package inspect

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/dop251/goja"

	"github.com/zboralski/jbridge/internal/field"
	"github.com/zboralski/jbridge/internal/ui/colorize"
)

// Source is what the browser lists. *proxy.Object and *proxy.Class satisfy
// it.
type Source interface {
	ClassName() string
	FieldNames() []string
	Field(name string) (*field.Field, bool)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorize.ColorKeyword))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle   = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

// Columns of the browser table.
var Columns = []table.Column{
	{Title: "Field", Width: 18},
	{Title: "Type", Width: 10},
	{Title: "Static", Width: 6},
	{Title: "Value", Width: 36},
}

// Rows reads every field of src. A field that cannot be read shows its
// error in the value column.
func Rows(src Source) []table.Row {
	names := src.FieldNames()
	rows := make([]table.Row, 0, len(names))
	for _, name := range names {
		fld, _ := src.Field(name)
		tag, err := fld.Tag()
		if err != nil {
			rows = append(rows, table.Row{name, "?", "", "error: " + err.Error()})
			continue
		}
		static, _ := fld.IsStatic()
		rows = append(rows, table.Row{name, tag.String(), yesNo(static), readValue(fld)})
	}
	return rows
}

func readValue(fld *field.Field) string {
	v, err := fld.Get()
	if err != nil {
		return "error: " + err.Error()
	}
	return FormatValue(v)
}

// FormatValue renders a script value the way the browser shows it: strings
// quoted, null as null, proxies by their Java toString.
func FormatValue(v goja.Value) string {
	if v == nil || goja.IsNull(v) || goja.IsUndefined(v) {
		return "null"
	}
	switch x := v.Export().(type) {
	case string:
		return strconv.Quote(x)
	case fmt.Stringer:
		return x.String()
	}
	return v.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// Model is the bubbletea model of the field browser. r rereads every field,
// q quits.
type Model struct {
	src   Source
	title string
	table table.Model
	reads int
}

// New builds the browser over src and reads the fields once.
func New(src Source) Model {
	t := table.New(
		table.WithColumns(Columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := Model{src: src, title: src.ClassName(), table: t}
	m.refresh()
	return m
}

func (m *Model) refresh() {
	m.table.SetRows(Rows(m.src))
	m.reads++
}

// Reads returns how many times the fields were read.
func (m Model) Reads() int { return m.reads }

// Table returns the underlying table widget.
func (m Model) Table() table.Model { return m.table }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.refresh()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return titleStyle.Render(m.title) + "\n" +
		boxStyle.Render(m.table.View()) + "\n" +
		helpStyle.Render("↑/↓ move • r refresh • q quit") + "\n"
}

// Run starts the browser on the terminal and blocks until the user quits.
func Run(src Source) error {
	_, err := tea.NewProgram(New(src)).Run()
	return err
}

// FieldTable renders rows under headers as a bordered table.
func FieldTable(headers []string, rows [][]string) string {
	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return titleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.Render()
}
