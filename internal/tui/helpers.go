package tui

import (
	"fmt"

	"github.com/andy/duesink/internal/money"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// formatMoney formats money as "R$ X.XXX,XX"
func formatMoney(amount decimal.Decimal) string {
	return money.FormatBRL(amount)
}

// truncateStr truncates a string to the specified length with ellipsis
func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formField describes one text input of a form
type formField struct {
	label       string
	placeholder string
	value       string
	width       int
	charLimit   int
}

// form is a vertical list of text inputs with one focused at a time
type form struct {
	labels []string
	inputs []textinput.Model
	focus  int
}

func newForm(fields []formField) *form {
	f := &form{
		labels: make([]string, len(fields)),
		inputs: make([]textinput.Model, len(fields)),
	}
	for i, field := range fields {
		in := textinput.New()
		in.Placeholder = field.placeholder
		in.CharLimit = field.charLimit
		if in.CharLimit == 0 {
			in.CharLimit = 100
		}
		in.Width = field.width
		if in.Width == 0 {
			in.Width = 40
		}
		in.SetValue(field.value)
		f.labels[i] = field.label
		f.inputs[i] = in
	}
	return f
}

func (f *form) Focus() tea.Cmd {
	return f.inputs[f.focus].Focus()
}

func (f *form) Value(i int) string {
	return f.inputs[i].Value()
}

func (f *form) isLast() bool {
	return f.focus == len(f.inputs)-1
}

func (f *form) next() tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + 1) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

func (f *form) prev() tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus - 1 + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

// update handles navigation keys. submit reports that the form should be
// saved; cancel reports esc.
func (f *form) update(msg tea.Msg) (cmd tea.Cmd, submit, cancel bool) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			return nil, false, true
		case "tab", "down":
			return f.next(), false, false
		case "shift+tab", "up":
			return f.prev(), false, false
		case "enter":
			if f.isLast() {
				return nil, true, false
			}
			return f.next(), false, false
		case "ctrl+s":
			return nil, true, false
		}
	}

	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd, false, false
}

func (f *form) View(title string, err error) string {
	s := titleStyle.Render(title) + "\n\n"
	for i, label := range f.labels {
		indicator := "  "
		labelStyle := subtitleStyle
		if i == f.focus {
			indicator = "> "
			labelStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
		}
		s += fmt.Sprintf("%s%s\n  %s\n\n", indicator, labelStyle.Render(label), f.inputs[i].View())
	}

	if err != nil {
		s += errorText(err) + "\n\n"
	}

	s += helpStyle.Render("  tab/shift+tab: navigate fields  ctrl+s: save  enter: next/save  esc: cancel")
	return s
}

func errorText(err error) string {
	return lipgloss.NewStyle().Foreground(errorColor).Render(fmt.Sprintf("  Error: %v", err))
}

func statusText(msg string) string {
	return lipgloss.NewStyle().Foreground(successColor).Render("  " + msg)
}

func clampCursor(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}
