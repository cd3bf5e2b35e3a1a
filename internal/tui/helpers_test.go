package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func keyOf(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func typeText(f *form, s string) {
	for _, r := range s {
		f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestForm_Navigation(t *testing.T) {
	f := newForm([]formField{
		{label: "Name:"},
		{label: "Email:", value: "a@b.c"},
		{label: "Notes:"},
	})
	f.Focus()

	typeText(f, "Acme")
	assert.Equal(t, "Acme", f.Value(0))
	assert.Equal(t, "a@b.c", f.Value(1))

	_, submit, cancel := f.update(keyOf(tea.KeyTab))
	assert.False(t, submit)
	assert.False(t, cancel)
	assert.Equal(t, 1, f.focus)

	_, _, _ = f.update(keyOf(tea.KeyShiftTab))
	_, _, _ = f.update(keyOf(tea.KeyShiftTab))
	assert.Equal(t, 2, f.focus, "shift+tab wraps to the last field")

	_, submit, _ = f.update(keyOf(tea.KeyEnter))
	assert.True(t, submit, "enter on the last field submits")
}

func TestForm_EnterAdvancesAndEscCancels(t *testing.T) {
	f := newForm([]formField{{label: "A:"}, {label: "B:"}})
	f.Focus()

	_, submit, _ := f.update(keyOf(tea.KeyEnter))
	assert.False(t, submit)
	assert.Equal(t, 1, f.focus)

	_, submit, _ = f.update(keyOf(tea.KeyCtrlS))
	assert.True(t, submit)

	_, _, cancel := f.update(keyOf(tea.KeyEsc))
	assert.True(t, cancel)
}

func TestForm_ViewShowsLabelsAndError(t *testing.T) {
	f := newForm([]formField{{label: "Amount:"}})
	out := f.View("Record Payment", assert.AnError)
	assert.Contains(t, out, "Record Payment")
	assert.Contains(t, out, "Amount:")
	assert.Contains(t, out, assert.AnError.Error())
}

func TestTruncateStr(t *testing.T) {
	assert.Equal(t, "short", truncateStr("short", 10))
	assert.Equal(t, "abcdefg...", truncateStr("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncateStr("abcdef", 2))
}

func TestClampCursor(t *testing.T) {
	assert.Equal(t, 0, clampCursor(3, 0))
	assert.Equal(t, 2, clampCursor(5, 3))
	assert.Equal(t, 1, clampCursor(1, 3))
	assert.Equal(t, 0, clampCursor(-1, 3))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "R$ 1.234,56", formatMoney(decimal.RequireFromString("1234.56")))
}

func TestScreenString(t *testing.T) {
	assert.Equal(t, "Collections", ScreenCollections.String())
	assert.Equal(t, "Unknown", screenCount.String())
}

func TestDueLabel(t *testing.T) {
	now := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "due today", dueLabel(now, now))
	assert.Equal(t, "in 5d", dueLabel(now.AddDate(0, 0, 5), now))
	assert.Equal(t, "in 1d", dueLabel(now.Add(2*time.Hour), now))
	assert.Equal(t, "due today", dueLabel(now.Add(-2*time.Hour), now))
	assert.Equal(t, "3d late", dueLabel(now.AddDate(0, 0, -3), now))
}
