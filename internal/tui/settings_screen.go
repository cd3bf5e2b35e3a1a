package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andy/duesink/internal/app"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type settingsMode int

const (
	settingsModeView settingsMode = iota
	settingsModeEdit
)

// settings form field indices
const (
	settingsFieldPrefix = iota
	settingsFieldDueDays
	settingsFieldPolicy
	settingsFieldInterest
	settingsFieldPenalty
	settingsFieldDiscount
	settingsFieldChannel
	settingsFieldRegion
)

var settingsLabels = []string{
	"Number Prefix:",
	"Default Due Days:",
	"Interest Policy (simple/compound/price):",
	"Daily Late Interest (%):",
	"Late Penalty (%):",
	"Monthly Early Discount (%):",
	"Default Channel (email/whatsapp/sms/pix):",
	"Phone Region:",
}

type settingsSavedMsg struct {
	err error
}

// SettingsModel manages the settings screen
type SettingsModel struct {
	app       *app.App
	mode      settingsMode
	form      *form
	err       error
	statusMsg string
}

// NewSettingsModel creates a new settings screen
func NewSettingsModel(a *app.App) tea.Model {
	return &SettingsModel{
		app:  a,
		mode: settingsModeView,
	}
}

// IsCapturingInput returns true when the edit form is active
func (m *SettingsModel) IsCapturingInput() bool {
	return m.mode == settingsModeEdit
}

func (m *SettingsModel) Init() tea.Cmd {
	return nil
}

func (m *SettingsModel) values() []string {
	cfg := m.app.Config
	return []string{
		cfg.Invoice.NumberPrefix,
		strconv.Itoa(cfg.Invoice.DefaultDueDays),
		cfg.Invoice.InterestPolicy,
		cfg.Charges.DailyInterest,
		cfg.Charges.Penalty,
		cfg.Charges.MonthlyDiscount,
		cfg.Collection.DefaultChannel,
		cfg.Collection.PhoneRegion,
	}
}

func (m *SettingsModel) openForm() tea.Cmd {
	values := m.values()
	fields := make([]formField, len(settingsLabels))
	for i, label := range settingsLabels {
		fields[i] = formField{label: label, value: values[i], width: 20, charLimit: 20}
	}
	m.form = newForm(fields)
	m.mode = settingsModeEdit
	m.statusMsg = ""
	return m.form.Focus()
}

func (m *SettingsModel) saveSettings() tea.Cmd {
	values := make([]string, len(settingsLabels))
	for i := range values {
		values[i] = strings.TrimSpace(m.form.Value(i))
	}

	return func() tea.Msg {
		if values[settingsFieldPrefix] == "" {
			return settingsSavedMsg{err: fmt.Errorf("invoice prefix is required")}
		}
		dueDays, err := strconv.Atoi(values[settingsFieldDueDays])
		if err != nil || dueDays <= 0 {
			return settingsSavedMsg{err: fmt.Errorf("due days must be a positive number")}
		}

		// Validate a copy so a bad value never reaches the live config
		cfg := *m.app.Config
		cfg.Invoice.NumberPrefix = values[settingsFieldPrefix]
		cfg.Invoice.DefaultDueDays = dueDays
		cfg.Invoice.InterestPolicy = strings.ToLower(values[settingsFieldPolicy])
		cfg.Charges.DailyInterest = values[settingsFieldInterest]
		cfg.Charges.Penalty = values[settingsFieldPenalty]
		cfg.Charges.MonthlyDiscount = values[settingsFieldDiscount]
		cfg.Collection.DefaultChannel = strings.ToLower(values[settingsFieldChannel])
		cfg.Collection.PhoneRegion = strings.ToUpper(values[settingsFieldRegion])
		if err := cfg.Validate(); err != nil {
			return settingsSavedMsg{err: err}
		}

		*m.app.Config = cfg
		if err := m.app.SaveConfig(); err != nil {
			return settingsSavedMsg{err: fmt.Errorf("failed to save config: %w", err)}
		}
		return settingsSavedMsg{}
	}
}

func (m *SettingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if saved, ok := msg.(settingsSavedMsg); ok {
		if saved.err != nil {
			m.err = saved.err
			return m, nil
		}
		m.mode = settingsModeView
		m.err = nil
		m.statusMsg = "Settings saved. Rates and policies apply after restart."
		return m, nil
	}

	if m.mode == settingsModeEdit {
		cmd, submit, cancel := m.form.update(msg)
		switch {
		case cancel:
			m.mode = settingsModeView
			m.err = nil
			return m, nil
		case submit:
			return m, m.saveSettings()
		}
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		m.err = nil
		if key.Matches(msg, DefaultKeyMap.Select) {
			return m, m.openForm()
		}
	}

	return m, nil
}

func (m *SettingsModel) View() string {
	if m.mode == settingsModeEdit {
		return m.form.View("Edit Settings", m.err)
	}

	s := titleStyle.Render("Settings") + "\n\n"
	if m.statusMsg != "" {
		s += statusText(m.statusMsg) + "\n\n"
	}

	labelStyle := lipgloss.NewStyle().Bold(true).Width(44)
	valueStyle := lipgloss.NewStyle().Foreground(primaryColor)

	values := m.values()
	for i, label := range settingsLabels {
		switch i {
		case settingsFieldPrefix:
			s += subtitleStyle.Render("  Invoices") + "\n"
		case settingsFieldInterest:
			s += "\n" + subtitleStyle.Render("  Charges") + "\n"
		case settingsFieldChannel:
			s += "\n" + subtitleStyle.Render("  Collections") + "\n"
		}
		s += fmt.Sprintf("  %s %s\n", labelStyle.Render(label), valueStyle.Render(values[i]))
	}

	s += "\n" + helpStyle.Render("  enter: edit settings")
	return s
}
