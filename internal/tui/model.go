package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/andy/duesink/internal/app"
	"github.com/andy/duesink/internal/logger"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Screen represents the current active screen
type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenInvoices
	ScreenCollections
	ScreenClients
	ScreenReports
	ScreenSettings
	screenCount
)

// String returns the screen name
func (s Screen) String() string {
	switch s {
	case ScreenDashboard:
		return "Dashboard"
	case ScreenInvoices:
		return "Invoices"
	case ScreenCollections:
		return "Collections"
	case ScreenClients:
		return "Clients"
	case ScreenReports:
		return "Reports"
	case ScreenSettings:
		return "Settings"
	default:
		return "Unknown"
	}
}

// newScreen builds the model for a screen
func newScreen(s Screen, a *app.App) tea.Model {
	switch s {
	case ScreenDashboard:
		return NewDashboardModel(a)
	case ScreenInvoices:
		return NewInvoicesModel(a)
	case ScreenCollections:
		return NewCollectionsModel(a)
	case ScreenClients:
		return NewClientsModel(a)
	case ScreenReports:
		return NewReportsModel(a)
	case ScreenSettings:
		return NewSettingsModel(a)
	}
	return nil
}

// Model is the root Bubble Tea model
type Model struct {
	app           *app.App
	currentScreen Screen
	width         int
	height        int

	// Screen models (lazy initialized)
	screens [screenCount]tea.Model

	// First-run state
	checkedFirstRun bool

	// Error state
	err error
}

// New creates a new root model
func New(a *app.App) Model {
	m := Model{
		app:           a,
		currentScreen: ScreenDashboard,
	}
	m.screens[ScreenDashboard] = NewDashboardModel(a)
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.checkFirstRun(), m.screens[ScreenDashboard].Init())
}

// checkFirstRun checks if any clients exist in the database
func (m *Model) checkFirstRun() tea.Cmd {
	return func() tea.Msg {
		clients, err := m.app.ClientRepo.List(context.Background(), false)
		if err != nil {
			return firstRunCheckMsg{hasClients: true} // assume yes on error
		}
		return firstRunCheckMsg{hasClients: len(clients) > 0}
	}
}

// initScreen lazy-initializes a screen on first visit,
// and sends a RefreshDataMsg on subsequent visits so screens reload data.
func (m *Model) initScreen(screen Screen) tea.Cmd {
	if m.screens[screen] == nil {
		m.screens[screen] = newScreen(screen, m.app)
		return m.screens[screen].Init()
	}
	return func() tea.Msg { return RefreshDataMsg{} }
}

func (m *Model) switchTo(screen Screen) tea.Cmd {
	m.currentScreen = screen
	return m.initScreen(screen)
}

// InputCapturer is implemented by screens that capture keyboard input (e.g. text forms).
// When active, global navigation keys are suppressed.
type InputCapturer interface {
	IsCapturingInput() bool
}

// activeScreenCapturingInput returns true if the current screen is capturing text input
func (m *Model) activeScreenCapturingInput() bool {
	if ic, ok := m.screens[m.currentScreen].(InputCapturer); ok {
		return ic.IsCapturingInput()
	}
	return false
}

// Update implements tea.Model - routes keys to screens
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		m.err = nil

		// Skip global navigation when a screen is capturing text input
		if !m.activeScreenCapturingInput() {
			switch {
			case key.Matches(msg, DefaultKeyMap.Quit):
				return m, tea.Quit
			case key.Matches(msg, DefaultKeyMap.Dashboard):
				return m, m.switchTo(ScreenDashboard)
			case key.Matches(msg, DefaultKeyMap.Invoices):
				return m, m.switchTo(ScreenInvoices)
			case key.Matches(msg, DefaultKeyMap.Collections):
				return m, m.switchTo(ScreenCollections)
			case key.Matches(msg, DefaultKeyMap.Clients):
				return m, m.switchTo(ScreenClients)
			case key.Matches(msg, DefaultKeyMap.Reports):
				return m, m.switchTo(ScreenReports)
			case key.Matches(msg, DefaultKeyMap.Settings):
				return m, m.switchTo(ScreenSettings)
			}
		}

	case firstRunCheckMsg:
		if !m.checkedFirstRun && !msg.hasClients {
			m.checkedFirstRun = true
			initCmd := m.switchTo(ScreenClients)
			openFormCmd := func() tea.Msg { return OpenNewClientFormMsg{} }
			return m, tea.Batch(initCmd, openFormCmd)
		}
		m.checkedFirstRun = true
		return m, nil

	case SwitchScreenMsg:
		return m, m.switchTo(msg.Screen)

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	// Route message to current screen
	var cmd tea.Cmd
	if screen := m.screens[m.currentScreen]; screen != nil {
		m.screens[m.currentScreen], cmd = screen.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model - renders header + current screen + footer
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := headerStyle.Render(fmt.Sprintf("duesink - %s", m.currentScreen.String()))
	footer := footerStyle.Render("[G] Dashboard  [I]nvoices  C[O]llections  [C]lients  [R]eports  [,] Settings  [Q]uit")

	content := "Loading..."
	if screen := m.screens[m.currentScreen]; screen != nil {
		content = screen.View()
	}

	errorDisplay := ""
	if m.err != nil {
		errorDisplay = "\n" + errorText(m.err)
	}

	// Divider line between header and content
	innerWidth := m.width - 6 // account for border (2) + padding (4)
	if innerWidth < 20 {
		innerWidth = 20
	}
	dividerWidth := innerWidth - 12
	if dividerWidth < 10 {
		dividerWidth = 10
	}
	divider := lipgloss.NewStyle().Foreground(borderColor).Render(
		strings.Repeat("─", dividerWidth),
	)

	body := fmt.Sprintf("%s\n%s\n\n%s%s\n\n%s\n%s", header, divider, content, errorDisplay, divider, footer)

	// Wrap in border, sized to terminal
	frame := appBorderStyle.
		Width(innerWidth).
		Height(m.height - 4) // leave room for border top/bottom
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, frame.Render(body))
}

// Run starts the TUI. Logging is silenced while the alternate screen is up.
func Run(a *app.App) error {
	logger.Silence()
	p := tea.NewProgram(New(a), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
