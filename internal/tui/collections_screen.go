package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/andy/duesink/internal/app"
	"github.com/andy/duesink/internal/domain"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// CollectionsModel lists collections awaiting dispatch and their delivery logs
type CollectionsModel struct {
	app         *app.App
	collections []*domain.Collection
	cursor      int
	loading     bool
	err         error
	statusMsg   string

	// Delivery log of the selected collection, nil when the list is shown
	log []*domain.DeliveryLogEntry
}

type collectionsDataMsg struct {
	collections []*domain.Collection
	err         error
}

type deliveryLogMsg struct {
	entries []*domain.DeliveryLogEntry
	err     error
}

type dispatchResultMsg struct {
	status string
	err    error
}

// NewCollectionsModel creates a new collections screen model
func NewCollectionsModel(a *app.App) tea.Model {
	return &CollectionsModel{
		app:     a,
		loading: true,
	}
}

func (m *CollectionsModel) Init() tea.Cmd {
	return m.loadCollections()
}

func (m *CollectionsModel) loadCollections() tea.Cmd {
	return func() tea.Msg {
		collections, err := m.app.CollectionService.ListPending(context.Background())
		return collectionsDataMsg{collections: collections, err: err}
	}
}

func (m *CollectionsModel) loadLog(id int64) tea.Cmd {
	return func() tea.Msg {
		entries, err := m.app.CollectionService.ListDeliveryLog(context.Background(), id)
		if entries == nil && err == nil {
			entries = []*domain.DeliveryLogEntry{}
		}
		return deliveryLogMsg{entries: entries, err: err}
	}
}

// dispatch sends the reminder for one collection through its channel sender
func (m *CollectionsModel) dispatch(c *domain.Collection) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		sender, err := m.app.Senders.Get(c.Channel)
		if err != nil {
			return dispatchResultMsg{err: err}
		}
		msg, err := m.app.CollectionService.PrepareReminder(ctx, c.ID)
		if err != nil {
			return dispatchResultMsg{err: err}
		}

		updated, outcome, err := m.app.CollectionService.Dispatch(ctx, c.ID, sender, msg, m.app.Backoff())
		if err != nil {
			return dispatchResultMsg{err: err}
		}
		if !outcome.Success {
			return dispatchResultMsg{err: fmt.Errorf("collection #%d: %s (attempt %d)", c.ID, outcome.Error, updated.Attempts)}
		}
		return dispatchResultMsg{status: fmt.Sprintf("Collection #%d sent to %s", c.ID, msg.Destination)}
	}
}

func (m *CollectionsModel) cancel(c *domain.Collection) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.app.CollectionService.Cancel(context.Background(), c.ID); err != nil {
			return dispatchResultMsg{err: err}
		}
		return dispatchResultMsg{status: fmt.Sprintf("Collection #%d cancelled", c.ID)}
	}
}

func (m *CollectionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshDataMsg:
		m.loading = true
		m.log = nil
		return m, m.loadCollections()

	case collectionsDataMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.collections = msg.collections
			m.cursor = clampCursor(m.cursor, len(m.collections))
		}
		return m, nil

	case deliveryLogMsg:
		m.err = msg.err
		if msg.err == nil {
			m.log = msg.entries
		}
		return m, nil

	case dispatchResultMsg:
		m.err = msg.err
		m.statusMsg = msg.status
		m.loading = true
		return m, m.loadCollections()

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}

		if m.log != nil {
			if key.Matches(msg, DefaultKeyMap.Back) {
				m.log = nil
			}
			return m, nil
		}

		m.statusMsg = ""
		m.err = nil

		switch {
		case key.Matches(msg, DefaultKeyMap.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, DefaultKeyMap.Down):
			if m.cursor < len(m.collections)-1 {
				m.cursor++
			}
		case key.Matches(msg, DefaultKeyMap.Select):
			if m.cursor < len(m.collections) {
				return m, m.loadLog(m.collections[m.cursor].ID)
			}
		case msg.String() == "s":
			if m.cursor < len(m.collections) {
				return m, m.dispatch(m.collections[m.cursor])
			}
		case key.Matches(msg, DefaultKeyMap.Cancel):
			if m.cursor < len(m.collections) {
				return m, m.cancel(m.collections[m.cursor])
			}
		}
	}

	return m, nil
}

func (m *CollectionsModel) View() string {
	if m.loading {
		return "Loading collections..."
	}
	if m.log != nil {
		return m.viewLog()
	}

	s := titleStyle.Render("Pending Collections") + "\n\n"
	if m.statusMsg != "" {
		s += statusText(m.statusMsg) + "\n\n"
	}
	if m.err != nil {
		s += errorText(m.err) + "\n\n"
	}

	if len(m.collections) == 0 {
		s += subtitleStyle.Render("  Nothing to dispatch. Open collections from an invoice with 's'.") + "\n"
		return s
	}

	now := time.Now()
	s += subtitleStyle.Render(fmt.Sprintf("  %-6s %-12s %-10s %-9s %-16s", "ID", "Installment", "Channel", "Attempts", "Next retry")) + "\n"
	for i, c := range m.collections {
		indicator := "  "
		style := lipgloss.NewStyle()
		if i == m.cursor {
			indicator = "> "
			style = style.Bold(true).Foreground(primaryColor)
		}

		retry := "now"
		if c.NextRetryAt != nil && c.NextRetryAt.After(now) {
			retry = c.NextRetryAt.Local().Format("2006-01-02 15:04")
		}
		row := fmt.Sprintf("%s%-6d %-12d %-10s %-9d %-16s",
			indicator, c.ID, c.InstallmentID, c.Channel, c.Attempts, retry)
		s += style.Render(row) + "  " + statusStyle(string(c.Status)).Render(string(c.Status)) + "\n"
	}

	s += "\n" + helpStyle.Render("  j/k: navigate  s: send reminder  enter: delivery log  x: cancel")
	return s
}

func (m *CollectionsModel) viewLog() string {
	c := m.collections[m.cursor]
	s := titleStyle.Render(fmt.Sprintf("Delivery Log - Collection #%d", c.ID)) + "\n\n"

	if len(m.log) == 0 {
		s += subtitleStyle.Render("  No dispatch attempts yet") + "\n"
	}
	for _, e := range m.log {
		line := fmt.Sprintf("  #%-3d %s  %-8s %-8s %s",
			e.Attempt,
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			e.Channel,
			e.Status,
			truncateStr(e.Destination, 30),
		)
		if e.ErrorMessage != "" {
			line += "  " + lipgloss.NewStyle().Foreground(errorColor).Render(truncateStr(e.ErrorMessage, 40))
		}
		s += line + "\n"
	}

	s += "\n" + helpStyle.Render("  esc: back")
	return s
}
