package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andy/duesink/internal/app"
	"github.com/andy/duesink/internal/channel"
	"github.com/andy/duesink/internal/domain"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// clientMode represents the current screen mode
type clientMode int

const (
	clientModeList clientMode = iota
	clientModeNew
	clientModeEdit
)

// form field indices
const (
	fieldName = iota
	fieldEmail
	fieldPhone
	fieldTaxID
	fieldNotes
)

// ClientsModel displays a navigable list of clients with create/edit forms
type ClientsModel struct {
	app          *app.App
	clients      []*domain.Client
	cursor       int
	showArchived bool
	outstanding  map[int64]decimal.Decimal
	loading      bool
	err          error
	statusMsg    string

	// Form state
	mode          clientMode
	form          *form
	editingID     int64 // 0 for new client
	autoNewClient bool  // open new client form after data loads
}

type clientsDataMsg struct {
	clients     []*domain.Client
	outstanding map[int64]decimal.Decimal
	err         error
}

type clientSavedMsg struct {
	name string
	err  error
}

// NewClientsModel creates a new clients screen model
func NewClientsModel(a *app.App) tea.Model {
	return &ClientsModel{
		app:         a,
		outstanding: make(map[int64]decimal.Decimal),
		loading:     true,
	}
}

// IsCapturingInput returns true when the form is active
func (m *ClientsModel) IsCapturingInput() bool {
	return m.mode == clientModeNew || m.mode == clientModeEdit
}

func (m *ClientsModel) Init() tea.Cmd {
	return m.loadClients()
}

func (m *ClientsModel) loadClients() tea.Cmd {
	showArchived := m.showArchived
	return func() tea.Msg {
		ctx := context.Background()

		clients, err := m.app.ClientRepo.List(ctx, showArchived)
		if err != nil {
			return clientsDataMsg{err: err}
		}

		outstanding := make(map[int64]decimal.Decimal)
		for _, client := range clients {
			summary, err := m.app.ReportService.GetClientSummary(ctx, client.ID)
			if err != nil {
				continue
			}
			outstanding[client.ID] = summary.Outstanding
		}

		return clientsDataMsg{
			clients:     clients,
			outstanding: outstanding,
		}
	}
}

func (m *ClientsModel) openForm(editing *domain.Client) tea.Cmd {
	var name, email, phone, taxID, notes string
	m.editingID = 0
	m.mode = clientModeNew
	if editing != nil {
		name, email, phone, taxID, notes = editing.Name, editing.Email, editing.Phone, editing.TaxID, editing.Notes
		m.editingID = editing.ID
		m.mode = clientModeEdit
	}

	m.form = newForm([]formField{
		{label: "Name:", placeholder: "Client name", value: name},
		{label: "Email:", placeholder: "billing@example.com", value: email},
		{label: "Phone:", placeholder: "+55 11 91234-5678", value: phone, width: 20, charLimit: 25},
		{label: "Tax ID:", placeholder: "CPF or CNPJ", value: taxID, width: 20, charLimit: 20},
		{label: "Notes:", placeholder: "Optional notes", value: notes, width: 50, charLimit: 200},
	})
	m.err = nil
	return m.form.Focus()
}

func (m *ClientsModel) saveClient() tea.Cmd {
	name := strings.TrimSpace(m.form.Value(fieldName))
	email := strings.TrimSpace(m.form.Value(fieldEmail))
	phone := strings.TrimSpace(m.form.Value(fieldPhone))
	taxID := strings.TrimSpace(m.form.Value(fieldTaxID))
	notes := m.form.Value(fieldNotes)
	editingID := m.editingID

	return func() tea.Msg {
		ctx := context.Background()

		if phone != "" {
			normalized, err := channel.NormalizePhone(phone, m.app.Config.Collection.PhoneRegion)
			if err != nil {
				return clientSavedMsg{err: fmt.Errorf("invalid phone: %w", err)}
			}
			phone = normalized
		}

		client := domain.NewClient(name)
		if editingID > 0 {
			existing, err := m.app.ClientRepo.GetByID(ctx, editingID)
			if err != nil {
				return clientSavedMsg{err: err}
			}
			client = existing
			client.Name = name
			client.UpdatedAt = time.Now()
		}
		client.Email = email
		client.Phone = phone
		client.TaxID = taxID
		client.Notes = notes

		if err := client.Validate(); err != nil {
			return clientSavedMsg{err: err}
		}

		if editingID > 0 {
			if err := m.app.ClientRepo.Update(ctx, client); err != nil {
				return clientSavedMsg{err: err}
			}
			return clientSavedMsg{name: name}
		}

		if err := m.app.ClientRepo.Create(ctx, client); err != nil {
			return clientSavedMsg{err: err}
		}
		return clientSavedMsg{name: name}
	}
}

func (m *ClientsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle OpenNewClientFormMsg at the top so it works regardless of mode
	if _, ok := msg.(OpenNewClientFormMsg); ok {
		if m.loading {
			m.autoNewClient = true
			return m, nil
		}
		return m, m.openForm(nil)
	}

	if saved, ok := msg.(clientSavedMsg); ok {
		if saved.err != nil {
			m.err = saved.err
			return m, nil
		}
		m.mode = clientModeList
		m.statusMsg = fmt.Sprintf("Saved: %s", saved.name)
		m.loading = true
		return m, m.loadClients()
	}

	if m.IsCapturingInput() {
		cmd, submit, cancel := m.form.update(msg)
		switch {
		case cancel:
			m.mode = clientModeList
			m.err = nil
			return m, nil
		case submit:
			return m, m.saveClient()
		}
		return m, cmd
	}

	switch msg := msg.(type) {
	case RefreshDataMsg:
		m.loading = true
		return m, m.loadClients()

	case clientsDataMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.clients = msg.clients
			m.outstanding = msg.outstanding
			m.cursor = clampCursor(m.cursor, len(m.clients))
		}
		if m.autoNewClient {
			m.autoNewClient = false
			return m, m.openForm(nil)
		}
		return m, nil

	case tea.KeyMsg:
		if m.loading {
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
			if m.cursor < len(m.clients)-1 {
				m.cursor++
			}
		case key.Matches(msg, DefaultKeyMap.New):
			return m, m.openForm(nil)
		case key.Matches(msg, DefaultKeyMap.Select):
			if m.cursor < len(m.clients) {
				return m, m.openForm(m.clients[m.cursor])
			}
		case msg.String() == "a":
			if m.cursor < len(m.clients) {
				return m, m.toggleArchive(m.clients[m.cursor])
			}
		case msg.String() == "h":
			m.showArchived = !m.showArchived
			m.cursor = 0
			m.loading = true
			return m, m.loadClients()
		}
	}

	return m, nil
}

func (m *ClientsModel) toggleArchive(client *domain.Client) tea.Cmd {
	reload := m.loadClients()
	return func() tea.Msg {
		ctx := context.Background()

		var err error
		if client.IsArchived {
			err = m.app.ClientRepo.Unarchive(ctx, client.ID)
		} else {
			err = m.app.ClientRepo.Archive(ctx, client.ID)
		}
		if err != nil {
			return clientsDataMsg{err: err}
		}

		return reload()
	}
}

func (m *ClientsModel) View() string {
	if m.IsCapturingInput() {
		return m.viewForm()
	}
	return m.viewList()
}

func (m *ClientsModel) viewForm() string {
	title := "Edit Client"
	var intro string
	if m.mode == clientModeNew {
		title = "New Client"
		if len(m.clients) == 0 {
			title = "Welcome to duesink!"
			intro = subtitleStyle.Render("  Add your first client to start billing.") + "\n\n"
		}
	}
	return intro + m.form.View(title, m.err)
}

func (m *ClientsModel) viewList() string {
	if m.loading {
		return "Loading clients..."
	}

	if m.err != nil {
		return errorText(m.err)
	}

	var s string

	header := "Clients"
	if m.showArchived {
		header += subtitleStyle.Render("  (showing archived)")
	}
	s += titleStyle.Render(header) + "\n\n"

	if m.statusMsg != "" {
		s += statusText(m.statusMsg) + "\n\n"
	}

	if len(m.clients) == 0 {
		s += subtitleStyle.Render("  No clients yet. Press 'n' to add one.") + "\n"
		s += subtitleStyle.Render("  Press 'h' to toggle archived clients") + "\n"
		return s
	}

	for i, client := range m.clients {
		s += m.renderClient(i, client) + "\n"
	}

	s += "\n" + helpStyle.Render("  j/k: navigate  n: new  enter: edit  a: archive/unarchive  h: toggle archived")

	return s
}

func (m *ClientsModel) renderClient(index int, client *domain.Client) string {
	selected := index == m.cursor

	name := client.Name
	if client.IsArchived {
		name += " (archived)"
	}

	indicator := "  "
	if selected {
		indicator = "> "
	}

	line1 := fmt.Sprintf("%s%s", indicator, name)
	line2 := fmt.Sprintf("    Outstanding: %s", formatMoney(m.outstanding[client.ID]))

	var contact []string
	for _, v := range []string{client.Email, client.Phone, client.TaxID} {
		if v != "" {
			contact = append(contact, v)
		}
	}
	if len(contact) > 0 {
		line2 += "  |  " + strings.Join(contact, "  ")
	}

	nameStyle := lipgloss.NewStyle()
	detailStyle := subtitleStyle
	if client.IsArchived {
		nameStyle = nameStyle.Foreground(mutedColor)
		detailStyle = lipgloss.NewStyle().Foreground(mutedColor)
	}
	if selected {
		nameStyle = nameStyle.Bold(true).Foreground(primaryColor)
	}

	return nameStyle.Render(line1) + "\n" + detailStyle.Render(line2)
}
