package tui

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/andy/duesink/internal/app"
	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/finance"
	"github.com/andy/duesink/internal/service"
	tea "github.com/charmbracelet/bubbletea"
)

// DashboardModel represents the dashboard home screen
type DashboardModel struct {
	app *app.App

	// Data
	receivables *service.ReceivablesSummary
	stats       *domain.CollectionStats
	upcoming    []upcomingInstallment
	clientNames map[int64]string

	loading bool
	err     error
}

// upcomingInstallment is an unsettled installment with its invoice number
type upcomingInstallment struct {
	number      string
	clientID    int64
	installment *domain.Installment
}

type dashboardDataMsg struct {
	receivables *service.ReceivablesSummary
	stats       *domain.CollectionStats
	upcoming    []upcomingInstallment
	clientNames map[int64]string
	err         error
}

// NewDashboardModel creates a new dashboard model
func NewDashboardModel(a *app.App) tea.Model {
	return &DashboardModel{
		app:         a,
		loading:     true,
		clientNames: make(map[int64]string),
	}
}

func (m *DashboardModel) Init() tea.Cmd {
	return m.loadData()
}

func (m *DashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		msg := dashboardDataMsg{clientNames: make(map[int64]string)}

		receivables, err := m.app.ReportService.GetReceivables(ctx)
		if err != nil {
			msg.err = fmt.Errorf("receivables: %w", err)
			return msg
		}
		msg.receivables = receivables

		stats, err := m.app.CollectionService.Statistics(ctx, nil)
		if err != nil {
			msg.err = fmt.Errorf("collection stats: %w", err)
			return msg
		}
		msg.stats = stats

		// Installments still owed, soonest first
		invoices, err := m.app.InvoiceService.ListInvoices(ctx, nil, nil)
		if err == nil {
			for _, inv := range invoices {
				if inv.IsCancelled() {
					continue
				}
				for _, inst := range inv.Installments {
					if inst.IsUnsettled() {
						msg.upcoming = append(msg.upcoming, upcomingInstallment{number: inv.Number, clientID: inv.ClientID, installment: inst})
					}
				}
			}
			sort.Slice(msg.upcoming, func(i, j int) bool {
				return msg.upcoming[i].installment.DueDate.Before(msg.upcoming[j].installment.DueDate)
			})
			for _, u := range msg.upcoming {
				if _, ok := msg.clientNames[u.clientID]; ok {
					continue
				}
				if client, err := m.app.ClientRepo.GetByID(ctx, u.clientID); err == nil {
					msg.clientNames[u.clientID] = client.Name
				}
			}
		}

		return msg
	}
}

func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		m.loading = false
		m.err = msg.err
		m.receivables = msg.receivables
		m.stats = msg.stats
		m.upcoming = msg.upcoming
		m.clientNames = msg.clientNames
		return m, nil

	case RefreshDataMsg:
		m.loading = true
		return m, m.loadData()
	}

	return m, nil
}

func (m *DashboardModel) View() string {
	if m.loading {
		return "Loading dashboard..."
	}

	if m.err != nil {
		return errorText(m.err)
	}

	r := m.receivables
	s := fmt.Sprintf(
		"  Open invoices: %-6d  Outstanding: %s\n  Overdue:       %-6d  Overdue amount: %s\n",
		r.Invoices,
		amountStyle.Render(formatMoney(r.Outstanding)),
		r.ByStatus[domain.InvoiceStatusOverdue],
		statusStyle(string(domain.InvoiceStatusOverdue)).Render(formatMoney(r.Overdue)),
	)

	s += "\n  Collections\n"
	if m.stats == nil || m.stats.Total == 0 {
		s += subtitleStyle.Render("  No collections yet") + "\n"
	} else {
		line := " "
		for _, st := range domain.AllCollectionStatuses {
			line += fmt.Sprintf(" %s %d ", statusStyle(string(st)).Render(string(st)), m.stats.Count(st))
		}
		s += line + "\n"
	}

	s += "\n" + m.renderUpcoming()
	return s
}

func (m *DashboardModel) renderUpcoming() string {
	header := "  Next Installments\n"
	if len(m.upcoming) == 0 {
		return header + subtitleStyle.Render("  Nothing owed") + "\n"
	}

	now := time.Now()
	s := header
	limit := 8
	if len(m.upcoming) < limit {
		limit = len(m.upcoming)
	}

	for _, u := range m.upcoming[:limit] {
		name, ok := m.clientNames[u.clientID]
		if !ok {
			name = fmt.Sprintf("Client #%d", u.clientID)
		}
		status := string(u.installment.StatusAt(now))
		s += fmt.Sprintf("  %-10s %-12s %-14s %-20s %14s  %s\n",
			u.installment.DueDate.Format("2006-01-02"),
			dueLabel(u.installment.DueDate, now),
			fmt.Sprintf("%s/%d", u.number, u.installment.Number),
			truncateStr(name, 20),
			formatMoney(u.installment.Outstanding()),
			statusStyle(status).Render(status),
		)
	}

	return s
}

// dueLabel describes how far a due date is from now.
func dueLabel(due, now time.Time) string {
	if finance.IsOverdue(due, now) {
		late := -finance.DaysUntilDue(due, now)
		if late == 0 {
			return "due today"
		}
		return fmt.Sprintf("%dd late", late)
	}
	days := finance.DaysUntilDue(due, now)
	if days == 0 {
		return "due today"
	}
	return fmt.Sprintf("in %dd", days)
}
