package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andy/duesink/internal/app"
	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/service"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// ReportsModel displays receivables aging and revenue per month
type ReportsModel struct {
	app         *app.App
	revenueYear int

	receivables *service.ReceivablesSummary
	monthly     map[time.Month]decimal.Decimal

	loading bool
	err     error
}

type reportsDataMsg struct {
	receivables *service.ReceivablesSummary
	monthly     map[time.Month]decimal.Decimal
	err         error
}

// NewReportsModel creates a new reports screen model
func NewReportsModel(a *app.App) tea.Model {
	return &ReportsModel{
		app:         a,
		revenueYear: time.Now().Year(),
		loading:     true,
	}
}

func (m *ReportsModel) Init() tea.Cmd {
	return m.loadData()
}

func (m *ReportsModel) loadData() tea.Cmd {
	year := m.revenueYear
	return func() tea.Msg {
		ctx := context.Background()

		receivables, err := m.app.ReportService.GetReceivables(ctx)
		if err != nil {
			return reportsDataMsg{err: err}
		}
		monthly, err := m.app.ReportService.GetRevenueByMonth(ctx, year)
		if err != nil {
			return reportsDataMsg{err: err}
		}
		return reportsDataMsg{receivables: receivables, monthly: monthly}
	}
}

func (m *ReportsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.receivables = msg.receivables
			m.monthly = msg.monthly
		}
		return m, nil

	case RefreshDataMsg:
		m.loading = true
		return m, m.loadData()

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}
		switch {
		case key.Matches(msg, DefaultKeyMap.Left):
			m.revenueYear--
			m.loading = true
			return m, m.loadData()
		case key.Matches(msg, DefaultKeyMap.Right):
			if m.revenueYear < time.Now().Year() {
				m.revenueYear++
				m.loading = true
				return m, m.loadData()
			}
		}
	}

	return m, nil
}

func (m *ReportsModel) View() string {
	if m.loading {
		return "Loading reports..."
	}
	if m.err != nil {
		return errorText(m.err)
	}

	return m.renderReceivables() + "\n" + m.renderRevenue() + "\n" +
		helpStyle.Render("  h/l: change year")
}

func (m *ReportsModel) renderReceivables() string {
	r := m.receivables
	s := titleStyle.Render("Receivables") + subtitleStyle.Render("  as of "+r.AsOf.Format("2006-01-02")) + "\n\n"

	s += fmt.Sprintf("  Open invoices: %d   Outstanding: %s   Overdue: %s\n",
		r.Invoices,
		amountStyle.Render(formatMoney(r.Outstanding)),
		statusStyle(string(domain.InvoiceStatusOverdue)).Render(formatMoney(r.Overdue)),
	)

	var parts []string
	for _, st := range []domain.InvoiceStatus{domain.InvoiceStatusPending, domain.InvoiceStatusPartial, domain.InvoiceStatusOverdue, domain.InvoiceStatusPaid} {
		parts = append(parts, fmt.Sprintf("%s %d", statusStyle(string(st)).Render(string(st)), r.ByStatus[st]))
	}
	s += "  " + strings.Join(parts, "   ") + "\n\n"

	s += subtitleStyle.Render("  Overdue aging (days late)") + "\n"
	for _, b := range r.Aging {
		s += fmt.Sprintf("  %-6s %4d  %14s\n", b.Label, b.Count, formatMoney(b.Amount))
	}
	return s
}

func (m *ReportsModel) renderRevenue() string {
	s := titleStyle.Render(fmt.Sprintf("Revenue %d", m.revenueYear)) + "\n\n"

	peak := decimal.Zero
	total := decimal.Zero
	for _, v := range m.monthly {
		if v.GreaterThan(peak) {
			peak = v
		}
		total = total.Add(v)
	}

	barStyle := lipgloss.NewStyle().Foreground(successColor)
	const barWidth = 30
	for month := time.January; month <= time.December; month++ {
		v := m.monthly[month]
		bar := ""
		if peak.IsPositive() && v.IsPositive() {
			n := int(v.Mul(decimal.NewFromInt(barWidth)).Div(peak).IntPart())
			if n == 0 {
				n = 1
			}
			bar = strings.Repeat("█", n)
		}
		s += fmt.Sprintf("  %s %14s  %s\n", month.String()[:3], formatMoney(v), barStyle.Render(bar))
	}

	s += fmt.Sprintf("\n  Total: %s\n", amountStyle.Render(formatMoney(total)))
	return s
}
