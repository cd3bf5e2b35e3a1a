package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andy/duesink/internal/app"
	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/money"
	"github.com/andy/duesink/internal/service"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type invoiceViewMode int

const (
	invoiceViewList   invoiceViewMode = iota
	invoiceViewDetail                 // Viewing a single invoice
	invoiceViewPay                    // Recording a payment on an installment
	invoiceViewNew                    // Creating an invoice
)

// new invoice form fields
const (
	newFieldClient = iota
	newFieldDescription
	newFieldAmount
	newFieldCount
	newFieldDue
)

// invoiceFilters is the cycle applied by the filter key; nil shows everything
var invoiceFilters = []*domain.InvoiceStatus{
	nil,
	statusPtr(domain.InvoiceStatusPending),
	statusPtr(domain.InvoiceStatusPartial),
	statusPtr(domain.InvoiceStatusOverdue),
	statusPtr(domain.InvoiceStatusPaid),
	statusPtr(domain.InvoiceStatusCancelled),
}

func statusPtr(s domain.InvoiceStatus) *domain.InvoiceStatus { return &s }

// InvoicesModel displays invoices in list and detail views
type InvoicesModel struct {
	app         *app.App
	mode        invoiceViewMode
	invoices    []*domain.Invoice
	clientNames map[int64]string
	cursor      int
	filter      int
	loading     bool
	err         error
	statusMsg   string

	// Detail state
	details    *service.InvoiceDetails
	instCursor int

	form *form
}

// IsCapturingInput returns true when a form is active
func (m *InvoicesModel) IsCapturingInput() bool {
	return m.mode == invoiceViewPay || m.mode == invoiceViewNew
}

type invoicesDataMsg struct {
	invoices    []*domain.Invoice
	clientNames map[int64]string
	err         error
}

type invoiceDetailMsg struct {
	details *service.InvoiceDetails
	err     error
}

type invoiceActionMsg struct {
	status string
	id     int64
	err    error
}

// NewInvoicesModel creates a new invoices screen model
func NewInvoicesModel(a *app.App) tea.Model {
	return &InvoicesModel{
		app:         a,
		loading:     true,
		clientNames: make(map[int64]string),
	}
}

func (m *InvoicesModel) Init() tea.Cmd {
	return m.loadInvoices()
}

func (m *InvoicesModel) loadInvoices() tea.Cmd {
	status := invoiceFilters[m.filter]
	return func() tea.Msg {
		ctx := context.Background()
		invoices, err := m.app.InvoiceService.ListInvoices(ctx, nil, status)
		if err != nil {
			return invoicesDataMsg{err: err}
		}

		names := make(map[int64]string)
		for _, inv := range invoices {
			if _, ok := names[inv.ClientID]; ok {
				continue
			}
			if client, err := m.app.ClientRepo.GetByID(ctx, inv.ClientID); err == nil {
				names[inv.ClientID] = client.Name
			}
		}
		return invoicesDataMsg{invoices: invoices, clientNames: names}
	}
}

func (m *InvoicesModel) loadDetail(id int64) tea.Cmd {
	return func() tea.Msg {
		details, err := m.app.InvoiceService.GetInvoiceDetails(context.Background(), id)
		return invoiceDetailMsg{details: details, err: err}
	}
}

func (m *InvoicesModel) selectedInstallment() *domain.Installment {
	if m.details == nil || m.instCursor >= len(m.details.Installments) {
		return nil
	}
	return m.details.Installments[m.instCursor]
}

func (m *InvoicesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case invoicesDataMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.invoices = msg.invoices
			m.clientNames = msg.clientNames
			m.cursor = clampCursor(m.cursor, len(m.invoices))
		}
		return m, nil

	case invoiceDetailMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.details = msg.details
			m.instCursor = clampCursor(m.instCursor, len(msg.details.Installments))
			m.mode = invoiceViewDetail
		}
		return m, nil

	case invoiceActionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.statusMsg = msg.status
		if msg.id > 0 {
			m.mode = invoiceViewDetail
			return m, m.loadDetail(msg.id)
		}
		m.mode = invoiceViewList
		m.loading = true
		return m, m.loadInvoices()

	case RefreshDataMsg:
		if m.mode == invoiceViewDetail && m.details != nil {
			return m, m.loadDetail(m.details.Invoice.ID)
		}
		m.loading = true
		return m, m.loadInvoices()
	}

	if m.IsCapturingInput() {
		return m.updateForm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.loading {
		return m, nil
	}
	m.err = nil
	m.statusMsg = ""

	if m.mode == invoiceViewDetail {
		return m.updateDetail(keyMsg)
	}

	switch {
	case key.Matches(keyMsg, DefaultKeyMap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, DefaultKeyMap.Down):
		if m.cursor < len(m.invoices)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, DefaultKeyMap.Select):
		if m.cursor < len(m.invoices) {
			m.instCursor = 0
			return m, m.loadDetail(m.invoices[m.cursor].ID)
		}
	case key.Matches(keyMsg, DefaultKeyMap.Filter):
		m.filter = (m.filter + 1) % len(invoiceFilters)
		m.cursor = 0
		m.loading = true
		return m, m.loadInvoices()
	case key.Matches(keyMsg, DefaultKeyMap.New):
		return m, m.openNewForm()
	}

	return m, nil
}

func (m *InvoicesModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	inv := m.details.Invoice

	switch {
	case key.Matches(msg, DefaultKeyMap.Back):
		m.mode = invoiceViewList
		m.details = nil
		m.loading = true
		return m, m.loadInvoices()
	case key.Matches(msg, DefaultKeyMap.Up):
		if m.instCursor > 0 {
			m.instCursor--
		}
	case key.Matches(msg, DefaultKeyMap.Down):
		if m.instCursor < len(m.details.Installments)-1 {
			m.instCursor++
		}
	case msg.String() == "p":
		if inst := m.selectedInstallment(); inst != nil && inst.IsUnsettled() {
			return m, m.openPayForm(inst)
		}
	case msg.String() == "s":
		if inst := m.selectedInstallment(); inst != nil && inst.IsUnsettled() {
			return m, m.createCollection(inv.ID, inst)
		}
	case key.Matches(msg, DefaultKeyMap.Cancel):
		if !inv.IsCancelled() {
			return m, m.cancelInvoice(inv)
		}
	}
	return m, nil
}

func (m *InvoicesModel) openPayForm(inst *domain.Installment) tea.Cmd {
	m.mode = invoiceViewPay
	m.form = newForm([]formField{
		{label: "Amount:", placeholder: "0,00", value: money.Format(inst.Outstanding()), width: 15, charLimit: 20},
		{label: "Method:", placeholder: "pix, boleto, transfer", width: 20, charLimit: 50},
	})
	return m.form.Focus()
}

func (m *InvoicesModel) openNewForm() tea.Cmd {
	m.mode = invoiceViewNew
	due := time.Now().AddDate(0, 0, m.app.Config.Invoice.DefaultDueDays)
	m.form = newForm([]formField{
		{label: "Client (ID or name):", placeholder: "Acme"},
		{label: "Description:", placeholder: "Consulting services", width: 50, charLimit: 500},
		{label: "Amount:", placeholder: "1.500,00", width: 15, charLimit: 20},
		{label: "Installments:", value: "1", width: 5, charLimit: 3},
		{label: "First due date:", value: due.Format("2006-01-02"), width: 12, charLimit: 10},
	})
	return m.form.Focus()
}

func (m *InvoicesModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd, submit, cancel := m.form.update(msg)
	switch {
	case cancel:
		m.err = nil
		if m.mode == invoiceViewPay {
			m.mode = invoiceViewDetail
		} else {
			m.mode = invoiceViewList
		}
		return m, nil
	case submit:
		if m.mode == invoiceViewPay {
			return m, m.recordPayment()
		}
		return m, m.createInvoice()
	}
	return m, cmd
}

func (m *InvoicesModel) recordPayment() tea.Cmd {
	inst := m.selectedInstallment()
	if inst == nil {
		return nil
	}
	amountStr := m.form.Value(0)
	method := strings.TrimSpace(m.form.Value(1))
	invoiceID := m.details.Invoice.ID

	return func() tea.Msg {
		amount, err := money.Parse(amountStr)
		if err != nil {
			return invoiceActionMsg{err: fmt.Errorf("invalid amount: %w", err)}
		}
		_, err = m.app.InvoiceService.RecordInstallmentPayment(context.Background(), service.RecordPaymentInput{
			InstallmentID: inst.ID,
			Amount:        amount,
			PaidAt:        time.Now(),
			Method:        method,
		})
		if err != nil {
			return invoiceActionMsg{err: err}
		}
		return invoiceActionMsg{
			id:     invoiceID,
			status: fmt.Sprintf("Payment of %s recorded on installment %d", formatMoney(amount), inst.Number),
		}
	}
}

func (m *InvoicesModel) createInvoice() tea.Cmd {
	clientRef := strings.TrimSpace(m.form.Value(newFieldClient))
	description := strings.TrimSpace(m.form.Value(newFieldDescription))
	amount := strings.TrimSpace(m.form.Value(newFieldAmount))
	countStr := strings.TrimSpace(m.form.Value(newFieldCount))
	dueStr := strings.TrimSpace(m.form.Value(newFieldDue))

	return func() tea.Msg {
		ctx := context.Background()

		clientID, err := m.findClient(ctx, clientRef)
		if err != nil {
			return invoiceActionMsg{err: err}
		}
		count, err := strconv.Atoi(countStr)
		if err != nil || count < 1 {
			return invoiceActionMsg{err: fmt.Errorf("invalid installment count: %q", countStr)}
		}
		due, err := time.ParseInLocation("2006-01-02", dueStr, time.Local)
		if err != nil {
			return invoiceActionMsg{err: fmt.Errorf("invalid due date: %q", dueStr)}
		}

		policy := domain.InstallmentPolicySingle
		if count > 1 {
			policy = domain.InstallmentPolicyInstallment
		}

		invoice, err := m.app.InvoiceService.CreateInvoice(ctx, service.CreateInvoiceInput{
			ClientID:          clientID,
			Description:       description,
			DueDate:           due,
			InstallmentPolicy: policy,
			InstallmentCount:  count,
			Items: []service.LineItemInput{
				{Description: description, Quantity: "1", UnitAmount: amount},
			},
		})
		if err != nil {
			return invoiceActionMsg{err: err}
		}
		return invoiceActionMsg{
			id:     invoice.ID,
			status: fmt.Sprintf("Invoice %s created", invoice.Number),
		}
	}
}

// findClient resolves a client by ID or by case-insensitive name
func (m *InvoicesModel) findClient(ctx context.Context, ref string) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	client, err := m.app.ClientRepo.GetByName(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("client %q not found", ref)
	}
	return client.ID, nil
}

func (m *InvoicesModel) cancelInvoice(inv *domain.Invoice) tea.Cmd {
	return func() tea.Msg {
		if err := m.app.InvoiceService.CancelInvoice(context.Background(), inv.ID); err != nil {
			return invoiceActionMsg{err: err}
		}
		return invoiceActionMsg{id: inv.ID, status: fmt.Sprintf("Invoice %s cancelled", inv.Number)}
	}
}

func (m *InvoicesModel) createCollection(invoiceID int64, inst *domain.Installment) tea.Cmd {
	ch := domain.Channel(m.app.Config.Collection.DefaultChannel)
	return func() tea.Msg {
		c, err := m.app.CollectionService.CreateCollection(context.Background(), inst.ID, ch)
		if err != nil {
			return invoiceActionMsg{err: err}
		}
		return invoiceActionMsg{
			id:     invoiceID,
			status: fmt.Sprintf("Collection #%d opened via %s", c.ID, c.Channel),
		}
	}
}

func (m *InvoicesModel) View() string {
	switch m.mode {
	case invoiceViewPay:
		inst := m.selectedInstallment()
		title := "Record Payment"
		if inst != nil && m.details != nil {
			title = fmt.Sprintf("Record Payment - %s installment %d", m.details.Invoice.Number, inst.Number)
		}
		return m.form.View(title, m.err)
	case invoiceViewNew:
		return m.form.View("New Invoice", m.err)
	case invoiceViewDetail:
		return m.viewDetail()
	}
	return m.viewList()
}

func (m *InvoicesModel) viewList() string {
	if m.loading {
		return "Loading invoices..."
	}

	if m.err != nil {
		return errorText(m.err)
	}

	filter := "all"
	if f := invoiceFilters[m.filter]; f != nil {
		filter = string(*f)
	}
	s := titleStyle.Render("Invoices") + subtitleStyle.Render("  ("+filter+")") + "\n\n"

	if m.statusMsg != "" {
		s += statusText(m.statusMsg) + "\n\n"
	}

	if len(m.invoices) == 0 {
		s += subtitleStyle.Render("  No invoices. Press 'n' to create one.") + "\n"
		s += "\n" + helpStyle.Render("  n: new  f: filter")
		return s
	}

	s += subtitleStyle.Render(fmt.Sprintf("  %-14s %-20s %-10s %14s %14s  %s", "Number", "Client", "Due", "Total", "Outstanding", "Status")) + "\n"
	for i, inv := range m.invoices {
		indicator := "  "
		style := lipgloss.NewStyle()
		if i == m.cursor {
			indicator = "> "
			style = style.Bold(true).Foreground(primaryColor)
		}
		name := m.clientNames[inv.ClientID]
		if name == "" {
			name = fmt.Sprintf("Client #%d", inv.ClientID)
		}
		row := fmt.Sprintf("%s%-14s %-20s %-10s %14s %14s",
			indicator,
			inv.Number,
			truncateStr(name, 20),
			inv.DueDate.Format("2006-01-02"),
			formatMoney(inv.PayableTotal()),
			formatMoney(inv.Outstanding()),
		)
		s += style.Render(row) + "  " + statusStyle(string(inv.Status)).Render(string(inv.Status)) + "\n"
	}

	s += "\n" + helpStyle.Render("  j/k: navigate  enter: details  n: new  f: filter")
	return s
}

func (m *InvoicesModel) viewDetail() string {
	if m.details == nil {
		return "Loading invoice..."
	}

	d := m.details
	inv := d.Invoice
	name := m.clientNames[inv.ClientID]
	if name == "" {
		name = fmt.Sprintf("Client #%d", inv.ClientID)
	}

	s := titleStyle.Render("Invoice "+inv.Number) + "  " + statusStyle(string(d.Status)).Render(string(d.Status)) + "\n\n"
	if m.statusMsg != "" {
		s += statusText(m.statusMsg) + "\n\n"
	}
	if m.err != nil {
		s += errorText(m.err) + "\n\n"
	}

	s += fmt.Sprintf("  Client:   %s\n", name)
	if inv.Description != "" {
		s += fmt.Sprintf("  About:    %s\n", inv.Description)
	}
	s += fmt.Sprintf("  Issued:   %s   Due: %s\n", inv.IssueDate.Format("2006-01-02"), inv.DueDate.Format("2006-01-02"))
	s += fmt.Sprintf("  Policy:   %s / %s   Rate: %s%% a.m.\n", inv.InstallmentPolicy, inv.InterestPolicy, inv.MonthlyRate.StringFixed(2))

	s += "\n" + subtitleStyle.Render("  Items") + "\n"
	for _, item := range d.Items {
		s += fmt.Sprintf("  %-36s %8s x %12s = %14s\n",
			truncateStr(item.Description, 36),
			item.Quantity.String(),
			formatMoney(item.UnitAmount),
			formatMoney(item.Total),
		)
	}

	s += "\n" + subtitleStyle.Render(fmt.Sprintf("  %-4s %-10s %14s %14s %14s  %s", "#", "Due", "Amount", "Paid", "Outstanding", "Status")) + "\n"
	for i, inst := range d.Installments {
		indicator := "  "
		style := lipgloss.NewStyle()
		if i == m.instCursor {
			indicator = "> "
			style = style.Bold(true).Foreground(primaryColor)
		}
		status := string(inst.StatusAt(d.AsOf))
		row := fmt.Sprintf("%s%-4d %-10s %14s %14s %14s",
			indicator,
			inst.Number,
			inst.DueDate.Format("2006-01-02"),
			formatMoney(inst.AmountDue()),
			formatMoney(inst.AmountPaid),
			formatMoney(inst.Outstanding()),
		)
		s += style.Render(row) + "  " + statusStyle(status).Render(status) + "\n"
	}

	s += "\n"
	if !inv.Discount.IsZero() {
		s += fmt.Sprintf("  Discount:    %s\n", formatMoney(inv.Discount))
	}
	s += fmt.Sprintf("  Payable:     %s\n", amountStyle.Render(formatMoney(inv.PayableTotal())))
	s += fmt.Sprintf("  Paid:        %s\n", formatMoney(d.TotalPaid))
	s += fmt.Sprintf("  Outstanding: %s\n", amountStyle.Render(formatMoney(d.Outstanding)))

	s += "\n" + helpStyle.Render("  j/k: installment  p: record payment  s: open collection  x: cancel invoice  esc: back")
	return s
}
