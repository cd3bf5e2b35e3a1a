package service

import (
	"context"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/finance"
	"github.com/andy/duesink/internal/repository"
	"github.com/shopspring/decimal"
)

// AgingBucket groups overdue installments by how late they are
type AgingBucket struct {
	Label   string
	MinDays int
	MaxDays int // 0 means no upper bound
	Count   int
	Amount  decimal.Decimal
}

// ReceivablesSummary is what is owed across open invoices
type ReceivablesSummary struct {
	AsOf        time.Time
	Invoices    int
	Outstanding decimal.Decimal
	Overdue     decimal.Decimal
	ByStatus    map[domain.InvoiceStatus]int
	Aging       []AgingBucket
}

// ClientSummary provides client-specific billing figures
type ClientSummary struct {
	ClientID    int64
	Invoiced    decimal.Decimal
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
	Overdue     decimal.Decimal
	Invoices    []*domain.Invoice
}

// ReportService provides aggregations over invoices and installments
type ReportService interface {
	// GetReceivables summarizes every non-cancelled invoice at now
	GetReceivables(ctx context.Context) (*ReceivablesSummary, error)

	// GetClientSummary summarizes one client's invoices
	GetClientSummary(ctx context.Context, clientID int64) (*ClientSummary, error)

	// GetOutstandingTotal is what remains unpaid on open invoices
	GetOutstandingTotal(ctx context.Context) (decimal.Decimal, error)

	// GetRevenueByMonth sums amounts paid per installment, bucketed by the
	// month of the installment's latest payment
	GetRevenueByMonth(ctx context.Context, year int) (map[time.Month]decimal.Decimal, error)
}

type reportService struct {
	invoiceRepo repository.InvoiceRepository
	now         func() time.Time
}

// NewReportService creates a new report service
func NewReportService(invoiceRepo repository.InvoiceRepository) ReportService {
	return &reportService{
		invoiceRepo: invoiceRepo,
		now:         time.Now,
	}
}

func newAgingBuckets() []AgingBucket {
	return []AgingBucket{
		{Label: "1-30", MinDays: 1, MaxDays: 30, Amount: decimal.Zero},
		{Label: "31-60", MinDays: 31, MaxDays: 60, Amount: decimal.Zero},
		{Label: "61-90", MinDays: 61, MaxDays: 90, Amount: decimal.Zero},
		{Label: "90+", MinDays: 91, Amount: decimal.Zero},
	}
}

// openInvoices lists invoices with status recomputed at asOf, cancelled ones
// left out.
func (s *reportService) openInvoices(ctx context.Context, clientID *int64, asOf time.Time) ([]*domain.Invoice, error) {
	invoices, err := s.invoiceRepo.List(ctx, clientID, nil)
	if err != nil {
		return nil, err
	}

	open := make([]*domain.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		refresh(inv, asOf)
		if inv.IsCancelled() {
			continue
		}
		open = append(open, inv)
	}
	return open, nil
}

func (s *reportService) GetReceivables(ctx context.Context) (*ReceivablesSummary, error) {
	asOf := s.now()
	invoices, err := s.openInvoices(ctx, nil, asOf)
	if err != nil {
		return nil, err
	}

	summary := &ReceivablesSummary{
		AsOf:        asOf,
		Invoices:    len(invoices),
		Outstanding: decimal.Zero,
		Overdue:     decimal.Zero,
		ByStatus:    make(map[domain.InvoiceStatus]int),
		Aging:       newAgingBuckets(),
	}

	for _, inv := range invoices {
		summary.ByStatus[inv.Status]++
		summary.Outstanding = summary.Outstanding.Add(inv.Outstanding())

		for _, inst := range inv.Installments {
			if !inst.IsOverdueAt(asOf) {
				continue
			}
			owed := inst.Outstanding()
			summary.Overdue = summary.Overdue.Add(owed)

			days := finance.DaysLate(inst.DueDate, asOf)
			for i := range summary.Aging {
				b := &summary.Aging[i]
				if days >= b.MinDays && (b.MaxDays == 0 || days <= b.MaxDays) {
					b.Count++
					b.Amount = b.Amount.Add(owed)
					break
				}
			}
		}
	}

	return summary, nil
}

func (s *reportService) GetClientSummary(ctx context.Context, clientID int64) (*ClientSummary, error) {
	asOf := s.now()
	invoices, err := s.openInvoices(ctx, &clientID, asOf)
	if err != nil {
		return nil, err
	}

	summary := &ClientSummary{
		ClientID:    clientID,
		Invoiced:    decimal.Zero,
		Paid:        decimal.Zero,
		Outstanding: decimal.Zero,
		Overdue:     decimal.Zero,
		Invoices:    invoices,
	}

	for _, inv := range invoices {
		summary.Invoiced = summary.Invoiced.Add(inv.PayableTotal())
		summary.Paid = summary.Paid.Add(inv.TotalPaid())
		summary.Outstanding = summary.Outstanding.Add(inv.Outstanding())
		for _, inst := range inv.Installments {
			if inst.IsOverdueAt(asOf) {
				summary.Overdue = summary.Overdue.Add(inst.Outstanding())
			}
		}
	}

	return summary, nil
}

func (s *reportService) GetOutstandingTotal(ctx context.Context) (decimal.Decimal, error) {
	invoices, err := s.openInvoices(ctx, nil, s.now())
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.Outstanding())
	}
	return total, nil
}

func (s *reportService) GetRevenueByMonth(ctx context.Context, year int) (map[time.Month]decimal.Decimal, error) {
	invoices, err := s.invoiceRepo.List(ctx, nil, nil)
	if err != nil {
		return nil, err
	}

	revenue := make(map[time.Month]decimal.Decimal)

	// Initialize all months to 0
	for m := time.January; m <= time.December; m++ {
		revenue[m] = decimal.Zero
	}

	for _, inv := range invoices {
		for _, inst := range inv.Installments {
			if inst.PaidAt == nil || inst.PaidAt.Year() != year {
				continue
			}
			month := inst.PaidAt.Month()
			revenue[month] = revenue[month].Add(inst.AmountPaid)
		}
	}

	return revenue, nil
}
