package service

import (
	"context"
	"fmt"
	"time"

	"github.com/andy/duesink/internal/channel"
	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/repository"
	"github.com/rs/zerolog"
)

const bodySummaryLimit = 200

// CollectionService drives the collection state machine and its delivery log
type CollectionService interface {
	// CreateCollection opens a pending collection for an installment
	CreateCollection(ctx context.Context, installmentID int64, ch domain.Channel) (*domain.Collection, error)

	GetCollection(ctx context.Context, id int64) (*domain.Collection, error)

	// ListPending lists collections that have not been dispatched yet
	ListPending(ctx context.Context) ([]*domain.Collection, error)
	ListByClient(ctx context.Context, clientID int64) ([]*domain.Collection, error)
	ListByInstallment(ctx context.Context, installmentID int64) ([]*domain.Collection, error)

	// PrepareReminder builds the reminder payload for a collection and checks
	// the client's destination for its channel
	PrepareReminder(ctx context.Context, id int64) (channel.Message, error)

	// RecordDispatch stores the outcome of one dispatch attempt. A success
	// moves a pending collection to sent; a failure leaves the state alone.
	// Either way the attempt counter grows and backoff picks the next retry.
	RecordDispatch(ctx context.Context, id int64, msg channel.Message, outcome channel.Outcome, backoff BackoffPolicy) (*domain.Collection, error)

	// Dispatch sends msg through sender and records the outcome. Sender
	// failures are recorded, not returned.
	Dispatch(ctx context.Context, id int64, sender channel.Sender, msg channel.Message, backoff BackoffPolicy) (*domain.Collection, channel.Outcome, error)

	// Advance moves a collection forward to next
	Advance(ctx context.Context, id int64, next domain.CollectionStatus) (*domain.Collection, error)
	RecordReceipt(ctx context.Context, id int64) (*domain.Collection, error)
	RecordRead(ctx context.Context, id int64) (*domain.Collection, error)
	RecordPayment(ctx context.Context, id int64) (*domain.Collection, error)
	Cancel(ctx context.Context, id int64) (*domain.Collection, error)

	// IncrementAttempt counts an attempt made outside RecordDispatch
	IncrementAttempt(ctx context.Context, id int64, nextRetryAt *time.Time) (*domain.Collection, error)

	// Statistics counts collections by status, optionally for one client
	Statistics(ctx context.Context, clientID *int64) (*domain.CollectionStats, error)
	ListDeliveryLog(ctx context.Context, id int64) ([]*domain.DeliveryLogEntry, error)
}

type collectionService struct {
	collectionRepo repository.CollectionRepository
	invoiceRepo    repository.InvoiceRepository
	clientRepo     repository.ClientRepository
	region         string
	log            zerolog.Logger
	now            func() time.Time
}

// NewCollectionService creates a new collection service. region is the
// default country for phone numbers without a country prefix.
func NewCollectionService(
	collectionRepo repository.CollectionRepository,
	invoiceRepo repository.InvoiceRepository,
	clientRepo repository.ClientRepository,
	region string,
	log zerolog.Logger,
) CollectionService {
	return &collectionService{
		collectionRepo: collectionRepo,
		invoiceRepo:    invoiceRepo,
		clientRepo:     clientRepo,
		region:         region,
		log:            log,
		now:            time.Now,
	}
}

func (s *collectionService) CreateCollection(ctx context.Context, installmentID int64, ch domain.Channel) (*domain.Collection, error) {
	if !ch.Valid() {
		return nil, domain.NewValidationError("channel", ch, "unknown channel")
	}

	inst, err := s.invoiceRepo.GetInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	switch inst.Status {
	case domain.InstallmentStatusCancelled:
		return nil, domain.NewValidationError("installmentId", installmentID, "installment is cancelled")
	case domain.InstallmentStatusPaid:
		return nil, domain.NewValidationError("installmentId", installmentID, "installment is already paid")
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, inst.InvoiceID)
	if err != nil {
		return nil, err
	}

	c := domain.NewCollection(inst, invoice.ClientID, ch)
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.collectionRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("collection_id", c.ID).
		Int64("installment_id", installmentID).
		Str("channel", string(ch)).
		Msg("collection created")
	return c, nil
}

func (s *collectionService) GetCollection(ctx context.Context, id int64) (*domain.Collection, error) {
	return s.collectionRepo.GetByID(ctx, id)
}

func (s *collectionService) ListPending(ctx context.Context) ([]*domain.Collection, error) {
	return s.collectionRepo.List(ctx, repository.CollectionFilter{
		Statuses: []domain.CollectionStatus{domain.CollectionStatusPending},
	})
}

func (s *collectionService) ListByClient(ctx context.Context, clientID int64) ([]*domain.Collection, error) {
	return s.collectionRepo.List(ctx, repository.CollectionFilter{ClientID: &clientID})
}

func (s *collectionService) ListByInstallment(ctx context.Context, installmentID int64) ([]*domain.Collection, error) {
	return s.collectionRepo.List(ctx, repository.CollectionFilter{InstallmentID: &installmentID})
}

func (s *collectionService) PrepareReminder(ctx context.Context, id int64) (channel.Message, error) {
	c, err := s.collectionRepo.GetByID(ctx, id)
	if err != nil {
		return channel.Message{}, err
	}
	inst, err := s.invoiceRepo.GetInstallment(ctx, c.InstallmentID)
	if err != nil {
		return channel.Message{}, err
	}
	invoice, err := s.invoiceRepo.GetByID(ctx, c.InvoiceID)
	if err != nil {
		return channel.Message{}, err
	}
	client, err := s.clientRepo.GetByID(ctx, c.ClientID)
	if err != nil {
		return channel.Message{}, err
	}

	dest := client.Destination(c.Channel)
	if err := channel.ValidateDestination(c.Channel, dest, s.region); err != nil {
		return channel.Message{}, err
	}
	if c.Channel == domain.ChannelWhatsApp || c.Channel == domain.ChannelSMS {
		if dest, err = channel.NormalizePhone(dest, s.region); err != nil {
			return channel.Message{}, err
		}
	}

	return channel.BuildReminder(channel.ReminderInput{
		Channel:          c.Channel,
		Destination:      dest,
		ClientName:       client.Name,
		InvoiceNumber:    invoice.Number,
		Installment:      inst,
		InstallmentCount: invoice.InstallmentCount,
	}), nil
}

func (s *collectionService) RecordDispatch(
	ctx context.Context,
	id int64,
	msg channel.Message,
	outcome channel.Outcome,
	backoff BackoffPolicy,
) (*domain.Collection, error) {
	c, err := s.collectionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status.IsTerminal() {
		return nil, &domain.InvalidTransitionError{Entity: "collection", ID: id, From: string(c.Status), To: string(domain.CollectionStatusSent)}
	}
	if backoff == nil {
		backoff = NoRetry{}
	}

	at := outcome.At
	if at.IsZero() {
		at = s.now()
	}

	next := c.Status
	entry := &domain.DeliveryLogEntry{
		Channel:      c.Channel,
		Destination:  msg.Destination,
		Subject:      msg.Subject,
		BodySummary:  channel.Summarize(msg.Body, bodySummaryLimit),
		MessageID:    outcome.MessageID,
		ErrorMessage: outcome.Error,
		CreatedAt:    at,
	}
	switch {
	case outcome.Success:
		entry.Status = domain.DeliveryStatusSent
		if c.Status == domain.CollectionStatusPending {
			next = domain.CollectionStatusSent
		}
	case outcome.Bounced:
		entry.Status = domain.DeliveryStatusBounced
	default:
		entry.Status = domain.DeliveryStatusFailed
	}

	var nextRetryAt *time.Time
	if retryAt, ok := backoff.NextRetry(c.Attempts+1, at); ok {
		nextRetryAt = &retryAt
	}

	updated, err := s.collectionRepo.RecordDispatch(ctx, repository.DispatchRecord{
		CollectionID: id,
		Expected:     c.Status,
		Next:         next,
		At:           at,
		NextRetryAt:  nextRetryAt,
		Log:          entry,
	})
	if err != nil {
		return nil, err
	}

	event := s.log.Info()
	if !outcome.Success {
		event = s.log.Warn().Str("error", outcome.Error).Bool("bounced", outcome.Bounced)
	}
	event.
		Int64("collection_id", id).
		Str("status", string(updated.Status)).
		Int("attempts", updated.Attempts).
		Msg("dispatch recorded")

	return updated, nil
}

func (s *collectionService) Dispatch(
	ctx context.Context,
	id int64,
	sender channel.Sender,
	msg channel.Message,
	backoff BackoffPolicy,
) (*domain.Collection, channel.Outcome, error) {
	c, err := s.collectionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, channel.Outcome{}, err
	}
	if c.Status.IsTerminal() {
		return nil, channel.Outcome{}, &domain.InvalidTransitionError{Entity: "collection", ID: id, From: string(c.Status), To: string(domain.CollectionStatusSent)}
	}
	if msg.Channel != "" && msg.Channel != c.Channel {
		return nil, channel.Outcome{}, domain.NewValidationError("channel", msg.Channel, fmt.Sprintf("collection uses %s", c.Channel))
	}

	outcome, err := sender.Send(ctx, msg)
	if err != nil {
		outcome = channel.Outcome{Success: false, Error: err.Error()}
	}
	if outcome.At.IsZero() {
		outcome.At = s.now()
	}

	updated, err := s.RecordDispatch(ctx, id, msg, outcome, backoff)
	if err != nil {
		return nil, outcome, err
	}
	return updated, outcome, nil
}

func (s *collectionService) Advance(ctx context.Context, id int64, next domain.CollectionStatus) (*domain.Collection, error) {
	if !next.Valid() {
		return nil, domain.NewValidationError("status", next, "unknown status")
	}

	c, err := s.collectionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	expected := c.Status
	if err := c.Transition(next, s.now()); err != nil {
		return nil, err
	}
	if err := s.collectionRepo.Transition(ctx, c, expected); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("collection_id", id).
		Str("from", string(expected)).
		Str("to", string(next)).
		Msg("collection advanced")
	return c, nil
}

func (s *collectionService) RecordReceipt(ctx context.Context, id int64) (*domain.Collection, error) {
	return s.Advance(ctx, id, domain.CollectionStatusReceived)
}

func (s *collectionService) RecordRead(ctx context.Context, id int64) (*domain.Collection, error) {
	return s.Advance(ctx, id, domain.CollectionStatusRead)
}

func (s *collectionService) RecordPayment(ctx context.Context, id int64) (*domain.Collection, error) {
	return s.Advance(ctx, id, domain.CollectionStatusPaid)
}

func (s *collectionService) Cancel(ctx context.Context, id int64) (*domain.Collection, error) {
	return s.Advance(ctx, id, domain.CollectionStatusCancelled)
}

func (s *collectionService) IncrementAttempt(ctx context.Context, id int64, nextRetryAt *time.Time) (*domain.Collection, error) {
	return s.collectionRepo.IncrementAttempt(ctx, id, nextRetryAt, s.now())
}

func (s *collectionService) Statistics(ctx context.Context, clientID *int64) (*domain.CollectionStats, error) {
	return s.collectionRepo.Stats(ctx, clientID)
}

func (s *collectionService) ListDeliveryLog(ctx context.Context, id int64) ([]*domain.DeliveryLogEntry, error) {
	return s.collectionRepo.ListDeliveryLog(ctx, id)
}
