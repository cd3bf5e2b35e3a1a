package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/andy/duesink/internal/channel"
	"github.com/andy/duesink/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectionFixture struct {
	svc         *collectionService
	invoices    *mockInvoiceRepo
	collections *mockCollectionRepo
	invoice     *domain.Invoice
}

func newCollectionFixture(t *testing.T) *collectionFixture {
	t.Helper()

	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 7, "250", 2, testNow.AddDate(0, 0, 10))
	clients := newMockClientRepo(&domain.Client{
		ID:    1,
		Name:  "Ana",
		Email: "ana@example.com",
		Phone: "(650) 253-0000",
		TaxID: "123.456.789-09",
	})
	collections := newMockCollectionRepo()

	svc := NewCollectionService(collections, invoices, clients, "US", zerolog.Nop()).(*collectionService)
	svc.now = func() time.Time { return testNow }

	return &collectionFixture{svc: svc, invoices: invoices, collections: collections, invoice: inv}
}

func (f *collectionFixture) create(t *testing.T, ch domain.Channel) *domain.Collection {
	t.Helper()
	c, err := f.svc.CreateCollection(context.Background(), f.invoice.Installments[0].ID, ch)
	require.NoError(t, err)
	return c
}

func TestCreateCollection(t *testing.T) {
	f := newCollectionFixture(t)
	c := f.create(t, domain.ChannelEmail)

	assert.Equal(t, domain.CollectionStatusPending, c.Status)
	assert.Equal(t, 0, c.Attempts)
	assert.Equal(t, f.invoice.ID, c.InvoiceID)
	assert.Equal(t, int64(1), c.ClientID)
}

func TestCreateCollection_Rejections(t *testing.T) {
	f := newCollectionFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateCollection(ctx, f.invoice.Installments[0].ID, domain.Channel("fax"))
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = f.svc.CreateCollection(ctx, 9999, domain.ChannelEmail)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	f.invoice.Installments[1].Status = domain.InstallmentStatusPaid
	_, err = f.svc.CreateCollection(ctx, f.invoice.Installments[1].ID, domain.ChannelEmail)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestRecordDispatch_SuccessMovesToSent(t *testing.T) {
	f := newCollectionFixture(t)
	c := f.create(t, domain.ChannelEmail)

	backoff := FixedBackoff{Interval: 24 * time.Hour, MaxAttempts: 3}
	got, err := f.svc.RecordDispatch(context.Background(), c.ID,
		channel.Message{Destination: "ana@example.com", Subject: "Reminder", Body: "pay"},
		channel.Outcome{Success: true, MessageID: "m-1"},
		backoff,
	)
	require.NoError(t, err)

	assert.Equal(t, domain.CollectionStatusSent, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.SentAt)
	require.NotNil(t, got.NextRetryAt)
	assert.Equal(t, testNow.Add(24*time.Hour), *got.NextRetryAt)

	rec := f.collections.dispatches[0]
	assert.Equal(t, domain.CollectionStatusPending, rec.Expected)
	assert.Equal(t, domain.DeliveryStatusSent, rec.Log.Status)
	assert.Equal(t, "m-1", rec.Log.MessageID)
	assert.Equal(t, 1, rec.Log.Attempt)
}

func TestRecordDispatch_FailureKeepsState(t *testing.T) {
	f := newCollectionFixture(t)
	c := f.create(t, domain.ChannelSMS)
	ctx := context.Background()

	got, err := f.svc.RecordDispatch(ctx, c.ID, channel.Message{}, channel.Outcome{Error: "timeout"}, ExponentialBackoff{Base: time.Hour, Factor: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, testNow.Add(time.Hour), *got.NextRetryAt)
	assert.Equal(t, domain.DeliveryStatusFailed, f.collections.dispatches[0].Log.Status)
	assert.Equal(t, "timeout", f.collections.dispatches[0].Log.ErrorMessage)

	got, err = f.svc.RecordDispatch(ctx, c.ID, channel.Message{}, channel.Outcome{Bounced: true}, ExponentialBackoff{Base: time.Hour, Factor: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, testNow.Add(2*time.Hour), *got.NextRetryAt)
	assert.Equal(t, domain.DeliveryStatusBounced, f.collections.dispatches[1].Log.Status)
}

func TestRecordDispatch_RedispatchDoesNotMove(t *testing.T) {
	f := newCollectionFixture(t)
	c := f.create(t, domain.ChannelEmail)
	ctx := context.Background()

	_, err := f.svc.RecordReceipt(ctx, c.ID)
	require.NoError(t, err)

	got, err := f.svc.RecordDispatch(ctx, c.ID, channel.Message{}, channel.Outcome{Success: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionStatusReceived, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Nil(t, got.NextRetryAt, "nil backoff means no retry")
}

func TestRecordDispatch_TerminalRejected(t *testing.T) {
	f := newCollectionFixture(t)
	c := f.create(t, domain.ChannelEmail)
	ctx := context.Background()

	_, err := f.svc.RecordPayment(ctx, c.ID)
	require.NoError(t, err)

	_, err = f.svc.RecordDispatch(ctx, c.ID, channel.Message{}, channel.Outcome{Success: true}, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Empty(t, f.collections.dispatches)
}

func TestDispatch_SenderErrorIsRecorded(t *testing.T) {
	f := newCollectionFixture(t)
	c := f.create(t, domain.ChannelWhatsApp)

	failing := channel.SenderFunc(func(ctx context.Context, msg channel.Message) (channel.Outcome, error) {
		return channel.Outcome{}, errors.New("provider down")
	})

	got, outcome, err := f.svc.Dispatch(context.Background(), c.ID, failing, channel.Message{Channel: domain.ChannelWhatsApp}, NoRetry{})
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "provider down", outcome.Error)
	assert.Equal(t, domain.CollectionStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Nil(t, got.NextRetryAt)
}

func TestDispatch_ChannelMismatch(t *testing.T) {
	f := newCollectionFixture(t)
	c := f.create(t, domain.ChannelEmail)

	_, _, err := f.svc.Dispatch(context.Background(), c.ID, channel.NewLogSender(zerolog.Nop()), channel.Message{Channel: domain.ChannelSMS}, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestPrepareReminder(t *testing.T) {
	f := newCollectionFixture(t)
	ctx := context.Background()

	email := f.create(t, domain.ChannelEmail)
	msg, err := f.svc.PrepareReminder(ctx, email.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", msg.Destination)
	assert.Equal(t, "FAT-2026-007 1/2", msg.Reference)

	sms := f.create(t, domain.ChannelSMS)
	msg, err = f.svc.PrepareReminder(ctx, sms.ID)
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", msg.Destination)
}

func TestAdvance_ForwardOnly(t *testing.T) {
	f := newCollectionFixture(t)
	c := f.create(t, domain.ChannelEmail)
	ctx := context.Background()

	got, err := f.svc.RecordRead(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionStatusRead, got.Status)

	_, err = f.svc.RecordReceipt(ctx, c.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "backward move")

	_, err = f.svc.Cancel(ctx, c.ID)
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, c.ID)
	var terr *domain.InvalidTransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, string(domain.CollectionStatusCancelled), terr.From)
}

func TestAdvance_LostRace(t *testing.T) {
	f := newCollectionFixture(t)
	c := f.create(t, domain.ChannelEmail)

	// another writer moves it while we hold a stale copy
	stale, err := f.svc.GetCollection(context.Background(), c.ID)
	require.NoError(t, err)
	f.collections.collections[c.ID].Status = domain.CollectionStatusPaid

	expected := stale.Status
	require.NoError(t, stale.Transition(domain.CollectionStatusSent, testNow))
	err = f.collections.Transition(context.Background(), stale, expected)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestStatistics(t *testing.T) {
	f := newCollectionFixture(t)
	ctx := context.Background()

	a := f.create(t, domain.ChannelEmail)
	f.create(t, domain.ChannelSMS)
	_, err := f.svc.RecordPayment(ctx, a.ID)
	require.NoError(t, err)

	stats, err := f.svc.Statistics(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Count(domain.CollectionStatusPaid))
	assert.Equal(t, 1, stats.Count(domain.CollectionStatusPending))

	other := int64(2)
	stats, err = f.svc.Statistics(ctx, &other)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestListPendingFilter(t *testing.T) {
	f := newCollectionFixture(t)
	_, err := f.svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, f.collections.filters, 1)
	assert.Equal(t, []domain.CollectionStatus{domain.CollectionStatusPending}, f.collections.filters[0].Statuses)
}

func TestBackoffPolicies(t *testing.T) {
	exp := ExponentialBackoff{Base: time.Minute, Factor: 3, Max: 5 * time.Minute, MaxAttempts: 4}

	at, ok := exp.NextRetry(1, testNow)
	require.True(t, ok)
	assert.Equal(t, testNow.Add(time.Minute), at)

	at, ok = exp.NextRetry(2, testNow)
	require.True(t, ok)
	assert.Equal(t, testNow.Add(3*time.Minute), at)

	at, ok = exp.NextRetry(3, testNow)
	require.True(t, ok)
	assert.Equal(t, testNow.Add(5*time.Minute), at, "capped")

	_, ok = exp.NextRetry(4, testNow)
	assert.False(t, ok)

	_, ok = NoRetry{}.NextRetry(1, testNow)
	assert.False(t, ok)

	at, ok = FixedBackoff{Interval: time.Hour}.NextRetry(50, testNow)
	require.True(t, ok)
	assert.Equal(t, testNow.Add(time.Hour), at)
}

func TestExponentialBackoff_UncappedNeverOverflows(t *testing.T) {
	exp := ExponentialBackoff{Base: time.Hour, Factor: 2}

	for _, attempt := range []int{40, 64, 200, 5000} {
		at, ok := exp.NextRetry(attempt, testNow)
		require.True(t, ok)
		assert.True(t, at.After(testNow), "attempt %d retries at %s", attempt, at)
	}

	at, _ := exp.NextRetry(200, testNow)
	assert.Equal(t, testNow.Add(time.Duration(math.MaxInt64)), at)

	at, _ = ExponentialBackoff{Base: time.Hour, Factor: math.Inf(1)}.NextRetry(3, testNow)
	assert.True(t, at.After(testNow))
}

func TestIncrementAttempt_UsesServiceClock(t *testing.T) {
	f := newCollectionFixture(t)
	c := f.create(t, domain.ChannelEmail)

	next := testNow.Add(time.Hour)
	got, err := f.svc.IncrementAttempt(context.Background(), c.ID, &next)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, testNow, got.UpdatedAt)
	require.NotNil(t, got.NextRetryAt)
	assert.Equal(t, next, *got.NextRetryAt)
}
