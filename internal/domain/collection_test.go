package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionStatus_CanTransitionTo(t *testing.T) {
	allowed := map[CollectionStatus][]CollectionStatus{
		CollectionStatusPending:   {CollectionStatusSent, CollectionStatusReceived, CollectionStatusRead, CollectionStatusPaid, CollectionStatusCancelled},
		CollectionStatusSent:      {CollectionStatusReceived, CollectionStatusRead, CollectionStatusPaid, CollectionStatusCancelled},
		CollectionStatusReceived:  {CollectionStatusRead, CollectionStatusPaid, CollectionStatusCancelled},
		CollectionStatusRead:      {CollectionStatusPaid, CollectionStatusCancelled},
		CollectionStatusPaid:      {},
		CollectionStatusCancelled: {},
	}

	for from, targets := range allowed {
		ok := make(map[CollectionStatus]bool)
		for _, to := range targets {
			ok[to] = true
		}
		for _, to := range AllCollectionStatuses {
			assert.Equal(t, ok[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestCollection_ForwardOnlyOrdering(t *testing.T) {
	inst := &Installment{ID: 7, InvoiceID: 3}
	c := NewCollection(inst, 1, ChannelEmail)
	c.ID = 42
	now := time.Now()

	require.Equal(t, CollectionStatusPending, c.Status)
	require.Equal(t, 0, c.Attempts)

	require.NoError(t, c.Transition(CollectionStatusSent, now))
	require.NotNil(t, c.SentAt)
	require.NoError(t, c.Transition(CollectionStatusPaid, now))
	require.NotNil(t, c.PaidAt)

	err := c.Transition(CollectionStatusReceived, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var te *InvalidTransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "paid", te.From)
	assert.Equal(t, "received", te.To)
	assert.Equal(t, CollectionStatusPaid, c.Status)
}

func TestCollection_CancelClearsRetry(t *testing.T) {
	next := time.Now().Add(time.Hour)
	c := &Collection{Status: CollectionStatusSent, NextRetryAt: &next}

	require.NoError(t, c.Transition(CollectionStatusCancelled, time.Now()))
	assert.Nil(t, c.NextRetryAt)
	assert.Error(t, c.Transition(CollectionStatusSent, time.Now()))
}

func TestInstallment_ApplyPayment(t *testing.T) {
	due := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	inst := &Installment{
		ID:         1,
		DueDate:    due,
		Principal:  decimal.RequireFromString("100"),
		Interest:   decimal.RequireFromString("5"),
		AmountPaid: decimal.Zero,
		Status:     InstallmentStatusPending,
	}

	require.NoError(t, inst.ApplyPayment(decimal.RequireFromString("50"), due.AddDate(0, 0, 3), "pix", false))
	assert.Equal(t, InstallmentStatusOverdue, inst.Status)
	assert.Equal(t, "55", inst.Outstanding().String())

	require.NoError(t, inst.ApplyPayment(decimal.RequireFromString("55"), due.AddDate(0, 0, 4), "pix", false))
	assert.Equal(t, InstallmentStatusPaid, inst.Status)
	assert.True(t, inst.Outstanding().IsZero())

	inst.Status = InstallmentStatusCancelled
	err := inst.ApplyPayment(decimal.RequireFromString("1"), due, "pix", false)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestReconciliation_Resolve(t *testing.T) {
	r := &Reconciliation{ID: 9, Status: ReconciliationStatusPending}
	require.NoError(t, r.Resolve(ReconciliationStatusRejected, time.Now()))
	assert.NotNil(t, r.ResolvedAt)

	err := r.Resolve(ReconciliationStatusConfirmed, time.Now())
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestErrors_Is(t *testing.T) {
	assert.True(t, errors.Is(&NotFoundError{Entity: "invoice", ID: 3}, ErrNotFound))
	assert.True(t, errors.Is(&PersistenceError{Op: "create invoice", Err: errors.New("disk full")}, ErrPersistence))
	assert.False(t, errors.Is(&NotFoundError{Entity: "invoice", ID: 3}, ErrValidation))
	assert.Equal(t, "failed to create invoice: disk full", (&PersistenceError{Op: "create invoice", Err: errors.New("disk full")}).Error())
}
