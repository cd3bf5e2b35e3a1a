package domain

import (
	"time"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
	ChannelPix      Channel = "pix"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelWhatsApp, ChannelSMS, ChannelPix:
		return true
	}
	return false
}

type CollectionStatus string

const (
	CollectionStatusPending   CollectionStatus = "pending"
	CollectionStatusSent      CollectionStatus = "sent"
	CollectionStatusReceived  CollectionStatus = "received"
	CollectionStatusRead      CollectionStatus = "read"
	CollectionStatusPaid      CollectionStatus = "paid"
	CollectionStatusCancelled CollectionStatus = "cancelled"
)

// AllCollectionStatuses lists statuses in lifecycle order.
var AllCollectionStatuses = []CollectionStatus{
	CollectionStatusPending,
	CollectionStatusSent,
	CollectionStatusReceived,
	CollectionStatusRead,
	CollectionStatusPaid,
	CollectionStatusCancelled,
}

var collectionRank = map[CollectionStatus]int{
	CollectionStatusPending:  0,
	CollectionStatusSent:     1,
	CollectionStatusReceived: 2,
	CollectionStatusRead:     3,
	CollectionStatusPaid:     4,
}

func (s CollectionStatus) Valid() bool {
	_, ok := collectionRank[s]
	return ok || s == CollectionStatusCancelled
}

// IsTerminal returns true for paid and cancelled.
func (s CollectionStatus) IsTerminal() bool {
	return s == CollectionStatusPaid || s == CollectionStatusCancelled
}

// CanTransitionTo reports whether next is reachable from s. Moves are
// forward-only along pending, sent, received, read, paid; steps may be
// skipped; cancelled is reachable from any non-terminal status.
func (s CollectionStatus) CanTransitionTo(next CollectionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == CollectionStatusCancelled {
		return true
	}
	from, ok := collectionRank[s]
	if !ok {
		return false
	}
	to, ok := collectionRank[next]
	if !ok {
		return false
	}
	return to > from
}

type Collection struct {
	ID            int64
	InstallmentID int64
	InvoiceID     int64
	ClientID      int64
	Channel       Channel
	Status        CollectionStatus
	Attempts      int
	NextRetryAt   *time.Time
	SentAt        *time.Time
	ReceivedAt    *time.Time
	ReadAt        *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewCollection creates a pending collection for an installment
func NewCollection(installment *Installment, clientID int64, channel Channel) *Collection {
	now := time.Now()
	return &Collection{
		InstallmentID: installment.ID,
		InvoiceID:     installment.InvoiceID,
		ClientID:      clientID,
		Channel:       channel,
		Status:        CollectionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (c *Collection) Validate() error {
	if c.InstallmentID <= 0 {
		return NewValidationError("installmentId", c.InstallmentID, "installment is required")
	}
	if !c.Channel.Valid() {
		return NewValidationError("channel", c.Channel, "unknown channel")
	}
	if !c.Status.Valid() {
		return NewValidationError("status", c.Status, "unknown status")
	}
	return nil
}

// Transition moves the collection to next and stamps the matching timestamp.
func (c *Collection) Transition(next CollectionStatus, at time.Time) error {
	if !c.Status.CanTransitionTo(next) {
		return &InvalidTransitionError{Entity: "collection", ID: c.ID, From: string(c.Status), To: string(next)}
	}
	c.Status = next
	c.UpdatedAt = at
	switch next {
	case CollectionStatusSent:
		c.SentAt = &at
	case CollectionStatusReceived:
		c.ReceivedAt = &at
	case CollectionStatusRead:
		c.ReadAt = &at
	case CollectionStatusPaid:
		c.PaidAt = &at
	case CollectionStatusCancelled:
		c.CancelledAt = &at
	}
	if next.IsTerminal() {
		c.NextRetryAt = nil
	}
	return nil
}

type DeliveryStatus string

const (
	DeliveryStatusSent     DeliveryStatus = "sent"
	DeliveryStatusFailed   DeliveryStatus = "failed"
	DeliveryStatusBounced  DeliveryStatus = "bounced"
	DeliveryStatusReceived DeliveryStatus = "received"
	DeliveryStatusRead     DeliveryStatus = "read"
)

// DeliveryLogEntry is an append-only record of one dispatch attempt or
// delivery event for a collection.
type DeliveryLogEntry struct {
	ID           int64
	CollectionID int64
	Channel      Channel
	Destination  string
	Subject      string
	BodySummary  string
	Status       DeliveryStatus
	ErrorMessage string
	MessageID    string
	Attempt      int
	CreatedAt    time.Time
}

// CollectionStats counts collections per status.
type CollectionStats struct {
	Total    int
	ByStatus map[CollectionStatus]int
}

func NewCollectionStats() *CollectionStats {
	return &CollectionStats{ByStatus: make(map[CollectionStatus]int)}
}

func (s *CollectionStats) Count(status CollectionStatus) int {
	return s.ByStatus[status]
}
