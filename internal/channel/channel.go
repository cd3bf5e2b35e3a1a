// Package channel defines what a collection dispatch hands to an outbound
// provider and what comes back. Providers live outside this module; the
// only sender here writes the payload to the log.
package channel

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/money"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

// Message is a fully formed payload for one dispatch.
type Message struct {
	Channel     domain.Channel
	Destination string
	Subject     string
	Body        string
	Amount      decimal.Decimal
	DueDate     time.Time
	Reference   string // invoice number and installment, for provider-side correlation
}

// Outcome is what a sender reports for one dispatch.
type Outcome struct {
	Success   bool
	MessageID string
	Error     string
	Bounced   bool
	At        time.Time
}

// Sender delivers a message through one channel. A returned error is a
// transport failure and is recorded the same way as an unsuccessful Outcome.
type Sender interface {
	Send(ctx context.Context, msg Message) (Outcome, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) (Outcome, error)

func (f SenderFunc) Send(ctx context.Context, msg Message) (Outcome, error) {
	return f(ctx, msg)
}

// Registry maps channels to senders.
type Registry map[domain.Channel]Sender

// Get returns the sender for a channel.
func (r Registry) Get(ch domain.Channel) (Sender, error) {
	s, ok := r[ch]
	if !ok {
		return nil, fmt.Errorf("no sender registered for channel %s", ch)
	}
	return s, nil
}

// ValidateDestination checks that dest is usable for ch. Phone numbers
// without a country prefix are read in region (ISO 3166 code, e.g. "BR").
func ValidateDestination(ch domain.Channel, dest, region string) error {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return domain.NewValidationError("destination", dest, fmt.Sprintf("%s destination is required", ch))
	}

	switch ch {
	case domain.ChannelEmail:
		if _, err := mail.ParseAddress(dest); err != nil {
			return domain.NewValidationError("destination", dest, "invalid email address")
		}
	case domain.ChannelWhatsApp, domain.ChannelSMS:
		if _, err := NormalizePhone(dest, region); err != nil {
			return err
		}
	case domain.ChannelPix:
		// any non-empty key: CPF/CNPJ, email, phone or random key
	default:
		return domain.NewValidationError("channel", ch, "unknown channel")
	}
	return nil
}

// NormalizePhone parses a phone number and returns it in E.164 form.
func NormalizePhone(number, region string) (string, error) {
	p, err := libphonenumber.Parse(number, strings.ToUpper(region))
	if err != nil {
		return "", domain.NewValidationError("destination", number, "invalid phone number")
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", domain.NewValidationError("destination", number, "phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// ReminderInput is what BuildReminder needs to compose a message.
type ReminderInput struct {
	Channel          domain.Channel
	Destination      string
	ClientName       string
	InvoiceNumber    string
	Installment      *domain.Installment
	InstallmentCount int
}

// BuildReminder composes the standard payment reminder for an installment.
func BuildReminder(in ReminderInput) Message {
	inst := in.Installment
	due := inst.Outstanding()
	ref := fmt.Sprintf("%s %d/%d", in.InvoiceNumber, inst.Number, in.InstallmentCount)

	subject := fmt.Sprintf("Payment reminder: invoice %s", ref)
	body := fmt.Sprintf(
		"Hello %s, installment %s of %s is due on %s.",
		in.ClientName, ref, money.FormatBRL(due), inst.DueDate.Format("2006-01-02"),
	)
	if in.Channel == domain.ChannelPix {
		body += " Pay by PIX using the key on file."
	}

	return Message{
		Channel:     in.Channel,
		Destination: in.Destination,
		Subject:     subject,
		Body:        body,
		Amount:      due,
		DueDate:     inst.DueDate,
		Reference:   ref,
	}
}

// Summarize truncates a body for the delivery log.
func Summarize(body string, limit int) string {
	runes := []rune(strings.Join(strings.Fields(body), " "))
	if len(runes) <= limit {
		return string(runes)
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
