package channel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDestination(t *testing.T) {
	tests := []struct {
		name    string
		channel domain.Channel
		dest    string
		wantErr bool
	}{
		{"email ok", domain.ChannelEmail, "billing@example.com", false},
		{"email with name", domain.ChannelEmail, "Ana <ana@example.com>", false},
		{"email bad", domain.ChannelEmail, "not-an-email", true},
		{"email empty", domain.ChannelEmail, "  ", true},
		{"sms e164", domain.ChannelSMS, "+16502530000", false},
		{"whatsapp garbage", domain.ChannelWhatsApp, "12345", true},
		{"pix key", domain.ChannelPix, "123.456.789-09", false},
		{"pix empty", domain.ChannelPix, "", true},
		{"unknown channel", domain.Channel("fax"), "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDestination(tt.channel, tt.dest, "US")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("(650) 253-0000", "US")
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", got)
}

func TestBuildReminder(t *testing.T) {
	inst := &domain.Installment{
		Number:     2,
		DueDate:    time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
		Principal:  decimal.RequireFromString("1000"),
		Interest:   decimal.RequireFromString("234.56"),
		AmountPaid: decimal.Zero,
	}

	msg := BuildReminder(ReminderInput{
		Channel:          domain.ChannelEmail,
		Destination:      "ana@example.com",
		ClientName:       "Ana",
		InvoiceNumber:    "FAT-2026-007",
		Installment:      inst,
		InstallmentCount: 3,
	})

	assert.Equal(t, "FAT-2026-007 2/3", msg.Reference)
	assert.Contains(t, msg.Subject, "FAT-2026-007 2/3")
	assert.Contains(t, msg.Body, "R$ 1.234,56")
	assert.Contains(t, msg.Body, "2026-03-15")
	assert.True(t, msg.Amount.Equal(decimal.RequireFromString("1234.56")))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "short body", Summarize("short \n body", 40))
	long := strings.Repeat("á", 50)
	got := Summarize(long, 10)
	assert.Equal(t, 10, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(zerolog.Nop())
	out, err := s.Send(context.Background(), Message{Channel: domain.ChannelSMS, Destination: "+16502530000"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Len(t, out.MessageID, 36)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Send(ctx, Message{})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := Registry{domain.ChannelEmail: NewLogSender(zerolog.Nop())}
	_, err := r.Get(domain.ChannelEmail)
	assert.NoError(t, err)
	_, err = r.Get(domain.ChannelPix)
	assert.Error(t, err)
}
