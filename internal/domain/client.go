package domain

import (
	"strings"
	"time"
)

type Client struct {
	ID         int64
	Name       string
	Email      string
	Phone      string // E.164 when set
	TaxID      string
	Notes      string
	IsArchived bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewClient creates a new client with required fields
func NewClient(name string) *Client {
	now := time.Now()
	return &Client{
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate returns an error if the client is invalid
func (c *Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", c.Name, "client name is required")
	}
	return nil
}

// Destination returns the address used for a channel, or "" when the
// client has none on file.
func (c *Client) Destination(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return c.Email
	case ChannelWhatsApp, ChannelSMS:
		return c.Phone
	case ChannelPix:
		return c.TaxID
	}
	return ""
}
