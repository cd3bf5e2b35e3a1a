package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/money"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

// resolveClientID accepts either a numeric ID or an exact client name
func resolveClientID(ctx context.Context, idOrName string) (int64, error) {
	// Try to parse as ID first
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		if _, err := appInstance.ClientRepo.GetByID(ctx, id); err != nil {
			return 0, err
		}
		return id, nil
	}

	client, err := appInstance.ClientRepo.GetByName(ctx, idOrName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, fmt.Errorf("client named '%s' not found", idOrName)
		}
		return 0, err
	}
	return client.ID, nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, s)
	}
	return id, nil
}

// parseDate parses a date string in various formats
func parseDate(s string) (time.Time, error) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	switch s {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	default:
		t, err := time.ParseInLocation(dateLayout, s, time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("expected format: YYYY-MM-DD, 'today', 'yesterday' or 'tomorrow'")
		}
		return t, nil
	}
}

// dateFlag reads an optional date flag, falling back to def when unset
func dateFlag(cmd *cobra.Command, name string, def time.Time) (time.Time, error) {
	if !cmd.Flags().Changed(name) {
		return def, nil
	}
	s, _ := cmd.Flags().GetString(name)
	t, err := parseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return t, nil
}

// amountFlag reads a money flag; an unset flag is zero
func amountFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	s, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := money.Parse(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}

func parseAmountArg(s string) (decimal.Decimal, error) {
	d, err := money.Parse(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount: %w", err)
	}
	return d, nil
}

// rateFlag reads an optional percentage flag; nil means use the default
func rateFlag(cmd *cobra.Command, name string) (*decimal.Decimal, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	s, _ := cmd.Flags().GetString(name)
	d, err := money.ParseRate(s)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return &d, nil
}

func formatAmount(d decimal.Decimal) string {
	return money.FormatBRL(d)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func clientName(ctx context.Context, id int64) string {
	client, err := appInstance.ClientRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Sprintf("Client #%d", id)
	}
	return client.Name
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
