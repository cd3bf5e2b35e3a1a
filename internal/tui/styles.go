package tui

import (
	"github.com/andy/duesink/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	primaryColor = lipgloss.Color("39")  // Blue
	accentColor  = lipgloss.Color("205") // Pink
	mutedColor   = lipgloss.Color("241") // Gray
	successColor = lipgloss.Color("76")  // Green
	warningColor = lipgloss.Color("214") // Orange
	errorColor   = lipgloss.Color("196") // Red

	// Base styles
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtitleStyle = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("117")) // Bright cyan
	amountStyle   = lipgloss.NewStyle().Foreground(accentColor)

	// Layout
	borderColor    = lipgloss.Color("63") // Soft purple
	appBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2)

	// Header/Footer
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true) // Bright yellow
)

// statusStyle colors invoice, installment and collection statuses alike
func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(domain.InvoiceStatusPaid):
		return lipgloss.NewStyle().Foreground(successColor)
	case string(domain.InvoiceStatusOverdue):
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	case string(domain.InvoiceStatusPartial), string(domain.CollectionStatusSent),
		string(domain.CollectionStatusReceived), string(domain.CollectionStatusRead):
		return lipgloss.NewStyle().Foreground(warningColor)
	case string(domain.InvoiceStatusCancelled):
		return lipgloss.NewStyle().Foreground(mutedColor)
	default:
		return lipgloss.NewStyle()
	}
}
