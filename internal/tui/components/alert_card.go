package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/tui/theme"
)

const alertCardMinWidth = 32

// AlertCardConfig contains the rendering inputs for one alert card.
type AlertCardConfig struct {
	Alert   license.Alert
	Urgency license.Urgency
	Width   int
}

// RenderAlertCard renders one license as a bordered card with its urgency badge.
func RenderAlertCard(config AlertCardConfig) string {
	alert := config.Alert
	width := max(alertCardMinWidth, config.Width)

	name := strings.TrimSpace(alert.Name)
	if name == "" {
		name = "(unnamed license)"
	}
	title := theme.TextStyle.Bold(true).Render(name) + "  " + RenderUrgencyBadge(config.Urgency)

	lines := []string{
		title,
		theme.MutedStyle.Render("ID " + alert.ID),
		daysLine(alert),
	}
	if detail := termLine(alert); detail != "" {
		lines = append(lines, detail)
	}
	if flags := flagLine(alert); flags != "" {
		lines = append(lines, flags)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.UrgencyColor(config.Urgency)).
		Padding(0, 1).
		Width(width - 2).
		Render(strings.Join(lines, "\n"))
}

func daysLine(alert license.Alert) string {
	expiry := strings.TrimSpace(alert.ExpiryDate)
	var text string
	switch {
	case alert.DaysRemaining > 1:
		text = fmt.Sprintf("%d days left", alert.DaysRemaining)
	case alert.DaysRemaining == 1:
		text = "1 day left"
	case alert.DaysRemaining == 0:
		text = "expires today"
	default:
		text = fmt.Sprintf("expired %d days ago", -alert.DaysRemaining)
	}
	if expiry != "" {
		text += " · " + expiry
	}
	return theme.TextStyle.Render(text)
}

func termLine(alert license.Alert) string {
	parts := make([]string, 0, 3)
	if term := strings.TrimSpace(alert.Periodicity + " " + alert.Term); term != "" {
		parts = append(parts, term)
	}
	if alert.Seats > 0 {
		noun := "seats"
		if alert.Seats == 1 {
			noun = "seat"
		}
		parts = append(parts, fmt.Sprintf("%d %s", alert.Seats, noun))
	}
	if len(parts) == 0 {
		return ""
	}
	return theme.InfoStyle.Render(strings.Join(parts, " · "))
}

func flagLine(alert license.Alert) string {
	parts := make([]string, 0, 2)
	if alert.IsTrial {
		parts = append(parts, theme.IconTrial+" trial")
	}
	if alert.AutoRenew {
		parts = append(parts, "↻ auto-renew")
	}
	return theme.MutedStyle.Render(strings.Join(parts, "  "))
}
