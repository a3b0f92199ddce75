package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/tui/theme"
)

// BadgeOpt configures optional rendering behavior for RenderUrgencyBadge.
type BadgeOpt func(*badgeOptions)

type badgeOptions struct {
	showIcon bool
	bold     bool
}

// WithBadgeIcon controls whether the icon is shown (default: true).
func WithBadgeIcon(show bool) BadgeOpt {
	return func(options *badgeOptions) {
		options.showIcon = show
	}
}

// WithBadgeBold controls whether the badge text is bold (default: true).
func WithBadgeBold(bold bool) BadgeOpt {
	return func(options *badgeOptions) {
		options.bold = bold
	}
}

// RenderUrgencyBadge renders `[icon] LABEL` in the urgency color.
func RenderUrgencyBadge(urgency license.Urgency, opts ...BadgeOpt) string {
	options := badgeOptions{
		showIcon: true,
		bold:     true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	label := strings.ToUpper(strings.TrimSpace(string(urgency)))
	if label == "" {
		label = "UNKNOWN"
	}
	content := label
	if options.showIcon {
		content = theme.UrgencyIcon(urgency) + " " + label
	}

	return lipgloss.NewStyle().
		Foreground(theme.UrgencyColor(urgency)).
		Bold(options.bold).
		Render(content)
}
