package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/diagkit/licensecheck/internal/tui/theme"
)

const toolbarSeparator = "  "

// ToolbarButton is one key hint in the bottom help line.
type ToolbarButton struct {
	Key     string
	Label   string
	Enabled bool
}

// RenderToolbar renders `[key] Label` hints separated by two spaces. Disabled
// hints are dimmed rather than hidden so the layout stays stable.
func RenderToolbar(buttons []ToolbarButton) string {
	if len(buttons) == 0 {
		return ""
	}

	parts := make([]string, 0, len(buttons))
	for _, button := range buttons {
		parts = append(parts, renderToolbarButton(button))
	}
	return strings.Join(parts, toolbarSeparator)
}

func renderToolbarButton(button ToolbarButton) string {
	keyStyle := lipgloss.NewStyle().Foreground(theme.AmberColor)
	labelStyle := theme.TextStyle
	if !button.Enabled {
		keyStyle = theme.MutedStyle
		labelStyle = theme.MutedStyle
	}
	return keyStyle.Render("["+button.Key+"]") + " " + labelStyle.Render(button.Label)
}
