package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/diagkit/licensecheck/internal/tui/theme"
)

const (
	helpOverlayDefaultWidth      = 120
	helpOverlayDefaultHeight     = 30
	helpOverlayStandardWidthPct  = 0.70
	helpOverlayCompactWidthPct   = 0.85
	helpOverlayCompactThreshold  = 120
	helpOverlayMinimumModalWidth = 56
)

// HelpOverlayQuickAction captures direct close actions in the help overlay.
type HelpOverlayQuickAction string

const (
	// HelpOverlayQuickActionNone indicates no action.
	HelpOverlayQuickActionNone HelpOverlayQuickAction = ""
	// HelpOverlayQuickActionClose closes the help overlay.
	HelpOverlayQuickActionClose HelpOverlayQuickAction = "close"
)

// HelpOverlayConfig contains all rendering inputs for help overlay.
type HelpOverlayConfig struct {
	Width     int
	Height    int
	HasResult bool
}

// HelpOverlaySection represents one logical keybinding section.
type HelpOverlaySection struct {
	Title    string
	Bindings []key.Binding
}

// HelpOverlayQuickActionForKey resolves close actions for `?` and `Esc`.
func HelpOverlayQuickActionForKey(msg tea.KeyMsg) HelpOverlayQuickAction {
	switch strings.ToLower(strings.TrimSpace(msg.String())) {
	case "?", "esc":
		return HelpOverlayQuickActionClose
	default:
		return HelpOverlayQuickActionNone
	}
}

// RenderHelpOverlay renders the full-screen keyboard shortcut modal.
func RenderHelpOverlay(config HelpOverlayConfig) string {
	width := config.Width
	if width <= 0 {
		width = helpOverlayDefaultWidth
	}
	height := config.Height
	if height <= 0 {
		height = helpOverlayDefaultHeight
	}

	modalWidth := int(float64(width) * helpOverlayStandardWidthPct)
	if width < helpOverlayCompactThreshold {
		modalWidth = int(float64(width) * helpOverlayCompactWidthPct)
	}
	if modalWidth < helpOverlayMinimumModalWidth {
		modalWidth = helpOverlayMinimumModalWidth
	}
	if modalWidth > width {
		modalWidth = width
	}

	sections := BuildHelpOverlaySections(config.HasResult)
	contentWidth := max(24, modalWidth-4)

	helpModel := help.New()
	helpModel.Width = contentWidth
	helpModel.ShowAll = true

	title := lipgloss.NewStyle().
		Foreground(theme.AmberColor).
		Bold(true).
		Align(lipgloss.Center).
		Width(contentWidth).
		Render("KEYBOARD SHORTCUTS")

	sectionBlocks := make([]string, 0, len(sections))
	for _, section := range sections {
		header := lipgloss.NewStyle().Foreground(theme.IrisColor).Bold(true).Render(strings.ToUpper(section.Title))
		body := strings.TrimSpace(helpModel.FullHelpView([][]key.Binding{section.Bindings}))
		if body == "" {
			body = "No shortcuts defined."
		}
		sectionBlocks = append(sectionBlocks, header, body)
	}

	hint := lipgloss.NewStyle().
		Foreground(theme.SlateColor).
		Faint(true).
		Align(lipgloss.Center).
		Width(contentWidth).
		Render("Press ? or Escape to close")

	body := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		lipgloss.NewStyle().Foreground(theme.GraphiteColor).Render(strings.Repeat("─", contentWidth)),
		lipgloss.JoinVertical(lipgloss.Left, sectionBlocks...),
		lipgloss.NewStyle().Foreground(theme.GraphiteColor).Render(strings.Repeat("─", contentWidth)),
		hint,
	)

	modal := lipgloss.NewStyle().
		Width(modalWidth).
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.AmberColor).
		Padding(0, 1).
		Render(body)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		modal,
		lipgloss.WithWhitespaceChars("┄"),
		lipgloss.WithWhitespaceForeground(theme.GraphiteColor),
	)
}

// BuildHelpOverlaySections returns the form and result shortcuts. Result
// shortcuts are listed only once a lookup has completed.
func BuildHelpOverlaySections(hasResult bool) []HelpOverlaySection {
	sections := []HelpOverlaySection{
		{
			Title: "Form",
			Bindings: []key.Binding{
				newHelpBinding([]string{"tab"}, "Tab", "Next field"),
				newHelpBinding([]string{"shift+tab"}, "Shift+Tab", "Previous field"),
				newHelpBinding([]string{"enter"}, "Enter", "Check licenses"),
				newHelpBinding([]string{"esc"}, "Escape", "Leave the form"),
			},
		},
		{
			Title: "Global",
			Bindings: []key.Binding{
				newHelpBinding([]string{"?"}, "?", "Toggle help"),
				newHelpBinding([]string{"q"}, "q", "Quit (outside the form)"),
				newHelpBinding([]string{"ctrl+c"}, "Ctrl+C", "Quit"),
			},
		},
	}
	if hasResult {
		sections = append(sections, HelpOverlaySection{
			Title: "Results",
			Bindings: []key.Binding{
				newHelpBinding([]string{"x"}, "x", "Show or hide expired licenses"),
				newHelpBinding([]string{"up", "down"}, "Up/Down", "Scroll"),
				newHelpBinding([]string{"pgup", "pgdown"}, "PgUp/PgDn", "Page"),
			},
		})
	}
	return sections
}

func newHelpBinding(keys []string, helpKey string, description string) key.Binding {
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(helpKey, description),
	)
}
