package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/muesli/termenv"
)

const (
	// Amber is the primary accent used for headings and the active control.
	Amber = "#FFB454"
	// Slate is the informational blue.
	Slate = "#8FA8D8"
	// Crimson marks expired licenses and errors.
	Crimson = "#F0545C"
	// Honey marks licenses inside the critical window.
	Honey = "#FF8F40"
	// Lemon marks licenses inside the warning window.
	Lemon = "#E6C84F"
	// Mint marks licenses with comfortable validity left.
	Mint = "#7FD962"
	// Graphite is the muted neutral for borders and secondary text.
	Graphite = "#5C6773"
	// Chalk is the primary text color.
	Chalk = "#F2F2F2"
	// Iris is the focus ring color.
	Iris = "#A37ACC"
)

const (
	// IconOK marks healthy licenses.
	IconOK = "✓"
	// IconWarning marks licenses that expire soon.
	IconWarning = "⚠"
	// IconCritical marks licenses that expire very soon.
	IconCritical = "◆"
	// IconExpired marks expired licenses.
	IconExpired = "✗"
	// IconCollapsed marks a collapsed disclosure.
	IconCollapsed = "▸"
	// IconExpanded marks an expanded disclosure.
	IconExpanded = "▾"
	// IconTrial marks trial licenses.
	IconTrial = "⏳"
)

var (
	AmberColor    = profileColor(Amber, "215", "11")
	SlateColor    = profileColor(Slate, "110", "12")
	CrimsonColor  = profileColor(Crimson, "203", "9")
	HoneyColor    = profileColor(Honey, "208", "3")
	LemonColor    = profileColor(Lemon, "185", "11")
	MintColor     = profileColor(Mint, "113", "10")
	GraphiteColor = profileColor(Graphite, "243", "8")
	ChalkColor    = profileColor(Chalk, "255", "15")
	IrisColor     = profileColor(Iris, "140", "5")
)

var (
	// HeadingStyle renders section headings.
	HeadingStyle = lipgloss.NewStyle().Foreground(AmberColor).Bold(true)
	// ErrorStyle renders validation messages.
	ErrorStyle = lipgloss.NewStyle().Foreground(CrimsonColor).Bold(true)
	// InfoStyle renders neutral status lines.
	InfoStyle = lipgloss.NewStyle().Foreground(SlateColor)
	// MutedStyle renders secondary text.
	MutedStyle = lipgloss.NewStyle().Foreground(GraphiteColor)
	// FocusStyle renders the focused control label.
	FocusStyle = lipgloss.NewStyle().Foreground(IrisColor).Bold(true)
	// TextStyle renders body text.
	TextStyle = lipgloss.NewStyle().Foreground(ChalkColor)
)

var (
	// PanelBorder is the default panel border style.
	PanelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(GraphiteColor)

	// PanelBorderFocused highlights the focused panel.
	PanelBorderFocused = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(IrisColor).
				Bold(true)

	// OverlayBorder is the modal/overlay border style.
	OverlayBorder = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(AmberColor)

	// ErrorBox frames validation errors.
	ErrorBox = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(CrimsonColor).
			Foreground(CrimsonColor).
			Padding(0, 1)
)

// UrgencyColor returns the color for an urgency level.
func UrgencyColor(urgency license.Urgency) lipgloss.TerminalColor {
	switch urgency {
	case license.UrgencyExpired:
		return CrimsonColor
	case license.UrgencyCritical:
		return HoneyColor
	case license.UrgencyWarning:
		return LemonColor
	default:
		return MintColor
	}
}

// UrgencyIcon returns the glyph for an urgency level.
func UrgencyIcon(urgency license.Urgency) string {
	switch urgency {
	case license.UrgencyExpired:
		return IconExpired
	case license.UrgencyCritical:
		return IconCritical
	case license.UrgencyWarning:
		return IconWarning
	default:
		return IconOK
	}
}

// UrgencyStyle returns a bold foreground style for an urgency level.
func UrgencyStyle(urgency license.Urgency) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(UrgencyColor(urgency)).Bold(true)
}

var colorProfileFn = lipgloss.ColorProfile

func profileColor(hex string, ansi256 string, ansi string) lipgloss.TerminalColor {
	switch colorProfileFn() {
	case termenv.ANSI256, termenv.ANSI:
		return lipgloss.CompleteAdaptiveColor{
			Light: lipgloss.CompleteColor{TrueColor: hex, ANSI256: ansi256, ANSI: ansi},
			Dark:  lipgloss.CompleteColor{TrueColor: hex, ANSI256: ansi256, ANSI: ansi},
		}
	default:
		return lipgloss.AdaptiveColor{Light: hex, Dark: hex}
	}
}
