package views

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/diagkit/licensecheck/internal/tui/theme"
)

const (
	formDefaultWidth = 80
	formLabelWidth   = 12
	// CheckingLabel replaces the submit label while a lookup is in flight.
	CheckingLabel = "Checking..."
	// CheckLabel is the idle submit label.
	CheckLabel = "Check licenses"
)

// FormField identifies a focusable input.
type FormField int

const (
	// FieldNone means no input has focus and single-key shortcuts are active.
	FieldNone FormField = iota
	// FieldCompany is the company name input.
	FieldCompany
	// FieldReference is the account reference input.
	FieldReference
)

// FormConfig contains all rendering inputs for the submission form.
type FormConfig struct {
	Width          int
	CompanyInput   string
	ReferenceInput string
	Focus          FormField
	Busy           bool
	Spinner        string
	Error          string
}

// RenderForm renders the two inputs, the submit control and any validation error.
func RenderForm(config FormConfig) string {
	width := config.Width
	if width <= 0 {
		width = formDefaultWidth
	}

	rows := []string{
		formRow("Company", config.CompanyInput, config.Focus == FieldCompany),
		formRow("Reference", config.ReferenceInput, config.Focus == FieldReference),
		"",
		submitControl(config),
	}
	if message := strings.TrimSpace(config.Error); message != "" {
		rows = append(rows, "", theme.ErrorBox.Render(message))
	}

	border := theme.PanelBorder
	if config.Focus != FieldNone {
		border = theme.PanelBorderFocused
	}
	return border.Width(max(formLabelWidth+20, width-2)).Padding(0, 1).Render(strings.Join(rows, "\n"))
}

func formRow(label string, input string, focused bool) string {
	style := theme.MutedStyle
	if focused {
		style = theme.FocusStyle
	}
	return style.Width(formLabelWidth).Render(label) + input
}

func submitControl(config FormConfig) string {
	if config.Busy {
		spinner := strings.TrimSpace(config.Spinner)
		if spinner != "" {
			spinner += " "
		}
		return theme.MutedStyle.Render(spinner + CheckingLabel)
	}
	return lipgloss.NewStyle().
		Foreground(theme.AmberColor).
		Bold(true).
		Render("[enter] " + CheckLabel)
}
