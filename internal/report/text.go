package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/tui/theme"
)

func renderText(w io.Writer, doc Document) error {
	var b strings.Builder

	if doc.Error != "" {
		b.WriteString(theme.ErrorStyle.Render("Error: " + doc.Error))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(theme.HeadingStyle.Render(heading(doc)))
	b.WriteString("\n")

	if doc.Message == MessageNoLicenses || doc.Message == MessageNoLookup {
		b.WriteString(theme.InfoStyle.Render(doc.Message))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	if len(doc.Active) > 0 {
		b.WriteString(alertTable(doc.Active))
		b.WriteString("\n")
	} else {
		b.WriteString(theme.InfoStyle.Render(MessageNoActive))
		b.WriteString("\n")
	}

	if len(doc.Expired) > 0 {
		b.WriteString("\n")
		b.WriteString(disclosure(len(doc.Expired), doc.ExpiredExpanded))
		b.WriteString("\n")
		if doc.ExpiredExpanded {
			b.WriteString(alertTable(doc.Expired))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(theme.MutedStyle.Render(summaryLine(doc)))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func heading(doc Document) string {
	if doc.Company == "" {
		return "Licenses"
	}
	if doc.Reference == "" {
		return fmt.Sprintf("Licenses for %s", doc.Company)
	}
	return fmt.Sprintf("Licenses for %s (%s)", doc.Company, doc.Reference)
}

// disclosure renders the expired-group control, e.g. "▸ Expired (2)".
func disclosure(count int, expanded bool) string {
	icon := theme.IconCollapsed
	if expanded {
		icon = theme.IconExpanded
	}
	return theme.UrgencyStyle(license.UrgencyExpired).Render(fmt.Sprintf("%s Expired (%d)", icon, count))
}

func summaryLine(doc Document) string {
	return fmt.Sprintf(
		"%d total · %d active · %d expired · %d trial · %d active seats",
		doc.Summary.Total,
		doc.Summary.Active,
		doc.Summary.Expired,
		doc.Summary.Trials,
		doc.Summary.ActiveSeats,
	)
}

func alertTable(rows []Entry) string {
	columns := []table.Column{
		{Title: "ID", Width: 12},
		{Title: "Name", Width: 28},
		{Title: "Expires", Width: 12},
		{Title: "Days left", Width: 9},
		{Title: "Urgency", Width: 12},
		{Title: "Term", Width: 10},
		{Title: "Seats", Width: 6},
		{Title: "Flags", Width: 18},
	}

	tableRows := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		tableRows = append(tableRows, table.Row{
			row.ID,
			orDash(row.Name),
			orDash(row.ExpiryDate),
			strconv.Itoa(row.DaysRemaining),
			theme.UrgencyIcon(row.Urgency) + " " + string(row.Urgency),
			orDash(strings.TrimSpace(row.Periodicity + " " + row.Term)),
			strconv.Itoa(row.Seats),
			orDash(flags(row.Alert)),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithHeight(len(tableRows)+2),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(theme.SlateColor).Bold(true)
	styles.Cell = styles.Cell.Foreground(theme.ChalkColor)
	styles.Selected = lipgloss.NewStyle()
	t.SetStyles(styles)

	return strings.TrimRight(t.View(), "\n ")
}
