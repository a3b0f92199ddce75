package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
)

const defaultMarkdownWidth = 100

func renderMarkdown(w io.Writer, doc Document, opts Options) error {
	markdown := Markdown(doc)
	if !opts.Styled {
		_, err := io.WriteString(w, markdown)
		return err
	}

	width := opts.Width
	if width <= 0 {
		width = defaultMarkdownWidth
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(40, width)),
	)
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return fmt.Errorf("render markdown report: %w", err)
	}
	_, err = io.WriteString(w, rendered)
	return err
}

// Markdown returns the raw markdown form of a document.
func Markdown(doc Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", heading(doc))
	if doc.Error != "" {
		fmt.Fprintf(&b, "**Error:** %s\n", escapeCell(doc.Error))
		return b.String()
	}
	if doc.Message == MessageNoLicenses || doc.Message == MessageNoLookup {
		fmt.Fprintf(&b, "%s\n", doc.Message)
		return b.String()
	}

	b.WriteString("## Active\n\n")
	if len(doc.Active) == 0 {
		fmt.Fprintf(&b, "%s\n\n", MessageNoActive)
	} else {
		writeMarkdownTable(&b, doc.Active)
		b.WriteString("\n")
	}

	if len(doc.Expired) > 0 {
		fmt.Fprintf(&b, "## Expired (%d)\n\n", len(doc.Expired))
		if doc.ExpiredExpanded {
			writeMarkdownTable(&b, doc.Expired)
			b.WriteString("\n")
		} else {
			b.WriteString("_Collapsed. Re-run with --show-expired to list them._\n\n")
		}
	}

	fmt.Fprintf(&b, "_%s_\n", summaryLine(doc))
	return b.String()
}

func writeMarkdownTable(b *strings.Builder, rows []Entry) {
	b.WriteString("| ID | Name | Expires | Days left | Urgency | Term | Seats | Flags |\n")
	b.WriteString("|---|---|---|---:|---|---|---:|---|\n")
	for _, row := range rows {
		fmt.Fprintf(
			b,
			"| %s | %s | %s | %d | %s | %s | %d | %s |\n",
			escapeCell(row.ID),
			escapeCell(orDash(row.Name)),
			escapeCell(orDash(row.ExpiryDate)),
			row.DaysRemaining,
			row.Urgency,
			escapeCell(orDash(strings.TrimSpace(row.Periodicity+" "+row.Term))),
			row.Seats,
			escapeCell(orDash(flags(row.Alert))),
		)
	}
}

func escapeCell(value string) string {
	value = strings.ReplaceAll(value, "|", `\|`)
	return strings.ReplaceAll(value, "\n", " ")
}
