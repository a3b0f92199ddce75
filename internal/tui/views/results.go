package views

import (
	"fmt"
	"strings"

	"github.com/diagkit/licensecheck/internal/report"
	"github.com/diagkit/licensecheck/internal/tui/components"
	"github.com/diagkit/licensecheck/internal/tui/theme"
)

const resultsDefaultWidth = 80

// ResultsConfig contains the rendering inputs for a check result.
type ResultsConfig struct {
	Width    int
	Document report.Document
}

// RenderResults renders active alert cards, the expired disclosure and the summary.
func RenderResults(config ResultsConfig) string {
	width := config.Width
	if width <= 0 {
		width = resultsDefaultWidth
	}
	doc := config.Document

	blocks := []string{theme.HeadingStyle.Render(resultsHeading(doc))}

	switch doc.Message {
	case report.MessageNoLookup, report.MessageNoLicenses:
		blocks = append(blocks, theme.InfoStyle.Render(doc.Message))
		return strings.Join(blocks, "\n")
	}

	if len(doc.Active) == 0 {
		blocks = append(blocks, theme.InfoStyle.Render(report.MessageNoActive))
	}
	for _, entry := range doc.Active {
		blocks = append(blocks, components.RenderAlertCard(components.AlertCardConfig{
			Alert:   entry.Alert,
			Urgency: entry.Urgency,
			Width:   width,
		}))
	}

	if len(doc.Expired) > 0 {
		blocks = append(blocks, "", components.RenderDisclosure(len(doc.Expired), doc.ExpiredExpanded))
		if doc.ExpiredExpanded {
			for _, entry := range doc.Expired {
				blocks = append(blocks, components.RenderAlertCard(components.AlertCardConfig{
					Alert:   entry.Alert,
					Urgency: entry.Urgency,
					Width:   width,
				}))
			}
		}
	}

	blocks = append(blocks, "", theme.MutedStyle.Render(fmt.Sprintf(
		"%d total · %d active · %d expired · %d trial · %d active seats",
		doc.Summary.Total,
		doc.Summary.Active,
		doc.Summary.Expired,
		doc.Summary.Trials,
		doc.Summary.ActiveSeats,
	)))
	return strings.Join(blocks, "\n")
}

func resultsHeading(doc report.Document) string {
	if doc.Company == "" {
		return "Licenses"
	}
	return fmt.Sprintf("Licenses for %s (%s)", doc.Company, doc.Reference)
}
