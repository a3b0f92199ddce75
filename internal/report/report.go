package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/state"
	"gopkg.in/yaml.v3"
)

// Format selects how a result is written.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

const (
	// MessageNoLicenses is shown when a lookup returned nothing.
	MessageNoLicenses = "No licenses found for this account."
	// MessageNoActive is shown when every returned license has expired.
	MessageNoActive = "No active licenses."
	// MessageNoLookup is shown when no lookup has completed.
	MessageNoLookup = "No lookup performed."
)

// Formats lists the supported output formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML, FormatMarkdown}
}

// ParseFormat resolves a case-insensitive format name; "md" is accepted for markdown.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatText):
		return FormatText, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want text, json, yaml or markdown)", value)
	}
}

// Options tune rendering.
type Options struct {
	// ShowExpired expands the expired group in text and markdown output.
	ShowExpired bool
	// Thresholds classify alerts into urgency levels.
	Thresholds license.Thresholds
	// Styled renders markdown through glamour instead of writing raw markdown.
	Styled bool
	// Width bounds glamour word wrap.
	Width int
}

// Entry is one alert plus its urgency classification.
type Entry struct {
	license.Alert `yaml:",inline"`
	Urgency       license.Urgency `json:"urgency" yaml:"urgency"`
}

// Document is the structured form of one check result.
type Document struct {
	Company         string          `json:"company" yaml:"company"`
	Reference       string          `json:"reference" yaml:"reference"`
	Error           string          `json:"error,omitempty" yaml:"error,omitempty"`
	Message         string          `json:"message,omitempty" yaml:"message,omitempty"`
	Active          []Entry         `json:"active" yaml:"active"`
	Expired         []Entry         `json:"expired" yaml:"expired"`
	ExpiredExpanded bool            `json:"expiredExpanded" yaml:"expiredExpanded"`
	Summary         license.Summary `json:"summary" yaml:"summary"`
}

// Build converts a view into a Document.
func Build(view state.View, opts Options) Document {
	thresholds := opts.Thresholds
	if thresholds == (license.Thresholds{}) {
		thresholds = license.DefaultThresholds()
	}

	doc := Document{
		Company:         strings.TrimSpace(view.Company),
		Reference:       view.Reference,
		Error:           view.Error,
		Message:         Message(view),
		Active:          entries(view.Groups.Active, thresholds),
		Expired:         entries(view.Groups.Expired, thresholds),
		ExpiredExpanded: view.ExpiredExpanded || opts.ShowExpired,
		Summary:         license.Summarize(view.Groups, thresholds),
	}
	return doc
}

// Message returns the status line for a view, or "" when alerts are listed normally.
func Message(view state.View) string {
	switch {
	case view.Error != "":
		return ""
	case !view.HasResult:
		return MessageNoLookup
	case view.NoLicenses():
		return MessageNoLicenses
	case view.NoActive():
		return MessageNoActive
	default:
		return ""
	}
}

// Render writes view to w in the requested format.
func Render(w io.Writer, view state.View, format Format, opts Options) error {
	if w == nil {
		return errors.New("report writer must not be nil")
	}
	doc := Build(view, opts)

	switch format {
	case FormatText, "":
		return renderText(w, doc)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return encoder.Close()
	case FormatMarkdown:
		return renderMarkdown(w, doc, opts)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func entries(alerts []license.Alert, thresholds license.Thresholds) []Entry {
	out := make([]Entry, 0, len(alerts))
	for _, alert := range alerts {
		out = append(out, Entry{Alert: alert, Urgency: license.Classify(alert.DaysRemaining, thresholds)})
	}
	return out
}

func flags(alert license.Alert) string {
	parts := make([]string, 0, 2)
	if alert.IsTrial {
		parts = append(parts, "trial")
	}
	if alert.AutoRenew {
		parts = append(parts, "auto-renew")
	}
	return strings.Join(parts, ", ")
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
