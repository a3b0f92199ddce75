package components

import (
	"strings"
	"testing"

	"github.com/diagkit/licensecheck/internal/license"
)

func TestRenderUrgencyBadgeVariants(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		urgency license.Urgency
		want    string
	}{
		{urgency: license.UrgencyExpired, want: "✗ EXPIRED"},
		{urgency: license.UrgencyCritical, want: "◆ CRITICAL"},
		{urgency: license.UrgencyWarning, want: "⚠ WARNING"},
		{urgency: license.UrgencyOK, want: "✓ OK"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(string(testCase.urgency), func(t *testing.T) {
			t.Parallel()

			if rendered := RenderUrgencyBadge(testCase.urgency); !strings.Contains(rendered, testCase.want) {
				t.Fatalf("badge %q does not include %q", rendered, testCase.want)
			}
		})
	}
}

func TestRenderUrgencyBadgeOptions(t *testing.T) {
	t.Parallel()

	rendered := RenderUrgencyBadge(license.UrgencyWarning, WithBadgeIcon(false), WithBadgeBold(false), nil)
	if strings.Contains(rendered, "⚠") {
		t.Fatalf("icon should be hidden: %q", rendered)
	}
	if !strings.Contains(rendered, "WARNING") {
		t.Fatalf("label missing: %q", rendered)
	}
	if unknown := RenderUrgencyBadge(""); !strings.Contains(unknown, "UNKNOWN") {
		t.Fatalf("empty urgency should render UNKNOWN, got %q", unknown)
	}
}

func TestRenderAlertCard(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		alert   license.Alert
		urgency license.Urgency
		want    []string
		reject  []string
	}{
		{
			name:    "full record",
			alert:   license.Alert{ID: "L1", Name: "Suite", ExpiryDate: "2026-11-01", DaysRemaining: 14, Periodicity: "annual", Term: "12m", Seats: 10, IsTrial: true, AutoRenew: true},
			urgency: license.UrgencyCritical,
			want:    []string{"Suite", "CRITICAL", "ID L1", "14 days left · 2026-11-01", "annual 12m · 10 seats", "trial", "auto-renew"},
		},
		{
			name:    "sparse record",
			alert:   license.Alert{ID: "L9", DaysRemaining: 1, Seats: 1},
			urgency: license.UrgencyCritical,
			want:    []string{"(unnamed license)", "1 day left", "1 seat"},
			reject:  []string{"trial", "auto-renew"},
		},
		{
			name:    "expired",
			alert:   license.Alert{ID: "L2", Name: "Legacy", DaysRemaining: -3},
			urgency: license.UrgencyExpired,
			want:    []string{"expired 3 days ago", "EXPIRED"},
		},
		{
			name:    "last day",
			alert:   license.Alert{ID: "L4", Name: "Edge", DaysRemaining: 0},
			urgency: license.UrgencyExpired,
			want:    []string{"expires today"},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			rendered := RenderAlertCard(AlertCardConfig{Alert: testCase.alert, Urgency: testCase.urgency, Width: 60})
			for _, want := range testCase.want {
				if !strings.Contains(rendered, want) {
					t.Fatalf("card missing %q\n%s", want, rendered)
				}
			}
			for _, reject := range testCase.reject {
				if strings.Contains(rendered, reject) {
					t.Fatalf("card unexpectedly contains %q\n%s", reject, rendered)
				}
			}
			if !strings.Contains(rendered, "╭") {
				t.Fatalf("card should use a rounded border\n%s", rendered)
			}
		})
	}
}

func TestRenderDisclosure(t *testing.T) {
	t.Parallel()

	collapsed := RenderDisclosure(2, false)
	if !strings.Contains(collapsed, "▸ Expired (2)") || !strings.Contains(collapsed, "[x] show") {
		t.Fatalf("collapsed disclosure = %q", collapsed)
	}
	expanded := RenderDisclosure(2, true)
	if !strings.Contains(expanded, "▾ Expired (2)") || !strings.Contains(expanded, "[x] hide") {
		t.Fatalf("expanded disclosure = %q", expanded)
	}
}

func TestRenderToolbar(t *testing.T) {
	t.Parallel()

	if RenderToolbar(nil) != "" {
		t.Fatalf("empty toolbar should render nothing")
	}
	rendered := RenderToolbar([]ToolbarButton{
		{Key: "enter", Label: "Check", Enabled: true},
		{Key: "x", Label: "Expired", Enabled: false},
	})
	for _, want := range []string{"[enter] Check", "[x]", "Expired"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("toolbar missing %q: %q", want, rendered)
		}
	}
}
