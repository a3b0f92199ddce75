package license

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	thresholds := DefaultThresholds()
	tests := []struct {
		days int
		want Urgency
	}{
		{days: -30, want: UrgencyExpired},
		{days: 0, want: UrgencyExpired},
		{days: 1, want: UrgencyCritical},
		{days: 30, want: UrgencyCritical},
		{days: 31, want: UrgencyWarning},
		{days: 90, want: UrgencyWarning},
		{days: 91, want: UrgencyOK},
	}

	for _, tt := range tests {
		if got := Classify(tt.days, thresholds); got != tt.want {
			t.Fatalf("Classify(%d) = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestClassifyNormalizesInvertedThresholds(t *testing.T) {
	t.Parallel()

	thresholds := Thresholds{CriticalDays: 60, WarningDays: 10}
	if got := Classify(45, thresholds); got != UrgencyCritical {
		t.Fatalf("Classify(45) = %q, want critical", got)
	}
	if got := Classify(61, thresholds); got != UrgencyOK {
		t.Fatalf("Classify(61) = %q, want ok", got)
	}
}

func TestParseUrgency(t *testing.T) {
	t.Parallel()

	if got, ok := ParseUrgency(" Critical "); !ok || got != UrgencyCritical {
		t.Fatalf("ParseUrgency(Critical) = %q, %v", got, ok)
	}
	if _, ok := ParseUrgency("soon"); ok {
		t.Fatal("ParseUrgency(soon) should fail")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	groups := Groups{
		Active: []Alert{
			{ID: "a", DaysRemaining: 5, Seats: 10, IsTrial: true},
			{ID: "b", DaysRemaining: 120, Seats: 3},
		},
		Expired: []Alert{
			{ID: "c", DaysRemaining: -2, Seats: 50},
		},
	}

	summary := Summarize(groups, DefaultThresholds())
	if summary.Total != 3 || summary.Active != 2 || summary.Expired != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.Trials != 1 {
		t.Fatalf("trials = %d, want 1", summary.Trials)
	}
	if summary.ActiveSeats != 13 {
		t.Fatalf("active seats = %d, want 13", summary.ActiveSeats)
	}
	if summary.ByUrgency[UrgencyCritical] != 1 || summary.ByUrgency[UrgencyOK] != 1 || summary.ByUrgency[UrgencyExpired] != 1 {
		t.Fatalf("unexpected urgency counts: %+v", summary.ByUrgency)
	}
}
