package license

import "strings"

const (
	// DefaultCriticalDays is the default upper bound of the critical window.
	DefaultCriticalDays = 30
	// DefaultWarningDays is the default upper bound of the warning window.
	DefaultWarningDays = 90
)

// Urgency is a display classification derived from DaysRemaining.
type Urgency string

const (
	// UrgencyExpired marks licenses with no validity time left.
	UrgencyExpired Urgency = "expired"
	// UrgencyCritical marks licenses inside the critical window.
	UrgencyCritical Urgency = "critical"
	// UrgencyWarning marks licenses inside the warning window.
	UrgencyWarning Urgency = "warning"
	// UrgencyOK marks licenses with comfortable validity left.
	UrgencyOK Urgency = "ok"
)

// Thresholds bound the critical and warning windows in days.
type Thresholds struct {
	CriticalDays int
	WarningDays  int
}

// DefaultThresholds returns the stock 30/90 day windows.
func DefaultThresholds() Thresholds {
	return Thresholds{CriticalDays: DefaultCriticalDays, WarningDays: DefaultWarningDays}
}

func (t Thresholds) normalized() Thresholds {
	if t.CriticalDays <= 0 {
		t.CriticalDays = DefaultCriticalDays
	}
	if t.WarningDays < t.CriticalDays {
		t.WarningDays = t.CriticalDays
	}
	return t
}

// Classify maps remaining days to an urgency level.
func Classify(daysRemaining int, thresholds Thresholds) Urgency {
	thresholds = thresholds.normalized()
	switch {
	case daysRemaining <= 0:
		return UrgencyExpired
	case daysRemaining <= thresholds.CriticalDays:
		return UrgencyCritical
	case daysRemaining <= thresholds.WarningDays:
		return UrgencyWarning
	default:
		return UrgencyOK
	}
}

// ParseUrgency resolves a case-insensitive urgency label.
func ParseUrgency(value string) (Urgency, bool) {
	switch Urgency(strings.ToLower(strings.TrimSpace(value))) {
	case UrgencyExpired:
		return UrgencyExpired, true
	case UrgencyCritical:
		return UrgencyCritical, true
	case UrgencyWarning:
		return UrgencyWarning, true
	case UrgencyOK:
		return UrgencyOK, true
	default:
		return "", false
	}
}

// Summary aggregates counts over one result.
type Summary struct {
	Total       int             `json:"total" yaml:"total"`
	Active      int             `json:"active" yaml:"active"`
	Expired     int             `json:"expired" yaml:"expired"`
	Trials      int             `json:"trials" yaml:"trials"`
	ActiveSeats int             `json:"activeSeats" yaml:"activeSeats"`
	ByUrgency   map[Urgency]int `json:"byUrgency" yaml:"byUrgency"`
}

// Summarize counts alerts per group and urgency level.
func Summarize(groups Groups, thresholds Thresholds) Summary {
	summary := Summary{
		Total:     groups.Len(),
		Active:    len(groups.Active),
		Expired:   len(groups.Expired),
		ByUrgency: map[Urgency]int{},
	}
	for _, alert := range groups.All() {
		summary.ByUrgency[Classify(alert.DaysRemaining, thresholds)]++
		if alert.IsTrial {
			summary.Trials++
		}
		if alert.Active() && alert.Seats > 0 {
			summary.ActiveSeats += alert.Seats
		}
	}
	return summary
}
