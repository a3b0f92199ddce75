package license

import (
	"cmp"
	"slices"
)

// Rank returns a copy of alerts ordered by DaysRemaining ascending, most urgent
// first. Equal values keep their input order.
func Rank(alerts []Alert) []Alert {
	ranked := slices.Clone(alerts)
	if ranked == nil {
		ranked = []Alert{}
	}
	slices.SortStableFunc(ranked, func(a, b Alert) int {
		return cmp.Compare(a.DaysRemaining, b.DaysRemaining)
	})
	return ranked
}

// IsRanked reports whether alerts are in non-decreasing DaysRemaining order.
func IsRanked(alerts []Alert) bool {
	return slices.IsSortedFunc(alerts, func(a, b Alert) int {
		return cmp.Compare(a.DaysRemaining, b.DaysRemaining)
	})
}
