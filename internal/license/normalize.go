package license

import (
	"maps"
	"slices"
)

// Normalize flattens a raw response into one alert per key. Keys are visited in
// lexical order so that ties in later stable ranking resolve deterministically.
// Field contents are copied as-is; missing fields become zero values.
func Normalize(raw RawResponse) []Alert {
	alerts := make([]Alert, 0, len(raw))
	for _, id := range slices.Sorted(maps.Keys(raw)) {
		alerts = append(alerts, toAlert(id, raw[id]))
	}
	return alerts
}

func toAlert(id string, info Info) Alert {
	return Alert{
		ID:            id,
		Name:          deref(info.Name),
		ExpiryDate:    deref(info.ExpiryDate),
		DaysRemaining: deref(info.DaysRemaining),
		Periodicity:   deref(info.Periodicity),
		Term:          deref(info.Term),
		IsTrial:       deref(info.IsTrial),
		Seats:         deref(info.Seats),
		AutoRenew:     deref(info.AutoRenew),
	}
}

func deref[T any](value *T) T {
	var zero T
	if value == nil {
		return zero
	}
	return *value
}
