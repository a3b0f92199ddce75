package license

// Partition splits ranked alerts into active (DaysRemaining > 0) and expired
// (DaysRemaining <= 0) groups without reordering either side.
func Partition(ranked []Alert) Groups {
	groups := Groups{
		Active:  make([]Alert, 0, len(ranked)),
		Expired: make([]Alert, 0),
	}
	for _, alert := range ranked {
		if alert.Active() {
			groups.Active = append(groups.Active, alert)
			continue
		}
		groups.Expired = append(groups.Expired, alert)
	}
	return groups
}

// Pipeline runs Normalize, Rank and Partition over one lookup response.
func Pipeline(raw RawResponse) Groups {
	return Partition(Rank(Normalize(raw)))
}
