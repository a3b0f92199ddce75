package license

// Info is one license record as returned by the lookup service. Every field is
// optional because the upstream payload carries no schema guarantees.
type Info struct {
	Name          *string `json:"name,omitempty" yaml:"name,omitempty"`
	ExpiryDate    *string `json:"expiryDate,omitempty" yaml:"expiryDate,omitempty"`
	DaysRemaining *int    `json:"daysRemaining,omitempty" yaml:"daysRemaining,omitempty"`
	Periodicity   *string `json:"periodicity,omitempty" yaml:"periodicity,omitempty"`
	Term          *string `json:"term,omitempty" yaml:"term,omitempty"`
	IsTrial       *bool   `json:"isTrial,omitempty" yaml:"isTrial,omitempty"`
	Seats         *int    `json:"seats,omitempty" yaml:"seats,omitempty"`
	AutoRenew     *bool   `json:"autoRenew,omitempty" yaml:"autoRenew,omitempty"`
}

// RawResponse maps license identifiers to their info records.
type RawResponse map[string]Info

// Alert is the flat, uniformly shaped license record used for ranking and rendering.
type Alert struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	ExpiryDate    string `json:"expiryDate" yaml:"expiryDate"`
	DaysRemaining int    `json:"daysRemaining" yaml:"daysRemaining"`
	Periodicity   string `json:"periodicity" yaml:"periodicity"`
	Term          string `json:"term" yaml:"term"`
	IsTrial       bool   `json:"isTrial" yaml:"isTrial"`
	Seats         int    `json:"seats" yaml:"seats"`
	AutoRenew     bool   `json:"autoRenew" yaml:"autoRenew"`
}

// Active reports whether the license still has validity time remaining.
func (a Alert) Active() bool {
	return a.DaysRemaining > 0
}

// Groups holds ranked alerts split by remaining validity.
type Groups struct {
	Active  []Alert `json:"active" yaml:"active"`
	Expired []Alert `json:"expired" yaml:"expired"`
}

// Len returns the total number of alerts across both groups.
func (g Groups) Len() int {
	return len(g.Active) + len(g.Expired)
}

// All returns active alerts followed by expired alerts, which is the ranked order.
func (g Groups) All() []Alert {
	out := make([]Alert, 0, g.Len())
	out = append(out, g.Active...)
	out = append(out, g.Expired...)
	return out
}
