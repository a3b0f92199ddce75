package lookup

import (
	"context"

	"github.com/diagkit/licensecheck/internal/license"
)

// Lookuper submits a customer reference to a license source.
type Lookuper interface {
	Submit(ctx context.Context, reference string) (license.RawResponse, error)
}

// Prober checks that a license source is reachable without submitting a reference.
type Prober interface {
	Probe(ctx context.Context) error
}

// BreakerStater reports the circuit breaker state of a source, when it has one.
type BreakerStater interface {
	BreakerState() string
}

// Named sources label their spans and metrics.
type Named interface {
	Name() string
}

// Func adapts a plain function to Lookuper.
type Func func(ctx context.Context, reference string) (license.RawResponse, error)

// Submit calls f.
func (f Func) Submit(ctx context.Context, reference string) (license.RawResponse, error) {
	return f(ctx, reference)
}

func sourceName(lookuper Lookuper) string {
	if named, ok := lookuper.(Named); ok {
		return named.Name()
	}
	return ""
}
