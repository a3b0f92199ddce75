package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/diagkit/licensecheck/internal/events"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/telemetry"
)

// Outcome labels the result of one lookup for metrics.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

var errNoLookuper = errors.New("no license source configured")

// Result is the internal outcome of one lookup before degradation.
type Result struct {
	Response license.RawResponse
	Err      error
	Duration time.Duration
}

// Outcome returns ok, empty or error.
func (r Result) Outcome() string {
	switch {
	case r.Err != nil:
		return OutcomeError
	case len(r.Response) == 0:
		return OutcomeEmpty
	default:
		return OutcomeOK
	}
}

// Observer receives every lookup result, e.g. to feed metrics.
type Observer func(source string, result Result)

// AdapterOption customizes an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger used for degraded lookups.
func WithLogger(logger *log.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithEventBus publishes LookupCompleted and LookupFailed events.
func WithEventBus(bus events.Bus) AdapterOption {
	return func(a *Adapter) {
		a.bus = bus
	}
}

// WithObserver registers a callback for every lookup result.
func WithObserver(observer Observer) AdapterOption {
	return func(a *Adapter) {
		a.observer = observer
	}
}

// Adapter wraps a Lookuper so callers never see an error: any failure is
// logged, traced and collapsed into an empty response.
type Adapter struct {
	lookuper Lookuper
	source   string
	logger   *log.Logger
	bus      events.Bus
	observer Observer
	now      func() time.Time
}

// NewAdapter wraps lookuper.
func NewAdapter(lookuper Lookuper, options ...AdapterOption) *Adapter {
	a := &Adapter{
		lookuper: lookuper,
		source:   sourceName(lookuper),
		logger:   log.New(io.Discard),
		now:      time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(a)
		}
	}
	return a
}

// Lookup returns the raw response on success and an empty response on any failure.
func (a *Adapter) Lookup(ctx context.Context, reference string) license.RawResponse {
	result := a.Resolve(ctx, reference)
	if result.Err != nil || result.Response == nil {
		return license.RawResponse{}
	}
	return result.Response
}

// Resolve performs the lookup and returns the undegraded result.
func (a *Adapter) Resolve(ctx context.Context, reference string) Result {
	if a == nil {
		return Result{Response: license.RawResponse{}, Err: errNoLookuper}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, call := telemetry.StartLookupCall(ctx, telemetry.LookupCallRequest{
		Source:    a.source,
		Reference: reference,
	})

	started := a.now()
	var result Result
	if a.lookuper == nil {
		result.Err = errNoLookuper
	} else {
		result.Response, result.Err = a.submit(ctx, reference)
	}
	result.Duration = a.now().Sub(started)

	if stater, ok := a.lookuper.(BreakerStater); ok {
		call.RecordBreakerState(stater.BreakerState())
	}
	call.End(len(result.Response), result.Err)

	a.report(reference, result)
	return result
}

func (a *Adapter) submit(ctx context.Context, reference string) (raw license.RawResponse, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			raw, err = nil, fmt.Errorf("license source panicked: %v", recovered)
		}
	}()
	return a.lookuper.Submit(ctx, reference)
}

func (a *Adapter) report(reference string, result Result) {
	referenceHash := telemetry.HashReference(reference)
	if result.Err != nil {
		a.logger.Warn(
			"license lookup failed; showing empty result",
			"source", a.source,
			"reference_hash", referenceHash,
			"error", telemetry.RedactSecrets(result.Err.Error()),
			"duration_ms", result.Duration.Milliseconds(),
		)
		a.publish(events.Event{
			Type:       events.EventTypeLookupFailed,
			EntityType: "lookup",
			EntityID:   referenceHash,
			Payload:    telemetry.RedactSecrets(result.Err.Error()),
			Severity:   events.SeverityWarn,
		})
	} else {
		a.logger.Info(
			"license lookup completed",
			"source", a.source,
			"reference_hash", referenceHash,
			"license_count", len(result.Response),
			"duration_ms", result.Duration.Milliseconds(),
		)
		a.publish(events.Event{
			Type:       events.EventTypeLookupCompleted,
			EntityType: "lookup",
			EntityID:   referenceHash,
			Payload:    len(result.Response),
			Severity:   events.SeverityInfo,
		})
	}

	if a.observer != nil {
		a.observer(a.source, result)
	}
}

func (a *Adapter) publish(event events.Event) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(event)
}
