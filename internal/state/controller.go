package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/diagkit/licensecheck/internal/events"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/telemetry"
	"github.com/diagkit/licensecheck/internal/telemetry/invariants"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Lookup is the degraded, never-failing license lookup the controller dispatches.
type Lookup interface {
	Lookup(ctx context.Context, reference string) license.RawResponse
}

// Option configures Controller construction.
type Option func(*Controller)

// WithTracer configures the tracer used for state transition spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(controller *Controller) {
		if tracer == nil {
			return
		}
		controller.tracer = tracer
	}
}

// WithEventBus publishes StateTransition, BusyChanged and ValidationFailed events.
func WithEventBus(bus events.Bus) Option {
	return func(controller *Controller) {
		controller.bus = bus
	}
}

// WithLogger sets the logger for transitions and rejected events.
func WithLogger(logger *log.Logger) Option {
	return func(controller *Controller) {
		if logger != nil {
			controller.logger = logger
		}
	}
}

// Controller owns one View and applies events to it one at a time.
type Controller struct {
	mu      sync.Mutex
	view    View
	lookup  Lookup
	tracer  trace.Tracer
	bus     events.Bus
	logger  *log.Logger
	now     func() time.Time
	history []TransitionRecord
}

// NewController builds a controller in the idle phase.
func NewController(lookup Lookup, options ...Option) (*Controller, error) {
	if lookup == nil {
		return nil, errors.New("lookup is required")
	}

	controller := &Controller{
		view:    NewView(),
		lookup:  lookup,
		tracer:  otel.Tracer("licensecheck/state"),
		logger:  log.New(io.Discard),
		now:     time.Now,
		history: []TransitionRecord{},
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(controller)
	}
	return controller, nil
}

// Submit validates the inputs and, when valid, moves to loading. The caller
// runs the lookup named by the returned DispatchLookup effect and then calls
// Complete. A submit while loading returns ErrSubmissionInFlight.
func (c *Controller) Submit(ctx context.Context, company, reference string) ([]Effect, error) {
	if c == nil {
		return nil, errors.New("controller is nil")
	}
	return c.apply(ctx, Submit(company, reference))
}

// Complete feeds a lookup response into the pipeline and shows the result.
func (c *Controller) Complete(ctx context.Context, raw license.RawResponse) error {
	if c == nil {
		return errors.New("controller is nil")
	}
	_, err := c.apply(ctx, LookupCompleted(raw))
	return err
}

// ToggleExpired flips the expired-group disclosure when a result is shown.
func (c *Controller) ToggleExpired(ctx context.Context) error {
	if c == nil {
		return errors.New("controller is nil")
	}
	_, err := c.apply(ctx, ToggleExpired())
	return err
}

// RunLookup performs a dispatched lookup. It never fails; failures arrive as an empty response.
func (c *Controller) RunLookup(ctx context.Context, reference string) license.RawResponse {
	if c == nil || c.lookup == nil {
		return license.RawResponse{}
	}
	raw := c.lookup.Lookup(ctx, reference)
	if raw == nil {
		return license.RawResponse{}
	}
	return raw
}

// Check runs submit, lookup and completion synchronously and returns the final view.
// Validation failures are reported on the view, not as an error.
func (c *Controller) Check(ctx context.Context, company, reference string) (View, error) {
	if c == nil {
		return View{}, errors.New("controller is nil")
	}
	effects, err := c.Submit(ctx, company, reference)
	if err != nil {
		return c.View(), err
	}

	for _, effect := range effects {
		dispatch, ok := effect.(DispatchLookup)
		if !ok {
			continue
		}
		raw := c.RunLookup(ctx, dispatch.Reference)
		if err := c.Complete(ctx, raw); err != nil {
			return c.View(), fmt.Errorf("complete lookup: %w", err)
		}
	}
	return c.View(), nil
}

// View returns a copy of the current view.
func (c *Controller) View() View {
	if c == nil {
		return NewView()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.clone()
}

// History returns transition records captured by this controller.
func (c *Controller) History() []TransitionRecord {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TransitionRecord, len(c.history))
	for i, record := range c.history {
		record.Effects = slices.Clone(record.Effects)
		out[i] = record
	}
	return out
}

func (c *Controller) apply(ctx context.Context, event Event) ([]Effect, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.view.Phase
	ctx, span := c.tracer.Start(ctx, "state.transition")
	defer func() {
		span.SetAttributes(attribute.Int64("duration_ms", time.Since(started).Milliseconds()))
		span.End()
	}()
	span.SetAttributes(
		attribute.String("from_phase", string(from)),
		attribute.String("event", string(event.Kind)),
	)
	if event.Kind == EventSubmit {
		span.SetAttributes(attribute.String("reference_hash", telemetry.HashReference(event.Reference)))
	}

	next, effects, err := Transition(c.view, event)
	if err != nil {
		severity := invariants.SeverityError
		if errors.Is(err, ErrSubmissionInFlight) {
			severity = invariants.SeverityWarn
		}
		invariants.CheckStateTransitionLegal(ctx, "state.controller.apply", string(from), string(event.Kind), false, severity)
		c.logger.Warn("state transition rejected", "from_phase", from, "event", event.Kind, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if event.Kind == EventLookupCompleted {
		checkPipelineInvariants(ctx, event.Response, next.Groups)
	}

	record := TransitionRecord{
		From:      from,
		To:        next.Phase,
		Event:     event.Kind,
		Effects:   make([]string, 0, len(effects)),
		Timestamp: c.now().UTC(),
	}
	if event.Kind == EventSubmit {
		record.Via = PhaseValidating
	}
	for _, effect := range effects {
		record.Effects = append(record.Effects, EffectName(effect))
	}

	c.view = next
	c.history = append(c.history, record)

	span.SetAttributes(
		attribute.String("to_phase", string(next.Phase)),
		attribute.StringSlice("effects", record.Effects),
	)
	span.SetStatus(codes.Ok, "state transition applied")
	c.logger.Info("state transition", "from_phase", from, "to_phase", next.Phase, "event", event.Kind, "effects", record.Effects)
	c.publishTransition(record, effects)

	return slices.Clone(effects), nil
}

func (c *Controller) publishTransition(record TransitionRecord, effects []Effect) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{
		Type:       events.EventTypeStateTransition,
		EntityType: "check",
		EntityID:   string(record.Event),
		Payload:    record,
		Severity:   events.SeverityInfo,
	})
	for _, effect := range effects {
		switch typed := effect.(type) {
		case BusyChanged:
			c.bus.Publish(events.Event{
				Type:       events.EventTypeBusyChanged,
				EntityType: "check",
				Payload:    typed.Busy,
				Severity:   events.SeverityInfo,
			})
		case ShowError:
			c.bus.Publish(events.Event{
				Type:       events.EventTypeValidationFailed,
				EntityType: "check",
				Payload:    typed.Message,
				Severity:   events.SeverityWarn,
			})
		}
	}
}

func checkPipelineInvariants(ctx context.Context, raw license.RawResponse, groups license.Groups) {
	if !invariants.Enabled() {
		return
	}
	all := groups.All()

	var mismatched []string
	for _, alert := range all {
		if _, ok := raw[alert.ID]; !ok {
			mismatched = append(mismatched, alert.ID)
		}
	}
	invariants.CheckAlertIDsMatchKeys(ctx, "state.controller.complete", mismatched)
	invariants.CheckRankedAscending(ctx, "state.controller.complete", license.IsRanked(all), len(all))
	invariants.CheckPartitionComplete(ctx, "state.controller.complete", len(raw), len(groups.Active), len(groups.Expired))
}
