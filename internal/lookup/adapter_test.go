package lookup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/diagkit/licensecheck/internal/events"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type namedStub struct {
	raw   license.RawResponse
	err   error
	calls int
}

func (s *namedStub) Name() string         { return "stub" }
func (s *namedStub) BreakerState() string { return "half-open" }

func (s *namedStub) Submit(_ context.Context, _ string) (license.RawResponse, error) {
	s.calls++
	return s.raw, s.err
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Subscribe(string, events.Handler) {}
func (b *recordingBus) SubscribeAll(events.Handler)      {}

func (b *recordingBus) Publish(event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, event := range b.events {
		out = append(out, event.Type)
	}
	return out
}

func TestAdapterLookupPassesSuccessThrough(t *testing.T) {
	recorder := installRecorder(t)
	name := "Suite"
	stub := &namedStub{raw: license.RawResponse{"L1": {Name: &name}}}
	bus := &recordingBus{}

	var observed []string
	adapter := NewAdapter(stub, WithEventBus(bus), WithObserver(func(source string, result Result) {
		observed = append(observed, source+":"+result.Outcome())
	}))

	raw := adapter.Lookup(context.Background(), "XSP1234567")
	assert.Equal(t, stub.raw, raw)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, []string{"stub:ok"}, observed)
	assert.Equal(t, []string{events.EventTypeLookupCompleted}, bus.types())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "lookup.call", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestAdapterLookupDegradesFailuresToEmptyResponse(t *testing.T) {
	recorder := installRecorder(t)
	var logs bytes.Buffer
	logger := log.New(&logs)
	logger.SetFormatter(log.JSONFormatter)
	bus := &recordingBus{}

	stub := &namedStub{err: errors.New("dial tcp: connection refused apikey=abc")}
	adapter := NewAdapter(stub, WithLogger(logger), WithEventBus(bus))

	raw := adapter.Lookup(context.Background(), "XSP1234567")
	require.NotNil(t, raw)
	assert.Empty(t, raw)

	result := adapter.Resolve(context.Background(), "XSP1234567")
	assert.Error(t, result.Err)
	assert.Equal(t, OutcomeError, result.Outcome())

	assert.Contains(t, logs.String(), "license lookup failed")
	assert.NotContains(t, logs.String(), "apikey=abc")
	assert.Equal(t, []string{events.EventTypeLookupFailed, events.EventTypeLookupFailed}, bus.types())

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestAdapterRecoversFromPanickingSource(t *testing.T) {
	installRecorder(t)

	adapter := NewAdapter(Func(func(context.Context, string) (license.RawResponse, error) {
		panic("boom")
	}))

	result := adapter.Resolve(context.Background(), "XSP1234567")
	require.Error(t, result.Err)
	assert.True(t, strings.Contains(result.Err.Error(), "panicked"))
	assert.Empty(t, adapter.Lookup(context.Background(), "XSP1234567"))
}

func TestAdapterWithoutSourceReturnsEmpty(t *testing.T) {
	installRecorder(t)

	assert.Empty(t, NewAdapter(nil).Lookup(context.Background(), "XSP1234567"))

	var nilAdapter *Adapter
	result := nilAdapter.Resolve(context.Background(), "XSP1234567")
	assert.ErrorIs(t, result.Err, errNoLookuper)
	assert.NotNil(t, nilAdapter.Lookup(context.Background(), "XSP1234567"))
}

func TestResultOutcome(t *testing.T) {
	t.Parallel()

	assert.Equal(t, OutcomeEmpty, Result{Response: license.RawResponse{}}.Outcome())
	assert.Equal(t, OutcomeEmpty, Result{}.Outcome())
	assert.Equal(t, OutcomeOK, Result{Response: license.RawResponse{"x": {}}}.Outcome())
	assert.Equal(t, OutcomeError, Result{Response: license.RawResponse{"x": {}}, Err: errors.New("x")}.Outcome())
}

func TestAdapterMeasuresDuration(t *testing.T) {
	installRecorder(t)

	adapter := NewAdapter(&namedStub{raw: license.RawResponse{}})
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time {
		tick = tick.Add(250 * time.Millisecond)
		return tick
	}

	result := adapter.Resolve(context.Background(), "XSP1234567")
	assert.Equal(t, 250*time.Millisecond, result.Duration)
}

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return recorder
}
