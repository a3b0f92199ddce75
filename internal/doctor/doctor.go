package doctor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/diagkit/licensecheck/internal/events"
	"github.com/diagkit/licensecheck/internal/lookup"
	"github.com/diagkit/licensecheck/internal/telemetry"
)

const defaultProbeInterval = 30 * time.Second

// EventBus publishes health events.
type EventBus interface {
	Publish(event events.Event)
}

// Config controls probe cadence and labelling.
type Config struct {
	ProbeInterval time.Duration
	Endpoint      string
}

// HealthReport is produced by every probe of the license source.
type HealthReport struct {
	Source       string    `json:"source"`
	Endpoint     string    `json:"endpoint"`
	Reachable    bool      `json:"reachable"`
	BreakerState string    `json:"breaker_state,omitempty"`
	LatencyMS    int64     `json:"latency_ms"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Manager probes the license source on a periodic ticker and keeps the last report.
type Manager struct {
	target        lookup.Prober
	bus           EventBus
	endpoint      string
	probeInterval time.Duration
	now           func() time.Time
	newTicker     func(time.Duration) *time.Ticker

	mu   sync.RWMutex
	last *HealthReport
}

// NewManager builds a doctor manager with sane defaults.
func NewManager(target lookup.Prober, bus EventBus, cfg Config) (*Manager, error) {
	if target == nil {
		return nil, errors.New("probe target is required")
	}
	if bus == nil {
		return nil, errors.New("event bus is required")
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	return &Manager{
		target:        target,
		bus:           bus,
		endpoint:      strings.TrimSpace(cfg.Endpoint),
		probeInterval: cfg.ProbeInterval,
		now:           time.Now,
		newTicker:     time.NewTicker,
	}, nil
}

// Start probes immediately and then on every tick until context cancellation.
func (m *Manager) Start(ctx context.Context) {
	if m == nil {
		return
	}
	m.RunOnce(ctx)

	ticker := m.newTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce probes the license source once, stores and publishes the report.
func (m *Manager) RunOnce(ctx context.Context) HealthReport {
	if m == nil {
		return HealthReport{Error: "doctor manager is nil"}
	}

	started := m.now()
	err := m.target.Probe(ctx)
	finished := m.now()

	report := HealthReport{
		Endpoint:  m.endpoint,
		Reachable: err == nil,
		LatencyMS: finished.Sub(started).Milliseconds(),
		CheckedAt: finished.UTC(),
	}
	if named, ok := m.target.(lookup.Named); ok {
		report.Source = named.Name()
	}
	if stater, ok := m.target.(lookup.BreakerStater); ok {
		report.BreakerState = stater.BreakerState()
	}
	if err != nil {
		report.Error = telemetry.RedactSecrets(err.Error())
	}

	m.mu.Lock()
	stored := report
	m.last = &stored
	m.mu.Unlock()

	severity := events.SeverityInfo
	if !report.Reachable {
		severity = events.SeverityError
	}
	m.bus.Publish(events.Event{
		Type:       events.EventTypeHealthCheck,
		Timestamp:  report.CheckedAt,
		EntityType: "lookup_service",
		EntityID:   report.Source,
		Payload:    report,
		Severity:   severity,
	})
	return report
}

// Last returns the most recent report, if any probe has run.
func (m *Manager) Last() (HealthReport, bool) {
	if m == nil {
		return HealthReport{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return HealthReport{}, false
	}
	return *m.last, true
}
