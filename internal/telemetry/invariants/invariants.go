package invariants

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InvariantAlertIDMatchesKey requires each normalized alert to carry its response key as ID.
	InvariantAlertIDMatchesKey = "alert_id_matches_key"
	// InvariantRankedAscending requires ranked alerts to be ordered by remaining days.
	InvariantRankedAscending = "ranked_ascending"
	// InvariantPartitionComplete requires active and expired groups to cover the ranked set exactly.
	InvariantPartitionComplete = "partition_complete"
	// InvariantStateTransitionLegal requires view transitions to follow the controller state machine.
	InvariantStateTransitionLegal = "state_transition_legal"
)

const (
	// SeverityWarn is used for non-fatal invariant violations.
	SeverityWarn = "warn"
	// SeverityError is used for fatal invariant violations.
	SeverityError = "error"
)

var invariantChecksEnabled atomic.Bool

func init() {
	invariantChecksEnabled.Store(true)
}

// ViolationDetails captures invariant violation context for telemetry events.
type ViolationDetails struct {
	WhatInvariant string
	WhereDetected string
	WhyViolated   string
	Additional    map[string]string
}

// SetEnabled globally enables or disables invariant checks.
func SetEnabled(enabled bool) {
	invariantChecksEnabled.Store(enabled)
}

// Enabled reports whether invariant checks are currently enabled.
func Enabled() bool {
	return invariantChecksEnabled.Load()
}

// InvariantViolation emits an invariant.violation event on the active span,
// or on a short synthetic span when ctx carries none.
func InvariantViolation(
	ctx context.Context,
	invariantName string,
	severity string,
	details ViolationDetails,
) {
	if !Enabled() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	invariantName = strings.TrimSpace(invariantName)
	if invariantName == "" {
		invariantName = "unknown_invariant"
	}

	attrs := []attribute.KeyValue{
		attribute.String("invariant_name", invariantName),
		attribute.String("severity", normalizeSeverity(severity)),
		attribute.String("what_invariant", strings.TrimSpace(details.WhatInvariant)),
		attribute.String("where_detected", strings.TrimSpace(details.WhereDetected)),
		attribute.String("why_violated", strings.TrimSpace(details.WhyViolated)),
	}
	keys := make([]string, 0, len(details.Additional))
	for key := range details.Additional {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if value := strings.TrimSpace(details.Additional[key]); value != "" {
			attrs = append(attrs, attribute.String("context."+key, value))
		}
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("invariant.violation", trace.WithAttributes(attrs...))
		return
	}

	_, temporarySpan := otel.Tracer("licensecheck/invariants").Start(ctx, "invariant.violation")
	defer temporarySpan.End()
	temporarySpan.AddEvent("invariant.violation", trace.WithAttributes(attrs...))
}

// CheckAlertIDsMatchKeys validates the alert_id_matches_key invariant.
// mismatched lists alert IDs that did not originate from a response key.
func CheckAlertIDsMatchKeys(ctx context.Context, whereDetected string, mismatched []string) bool {
	if len(mismatched) == 0 {
		return true
	}
	InvariantViolation(ctx, InvariantAlertIDMatchesKey, SeverityError, ViolationDetails{
		WhatInvariant: "every alert id equals its originating response key",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("alert ids without matching key: %s", strings.Join(mismatched, ", ")),
		Additional: map[string]string{
			"mismatched": strings.Join(mismatched, ","),
		},
	})
	return false
}

// CheckRankedAscending validates the ranked_ascending invariant.
func CheckRankedAscending(ctx context.Context, whereDetected string, sorted bool, count int) bool {
	if sorted {
		return true
	}
	InvariantViolation(ctx, InvariantRankedAscending, SeverityError, ViolationDetails{
		WhatInvariant: "ranked alerts are ordered by days remaining ascending",
		WhereDetected: whereDetected,
		WhyViolated:   "ranked sequence is out of order",
		Additional: map[string]string{
			"count": fmt.Sprintf("%d", count),
		},
	})
	return false
}

// CheckPartitionComplete validates the partition_complete invariant.
func CheckPartitionComplete(ctx context.Context, whereDetected string, ranked, active, expired int) bool {
	if ranked == active+expired {
		return true
	}
	InvariantViolation(ctx, InvariantPartitionComplete, SeverityError, ViolationDetails{
		WhatInvariant: "active and expired groups cover the ranked set exactly",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("ranked=%d active=%d expired=%d", ranked, active, expired),
		Additional: map[string]string{
			"ranked":  fmt.Sprintf("%d", ranked),
			"active":  fmt.Sprintf("%d", active),
			"expired": fmt.Sprintf("%d", expired),
		},
	})
	return false
}

// CheckStateTransitionLegal validates the state_transition_legal invariant.
// Rejected resubmissions during a lookup are expected and reported as warnings.
func CheckStateTransitionLegal(
	ctx context.Context,
	whereDetected string,
	fromPhase string,
	event string,
	legal bool,
	severity string,
) bool {
	if legal {
		return true
	}
	InvariantViolation(ctx, InvariantStateTransitionLegal, severity, ViolationDetails{
		WhatInvariant: "view state transition is legal",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("event=%s not accepted in phase=%s", event, fromPhase),
		Additional: map[string]string{
			"from_phase": strings.TrimSpace(fromPhase),
			"event":      strings.TrimSpace(event),
		},
	})
	return false
}

func normalizeSeverity(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case SeverityWarn:
		return SeverityWarn
	default:
		return SeverityError
	}
}
