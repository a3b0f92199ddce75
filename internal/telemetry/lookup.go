package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxErrorMessageBytes = 512

var (
	sensitiveInlinePattern = regexp.MustCompile(`(?i)(api[_-]?key|token|password|secret|authorization)\s*[:=]\s*([^\s,;]+)`)
	bearerTokenPattern     = regexp.MustCompile(`(?i)\bbearer\s+[a-z0-9._\-]+`)
)

// LookupCallRequest describes one license lookup for tracing.
type LookupCallRequest struct {
	Source    string
	Reference string
}

// LookupCall tracks one lookup.call span lifecycle.
type LookupCall struct {
	span      trace.Span
	startedAt time.Time

	mu    sync.Mutex
	ended bool
}

type lookupCallContextKey struct{}

// StartLookupCall starts a lookup.call span. The customer reference is only
// recorded as a hash.
func StartLookupCall(ctx context.Context, req LookupCallRequest) (context.Context, *LookupCall) {
	if ctx == nil {
		ctx = context.Background()
	}

	spanCtx, span := otel.Tracer("licensecheck/telemetry/lookup").Start(
		ctx,
		"lookup.call",
		trace.WithAttributes(
			attribute.String("source", normalizeOrUnknown(req.Source)),
			attribute.String("reference_hash", HashReference(req.Reference)),
		),
	)

	call := &LookupCall{span: span, startedAt: time.Now()}
	return context.WithValue(spanCtx, lookupCallContextKey{}, call), call
}

// LookupCallFromContext returns the lookup call tracker if one exists on the context.
func LookupCallFromContext(ctx context.Context) *LookupCall {
	if ctx == nil {
		return nil
	}
	call, ok := ctx.Value(lookupCallContextKey{}).(*LookupCall)
	if !ok {
		return nil
	}
	return call
}

// RecordBreakerState adds the circuit breaker state observed for this call.
func (c *LookupCall) RecordBreakerState(state string) {
	if c == nil || c.span == nil {
		return
	}
	c.span.SetAttributes(attribute.String("breaker_state", normalizeOrUnknown(state)))
}

// End finalizes the span with latency, license count and a redacted error.
func (c *LookupCall) End(licenseCount int, err error) {
	if c == nil || c.span == nil {
		return
	}

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.mu.Unlock()

	durationMS := time.Since(c.startedAt).Milliseconds()
	if durationMS < 0 {
		durationMS = 0
	}
	c.span.SetAttributes(
		attribute.Int64("latency_ms", durationMS),
		attribute.Int("license_count", licenseCount),
		attribute.Bool("degraded", err != nil),
	)

	if err != nil {
		message := RedactSecrets(err.Error())
		c.span.AddEvent("lookup.error", trace.WithAttributes(attribute.String("error_message", message)))
		c.span.SetStatus(codes.Error, message)
	} else {
		c.span.SetStatus(codes.Ok, "lookup completed")
	}
	c.span.End()
}

// HashReference returns a stable hex digest of a customer reference.
func HashReference(reference string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(reference)))
	return hex.EncodeToString(sum[:])
}

// RedactSecrets masks api keys, tokens and bearer credentials and bounds the length.
func RedactSecrets(input string) string {
	redacted := strings.TrimSpace(input)
	if redacted == "" {
		return ""
	}
	redacted = sensitiveInlinePattern.ReplaceAllString(redacted, "$1=<redacted>")
	redacted = bearerTokenPattern.ReplaceAllString(redacted, "bearer <redacted>")
	if len(redacted) > maxErrorMessageBytes {
		return redacted[:maxErrorMessageBytes-len("...[truncated]")] + "...[truncated]"
	}
	return redacted
}

func normalizeOrUnknown(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
