// Package test provides shared testing utilities for licensecheck.
//
// It holds fixture builders and fakes used across package tests and the
// end-to-end pipeline tests in this directory.
package test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/diagkit/licensecheck/internal/license"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Context returns a context cancelled when the test completes.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// TempDir creates a temporary directory removed when the test completes.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "licensecheck-test-*")
	require.NoError(t, err, "failed to create temp dir")
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}

// License builds a raw license record with a name and days remaining.
func License(name string, daysRemaining int) license.Info {
	return license.Info{Name: &name, DaysRemaining: &daysRemaining}
}

// Trial marks info as a trial license.
func Trial(info license.Info) license.Info {
	trial := true
	info.IsTrial = &trial
	return info
}

// WithSeats sets the seat count on info.
func WithSeats(info license.Info, seats int) license.Info {
	info.Seats = &seats
	return info
}

// WriteFixture encodes raw as a JSON fixture file and returns its path.
func WriteFixture(t *testing.T, raw license.RawResponse) string {
	t.Helper()
	data, err := json.MarshalIndent(raw, "", "  ")
	require.NoError(t, err, "failed to encode fixture")
	path := filepath.Join(TempDir(t), "licenses.json")
	require.NoError(t, os.WriteFile(path, data, 0o600), "failed to write fixture")
	return path
}

// StaticLookup answers every lookup with the same response and records the references it saw.
type StaticLookup struct {
	Response license.RawResponse

	mu    sync.Mutex
	calls []string
}

// Lookup returns a copy of the configured response.
func (s *StaticLookup) Lookup(ctx context.Context, reference string) license.RawResponse {
	_ = ctx
	s.mu.Lock()
	s.calls = append(s.calls, reference)
	s.mu.Unlock()

	out := make(license.RawResponse, len(s.Response))
	for key, info := range s.Response {
		out[key] = info
	}
	return out
}

// Calls returns the references looked up so far.
func (s *StaticLookup) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// SkipIfShort skips the test if -short flag is provided
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test in short mode")
	}
}

// AssertFileExists checks if a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.NoError(t, err, "file should exist: %s", path)
}

// AssertIDs checks the alert IDs appear in the given order.
func AssertIDs(t *testing.T, alerts []license.Alert, want ...string) {
	t.Helper()
	got := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		got = append(got, alert.ID)
	}
	if len(want) == 0 {
		want = []string{}
	}
	assert.Equal(t, want, got, "alert order mismatch")
}
