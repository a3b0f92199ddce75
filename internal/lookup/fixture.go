package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/diagkit/licensecheck/internal/license"
	"gopkg.in/yaml.v3"
)

// Fixture serves a license map from a local JSON or YAML file. The file is
// re-read on every submission so edits show up without a restart.
type Fixture struct {
	path   string
	logger *log.Logger
}

// FixtureOption customizes a Fixture.
type FixtureOption func(*Fixture)

// WithFixtureLogger receives warnings about unreadable fields in the file.
func WithFixtureLogger(logger *log.Logger) FixtureOption {
	return func(f *Fixture) {
		f.logger = logger
	}
}

// NewFixture returns a fixture source for path.
func NewFixture(path string, options ...FixtureOption) (*Fixture, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("fixture path must not be empty")
	}
	f := &Fixture{path: trimmed}
	for _, option := range options {
		if option != nil {
			option(f)
		}
	}
	return f, nil
}

// Name identifies this source in spans and metrics.
func (f *Fixture) Name() string {
	return "fixture"
}

// Path returns the fixture file path.
func (f *Fixture) Path() string {
	if f == nil {
		return ""
	}
	return f.path
}

// Submit ignores the reference and returns the fixture contents.
func (f *Fixture) Submit(ctx context.Context, reference string) (license.RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_ = reference

	// #nosec G304 -- fixture path is operator configuration.
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %q: %w", f.path, err)
	}
	raw, issues, err := decodeFixture(f.path, data)
	if err != nil {
		return nil, err
	}
	logDecodeIssues(f.logger, f.Name(), issues)
	return raw, nil
}

// Probe checks the fixture file is readable.
func (f *Fixture) Probe(ctx context.Context) error {
	_ = ctx
	if _, err := os.Stat(f.path); err != nil {
		return fmt.Errorf("stat fixture %q: %w", f.path, err)
	}
	return nil
}

// decodeFixture converts YAML to JSON first so both formats share the
// per-record decoding of DecodeResponse.
func decodeFixture(path string, data []byte) (license.RawResponse, []DecodeIssue, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var records map[string]any
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, nil, fmt.Errorf("decode fixture %q: %w", path, err)
		}
		converted, err := json.Marshal(records)
		if err != nil {
			return nil, nil, fmt.Errorf("decode fixture %q: %w", path, err)
		}
		data = converted
	}

	raw, issues, err := DecodeResponse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode fixture %q: %w", path, err)
	}
	return raw, issues, nil
}
