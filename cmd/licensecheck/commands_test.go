package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diagkit/licensecheck/internal/config"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/lookup"
)

const fixtureJSON = `{
  "L1": {"name": "Suite", "expiryDate": "2026-11-30", "daysRemaining": 43, "seats": 10},
  "L2": {"name": "Legacy", "expiryDate": "2026-10-01", "daysRemaining": -17},
  "L3": {"name": "Viewer", "daysRemaining": 6, "isTrial": true}
}`

func snapshotTerminalHooks(t *testing.T) {
	t.Helper()

	prevStdin := stdinIsTerminalFn
	prevStdout := stdoutIsTerminalFn
	prevPrompt := promptSubmissionFn
	stdinIsTerminalFn = func() bool { return false }
	stdoutIsTerminalFn = func() bool { return false }
	t.Cleanup(func() {
		stdinIsTerminalFn = prevStdin
		stdoutIsTerminalFn = prevStdout
		promptSubmissionFn = prevPrompt
	})
}

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "licenses.json")
	if err := os.WriteFile(path, []byte(fixtureJSON), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg := testConfig()
	cfg.FixturePath = path
	return cfg
}

func TestCheckCommandPrintsRankedText(t *testing.T) {
	snapshotTerminalHooks(t)

	output, err := executeRoot(t, fixtureConfig(t), "check", "--company", "Contoso", "--reference", "XSP1234567")
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, output)
	}
	for _, want := range []string{"Licenses for Contoso (XSP1234567)", "Viewer", "Suite", "Expired (1)", "3 total · 2 active · 1 expired"} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q\n%s", want, output)
		}
	}
	if strings.Index(output, "Viewer") > strings.Index(output, "Suite") {
		t.Fatalf("Viewer (6 days) should be listed before Suite (43 days)\n%s", output)
	}
	if strings.Contains(output, "Legacy") {
		t.Fatalf("expired alerts should be collapsed by default\n%s", output)
	}
}

func TestCheckCommandJSONWithPositionalArgs(t *testing.T) {
	snapshotTerminalHooks(t)

	output, err := executeRoot(t, fixtureConfig(t), "check", "Contoso", "XSP1234567", "--format", "json", "--show-expired")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var doc struct {
		Active          []license.Alert `json:"active"`
		Expired         []license.Alert `json:"expired"`
		ExpiredExpanded bool            `json:"expiredExpanded"`
	}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("decode json: %v\n%s", err, output)
	}
	if len(doc.Active) != 2 || doc.Active[0].ID != "L3" || doc.Active[1].ID != "L1" {
		t.Fatalf("unexpected active group: %+v", doc.Active)
	}
	if len(doc.Expired) != 1 || doc.Expired[0].ID != "L2" {
		t.Fatalf("unexpected expired group: %+v", doc.Expired)
	}
	if !doc.ExpiredExpanded {
		t.Fatal("--show-expired should expand the expired group")
	}
}

func TestCheckCommandValidationFailure(t *testing.T) {
	snapshotTerminalHooks(t)

	output, err := executeRoot(t, fixtureConfig(t), "check", "--company", "Contoso", "--reference", "XSP12")
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	if !strings.Contains(output, license.MessageReferenceFormat) {
		t.Fatalf("output missing validation message\n%s", output)
	}
}

func TestCheckCommandPromptsOnTerminal(t *testing.T) {
	snapshotTerminalHooks(t)
	stdinIsTerminalFn = func() bool { return true }
	prompted := false
	promptSubmissionFn = func(company, reference *string) error {
		prompted = true
		*company = "Contoso"
		*reference = "XSP1234567"
		return nil
	}

	output, err := executeRoot(t, fixtureConfig(t), "check")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !prompted {
		t.Fatal("expected an interactive prompt for missing fields")
	}
	if !strings.Contains(output, "Licenses for Contoso (XSP1234567)") {
		t.Fatalf("unexpected output\n%s", output)
	}
}

func TestCheckCommandRequiresSource(t *testing.T) {
	snapshotTerminalHooks(t)

	_, err := executeRoot(t, testConfig(), "check", "Contoso", "XSP1234567")
	if !errors.Is(err, errNoSource) {
		t.Fatalf("err = %v, want errNoSource", err)
	}
}

func TestCheckCommandRejectsUnknownFormat(t *testing.T) {
	snapshotTerminalHooks(t)

	_, err := executeRoot(t, fixtureConfig(t), "check", "Contoso", "XSP1234567", "--format", "csv")
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestDoctorCommand(t *testing.T) {
	snapshotTerminalHooks(t)

	output, err := executeRoot(t, fixtureConfig(t), "doctor")
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, output)
	}
	for _, want := range []string{"Configuration", "Checks", "Probe", "fixture", "reachable"} {
		if !strings.Contains(output, want) {
			t.Fatalf("doctor output missing %q\n%s", want, output)
		}
	}

	output, err = executeRoot(t, testConfig(), "doctor", "--json")
	if !errors.Is(err, errReported) {
		t.Fatalf("doctor without a source should fail, got %v", err)
	}
	var result doctorResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("decode doctor json: %v\n%s", err, output)
	}
	if result.Probe != nil {
		t.Fatalf("no probe expected without a source: %+v", result.Probe)
	}
	if result.Config["api_key"] != "<unset>" {
		t.Fatalf("config summary api_key = %q", result.Config["api_key"])
	}
}

func TestBuildLookuperSelectsSource(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Endpoint = "https://licenses.example.com"
	source, err := buildLookuper(cfg, testLogger())
	if err != nil {
		t.Fatalf("build fixture lookuper: %v", err)
	}
	if _, ok := source.(*lookup.Fixture); !ok {
		t.Fatalf("fixture should win over endpoint, got %T", source)
	}

	cfg.FixturePath = ""
	source, err = buildLookuper(cfg, testLogger())
	if err != nil {
		t.Fatalf("build http lookuper: %v", err)
	}
	client, ok := source.(*lookup.HTTPClient)
	if !ok {
		t.Fatalf("expected *lookup.HTTPClient, got %T", source)
	}
	if client.BreakerState() != "closed" {
		t.Fatalf("breaker state = %q, want closed", client.BreakerState())
	}
}
