package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/diagkit/licensecheck/internal/config"
	"github.com/diagkit/licensecheck/internal/doctor"
	"github.com/diagkit/licensecheck/internal/events"
	"github.com/diagkit/licensecheck/internal/lookup"
	"github.com/diagkit/licensecheck/internal/report"
	"github.com/diagkit/licensecheck/internal/server"
	"github.com/diagkit/licensecheck/internal/state"
	"github.com/diagkit/licensecheck/internal/tui"
	"github.com/diagkit/licensecheck/internal/tui/theme"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

const styledReportWidth = 100

var (
	stdinIsTerminalFn  = func() bool { return term.IsTerminal(os.Stdin.Fd()) }
	stdoutIsTerminalFn = func() bool { return term.IsTerminal(os.Stdout.Fd()) }
	promptSubmissionFn = promptSubmission
)

// errNoSource is returned when neither an endpoint nor a fixture is configured.
var errNoSource = errors.New("no license source configured; set endpoint (LICENSECHECK_ENDPOINT) or fixture (LICENSECHECK_FIXTURE)")

func newCheckCommand(cfg *config.Config, logger *log.Logger) *cobra.Command {
	var (
		company     string
		reference   string
		format      string
		showExpired bool
	)

	cmd := &cobra.Command{
		Use:   "check [company] [reference]",
		Short: "Look up licenses for an account and print them by urgency",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && company == "" {
				company = args[0]
			}
			if len(args) > 1 && reference == "" {
				reference = args[1]
			}

			outputFormat, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			if (strings.TrimSpace(company) == "" || reference == "") && stdinIsTerminalFn() {
				if err := promptSubmissionFn(&company, &reference); err != nil {
					return fmt.Errorf("prompt for account: %w", err)
				}
			}

			controller, err := newController(cfg, logger)
			if err != nil {
				return err
			}
			view, err := controller.Check(cmd.Context(), company, reference)
			if err != nil {
				return fmt.Errorf("check licenses: %w", err)
			}

			options := report.Options{
				ShowExpired: showExpired,
				Thresholds:  cfg.Urgency,
				Styled:      outputFormat == report.FormatMarkdown && stdoutIsTerminalFn(),
				Width:       styledReportWidth,
			}
			if err := report.Render(cmd.OutOrStdout(), view, outputFormat, options); err != nil {
				return fmt.Errorf("render report: %w", err)
			}
			if view.Error != "" {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&company, "company", "", "company name on the account")
	cmd.Flags().StringVar(&reference, "reference", "", "account reference, e.g. XSP1234567")
	cmd.Flags().StringVarP(&format, "format", "f", string(report.FormatText), "output format: text, json, yaml or markdown")
	cmd.Flags().BoolVar(&showExpired, "show-expired", false, "list expired licenses instead of only counting them")
	return cmd
}

func newTUICommand(cfg *config.Config, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive license checker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			controller, err := newController(cfg, logger)
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), controller, tui.WithThresholds(cfg.Urgency))
		},
	}
}

func newServeCommand(cfg *config.Config, logger *log.Logger) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve license checks, health and metrics over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(addr) == "" {
				addr = cfg.Server.Addr
			}
			return runServe(cmd.Context(), cfg, logger, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *log.Logger, addr string) error {
	source, err := buildLookuper(cfg, logger)
	if err != nil {
		return err
	}

	bus := events.New(events.WithLogger(logger.StandardLog()))
	defer bus.Close()
	bus.SubscribeAll(func(event events.Event) {
		logger.Debug("event", "type", event.Type, "entity", event.EntityID, "severity", event.Severity)
	})

	metrics := server.NewMetrics()
	adapter := lookup.NewAdapter(
		source,
		lookup.WithLogger(logger),
		lookup.WithEventBus(bus),
		lookup.WithObserver(metrics.ObserveLookup),
	)

	var health server.HealthSource
	if prober, ok := source.(lookup.Prober); ok {
		manager, err := doctor.NewManager(prober, bus, doctor.Config{
			ProbeInterval: cfg.Server.ProbeInterval,
			Endpoint:      cfg.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("start health checks: %w", err)
		}
		go manager.Start(ctx)
		health = manager
	}

	srv, err := server.New(
		adapter,
		server.WithMetrics(metrics),
		server.WithHealth(health),
		server.WithLogger(logger),
		server.WithTracer(otel.Tracer("licensecheck/server")),
		server.WithThresholds(cfg.Urgency),
	)
	if err != nil {
		return err
	}
	return srv.Run(ctx, addr)
}

func newDoctorCommand(cfg *config.Config, logger *log.Logger) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and probe the license source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result := runDoctor(cmd.Context(), cfg, logger)
			if err := writeDoctorResult(cmd.OutOrStdout(), result, asJSON); err != nil {
				return err
			}
			if !result.Healthy() {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

type doctorResult struct {
	Config   map[string]string    `json:"config"`
	Findings []doctor.Finding     `json:"findings"`
	Probe    *doctor.HealthReport `json:"probe,omitempty"`
}

func (r doctorResult) Healthy() bool {
	if doctor.Worst(r.Findings) == doctor.LevelError {
		return false
	}
	return r.Probe == nil || r.Probe.Reachable
}

func runDoctor(ctx context.Context, cfg *config.Config, logger *log.Logger) doctorResult {
	result := doctorResult{
		Config:   cfg.Summary(),
		Findings: doctor.CheckConfig(cfg),
	}

	source, err := buildLookuper(cfg, logger)
	if err != nil {
		return result
	}
	prober, ok := source.(lookup.Prober)
	if !ok {
		return result
	}

	bus := events.New(events.WithLogger(logger.StandardLog()))
	defer bus.Close()
	manager, err := doctor.NewManager(prober, bus, doctor.Config{Endpoint: cfg.Endpoint})
	if err != nil {
		result.Findings = append(result.Findings, doctor.Finding{Check: "probe", Level: doctor.LevelError, Message: err.Error()})
		return result
	}
	probe := manager.RunOnce(ctx)
	result.Probe = &probe
	return result
}

func writeDoctorResult(out io.Writer, result doctorResult, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	var b strings.Builder
	b.WriteString(theme.HeadingStyle.Render("Configuration"))
	b.WriteString("\n")
	keys := make([]string, 0, len(result.Config))
	for key := range result.Config {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, "  %-30s %s\n", key, result.Config[key])
	}

	b.WriteString("\n")
	b.WriteString(theme.HeadingStyle.Render("Checks"))
	b.WriteString("\n")
	for _, finding := range result.Findings {
		fmt.Fprintf(&b, "  %s %-9s %s\n", findingBadge(finding.Level), finding.Check, finding.Message)
	}

	if result.Probe != nil {
		probe := result.Probe
		b.WriteString("\n")
		b.WriteString(theme.HeadingStyle.Render("Probe"))
		b.WriteString("\n")
		level := doctor.LevelOK
		status := "reachable"
		if !probe.Reachable {
			level = doctor.LevelError
			status = "unreachable: " + probe.Error
		}
		fmt.Fprintf(&b, "  %s %s %s (%dms)\n", findingBadge(level), probe.Source, status, probe.LatencyMS)
		if probe.BreakerState != "" {
			fmt.Fprintf(&b, "  breaker %s\n", probe.BreakerState)
		}
		fmt.Fprintf(&b, "  checked %s\n", probe.CheckedAt.Format(time.RFC3339))
	}

	_, err := io.WriteString(out, b.String())
	return err
}

func findingBadge(level string) string {
	switch level {
	case doctor.LevelError:
		return lipgloss.NewStyle().Foreground(theme.CrimsonColor).Render(theme.IconExpired)
	case doctor.LevelWarn:
		return lipgloss.NewStyle().Foreground(theme.LemonColor).Render(theme.IconWarning)
	default:
		return lipgloss.NewStyle().Foreground(theme.MintColor).Render(theme.IconOK)
	}
}

// buildLookuper selects the lookup capability from config; a fixture wins over an endpoint.
func buildLookuper(cfg *config.Config, logger *log.Logger) (lookup.Lookuper, error) {
	switch cfg.LookupSource() {
	case "fixture":
		return lookup.NewFixture(cfg.FixturePath, lookup.WithFixtureLogger(logger))
	case "http":
		return lookup.NewHTTPClient(
			cfg.Endpoint,
			lookup.WithAPIKey(cfg.APIKey),
			lookup.WithHTTPLogger(logger),
			lookup.WithTimeout(cfg.Timeout),
			lookup.WithBreaker(cfg.Breaker.ConsecutiveFailures, cfg.Breaker.OpenTimeout),
			lookup.WithBreakerListener(func(from, to string) {
				logger.Warn("circuit breaker state changed", "from", from, "to", to)
			}),
		)
	default:
		return nil, errNoSource
	}
}

func newController(cfg *config.Config, logger *log.Logger) (*state.Controller, error) {
	source, err := buildLookuper(cfg, logger)
	if err != nil {
		return nil, err
	}
	return state.NewController(lookup.NewAdapter(source, lookup.WithLogger(logger)), state.WithLogger(logger))
}

func promptSubmission(company, reference *string) error {
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Company").
			Placeholder("Company name").
			Value(company),
		huh.NewInput().
			Title("Reference").
			Placeholder("XSP1234567").
			CharLimit(10).
			Value(reference),
	)).WithShowHelp(false)
	if err := form.Run(); err != nil {
		return err
	}
	*reference = strings.ToUpper(strings.TrimSpace(*reference))
	return nil
}
