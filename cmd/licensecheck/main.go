package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/diagkit/licensecheck/internal/config"
	"github.com/diagkit/licensecheck/internal/logging"
	"github.com/diagkit/licensecheck/internal/telemetry"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// errReported marks failures whose details were already written to the output.
var errReported = errors.New("failure already reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(
		ctx,
		logging.WithMaxFiles(cfg.LogMaxFiles),
		logging.WithMaxSizeBytes(cfg.LogMaxSizeBytes),
	)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close logger: %v\n", closeErr)
		}
	}()
	logger.Logger.With("command", resolveCommandName(args), "args", redactArgs(args)).Debug("command invocation")

	cmd, shutdownTracing := newRootCommand(ctx, cfg, logger.Logger)
	defer shutdownTracing()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// initTracingFn is replaced in tests.
var initTracingFn = telemetry.Init

// newRootCommand builds the command tree. The returned func flushes tracing and
// must run whether or not the command succeeded.
func newRootCommand(ctx context.Context, cfg *config.Config, logger *log.Logger) (*cobra.Command, func()) {
	var (
		otelEndpoint    string
		endpointFlag    string
		fixtureFlag     string
		shutdownTracing = func() {}
	)

	root := &cobra.Command{
		Use:           "licensecheck",
		Short:         "Check license expiry for a customer account",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.PersistentFlags().StringVar(&endpointFlag, "endpoint", "", "license service base URL (overrides config)")
	root.PersistentFlags().StringVar(&fixtureFlag, "fixture", "", "serve lookups from a JSON or YAML file instead of the service")
	root.PersistentFlags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP HTTP endpoint; enables tracing")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		if logger == nil {
			return errors.New("logger is required")
		}
		if cfg == nil {
			return errors.New("config is required")
		}
		if err := applyFlagOverrides(cfg, endpointFlag, fixtureFlag); err != nil {
			return err
		}
		if endpoint := tracingEndpoint(otelEndpoint, cfg); endpoint != "" {
			shutdown, err := initTracingFn(cmd.Context(), telemetry.Settings{Endpoint: endpoint, ServiceVersion: Version})
			if err != nil {
				return fmt.Errorf("initialize tracing: %w", err)
			}
			shutdownTracing = shutdown
		}
		logger.With("command", cmd.Name(), "source", cfg.LookupSource()).Debug("command start")
		return nil
	}

	root.AddCommand(
		newCheckCommand(cfg, logger),
		newTUICommand(cfg, logger),
		newServeCommand(cfg, logger),
		newDoctorCommand(cfg, logger),
		newBugreportCommand(cfg, logger),
		newVersionCommand(),
	)

	_ = ctx
	return root, func() { shutdownTracing() }
}

func applyFlagOverrides(cfg *config.Config, endpoint, fixture string) error {
	if endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if fixture = strings.TrimSpace(fixture); fixture != "" {
		cfg.FixturePath = fixture
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// tracingEndpoint prefers the --otel-endpoint flag over the configured
// endpoint. Empty means tracing stays off.
func tracingEndpoint(flagValue string, cfg *config.Config) string {
	if endpoint := strings.TrimSpace(flagValue); endpoint != "" {
		return endpoint
	}
	return strings.TrimSpace(cfg.Telemetry.Endpoint)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the licensecheck version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "licensecheck %s\n", Version)
			return err
		},
	}
}

// resolveCommandName returns the first non-flag argument, or "root".
func resolveCommandName(args []string) string {
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return arg
	}
	return "root"
}

func redactArgs(args []string) []string {
	redacted := make([]string, 0, len(args))
	maskNext := false

	for _, arg := range args {
		if maskNext {
			redacted = append(redacted, "<redacted>")
			maskNext = false
			continue
		}

		trimmed := strings.TrimSpace(arg)
		if name, _, found := strings.Cut(trimmed, "="); found && isSensitiveToken(strings.ToLower(name)) {
			redacted = append(redacted, name+"=<redacted>")
			continue
		}
		if isSensitiveToken(strings.ToLower(trimmed)) {
			maskNext = true
		}
		redacted = append(redacted, trimmed)
	}
	return redacted
}

func isSensitiveToken(value string) bool {
	for _, candidate := range []string{"token", "password", "passwd", "secret", "api-key", "api_key", "apikey", "auth", "bearer"} {
		if strings.Contains(value, candidate) {
			return true
		}
	}
	return false
}
