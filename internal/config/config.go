package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/diagkit/licensecheck/internal/license"
)

const (
	defaultTimeout             = 10 * time.Second
	defaultBreakerFailures     = 5
	defaultBreakerOpenTimeout  = 30 * time.Second
	defaultServerAddr          = ":8080"
	defaultProbeInterval       = 30 * time.Second
	defaultLogMaxSizeBytes     = 10 * 1024 * 1024
	defaultLogMaxFiles         = 5
	envEndpoint                = "LICENSECHECK_ENDPOINT"
	envAPIKey                  = "LICENSECHECK_API_KEY"
	envFixture                 = "LICENSECHECK_FIXTURE"
	envOTLPEndpoint            = "OTEL_EXPORTER_OTLP_ENDPOINT"
	configDirName              = ".licensecheck"
	configFileName             = "config.toml"
	redactedPlaceholder        = "<redacted>"
	unsetPlaceholder           = "<unset>"
	defaultLookupSourceFixture = "fixture"
	defaultLookupSourceHTTP    = "http"
)

// Config stores runtime settings loaded from TOML files and the environment.
type Config struct {
	Endpoint        string
	APIKey          string
	Timeout         time.Duration
	FixturePath     string
	Breaker         BreakerConfig
	Urgency         license.Thresholds
	Server          ServerConfig
	Telemetry       TelemetryConfig
	LogMaxSizeBytes int64
	LogMaxFiles     int
}

// BreakerConfig controls the circuit breaker guarding the lookup service.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// ServerConfig controls the HTTP surface started by `serve`.
type ServerConfig struct {
	Addr          string
	ProbeInterval time.Duration
}

// TelemetryConfig controls trace export. Tracing is off while Endpoint is empty.
type TelemetryConfig struct {
	Endpoint string
}

type fileConfig struct {
	Endpoint     *string            `toml:"endpoint"`
	APIKey       *string            `toml:"api_key"`
	Timeout      *string            `toml:"timeout"`
	Fixture      *string            `toml:"fixture"`
	Breaker      *breakerFileConfig `toml:"breaker"`
	Urgency      *urgencyFileConfig `toml:"urgency"`
	Server       *serverFileConfig  `toml:"server"`
	OTel         *otelFileConfig    `toml:"otel"`
	LogMaxSizeMB *int               `toml:"log_max_size_mb"`
	LogMaxFiles  *int               `toml:"log_max_files"`
}

type breakerFileConfig struct {
	ConsecutiveFailures *int    `toml:"consecutive_failures"`
	OpenTimeout         *string `toml:"open_timeout"`
}

type urgencyFileConfig struct {
	WarningDays  *int `toml:"warning_days"`
	CriticalDays *int `toml:"critical_days"`
}

type otelFileConfig struct {
	Endpoint *string `toml:"endpoint"`
}

type serverFileConfig struct {
	Addr          *string `toml:"addr"`
	ProbeInterval *string `toml:"probe_interval"`
}

// Load reads ~/.licensecheck/config.toml, overlays a project-local
// .licensecheck/config.toml, then applies environment overrides.
func Load(ctx context.Context) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	return LoadFiles(
		ctx,
		filepath.Join(homeDir, configDirName, configFileName),
		filepath.Join(workingDir, configDirName, configFileName),
	)
}

// LoadFiles overlays the given files in order onto defaults; missing files are skipped.
func LoadFiles(ctx context.Context, paths ...string) (*Config, error) {
	cfg := defaults()
	for _, path := range paths {
		if err := overlayFromFile(&cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	_ = ctx
	return &cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return defaults()
}

func defaults() Config {
	return Config{
		Timeout: defaultTimeout,
		Breaker: BreakerConfig{
			ConsecutiveFailures: defaultBreakerFailures,
			OpenTimeout:         defaultBreakerOpenTimeout,
		},
		Urgency: license.DefaultThresholds(),
		Server: ServerConfig{
			Addr:          defaultServerAddr,
			ProbeInterval: defaultProbeInterval,
		},
		LogMaxSizeBytes: defaultLogMaxSizeBytes,
		LogMaxFiles:     defaultLogMaxFiles,
	}
}

func overlayFromFile(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config must not be nil")
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config file %q: %w", path, err)
	}

	var decoded fileConfig
	meta, err := toml.DecodeFile(path, &decoded)
	if err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		if len(keys) > 0 {
			return fmt.Errorf("decode config file %q: unsupported keys %s", path, strings.Join(keys, ", "))
		}
	}

	applyLookupOverrides(cfg, decoded)
	if err := applyDurationOverrides(cfg, decoded, path); err != nil {
		return err
	}
	if err := applyBreakerOverrides(cfg, decoded, path); err != nil {
		return err
	}
	if err := applyUrgencyOverrides(cfg, decoded, path); err != nil {
		return err
	}
	if err := applyLogOverrides(cfg, decoded, path); err != nil {
		return err
	}
	return nil
}

func applyLookupOverrides(cfg *Config, decoded fileConfig) {
	if decoded.Endpoint != nil {
		cfg.Endpoint = strings.TrimRight(strings.TrimSpace(*decoded.Endpoint), "/")
	}
	if decoded.APIKey != nil {
		cfg.APIKey = strings.TrimSpace(*decoded.APIKey)
	}
	if decoded.Fixture != nil {
		cfg.FixturePath = strings.TrimSpace(*decoded.Fixture)
	}
	if decoded.Server != nil && decoded.Server.Addr != nil {
		cfg.Server.Addr = strings.TrimSpace(*decoded.Server.Addr)
	}
	if decoded.OTel != nil && decoded.OTel.Endpoint != nil {
		cfg.Telemetry.Endpoint = strings.TrimSpace(*decoded.OTel.Endpoint)
	}
}

func applyDurationOverrides(cfg *Config, decoded fileConfig, path string) error {
	if decoded.Timeout != nil {
		value, err := parseDuration(*decoded.Timeout, "timeout", path)
		if err != nil {
			return err
		}
		cfg.Timeout = value
	}
	if decoded.Server != nil && decoded.Server.ProbeInterval != nil {
		value, err := parseDuration(*decoded.Server.ProbeInterval, "server.probe_interval", path)
		if err != nil {
			return err
		}
		cfg.Server.ProbeInterval = value
	}
	return nil
}

func applyBreakerOverrides(cfg *Config, decoded fileConfig, path string) error {
	if decoded.Breaker == nil {
		return nil
	}
	if decoded.Breaker.ConsecutiveFailures != nil {
		if *decoded.Breaker.ConsecutiveFailures <= 0 {
			return fmt.Errorf("parse breaker.consecutive_failures in %q: must be > 0", path)
		}
		cfg.Breaker.ConsecutiveFailures = uint32(*decoded.Breaker.ConsecutiveFailures)
	}
	if decoded.Breaker.OpenTimeout != nil {
		value, err := parseDuration(*decoded.Breaker.OpenTimeout, "breaker.open_timeout", path)
		if err != nil {
			return err
		}
		cfg.Breaker.OpenTimeout = value
	}
	return nil
}

func applyUrgencyOverrides(cfg *Config, decoded fileConfig, path string) error {
	if decoded.Urgency == nil {
		return nil
	}
	if decoded.Urgency.CriticalDays != nil {
		if *decoded.Urgency.CriticalDays <= 0 {
			return fmt.Errorf("parse urgency.critical_days in %q: must be > 0", path)
		}
		cfg.Urgency.CriticalDays = *decoded.Urgency.CriticalDays
	}
	if decoded.Urgency.WarningDays != nil {
		if *decoded.Urgency.WarningDays <= 0 {
			return fmt.Errorf("parse urgency.warning_days in %q: must be > 0", path)
		}
		cfg.Urgency.WarningDays = *decoded.Urgency.WarningDays
	}
	if cfg.Urgency.WarningDays < cfg.Urgency.CriticalDays {
		return fmt.Errorf("parse urgency in %q: warning_days must be >= critical_days", path)
	}
	return nil
}

func applyLogOverrides(cfg *Config, decoded fileConfig, path string) error {
	if decoded.LogMaxSizeMB != nil {
		if *decoded.LogMaxSizeMB <= 0 {
			return fmt.Errorf("parse log_max_size_mb in %q: must be > 0", path)
		}
		cfg.LogMaxSizeBytes = int64(*decoded.LogMaxSizeMB) * 1024 * 1024
	}
	if decoded.LogMaxFiles != nil {
		if *decoded.LogMaxFiles <= 0 {
			return fmt.Errorf("parse log_max_files in %q: must be > 0", path)
		}
		cfg.LogMaxFiles = *decoded.LogMaxFiles
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv(envEndpoint)); value != "" {
		cfg.Endpoint = strings.TrimRight(value, "/")
	}
	if value := strings.TrimSpace(os.Getenv(envAPIKey)); value != "" {
		cfg.APIKey = value
	}
	if value := strings.TrimSpace(os.Getenv(envFixture)); value != "" {
		cfg.FixturePath = value
	}
	if value := strings.TrimSpace(os.Getenv(envOTLPEndpoint)); value != "" {
		cfg.Telemetry.Endpoint = value
	}
}

func parseDuration(value, key, path string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s in %q: %w", key, path, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("parse %s in %q: must be > 0", key, path)
	}
	return parsed, nil
}

// Validate checks cross-field constraints after all overlays are applied.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config must not be nil")
	}
	if c.Endpoint != "" {
		parsed, err := url.Parse(c.Endpoint)
		if err != nil {
			return fmt.Errorf("parse endpoint %q: %w", c.Endpoint, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("parse endpoint %q: scheme must be http or https", c.Endpoint)
		}
		if parsed.Host == "" {
			return fmt.Errorf("parse endpoint %q: host is required", c.Endpoint)
		}
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	return nil
}

// LookupSource reports which lookup capability the config selects.
// A fixture path wins over an endpoint; neither configured returns "".
func (c *Config) LookupSource() string {
	if c == nil {
		return ""
	}
	if c.FixturePath != "" {
		return defaultLookupSourceFixture
	}
	if c.Endpoint != "" {
		return defaultLookupSourceHTTP
	}
	return ""
}

// Summary returns a printable view of the effective config with secrets masked.
func (c *Config) Summary() map[string]string {
	if c == nil {
		return map[string]string{}
	}
	apiKey := unsetPlaceholder
	if c.APIKey != "" {
		apiKey = redactedPlaceholder
	}
	return map[string]string{
		"endpoint":                     orUnset(c.Endpoint),
		"api_key":                      apiKey,
		"timeout":                      c.Timeout.String(),
		"fixture":                      orUnset(c.FixturePath),
		"breaker.consecutive_failures": fmt.Sprintf("%d", c.Breaker.ConsecutiveFailures),
		"breaker.open_timeout":         c.Breaker.OpenTimeout.String(),
		"urgency.critical_days":        fmt.Sprintf("%d", c.Urgency.CriticalDays),
		"urgency.warning_days":         fmt.Sprintf("%d", c.Urgency.WarningDays),
		"server.addr":                  c.Server.Addr,
		"server.probe_interval":        c.Server.ProbeInterval.String(),
		"otel.endpoint":                orUnset(c.Telemetry.Endpoint),
		"log_max_size_bytes":           fmt.Sprintf("%d", c.LogMaxSizeBytes),
		"log_max_files":                fmt.Sprintf("%d", c.LogMaxFiles),
	}
}

func orUnset(value string) string {
	if strings.TrimSpace(value) == "" {
		return unsetPlaceholder
	}
	return value
}
