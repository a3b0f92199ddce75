package doctor

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/diagkit/licensecheck/internal/config"
)

// Finding levels.
const (
	LevelOK    = "ok"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Finding is one static configuration check result.
type Finding struct {
	Check   string `json:"check"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// CheckConfig inspects the effective configuration without touching the network.
func CheckConfig(cfg *config.Config) []Finding {
	if cfg == nil {
		return []Finding{{Check: "config", Level: LevelError, Message: "configuration was not loaded"}}
	}

	findings := make([]Finding, 0, 4)
	switch cfg.LookupSource() {
	case "":
		findings = append(findings, Finding{
			Check:   "source",
			Level:   LevelError,
			Message: "no license source configured; set endpoint or fixture",
		})
	case "fixture":
		findings = append(findings, checkFixture(cfg.FixturePath))
		if cfg.Endpoint != "" {
			findings = append(findings, Finding{
				Check:   "source",
				Level:   LevelWarn,
				Message: "fixture is set, so endpoint " + cfg.Endpoint + " is ignored",
			})
		}
	case "http":
		findings = append(findings, checkEndpoint(cfg.Endpoint))
		if strings.TrimSpace(cfg.APIKey) == "" {
			findings = append(findings, Finding{Check: "api_key", Level: LevelWarn, Message: "api_key is not set; requests are sent without the apikey header"})
		} else {
			findings = append(findings, Finding{Check: "api_key", Level: LevelOK, Message: "api_key is set"})
		}
	}

	findings = append(findings, Finding{
		Check:   "urgency",
		Level:   LevelOK,
		Message: fmt.Sprintf("critical <= %d days, warning <= %d days", cfg.Urgency.CriticalDays, cfg.Urgency.WarningDays),
	})
	return findings
}

// Worst returns the most severe level among findings.
func Worst(findings []Finding) string {
	worst := LevelOK
	for _, finding := range findings {
		switch finding.Level {
		case LevelError:
			return LevelError
		case LevelWarn:
			worst = LevelWarn
		}
	}
	return worst
}

func checkFixture(path string) Finding {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Finding{Check: "fixture", Level: LevelError, Message: fmt.Sprintf("fixture %q does not exist", path)}
	case err != nil:
		return Finding{Check: "fixture", Level: LevelError, Message: fmt.Sprintf("stat fixture %q: %v", path, err)}
	case info.IsDir():
		return Finding{Check: "fixture", Level: LevelError, Message: fmt.Sprintf("fixture %q is a directory", path)}
	default:
		return Finding{Check: "fixture", Level: LevelOK, Message: fmt.Sprintf("fixture %q is readable", path)}
	}
}

func checkEndpoint(endpoint string) Finding {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return Finding{Check: "endpoint", Level: LevelError, Message: fmt.Sprintf("parse endpoint: %v", err)}
	}
	if parsed.Scheme == "http" && !isLoopback(parsed.Hostname()) {
		return Finding{Check: "endpoint", Level: LevelWarn, Message: "endpoint uses plain http; the api key is sent unencrypted"}
	}
	return Finding{Check: "endpoint", Level: LevelOK, Message: "endpoint " + endpoint}
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
