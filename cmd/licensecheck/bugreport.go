package main

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/diagkit/licensecheck/internal/config"
	"github.com/spf13/cobra"
)

const (
	bugreportLogLimit = 3
	configDirName     = ".licensecheck"
)

var (
	bugreportNowFn = func() time.Time {
		return time.Now().UTC()
	}
	bugreportHomeDirFn = os.UserHomeDir
	bugreportGetwdFn   = os.Getwd
)

func newBugreportCommand(cfg *config.Config, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "bugreport",
		Short: "Collect logs and a redacted config into a diagnostic bundle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logger != nil {
				logger.With("command", "bugreport").Info("collecting diagnostic bundle")
			}
			return runBugReport(cfg, cmd.OutOrStdout())
		},
	}
}

func runBugReport(cfg *config.Config, out io.Writer) error {
	homeDir, err := bugreportHomeDirFn()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	homeDir = filepath.Clean(homeDir)
	if strings.TrimSpace(homeDir) == "" || homeDir == "." {
		return fmt.Errorf("home directory is not valid")
	}

	cwd, err := bugreportGetwdFn()
	if err != nil {
		return fmt.Errorf("resolve current directory: %w", err)
	}
	cwd = filepath.Clean(cwd)

	timestamp := bugreportNowFn().Format("20060102-150405")
	bundlePath := filepath.Join(cwd, fmt.Sprintf("licensecheck-bugreport-%s.tar.gz", timestamp))

	stagingDir, err := os.MkdirTemp("", "licensecheck-bugreport-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(stagingDir)
	}()

	summary, err := collectBugreportArtifacts(cfg, homeDir, cwd, stagingDir)
	if err != nil {
		return err
	}
	if err := writeBugreportREADME(stagingDir, summary); err != nil {
		return err
	}
	if err := archiveBugreport(stagingDir, bundlePath); err != nil {
		return err
	}

	if out == nil {
		out = os.Stdout
	}
	if _, err := fmt.Fprintf(out, "Bug report written to: %s\n", bundlePath); err != nil {
		return fmt.Errorf("write bugreport output: %w", err)
	}
	return nil
}

type bugreportSummary struct {
	Timestamp string
	Version   string
	LogFiles  []string
	RunID     string
	TraceID   string
	Warnings  []string
}

func collectBugreportArtifacts(cfg *config.Config, homeDir, cwd, stagingDir string) (bugreportSummary, error) {
	summary := bugreportSummary{
		Timestamp: bugreportNowFn().Format(time.RFC3339),
		Version:   Version,
		Warnings:  make([]string, 0),
	}

	logFiles, warnings := copyRecentLogs(homeDir, stagingDir, bugreportLogLimit)
	summary.LogFiles = logFiles
	summary.Warnings = append(summary.Warnings, warnings...)

	summary.RunID, summary.TraceID = extractLastCorrelation(logFiles)
	if summary.RunID == "" && summary.TraceID == "" {
		summary.Warnings = append(summary.Warnings, "no run_id/trace_id found in copied logs")
	}

	if err := writeStagedFile(stagingDir, "last-run.txt", fmt.Sprintf("run_id: %s\ntrace_id: %s\n", summary.RunID, summary.TraceID)); err != nil {
		return bugreportSummary{}, err
	}
	if err := writeStagedFile(stagingDir, "version.txt", fmt.Sprintf("licensecheck version: %s\n", strings.TrimSpace(summary.Version))); err != nil {
		return bugreportSummary{}, err
	}
	if err := writeEffectiveConfig(cfg, stagingDir); err != nil {
		return bugreportSummary{}, err
	}

	configSources := map[string]string{
		"config-home.toml":    filepath.Join(homeDir, configDirName, "config.toml"),
		"config-project.toml": filepath.Join(cwd, configDirName, "config.toml"),
	}
	for _, name := range []string{"config-home.toml", "config-project.toml"} {
		if err := copyRedactedConfig(configSources[name], stagingDir, name, &summary); err != nil {
			return bugreportSummary{}, err
		}
	}
	return summary, nil
}

func copyRecentLogs(homeDir, stagingDir string, limit int) ([]string, []string) {
	logsDir := filepath.Join(homeDir, configDirName, "logs")
	files, err := newestFiles(logsDir, limit)
	if err != nil {
		return nil, []string{fmt.Sprintf("unable to read logs directory: %v", err)}
	}

	destDir := filepath.Join(stagingDir, "logs")
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, []string{fmt.Sprintf("unable to create logs staging directory: %v", err)}
	}

	warnings := make([]string, 0)
	copiedPaths := make([]string, 0, len(files))
	for _, file := range files {
		// #nosec G304 -- source path comes from ~/.licensecheck/logs enumeration.
		data, readErr := os.ReadFile(file.path)
		if readErr != nil {
			warnings = append(warnings, fmt.Sprintf("unable to read log %s: %v", file.path, readErr))
			continue
		}
		if writeErr := os.WriteFile(filepath.Join(destDir, filepath.Base(file.path)), data, 0o600); writeErr != nil {
			warnings = append(warnings, fmt.Sprintf("unable to stage log %s: %v", file.path, writeErr))
			continue
		}
		copiedPaths = append(copiedPaths, file.path)
	}
	return copiedPaths, warnings
}

// extractLastCorrelation returns the last run_id/trace_id pair found, newest log first.
func extractLastCorrelation(logPaths []string) (string, string) {
	for _, logPath := range logPaths {
		// #nosec G304 -- log paths are selected from ~/.licensecheck/logs.
		data, err := os.ReadFile(logPath)
		if err != nil {
			continue
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			line := strings.TrimSpace(lines[i])
			if line == "" {
				continue
			}
			record := map[string]any{}
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				continue
			}
			runID := asString(record["run_id"])
			traceID := asString(record["trace_id"])
			if runID == "" && traceID == "" {
				continue
			}
			return runID, traceID
		}
	}
	return "", ""
}

func writeEffectiveConfig(cfg *config.Config, stagingDir string) error {
	data, err := json.MarshalIndent(cfg.Summary(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode effective config: %w", err)
	}
	return writeStagedFile(stagingDir, "config-effective.json", string(data)+"\n")
}

func copyRedactedConfig(source, stagingDir, name string, summary *bugreportSummary) error {
	// #nosec G304 -- config paths are fixed locations under home and the working directory.
	data, err := os.ReadFile(source)
	if err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("unable to read %s: %v", source, err))
		data = []byte("# config unavailable\n")
	}
	return writeStagedFile(stagingDir, name, redactSensitiveConfig(string(data)))
}

// redactSensitiveConfig masks the value of every TOML key that looks like a secret.
func redactSensitiveConfig(configText string) string {
	lines := strings.Split(configText, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "[") {
			continue
		}
		key, _, found := strings.Cut(line, "=")
		if !found || !isSensitiveToken(strings.ToLower(strings.TrimSpace(key))) {
			continue
		}
		lines[i] = key + `= "***REDACTED***"`
	}
	return strings.Join(lines, "\n")
}

func writeStagedFile(stagingDir, name, content string) error {
	if err := os.WriteFile(filepath.Join(stagingDir, name), []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func writeBugreportREADME(stagingDir string, summary bugreportSummary) error {
	builder := strings.Builder{}
	builder.WriteString("licensecheck bug report\n")
	builder.WriteString("=======================\n\n")
	builder.WriteString(fmt.Sprintf("Generated: %s\n", summary.Timestamp))
	builder.WriteString(fmt.Sprintf("Version: %s\n", summary.Version))
	builder.WriteString(fmt.Sprintf("run_id: %s\n", summary.RunID))
	builder.WriteString(fmt.Sprintf("trace_id: %s\n\n", summary.TraceID))
	builder.WriteString("Included artifacts:\n")
	builder.WriteString(fmt.Sprintf("- logs/ (up to last %d log files)\n", bugreportLogLimit))
	builder.WriteString("- config-effective.json (api key masked)\n")
	builder.WriteString("- config-home.toml, config-project.toml (redacted)\n")
	builder.WriteString("- version.txt\n")
	builder.WriteString("- last-run.txt\n")
	if len(summary.Warnings) > 0 {
		builder.WriteString("\nWarnings:\n")
		for _, warning := range summary.Warnings {
			builder.WriteString("- " + warning + "\n")
		}
	}
	return writeStagedFile(stagingDir, "README.txt", builder.String())
}

func archiveBugreport(stagingDir, destination string) (err error) {
	// #nosec G304 -- destination is generated in the working directory with a fixed name pattern.
	archiveFile, err := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", destination, err)
	}
	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)
	defer func() {
		for _, closer := range []io.Closer{tarWriter, gzipWriter, archiveFile} {
			if closeErr := closer.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close archive: %w", closeErr)
			}
		}
	}()

	walkErr := filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("read file info for %s: %w", path, err)
		}
		relPath, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return fmt.Errorf("compute archive path for %s: %w", path, err)
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("create tar header for %s: %w", path, err)
		}
		header.Name = filepath.ToSlash(relPath)
		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("write tar header for %s: %w", path, err)
		}

		// #nosec G304 -- walk paths originate from the staging directory.
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s for archive: %w", path, err)
		}
		defer file.Close()
		if _, err := io.Copy(tarWriter, file); err != nil {
			return fmt.Errorf("copy %s into archive: %w", path, err)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("archive bugreport: %w", walkErr)
	}
	return nil
}

type datedFile struct {
	path    string
	modTime time.Time
}

func newestFiles(dir string, limit int) ([]datedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]datedFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, datedFile{path: filepath.Join(dir, entry.Name()), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func asString(value any) string {
	if typed, ok := value.(string); ok {
		return strings.TrimSpace(typed)
	}
	return ""
}
