package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	filePrefix         = "licensecheck-"
	fileSuffix         = ".log"
	defaultMaxFiles    = 5
	defaultMaxSizeByte = 10 * 1024 * 1024
)

// Option configures RuntimeLogger creation.
type Option func(*newOptions)

type newOptions struct {
	runID        string
	traceID      string
	spanID       string
	directory    string
	maxFiles     int
	maxSizeBytes int64
	level        log.Level
}

// WithRunID configures the run_id field used in emitted log records.
func WithRunID(runID string) Option {
	return func(opts *newOptions) {
		opts.runID = strings.TrimSpace(runID)
	}
}

// WithTraceID configures the trace_id field used in emitted log records.
func WithTraceID(traceID string) Option {
	return func(opts *newOptions) {
		opts.traceID = strings.TrimSpace(traceID)
	}
}

// WithSpanID configures the span_id field used in emitted log records.
func WithSpanID(spanID string) Option {
	return func(opts *newOptions) {
		opts.spanID = strings.TrimSpace(spanID)
	}
}

// WithDirectory writes log files into dir instead of ~/.licensecheck/logs.
func WithDirectory(dir string) Option {
	return func(opts *newOptions) {
		opts.directory = strings.TrimSpace(dir)
	}
}

// WithMaxFiles bounds how many log files are retained in the log directory.
func WithMaxFiles(n int) Option {
	return func(opts *newOptions) {
		if n > 0 {
			opts.maxFiles = n
		}
	}
}

// WithMaxSizeBytes rotates the active log file once it grows past n bytes.
func WithMaxSizeBytes(n int64) Option {
	return func(opts *newOptions) {
		if n > 0 {
			opts.maxSizeBytes = n
		}
	}
}

// WithLevel sets the minimum level written to the log file.
func WithLevel(level log.Level) Option {
	return func(opts *newOptions) {
		opts.level = level
	}
}

// RuntimeLogger writes structured JSON logs to disk.
type RuntimeLogger struct {
	Logger     *log.Logger
	file       *rotatingFile
	path       string
	baseLogger *log.Logger
	runID      string
	traceID    string
	spanID     string
}

// New initializes logging under ~/.licensecheck/logs without writing to stdout.
// A run_id is generated when none is supplied.
func New(ctx context.Context, options ...Option) (*RuntimeLogger, error) {
	resolved := resolveOptions(options)

	logDir := resolved.directory
	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		logDir = filepath.Join(homeDir, ".licensecheck", "logs")
	}
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	if resolved.runID == "" {
		resolved.runID = uuid.NewString()
	}
	if resolved.traceID == "" && resolved.spanID == "" {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			resolved.traceID = spanCtx.TraceID().String()
			resolved.spanID = spanCtx.SpanID().String()
		}
	}

	// Leave room for the file about to be created.
	if err := Prune(logDir, resolved.maxFiles-1); err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	filePath := filepath.Join(logDir, fmt.Sprintf("%s%s-%s%s", filePrefix, timestamp, resolved.runID, fileSuffix))
	file, err := openRotatingFile(filePath, resolved.maxSizeBytes)
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(file, log.Options{
		Level:           resolved.level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	logger.SetFormatter(log.JSONFormatter)

	runtimeLogger := &RuntimeLogger{
		file:       file,
		path:       filePath,
		baseLogger: logger,
		runID:      resolved.runID,
		traceID:    resolved.traceID,
		spanID:     resolved.spanID,
	}
	runtimeLogger.rebuildLogger()
	runtimeLogger.Logger.With("log_file", filePath).Info("logger initialized")

	return runtimeLogger, nil
}

// WithRunID updates the run_id field for subsequent log records.
func (r *RuntimeLogger) WithRunID(runID string) *RuntimeLogger {
	if r == nil {
		return nil
	}
	r.runID = strings.TrimSpace(runID)
	r.rebuildLogger()
	return r
}

// WithTraceID updates the trace_id field for subsequent log records.
func (r *RuntimeLogger) WithTraceID(traceID string) *RuntimeLogger {
	if r == nil {
		return nil
	}
	r.traceID = strings.TrimSpace(traceID)
	r.rebuildLogger()
	return r
}

// WithSpanID updates the span_id field for subsequent log records.
func (r *RuntimeLogger) WithSpanID(spanID string) *RuntimeLogger {
	if r == nil {
		return nil
	}
	r.spanID = strings.TrimSpace(spanID)
	r.rebuildLogger()
	return r
}

// RunID returns the run identifier attached to every record.
func (r *RuntimeLogger) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Close flushes and closes the log file.
func (r *RuntimeLogger) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	return r.file.Close()
}

// Path returns the current log file path.
func (r *RuntimeLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

func (r *RuntimeLogger) rebuildLogger() {
	if r == nil || r.baseLogger == nil {
		return
	}
	r.Logger = r.baseLogger.With(
		"run_id", r.runID,
		"trace_id", r.traceID,
		"span_id", r.spanID,
	)
}

func resolveOptions(options []Option) newOptions {
	resolved := newOptions{
		maxFiles:     defaultMaxFiles,
		maxSizeBytes: defaultMaxSizeByte,
		level:        log.InfoLevel,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&resolved)
	}
	return resolved
}

// Prune removes the oldest licensecheck log files in dir so at most keep remain.
func Prune(dir string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read log directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) {
			names = append(names, name)
		}
	}
	if len(names) <= keep {
		return nil
	}

	// Timestamped names sort chronologically.
	slices.Sort(names)
	for _, name := range names[:len(names)-keep] {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove old log file %q: %w", path, err)
		}
		_ = os.Remove(path + ".1")
	}
	return nil
}

// rotatingFile moves the active file to <path>.1 when it exceeds maxSize.
type rotatingFile struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	size    int64
	file    *os.File
}

func openRotatingFile(path string, maxSize int64) (*rotatingFile, error) {
	// #nosec G304 -- path is constructed from trusted local paths.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	return &rotatingFile{path: path, maxSize: maxSize, size: info.Size(), file: file}, nil
}

func (f *rotatingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return 0, os.ErrClosed
	}
	if f.maxSize > 0 && f.size > 0 && f.size+int64(len(p)) > f.maxSize {
		if err := f.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := f.file.Write(p)
	f.size += int64(n)
	return n, err
}

func (f *rotatingFile) rotate() error {
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("close log file for rotation: %w", err)
	}
	if err := os.Rename(f.path, f.path+".1"); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	// #nosec G304 -- path is constructed from trusted local paths.
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		f.file = nil
		return fmt.Errorf("reopen log file: %w", err)
	}
	f.file = file
	f.size = 0
	return nil
}

func (f *rotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
