package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes how the process logger is built. Outputs accepts
// "stdout", "stderr" or a file path; an empty list means stdout.
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	Audit       AuditConfig
}

// AuditConfig enables a separate JSON stream for swap and access audit
// records, rotated by size through lumberjack.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

const redacted = "[REDACTED]"

// sensitiveSuffixes mark attribute keys whose values never reach a sink.
var sensitiveSuffixes = []string{"private_key", "secret", "api_key", "access_token", "authorization", "password"}

type state struct {
	main    *slog.Logger
	audit   *slog.Logger
	closers []io.Closer
	lazy    bool
}

var (
	mu      sync.Mutex
	current *state
)

// Init builds the process-wide loggers. A second Init is rejected; the
// stdout fallback created by an earlier L call is replaced.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	if current != nil && !current.lazy {
		return errors.New("logger already initialised")
	}
	s, err := build(cfg)
	if err != nil {
		return err
	}
	current = s
	return nil
}

func build(cfg Config) (*state, error) {
	s := &state{}
	sink, err := s.openSinks(cfg.OutputPaths)
	if err != nil {
		s.close()
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: true, ReplaceAttr: redact}
	if strings.EqualFold(cfg.Format, "text") {
		s.main = slog.New(slog.NewTextHandler(sink, opts))
	} else {
		s.main = slog.New(slog.NewJSONHandler(sink, opts))
	}

	s.audit = s.main
	if cfg.Audit.Enabled {
		w, err := auditWriter(cfg.Audit)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, w)
		s.audit = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo, ReplaceAttr: redact}))
	}
	return s, nil
}

func (s *state) openSinks(paths []string) (io.Writer, error) {
	if len(paths) == 0 {
		return os.Stdout, nil
	}
	writers := make([]io.Writer, 0, len(paths))
	for _, p := range paths {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "", "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
			f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", p, err)
			}
			s.closers = append(s.closers, f)
			writers = append(writers, f)
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func (s *state) close() error {
	var err error
	for _, c := range s.closers {
		err = errors.Join(err, c.Close())
	}
	s.closers = nil
	return err
}

func auditWriter(cfg AuditConfig) (*lumberjack.Logger, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("audit log path cannot be empty when enabled")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    positiveOr(cfg.MaxSizeMB, 100),
		MaxBackups: positiveOr(cfg.MaxBackups, 7),
		MaxAge:     positiveOr(cfg.MaxAgeDays, 30),
		Compress:   cfg.Compress,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// redact masks attributes whose key names a credential.
func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	key := strings.ToLower(a.Key)
	for _, s := range sensitiveSuffixes {
		if strings.HasSuffix(key, s) {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err == nil {
		return l
	}
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func loaded() *state {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		s, err := build(Config{})
		if err != nil {
			s = &state{main: slog.Default(), audit: slog.Default()}
		}
		s.lazy = true
		current = s
	}
	return current
}

// L returns the process logger, building a stdout JSON logger on first use
// when Init was never called.
func L() *slog.Logger { return loaded().main }

// Audit returns the audit logger. Without an audit path it is the process
// logger.
func Audit() *slog.Logger { return loaded().audit }

// Named tags the process logger with a component attribute.
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}

// Sync closes file and rotating sinks. Loggers keep working against
// stdout-only configurations afterwards.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil
	}
	return current.close()
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}
