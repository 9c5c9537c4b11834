// Package logging provides structured JSON logging for habisnooze.
// It wraps zerolog and rotates log files with lumberjack.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents a log level.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level written.
	Level Level

	// JSON selects JSON console output; file output is always JSON.
	JSON bool

	// FilePath enables a rotated log file when set.
	FilePath string

	// MaxSize is the size in megabytes that triggers rotation.
	MaxSize int

	// MaxBackups is how many rotated files are kept.
	MaxBackups int

	// MaxAge is how many days rotated files are kept.
	MaxAge int

	// Compress gzips rotated files.
	Compress bool

	// Console also writes to stderr when a file is configured.
	Console bool
}

// DefaultConfig returns the defaults: info level JSON on stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		JSON:       true,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     7,
		Compress:   true,
	}
}

// Logger carries a zerolog logger plus the run context attached to it.
type Logger struct {
	zl      zerolog.Logger
	runID   string
	command string
}

var (
	globalLogger *Logger
	loggerMu     sync.RWMutex
)

// New returns a JSON logger writing to w. Tests use it to capture output.
func New(w io.Writer, level Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Build creates a logger from cfg without touching the global one.
func Build(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var writers []io.Writer

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	if cfg.Console || cfg.FilePath == "" {
		if cfg.JSON {
			writers = append(writers, os.Stderr)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
			})
		}
	}

	var output io.Writer
	if len(writers) == 1 {
		output = writers[0]
	} else {
		output = zerolog.MultiLevelWriter(writers...)
	}

	return New(output, cfg.Level), nil
}

// Init builds a logger from cfg and installs it as the global logger.
func Init(cfg *Config) error {
	l, err := Build(cfg)
	if err != nil {
		return err
	}
	loggerMu.Lock()
	globalLogger = l
	loggerMu.Unlock()
	return nil
}

// Get returns the global logger, creating a default one on first use.
func Get() *Logger {
	loggerMu.RLock()
	l := globalLogger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if globalLogger == nil {
		globalLogger, _ = Build(nil)
	}
	return globalLogger
}

func (l *Logger) derive(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl, runID: l.runID, command: l.command}
}

// WithCommand returns a logger tagged with the CLI command.
func (l *Logger) WithCommand(command string) *Logger {
	out := l.derive(l.zl.With().Str("command", command).Logger())
	out.command = command
	return out
}

// WithRunID returns a logger tagged with a cron run id.
func (l *Logger) WithRunID(runID string) *Logger {
	out := l.derive(l.zl.With().Str("run_id", runID).Logger())
	out.runID = runID
	return out
}

// WithTask returns a logger tagged with a task's id and text.
func (l *Logger) WithTask(id, text string) *Logger {
	return l.derive(l.zl.With().Str("task_id", id).Str("task_text", text).Logger())
}

// WithField returns a logger with one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(l.zl.With().Interface(key, value).Logger())
}

// WithFields returns a logger with extra fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return l.derive(ctx.Logger())
}

// WithError returns a logger with the error field set.
func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.zl.With().Err(err).Logger())
}

// RunID returns the run id attached with WithRunID.
func (l *Logger) RunID() string {
	return l.runID
}

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.zl.Debug().Msgf(format, args...) }

func (l *Logger) Info(msg string) { l.zl.Info().Msg(msg) }

func (l *Logger) Infof(format string, args ...interface{}) { l.zl.Info().Msgf(format, args...) }

func (l *Logger) Warn(msg string) { l.zl.Warn().Msg(msg) }

func (l *Logger) Warnf(format string, args ...interface{}) { l.zl.Warn().Msgf(format, args...) }

func (l *Logger) Error(msg string) { l.zl.Error().Msg(msg) }

func (l *Logger) Errorf(format string, args ...interface{}) { l.zl.Error().Msgf(format, args...) }

// Event returns a zerolog event for callers that need typed fields.
func (l *Logger) Event(level Level) *zerolog.Event {
	return l.zl.WithLevel(level)
}

// ParseLevel parses a level name such as "debug".
func ParseLevel(level string) (Level, error) {
	return zerolog.ParseLevel(level)
}

// WithCommand returns the global logger tagged with command.
func WithCommand(command string) *Logger {
	return Get().WithCommand(command)
}

// Settings is the logging section of the application config, in plain
// types so the config package does not import zerolog.
type Settings struct {
	Level      string
	FilePath   string
	JSON       bool
	Console    bool
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// ConfigFromSettings converts Settings into a Config, keeping defaults for
// zero values.
func ConfigFromSettings(s Settings) (*Config, error) {
	cfg := DefaultConfig()

	if s.Level != "" {
		level, err := ParseLevel(s.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = level
	}

	cfg.FilePath = s.FilePath
	cfg.JSON = s.JSON
	cfg.Console = s.Console
	cfg.Compress = s.Compress

	if s.MaxSize > 0 {
		cfg.MaxSize = s.MaxSize
	}
	if s.MaxBackups > 0 {
		cfg.MaxBackups = s.MaxBackups
	}
	if s.MaxAge > 0 {
		cfg.MaxAge = s.MaxAge
	}

	return cfg, nil
}
