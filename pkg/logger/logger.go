package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields type is an alias for logrus.Fields
type Fields = logrus.Fields

// Logger is a wrapper around logrus.Logger
type Logger struct {
	*logrus.Logger
	module string
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Config for the logger
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Init initializes the global logger with the provided configuration
func Init(config Config) error {
	l, err := New(config, os.Stderr)
	if err != nil {
		return err
	}
	globalMu.Lock()
	globalLogger = &Logger{Logger: l}
	globalMu.Unlock()

	globalLogger.WithFields(Fields{
		"level":  l.GetLevel().String(),
		"format": config.Format,
		"file":   config.File,
	}).Debug("logger initialized")
	return nil
}

// New builds a logrus logger writing to out and, when config.File is set, to a rotated file.
func New(config Config, out io.Writer) (*logrus.Logger, error) {
	levelName := config.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	l := logrus.New()
	l.SetLevel(level)

	switch config.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			CallerPrettyfier: callerPrettyfier,
			TimestampFormat:  "2006-01-02 15:04:05",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			CallerPrettyfier:       callerPrettyfier,
			DisableSorting:         true,
			DisableLevelTruncation: true,
			PadLevelText:           true,
			TimestampFormat:        "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("invalid log format %q, must be 'text' or 'json'", config.Format)
	}

	outputs := []io.Writer{out}
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory for %s: %w", config.File, err)
		}
		outputs = append(outputs, &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSize,
			MaxAge:     config.MaxAge,
			MaxBackups: config.MaxBackups,
			Compress:   config.Compress,
		})
	}
	if len(outputs) > 1 {
		l.SetOutput(io.MultiWriter(outputs...))
	} else {
		l.SetOutput(outputs[0])
	}

	l.SetReportCaller(level >= logrus.DebugLevel)
	return l, nil
}

// callerPrettyfier reports the first frame outside logrus and this package
func callerPrettyfier(f *runtime.Frame) (string, string) {
	pcs := make([]uintptr, 15)
	n := runtime.Callers(4, pcs)
	if n == 0 {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "pkg/logger") &&
			!strings.Contains(frame.File, "sirupsen/logrus") {
			return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		}
		if !more {
			break
		}
	}
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}

// NewLogger creates a logger tagged with module. Before Init it writes warnings to stderr.
func NewLogger(module string) *Logger {
	globalMu.RLock()
	g := globalLogger
	globalMu.RUnlock()

	if g == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(logrus.WarnLevel)
		return &Logger{Logger: l, module: module}
	}
	return &Logger{Logger: g.Logger, module: module}
}

// WithFields adds fields plus the module tag
func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	if l.module != "" {
		if fields == nil {
			fields = Fields{}
		}
		fields["module"] = l.module
	}
	return l.Logger.WithFields(fields)
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.WithFields(Fields{"error": err})
}

// Debugf logs a formatted message at the debug level
func (l *Logger) Debugf(format string, args ...any) {
	l.WithFields(nil).Debugf(format, args...)
}

// Tracef logs a formatted message at the trace level
func (l *Logger) Tracef(format string, args ...any) {
	l.WithFields(nil).Tracef(format, args...)
}

// Infof logs a formatted message at the info level
func (l *Logger) Infof(format string, args ...any) {
	l.WithFields(nil).Infof(format, args...)
}

// Warnf logs a formatted message at the warn level
func (l *Logger) Warnf(format string, args ...any) {
	l.WithFields(nil).Warnf(format, args...)
}

// Errorf logs a formatted message at the error level
func (l *Logger) Errorf(format string, args ...any) {
	l.WithFields(nil).Errorf(format, args...)
}
