// Package logger provides structured logging for geotrie
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with geotrie-specific functionality
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	// Set global log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Pretty printing for development
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	// Create logger
	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "geotrie").
		Logger()

	// Add caller information if requested
	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// HTTPLogger returns a logger for HTTP handler operations
func (l *Logger) HTTPLogger(route string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "http").
			Str("route", route).
			Logger(),
	}
}

// IndexLogger returns a logger for index operations
func (l *Logger) IndexLogger(operation string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "index").
			Str("operation", operation).
			Logger(),
	}
}

// LogHTTPRequest logs a completed HTTP request with structured fields
func (l *Logger) LogHTTPRequest(method, path string, status int, duration time.Duration) {
	event := l.zlog.Info()
	if status >= 500 {
		event = l.zlog.Error()
	}
	event.
		Str("component", "http").
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration_ms", duration).
		Msg("HTTP request completed")
}

// LogQuery logs a proximity query with structured fields
func (l *Logger) LogQuery(cells, prefixes, matches, unique int, duration time.Duration, err error) {
	event := l.zlog.Debug().
		Str("component", "query").
		Int("covering_cells", cells).
		Int("prefixes", prefixes).
		Int("matches", matches).
		Int("unique", unique).
		Dur("duration_ms", duration)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "query").
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("Proximity query completed")
}

// LogIndexBuild logs an index build with structured fields
func (l *Logger) LogIndexBuild(system string, level, records int, duration time.Duration) {
	l.zlog.Info().
		Str("component", "index").
		Str("grid_system", system).
		Int("index_level", level).
		Int("records", records).
		Dur("duration_ms", duration).
		Msg("Index build completed")
}

// LogDatasetLoad logs a dataset load
func (l *Logger) LogDatasetLoad(path string, points int, duration time.Duration) {
	l.zlog.Info().
		Str("component", "dataset").
		Str("path", path).
		Int("points", points).
		Dur("duration_ms", duration).
		Msg("Dataset loaded")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(addr, system string) {
	l.zlog.Info().
		Str("event", "server_start").
		Str("addr", addr).
		Str("grid_system", system).
		Msg("geotrie server starting")
}

// LogServerReady logs when server is ready
func (l *Logger) LogServerReady(addr string) {
	l.zlog.Info().
		Str("event", "server_ready").
		Str("addr", addr).
		Msg("geotrie server ready to accept connections")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("geotrie server shutting down")
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		// Initialize with defaults if not set
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
