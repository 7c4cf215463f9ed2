// file: internal/middleware/structured_logger.go
package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig holds configuration for structured logging middleware
type LoggingConfig struct {
	SlowRequestThreshold time.Duration `json:"slow_request_threshold"`
	VerySlowThreshold    time.Duration `json:"very_slow_threshold"`
	SkipPaths            []string      `json:"skip_paths"`
}

// DefaultLoggingConfig returns production-ready logging configuration
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SlowRequestThreshold: 1 * time.Second,
		// evaluate-all can legitimately take a while
		VerySlowThreshold: 30 * time.Second,
		SkipPaths:         []string{"/health", "/metrics"},
	}
}

// StructuredLogging logs one line per completed request at a level derived
// from the status code and duration
func StructuredLogging(logger *zap.Logger, config *LoggingConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultLoggingConfig()
	}
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := GetRequestStart(r.Context())
			writer := &StructuredResponseWriter{ResponseWriter: w}

			next.ServeHTTP(writer, r)

			logCompletedRequest(GetRequestLogger(r.Context()), r, writer, start, config)
		})
	}
}

// ===============================
// STRUCTURED RESPONSE WRITER
// ===============================

// StructuredResponseWriter captures status and size for logging
type StructuredResponseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

func (w *StructuredResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *StructuredResponseWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	written, err := w.ResponseWriter.Write(data)
	w.bytesWritten += int64(written)
	return written, err
}

func (w *StructuredResponseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Status returns the HTTP status code
func (w *StructuredResponseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func logCompletedRequest(logger *zap.Logger, r *http.Request, w *StructuredResponseWriter, start time.Time, config *LoggingConfig) {
	duration := time.Since(start)

	fields := []zap.Field{
		zap.Int("status", w.Status()),
		zap.Duration("duration", duration),
		zap.Int64("response_size", w.bytesWritten),
	}
	if r.URL.RawQuery != "" {
		fields = append(fields, zap.String("query", r.URL.RawQuery))
	}
	if duration > config.SlowRequestThreshold {
		fields = append(fields, zap.Bool("slow", true))
	}

	switch getLogLevel(w.Status(), duration, config) {
	case zapcore.ErrorLevel:
		logger.Error("HTTP request completed with error", fields...)
	case zapcore.WarnLevel:
		logger.Warn("HTTP request completed with warning", fields...)
	default:
		logger.Info("HTTP request completed", fields...)
	}
}

// getLogLevel determines appropriate log level based on status and duration
func getLogLevel(status int, duration time.Duration, config *LoggingConfig) zapcore.Level {
	if status >= 500 {
		return zapcore.ErrorLevel
	}
	if status >= 400 || duration > config.VerySlowThreshold {
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}
