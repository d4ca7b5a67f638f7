package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs an HTTP exchange with the service
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	l = orGlobal(l)
	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogArchiveJob logs the terminal state of one archive job
func LogArchiveJob(l Logger, bookmarkID, state string, duration time.Duration, err error) {
	l = orGlobal(l).WithFields(map[string]interface{}{
		"bookmark_id": bookmarkID,
		"state":       state,
		"duration":    duration,
	})

	switch {
	case err != nil:
		l.WithError(err).Error("Archive job failed")
	case state == "skipped-existing":
		l.Debug("Archive job skipped")
	default:
		l.Info("Archive job finished")
	}
}

// LogCrawlProgress logs one index page worth of progress
func LogCrawlProgress(l Logger, username string, page, pageEntries, total int) {
	orGlobal(l).WithFields(map[string]interface{}{
		"username":     username,
		"page":         page,
		"page_entries": pageEntries,
		"total":        total,
	}).Info("Crawled index page")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = orGlobal(l).WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	orGlobal(l).WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs a summary of counters for an operation
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	orGlobal(l).InfoWithFields(fmt.Sprintf("%s summary", operation), fields)
}

// orGlobal falls back to the global logger when l is nil
func orGlobal(l Logger) Logger {
	if l == nil {
		return GetLogger()
	}
	return l
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                    {}
func (n nopLogger) Info(string)                                     {}
func (n nopLogger) Warn(string)                                     {}
func (n nopLogger) Error(string)                                    {}
func (n nopLogger) Fatal(string)                                    {}
func (n nopLogger) WithField(string, interface{}) Logger            { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger        { return n }
func (n nopLogger) WithError(error) Logger                          { return n }
func (n nopLogger) WithContext(context.Context) Logger              { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{})  {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})   {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})   {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{})  {}
func (n nopLogger) FatalWithFields(string, map[string]interface{})  {}
func (n nopLogger) GetZerolog() *zerolog.Logger                     { l := zerolog.Nop(); return &l }
