// Package logger provides structured logging for pinback on top of zerolog.
//
// A global logger is configured once from the logging section of the config:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("username", username).Info("Crawl started")
//
// Components that need an isolated logger accept a Logger value; tests pass
// NewTestLogger() and assert on the captured messages.
//
// Passwords and cookie values must never be passed as fields.
package logger
