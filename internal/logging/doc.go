// Package logging provides structured logging for the homecam daemon.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used across the device: connectivity transitions, listener
// lifecycle, HTTP requests on the control plane and multipart framing.
//
// # Log Levels
//
//   - Debug: frame timing averages, multipart header dumps, radio polling
//   - Info: state transitions, servers started/stopped, endpoint calls
//   - Warn: frame acquisition failures, association retries
//   - Error: stop failures, upstream FrameSource failures
//
// # Configuration
//
// Initialize logging at daemon startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is passed and HOMECAM_LOG_LEVEL is unset the logger is a
// no-op, so CLI subcommands stay quiet by default.
//
// Long-lived components take a named child logger:
//
//	log := logging.Named("gateway")
//	log.Info("FrameSource bound", zap.String("addr", addr))
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. SetLogger may be called
// at any time; callers that cached a child logger keep the old one.
package logging
