// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"router":      "debug",  // Per-module overrides
//			"interceptor": "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("router").With("client_id", id)
//	logger.Info("Client connected")  // Includes client_id in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs and builds one
// handler per destination:
//
//	Stdout available  → TextHandler or JSONHandler
//	Journal available → JournalHandler
//	Always            → BufferHandler (in-memory ring buffer)
//
// Two or more handlers are combined with a MultiHandler.
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t rkvm              # All rkvm logs
//	journalctl -t rkvm -f           # Follow live
//	journalctl -t rkvm --since "5m" # Last 5 minutes
//	journalctl -t rkvm -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t rkvm MODULE=router
//	journalctl -t rkvm CLIENT_ID=test
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration, as read by rkvm-server and rkvm-client
// (their configuration carries the global level and format only;
// per-module levels are set through Config.Modules):
//
//	[logging]
//	level = "info"
//	format = "text"
package logging
