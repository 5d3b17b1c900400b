// Package logging provides structured logging for the Homey bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the bridge.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Per-adapter child loggers (component, adapter_id)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	hubLog := logger.ForAdapter("homey-living")
//	hubLog.Info("connecting", "address", "192.168.1.40")
//
// # Security
//
// Never log hub tokens or broker passwords.
package logging
