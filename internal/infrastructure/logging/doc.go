// Package logging provides structured logging for the Gray Logic node.
//
// It wraps log/slog so every record carries the same default attributes
// (service, version, boot_id) regardless of which component emitted it.
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
//	logger := logging.New(cfg.Logging, version, bootID)
//	guard := link.NewGuard(radio, opts, link.WithLogger(logger.With("component", "link")))
//
// Field diagnosis relies on the attempt, backoff_ms, ssid, broker and topic
// attributes emitted by the core packages. Never log Wi-Fi or broker
// passwords.
package logging
