// Package logging provides structured logging for pbexport.
//
// It wraps log/slog with default attributes (service, version). Log output
// goes to stderr unless configured otherwise, because stdout carries the
// per-PV completion lines read by the batch driver.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stderr, stdout
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Warn("skipping corrupt sample", "pv", pv, "error", err)
package logging
