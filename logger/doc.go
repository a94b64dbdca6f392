// Package logger provides structured logging for the relay using zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers. Fields are passed as maps so call sites read the
// same everywhere:
//
//	log := logger.WithComponent("ingest")
//	log.Info("Producer connected", map[string]interface{}{"peer": addr})
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
package logger
