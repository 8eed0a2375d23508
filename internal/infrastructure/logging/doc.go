// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Production loggers sample repeated entries, and the level can be changed at
// runtime with SetLevel.
//
// Components receive a *zap.Logger and default to zap.NewNop(), so only the
// binary decides where logs go.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	defer logger.Sync()
//	logger.Info("Server starting", zap.String("addr", ":8000"))
//	ctrlLogger := logger.Component("shell")
package logging
