// Package middleware provides the gin middleware of the boltshell API.
//
// Middleware stack:
//   - RequestID: X-Request-ID propagation
//   - AccessLog: one zap entry per request
//   - CORS: cross-origin resource sharing with configured origins
//   - RateLimit: per-IP token bucket with idle client eviction
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.AccessLog(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
