/*
Package monitoring provides Prometheus metrics for the server.

# Overview

Metrics tracks HTTP requests, terminal lifecycles, shell command outcomes and
websocket viewers. Each Metrics owns a private registry, so tests and
embedded servers can create as many as they need.

Metrics implements the shell controller's recorder, so controllers report
ready waits, command outcomes, stale command takeovers, stalled reads and
lost processes directly.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	manager := terminal.NewManager(cfg, terminal.WithRecorder(metrics))

	timer := monitoring.NewTimer(metrics, "terminal", "terminal.execute")
	// ... perform operation ...
	timer.Stop("success")
*/
package monitoring
