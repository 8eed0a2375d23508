package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Terminal metrics
	TerminalsActive prometheus.Gauge
	TerminalsTotal  prometheus.Counter

	// Shell controller metrics
	CommandsTotal    *prometheus.CounterVec
	CommandDuration  prometheus.Histogram
	StaleCommands    prometheus.Counter
	StreamReadStalls prometheus.Counter
	ReadyWait        *prometheus.HistogramVec
	ProcessLost      prometheus.Counter

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON health endpoint
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	ActiveTerminals int64   `json:"active_terminals"`
	Commands        int64   `json:"commands"`
	CommandTimeouts int64   `json:"command_timeouts"`
	AvgRequestMS    float64 `json:"avg_request_ms"`
	UptimeSeconds   float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boltshell_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boltshell_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 60, 600},
			},
			[]string{"method", "path"},
		),

		// Terminal metrics
		TerminalsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "boltshell_terminals_active",
				Help: "Number of live terminals",
			},
		),
		TerminalsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "boltshell_terminals_total",
				Help: "Total number of terminals created",
			},
		),

		// Shell controller metrics
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boltshell_commands_total",
				Help: "Total number of executed commands by outcome",
			},
			[]string{"status"},
		),
		CommandDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "boltshell_command_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		StaleCommands: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "boltshell_stale_commands_total",
				Help: "Commands that took over from a previous command that never finished",
			},
		),
		StreamReadStalls: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "boltshell_stream_read_stalls_total",
				Help: "Shell output reads that hit the per-read timeout and were retried",
			},
		),
		ReadyWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boltshell_ready_wait_seconds",
				Help:    "Time from spawn until the shell reported it is interactive",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		ProcessLost: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "boltshell_process_lost_total",
				Help: "Shell processes whose output ended unexpectedly",
			},
		),

		// Service metrics
		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boltshell_service_calls_total",
				Help: "Total number of service tool calls",
			},
			[]string{"service", "tool", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boltshell_service_duration_seconds",
				Help:    "Service tool call duration in seconds",
				Buckets: []float64{.001, .01, .1, 1, 10, 60, 600},
			},
			[]string{"service", "tool"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "boltshell_ws_connections",
				Help: "Number of attached websocket viewers",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boltshell_ws_messages_total",
				Help: "Total number of websocket frames",
			},
			[]string{"direction", "type"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "boltshell_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records a service tool call
func (m *Metrics) RecordServiceCall(service, tool, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, tool, status).Inc()
	m.ServiceDuration.WithLabelValues(service, tool).Observe(duration.Seconds())
}

// RecordWSMessage records a websocket frame
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments websocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements websocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// TerminalOpened counts a new live terminal
func (m *Metrics) TerminalOpened() {
	m.TerminalsActive.Inc()
	m.TerminalsTotal.Inc()
	m.mu.Lock()
	m.snapshot.ActiveTerminals++
	m.mu.Unlock()
}

// TerminalClosed counts a terminal that ended
func (m *Metrics) TerminalClosed() {
	m.TerminalsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveTerminals--
	m.mu.Unlock()
}

// ObserveReadyWait records how long a shell took to become interactive
func (m *Metrics) ObserveReadyWait(d time.Duration, ok bool) {
	outcome := "ready"
	if !ok {
		outcome = "failed"
	}
	m.ReadyWait.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveCommand records a finished command
func (m *Metrics) ObserveCommand(status string, d time.Duration) {
	m.CommandsTotal.WithLabelValues(status).Inc()
	m.CommandDuration.Observe(d.Seconds())

	m.mu.Lock()
	m.snapshot.Commands++
	if status == "timeout" {
		m.snapshot.CommandTimeouts++
	}
	m.mu.Unlock()
}

// IncStaleCommand counts a stale previous command takeover
func (m *Metrics) IncStaleCommand() {
	m.StaleCommands.Inc()
}

// IncStreamReadStall counts a retried output read
func (m *Metrics) IncStreamReadStall() {
	m.StreamReadStalls.Inc()
}

// IncProcessLost counts a shell process that died
func (m *Metrics) IncProcessLost() {
	m.ProcessLost.Inc()
}

// Snapshot returns the current summary values
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AvgRequestMS = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
