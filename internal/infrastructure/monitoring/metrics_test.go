package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
)

var _ terminal.Recorder = (*Metrics)(nil)

func TestInstancesAreIndependent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.IncProcessLost()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ProcessLost))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ProcessLost))
}

func TestShellRecorder(t *testing.T) {
	m := NewMetrics()

	m.TerminalOpened()
	m.TerminalOpened()
	m.TerminalClosed()
	m.ObserveCommand("success", 20*time.Millisecond)
	m.ObserveCommand("timeout", time.Second)
	m.IncStaleCommand()
	m.IncStreamReadStall()
	m.ObserveReadyWait(time.Second, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TerminalsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TerminalsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleCommands))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamReadStalls))

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.ActiveTerminals)
	assert.Equal(t, int64(2), snap.Commands)
	assert.Equal(t, int64(1), snap.CommandTimeouts)
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/terminals/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/terminals/term_abc", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/terminals/:id", "404")))
	assert.Equal(t, int64(1), m.Snapshot().TotalErrors)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "boltshell_http_requests_total"))
	assert.True(t, strings.Contains(body, "boltshell_uptime_seconds"))
}

func TestTimer(t *testing.T) {
	m := NewMetrics()
	timer := NewTimer(m, "terminal", "terminal.execute")
	timer.Stop("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServiceCalls.WithLabelValues("terminal", "terminal.execute", "success")))
}
