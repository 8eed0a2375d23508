package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q09sssisiwjb/boltshell/internal/infrastructure/monitoring"
	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal/terminaltest"
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

type testEnv struct {
	server  *httptest.Server
	manager *terminal.Manager
	spawner *terminaltest.Spawner
	metrics *monitoring.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sp := &terminaltest.Spawner{}
	metrics := monitoring.NewMetrics()
	m := terminal.NewManager(terminaltest.Config(), sp.Option())

	router := gin.New()
	NewHandler(m, metrics, nil).Register(router)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		m.Close()
		srv.Close()
	})
	return &testEnv{server: srv, manager: m, spawner: sp, metrics: metrics}
}

func (e *testEnv) create(t *testing.T) string {
	t.Helper()
	info, err := e.manager.Create(context.Background(), terminal.CreateOptions{})
	require.NoError(t, err)
	return info.ID
}

func (e *testEnv) dial(t *testing.T, tid string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/terminals/" + tid + "/attach"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func readFrame(t *testing.T, conn *websocket.Conn) ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame ServerFrame
	require.NoError(t, sonic.Unmarshal(data, &frame))
	return frame
}

// readUntil reads frames until match accepts one
func readUntil(t *testing.T, conn *websocket.Conn, match func(ServerFrame) bool) ServerFrame {
	t.Helper()
	for i := 0; i < 100; i++ {
		if f := readFrame(t, conn); match(f) {
			return f
		}
	}
	t.Fatal("expected frame never arrived")
	return ServerFrame{}
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame ClientFrame) {
	t.Helper()
	data, err := sonic.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestAttachStreamsOutputAndState(t *testing.T) {
	env := newTestEnv(t)
	tid := env.create(t)

	conn, _, err := env.dial(t, tid)
	require.NoError(t, err)

	readUntil(t, conn, func(f ServerFrame) bool {
		return f.Type == FrameOutput && strings.Contains(f.Data, "welcome")
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.WSConnections))

	done := make(chan *shell.ExecutionResult, 1)
	go func() {
		res, _ := env.manager.Execute(context.Background(), tid, "viewer", "echo hi")
		done <- res
	}()

	readUntil(t, conn, func(f ServerFrame) bool {
		return f.Type == FrameOutput && strings.Contains(f.Data, "echo hi")
	})
	idle := readUntil(t, conn, func(f ServerFrame) bool {
		return f.Type == FrameState && !f.State.Active && f.State.SessionID == "viewer"
	})
	assert.Nil(t, idle.State.Pending)

	res := <-done
	require.NotNil(t, res)
	assert.Equal(t, 0, res.ExitCode)
}

func TestAttachReportsPendingCommand(t *testing.T) {
	env := newTestEnv(t)
	tid := env.create(t)

	conn, _, err := env.dial(t, tid)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := env.manager.Execute(context.Background(), tid, "viewer", "hang")
		done <- err
	}()

	busy := readUntil(t, conn, func(f ServerFrame) bool {
		return f.Type == FrameState && f.State.Active
	})
	require.NotNil(t, busy.State.Pending)
	assert.Equal(t, "hang", busy.State.Pending.Command)
	assert.Equal(t, "viewer", busy.State.SessionID)

	require.NoError(t, env.manager.Kill(tid))
	assert.ErrorIs(t, <-done, shell.ErrTerminated)
}

func TestAttachInputResizePing(t *testing.T) {
	env := newTestEnv(t)
	tid := env.create(t)
	sh := env.spawner.Last()

	conn, _, err := env.dial(t, tid)
	require.NoError(t, err)

	sendFrame(t, conn, ClientFrame{Type: FramePing})
	readUntil(t, conn, func(f ServerFrame) bool { return f.Type == FramePong })

	sendFrame(t, conn, ClientFrame{Type: FrameResize, Cols: 132, Rows: 50})
	assert.Eventually(t, func() bool {
		sizes := sh.Sizes()
		return len(sizes) == 1 && sizes[0] == shell.Size{Cols: 132, Rows: 50}
	}, 2*time.Second, 10*time.Millisecond)

	// Keystrokes pass once the display has seen the shell go ready
	input, err := sonic.Marshal(ClientFrame{Type: FrameInput, Data: "pwd\n"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		if err := conn.WriteMessage(websocket.TextMessage, input); err != nil {
			return false
		}
		time.Sleep(10 * time.Millisecond)
		return strings.Contains(sh.Typed(), "pwd\n")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAttachRejectsBadFrames(t *testing.T) {
	env := newTestEnv(t)
	tid := env.create(t)

	conn, _, err := env.dial(t, tid)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	f := readUntil(t, conn, func(f ServerFrame) bool { return f.Type == FrameError })
	assert.Contains(t, f.Error, "invalid frame")

	sendFrame(t, conn, ClientFrame{Type: "teleport"})
	f = readUntil(t, conn, func(f ServerFrame) bool { return f.Type == FrameError })
	assert.Contains(t, f.Error, "teleport")

	sendFrame(t, conn, ClientFrame{Type: FrameResize})
	f = readUntil(t, conn, func(f ServerFrame) bool { return f.Type == FrameError })
	assert.Contains(t, f.Error, "invalid size")

	sendFrame(t, conn, ClientFrame{Type: FrameResize, Cols: 70000, Rows: 24})
	f = readUntil(t, conn, func(f ServerFrame) bool { return f.Type == FrameError })
	assert.Contains(t, f.Error, "invalid size 70000x24")
}

func TestAttachExitOnKill(t *testing.T) {
	env := newTestEnv(t)
	tid := env.create(t)

	conn, _, err := env.dial(t, tid)
	require.NoError(t, err)
	readUntil(t, conn, func(f ServerFrame) bool { return f.Type == FrameOutput })

	require.NoError(t, env.manager.Kill(tid))

	f := readUntil(t, conn, func(f ServerFrame) bool { return f.Type == FrameExit })
	assert.Equal(t, "terminated", f.Lifecycle)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(env.metrics.WSConnections) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAttachUnknownTerminal(t *testing.T) {
	env := newTestEnv(t)

	_, resp, err := env.dial(t, "term_01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = env.dial(t, "nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
