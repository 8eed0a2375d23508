package ws

import (
	"fmt"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apihttp "github.com/q09sssisiwjb/boltshell/internal/api/http"
	"github.com/q09sssisiwjb/boltshell/internal/infrastructure/monitoring"
	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
	"github.com/q09sssisiwjb/boltshell/internal/shared/id"
	"github.com/q09sssisiwjb/boltshell/internal/shared/types"
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

const (
	pingInterval   = 30 * time.Second
	readDeadline   = 60 * time.Second
	writeDeadline  = 10 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Handler attaches websocket viewers to terminals
type Handler struct {
	manager  *terminal.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. Origins lists the accepted
// Origin headers; "*" or an empty list accepts any.
func NewHandler(manager *terminal.Manager, metrics *monitoring.Metrics, logger *zap.Logger, origins ...string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		manager: manager,
		metrics: metrics,
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(origins) == 0 || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
	return h
}

// Register mounts the attach route
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/terminals/:id/attach", h.HandleAttach)
}

// HandleAttach upgrades the request and streams the terminal until it ends
// or the viewer leaves
func (h *Handler) HandleAttach(c *gin.Context) {
	tid, err := id.ParseTerminalID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error(), Code: "invalid_terminal_id"})
		return
	}

	att, err := h.manager.Attach(tid.String())
	if err != nil {
		status, code := apihttp.StatusFor(err)
		c.JSON(status, types.ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		att.Close()
		h.logger.Warn("WebSocket upgrade failed", zap.String("terminal_id", tid.String()), zap.Error(err))
		return
	}

	s := &session{
		h:      h,
		tid:    tid.String(),
		conn:   conn,
		att:    att,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: h.logger.With(zap.String("terminal_id", tid.String())),
	}
	s.run()
}

// session is one attached viewer
type session struct {
	h      *Handler
	tid    string
	conn   *websocket.Conn
	att    *terminal.Attachment
	send   chan []byte
	done   chan struct{}
	logger *zap.Logger
}

func (s *session) run() {
	if s.h.metrics != nil {
		s.h.metrics.IncWSConnections()
		defer s.h.metrics.DecWSConnections()
	}
	s.logger.Debug("Viewer attached")

	go s.readPump()
	s.writePump()

	s.att.Close()
	s.conn.Close()
	<-s.done
	s.logger.Debug("Viewer detached")
}

// writePump owns every write to the connection
func (s *session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	if len(s.att.Snapshot) > 0 {
		if err := s.write(ServerFrame{Type: FrameOutput, Data: string(s.att.Snapshot)}); err != nil {
			return
		}
	}

	states := s.att.States
	for {
		select {
		case data, ok := <-s.att.Output:
			if !ok {
				s.exit()
				return
			}
			if err := s.write(ServerFrame{Type: FrameOutput, Data: string(data)}); err != nil {
				return
			}

		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			if err := s.write(ServerFrame{Type: FrameState, State: &st}); err != nil {
				return
			}

		case msg := <-s.send:
			if err := s.writeRaw(msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			return
		}
	}
}

// exit reports why the output stream closed. A live terminal means this
// viewer fell too far behind.
func (s *session) exit() {
	frame := ServerFrame{Type: FrameExit}
	select {
	case <-s.att.Done:
		if info, err := s.h.manager.Get(s.tid); err == nil {
			frame.Lifecycle = info.State
			frame.Error = info.Error
		} else {
			frame.Lifecycle = shell.Terminated.String()
		}
	default:
		frame.Type = FrameError
		frame.Error = "viewer fell behind terminal output"
	}

	if err := s.write(frame); err != nil {
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, frame.Type))
}

func (s *session) write(frame ServerFrame) error {
	data, err := sonic.Marshal(frame)
	if err != nil {
		return err
	}
	if s.h.metrics != nil {
		s.h.metrics.RecordWSMessage("out", frame.Type)
	}
	return s.writeRaw(data)
}

func (s *session) writeRaw(data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// queue hands a frame to the writer without blocking the reader
func (s *session) queue(frame ServerFrame) {
	data, err := sonic.Marshal(frame)
	if err != nil {
		return
	}
	if s.h.metrics != nil {
		s.h.metrics.RecordWSMessage("out", frame.Type)
	}
	select {
	case s.send <- data:
	default:
		s.logger.Debug("Dropped frame for slow viewer", zap.String("type", frame.Type))
	}
}

func (s *session) readPump() {
	defer close(s.done)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(readDeadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(readDeadline))

		var frame ClientFrame
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			s.queue(ServerFrame{Type: FrameError, Error: "invalid frame: " + err.Error()})
			continue
		}
		if s.h.metrics != nil {
			s.h.metrics.RecordWSMessage("in", frame.Type)
		}
		if err := s.handle(frame); err != nil {
			s.queue(ServerFrame{Type: FrameError, Error: err.Error()})
		}
	}
}

func (s *session) handle(frame ClientFrame) error {
	switch frame.Type {
	case FrameInput:
		return s.h.manager.Input(s.tid, []byte(frame.Data))
	case FrameResize:
		if frame.Cols <= 0 || frame.Rows <= 0 || frame.Cols > math.MaxUint16 || frame.Rows > math.MaxUint16 {
			return fmt.Errorf("invalid size %dx%d", frame.Cols, frame.Rows)
		}
		return s.h.manager.Resize(s.tid, shell.Size{Cols: frame.Cols, Rows: frame.Rows})
	case FramePing:
		s.queue(ServerFrame{Type: FramePong})
		return nil
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}
