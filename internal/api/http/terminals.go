package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
	"github.com/q09sssisiwjb/boltshell/internal/shared/id"
	"github.com/q09sssisiwjb/boltshell/internal/shared/types"
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// terminalID validates the :id path parameter
func (h *Handlers) terminalID(c *gin.Context) (string, bool) {
	tid, err := id.ParseTerminalID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error(), Code: "invalid_terminal_id"})
		return "", false
	}
	return tid.String(), true
}

// CreateTerminal spawns a shell and waits until it is interactive
func (h *Handlers) CreateTerminal(c *gin.Context) {
	var req types.CreateTerminalRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	info, err := h.manager.Create(c.Request.Context(), terminal.CreateOptions{
		Command:    req.Command,
		Args:       req.Args,
		WorkingDir: req.WorkingDir,
		Env:        req.Env,
		Cols:       req.Cols,
		Rows:       req.Rows,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, info)
}

// ListTerminals lists all hosted terminals
func (h *Handlers) ListTerminals(c *gin.Context) {
	terminals := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"terminals": terminals,
		"count":     len(terminals),
	})
}

// GetTerminal returns one terminal
func (h *Handlers) GetTerminal(c *gin.Context) {
	tid, ok := h.terminalID(c)
	if !ok {
		return
	}

	info, err := h.manager.Get(tid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// KillTerminal terminates a terminal
func (h *Handlers) KillTerminal(c *gin.Context) {
	tid, ok := h.terminalID(c)
	if !ok {
		return
	}

	if err := h.manager.Kill(tid); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"terminal_id": tid,
	})
}

// Exec runs one command line and returns its output and exit code
func (h *Handlers) Exec(c *gin.Context) {
	tid, ok := h.terminalID(c)
	if !ok {
		return
	}

	var req types.ExecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if req.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	res, err := h.manager.Execute(ctx, tid, req.SessionID, req.Command)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, types.ExecResponse{
		Output:   res.Output,
		ExitCode: res.ExitCode,
		Plain:    res.Plain(),
	})
}

// State reports whether a command is running
func (h *Handlers) State(c *gin.Context) {
	tid, ok := h.terminalID(c)
	if !ok {
		return
	}

	st, err := h.manager.State(tid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Input types keystrokes into a terminal
func (h *Handlers) Input(c *gin.Context) {
	tid, ok := h.terminalID(c)
	if !ok {
		return
	}

	var req types.InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.manager.Input(tid, []byte(req.Data)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Resize changes terminal dimensions
func (h *Handlers) Resize(c *gin.Context) {
	tid, ok := h.terminalID(c)
	if !ok {
		return
	}

	var req types.ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.manager.Resize(tid, shell.Size{Cols: req.Cols, Rows: req.Rows}); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Output drains display output not read before
func (h *Handlers) Output(c *gin.Context) {
	tid, ok := h.terminalID(c)
	if !ok {
		return
	}

	output, err := h.manager.Output(tid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"output": string(output),
		"length": len(output),
	})
}

// Transcript returns the scrollback as plain text, gzipped when accepted
func (h *Handlers) Transcript(c *gin.Context) {
	tid, ok := h.terminalID(c)
	if !ok {
		return
	}

	transcript, err := h.manager.Transcript(tid)
	if err != nil {
		h.fail(c, err)
		return
	}

	const contentType = "text/plain; charset=utf-8"
	if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
		c.Data(http.StatusOK, contentType, transcript)
		return
	}

	c.Header("Content-Encoding", "gzip")
	c.Header("Vary", "Accept-Encoding")
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)

	gz := gzip.NewWriter(c.Writer)
	if _, err := gz.Write(transcript); err != nil {
		h.logger.Warn("Transcript write failed", zap.String("terminal_id", tid), zap.Error(err))
	}
	if err := gz.Close(); err != nil {
		h.logger.Warn("Transcript flush failed", zap.String("terminal_id", tid), zap.Error(err))
	}
}
