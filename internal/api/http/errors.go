package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
	"github.com/q09sssisiwjb/boltshell/internal/service"
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// StatusFor maps an error to its HTTP status and machine readable code
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, terminal.ErrNotFound):
		return http.StatusNotFound, "terminal_not_found"
	case errors.Is(err, service.ErrServiceNotFound), errors.Is(err, service.ErrToolNotFound):
		return http.StatusNotFound, "tool_not_found"
	case errors.Is(err, service.ErrInvalidToolID):
		return http.StatusBadRequest, "invalid_tool_id"
	case errors.Is(err, shell.ErrStalePreviousCommand):
		return http.StatusRequestTimeout, "command_abandoned"
	case errors.Is(err, shell.ErrCommandTimeout):
		return http.StatusRequestTimeout, "command_timeout"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "request_cancelled"
	case errors.Is(err, shell.ErrAlreadyInitialized):
		return http.StatusConflict, "already_initialized"
	case errors.Is(err, shell.ErrNotInitialized):
		return http.StatusConflict, "not_initialized"
	case errors.Is(err, terminal.ErrInputUnavailable):
		return http.StatusConflict, "input_unavailable"
	case errors.Is(err, shell.ErrTerminated), errors.Is(err, shell.ErrProcessLost):
		return http.StatusGone, "terminated"
	case errors.Is(err, shell.ErrSpawnFailed):
		return http.StatusBadGateway, "spawn_failed"
	case errors.Is(err, shell.ErrReadyTimeout):
		return http.StatusGatewayTimeout, "ready_timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// fail writes err as a JSON error body. Command timeouts carry the output
// captured before the wait was abandoned.
func (h *Handlers) fail(c *gin.Context, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)

	body := gin.H{
		"error": err.Error(),
		"code":  code,
	}
	var timeout *shell.CommandTimeoutError
	if errors.As(err, &timeout) {
		body["output"] = timeout.Output
	}
	c.JSON(status, body)
}
