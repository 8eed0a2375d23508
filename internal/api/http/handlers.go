package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/q09sssisiwjb/boltshell/internal/infrastructure/monitoring"
	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
	"github.com/q09sssisiwjb/boltshell/internal/service"
	"github.com/q09sssisiwjb/boltshell/internal/shared/types"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	manager  *terminal.Manager
	registry *service.Registry
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(manager *terminal.Manager, registry *service.Registry, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		manager:  manager,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Register mounts every REST route on r
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	r.GET("/services", h.ListServices)
	r.POST("/services/discover", h.DiscoverServices)
	r.POST("/services/execute", h.ExecuteService)

	r.POST("/terminals", h.CreateTerminal)
	r.GET("/terminals", h.ListTerminals)
	r.GET("/terminals/:id", h.GetTerminal)
	r.DELETE("/terminals/:id", h.KillTerminal)
	r.POST("/terminals/:id/exec", h.Exec)
	r.GET("/terminals/:id/state", h.State)
	r.POST("/terminals/:id/input", h.Input)
	r.POST("/terminals/:id/resize", h.Resize)
	r.GET("/terminals/:id/output", h.Output)
	r.GET("/terminals/:id/transcript", h.Transcript)
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "boltshell",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	terminals := h.manager.List()
	active := 0
	for _, t := range terminals {
		if t.Active {
			active++
		}
	}

	body := gin.H{
		"status":           "healthy",
		"timestamp":        time.Now().Unix(),
		"terminals":        gin.H{"total": len(terminals), "active": active},
		"service_registry": h.registry.Stats(),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// ListServices lists all available services
func (h *Handlers) ListServices(c *gin.Context) {
	var category *types.Category
	if raw := c.Query("category"); raw != "" {
		cat := types.Category(raw)
		if !cat.Valid() {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "unknown category: " + raw, Code: "invalid_request"})
			return
		}
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(category),
		"stats":    h.registry.Stats(),
	})
}

// DiscoverServices finds services relevant to a free-text query
func (h *Handlers) DiscoverServices(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
		Limit int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}

	c.JSON(http.StatusOK, gin.H{
		"query":    req.Query,
		"services": h.registry.Discover(req.Query, req.Limit),
	})
}

// ExecuteService executes a service tool
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	var appCtx *types.Context
	if req.SessionID != nil {
		appCtx = &types.Context{SessionID: req.SessionID}
	}

	var timer *monitoring.Timer
	if h.metrics != nil {
		serviceID, _, _ := strings.Cut(req.ToolID, ".")
		timer = monitoring.NewTimer(h.metrics, serviceID, req.ToolID)
	}

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, appCtx)
	if timer != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		timer.Stop(status)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, types.ErrorResponse{
		Error: "invalid request: " + err.Error(),
		Code:  "invalid_request",
	})
}
