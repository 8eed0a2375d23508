package system

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
	"github.com/q09sssisiwjb/boltshell/internal/shared/types"
)

// Terminals is the part of the terminal manager the system service reports on
type Terminals interface {
	List() []terminal.Info
}

// Provider implements host information and liveness tools
type Provider struct {
	startTime time.Time
	shell     string
	terminals Terminals
}

// NewProvider creates a system provider. shell is the configured default
// shell command.
func NewProvider(terminals Terminals, shell string) *Provider {
	return &Provider{
		startTime: time.Now(),
		shell:     shell,
		terminals: terminals,
	}
}

// Definition returns service metadata
func (s *Provider) Definition() types.Service {
	return types.Service{
		ID:          "system",
		Name:        "System Service",
		Description: "Host information for the machine running the shells",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"info",
			"monitoring",
		},
		Tools: []types.Tool{
			{
				ID:          "system.info",
				Name:        "System Info",
				Description: "Get host, runtime and terminal information",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.time",
				Name:        "Current Time",
				Description: "Get current server time",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.ping",
				Name:        "Ping",
				Description: "Test service availability",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs a system operation
func (s *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "system.info":
		return s.info()
	case "system.time":
		return s.currentTime()
	case "system.ping":
		return s.ping()
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (s *Provider) info() (*types.Result, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	hostname, _ := os.Hostname()
	total, active := 0, 0
	if s.terminals != nil {
		for _, t := range s.terminals.List() {
			total++
			if t.Active {
				active++
			}
		}
	}

	return success(map[string]interface{}{
		"hostname":         hostname,
		"go_version":       runtime.Version(),
		"os":               runtime.GOOS,
		"arch":             runtime.GOARCH,
		"cpus":             runtime.NumCPU(),
		"goroutines":       runtime.NumGoroutine(),
		"memory_alloc":     m.Alloc / 1024 / 1024, // MB
		"memory_sys":       m.Sys / 1024 / 1024,   // MB
		"uptime_seconds":   time.Since(s.startTime).Seconds(),
		"shell":            s.shell,
		"terminals":        total,
		"terminals_active": active,
	})
}

func (s *Provider) currentTime() (*types.Result, error) {
	now := time.Now()
	zone, offset := now.Zone()
	return success(map[string]interface{}{
		"timestamp":      now.Unix(),
		"iso":            now.Format(time.RFC3339),
		"unix_ms":        now.UnixMilli(),
		"zone":           zone,
		"offset_seconds": offset,
	})
}

func (s *Provider) ping() (*types.Result, error) {
	return success(map[string]interface{}{
		"pong":      true,
		"timestamp": time.Now().Unix(),
	})
}

func success(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}
