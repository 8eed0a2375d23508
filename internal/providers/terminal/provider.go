package terminal

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/q09sssisiwjb/boltshell/internal/shared/types"
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// Provider exposes the terminal manager as service tools
type Provider struct {
	manager *Manager
}

// NewProvider creates a new terminal provider
func NewProvider(manager *Manager) *Provider {
	return &Provider{
		manager: manager,
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "terminal",
		Name:        "Terminal Service",
		Description: "Hosted interactive shell terminals with serialized command execution and exit codes",
		Category:    types.CategoryShell,
		Capabilities: []string{
			"pty",
			"shell",
			"interactive",
			"execute",
			"exit_codes",
			"sessions",
			"resize",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "terminal.create_session":
		return p.createSession(ctx, params)
	case "terminal.execute":
		return p.execute(ctx, params, appCtx)
	case "terminal.state":
		return p.state(params)
	case "terminal.write":
		return p.write(params)
	case "terminal.read":
		return p.read(params)
	case "terminal.resize":
		return p.resize(params)
	case "terminal.list_sessions":
		return p.listSessions()
	case "terminal.get_session":
		return p.getSession(params)
	case "terminal.kill":
		return p.kill(params)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

var terminalIDParam = types.Parameter{
	Name:        "terminal_id",
	Type:        "string",
	Description: "Terminal ID",
	Required:    true,
}

func (p *Provider) getTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "terminal.create_session",
			Name:        "Create Terminal",
			Description: "Spawn a shell on a PTY and wait until it is interactive",
			Parameters: []types.Parameter{
				{Name: "command", Type: "string", Description: "Shell executable. Defaults to the configured shell", Required: false},
				{Name: "args", Type: "array", Description: "Shell arguments, used with command", Required: false},
				{Name: "working_dir", Type: "string", Description: "Initial working directory", Required: false},
				{Name: "cols", Type: "number", Description: "Terminal width in columns", Required: false},
				{Name: "rows", Type: "number", Description: "Terminal height in rows", Required: false},
				{Name: "env", Type: "object", Description: "Environment variables to set", Required: false},
			},
			Returns: "terminal_info",
		},
		{
			ID:          "terminal.execute",
			Name:        "Execute Command",
			Description: "Run one command line and wait for its output and exit code",
			Parameters: []types.Parameter{
				terminalIDParam,
				{Name: "command", Type: "string", Description: "Command line to run", Required: true},
				{Name: "session_id", Type: "string", Description: "Chat session issuing the command", Required: false},
			},
			Returns: "execution_result",
		},
		{
			ID:          "terminal.state",
			Name:        "Execution State",
			Description: "Observe whether a command is running and which one",
			Parameters:  []types.Parameter{terminalIDParam},
			Returns:     "execution_state",
		},
		{
			ID:          "terminal.write",
			Name:        "Write to Terminal",
			Description: "Send keystrokes to a terminal",
			Parameters: []types.Parameter{
				terminalIDParam,
				{Name: "input", Type: "string", Description: "Input to send to terminal", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.read",
			Name:        "Read from Terminal",
			Description: "Read display output not read before",
			Parameters:  []types.Parameter{terminalIDParam},
			Returns:     "output_data",
		},
		{
			ID:          "terminal.resize",
			Name:        "Resize Terminal",
			Description: "Change terminal dimensions",
			Parameters: []types.Parameter{
				terminalIDParam,
				{Name: "cols", Type: "number", Description: "New width in columns", Required: true},
				{Name: "rows", Type: "number", Description: "New height in rows", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.list_sessions",
			Name:        "List Terminals",
			Description: "List all hosted terminals",
			Parameters:  []types.Parameter{},
			Returns:     "terminals_list",
		},
		{
			ID:          "terminal.get_session",
			Name:        "Get Terminal Info",
			Description: "Get information about a terminal",
			Parameters:  []types.Parameter{terminalIDParam},
			Returns:     "terminal_info",
		},
		{
			ID:          "terminal.kill",
			Name:        "Kill Terminal",
			Description: "Terminate a terminal",
			Parameters:  []types.Parameter{terminalIDParam},
			Returns:     "success",
		},
	}
}

func (p *Provider) createSession(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	opts := CreateOptions{}
	opts.Command, _ = params["command"].(string)
	opts.WorkingDir, _ = params["working_dir"].(string)

	if args, ok := params["args"].([]interface{}); ok {
		for _, a := range args {
			if s, ok := a.(string); ok {
				opts.Args = append(opts.Args, s)
			}
		}
	}
	if c, ok := params["cols"].(float64); ok {
		opts.Cols = int(c)
	}
	if r, ok := params["rows"].(float64); ok {
		opts.Rows = int(r)
	}
	if envMap, ok := params["env"].(map[string]interface{}); ok {
		opts.Env = make(map[string]string, len(envMap))
		for k, v := range envMap {
			if str, ok := v.(string); ok {
				opts.Env[k] = str
			}
		}
	}

	info, err := p.manager.Create(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    infoData(info),
	}, nil
}

func (p *Provider) execute(ctx context.Context, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	terminalID, ok := params["terminal_id"].(string)
	if !ok {
		return nil, fmt.Errorf("terminal_id is required")
	}

	command, ok := params["command"].(string)
	if !ok {
		return nil, fmt.Errorf("command is required")
	}

	sessionID, _ := params["session_id"].(string)
	if sessionID == "" && appCtx != nil && appCtx.SessionID != nil {
		sessionID = *appCtx.SessionID
	}

	res, err := p.manager.Execute(ctx, terminalID, sessionID, command)
	if err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"output":    res.Output,
			"exit_code": res.ExitCode,
			"plain":     res.Plain(),
		},
	}, nil
}

func (p *Provider) state(params map[string]interface{}) (*types.Result, error) {
	terminalID, ok := params["terminal_id"].(string)
	if !ok {
		return nil, fmt.Errorf("terminal_id is required")
	}

	st, err := p.manager.State(terminalID)
	if err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    stateData(st),
	}, nil
}

func (p *Provider) write(params map[string]interface{}) (*types.Result, error) {
	terminalID, ok := params["terminal_id"].(string)
	if !ok {
		return nil, fmt.Errorf("terminal_id is required")
	}

	input, ok := params["input"].(string)
	if !ok {
		return nil, fmt.Errorf("input is required")
	}

	if err := p.manager.Input(terminalID, []byte(input)); err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"success": true},
	}, nil
}

func (p *Provider) read(params map[string]interface{}) (*types.Result, error) {
	terminalID, ok := params["terminal_id"].(string)
	if !ok {
		return nil, fmt.Errorf("terminal_id is required")
	}

	output, err := p.manager.Output(terminalID)
	if err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"output":        string(output),
			"output_base64": base64.StdEncoding.EncodeToString(output),
			"length":        len(output),
		},
	}, nil
}

func (p *Provider) resize(params map[string]interface{}) (*types.Result, error) {
	terminalID, ok := params["terminal_id"].(string)
	if !ok {
		return nil, fmt.Errorf("terminal_id is required")
	}

	cols, ok := params["cols"].(float64)
	if !ok {
		return nil, fmt.Errorf("cols is required")
	}

	rows, ok := params["rows"].(float64)
	if !ok {
		return nil, fmt.Errorf("rows is required")
	}

	if err := p.manager.Resize(terminalID, shell.Size{Cols: int(cols), Rows: int(rows)}); err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"success": true},
	}, nil
}

func (p *Provider) listSessions() (*types.Result, error) {
	terminals := p.manager.List()

	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"terminals": terminals,
			"count":     len(terminals),
		},
	}, nil
}

func (p *Provider) getSession(params map[string]interface{}) (*types.Result, error) {
	terminalID, ok := params["terminal_id"].(string)
	if !ok {
		return nil, fmt.Errorf("terminal_id is required")
	}

	info, err := p.manager.Get(terminalID)
	if err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    infoData(info),
	}, nil
}

func (p *Provider) kill(params map[string]interface{}) (*types.Result, error) {
	terminalID, ok := params["terminal_id"].(string)
	if !ok {
		return nil, fmt.Errorf("terminal_id is required")
	}

	if err := p.manager.Kill(terminalID); err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"success": true},
	}, nil
}

func infoData(info *Info) map[string]interface{} {
	return map[string]interface{}{
		"id":          info.ID,
		"command":     info.Command,
		"working_dir": info.WorkingDir,
		"cols":        info.Cols,
		"rows":        info.Rows,
		"started_at":  info.StartedAt,
		"active":      info.Active,
		"state":       info.State,
	}
}

func stateData(st shell.ExecutionState) map[string]interface{} {
	data := map[string]interface{}{
		"session_id": st.SessionID,
		"active":     st.Active,
	}
	if st.Pending != nil {
		data["pending"] = map[string]interface{}{
			"id":         st.Pending.ID,
			"command":    st.Pending.Command,
			"started_at": st.Pending.StartedAt,
		}
	}
	return data
}
