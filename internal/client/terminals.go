package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/q09sssisiwjb/boltshell/internal/providers/terminal"
	"github.com/q09sssisiwjb/boltshell/internal/shared/types"
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

func terminalPath(id string, suffix string) string {
	return "/terminals/" + url.PathEscape(id) + suffix
}

// Health returns the server's health report
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	if _, err := c.send(ctx, call{method: http.MethodGet, path: "/health"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTerminal spawns a terminal and waits until its shell is interactive
func (c *Client) CreateTerminal(ctx context.Context, req types.CreateTerminalRequest) (*terminal.Info, error) {
	var info terminal.Info
	if _, err := c.send(ctx, call{method: http.MethodPost, path: "/terminals", body: req, once: true}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListTerminals lists hosted terminals
func (c *Client) ListTerminals(ctx context.Context) ([]terminal.Info, error) {
	var out struct {
		Terminals []terminal.Info `json:"terminals"`
	}
	if _, err := c.send(ctx, call{method: http.MethodGet, path: "/terminals"}, &out); err != nil {
		return nil, err
	}
	return out.Terminals, nil
}

// GetTerminal returns one terminal
func (c *Client) GetTerminal(ctx context.Context, id string) (*terminal.Info, error) {
	var info terminal.Info
	if _, err := c.send(ctx, call{method: http.MethodGet, path: terminalPath(id, "")}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Exec runs one command line and returns its output and exit code. It is
// never retried.
func (c *Client) Exec(ctx context.Context, id string, req types.ExecRequest) (*types.ExecResponse, error) {
	var out types.ExecResponse
	if _, err := c.send(ctx, call{method: http.MethodPost, path: terminalPath(id, "/exec"), body: req, once: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// State returns a terminal's execution state
func (c *Client) State(ctx context.Context, id string) (*shell.ExecutionState, error) {
	var st shell.ExecutionState
	if _, err := c.send(ctx, call{method: http.MethodGet, path: terminalPath(id, "/state")}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Input types keystrokes into a terminal
func (c *Client) Input(ctx context.Context, id, data string) error {
	_, err := c.send(ctx, call{method: http.MethodPost, path: terminalPath(id, "/input"), body: types.InputRequest{Data: data}, once: true}, nil)
	return err
}

// Resize changes a terminal's size
func (c *Client) Resize(ctx context.Context, id string, cols, rows int) error {
	_, err := c.send(ctx, call{method: http.MethodPost, path: terminalPath(id, "/resize"), body: types.ResizeRequest{Cols: cols, Rows: rows}}, nil)
	return err
}

// Transcript returns a terminal's scrollback
func (c *Client) Transcript(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.send(ctx, call{method: http.MethodGet, path: terminalPath(id, "/transcript")}, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Kill terminates a terminal
func (c *Client) Kill(ctx context.Context, id string) error {
	_, err := c.send(ctx, call{method: http.MethodDelete, path: terminalPath(id, "")}, nil)
	return err
}
