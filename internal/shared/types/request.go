package types

// ExecuteRequest represents a service execution request
type ExecuteRequest struct {
	ToolID    string                 `json:"tool_id" binding:"required"`
	Params    map[string]interface{} `json:"params"`
	SessionID *string                `json:"session_id,omitempty"`
}

// CreateTerminalRequest asks for a new hosted shell
type CreateTerminalRequest struct {
	Command    string            `json:"command,omitempty"`
	Args       []string          `json:"args,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Cols       int               `json:"cols,omitempty" binding:"omitempty,max=65535"`
	Rows       int               `json:"rows,omitempty" binding:"omitempty,max=65535"`
}

// ExecRequest runs one command line in a terminal
type ExecRequest struct {
	Command   string `json:"command" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
	// TimeoutMS caps the caller's wait; zero keeps the server default.
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// ExecResponse is the outcome of an ExecRequest
type ExecResponse struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
	Plain    string `json:"plain,omitempty"`
}

// InputRequest forwards keystrokes to a terminal
type InputRequest struct {
	Data string `json:"data" binding:"required"`
}

// ResizeRequest changes a terminal's size. A PTY holds 16-bit dimensions.
type ResizeRequest struct {
	Cols int `json:"cols" binding:"required,min=1,max=65535"`
	Rows int `json:"rows" binding:"required,min=1,max=65535"`
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
