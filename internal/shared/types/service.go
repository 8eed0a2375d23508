package types

// Category represents service categories
type Category string

const (
	CategorySystem Category = "system"
	CategoryShell  Category = "shell"
)

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	return c == CategorySystem || c == CategoryShell
}

// Service represents a service definition
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities"`
	Tools        []Tool   `json:"tools"`
}

// Tool represents a service tool
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter represents a tool parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Context carries caller identity into a tool call
type Context struct {
	// SessionID is the chat session issuing the call. Commands are tagged
	// with it in execution state snapshots.
	SessionID *string `json:"session_id,omitempty"`
	RequestID *string `json:"request_id,omitempty"`
}

// Result represents a service execution result
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

// Failure builds an unsuccessful result carrying err's message
func Failure(err error) *Result {
	msg := err.Error()
	return &Result{Success: false, Error: &msg}
}
