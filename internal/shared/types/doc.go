// Package types provides the wire types shared by the API, the service
// registry and the client.
//
// Service Types:
//   - Service, Tool, Parameter: tool catalog entries
//   - Context: caller identity for a tool call
//   - Result: standard tool result
//
// Request Types:
//   - ExecuteRequest: service tool execution
//   - CreateTerminalRequest, ExecRequest, InputRequest, ResizeRequest: terminal API
//   - ExecResponse, ErrorResponse: terminal API replies
package types
