// Package providers holds the service providers registered with the service
// registry. Each provider exposes tools addressed as "service.tool".
//
// Available Providers:
//   - terminal: hosted shell terminals (create, execute, state, input, resize)
//   - system: host information, time and ping
//
// Provider Interface:
//   - Definition(): Returns service metadata and tool definitions
//   - Execute(): Executes a tool with parameters and context
//
// Example Usage:
//
//	p := terminal.NewProvider(manager)
//	result, err := p.Execute(ctx, "terminal.execute", params, appCtx)
package providers
