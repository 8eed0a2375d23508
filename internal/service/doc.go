// Package service provides the tool registry that exposes providers to
// automated callers.
//
// A provider publishes a types.Service with its tools; callers invoke a tool
// by its "service.tool" ID and the registry routes the call.
//
// Features:
//   - Thread-safe service registration
//   - Category-based filtering
//   - Intent-based discovery with scoring
//   - Tool execution with context passing
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(terminal.NewProvider(manager))
//	services := registry.Discover("run shell command", 5)
//	result, err := registry.Execute(ctx, "terminal.execute", params, appCtx)
package service
