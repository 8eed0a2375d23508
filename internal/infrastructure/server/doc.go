// Package server assembles the boltshell HTTP server: configuration,
// logging, metrics, the terminal manager, the service registry and the
// REST and websocket routes.
package server
