// Package http implements the boltshell REST API on gin.
//
// Terminals are created with POST /terminals and driven with
// POST /terminals/:id/exec, which blocks until the shell reports the exit
// code. Errors come back as {"error", "code"} with the status chosen by
// StatusFor.
package http
