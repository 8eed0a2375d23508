// Package client is a Go client for the boltshell REST API.
//
// Requests go through a token bucket and a circuit breaker. Reads are retried
// by a retryablehttp transport; exec and create are sent exactly once so a
// command never runs twice.
//
//	c := client.New(client.DefaultConfig("http://127.0.0.1:8000"))
//	info, err := c.CreateTerminal(ctx, types.CreateTerminalRequest{})
//	res, err := c.Exec(ctx, info.ID, types.ExecRequest{Command: "make test"})
//	if errors.Is(err, shell.ErrCommandTimeout) {
//		// the command is still running; res is nil
//	}
package client
