/*
Package resilience provides the circuit breaker used by the API client.

# Overview

A breaker stops hammering a server that keeps failing. The client wraps every
call in one so a dead boltshell server fails fast instead of stacking up
retries.

# Usage

	breaker := resilience.New("boltshell", resilience.Settings{
		Trials:   1,
		Cooldown: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	res, err := resilience.Call(ctx, breaker, func(ctx context.Context) (*Result, error) {
		return client.exec(ctx, req)
	})

# States

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
