// Command boltsh runs the boltshell server and drives its terminals.
//
// Usage:
//
//	# Serve, configured from the environment
//	SHELL_COMMAND=/bin/jsh PORT=8000 boltsh serve
//
//	# Run a command in a fresh terminal; boltsh exits with its status
//	boltsh exec -- make test
//
//	# Reuse a terminal across commands
//	boltsh exec --terminal term_01J... --session chat-1 -- cd src
//	boltsh state term_01J...
//	boltsh terminals
//
// SIGINT and SIGTERM shut the server down gracefully.
package main
