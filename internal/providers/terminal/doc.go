// Package terminal hosts shell terminals driven by shell.Controller.
//
// Each terminal owns one PTY-backed shell process, a Screen that receives its
// display output, and a Controller that runs commands on it. The Manager keeps
// terminals keyed by ID; the Provider exposes them as service tools.
//
// Features:
//   - PTY spawning with per-terminal command, working directory and environment
//   - Scrollback buffer with destructive read and non-destructive transcript
//   - Live display subscribers for attached viewers
//   - Serialized command execution with exit codes
//   - Keystroke forwarding once the shell is interactive
//   - Automatic deactivation when the shell process dies
//
// Example Usage:
//
//	terminal.create_session(command: "/bin/jsh", working_dir: "/home/project")
//	// → Returns terminal_id
//
//	terminal.execute(terminal_id: "term_01J...", command: "npm install")
//	// → Returns output, exit_code
//
//	terminal.state(terminal_id: "term_01J...")
//	// → Returns active, pending command
//
// Tools:
//   - terminal.create_session: Spawn a shell and wait until it is interactive
//   - terminal.execute: Run one command and wait for its exit code
//   - terminal.state: Observe the execution state
//   - terminal.write: Send raw keystrokes
//   - terminal.read: Drain unread display output
//   - terminal.resize: Resize terminal dimensions
//   - terminal.list_sessions: List terminals
//   - terminal.get_session: Get one terminal
//   - terminal.kill: Terminate a terminal
package terminal
