// Package shell drives a long-lived interactive shell on behalf of an
// automated caller while keeping a live terminal display in sync.
//
// The Controller spawns the shell through a Spawner, tees its output into a
// display branch (written to a Terminal) and an internal branch (scanned for
// control markers), and serializes command execution so at most one command
// is in flight.
//
// Lifecycle:
//
//	Uninitialized -> Initializing -> Ready <-> Busy -> Terminated
//
// Initialization waits for the interactive marker, bounded by ReadyTimeout.
// Failing to spawn or to see the marker returns the controller to
// Uninitialized so the caller can retry.
//
// Command execution:
//  1. Wait for the previous command, bounded by CommandTimeout. If it is
//     still running, log a warning, cancel its wait and take over.
//  2. Discard output nobody consumed yet, so a late tail of an abandoned
//     command cannot leak into this result.
//  3. Send ETX (Ctrl-C) to clear any partial input line.
//  4. Write the command and a newline.
//  5. Collect display text until the exit marker, bounded by CommandTimeout.
//
// Every stream read is individually bounded by StreamReadTimeout. A stalled
// read is retried after ReadRetryBackoff until the enclosing budget runs out;
// reads are cancelled cooperatively, the process is never killed for it.
//
// Keystrokes from the Terminal reach the shell only after the display branch
// has seen the interactive marker, so typing cannot interleave with the boot
// banner.
//
// Example Usage:
//
//	ctrl := shell.NewController(shell.DefaultConfig(), shell.WithLogger(logger))
//	if err := ctrl.Initialize(ctx, spawner, screen); err != nil {
//		return err
//	}
//	res, err := ctrl.ExecuteCommand(ctx, "chat-42", "npm install")
//	if errors.Is(err, shell.ErrCommandTimeout) {
//		// the controller is still usable
//	}
package shell
