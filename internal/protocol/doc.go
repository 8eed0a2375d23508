// Package protocol parses the out-of-band control channel that jsh embeds in
// its terminal output.
//
// A control marker is an OSC sequence with the private tag 654:
//
//	ESC ] 654 ; <name> [= <field1>:<field2>] BEL
//
// Recognized names:
//   - interactive: the shell booted and accepts input (MarkerReady)
//   - exit: the last command finished (MarkerCompleted, carries the payload)
//
// The Scanner is incremental. Markers split across chunk boundaries are
// withheld until the terminator arrives, and every Feed returns the chunk as a
// sequence of display text and marker segments in stream order.
//
// Example Usage:
//
//	sc := protocol.NewScanner()
//	for _, seg := range sc.Feed(chunk) {
//		if seg.IsMarker() && seg.Marker.Kind == protocol.MarkerCompleted {
//			code := seg.Marker.ExitCode
//		}
//	}
package protocol
