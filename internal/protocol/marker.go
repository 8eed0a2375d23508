package protocol

import "fmt"

const (
	// ESC introduces the OSC sequence.
	ESC byte = 0x1b
	// BEL terminates the OSC sequence.
	BEL byte = 0x07

	// Tag is the private OSC number used by jsh.
	Tag = "654"

	// NameInteractive is sent once the shell accepts input.
	NameInteractive = "interactive"
	// NameExit is sent after every command with the exit status payload.
	NameExit = "exit"
)

// Introducer is the byte sequence every control marker starts with.
var Introducer = []byte("\x1b]" + Tag + ";")

// MarkerKind identifies a recognized control marker.
type MarkerKind int

const (
	MarkerUnknown MarkerKind = iota
	MarkerReady
	MarkerCompleted
)

// String returns the string representation of the kind
func (k MarkerKind) String() string {
	switch k {
	case MarkerReady:
		return "ready"
	case MarkerCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Marker is a decoded control marker.
//
// ExitCode is taken from the second payload field. jsh emits the process
// exit status first and the signal number second, so a command killed by
// SIGINT reports its signal here. Callers already depend on these numbers;
// Fields keeps both so the first one is still reachable.
type Marker struct {
	Kind       MarkerKind
	Name       string
	HasPayload bool
	Fields     [2]int
	ExitCode   int
}

// String renders the marker back into its wire form.
func (m Marker) String() string {
	if !m.HasPayload {
		return fmt.Sprintf("\x1b]%s;%s\x07", Tag, m.Name)
	}
	return fmt.Sprintf("\x1b]%s;%s=%d:%d\x07", Tag, m.Name, m.Fields[0], m.Fields[1])
}

// Segment is one piece of scanned output: either display text or a marker.
// Exactly one of Text and Marker is set.
type Segment struct {
	Text   []byte
	Marker *Marker
}

// IsMarker reports whether the segment carries a control marker.
func (s Segment) IsMarker() bool {
	return s.Marker != nil
}

// Encode builds the wire form of a marker. A nil fields slice omits the
// payload.
func Encode(name string, fields ...int) string {
	m := Marker{Name: name}
	if len(fields) >= 2 {
		m.HasPayload = true
		m.Fields = [2]int{fields[0], fields[1]}
	}
	return m.String()
}
