package protocol

import (
	"bytes"
	"strconv"
	"strings"
)

// MaxMarkerLen caps how many bytes an unterminated marker may withhold.
// Past this the introducer is released as display text so malformed output
// cannot stall the display.
const MaxMarkerLen = 4096

// Scanner incrementally splits terminal output into display text and control
// markers. A Scanner is not safe for concurrent use; each consumer of the
// output stream owns its own.
type Scanner struct {
	pending []byte
}

// NewScanner creates a new scanner
func NewScanner() *Scanner {
	return &Scanner{}
}

// Feed scans the next chunk of output. Returned segments never alias chunk.
// A marker that is not yet terminated, or a trailing partial introducer, is
// held back and completed by a later Feed.
func (s *Scanner) Feed(chunk []byte) []Segment {
	data := chunk
	if len(s.pending) > 0 {
		data = append(s.pending, chunk...)
		s.pending = nil
	}

	var (
		segments []Segment
		text     []byte
	)
	flushText := func() {
		if len(text) > 0 {
			segments = append(segments, Segment{Text: text})
			text = nil
		}
	}

	i := 0
	for i < len(data) {
		j := bytes.Index(data[i:], Introducer)
		if j < 0 {
			keep := partialIntroducer(data[i:])
			text = append(text, data[i:len(data)-keep]...)
			if keep > 0 {
				s.pending = clone(data[len(data)-keep:])
			}
			break
		}
		j += i
		text = append(text, data[i:j]...)

		body := data[j+len(Introducer):]
		end := bytes.IndexByte(body, BEL)
		esc := bytes.IndexByte(body, ESC)

		// A second escape before the terminator means this was never a marker.
		if esc >= 0 && (end < 0 || esc < end) {
			text = append(text, data[j])
			i = j + 1
			continue
		}
		if end < 0 {
			if len(data)-j > MaxMarkerLen {
				text = append(text, data[j])
				i = j + 1
				continue
			}
			s.pending = clone(data[j:])
			break
		}

		if m, ok := parseMarker(body[:end]); ok {
			flushText()
			segments = append(segments, Segment{Marker: &m})
		}
		i = j + len(Introducer) + end + 1
	}

	flushText()
	return segments
}

// Flush releases any withheld bytes as display text. Call it once the stream
// has ended.
func (s *Scanner) Flush() []Segment {
	if len(s.pending) == 0 {
		return nil
	}
	text := s.pending
	s.pending = nil
	return []Segment{{Text: text}}
}

// Buffered returns the number of bytes currently withheld.
func (s *Scanner) Buffered() int {
	return len(s.pending)
}

// Reset drops withheld bytes.
func (s *Scanner) Reset() {
	s.pending = nil
}

// Strip scans a complete piece of output and returns the display text with
// every control marker removed, plus the recognized markers in order.
func Strip(output string) (string, []Marker) {
	sc := NewScanner()
	segments := append(sc.Feed([]byte(output)), sc.Flush()...)

	var (
		sb      strings.Builder
		markers []Marker
	)
	for _, seg := range segments {
		if seg.IsMarker() {
			markers = append(markers, *seg.Marker)
			continue
		}
		sb.Write(seg.Text)
	}
	return sb.String(), markers
}

// partialIntroducer returns the length of the longest suffix of b that is a
// proper prefix of Introducer.
func partialIntroducer(b []byte) int {
	n := len(Introducer) - 1
	if n > len(b) {
		n = len(b)
	}
	for ; n > 0; n-- {
		if bytes.Equal(b[len(b)-n:], Introducer[:n]) {
			return n
		}
	}
	return 0
}

// parseMarker decodes "<name>[=<field1>:<field2>]". Only interactive and exit
// are recognized; anything else, including a malformed payload, is not.
func parseMarker(body []byte) (Marker, bool) {
	name, payload, hasEq := strings.Cut(string(body), "=")
	if name == "" {
		return Marker{}, false
	}

	m := Marker{Name: name}
	switch name {
	case NameInteractive:
		m.Kind = MarkerReady
	case NameExit:
		m.Kind = MarkerCompleted
	default:
		return Marker{}, false
	}

	if !hasEq || payload == "" {
		return m, true
	}

	first, second, ok := strings.Cut(payload, ":")
	if !ok {
		return Marker{}, false
	}
	f1, err := parseField(first, true)
	if err != nil {
		return Marker{}, false
	}
	f2, err := parseField(second, false)
	if err != nil {
		return Marker{}, false
	}

	m.HasPayload = true
	m.Fields = [2]int{f1, f2}
	m.ExitCode = f2
	return m, true
}

func parseField(s string, signed bool) (int, error) {
	digits := s
	if signed {
		digits = strings.TrimPrefix(s, "-")
	}
	if digits == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
