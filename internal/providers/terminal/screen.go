package terminal

import (
	"errors"
	"sync"

	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

// subscriberBuffer is the number of display chunks queued per subscriber.
const subscriberBuffer = 256

// ErrInputUnavailable is returned when keystrokes arrive before the shell
// has been wired to the screen.
var ErrInputUnavailable = errors.New("terminal input unavailable")

// Screen is the display side of a terminal. It records the shell's display
// output in a scrollback buffer, fans it out to live subscribers and routes
// keystrokes back to the shell.
//
// A subscriber that falls subscriberBuffer chunks behind is disconnected;
// reattaching returns a fresh transcript.
type Screen struct {
	buf *Buffer

	mu      sync.Mutex
	size    shell.Size
	onData  func([]byte)
	subs    map[int]chan []byte
	nextSub int
	closed  bool
}

// NewScreen creates a screen with the given scrollback capacity and size
func NewScreen(scrollback int, size shell.Size) *Screen {
	return &Screen{
		buf:  NewBuffer(scrollback),
		size: size,
		subs: make(map[int]chan []byte),
	}
}

// Write records display output
func (s *Screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Write(p)
	if len(s.subs) == 0 {
		return len(p), nil
	}

	chunk := make([]byte, len(p))
	copy(chunk, p)
	for id, ch := range s.subs {
		select {
		case ch <- chunk:
		default:
			delete(s.subs, id)
			close(ch)
		}
	}
	return len(p), nil
}

// OnData registers the keystroke handler
func (s *Screen) OnData(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = fn
}

// Input delivers keystrokes as if typed on the screen
func (s *Screen) Input(data []byte) error {
	s.mu.Lock()
	fn := s.onData
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return shell.ErrTerminated
	}
	if fn == nil {
		return ErrInputUnavailable
	}
	fn(data)
	return nil
}

// Size returns the current size
func (s *Screen) Size() shell.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// SetSize records a new size
func (s *Screen) SetSize(size shell.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
}

// ReadAll drains display output not read before
func (s *Screen) ReadAll() []byte {
	return s.buf.ReadAll()
}

// Transcript returns the scrollback
func (s *Screen) Transcript() []byte {
	return s.buf.Snapshot()
}

// Subscribe returns the current scrollback and a channel of display output
// written after it. The channel is closed when the screen closes, when the
// subscriber lags too far, or by cancel.
func (s *Screen) Subscribe() ([]byte, <-chan []byte, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan []byte, subscriberBuffer)
	snapshot := s.buf.Snapshot()
	if s.closed {
		close(ch)
		return snapshot, ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return snapshot, ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// Close disconnects all subscribers. The scrollback stays readable.
func (s *Screen) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
