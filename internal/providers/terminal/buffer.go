package terminal

import "sync"

// Buffer is a thread-safe circular scrollback for terminal output. It keeps
// the newest Cap bytes and separately tracks how many of them have not been
// drained by ReadAll yet.
type Buffer struct {
	data   []byte
	size   int
	start  int
	length int
	unread int
	mu     sync.RWMutex
}

// NewBuffer creates a new circular buffer
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends p, overwriting the oldest bytes once the buffer is full
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n = len(p)
	if len(p) >= b.size {
		p = p[len(p)-b.size:]
		copy(b.data, p)
		b.start = 0
		b.length = b.size
		b.unread = b.size
		return n, nil
	}

	tail := (b.start + b.length) % b.size
	written := copy(b.data[tail:], p)
	copy(b.data, p[written:])

	b.length += len(p)
	if b.length > b.size {
		b.start = (b.start + b.length - b.size) % b.size
		b.length = b.size
	}
	b.unread = min(b.unread+len(p), b.length)

	return n, nil
}

// ReadAll returns the bytes written since the previous ReadAll and marks
// them read. Bytes overwritten before being read are lost.
func (b *Buffer) ReadAll() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.lastLocked(b.unread)
	b.unread = 0
	return out
}

// Snapshot returns the whole scrollback without consuming it
func (b *Buffer) Snapshot() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastLocked(b.length)
}

// Len returns the number of bytes held
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.length
}

// Cap returns the scrollback capacity
func (b *Buffer) Cap() int {
	return b.size
}

func (b *Buffer) lastLocked(n int) []byte {
	result := make([]byte, n)
	if n == 0 {
		return result
	}

	from := (b.start + b.length - n) % b.size
	copied := copy(result, b.data[from:min(from+n, b.size)])
	copy(result[copied:], b.data[:n-copied])
	return result
}
