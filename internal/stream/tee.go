package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ReadSize is the largest chunk the producer reads from the source at once.
const ReadSize = 32 * 1024

// ErrConsumerClosed is returned by Next after the consumer was closed.
var ErrConsumerClosed = errors.New("stream consumer closed")

// Tee broadcasts chunks read from one source to a fixed set of consumers.
type Tee struct {
	src io.Reader

	mu        sync.Mutex
	chunks    [][]byte
	starts    []int64 // byte offset of each chunk in the stream
	written   int64
	base      int // absolute index of chunks[0]
	consumers []*Consumer
	changed   chan struct{}
	err       error
	ended     bool
	done      chan struct{}
}

// Consumer is one independently paced view of the stream.
type Consumer struct {
	tee    *Tee
	id     int
	pos    int // absolute index of the next chunk to read
	closed bool

	limit   int64
	dropped int64
}

// New starts reading src and returns a tee with n consumers. All consumers
// exist before the first read, so none can miss a chunk.
func New(src io.Reader, n int) *Tee {
	if n < 1 {
		n = 1
	}

	t := &Tee{
		src:     src,
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		t.consumers = append(t.consumers, &Consumer{tee: t, id: i})
	}

	go t.run()
	return t
}

// Split tees src into exactly two consumers.
func Split(src io.Reader) (*Consumer, *Consumer) {
	t := New(src, 2)
	return t.consumers[0], t.consumers[1]
}

// Consumers returns the consumer handles in creation order.
func (t *Tee) Consumers() []*Consumer {
	out := make([]*Consumer, len(t.consumers))
	copy(out, t.consumers)
	return out
}

// Done is closed once the producer stops reading.
func (t *Tee) Done() <-chan struct{} {
	return t.done
}

// Err returns the read error that stopped the producer. A clean end of stream
// reports nil.
func (t *Tee) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Buffered returns the number of chunks held for lagging consumers.
func (t *Tee) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.chunks)
}

// run is the single producer loop.
func (t *Tee) run() {
	defer close(t.done)

	buf := make([]byte, ReadSize)
	for {
		n, err := t.src.Read(buf)
		if n > 0 {
			t.publish(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			t.finish(err)
			return
		}
	}
}

func (t *Tee) publish(chunk []byte) {
	t.mu.Lock()
	live := false
	for _, c := range t.consumers {
		if !c.closed {
			live = true
			break
		}
	}
	if live {
		t.chunks = append(t.chunks, chunk)
		t.starts = append(t.starts, t.written)
		t.enforceLimitsLocked()
	} else {
		// Nobody left to deliver to; keep the cursor arithmetic consistent.
		t.base++
	}
	t.written += int64(len(chunk))
	t.broadcastLocked()
	t.mu.Unlock()
}

func (t *Tee) finish(err error) {
	t.mu.Lock()
	if !errors.Is(err, io.EOF) {
		t.err = err
	}
	t.ended = true
	t.broadcastLocked()
	t.mu.Unlock()
}

// broadcastLocked wakes every waiting consumer.
func (t *Tee) broadcastLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

// trimLocked drops chunks every live consumer has already read.
func (t *Tee) trimLocked() {
	low := t.base + len(t.chunks)
	for _, c := range t.consumers {
		if !c.closed && c.pos < low {
			low = c.pos
		}
	}
	drop := low - t.base
	if drop <= 0 {
		return
	}
	for i := 0; i < drop; i++ {
		t.chunks[i] = nil
	}
	t.chunks = t.chunks[drop:]
	t.starts = t.starts[drop:]
	t.base = low
}

// enforceLimitsLocked skips the oldest unread chunks of every consumer whose
// backlog went over its limit. The newest chunk is always kept.
func (t *Tee) enforceLimitsLocked() {
	end := t.written + int64(len(t.chunks[len(t.chunks)-1]))
	for _, c := range t.consumers {
		if c.closed || c.limit <= 0 {
			continue
		}
		if c.pos < t.base {
			c.pos = t.base
		}
		for c.pos-t.base < len(t.chunks)-1 && end-t.starts[c.pos-t.base] > c.limit {
			c.dropped += int64(len(t.chunks[c.pos-t.base]))
			c.pos++
		}
	}
	t.trimLocked()
}

// Next returns the next chunk, blocking until one is available, ctx is done,
// or the stream ends. At the end of the stream it returns io.EOF, or the
// producer's read error if the source failed. The returned slice is shared
// and must not be modified.
func (c *Consumer) Next(ctx context.Context) ([]byte, error) {
	t := c.tee
	for {
		t.mu.Lock()
		if c.closed {
			t.mu.Unlock()
			return nil, ErrConsumerClosed
		}
		if chunk, ok := c.takeLocked(); ok {
			t.mu.Unlock()
			return chunk, nil
		}
		if t.ended {
			err := t.err
			t.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return nil, err
		}
		wait := t.changed
		t.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryNext returns the next chunk without blocking.
func (c *Consumer) TryNext() ([]byte, bool) {
	t := c.tee
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.closed {
		return nil, false
	}
	return c.takeLocked()
}

func (c *Consumer) takeLocked() ([]byte, bool) {
	t := c.tee
	if c.pos < t.base {
		// Chunks published while every consumer was closed are gone.
		c.pos = t.base
	}
	idx := c.pos - t.base
	if idx >= len(t.chunks) {
		return nil, false
	}
	chunk := t.chunks[idx]
	c.pos++
	t.trimLocked()
	return chunk, true
}

// Lag returns the number of chunks published but not yet read.
func (c *Consumer) Lag() int {
	t := c.tee
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.closed {
		return 0
	}
	pos := c.pos
	if pos < t.base {
		pos = t.base
	}
	return t.base + len(t.chunks) - pos
}

// SetLimit caps the consumer's unread backlog at n bytes. Once the producer
// pushes it past the cap, the oldest unread chunks are skipped and counted
// by Dropped. n <= 0 removes the cap.
func (c *Consumer) SetLimit(n int64) {
	t := c.tee
	t.mu.Lock()
	defer t.mu.Unlock()
	c.limit = n
}

// Dropped returns the bytes skipped because of the backlog limit.
func (c *Consumer) Dropped() int64 {
	t := c.tee
	t.mu.Lock()
	defer t.mu.Unlock()
	return c.dropped
}

// Close detaches the consumer. Its backlog is released and blocked Next calls
// return ErrConsumerClosed. The producer keeps running for the others.
func (c *Consumer) Close() error {
	t := c.tee
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	t.trimLocked()
	t.broadcastLocked()
	return nil
}

// ID returns the consumer's index within its tee.
func (c *Consumer) ID() int {
	return c.id
}
