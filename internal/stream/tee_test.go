package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readN(t *testing.T, c *Consumer, n int) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		chunk, err := c.Next(ctx)
		require.NoError(t, err)
		out = append(out, string(chunk))
	}
	return out
}

// collect reads n chunks, sleeping before each read to model a slow reader.
func collect(c *Consumer, n int, delay time.Duration) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if delay > 0 {
			time.Sleep(delay)
		}
		chunk, err := c.Next(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, string(chunk))
	}
	return out, nil
}

func TestSplitDeliversIdenticalCopies(t *testing.T) {
	pr, pw := io.Pipe()
	a, b := Split(pr)

	want := make([]string, 0, 50)
	go func() {
		for i := 0; i < 50; i++ {
			msg := fmt.Sprintf("chunk-%02d;", i)
			pw.Write([]byte(msg))
		}
		pw.Close()
	}()
	for i := 0; i < 50; i++ {
		want = append(want, fmt.Sprintf("chunk-%02d;", i))
	}

	var wg sync.WaitGroup
	var gotA, gotB []string
	var errA, errB error
	wg.Add(2)
	go func() {
		defer wg.Done()
		gotA, errA = collect(a, 50, 0)
	}()
	go func() {
		defer wg.Done()
		gotB, errB = collect(b, 50, time.Millisecond)
	}()
	wg.Wait()

	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, want, gotA)
	assert.Equal(t, want, gotB)

	_, err := a.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestFastConsumerIsNotBlockedBySlowOne(t *testing.T) {
	pr, pw := io.Pipe()
	fast, slow := Split(pr)

	go func() {
		for i := 0; i < 10; i++ {
			pw.Write([]byte{byte('a' + i)})
		}
	}()

	// slow never reads; fast must still see all ten chunks.
	got := readN(t, fast, 10)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, got)
	assert.Equal(t, 10, slow.Lag())
	assert.Equal(t, 0, fast.Lag())
	pw.Close()
}

func TestClosedConsumerReleasesBacklog(t *testing.T) {
	pr, pw := io.Pipe()
	tee := New(pr, 2)
	cs := tee.Consumers()
	fast, slow := cs[0], cs[1]

	pw.Write([]byte("one"))
	pw.Write([]byte("two"))
	readN(t, fast, 2)
	assert.Equal(t, 2, tee.Buffered())

	require.NoError(t, slow.Close())
	assert.Equal(t, 0, tee.Buffered())

	go pw.Write([]byte("three"))
	assert.Equal(t, []string{"three"}, readN(t, fast, 1))

	_, err := slow.Next(context.Background())
	assert.ErrorIs(t, err, ErrConsumerClosed)
	pw.Close()
}

func TestCloseUnblocksWaitingNext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	a, _ := Split(pr)

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	a.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrConsumerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestCancelledNextKeepsChunk(t *testing.T) {
	pr, pw := io.Pipe()
	a, _ := Split(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Data that arrives after the abandoned wait is still delivered.
	go pw.Write([]byte("late"))
	assert.Equal(t, []string{"late"}, readN(t, a, 1))
	pw.Close()
}

func TestTryNext(t *testing.T) {
	pr, pw := io.Pipe()
	a, _ := Split(pr)

	_, ok := a.TryNext()
	assert.False(t, ok)

	pw.Write([]byte("x"))
	require.Eventually(t, func() bool { return a.Lag() == 1 }, time.Second, time.Millisecond)

	chunk, ok := a.TryNext()
	assert.True(t, ok)
	assert.Equal(t, "x", string(chunk))
	pw.Close()
}

func TestReadErrorPropagates(t *testing.T) {
	pr, pw := io.Pipe()
	tee := New(pr, 2)
	a := tee.Consumers()[0]

	boom := errors.New("input/output error")
	pw.Write([]byte("last words"))
	pw.CloseWithError(boom)

	<-tee.Done()
	assert.Equal(t, boom, tee.Err())

	assert.Equal(t, []string{"last words"}, readN(t, a, 1))
	_, err := a.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCleanEOFHasNoError(t *testing.T) {
	pr, pw := io.Pipe()
	tee := New(pr, 1)
	pw.Close()

	<-tee.Done()
	assert.NoError(t, tee.Err())
}

func TestConsumerIDs(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	tee := New(pr, 3)
	for i, c := range tee.Consumers() {
		assert.Equal(t, i, c.ID())
	}
}

func TestLimitSkipsOldestUnreadChunks(t *testing.T) {
	pr, pw := io.Pipe()
	tee := New(pr, 2)
	cs := tee.Consumers()
	fast, idle := cs[0], cs[1]
	idle.SetLimit(10)

	pw.Write([]byte("0123456"))
	pw.Write([]byte("abcdefg"))
	pw.Write([]byte("xyz"))

	require.Eventually(t, func() bool {
		return idle.Dropped() == 7 && idle.Lag() == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"abcdefg", "xyz"}, readN(t, idle, 2))

	// The cap is per consumer.
	assert.Equal(t, []string{"0123456", "abcdefg", "xyz"}, readN(t, fast, 3))
	assert.Zero(t, fast.Dropped())
	assert.Equal(t, 0, tee.Buffered())
	pw.Close()
}

func TestLimitKeepsNewestChunk(t *testing.T) {
	pr, pw := io.Pipe()
	a, _ := Split(pr)
	a.SetLimit(4)

	pw.Write([]byte("longer than the limit"))
	require.Eventually(t, func() bool { return a.Lag() == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, []string{"longer than the limit"}, readN(t, a, 1))
	assert.Zero(t, a.Dropped())
	pw.Close()
}
