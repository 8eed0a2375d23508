package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

func TestScreenSubscribe(t *testing.T) {
	s := NewScreen(1024, shell.Size{Cols: 80, Rows: 24})
	s.Write([]byte("before"))

	snapshot, ch, cancel := s.Subscribe()
	defer cancel()
	assert.Equal(t, "before", string(snapshot))

	s.Write([]byte("after"))
	assert.Equal(t, "after", string(<-ch))
}

func TestScreenDropsLaggingSubscriber(t *testing.T) {
	s := NewScreen(1024, shell.Size{})
	_, ch, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i <= subscriberBuffer; i++ {
		s.Write([]byte("x"))
	}

	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
}

func TestScreenInput(t *testing.T) {
	s := NewScreen(1024, shell.Size{})
	assert.ErrorIs(t, s.Input([]byte("ls")), ErrInputUnavailable)

	var got []byte
	s.OnData(func(b []byte) { got = append(got, b...) })
	require.NoError(t, s.Input([]byte("ls")))
	assert.Equal(t, "ls", string(got))

	s.Close()
	assert.ErrorIs(t, s.Input([]byte("ls")), shell.ErrTerminated)
}

func TestScreenClose(t *testing.T) {
	s := NewScreen(1024, shell.Size{})
	s.Write([]byte("kept"))
	_, ch, cancel := s.Subscribe()

	s.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	snapshot, late, _ := s.Subscribe()
	assert.Equal(t, "kept", string(snapshot))
	_, ok = <-late
	assert.False(t, ok)
}

func TestScreenSize(t *testing.T) {
	s := NewScreen(16, shell.Size{Cols: 80, Rows: 15})
	assert.Equal(t, shell.Size{Cols: 80, Rows: 15}, s.Size())
	s.SetSize(shell.Size{Cols: 100, Rows: 30})
	assert.Equal(t, shell.Size{Cols: 100, Rows: 30}, s.Size())
}
