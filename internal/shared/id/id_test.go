package id

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
	if id1.Compare(id2) >= 0 {
		t.Error("IDs from one generator should be increasing")
	}
}

func TestNewTerminalID(t *testing.T) {
	gen := NewGenerator()
	tid := gen.NewTerminalID()

	if !strings.HasPrefix(tid.String(), "term_") {
		t.Fatalf("terminal ID should start with 'term_', got: %s", tid)
	}
	if len(tid) != len("term_")+26 {
		t.Errorf("unexpected terminal ID length: %s", tid)
	}

	parsed, err := ParseTerminalID(tid.String())
	if err != nil {
		t.Fatalf("ParseTerminalID failed: %v", err)
	}
	if parsed != tid {
		t.Errorf("expected %s, got %s", tid, parsed)
	}
}

func TestParseTerminalIDRejects(t *testing.T) {
	for _, s := range []string{"", "term_", "req_01HZXJ5Y0G6M7T8Q9R0S1T2V3W", "term_not-a-ulid", "01HZXJ5Y0G6M7T8Q9R0S1T2V3W"} {
		if _, err := ParseTerminalID(s); err == nil {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	tid := NewGenerator().NewTerminalID()

	ts, err := Timestamp(tid.String())
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("timestamp %v out of range", ts)
	}

	if _, err := Timestamp("term_garbage"); err == nil {
		t.Error("expected error for invalid ULID")
	}
}

func TestDeterministicEntropy(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 64)
	a := NewGeneratorWithEntropy(bytes.NewReader(seed)).Generate()
	b := NewGeneratorWithEntropy(bytes.NewReader(seed)).Generate()

	if !bytes.Equal(a.Entropy(), b.Entropy()) {
		t.Error("same entropy source should yield same entropy bytes")
	}
}

func TestRequestID(t *testing.T) {
	if !strings.HasPrefix(NewRequestID().String(), "req_") {
		t.Error("request ID should start with 'req_'")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	const n = 200

	var mu sync.Mutex
	seen := make(map[TerminalID]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tid := gen.NewTerminalID()
			mu.Lock()
			seen[tid] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d unique IDs, got %d", n, len(seen))
	}
}
