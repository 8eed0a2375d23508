// Package id generates the prefixed ULIDs used to name terminals and requests.
//
// ULIDs sort by creation time, so listing terminals by ID is listing them by
// age. Prefixes keep IDs readable in logs:
//   - term_*: a hosted shell terminal
//   - req_*: an API request
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TerminalID identifies a hosted terminal
type TerminalID string

// RequestID identifies an API request
type RequestID string

const (
	TerminalPrefix = "term"
	RequestPrefix  = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests use it for deterministic IDs.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewTerminalID generates a new terminal ID
func (g *Generator) NewTerminalID() TerminalID {
	return TerminalID(g.GenerateWithPrefix(TerminalPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id TerminalID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }

// ParseTerminalID validates s as a terminal ID
func ParseTerminalID(s string) (TerminalID, error) {
	raw, ok := strings.CutPrefix(s, TerminalPrefix+"_")
	if !ok {
		return "", fmt.Errorf("invalid terminal ID %q: missing %s_ prefix", s, TerminalPrefix)
	}
	if _, err := ulid.Parse(raw); err != nil {
		return "", fmt.Errorf("invalid terminal ID %q: %w", s, err)
	}
	return TerminalID(s), nil
}

// Timestamp extracts the creation time from a prefixed or bare ULID
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
