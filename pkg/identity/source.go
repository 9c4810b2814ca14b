package identity

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// UUIDSource issues random (version 4) UUID strings.
type UUIDSource struct{}

// NewID returns a new globally unique identifier.
func (UUIDSource) NewID() string {
	return uuid.NewString()
}

// Sequence issues deterministic identifiers of the form "<prefix>-<n>",
// starting at 1. It is safe for concurrent use.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequence creates a sequence. An empty prefix defaults to "n".
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "n"
	}
	return &Sequence{prefix: prefix, next: 1}
}

// NewID returns the next identifier in the sequence.
func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("%s-%d", s.prefix, s.next)
	s.next++
	return id
}

// IsUUID reports whether id parses as a UUID.
func IsUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
