package responder

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dshills/gustavo-mcp/internal/catalog"
	"github.com/dshills/gustavo-mcp/pkg/types"
)

// DefaultFallback is the reply used when no intent matched
const DefaultFallback = "Non ho capito bene, puoi riformulare?"

// Source picks an index in [0, n). *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// Selector picks a canned response for a classified intent
type Selector struct {
	table    catalog.ResponseTable
	fallback string

	mu  sync.Mutex // *rand.Rand is not safe for concurrent use
	src Source
}

// Option configures a Selector
type Option func(*Selector)

// WithFallback overrides DefaultFallback. An empty string is ignored.
func WithFallback(reply string) Option {
	return func(s *Selector) {
		if reply != "" {
			s.fallback = reply
		}
	}
}

// WithSource injects the random source, typically a seeded stub in tests
func WithSource(src Source) Option {
	return func(s *Selector) {
		if src != nil {
			s.src = src
		}
	}
}

// New creates a Selector over table
func New(table catalog.ResponseTable, opts ...Option) *Selector {
	now := uint64(time.Now().UnixNano())
	s := &Selector{
		table:    table,
		fallback: DefaultFallback,
		src:      rand.New(rand.NewPCG(now, now>>32|1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fallback returns the reply used for misses
func (s *Selector) Fallback() string {
	return s.fallback
}

// Select returns a uniformly chosen response for tag, or the fallback when tag
// is None or has no responses
func (s *Selector) Select(tag types.Tag) string {
	name, ok := tag.Get()
	if !ok {
		return s.fallback
	}
	responses, ok := s.table.Lookup(name)
	if !ok || len(responses) == 0 {
		return s.fallback
	}
	if len(responses) == 1 {
		return responses[0]
	}

	s.mu.Lock()
	i := s.src.IntN(len(responses))
	s.mu.Unlock()
	return responses[i]
}
