// Package embeddertest provides a fake Embedder with fixed vectors for tests.
package embeddertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dshills/gustavo-mcp/internal/embedder"
)

// ErrUnknownText is returned for texts that have no registered vector
var ErrUnknownText = errors.New("no vector registered for text")

// Embedder returns the vector registered for each text. Unregistered texts
// yield Default when set, otherwise ErrUnknownText.
type Embedder struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	dim     int

	// Default is returned for unregistered texts when non-nil
	Default []float32

	// Err, when set, is returned from every call
	Err error

	calls   atomic.Int64
	lastReq atomic.Value
}

// New creates a fake embedder of the given dimension
func New(dim int) *Embedder {
	return &Embedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// Set registers the vector returned for text
func (e *Embedder) Set(text string, vector ...float32) *Embedder {
	if len(vector) != e.dim {
		panic(fmt.Sprintf("embeddertest: vector for %q has dimension %d, want %d", text, len(vector), e.dim))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = vector
	return e
}

// Calls returns how many texts have been embedded
func (e *Embedder) Calls() int64 {
	return e.calls.Load()
}

// LastText returns the most recent text passed to GenerateEmbedding
func (e *Embedder) LastText() string {
	v, _ := e.lastReq.Load().(string)
	return v
}

func (e *Embedder) lookup(text string) ([]float32, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vectors[text]
	if !ok {
		if e.Default == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownText, text)
		}
		v = e.Default
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, nil
}

func (e *Embedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if err := embedder.ValidateRequest(req); err != nil {
		return nil, err
	}
	e.lastReq.Store(req.Text)
	v, err := e.lookup(req.Text)
	if err != nil {
		return nil, err
	}
	return &embedder.Embedding{Vector: v, Provider: "fake", Model: "fake-v1"}, nil
}

func (e *Embedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	if err := embedder.ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		v, err := e.lookup(text)
		if err != nil {
			return nil, err
		}
		out[i] = &embedder.Embedding{Vector: v, Provider: "fake", Model: "fake-v1"}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: "fake", Model: "fake-v1"}, nil
}

func (e *Embedder) Dimension() int   { return e.dim }
func (e *Embedder) Provider() string { return "fake" }
func (e *Embedder) Model() string    { return "fake-v1" }
func (e *Embedder) Close() error     { return nil }
