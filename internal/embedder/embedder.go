package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding is one text's vector and the model that produced it. Vectors are
// returned as the provider sends them; callers normalize.
type Embedding struct {
	Vector   []float32
	Provider string
	Model    string
}

// EmbeddingRequest embeds a single text with the provider's configured model
type EmbeddingRequest struct {
	Text string
}

// BatchEmbeddingRequest embeds up to MaxBatchSize texts in one call
type BatchEmbeddingRequest struct {
	Texts []string
}

// BatchEmbeddingResponse holds one embedding per request text, in request order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder maps text to fixed-dimension dense vectors. Implementations must be
// deterministic for a given model version and safe for concurrent use.
type Embedder interface {
	// GenerateEmbedding embeds one text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch embeds several texts, in request order
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	Dimension() int
	Provider() string
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// CacheStats describes the state of an embedding cache
type CacheStats struct {
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
}

// CacheReporter is implemented by embedders that keep a result cache.
// ok is false when caching is disabled.
type CacheReporter interface {
	CacheStats() (stats CacheStats, ok bool)
}

// Cache is an LRU of vectors keyed by model and text. A nil *Cache is valid
// and never hits, so providers can run uncached without branching.
type Cache struct {
	entries  *lru.Cache[string, []float32]
	capacity int
	hits     atomic.Uint64
	misses   atomic.Uint64
}

// NewCache creates a cache holding up to capacity vectors
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	entries, err := lru.New[string, []float32](capacity)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Cache{entries: entries, capacity: capacity}
}

// Get returns a copy of the cached vector for text under model
func (c *Cache) Get(model, text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.entries.Get(cacheKey(model, text))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Add stores a copy of vector for text under model
func (c *Cache) Add(model, text string, vector []float32) {
	if c == nil {
		return
	}
	v := make([]float32, len(vector))
	copy(v, vector)
	c.entries.Add(cacheKey(model, text), v)
}

func (c *Cache) Stats() (CacheStats, bool) {
	if c == nil {
		return CacheStats{}, false
	}
	return CacheStats{
		Entries:  c.entries.Len(),
		Capacity: c.capacity,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}, true
}

// cacheKey scopes a text to a model so switching models never serves stale vectors
func cacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func ValidateRequest(req EmbeddingRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest rejects empty batches, blank texts and batches over MaxBatchSize
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if len(req.Texts) > MaxBatchSize {
		return fmt.Errorf("%w: %d texts, max %d", ErrBatchTooLarge, len(req.Texts), MaxBatchSize)
	}
	for i, text := range req.Texts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
