package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// Feature weights for the local provider
const (
	localWordWeight    = 1.0
	localTrigramWeight = 0.5
)

// LocalProvider embeds text offline with signed feature hashing over lowercase
// word tokens and character trigrams. It needs no model files or network access
// and is fully deterministic, which makes it suitable for development, tests and
// small catalogs where lexical overlap is a good enough similarity signal.
type LocalProvider struct {
	model     string
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: LocalDimension,
		cache:     cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec, ok := l.cache.Get(l.model, req.Text)
	if !ok {
		vec = l.embed(req.Text)
		l.cache.Add(l.model, req.Text, vec)
	}

	return &Embedding{Vector: vec, Provider: ProviderLocal, Model: l.model}, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) CacheStats() (CacheStats, bool) {
	return l.cache.Stats()
}

func (l *LocalProvider) Close() error {
	return nil
}

func (l *LocalProvider) embed(text string) []float32 {
	vec := make([]float32, l.dimension)
	for _, tok := range tokenize(text) {
		l.addFeature(vec, "w:"+tok, localWordWeight)

		runes := []rune("^" + tok + "$")
		for i := 0; i+3 <= len(runes); i++ {
			l.addFeature(vec, "c:"+string(runes[i:i+3]), localTrigramWeight)
		}
	}
	return NormalizeVector(vec)
}

// addFeature hashes a feature into a bucket; the top hash bit picks the sign so
// collisions cancel out on average instead of inflating similarity
func (l *LocalProvider) addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(len(vec)))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// tokenize lowercases text and splits it on anything that is not a letter or digit
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
