// Package embedder maps text to dense vectors for intent retrieval.
//
// Three providers implement the Embedder interface: Jina AI (HTTP), OpenAI
// (through github.com/sashabaranov/go-openai) and a local provider that needs
// no network access.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: embedder.ProviderLocal, CacheSize: 1000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: "a che ora apre la scuola"})
//	unit := embedder.NormalizeVector(result.Vector)
//
// GenerateBatch embeds up to MaxBatchSize texts in one call and returns them in
// request order. The index builder uses it while building the corpus.
//
// # Provider and Model Selection
//
// New takes an already resolved provider name; config.EmbeddingConfig picks it
// from GUSTAVO_EMBEDDING_PROVIDER or the available API keys. Config.Model
// selects another model from the provider's table and fixes Dimension
// accordingly. Models outside the table fail with ErrUnsupportedModel.
//
// Vectors from different providers or models live in different spaces.
// Changing either requires rebuilding the persisted index.
//
// # Local Provider
//
// The local provider hashes lowercase word tokens and character trigrams into
// LocalDimension buckets with a sign bit, then normalizes. Identical texts get a
// similarity of 1 and texts that share no words or trigrams land near 0. It is
// deterministic across runs and platforms.
//
// # Caching
//
// Every provider takes an optional LRU Cache keyed by SHA-256 of model and
// text. Only cache misses reach the remote API. Providers implement
// CacheReporter so hit and miss counts can be reported.
//
// # Error Handling
//
// Transient API failures are retried with exponential backoff. 4xx responses
// other than 429 fail immediately. Exhausted retries surface as
// ErrProviderFailed:
//
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // embedding service unavailable
//	}
package embedder
