package embedder

import (
	"fmt"
	"strings"
)

// Config selects and tunes a provider. Provider is resolved by the caller
// (see config.EmbeddingConfig); an empty value means local.
type Config struct {
	Provider  string // jina, openai, local
	Model     string // Optional: a model from the provider's table; empty keeps the default
	APIKey    string
	BaseURL   string // Optional endpoint override for jina or openai
	CacheSize int    // 0 disables the result cache
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch provider := strings.ToLower(cfg.Provider); provider {
	case ProviderJina:
		p, err := NewJinaProvider(cfg.APIKey, cache)
		if err != nil {
			return nil, err
		}
		if cfg.BaseURL != "" {
			p.WithURL(cfg.BaseURL)
		}
		if cfg.Model != "" {
			if err := p.SetModel(cfg.Model); err != nil {
				return nil, err
			}
		}
		return p, nil
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cache)
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			if err := p.SetModel(cfg.Model); err != nil {
				return nil, err
			}
		}
		return p, nil
	case ProviderLocal, "":
		if cfg.Model != "" && cfg.Model != DefaultLocalModel {
			return nil, fmt.Errorf("%w: %s only serves %q", ErrUnsupportedModel, ProviderLocal, DefaultLocalModel)
		}
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
