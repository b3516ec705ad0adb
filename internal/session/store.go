package session

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/patrickmn/go-cache"

	"github.com/dshills/gustavo-mcp/pkg/types"
)

// Supported session store kinds
const (
	StoreTTL = "ttl"
	StoreLRU = "lru"
)

// Store keeps conversation histories by session ID. Implementations must be
// safe for concurrent use and must not retain the caller's slice.
type Store interface {
	Get(sessionID string) ([]types.Turn, bool)
	Save(sessionID string, turns []types.Turn)
	Delete(sessionID string)
	Len() int
}

// CacheStore expires sessions after a period without activity
type CacheStore struct {
	cache *cache.Cache
}

// NewCacheStore creates a store whose sessions expire ttl after their last
// save; expired entries are purged every cleanup interval
func NewCacheStore(ttl, cleanup time.Duration) *CacheStore {
	return &CacheStore{cache: cache.New(ttl, cleanup)}
}

func (s *CacheStore) Get(sessionID string) ([]types.Turn, bool) {
	if x, found := s.cache.Get(sessionID); found {
		return types.CloneTurns(x.([]types.Turn)), true
	}
	return nil, false
}

func (s *CacheStore) Save(sessionID string, turns []types.Turn) {
	s.cache.Set(sessionID, types.CloneTurns(turns), cache.DefaultExpiration)
}

func (s *CacheStore) Delete(sessionID string) {
	s.cache.Delete(sessionID)
}

func (s *CacheStore) Len() int {
	return s.cache.ItemCount()
}

// LRUStore caps the number of live sessions, evicting the least recently used,
// and also expires idle sessions after ttl
type LRUStore struct {
	cache *expirable.LRU[string, []types.Turn]
}

// NewLRUStore creates a store holding at most size sessions. A zero ttl disables expiry.
func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	return &LRUStore{cache: expirable.NewLRU[string, []types.Turn](size, nil, ttl)}
}

func (s *LRUStore) Get(sessionID string) ([]types.Turn, bool) {
	turns, ok := s.cache.Get(sessionID)
	if !ok {
		return nil, false
	}
	return types.CloneTurns(turns), true
}

func (s *LRUStore) Save(sessionID string, turns []types.Turn) {
	s.cache.Add(sessionID, types.CloneTurns(turns))
}

func (s *LRUStore) Delete(sessionID string) {
	s.cache.Remove(sessionID)
}

func (s *LRUStore) Len() int {
	return s.cache.Len()
}
