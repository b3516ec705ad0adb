package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gustavo-mcp/internal/catalog"
	"github.com/dshills/gustavo-mcp/internal/embedder"
	"github.com/dshills/gustavo-mcp/internal/storage"
	"github.com/dshills/gustavo-mcp/pkg/types"
)

// ErrIndexingInProgress is returned when a build is requested while another is running
var ErrIndexingInProgress = errors.New("indexing already in progress")

// StalePolicy decides what happens when persisted artifacts were built from a
// different catalog than the one currently loaded
type StalePolicy string

const (
	// StaleWarn keeps the persisted artifacts and logs a warning
	StaleWarn StalePolicy = "warn"
	// StaleRebuild re-embeds the catalog and overwrites the artifacts
	StaleRebuild StalePolicy = "rebuild"
)

// Indexer turns an intent catalog into a searchable snapshot, reusing persisted
// artifacts when they exist
type Indexer struct {
	embedder embedder.Embedder
	store    storage.Store
	logger   *zap.Logger

	// Worker pool configuration
	workers     int
	batchSize   int
	stalePolicy StalePolicy

	lock IndexLock
}

// Config contains configuration for the indexer
type Config struct {
	Workers     int         // Concurrent embedding batches (default: runtime.NumCPU())
	BatchSize   int         // Texts per embedding call (default: embedder.DefaultBatchSize, max embedder.MaxBatchSize)
	StalePolicy StalePolicy // Default: StaleWarn
}

// Snapshot is an immutable, searchable view of the corpus. Row i of Index
// corresponds to Records[i].
type Snapshot struct {
	Index       *storage.Index
	Records     []storage.Record
	Fingerprint [32]byte
	BuiltAt     time.Time

	// Loaded is true when the snapshot came from persisted artifacts
	Loaded bool
	// Stale is true when a loaded snapshot does not match the current catalog
	Stale bool
}

// FingerprintHex returns the catalog fingerprint as a hex string
func (s *Snapshot) FingerprintHex() string {
	return hex.EncodeToString(s.Fingerprint[:])
}

// CountByTag returns the number of example rows per intent tag
func (s *Snapshot) CountByTag() map[string]int {
	counts := make(map[string]int)
	for _, r := range s.Records {
		counts[r.Tag]++
	}
	return counts
}

// New creates a new Indexer instance. A nil logger disables logging.
func New(emb embedder.Embedder, store storage.Store, logger *zap.Logger, config *Config) *Indexer {
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Indexer{
		embedder:    emb,
		store:       store,
		logger:      logger,
		workers:     config.Workers,
		batchSize:   config.BatchSize,
		stalePolicy: config.StalePolicy,
	}
	if idx.workers <= 0 {
		idx.workers = runtime.NumCPU()
	}
	if idx.batchSize <= 0 {
		idx.batchSize = embedder.DefaultBatchSize
	}
	if idx.batchSize > embedder.MaxBatchSize {
		idx.batchSize = embedder.MaxBatchSize
	}
	if idx.stalePolicy == "" {
		idx.stalePolicy = StaleWarn
	}
	return idx
}

// Building reports whether a build is currently running
func (idx *Indexer) Building() bool {
	return idx.lock.Held()
}

// BuildOrLoad returns the persisted snapshot when both artifacts exist, without
// re-embedding anything. Otherwise it embeds every catalog pattern, persists
// the result and returns it.
func (idx *Indexer) BuildOrLoad(ctx context.Context, cat *catalog.Catalog) (*Snapshot, error) {
	exists, err := idx.store.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check index artifacts: %w", err)
	}
	if !exists {
		idx.logger.Info("index artifacts not found, building", zap.String("location", idx.store.Location()))
		return idx.Rebuild(ctx, cat)
	}

	start := time.Now()
	artifacts, err := idx.store.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrCorruptIndex) {
			return nil, fmt.Errorf("%w: %s: %w", types.ErrConfiguration, idx.store.Location(), err)
		}
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	snap := &Snapshot{
		Index:       artifacts.Index,
		Records:     artifacts.Records,
		Fingerprint: artifacts.Fingerprint,
		BuiltAt:     artifacts.BuiltAt,
		Loaded:      true,
	}

	if err := idx.checkLoaded(snap, cat); err != nil {
		return nil, err
	}

	if snap.Stale && idx.stalePolicy == StaleRebuild {
		idx.logger.Info("rebuilding stale index", zap.String("location", idx.store.Location()))
		return idx.Rebuild(ctx, cat)
	}

	idx.logger.Info("index loaded",
		zap.String("location", idx.store.Location()),
		zap.Int("rows", snap.Index.Len()),
		zap.Int("dimension", snap.Index.Dimension()),
		zap.Bool("stale", snap.Stale),
		zap.Duration("duration", time.Since(start)),
	)
	return snap, nil
}

// checkLoaded validates a persisted snapshot against the catalog and embedder
func (idx *Indexer) checkLoaded(snap *Snapshot, cat *catalog.Catalog) error {
	if snap.Index.Len() == 0 {
		return types.ConfigurationErrorf("persisted index at %s is empty", idx.store.Location())
	}

	responses := cat.Responses()
	for i, rec := range snap.Records {
		if !responses.Has(rec.Tag) {
			return types.ConfigurationErrorf("index row %d has tag %q with no responses", i, rec.Tag)
		}
	}

	if dim := idx.embedder.Dimension(); snap.Index.Dimension() != dim {
		if idx.stalePolicy != StaleRebuild {
			return types.ConfigurationErrorf("persisted index has dimension %d, embedder %s produces %d",
				snap.Index.Dimension(), idx.embedder.Model(), dim)
		}
		snap.Stale = true
		return nil
	}

	var unknown [32]byte
	if snap.Fingerprint == unknown {
		idx.logger.Debug("persisted index has no catalog fingerprint", zap.String("location", idx.store.Location()))
		return nil
	}
	if snap.Fingerprint != cat.Fingerprint() {
		snap.Stale = true
		idx.logger.Warn("persisted index was built from a different catalog",
			zap.String("location", idx.store.Location()),
			zap.String("policy", string(idx.stalePolicy)),
		)
	}
	return nil
}

// Rebuild embeds the catalog and replaces the persisted artifacts, ignoring
// whatever is already stored. Returns ErrIndexingInProgress if a build is running.
func (idx *Indexer) Rebuild(ctx context.Context, cat *catalog.Catalog) (*Snapshot, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	snap, err := idx.Build(ctx, cat)
	if err != nil {
		return nil, err
	}

	artifacts := &storage.Artifacts{
		Index:       snap.Index,
		Records:     snap.Records,
		Fingerprint: snap.Fingerprint,
		BuiltAt:     snap.BuiltAt,
	}
	if err := idx.store.Save(ctx, artifacts); err != nil {
		return nil, fmt.Errorf("failed to persist index: %w", err)
	}

	idx.logger.Info("index built",
		zap.String("location", idx.store.Location()),
		zap.Int("rows", snap.Index.Len()),
		zap.Int("dimension", snap.Index.Dimension()),
		zap.String("provider", idx.embedder.Provider()),
		zap.String("model", idx.embedder.Model()),
		zap.Duration("duration", time.Since(start)),
	)
	return snap, nil
}

// Build embeds every (tag, pattern) pair in catalog order and returns an
// in-memory snapshot. Nothing is persisted.
func (idx *Indexer) Build(ctx context.Context, cat *catalog.Catalog) (*Snapshot, error) {
	examples := cat.Examples()
	if len(examples) == 0 {
		return nil, types.ConfigurationErrorf("catalog has no patterns to index")
	}

	texts := make([]string, len(examples))
	records := make([]storage.Record, len(examples))
	for i, ex := range examples {
		texts[i] = ex.Text
		records[i] = storage.Record{Tag: ex.Tag, Text: ex.Text}
	}

	vectors, err := idx.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	index := storage.NewIndex(len(vectors[0]))
	if err := index.Add(vectors...); err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	return &Snapshot{
		Index:       index,
		Records:     records,
		Fingerprint: cat.Fingerprint(),
		BuiltAt:     time.Now().UTC(),
	}, nil
}

// embedAll embeds texts in concurrent batches and returns unit vectors in input order
func (idx *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	// Use errgroup for concurrent processing with error propagation
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i := 0; i < len(texts); i += idx.batchSize {
		end := i + idx.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		offset, batch := i, texts[i:end]

		g.Go(func() error {
			resp, err := idx.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: batch})
			if err != nil {
				return fmt.Errorf("failed to embed patterns %d-%d: %w", offset, offset+len(batch)-1, err)
			}
			if len(resp.Embeddings) != len(batch) {
				return fmt.Errorf("%w: got %d embeddings for %d patterns", embedder.ErrProviderFailed, len(resp.Embeddings), len(batch))
			}
			// Each goroutine owns a disjoint range of vectors
			for j, emb := range resp.Embeddings {
				vectors[offset+j] = embedder.NormalizeVector(emb.Vector)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
