package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/gustavo-mcp/internal/embedder"
	"github.com/dshills/gustavo-mcp/internal/indexer"
	"github.com/dshills/gustavo-mcp/pkg/types"
)

// ErrNoIndex is returned when classifying before a snapshot has been published
var ErrNoIndex = errors.New("no index loaded")

// Match is the outcome of classifying one query. Tag is None when the best
// score falls below the threshold; Score is reported either way.
type Match struct {
	Tag   types.Tag
	Score float64
	Row   int    // Best row, -1 for a blank query
	Text  string // Example phrase of the best row
}

// Classifier maps a query to the nearest example phrase and its intent
type Classifier struct {
	embedder embedder.Embedder
	snapshot atomic.Pointer[indexer.Snapshot]
	logger   *zap.Logger
}

// New creates a classifier serving snap. A nil logger disables logging.
func New(emb embedder.Embedder, snap *indexer.Snapshot, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{embedder: emb, logger: logger}
	if snap != nil {
		c.snapshot.Store(snap)
	}
	return c
}

// Snapshot returns the snapshot currently being served
func (c *Classifier) Snapshot() *indexer.Snapshot {
	return c.snapshot.Load()
}

// Swap publishes a new snapshot. In-flight classifications finish against the old one.
func (c *Classifier) Swap(snap *indexer.Snapshot) {
	c.snapshot.Store(snap)
}

// Classify embeds query and returns the intent of the nearest example when its
// cosine similarity is at least threshold. Equal scores resolve to the lowest row.
func (c *Classifier) Classify(ctx context.Context, query string, threshold float64) (Match, error) {
	if strings.TrimSpace(query) == "" {
		return Match{Tag: types.None(), Row: -1}, nil
	}

	snap := c.snapshot.Load()
	if snap == nil {
		return Match{}, ErrNoIndex
	}

	start := time.Now()
	emb, err := c.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return Match{}, fmt.Errorf("failed to embed query: %w", err)
	}

	scores, rows, err := snap.Index.Search(embedder.NormalizeVector(emb.Vector), 1)
	if err != nil {
		return Match{}, fmt.Errorf("search failed: %w", err)
	}

	best := rows[0]
	m := Match{
		Tag:   types.None(),
		Score: scores[0],
		Row:   best,
		Text:  snap.Records[best].Text,
	}
	if m.Score >= threshold {
		m.Tag = types.Some(snap.Records[best].Tag)
	} else {
		c.logger.Debug("classification below threshold",
			zap.String("query", query),
			zap.String("nearest", snap.Records[best].Tag),
			zap.Float64("score", m.Score),
			zap.Float64("threshold", threshold),
		)
	}

	c.logger.Debug("classified",
		zap.Stringer("intent", m.Tag),
		zap.Float64("score", m.Score),
		zap.Duration("duration", time.Since(start)),
	)
	return m, nil
}
