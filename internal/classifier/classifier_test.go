package classifier

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gustavo-mcp/internal/catalog"
	"github.com/dshills/gustavo-mcp/internal/embedder"
	"github.com/dshills/gustavo-mcp/internal/embedder/embeddertest"
	"github.com/dshills/gustavo-mcp/internal/indexer"
	"github.com/dshills/gustavo-mcp/internal/storage"
	"github.com/dshills/gustavo-mcp/pkg/types"
)

func buildSnapshot(t *testing.T, emb embedder.Embedder, cat *catalog.Catalog) *indexer.Snapshot {
	t.Helper()
	dir := t.TempDir()
	store := storage.NewFileStore(filepath.Join(dir, "i.index"), filepath.Join(dir, "i.json"))
	snap, err := indexer.New(emb, store, nil, nil).Build(context.Background(), cat)
	require.NoError(t, err)
	return snap
}

func fixture(t *testing.T) (*embeddertest.Embedder, *Classifier) {
	t.Helper()
	emb := embeddertest.New(2).
		Set("ciao", 1, 0).
		Set("arrivederci", 0, 1).
		Set("quasi ciao", 0.8, 0.6).
		Set("in mezzo", 1, 1).
		Set("lontano", -1, 0)
	cat := &catalog.Catalog{Intents: []catalog.Intent{
		{Tag: "greeting", Patterns: []string{"ciao"}, Responses: []string{"Ciao!"}},
		{Tag: "goodbye", Patterns: []string{"arrivederci"}, Responses: []string{"Arrivederci!"}},
	}}
	return emb, New(emb, buildSnapshot(t, emb, cat), nil)
}

func TestClassifyExactMatch(t *testing.T) {
	_, c := fixture(t)

	m, err := c.Classify(context.Background(), "ciao", 0.7)
	require.NoError(t, err)
	tag, ok := m.Tag.Get()
	require.True(t, ok)
	assert.Equal(t, "greeting", tag)
	assert.InDelta(t, 1.0, m.Score, 1e-6)
	assert.Equal(t, 0, m.Row)
	assert.Equal(t, "ciao", m.Text)
}

func TestClassifyBelowThreshold(t *testing.T) {
	_, c := fixture(t)

	m, err := c.Classify(context.Background(), "lontano", 0.5)
	require.NoError(t, err)
	assert.True(t, m.Tag.IsNone())
	assert.InDelta(t, 0.0, m.Score, 1e-6, "score is reported even on a miss")
}

func TestClassifyThresholdMonotonic(t *testing.T) {
	_, c := fixture(t)
	ctx := context.Background()

	base, err := c.Classify(ctx, "quasi ciao", 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, base.Score, 1e-6)

	thresholds := []float64{0, 0.3, 0.79, 0.8, 0.81, 0.95, 1.0}
	seenMiss := false
	for _, th := range thresholds {
		m, err := c.Classify(ctx, "quasi ciao", th)
		require.NoError(t, err)
		assert.InDelta(t, base.Score, m.Score, 1e-9)
		if m.Tag.IsNone() {
			seenMiss = true
			continue
		}
		assert.False(t, seenMiss, "a higher threshold must never turn a miss into a match (threshold %v)", th)
		assert.Equal(t, types.Some("greeting"), m.Tag)
	}
	assert.True(t, seenMiss)
}

func TestClassifyScoreAtThresholdMatches(t *testing.T) {
	_, c := fixture(t)

	base, err := c.Classify(context.Background(), "quasi ciao", 0)
	require.NoError(t, err)

	m, err := c.Classify(context.Background(), "quasi ciao", base.Score)
	require.NoError(t, err)
	assert.False(t, m.Tag.IsNone())
}

func TestClassifyTieResolvesToFirstRow(t *testing.T) {
	_, c := fixture(t)

	m, err := c.Classify(context.Background(), "in mezzo", 0.5)
	require.NoError(t, err)
	assert.Equal(t, types.Some("greeting"), m.Tag)
	assert.Equal(t, 0, m.Row)
}

func TestClassifyDeterministic(t *testing.T) {
	_, c := fixture(t)
	ctx := context.Background()

	first, err := c.Classify(ctx, "quasi ciao", 0.5)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		m, err := c.Classify(ctx, "quasi ciao", 0.5)
		require.NoError(t, err)
		assert.Equal(t, first, m)
	}
}

func TestClassifyBlankQuery(t *testing.T) {
	emb, c := fixture(t)

	for _, q := range []string{"", "   ", "\t\n"} {
		m, err := c.Classify(context.Background(), q, 0.5)
		require.NoError(t, err)
		assert.True(t, m.Tag.IsNone())
		assert.Zero(t, m.Score)
		assert.Equal(t, -1, m.Row)
	}
	assert.Zero(t, emb.Calls(), "blank queries are never embedded")
}

func TestClassifyNoIndex(t *testing.T) {
	c := New(embeddertest.New(2), nil, nil)

	_, err := c.Classify(context.Background(), "ciao", 0.5)
	assert.ErrorIs(t, err, ErrNoIndex)
	assert.Nil(t, c.Snapshot())
}

func TestClassifyEmbedderError(t *testing.T) {
	emb, c := fixture(t)
	emb.Err = embedder.ErrProviderFailed

	_, err := c.Classify(context.Background(), "ciao", 0.5)
	assert.ErrorIs(t, err, embedder.ErrProviderFailed)
}

func TestClassifyUnnormalizedQuery(t *testing.T) {
	emb, c := fixture(t)
	emb.Set("forte", 10, 0)

	m, err := c.Classify(context.Background(), "forte", 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.Score, 1e-6)
}

func TestSwap(t *testing.T) {
	emb, c := fixture(t)
	ctx := context.Background()

	emb.Set("meteo", 0, -1).Set("che tempo fa", 0, -1)
	next := buildSnapshot(t, emb, &catalog.Catalog{Intents: []catalog.Intent{
		{Tag: "weather", Patterns: []string{"che tempo fa"}, Responses: []string{"Sole."}},
	}})

	old := c.Snapshot()
	c.Swap(next)
	assert.Same(t, next, c.Snapshot())
	assert.NotSame(t, old, c.Snapshot())

	m, err := c.Classify(ctx, "meteo", 0.5)
	require.NoError(t, err)
	assert.Equal(t, types.Some("weather"), m.Tag)
}

func TestClassifyConcurrentWithSwap(t *testing.T) {
	emb, c := fixture(t)
	snap := c.Snapshot()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m, err := c.Classify(context.Background(), "ciao", 0.7)
				assert.NoError(t, err)
				assert.Equal(t, types.Some("greeting"), m.Tag)
			}
		}()
	}
	for j := 0; j < 50; j++ {
		c.Swap(snap)
	}
	wg.Wait()
	assert.Positive(t, emb.Calls())
}
