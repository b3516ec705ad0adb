package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gustavo-mcp/internal/catalog"
	"github.com/dshills/gustavo-mcp/internal/classifier"
	"github.com/dshills/gustavo-mcp/internal/embedder"
	"github.com/dshills/gustavo-mcp/internal/indexer"
	"github.com/dshills/gustavo-mcp/internal/responder"
	"github.com/dshills/gustavo-mcp/internal/storage"
	"github.com/dshills/gustavo-mcp/pkg/types"
)

// recordingClassifier matches any query containing a known word
type recordingClassifier struct {
	mu      sync.Mutex
	queries []string
	err     error
	tag     types.Tag
	score   float64
}

func (c *recordingClassifier) Classify(ctx context.Context, query string, threshold float64) (classifier.Match, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	if c.err != nil {
		return classifier.Match{}, c.err
	}
	if c.score < threshold {
		return classifier.Match{Tag: types.None(), Score: c.score}, nil
	}
	return classifier.Match{Tag: c.tag, Score: c.score}, nil
}

func (c *recordingClassifier) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

// echoResponder replies with the tag name
type echoResponder struct{}

func (echoResponder) Select(tag types.Tag) string {
	if name, ok := tag.Get(); ok {
		return "reply:" + name
	}
	return responder.DefaultFallback
}

func newTestManager(clf Classifier, config *Config) *Manager {
	return NewManager(clf, echoResponder{}, NewCacheStore(time.Hour, time.Hour), nil, config)
}

func TestContextualQuery(t *testing.T) {
	user := func(s string) types.Turn { return types.Turn{Role: types.RoleUser, Text: s} }
	bot := func(s string) types.Turn { return types.Turn{Role: types.RoleBot, Text: s} }

	tests := []struct {
		name    string
		history []types.Turn
		n       int
		want    string
	}{
		{"single", []types.Turn{user("C")}, 2, "C"},
		{"last two user turns", []types.Turn{user("A"), bot("x"), user("B"), bot("y"), user("C")}, 2, "B C"},
		{"window of one", []types.Turn{user("A"), bot("x"), user("B")}, 1, "B"},
		{"window larger than history", []types.Turn{user("A"), bot("x"), user("B")}, 5, "A B"},
		{"bot turns skipped", []types.Turn{bot("x"), bot("y"), user("A")}, 2, "A"},
		{"empty", nil, 2, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContextualQuery(tt.history, tt.n))
		})
	}
}

func TestTruncate(t *testing.T) {
	var h []types.Turn
	for i := 0; i < 5; i++ {
		h = append(h, types.Turn{Role: types.RoleUser, Text: fmt.Sprint(i)})
	}
	assert.Len(t, Truncate(h, 10), 5)
	got := Truncate(h, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].Text)
	assert.Equal(t, "4", got[2].Text)
}

func TestProcessContextComposition(t *testing.T) {
	clf := &recordingClassifier{tag: types.Some("t"), score: 0.9}
	m := newTestManager(clf, nil)
	ctx := context.Background()

	for _, msg := range []string{"A", "B", "C"} {
		_, err := m.Process(ctx, "s1", msg)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"A", "A B", "B C"}, clf.Queries())
}

func TestProcessAppendsTurns(t *testing.T) {
	clf := &recordingClassifier{tag: types.Some("greeting"), score: 0.91}
	m := newTestManager(clf, nil)

	res, err := m.Process(context.Background(), "s1", "  ciao  ")
	require.NoError(t, err)
	assert.Equal(t, "reply:greeting", res.Answer)
	assert.Equal(t, types.Some("greeting"), res.Intent)
	assert.Equal(t, 0.91, res.Confidence)
	assert.Equal(t, []types.Turn{
		{Role: types.RoleUser, Text: "ciao"},
		{Role: types.RoleBot, Text: "reply:greeting"},
	}, res.History)
	assert.Equal(t, res.History, m.History("s1"))
	assert.Equal(t, 1, m.ActiveSessions())
}

func TestProcessMissUsesFallback(t *testing.T) {
	clf := &recordingClassifier{tag: types.Some("greeting"), score: 0.2}
	m := newTestManager(clf, &Config{Threshold: 0.7})

	res, err := m.Process(context.Background(), "s1", "boh")
	require.NoError(t, err)
	assert.Equal(t, responder.DefaultFallback, res.Answer)
	assert.True(t, res.Intent.IsNone())
	assert.Equal(t, 0.2, res.Confidence)
	assert.Len(t, res.History, 2)
}

func TestProcessBlankInput(t *testing.T) {
	clf := &recordingClassifier{tag: types.Some("greeting"), score: 0.9}
	m := newTestManager(clf, nil)
	ctx := context.Background()

	_, err := m.Process(ctx, "s1", "ciao")
	require.NoError(t, err)
	before := m.History("s1")

	for _, blank := range []string{"", "   ", "\n\t"} {
		res, err := m.Process(ctx, "s1", blank)
		require.NoError(t, err)
		assert.Equal(t, EmptyInputReply, res.Answer)
		assert.True(t, res.Intent.IsNone())
		assert.Zero(t, res.Confidence)
		assert.Equal(t, before, res.History)
	}
	assert.Equal(t, before, m.History("s1"))
	assert.Len(t, clf.Queries(), 1, "blank input never reaches the classifier")

	res, err := m.Process(ctx, "fresh", " ")
	require.NoError(t, err)
	assert.Empty(t, res.History)
	assert.Equal(t, 1, m.ActiveSessions(), "blank input does not create a session")
}

func TestProcessHistoryBound(t *testing.T) {
	clf := &recordingClassifier{tag: types.Some("t"), score: 0.9}
	m := newTestManager(clf, &Config{NHistory: 2, MaxHistory: 10, Threshold: 0.5})

	for i := 0; i < 25; i++ {
		res, err := m.Process(context.Background(), "s1", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.History), 10)
		assert.Equal(t, types.RoleBot, res.History[len(res.History)-1].Role)
		if i >= 4 {
			assert.Len(t, res.History, 10)
			assert.Equal(t, fmt.Sprintf("msg %d", i-4), res.History[0].Text)
		}
	}
}

func TestProcessOddMaxHistory(t *testing.T) {
	clf := &recordingClassifier{tag: types.Some("t"), score: 0.9}
	m := newTestManager(clf, &Config{MaxHistory: 3})

	for i := 0; i < 4; i++ {
		res, err := m.Process(context.Background(), "s1", fmt.Sprint(i))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.History), 3)
		assert.Equal(t, types.RoleBot, res.History[len(res.History)-1].Role)
	}
}

func TestProcessClassifierError(t *testing.T) {
	clf := &recordingClassifier{tag: types.Some("t"), score: 0.9}
	m := newTestManager(clf, nil)
	ctx := context.Background()

	_, err := m.Process(ctx, "s1", "ciao")
	require.NoError(t, err)
	before := m.History("s1")

	clf.err = embedder.ErrProviderFailed
	_, err = m.Process(ctx, "s1", "ancora")
	assert.ErrorIs(t, err, embedder.ErrProviderFailed)
	assert.Equal(t, before, m.History("s1"), "a failed exchange leaves history untouched")
}

func TestProcessDefaultSessionID(t *testing.T) {
	m := newTestManager(&recordingClassifier{tag: types.Some("t"), score: 0.9}, nil)

	_, err := m.Process(context.Background(), "", "ciao")
	require.NoError(t, err)
	assert.Len(t, m.History(DefaultSessionID), 2)
	assert.Len(t, m.History(""), 2)

	assert.True(t, m.Reset(""))
	assert.Empty(t, m.History(DefaultSessionID))
	assert.False(t, m.Reset(DefaultSessionID), "second reset finds nothing")
}

func TestProcessSessionsAreIsolated(t *testing.T) {
	clf := &recordingClassifier{tag: types.Some("t"), score: 0.9}
	m := newTestManager(clf, nil)
	ctx := context.Background()

	_, err := m.Process(ctx, "a", "uno")
	require.NoError(t, err)
	_, err = m.Process(ctx, "b", "due")
	require.NoError(t, err)

	assert.Equal(t, []string{"uno", "due"}, clf.Queries())
	assert.Len(t, m.History("a"), 2)
	assert.Len(t, m.History("b"), 2)
}

func TestProcessConcurrentSameSession(t *testing.T) {
	clf := &recordingClassifier{tag: types.Some("t"), score: 0.9}
	m := newTestManager(clf, &Config{MaxHistory: 1000})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Process(context.Background(), "shared", fmt.Sprint(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history := m.History("shared")
	require.Len(t, history, 2*n, "no exchange may be lost")
	for i, turn := range history {
		want := types.RoleUser
		if i%2 == 1 {
			want = types.RoleBot
		}
		assert.Equal(t, want, turn.Role, "turn %d", i)
	}
	assert.Zero(t, m.locks.size())
}

func TestProcessConcurrentSessions(t *testing.T) {
	m := newTestManager(&recordingClassifier{tag: types.Some("t"), score: 0.9}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for j := 0; j < 5; j++ {
				_, err := m.Process(context.Background(), id, "ciao")
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, m.ActiveSessions())
}

// endToEnd wires the real pipeline with the deterministic local embedder
func endToEnd(t *testing.T) *Manager {
	t.Helper()
	ctx := context.Background()

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	cat := &catalog.Catalog{Intents: []catalog.Intent{
		{Tag: "greeting", Patterns: []string{"ciao", "salve"}, Responses: []string{"Ciao!"}},
	}}
	dir := t.TempDir()
	store := storage.NewFileStore(filepath.Join(dir, "intents.index"), filepath.Join(dir, "intents_meta.json"))

	snap, err := indexer.New(emb, store, nil, nil).BuildOrLoad(ctx, cat)
	require.NoError(t, err)

	clf := classifier.New(emb, snap, nil)
	sel := responder.New(cat.Responses())
	return NewManager(clf, sel, NewLRUStore(100, time.Hour), nil, &Config{NHistory: 2, MaxHistory: 10, Threshold: 0.7})
}

func TestEndToEndScenarios(t *testing.T) {
	ctx := context.Background()
	m := endToEnd(t)

	// Scenario A
	res, err := m.Process(ctx, "s1", "ciao")
	require.NoError(t, err)
	assert.Equal(t, "Ciao!", res.Answer)
	assert.Equal(t, types.Some("greeting"), res.Intent)
	assert.GreaterOrEqual(t, res.Confidence, 0.7)
	assert.Equal(t, []types.Turn{
		{Role: types.RoleUser, Text: "ciao"},
		{Role: types.RoleBot, Text: "Ciao!"},
	}, res.History)

	// Scenario B
	res, err = m.Process(ctx, "s1", "xyzzy completely unrelated text")
	require.NoError(t, err)
	assert.Equal(t, "Non ho capito bene, puoi riformulare?", res.Answer)
	assert.True(t, res.Intent.IsNone())
	assert.Len(t, res.History, 4)

	// Scenario C
	before := m.History("s1")
	res, err = m.Process(ctx, "s1", "   ")
	require.NoError(t, err)
	assert.Equal(t, "Per favore scrivi qualcosa.", res.Answer)
	assert.True(t, res.Intent.IsNone())
	assert.Zero(t, res.Confidence)
	assert.Equal(t, before, res.History)
	assert.Equal(t, before, m.History("s1"))
}

func TestEndToEndUnrelatedFreshSession(t *testing.T) {
	res, err := endToEnd(t).Process(context.Background(), "s2", "xyzzy completely unrelated text")
	require.NoError(t, err)
	assert.Equal(t, responder.DefaultFallback, res.Answer)
	assert.True(t, res.Intent.IsNone())
	assert.Less(t, res.Confidence, 0.7)
}

func TestEndToEndWireResponse(t *testing.T) {
	res, err := endToEnd(t).Process(context.Background(), "s1", "salve")
	require.NoError(t, err)

	wire := res.Response()
	assert.Equal(t, "Ciao!", wire.Answer)
	assert.InDelta(t, 1.0, wire.Confidence, 1e-9)
	assert.Len(t, wire.History, 2)
}

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager(&recordingClassifier{}, echoResponder{}, NewCacheStore(time.Minute, time.Minute), nil, &Config{})
	assert.Equal(t, DefaultNHistory, m.nHistory)
	assert.Equal(t, DefaultMaxHistory, m.maxHistory)

	m = NewManager(&recordingClassifier{}, echoResponder{}, NewCacheStore(time.Minute, time.Minute), nil, nil)
	assert.Equal(t, DefaultThreshold, m.Threshold())
}
