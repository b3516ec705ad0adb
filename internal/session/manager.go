package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/gustavo-mcp/internal/classifier"
	"github.com/dshills/gustavo-mcp/pkg/types"
)

// Defaults for the conversation window
const (
	DefaultSessionID  = "default"
	DefaultNHistory   = 2
	DefaultMaxHistory = 10
	DefaultThreshold  = 0.5

	// EmptyInputReply answers blank messages without classifying them
	EmptyInputReply = "Per favore scrivi qualcosa."
)

// Classifier finds the intent for a contextual query
type Classifier interface {
	Classify(ctx context.Context, query string, threshold float64) (classifier.Match, error)
}

// Responder turns a classification outcome into a reply
type Responder interface {
	Select(tag types.Tag) string
}

// Config contains the conversation window settings
type Config struct {
	NHistory   int     // User turns folded into the query (default: DefaultNHistory)
	MaxHistory int     // Turns kept per session, both roles (default: DefaultMaxHistory)
	Threshold  float64 // Minimum cosine similarity for a match
}

// DefaultConfig returns the standard window settings
func DefaultConfig() *Config {
	return &Config{
		NHistory:   DefaultNHistory,
		MaxHistory: DefaultMaxHistory,
		Threshold:  DefaultThreshold,
	}
}

// Manager runs chat exchanges against per-session histories
type Manager struct {
	classifier Classifier
	responder  Responder
	store      Store
	logger     *zap.Logger
	locks      *keyMutex

	nHistory   int
	maxHistory int
	threshold  float64
}

// NewManager creates a session manager. A nil config uses DefaultConfig.
func NewManager(clf Classifier, resp Responder, store Store, logger *zap.Logger, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		classifier: clf,
		responder:  resp,
		store:      store,
		logger:     logger,
		locks:      newKeyMutex(),
		nHistory:   config.NHistory,
		maxHistory: config.MaxHistory,
		threshold:  config.Threshold,
	}
	if m.nHistory <= 0 {
		m.nHistory = DefaultNHistory
	}
	if m.maxHistory <= 0 {
		m.maxHistory = DefaultMaxHistory
	}
	return m
}

// Threshold returns the confidence threshold used for every exchange
func (m *Manager) Threshold() float64 {
	return m.threshold
}

// ActiveSessions returns the number of sessions held by the store
func (m *Manager) ActiveSessions() int {
	return m.store.Len()
}

// Process runs one chat exchange. Exchanges on the same session are serialized;
// different sessions proceed independently.
//
// A blank message is answered with EmptyInputReply and leaves the history
// untouched. Errors are returned only when classification itself fails, in
// which case the history is left as it was.
func (m *Manager) Process(ctx context.Context, sessionID, text string) (*types.ChatResult, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	unlock := m.locks.Lock(sessionID)
	defer unlock()

	history, _ := m.store.Get(sessionID)

	text = strings.TrimSpace(text)
	if text == "" {
		return &types.ChatResult{
			Answer:  EmptyInputReply,
			Intent:  types.None(),
			History: history,
		}, nil
	}

	history = append(history, types.Turn{Role: types.RoleUser, Text: text})
	query := ContextualQuery(history, m.nHistory)

	match, err := m.classifier.Classify(ctx, query, m.threshold)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	reply := m.responder.Select(match.Tag)
	history = append(history, types.Turn{Role: types.RoleBot, Text: reply})
	history = Truncate(history, m.maxHistory)
	m.store.Save(sessionID, history)

	if match.Tag.IsNone() {
		m.logger.Debug("no intent matched",
			zap.String("session", sessionID),
			zap.String("query", query),
			zap.Float64("score", match.Score),
		)
	}

	return &types.ChatResult{
		Answer:     reply,
		Intent:     match.Tag,
		Confidence: match.Score,
		History:    types.CloneTurns(history),
	}, nil
}

// History returns a copy of the stored turns for a session
func (m *Manager) History(sessionID string) []types.Turn {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	turns, _ := m.store.Get(sessionID)
	return turns
}

// Reset forgets a session and reports whether it had any history
func (m *Manager) Reset(sessionID string) bool {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	unlock := m.locks.Lock(sessionID)
	defer unlock()
	_, existed := m.store.Get(sessionID)
	m.store.Delete(sessionID)
	return existed
}

// ContextualQuery joins the texts of the last n user turns, oldest first
func ContextualQuery(history []types.Turn, n int) string {
	parts := make([]string, 0, n)
	for i := len(history) - 1; i >= 0 && len(parts) < n; i-- {
		if history[i].Role == types.RoleUser {
			parts = append(parts, history[i].Text)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " ")
}

// Truncate keeps the last limit turns
func Truncate(history []types.Turn, limit int) []types.Turn {
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
