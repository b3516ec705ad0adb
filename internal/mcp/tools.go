package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/gustavo-mcp/internal/classifier"
	"github.com/dshills/gustavo-mcp/internal/embedder"
	"github.com/dshills/gustavo-mcp/internal/indexer"
	"github.com/dshills/gustavo-mcp/internal/session"
	"github.com/dshills/gustavo-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // No index snapshot is being served
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleChat handles the chat tool invocation
func (s *Server) handleChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	message, ok := args["message"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "message parameter is required", map[string]interface{}{
			"param":  "message",
			"reason": "missing or not a string",
		})
	}
	sessionID := getStringDefault(args, "session_id", session.DefaultSessionID)

	result, err := s.sessions.Process(ctx, sessionID, message)
	if err != nil {
		s.logger.Error("chat failed", zap.String("session", sessionID), zap.Error(err))
		return nil, classifyError(err)
	}

	return mcp.NewToolResultText(formatJSON(result.Response())), nil
}

// handleClassify handles the classify tool invocation
func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, &MCPError{
			Code:    ErrorCodeEmptyQuery,
			Message: "query parameter is required and cannot be empty",
			Data: map[string]interface{}{
				"param":  "query",
				"reason": "missing or empty",
			},
			Cause: types.ErrEmptyInput,
		}
	}

	threshold := getFloatDefault(args, "threshold", s.sessions.Threshold())
	if threshold < -1 || threshold > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "threshold must be between -1 and 1", map[string]interface{}{
			"param": "threshold",
			"value": threshold,
		})
	}

	match, err := s.classifier.Classify(ctx, strings.TrimSpace(query), threshold)
	if err != nil {
		return nil, classifyError(err)
	}

	response := map[string]interface{}{
		"query":        query,
		"intent":       match.Tag,
		"confidence":   types.RoundConfidence(match.Score),
		"score":        match.Score,
		"threshold":    threshold,
		"nearest_text": match.Text,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.classifier.Snapshot()
	if snap == nil {
		response := map[string]interface{}{
			"indexed": false,
			"message": "No index loaded. Use the reindex tool to build one.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	builtAt := ""
	if !snap.BuiltAt.IsZero() {
		builtAt = snap.BuiltAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"indexed": true,
		"index": map[string]interface{}{
			"backend":     s.cfg.Index.Backend,
			"location":    s.store.Location(),
			"rows":        snap.Index.Len(),
			"dimension":   snap.Index.Dimension(),
			"fingerprint": snap.FingerprintHex(),
			"built_at":    builtAt,
			"loaded":      snap.Loaded,
			"stale":       snap.Stale,
			"building":    s.indexer.Building(),
			"by_intent":   snap.CountByTag(),
		},
		"catalog": map[string]interface{}{
			"path":        s.cfg.Index.CatalogPath,
			"intents":     len(s.catalog.Intents),
			"patterns":    s.catalog.PatternCount(),
			"fingerprint": fmt.Sprintf("%x", s.catalog.Fingerprint()),
		},
		"embedder": s.embedderStatus(),
		"sessions": map[string]interface{}{
			"active":      s.sessions.ActiveSessions(),
			"store":       s.cfg.Session.Store,
			"threshold":   s.sessions.Threshold(),
			"n_history":   s.cfg.Session.NHistory,
			"max_history": s.cfg.Session.MaxHistory,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) embedderStatus() map[string]interface{} {
	status := map[string]interface{}{
		"provider":  s.embedder.Provider(),
		"model":     s.embedder.Model(),
		"dimension": s.embedder.Dimension(),
	}
	if r, ok := s.embedder.(embedder.CacheReporter); ok {
		if stats, enabled := r.CacheStats(); enabled {
			status["cache"] = stats
		}
	}
	return status
}

// handleGetHistory handles the get_history tool invocation
func (s *Server) handleGetHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	sessionID := getStringDefault(args, "session_id", session.DefaultSessionID)

	history := s.sessions.History(sessionID)
	if history == nil {
		history = []types.Turn{}
	}

	response := map[string]interface{}{
		"session_id": sessionID,
		"turns":      len(history),
		"history":    history,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleResetSession handles the reset_session tool invocation
func (s *Server) handleResetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	sessionID := getStringDefault(args, "session_id", session.DefaultSessionID)

	existed := s.sessions.Reset(sessionID)
	s.logger.Debug("session reset", zap.String("session", sessionID), zap.Bool("existed", existed))

	response := map[string]interface{}{
		"session_id": sessionID,
		"reset":      existed,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleReindex handles the reindex tool invocation
func (s *Server) handleReindex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := time.Now()
	snap, err := s.Reindex(ctx)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		s.logger.Error("reindex failed", zap.Error(err))
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":     true,
		"rows":        snap.Index.Len(),
		"dimension":   snap.Index.Dimension(),
		"fingerprint": snap.FingerprintHex(),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// classifyError maps pipeline errors to MCP errors
func classifyError(err error) error {
	if errors.Is(err, classifier.ErrNoIndex) {
		return newMCPError(ErrorCodeNotIndexed, "no index loaded", nil)
	}
	return newMCPError(ErrorCodeInternalError, "classification failed", map[string]interface{}{
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
	Cause   error // Optional domain error, reachable through errors.Is
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func (e *MCPError) Unwrap() error {
	return e.Cause
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return fmt.Sprintf("%v", data)
	}
	return strings.TrimRight(b.String(), "\n")
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a numeric parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}
