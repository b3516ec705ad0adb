package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/gustavo-mcp/internal/session"
)

// chatTool returns the tool definition for chat
func chatTool() mcp.Tool {
	return mcp.Tool{
		Name:        "chat",
		Description: "Send a user message to the assistant and get the canned reply for the recognized intent, with the session history",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "User message. Blank messages are answered with a prompt to write something.",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation identifier; recent user turns of the same session shape classification",
					"default":     session.DefaultSessionID,
				},
			},
			Required: []string{"message"},
		},
	}
}

// classifyTool returns the tool definition for classify
func classifyTool() mcp.Tool {
	return mcp.Tool{
		Name:        "classify",
		Description: "Classify a single query without touching any session and report the nearest example phrase",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Text to classify",
				},
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum cosine similarity for a match; defaults to the server threshold",
					"minimum":     -1.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getHistoryTool returns the tool definition for get_history
func getHistoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_history",
		Description: "Return the stored turns of a chat session, oldest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation identifier",
					"default":     session.DefaultSessionID,
				},
			},
		},
	}
}

// resetSessionTool returns the tool definition for reset_session
func resetSessionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reset_session",
		Description: "Forget a chat session so the next message starts without context",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation identifier",
					"default":     session.DefaultSessionID,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index size, embedding model, catalog fingerprint, staleness and active sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// reindexTool returns the tool definition for reindex
func reindexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex",
		Description: "Re-embed every catalog pattern, overwrite the persisted index and start serving it",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
