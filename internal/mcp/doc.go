// Package mcp implements the Model Context Protocol (MCP) server for gustavo.
//
// The MCP server exposes six tools:
//   - chat: Answer a user message within a session
//   - classify: Classify one query without touching any session
//   - get_history: Return a session's stored turns
//   - reset_session: Forget a session
//   - get_status: Report index, catalog, embedder and session state
//   - reindex: Re-embed the catalog and swap in the new index
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. stdout is reserved for
// protocol traffic, so every log line goes to stderr or the rotating log file.
//
//	gustavo serve
//
// NewServer loads the catalog, builds or loads the index, and wires the
// classifier, responder and session manager before any tool is registered.
// A server that fails to start never answers with a partially built index.
//
// # Tool: chat
//
//	Request:
//	{
//	  "name": "chat",
//	  "arguments": {
//	    "message": "ciao",
//	    "session_id": "user-42"
//	  }
//	}
//
//	Response:
//	{
//	  "answer": "Ciao! Come posso aiutarti?",
//	  "intent": "saluto",
//	  "confidence": 0.93,
//	  "history": [
//	    {"role": "user", "text": "ciao"},
//	    {"role": "bot", "text": "Ciao! Come posso aiutarti?"}
//	  ]
//	}
//
// An unrecognized message answers with the fallback reply and a null intent.
// A blank message answers with a prompt to write something and leaves the
// history as it was.
//
// # Tool: classify
//
//	Request:
//	{
//	  "name": "classify",
//	  "arguments": {"query": "grazie mille", "threshold": 0.6}
//	}
//
//	Response:
//	{
//	  "query": "grazie mille",
//	  "intent": "ringraziamento",
//	  "confidence": 0.88,
//	  "score": 0.8812,
//	  "threshold": 0.6,
//	  "nearest_text": "grazie"
//	}
//
// # Error Handling
//
// Tool failures are returned as MCPError values:
//   - -32602: Invalid params
//   - -32603: Internal error (embedding, storage)
//   - -32002: Indexing in progress
//   - -32003: No index loaded
//   - -32004: Empty query (wraps types.ErrEmptyInput)
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "gustavo": {
//	      "command": "/usr/local/bin/gustavo",
//	      "args": ["serve"],
//	      "env": {
//	        "GUSTAVO_CATALOG": "/etc/gustavo/intents.json",
//	        "JINA_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
package mcp
