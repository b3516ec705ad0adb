package mcp

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/gustavo-mcp/internal/catalog"
	"github.com/dshills/gustavo-mcp/internal/classifier"
	"github.com/dshills/gustavo-mcp/internal/config"
	"github.com/dshills/gustavo-mcp/internal/embedder"
	"github.com/dshills/gustavo-mcp/internal/indexer"
	"github.com/dshills/gustavo-mcp/internal/responder"
	"github.com/dshills/gustavo-mcp/internal/session"
	"github.com/dshills/gustavo-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "gustavo-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"

	// sessionCleanupInterval bounds how long expired TTL sessions linger
	sessionCleanupInterval = 10 * time.Minute
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	cfg    *config.Config
	logger *zap.Logger

	catalog    *catalog.Catalog
	embedder   embedder.Embedder
	store      storage.Store
	indexer    *indexer.Indexer
	classifier *classifier.Classifier
	sessions   *session.Manager

	closeOnce sync.Once
}

// Option customizes server construction
type Option func(*options)

type options struct {
	embedder embedder.Embedder
	source   responder.Source
}

// WithEmbedder replaces the embedder built from configuration
func WithEmbedder(emb embedder.Embedder) Option {
	return func(o *options) { o.embedder = emb }
}

// WithRandomSource fixes the response selection source
func WithRandomSource(src responder.Source) Option {
	return func(o *options) { o.source = src }
}

// NewServer loads the catalog, builds or loads the index and wires the chat
// pipeline. Catalog and index problems are returned as types.ErrConfiguration
// and must stop startup.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cat, err := catalog.Load(cfg.Index.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.Info("catalog loaded",
		zap.String("path", cfg.Index.CatalogPath),
		zap.Int("intents", len(cat.Intents)),
		zap.Int("patterns", cat.PatternCount()),
	)

	emb := o.embedder
	if emb == nil {
		emb, err = embedder.New(cfg.Embedding.EmbedderConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(cfg.Index.DataDir, 0755); err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.Open(cfg.Index.Backend, cfg.Index.IndexPath(), cfg.Index.MetadataPath())
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	idx := indexer.New(emb, store, logger.Named("indexer"), &indexer.Config{
		Workers:     cfg.Index.Workers,
		BatchSize:   cfg.Index.BatchSize,
		StalePolicy: indexer.StalePolicy(cfg.Index.StalePolicy),
	})

	snap, err := idx.BuildOrLoad(ctx, cat)
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, err
	}

	clf := classifier.New(emb, snap, logger.Named("classifier"))

	selOpts := []responder.Option{responder.WithFallback(cfg.Session.FallbackReply)}
	if o.source != nil {
		selOpts = append(selOpts, responder.WithSource(o.source))
	} else {
		seed := uint64(time.Now().UnixNano())
		selOpts = append(selOpts, responder.WithSource(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))))
	}
	sel := responder.New(cat.Responses(), selOpts...)

	mgr := session.NewManager(clf, sel, newSessionStore(cfg.Session), logger.Named("session"), &session.Config{
		NHistory:   cfg.Session.NHistory,
		MaxHistory: cfg.Session.MaxHistory,
		Threshold:  cfg.Session.Threshold,
	})

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:        mcpServer,
		cfg:        cfg,
		logger:     logger,
		catalog:    cat,
		embedder:   emb,
		store:      store,
		indexer:    idx,
		classifier: clf,
		sessions:   mgr,
	}

	// Register tools
	s.registerTools()

	return s, nil
}

func newSessionStore(cfg config.SessionConfig) session.Store {
	if cfg.Store == session.StoreLRU {
		return session.NewLRUStore(cfg.MaxSessions, cfg.TTL)
	}
	cleanup := sessionCleanupInterval
	if cfg.TTL < cleanup {
		cleanup = cfg.TTL
	}
	return session.NewCacheStore(cfg.TTL, cleanup)
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	s.logger.Info("serving MCP on stdio", zap.String("server", ServerName), zap.String("version", ServerVersion))
	return server.ServeStdio(s.mcp)
}

// Close releases the index store and the embedder
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.store.Close()
		if cerr := s.embedder.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

// Sessions returns the chat session manager
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Classifier returns the intent classifier
func (s *Server) Classifier() *classifier.Classifier {
	return s.classifier
}

// Reindex re-embeds the startup catalog, persists it and publishes the new
// snapshot to the classifier
func (s *Server) Reindex(ctx context.Context) (*indexer.Snapshot, error) {
	snap, err := s.indexer.Rebuild(ctx, s.catalog)
	if err != nil {
		return nil, err
	}
	s.classifier.Swap(snap)
	return snap, nil
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// Register chat tool
	s.mcp.AddTool(chatTool(), s.handleChat)

	// Register classify tool
	s.mcp.AddTool(classifyTool(), s.handleClassify)

	// Register session tools
	s.mcp.AddTool(getHistoryTool(), s.handleGetHistory)
	s.mcp.AddTool(resetSessionTool(), s.handleResetSession)

	// Register get_status tool
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	// Register reindex tool
	s.mcp.AddTool(reindexTool(), s.handleReindex)
}
