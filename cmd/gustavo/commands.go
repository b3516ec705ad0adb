package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/gustavo-mcp/internal/config"
	"github.com/dshills/gustavo-mcp/internal/embedder"
	"github.com/dshills/gustavo-mcp/internal/logger"
	"github.com/dshills/gustavo-mcp/internal/mcp"
	"github.com/dshills/gustavo-mcp/internal/storage"
	"github.com/dshills/gustavo-mcp/pkg/types"
)

var (
	envFile        string
	forceReindex   bool
	classifyThresh float64

	cfg *config.Config
	log *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "gustavo",
		Short: "Intent retrieval assistant served over MCP",
		Long: `gustavo matches user messages to a catalog of intents by embedding
similarity and answers with the intent's canned responses. It keeps a short
per-session context and serves the chat operation as an MCP tool over stdio.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Build or load the index and serve MCP tools on stdio",
		RunE:  runServe,
	}

	indexCmd = &cobra.Command{
		Use:   "index",
		Short: "Build the index artifacts if missing, or rebuild them with --force",
		RunE:  runIndex,
	}

	classifyCmd = &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify one message against the index and print the nearest intent",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassify,
	}

	embedCmd = &cobra.Command{
		Use:   "embed [text...]",
		Short: "Embed one text with the configured provider and print vector stats",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEmbed,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		// Skip config loading so version works anywhere
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gustavo %s\n", version)
			fmt.Printf("Build Time: %s\n", buildTime)
			fmt.Printf("Build Mode: %s\n", storage.BuildMode)
			fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load instead of ./.env")
	indexCmd.Flags().BoolVar(&forceReindex, "force", false, "re-embed the catalog even if artifacts exist")
	classifyCmd.Flags().Float64Var(&classifyThresh, "threshold", 0, "override GUSTAVO_THRESHOLD")

	rootCmd.AddCommand(serveCmd, indexCmd, classifyCmd, embedCmd, versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}

	var err error
	cfg, err = config.Load(files...)
	if err != nil {
		return err
	}

	log, err = logger.New(cfg.App)
	if err != nil {
		return err
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	// Set up graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("gustavo starting",
		zap.String("version", version),
		zap.String("build_mode", storage.BuildMode),
		zap.String("driver", storage.DriverName),
	)

	server, err := mcp.NewServer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return server.Close()
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info("server stopped")
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	server, err := mcp.NewServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = server.Close() }()

	snap := server.Classifier().Snapshot()
	if forceReindex && snap.Loaded {
		if snap, err = server.Reindex(ctx); err != nil {
			return err
		}
	}

	state := "built"
	if snap.Loaded {
		state = "loaded"
	}
	fmt.Printf("index %s: %d rows, dimension %d, fingerprint %s\n",
		state, snap.Index.Len(), snap.Index.Dimension(), snap.FingerprintHex())
	if snap.Stale {
		fmt.Println("warning: index was built from a different catalog; run with --force to rebuild")
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("classify: %w", types.ErrEmptyInput)
	}

	server, err := mcp.NewServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = server.Close() }()

	threshold := cfg.Session.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = classifyThresh
	}

	match, err := server.Classifier().Classify(ctx, query, threshold)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(map[string]interface{}{
		"query":        query,
		"intent":       match.Tag,
		"confidence":   types.RoundConfidence(match.Score),
		"threshold":    threshold,
		"nearest_text": match.Text,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runEmbed(cmd *cobra.Command, args []string) error {
	emb, err := embedder.New(cfg.Embedding.EmbedderConfig())
	if err != nil {
		return err
	}
	defer func() { _ = emb.Close() }()

	text := strings.Join(args, " ")
	e, err := emb.GenerateEmbedding(cmd.Context(), embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return fmt.Errorf("embed %q: %w", text, err)
	}

	var sum float64
	for _, v := range e.Vector {
		sum += float64(v) * float64(v)
	}
	head := e.Vector
	if len(head) > 8 {
		head = head[:8]
	}

	fmt.Printf("Provider:  %s\n", e.Provider)
	fmt.Printf("Model:     %s\n", e.Model)
	fmt.Printf("Dimension: %d\n", len(e.Vector))
	fmt.Printf("L2 norm:   %.6f\n", math.Sqrt(sum))
	fmt.Printf("Head:      %v\n", head)
	return nil
}
