// FinCommerce recommendation server entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fincommerce/recommender/internal/bus"
	"github.com/fincommerce/recommender/internal/catalog"
	"github.com/fincommerce/recommender/internal/config"
	"github.com/fincommerce/recommender/internal/embed"
	"github.com/fincommerce/recommender/internal/evaluation"
	"github.com/fincommerce/recommender/internal/metrics"
	"github.com/fincommerce/recommender/internal/pkg/logger"
	"github.com/fincommerce/recommender/internal/profile"
	"github.com/fincommerce/recommender/internal/qdrant"
	"github.com/fincommerce/recommender/internal/recommend"
	"github.com/fincommerce/recommender/internal/server"
)

// Build-time variables (set via ldflags).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fincommerce-server",
		Short: "FinCommerce recommendation server",
		Long: `FinCommerce recommendation server - product recommendation service with
hybrid vector retrieval, constraint filtering, and diversity-aware ranking.

The server exposes a REST API for recommendations, catalog management,
user profiles, feedback ingestion, and offline evaluation.`,
		SilenceUsage: true,
		RunE:         runServer,
	}

	rootCmd.Flags().StringP("config", "c", "", "config file path (YAML)")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose logging")
	rootCmd.Flags().String("host", "", "bind address (overrides config)")
	rootCmd.Flags().IntP("port", "p", 0, "HTTP port (overrides config)")
	rootCmd.Flags().String("qdrant-host", "", "Qdrant host (overrides config)")
	rootCmd.Flags().Int("qdrant-port", 0, "Qdrant gRPC port (overrides config)")

	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fincommerce-server %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	hostFlag, _ := cmd.Flags().GetString("host")
	portFlag, _ := cmd.Flags().GetInt("port")
	qdrantHost, _ := cmd.Flags().GetString("qdrant-host")
	qdrantPort, _ := cmd.Flags().GetInt("qdrant-port")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flag overrides win over config file and environment.
	if hostFlag != "" {
		cfg.Host = hostFlag
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}
	if qdrantHost != "" {
		cfg.Qdrant.Host = qdrantHost
	}
	if qdrantPort != 0 {
		cfg.Qdrant.Port = qdrantPort
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("starting fincommerce-server",
		"version", version,
		"commit", commit,
		"addr", cfg.Address(),
	)

	// Metrics come up first so every later component can report into them.
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		redisURL := ""
		if cfg.Metrics.Persistence == "redis" {
			redisURL = cfg.Redis.URL
		}
		m = metrics.NewWithConfig(cfg.Metrics.Persistence, redisURL)
		log.Info("initialized metrics", "persistence", cfg.Metrics.Persistence)
	}

	eventBus, err := bus.NewBus(cfg.Bus)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	log.Info("initialized event bus", "type", cfg.Bus.Type)

	qc, err := qdrant.NewClient(qdrant.ClientConfig{
		Host:    cfg.Qdrant.Host,
		Port:    cfg.Qdrant.Port,
		APIKey:  cfg.Qdrant.APIKey,
		UseTLS:  cfg.Qdrant.UseTLS,
		Timeout: cfg.Qdrant.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	log.Info("connected to Qdrant", "host", cfg.Qdrant.Host, "port", cfg.Qdrant.Port)

	// Embedding service: dense HTTP embedder with an LRU cache plus the
	// BM25 sparse encoder for hybrid retrieval.
	embedder := embed.NewHTTPEmbedder(embed.HTTPConfig{
		URL:       cfg.Embed.URL,
		Model:     cfg.Embed.Model,
		Dim:       cfg.Embed.Dim,
		BatchSize: cfg.Embed.BatchSize,
		Timeout:   cfg.Embed.Timeout,
	}, log)

	cache := embed.NewCache(cfg.Embed.Model, cfg.Embed.CacheSize)
	if m != nil {
		cache.SetMetrics(m)
	}

	sparse := embed.NewSparseEncoder()
	if cfg.Embed.VocabPath != "" {
		if err := sparse.LoadVocab(cfg.Embed.VocabPath); err != nil {
			log.Warn("no sparse vocabulary loaded, sparse retrieval disabled",
				"path", cfg.Embed.VocabPath, "error", err)
		} else {
			log.Info("loaded sparse vocabulary",
				"path", cfg.Embed.VocabPath, "terms", sparse.VocabSize())
		}
	}

	embedSvc := embed.NewService(embedder, cache, sparse, log)

	supplier := qdrant.NewSupplier(qc, embedSvc, cfg.Qdrant.Collection, log)
	indexer := qdrant.NewIndexer(qc, embedSvc, cfg.Qdrant.Collection, log)
	if m != nil {
		embedSvc.SetMetrics(m)
		indexer.SetMetrics(m)
	}

	// Catalog and profile storage: Redis when configured, else in-memory.
	var catalogStore catalog.Storage = catalog.NewMemoryStorage()
	var profileStore profile.Storage = profile.NewMemoryStorage()
	if cfg.Redis.URL != "" {
		cs, err := catalog.NewRedisStorage(cfg.Redis.URL)
		if err != nil {
			log.Warn("Redis catalog storage unavailable, using memory", "error", err)
		} else {
			catalogStore = cs
		}
		ps, err := profile.NewRedisStorage(cfg.Redis.URL)
		if err != nil {
			log.Warn("Redis profile storage unavailable, using memory", "error", err)
		} else {
			profileStore = ps
		}
	}

	catalogSvc := catalog.NewService(catalogStore, indexer, eventBus, log)
	profileSvc := profile.NewService(profileStore)

	pipeline := recommend.NewPipeline(supplier, catalogSvc, recommend.Config{
		Lambda:            cfg.Pipeline.Lambda,
		DefaultTopK:       cfg.Pipeline.DefaultTopK,
		BreadthMultiplier: cfg.Pipeline.BreadthMultiplier,
		MaxBreadth:        cfg.Pipeline.MaxBreadth,
	}, log)
	if m != nil {
		pipeline.SetObserver(m.RecordStage)
	}

	evaluator := evaluation.NewEvaluator(pipeline)

	var feedbackMetrics evaluation.FeedbackMetrics
	if m != nil {
		feedbackMetrics = m
	}
	feedback := evaluation.NewFeedbackTracker(feedbackMetrics, log)
	if err := feedback.Attach(context.Background(), eventBus); err != nil {
		log.Warn("failed to attach feedback tracker", "error", err)
	}

	srv, err := server.New(server.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Version:         version,
		RateLimit:       cfg.Security.RateLimit,
		CORSOrigins:     cfg.Security.CORSOrigins,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}, server.Deps{
		Bus:       eventBus,
		Pipeline:  pipeline,
		Catalog:   catalogSvc,
		Profiles:  profileSvc,
		Evaluator: evaluator,
		Feedback:  feedback,
		Metrics:   m,
		Qdrant:    qc,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
		}
	}

	// Stop drains the HTTP server and closes Qdrant, the bus, and metrics.
	if err := srv.Stop(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	return nil
}
