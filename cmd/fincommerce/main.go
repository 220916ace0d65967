// FinCommerce operations CLI: collection setup, catalog seeding, and
// offline evaluation.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fincommerce/recommender/internal/catalog"
	"github.com/fincommerce/recommender/internal/config"
	"github.com/fincommerce/recommender/internal/embed"
	"github.com/fincommerce/recommender/internal/evaluation"
	"github.com/fincommerce/recommender/internal/pkg/logger"
	"github.com/fincommerce/recommender/internal/qdrant"
	"github.com/fincommerce/recommender/internal/recommend"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fincommerce",
		Short: "FinCommerce - operations CLI for the recommendation service",
		Long: `FinCommerce CLI manages the recommendation service's vector collection
and catalog data.

Run 'fincommerce init' to create the Qdrant collection.
Run 'fincommerce seed -f products.json' to load and index a catalog.
Run 'fincommerce evaluate' to score ranking quality against judgments.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		initCmd(),
		seedCmd(),
		statusCmd(),
		evaluateCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fincommerce %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

// loadSetup reads config and builds a logger, shared by all subcommands.
func loadSetup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	return cfg, log, nil
}

func qdrantClient(cfg *config.Config) (*qdrant.Client, error) {
	return qdrant.NewClient(qdrant.ClientConfig{
		Host:    cfg.Qdrant.Host,
		Port:    cfg.Qdrant.Port,
		APIKey:  cfg.Qdrant.APIKey,
		UseTLS:  cfg.Qdrant.UseTLS,
		Timeout: cfg.Qdrant.Timeout,
	})
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the product vector collection",
		Long: `Create the Qdrant collection used for product retrieval, with dense
and sparse vector support and payload indexes on the filterable fields.
Safe to run more than once; an existing collection is left untouched
unless --recreate is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			recreate, _ := cmd.Flags().GetBool("recreate")

			cfg, log, err := loadSetup(cmd)
			if err != nil {
				return err
			}

			qc, err := qdrantClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to Qdrant: %w", err)
			}
			defer qc.Close()

			if recreate {
				if err := qc.DeleteCollection(cmd.Context(), cfg.Qdrant.Collection); err != nil {
					return fmt.Errorf("failed to delete collection: %w", err)
				}
				log.Info("deleted existing collection", "collection", cfg.Qdrant.Collection)
			}

			collCfg := qdrant.DefaultCollectionConfig(cfg.Qdrant.Collection)
			collCfg.DenseVectorSize = uint64(cfg.Embed.Dim)

			if err := qc.CreateCollection(cmd.Context(), collCfg); err != nil {
				return fmt.Errorf("failed to create collection: %w", err)
			}

			log.Info("collection ready",
				"collection", cfg.Qdrant.Collection,
				"dense_dim", cfg.Embed.Dim,
			)
			return nil
		},
	}

	cmd.Flags().Bool("recreate", false, "drop and recreate the collection (destroys indexed data)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show collection and catalog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadSetup(cmd)
			if err != nil {
				return err
			}

			qc, err := qdrantClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to Qdrant: %w", err)
			}
			defer qc.Close()

			ctx := cmd.Context()
			info, err := qc.GetCollectionInfo(ctx, cfg.Qdrant.Collection)
			if err != nil {
				return fmt.Errorf("failed to get collection info: %w", err)
			}
			available, err := qc.CountPoints(ctx, cfg.Qdrant.Collection, &qdrant.SearchFilter{AvailableOnly: true})
			if err != nil {
				return fmt.Errorf("failed to count points: %w", err)
			}

			status := map[string]any{
				"collection":       info.Name,
				"status":           info.Status,
				"points":           info.PointsCount,
				"available_points": available,
				"segments":         info.SegmentsCount,
			}
			if v, err := qc.GetVersion(ctx); err == nil {
				status["qdrant_version"] = v
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a product catalog and index it for retrieval",
		Long: `Read products from a JSON file, fit the sparse vocabulary over the
catalog text, save products to storage, and index them into Qdrant.

The fitted vocabulary is written to the configured vocab path so the
server can encode sparse queries against the same term space.`,
		RunE: runSeed,
	}

	cmd.Flags().StringP("file", "f", "", "products JSON file (required)")
	cmd.Flags().Int("batch-size", 64, "points per upsert batch")
	cmd.Flags().Int("workers", 4, "concurrent indexing workers")
	cmd.Flags().Bool("skip-index", false, "save to storage only, skip vector indexing")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	workers, _ := cmd.Flags().GetInt("workers")
	skipIndex, _ := cmd.Flags().GetBool("skip-index")

	cfg, log, err := loadSetup(cmd)
	if err != nil {
		return err
	}

	products, err := loadProducts(file)
	if err != nil {
		return err
	}
	log.Info("loaded products", "file", file, "count", len(products))

	// Fit the sparse vocabulary over the full catalog text before
	// indexing so document and query encodings share term indices.
	sparse := embed.NewSparseEncoder()
	corpus := make([]string, 0, len(products))
	for _, p := range products {
		corpus = append(corpus, p.SearchText())
	}
	sparse.Fit(corpus)
	if cfg.Embed.VocabPath != "" {
		if err := sparse.SaveVocab(cfg.Embed.VocabPath); err != nil {
			return fmt.Errorf("failed to save vocabulary: %w", err)
		}
		log.Info("saved sparse vocabulary",
			"path", cfg.Embed.VocabPath, "terms", sparse.VocabSize())
	}

	var storage catalog.Storage = catalog.NewMemoryStorage()
	if cfg.Redis.URL != "" {
		rs, err := catalog.NewRedisStorage(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		storage = rs
	} else {
		log.Warn("no Redis configured, products are not persisted beyond this run")
	}

	ctx := cmd.Context()
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid product %q: %w", p.ID, err)
		}
		if err := storage.Save(ctx, p); err != nil {
			return fmt.Errorf("failed to save product %q: %w", p.ID, err)
		}
	}
	log.Info("saved products to storage", "count", len(products))

	if skipIndex {
		return nil
	}

	qc, err := qdrantClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer qc.Close()

	embedder := embed.NewHTTPEmbedder(embed.HTTPConfig{
		URL:       cfg.Embed.URL,
		Model:     cfg.Embed.Model,
		Dim:       cfg.Embed.Dim,
		BatchSize: cfg.Embed.BatchSize,
		Timeout:   cfg.Embed.Timeout,
	}, log)
	embedSvc := embed.NewService(embedder, nil, sparse, log)
	indexer := qdrant.NewIndexer(qc, embedSvc, cfg.Qdrant.Collection, log)

	start := time.Now()

	// Index chunks concurrently; each worker embeds and upserts its own
	// batches.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < len(products); i += batchSize {
		chunk := products[i:min(i+batchSize, len(products))]
		g.Go(func() error {
			return indexer.IndexBatch(gctx, chunk, batchSize)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	log.Info("indexed products",
		"count", len(products),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func loadProducts(path string) ([]*catalog.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read products file: %w", err)
	}
	var products []*catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse products file: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("products file %s is empty", path)
	}
	return products, nil
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score ranking quality against relevance judgments",
		Long: `Run a set of labeled queries through the full recommendation pipeline
and report NDCG, recall, precision, hit rate, MRR, and MAP.

The queries file is a JSON array of {"id", "query"} objects; the
judgments file is a JSON array of {"query_id", "product_id",
"relevance"} objects with graded relevance 0-3.`,
		RunE: runEvaluate,
	}

	cmd.Flags().String("queries", "", "queries JSON file (required)")
	cmd.Flags().String("judgments", "", "relevance judgments JSON file (required)")
	cmd.Flags().IntSlice("k", []int{1, 3, 5, 10}, "cutoff depths for ranked metrics")
	cmd.Flags().Bool("per-query", false, "print per-query results as well as the summary")
	_ = cmd.MarkFlagRequired("queries")
	_ = cmd.MarkFlagRequired("judgments")

	return cmd
}

type evalQuery struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	queriesFile, _ := cmd.Flags().GetString("queries")
	judgmentsFile, _ := cmd.Flags().GetString("judgments")
	ks, _ := cmd.Flags().GetIntSlice("k")
	perQuery, _ := cmd.Flags().GetBool("per-query")

	cfg, log, err := loadSetup(cmd)
	if err != nil {
		return err
	}

	var queries []evalQuery
	if err := readJSONFile(queriesFile, &queries); err != nil {
		return err
	}
	var judgments []evaluation.RelevanceJudgment
	if err := readJSONFile(judgmentsFile, &judgments); err != nil {
		return err
	}
	if len(queries) == 0 {
		return fmt.Errorf("queries file %s is empty", queriesFile)
	}

	evaluator, cleanup, err := buildEvaluator(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	evaluator.LoadJudgments(judgments)
	log.Info("loaded evaluation inputs",
		"queries", len(queries),
		"judgments", len(judgments),
	)

	ctx := cmd.Context()
	results := make([]*evaluation.QueryResult, 0, len(queries))
	for _, q := range queries {
		res, err := evaluator.EvaluateQuery(ctx, q.ID, q.Query, ks)
		if err != nil {
			return fmt.Errorf("failed to evaluate query %q: %w", q.ID, err)
		}
		results = append(results, res)
	}

	summary := evaluator.Summarize(results)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if perQuery {
		return enc.Encode(map[string]any{
			"summary": summary,
			"queries": results,
		})
	}
	return enc.Encode(summary)
}

// buildEvaluator wires the full retrieval and ranking stack for offline
// evaluation, without the HTTP server around it.
func buildEvaluator(cfg *config.Config, log *logger.Logger) (*evaluation.Evaluator, func(), error) {
	qc, err := qdrantClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	embedder := embed.NewHTTPEmbedder(embed.HTTPConfig{
		URL:       cfg.Embed.URL,
		Model:     cfg.Embed.Model,
		Dim:       cfg.Embed.Dim,
		BatchSize: cfg.Embed.BatchSize,
		Timeout:   cfg.Embed.Timeout,
	}, log)

	sparse := embed.NewSparseEncoder()
	if cfg.Embed.VocabPath != "" {
		if err := sparse.LoadVocab(cfg.Embed.VocabPath); err != nil {
			log.Warn("no sparse vocabulary loaded, dense-only retrieval",
				"path", cfg.Embed.VocabPath, "error", err)
		}
	}

	embedSvc := embed.NewService(embedder, embed.NewCache(cfg.Embed.Model, cfg.Embed.CacheSize), sparse, log)
	supplier := qdrant.NewSupplier(qc, embedSvc, cfg.Qdrant.Collection, log)

	var storage catalog.Storage = catalog.NewMemoryStorage()
	if cfg.Redis.URL != "" {
		rs, err := catalog.NewRedisStorage(cfg.Redis.URL)
		if err != nil {
			qc.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		storage = rs
	}
	catalogSvc := catalog.NewService(storage, nil, nil, log)

	pipeline := recommend.NewPipeline(supplier, catalogSvc, recommend.Config{
		Lambda:            cfg.Pipeline.Lambda,
		DefaultTopK:       cfg.Pipeline.DefaultTopK,
		BreadthMultiplier: cfg.Pipeline.BreadthMultiplier,
		MaxBreadth:        cfg.Pipeline.MaxBreadth,
	}, log)

	cleanup := func() { qc.Close() }
	return evaluation.NewEvaluator(pipeline), cleanup, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
