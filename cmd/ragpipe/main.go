package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kbforge/ragpipe/internal/ai"
	"github.com/kbforge/ragpipe/internal/answer"
	"github.com/kbforge/ragpipe/internal/chunker"
	"github.com/kbforge/ragpipe/internal/config"
	"github.com/kbforge/ragpipe/internal/docsource"
	"github.com/kbforge/ragpipe/internal/embed"
	"github.com/kbforge/ragpipe/internal/handler"
	"github.com/kbforge/ragpipe/internal/job"
	"github.com/kbforge/ragpipe/internal/logutil"
	"github.com/kbforge/ragpipe/internal/model"
	"github.com/kbforge/ragpipe/internal/retriever"
	"github.com/kbforge/ragpipe/internal/schedule"
	"github.com/kbforge/ragpipe/internal/service"
	"github.com/kbforge/ragpipe/internal/store"
	"github.com/kbforge/ragpipe/internal/store/endee"
	"github.com/kbforge/ragpipe/internal/store/memstore"
)

type app struct {
	cfg    *config.Config
	rag    *service.RAGService
	loader *docsource.Loader
}

func main() {
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragpipe",
		Short: "knowledge base ingestion and retrieval server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			return runServer(a)
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "ingest the configured document directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			if a.loader == nil {
				return fmt.Errorf("docs_dir is not configured")
			}
			ctx := cmd.Context()
			docs, err := a.loader.Load(ctx)
			if err != nil {
				return err
			}
			report, err := a.rag.Ingest(ctx, docs)
			if report != nil {
				fmt.Printf("documents: %d, chunks written: %d, chunks failed: %d\n",
					report.Documents, report.ChunksWritten, report.ChunksFailed)
			}
			return err
		},
	}

	queryCmd := &cobra.Command{
		Use:   "query [question]",
		Short: "ask one question against the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			ans, err := a.rag.Query(cmd.Context(), strings.Join(args, " "), a.cfg.Retrieval.TopK)
			if err != nil {
				return err
			}
			fmt.Printf("answer (%s):\n%s\n", ans.Provider, ans.Text)
			for _, src := range ans.Sources {
				fmt.Printf("  [%.3f] %s\n", src.Score, src.ID)
			}
			return nil
		},
	}

	dropCmd := &cobra.Command{
		Use:   "drop",
		Short: "delete the configured index",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			if err := a.rag.DeleteKnowledgeBase(cmd.Context(), ""); err != nil {
				return err
			}
			fmt.Printf("index %s deleted\n", a.cfg.Index.Name)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, ingestCmd, queryCmd, dropCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logutil.Init(cfg.LogConfig.Level, cfg.LogConfig.Console)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	var client store.Client
	switch cfg.Store.Backend {
	case "memory":
		client = memstore.NewClient()
	default:
		client = endee.NewClient(endee.Config{
			BaseURL:   cfg.Store.BaseURL,
			AuthToken: envFallback(cfg.Store.AuthToken, "ENDEE_AUTH_TOKEN"),
			Timeout:   time.Duration(cfg.Store.TimeoutSeconds) * time.Second,
		})
	}
	manager := store.NewManager(client)

	splitter, err := chunker.New(cfg.Chunking.Size, *cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	embedProvider, err := ai.NewEmbedProvider(cfg.Embedding.Provider, providerArgs(cfg.Embedding.APIKey, cfg.Embedding.BaseURL, cfg.Embedding.Provider))
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	embedder, err := embed.NewClient(embedProvider, embed.Config{
		Model:         cfg.Embedding.Model,
		Dimension:     cfg.Index.Dimension,
		MaxBatchSize:  cfg.Embedding.MaxBatchSize,
		MaxParallel:   cfg.Embedding.MaxParallel,
		RetryAttempts: cfg.Embedding.RetryAttempts,
	})
	if err != nil {
		return nil, err
	}

	desc := model.IndexDescriptor{
		Name:           cfg.Index.Name,
		Dimension:      cfg.Index.Dimension,
		SpaceType:      cfg.Index.SpaceType,
		Precision:      model.Precision(cfg.Index.Precision),
		M:              cfg.Index.M,
		EfConstruction: cfg.Index.EfConstruction,
	}

	entries := make([]ai.GeneratorEntry, 0, len(cfg.Generation))
	for _, ref := range cfg.Generation {
		provider, err := ai.NewProvider(ref.Provider, providerArgs(ref.APIKey, ref.BaseURL, ref.Provider))
		if err != nil {
			return nil, fmt.Errorf("init generation provider %s: %w", ref.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{Name: ref.Provider, Model: ref.Model, Provider: provider})
	}

	rag := service.NewRAGService(
		splitter,
		embedder,
		manager,
		store.NewUpserter(store.UpserterConfig{MaxBatchSize: 1000}),
		retriever.New(embedder, manager, desc, retriever.Config{TopK: cfg.Retrieval.TopK, Ef: cfg.Retrieval.Ef}),
		answer.NewGenerator(ai.NewGroupGenerator(entries)),
		desc,
	)

	var loader *docsource.Loader
	if cfg.DocsDir != "" {
		loader, err = docsource.NewLoader(cfg.DocsDir)
		if err != nil {
			return nil, err
		}
	}
	return &app{cfg: cfg, rag: rag, loader: loader}, nil
}

func providerArgs(apiKey, baseURL, provider string) map[string]interface{} {
	if apiKey == "" {
		apiKey = os.Getenv(strings.ToUpper(provider) + "_API_KEY")
	}
	args := map[string]interface{}{}
	if apiKey != "" {
		args["api_key"] = apiKey
	}
	if baseURL != "" {
		args["base_url"] = baseURL
	}
	return args
}

func envFallback(value, env string) string {
	if value != "" {
		return value
	}
	return os.Getenv(env)
}

func runServer(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logutil.GetLogger(ctx)
	logger.Info("starting server",
		zap.Int("port", a.cfg.Port),
		zap.String("store", a.cfg.Store.Backend),
		zap.String("index", a.cfg.Index.Name),
	)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	handler.RegisterRoutes(engine.Group("/api/v1"), handler.RouterDeps{
		Query:       handler.NewQueryHandler(a.rag, *a.cfg.Retrieval.RelevanceFloor),
		Ingest:      handler.NewIngestHandler(a.rag, a.loader),
		Indexes:     handler.NewIndexHandler(a.rag),
		IngestLimit: 5 * time.Second,
	})

	scheduler := schedule.NewCronScheduler()
	if a.cfg.ReingestCron != "" && a.loader != nil {
		if err := scheduler.AddJob(job.NewReingestJob(a.rag, a.loader), a.cfg.ReingestCron); err != nil {
			return fmt.Errorf("schedule reingest: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", a.cfg.Port),
		Handler: engine,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
