package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	featsearch "ragstor/features/search"
	"ragstor/internal/adapter/gemini"
	"ragstor/internal/adapter/reranker"
	"ragstor/internal/app"
	"ragstor/internal/blocks"
	"ragstor/internal/chunkstore"
	"ragstor/internal/config"
	"ragstor/internal/extract"
	"ragstor/internal/index"
	"ragstor/internal/ingest"
	"ragstor/internal/layout"
	"ragstor/internal/logger"
	"ragstor/internal/middleware"
	"ragstor/internal/search"
	"ragstor/internal/worker"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(cfg)
	if err != nil {
		return err
	}
	defer deps.DB.Close()
	slog.Info("migrations applied successfully")

	// Embedder
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	if err != nil {
		return fmt.Errorf("gemini embedder: %w", err)
	}
	defer embedder.Close()

	// Ingestion pipeline
	layoutModel := layout.NewClient(cfg.LayoutURL)
	ingestor := ingest.New(layoutModel, &extract.TesseractOCR{}, extract.Loader{}, log, ingest.Options{
		DataDir:    cfg.DataDir,
		ChunksDir:  cfg.ChunksDir,
		Mode:       cfg.IngestMode,
		DocWorkers: cfg.DocWorkers,
		JobTimeout: cfg.JobTimeout(),
		Extract: extract.Options{
			ScoreThresh: cfg.LayoutScoreThresh,
			DPI:         cfg.RenderDPI,
			Lang:        cfg.OCRLang,
			PageWorkers: cfg.PageWorkers,
		},
		Sanitize:     blocks.DefaultSanitizeOptions(),
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})

	// Index & search
	chunkRepo := chunkstore.NewPostgresRepo(deps.DB)
	store := index.NewStore(cfg.IndexDir)
	indexer := index.NewIndexer(store, chunkRepo, embedder, cfg.ChunksDir, log)
	searcher := search.NewSearcher(store, chunkRepo, embedder, log)
	rerankerClient := reranker.NewClient(cfg.RerankProvider, cfg.RerankAPIKey)

	// Workers
	nsqCfg := nsq.NewConfig()
	ingestConsumer, err := nsq.NewConsumer(config.TopicIngestRun, "pipeline", nsqCfg)
	if err != nil {
		return fmt.Errorf("nsq ingest consumer: %w", err)
	}
	ingestConsumer.AddHandler(nsq.HandlerFunc(worker.NewIngestConsumer(ingestor).HandleMessage))
	if err := ingestConsumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect ingest consumer to NSQLookupd", "error", err)
	}
	defer ingestConsumer.Stop()

	indexConsumer, err := nsq.NewConsumer(config.TopicIndexRun, "pipeline", nsqCfg)
	if err != nil {
		return fmt.Errorf("nsq index consumer: %w", err)
	}
	indexConsumer.AddHandler(nsq.HandlerFunc(worker.NewIndexConsumer(indexer).HandleMessage))
	if err := indexConsumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect index consumer to NSQLookupd", "error", err)
	}
	defer indexConsumer.Stop()

	// Routes
	searchHandler := featsearch.NewHandler(searcher, rerankerClient)

	mux := http.NewServeMux()
	mux.Handle("POST /search", middleware.CorrelationID(http.HandlerFunc(searchHandler.Search)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		return srv.Shutdown(context.Background())
	}
}
