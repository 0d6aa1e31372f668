package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/api/handlers"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/config"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/database"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/index"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/jobs"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/llm"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/repository"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/server"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/service"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/storage"
	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the docqa API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("DOCQA_OPENAI_API_KEY is required: the server cannot embed or answer without a backend")
	}

	backend := llm.NewClientWithConfig(llm.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      openai.EmbeddingModel(cfg.EmbeddingModel),
		ChatModel:           cfg.ChatModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})

	var (
		docRepo service.DocumentRepositoryInterface
		jobRepo *repository.IngestJobRepository
		idx     index.Index
	)

	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		log.Println("connected to database")

		// Run migrations unless --no-migrate flag is set
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		docRepo = repository.NewDocumentRepository(pool)
		jobRepo = repository.NewIngestJobRepository(pool)
		idx = index.NewPgIndex(pool, cfg.EmbeddingDimensions)
	} else {
		log.Println("no DOCQA_DATABASE_URL set: using in-memory index, documents are not persisted")
		docRepo = repository.NewMemoryDocumentRepository()
		idx = index.NewMemoryIndex(cfg.EmbeddingDimensions)
		cfg.SyncIngest = true
	}

	var storageClient service.StorageClientInterface
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		storageClient = s3Client
	}

	chunker, err := service.NewChunker(service.ChunkConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Lookback:     service.DefaultChunkConfig().Lookback,
	})
	if err != nil {
		return fmt.Errorf("invalid chunking config: %w", err)
	}

	pipeline := service.NewIngestionPipelineWithReporter(chunker, backend, idx, docRepo)

	var ingestWorker *jobs.Worker
	var docJobRepo service.IngestJobRepositoryInterface
	if jobRepo != nil && !cfg.SyncIngest {
		docJobRepo = jobRepo
		processor := jobs.NewIngestWorker(jobRepo, docRepo, pipeline)
		ingestWorker = jobs.NewWorker(processor, time.Duration(cfg.WorkerPollSeconds)*time.Second)
		go ingestWorker.Start(ctx)
		log.Println("ingest worker started")
	}

	docSvc := service.NewDocumentService(docRepo, docJobRepo, storageClient, pipeline)

	retrieverCfg := service.RetrieverConfig{DefaultTopK: cfg.TopK, HyDE: cfg.HyDE}
	var retriever *service.Retriever
	if cfg.HyDE {
		retriever = service.NewRetrieverWithHyDE(backend, idx, backend, retrieverCfg)
	} else {
		retriever = service.NewRetriever(backend, idx, retrieverCfg)
	}
	composer := service.NewComposer(backend, service.ComposerConfig{MaxContextChars: cfg.MaxContextChars})
	qaSvc := service.NewQAService(retriever, composer)
	searchSvc := service.NewSearchService(backend, idx)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(docSvc),
		QAHandler:       handlers.NewQAHandler(qaSvc, searchSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if ingestWorker != nil {
		ingestWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql handle
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
