package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"redact-backend/internal/classify"
	"redact-backend/internal/collab"
	"redact-backend/internal/deadletter"
	"redact-backend/internal/documents"
	"redact-backend/internal/extract"
	"redact-backend/internal/filename"
	"redact-backend/internal/pipeline"
	"redact-backend/internal/queue"
	"redact-backend/internal/redaction"
	"redact-backend/internal/results"
	"redact-backend/internal/retry"
	"redact-backend/internal/routing"
	"redact-backend/internal/rules"
	"redact-backend/internal/services/health"
	"redact-backend/internal/shared/config"
	"redact-backend/internal/shared/server"
	"redact-backend/internal/shared/server/middleware"
	"redact-backend/internal/shared/storage/db"
	"redact-backend/internal/shared/storage/object"
	localstore "redact-backend/internal/shared/storage/object/local"
	s3store "redact-backend/internal/shared/storage/object/s3"
	"redact-backend/internal/shared/telemetry"
	"redact-backend/internal/uploads"
)

// App holds shared dependencies for the API and worker entrypoints.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Retry  retry.Policy

	// Queue is what uploads enqueue to: SQS when configured, otherwise an
	// inline dispatcher in dev-like environments, otherwise nil.
	Queue queue.Client
	SQS   *queue.SQSClient

	DocumentsRepo documents.DocumentsRepo
	ResultsRepo   results.Repo
	DeadLetters   deadletter.Repo
	RulesSource   rules.Source
	RulesWriter   rules.Writer

	Processor *pipeline.Processor
	Escalator *deadletter.Escalator

	DocumentsService  *documents.Service
	DocumentsHandler  *documents.Handler
	RulesHandler      *rules.Handler
	UploadsHandler    *uploads.Handler
	DeadLetterHandler *deadletter.Handler
	Health            *health.Service
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	return BuildContext(context.Background(), cfg)
}

// BuildContext is Build with a caller-supplied context for AWS and DB setup.
func BuildContext(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Retry: retry.Policy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
	}

	if cfg.QueueURL != "" {
		sqsClient, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.QueueURL)
		if err != nil {
			return nil, err
		}
		app.SQS = sqsClient
		app.Queue = sqsClient
	}

	buildRepos(app)

	if err := buildPipeline(ctx, app); err != nil {
		return nil, err
	}

	if app.Queue == nil && isDevLike(cfg.Env) {
		telemetry.Info("bootstrap.queue.inline", map[string]any{"env": cfg.Env})
		app.Queue = inlineQueue(app.Processor)
	}

	if err := buildHandlers(ctx, app); err != nil {
		return nil, err
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(middleware.RateLimitRule{
			Rate:  cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		}, nil)
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            app.Config,
		Health:            app.Health,
		DocumentHandler:   app.DocumentsHandler,
		RulesHandler:      app.RulesHandler,
		UploadsHandler:    app.UploadsHandler,
		DeadLetterHandler: app.DeadLetterHandler,
		RateLimiter:       limiter,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildRepos(app *App) {
	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.ResultsRepo = &results.PGRepo{DB: app.DB}
		app.DeadLetters = &deadletter.PGRepo{DB: app.DB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.ResultsRepo = results.NewMemoryRepo()
		app.DeadLetters = deadletter.NewMemoryRepo()
	}

	if app.Config.ConfigSource == "postgres" && app.DB != nil {
		src := &rules.PGSource{DB: app.DB, Retry: app.Retry}
		app.RulesSource, app.RulesWriter = src, src
		return
	}
	src := &rules.ObjectSource{Store: app.Store, Retry: app.Retry}
	app.RulesSource, app.RulesWriter = src, src
}

func buildPipeline(ctx context.Context, app *App) error {
	cfg := app.Config
	opts := extract.Options{LineEnding: extract.ParseLineEnding(cfg.LineEnding)}
	if cfg.OCREndpoint != "" {
		ocr, err := collab.NewOCRClient(ctx, collab.Options{
			Endpoint:       cfg.OCREndpoint,
			TokenURL:       cfg.OCRTokenURL,
			ClientID:       cfg.OCRClientID,
			ClientSecret:   cfg.OCRClientSecret,
			RequestsPerSec: cfg.OCRRequestsPerSec,
		})
		if err != nil {
			return fmt.Errorf("ocr client: %w", err)
		}
		opts.OCR = ocr
	}

	var summarizer pipeline.Summarizer
	if cfg.SummarizerEndpoint != "" {
		client, err := collab.NewSummarizerClient(ctx, collab.Options{
			Endpoint:     cfg.SummarizerEndpoint,
			TokenURL:     cfg.OCRTokenURL,
			ClientID:     cfg.OCRClientID,
			ClientSecret: cfg.OCRClientSecret,
		})
		if err != nil {
			return fmt.Errorf("summarizer client: %w", err)
		}
		summarizer = client
	}

	app.Processor = &pipeline.Processor{
		Store:      app.Store,
		Documents:  app.DocumentsRepo,
		Results:    app.ResultsRepo,
		Rules:      app.RulesSource,
		Classifier: classify.New(cfg.MaxUploadBytes),
		Extract:    opts,
		Engine:     redaction.New(),
		Filenames:  filename.New(cfg.OutputExtension),
		Router: &routing.Router{
			Store:   app.Store,
			Results: app.ResultsRepo,
			Retry:   app.Retry,
		},
		Retry:      app.Retry,
		Summarizer: summarizer,
	}

	if app.SQS != nil {
		app.Escalator = &deadletter.Escalator{
			Repo:        app.DeadLetters,
			Forwarder:   app.SQS,
			QueueURL:    cfg.DeadLetterURL,
			MaxReceives: cfg.MaxReceives,
		}
	}
	return nil
}

func buildHandlers(ctx context.Context, app *App) error {
	app.DocumentsService = &documents.Service{
		Store:   app.Store,
		Repo:    app.DocumentsRepo,
		Results: app.ResultsRepo,
		Queue:   app.Queue,
	}
	app.DocumentsHandler = documents.NewHandler(app.DocumentsService)
	app.RulesHandler = rules.NewHandler(app.RulesSource, app.RulesWriter)
	app.DeadLetterHandler = &deadletter.Handler{Repo: app.DeadLetters}
	app.Health = health.NewService(app.DB, app.Store)

	presign, err := buildUploadsPresign(ctx, app.Config)
	if err != nil {
		return err
	}
	app.UploadsHandler = &uploads.Handler{
		Presign:   presign,
		Bucket:    app.Config.S3Bucket,
		Prefix:    normalizePrefix(app.Config.S3Prefix),
		KMSKeyID:  app.Config.SSEKMSKeyID,
		Documents: app.DocumentsRepo,
	}

	if app.DocumentsHandler == nil || app.RulesHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

// buildUploadsPresign returns nil when direct-to-S3 uploads are not available.
func buildUploadsPresign(ctx context.Context, cfg config.Config) (uploads.Presigner, error) {
	if cfg.ObjectStoreType != "s3" || strings.TrimSpace(cfg.S3Bucket) == "" {
		return nil, nil
	}
	awsCfg, err := queue.LoadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	return s3.NewPresignClient(s3.NewFromConfig(awsCfg)), nil
}

// inlineQueue processes uploads in the API process when no queue is configured.
func inlineQueue(proc *pipeline.Processor) queue.Client {
	return queue.Func(func(_ context.Context, msg queue.Message) error {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := proc.Process(ctx, msg); err != nil {
				telemetry.Error("bootstrap.inline.process_failed", map[string]any{
					"documentId": msg.DocumentID,
					"requestId":  msg.RequestID,
					"error":      err.Error(),
				})
			}
		}()
		return nil
	})
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
