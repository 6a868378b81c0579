package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/gin-gonic/gin"

	"legal-backend/internal/analysis"
	"legal-backend/internal/documents"
	"legal-backend/internal/extract"
	"legal-backend/internal/llm"
	"legal-backend/internal/llm/bedrock"
	"legal-backend/internal/llm/openai"
	"legal-backend/internal/pipeline"
	"legal-backend/internal/queue"
	"legal-backend/internal/services/health"
	"legal-backend/internal/shared/config"
	"legal-backend/internal/shared/server"
	"legal-backend/internal/shared/storage/db"
	"legal-backend/internal/shared/storage/object"
	localstore "legal-backend/internal/shared/storage/object/local"
	miniostore "legal-backend/internal/shared/storage/object/minio"
	s3store "legal-backend/internal/shared/storage/object/s3"
	"legal-backend/internal/shared/telemetry"
)

// App holds shared dependencies for every entry point.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            object.ObjectStore
	Queue            queue.Client
	DocumentsRepo    documents.Repo
	DocumentsService *documents.Service
	Pipeline         *pipeline.Service
	DocumentsHandler *documents.Handler
	PipelineHandler  *pipeline.Handler
	Health           *health.Service
}

// Overrides replaces selected collaborators, mainly for tests.
type Overrides struct {
	LLM   llm.Client
	OCR   extract.OCR
	Repo  documents.Repo
	Queue queue.Client
}

// Build prepares all dependencies from cfg.
func Build(cfg config.Config) (*App, error) {
	return BuildWith(cfg, Overrides{})
}

// BuildWith is Build with some collaborators supplied by the caller.
func BuildWith(cfg config.Config, ov Overrides) (*App, error) {
	ctx := context.Background()
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Store: store, Queue: ov.Queue}

	app.DocumentsRepo = ov.Repo
	if app.DocumentsRepo == nil {
		repo, sqlDB, err := buildRepo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.DocumentsRepo, app.DB = repo, sqlDB
	}

	if app.Queue == nil {
		q, err := buildQueue(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.Queue = q
	}

	ocr := ov.OCR
	if ocr == nil {
		if ocr, err = buildOCR(ctx, cfg, store); err != nil {
			return nil, err
		}
	}

	model := ov.LLM
	if model == nil {
		if model, err = buildLLM(ctx, cfg); err != nil {
			return nil, err
		}
	}

	app.DocumentsService = &documents.Service{Store: store, Repo: app.DocumentsRepo, Queue: app.Queue}
	app.Pipeline = pipeline.NewService(&pipeline.Orchestrator{
		Docs:             app.DocumentsRepo,
		Text:             &extract.Resolver{Store: store, OCR: ocr},
		LLM:              model,
		Interpreter:      analysis.NewInterpreter(),
		ConditionalWrite: cfg.ConditionalWrites,
	})
	app.DocumentsHandler = documents.NewHandler(app.DocumentsService)
	app.PipelineHandler = pipeline.NewHandler(app.Pipeline)

	app.Health = health.NewService()
	if app.DB != nil {
		app.Health.Register("database", app.DB.PingContext)
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Handlers: []server.RouteRegistrar{app.DocumentsHandler, app.PipelineHandler},
		Health:   app.Health,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":            cfg.Env,
		"object_store":   cfg.ObjectStoreType,
		"document_store": cfg.DocumentStore,
		"ocr_backend":    cfg.OCRBackend,
		"llm_provider":   cfg.LLMProvider,
		"queue":          app.Queue != nil,
	})
	return app, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildRepo(ctx context.Context, cfg config.Config) (documents.Repo, *sql.DB, error) {
	switch cfg.DocumentStore {
	case "postgres":
		sqlDB, err := buildDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if sqlDB == nil {
			return documents.NewMemoryRepo(), nil, nil
		}
		return &documents.PGRepo{DB: sqlDB}, sqlDB, nil
	case "dynamodb":
		if strings.TrimSpace(cfg.DynamoTable) == "" {
			return nil, nil, fmt.Errorf("DYNAMODB_TABLE is required")
		}
		awsCfg, err := loadAWS(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, nil, err
		}
		return &documents.DynamoRepo{Client: dynamodb.NewFromConfig(awsCfg), Table: cfg.DynamoTable}, nil, nil
	default:
		return documents.NewMemoryRepo(), nil, nil
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.memory_repo", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Error("bootstrap.memory_repo", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
}

// Textract cannot read DOCX, so DOCX always goes through the local backend.
func buildOCR(ctx context.Context, cfg config.Config, store object.ObjectStore) (extract.OCR, error) {
	local := &extract.Local{Store: store}
	if cfg.OCRBackend != "textract" {
		return local, nil
	}
	awsCfg, err := loadAWS(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	tx := &extract.Textract{Client: textract.NewFromConfig(awsCfg), Store: store}
	if s3, ok := store.(*s3store.Store); ok {
		tx.Bucket = s3.Bucket()
		tx.ObjectKey = s3.ObjectKey
	}
	return &extract.Mux{PDF: tx, DOCX: local}, nil
}

func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	modelCfg := llm.Config{Model: cfg.LLMModel, MaxTokens: cfg.LLMMaxTokens}

	var client llm.Client
	switch cfg.LLMProvider {
	case "openai":
		c, err := openai.NewClient(cfg.OpenAIAPIKey, modelCfg)
		if err != nil {
			return nil, err
		}
		client = c
	case "bedrock":
		c, err := bedrock.New(ctx, cfg.AWSRegion, modelCfg)
		if err != nil {
			return nil, err
		}
		client = c
	default:
		telemetry.Info("bootstrap.llm_unconfigured", map[string]any{"provider": cfg.LLMProvider})
		return llm.Unconfigured{}, nil
	}
	return llm.WithRetry(client, cfg.LLMMaxRetries, llm.DefaultRetryDelay), nil
}

func loadAWS(ctx context.Context, region string) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
