package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"legal-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool

	DocumentStore string
	DatabaseURL   string
	DynamoTable   string

	OCRBackend string

	LLMProvider   string
	LLMModel      string
	LLMMaxTokens  int
	LLMMaxRetries int
	OpenAIAPIKey  string

	SQSQueueURL       string
	ConditionalWrites bool

	ProcessRatePerSec float64
	ProcessRateBurst  int
}

// fileConfig mirrors the optional YAML overlay. Zero values leave the default in place.
type fileConfig struct {
	Port               string   `yaml:"port"`
	Env                string   `yaml:"env"`
	CORSAllowOrigins   []string `yaml:"cors_allow_origins"`
	ObjectStore        string   `yaml:"object_store"`
	LocalStoreDir      string   `yaml:"local_store_dir"`
	AWSRegion          string   `yaml:"aws_region"`
	S3Bucket           string   `yaml:"s3_bucket"`
	S3Prefix           string   `yaml:"s3_prefix"`
	SSEKMSKeyID        string   `yaml:"sse_kms_key_id"`
	MinioEndpoint      string   `yaml:"minio_endpoint"`
	MinioBucket        string   `yaml:"minio_bucket"`
	MinioUseSSL        *bool    `yaml:"minio_use_ssl"`
	DocumentStore      string   `yaml:"document_store"`
	DynamoTable        string   `yaml:"dynamodb_table"`
	OCRBackend         string   `yaml:"ocr_backend"`
	LLMProvider        string   `yaml:"llm_provider"`
	LLMModel           string   `yaml:"llm_model"`
	LLMMaxTokens       int      `yaml:"llm_max_tokens"`
	LLMMaxRetries      int      `yaml:"llm_max_retries"`
	SQSQueueURL        string   `yaml:"sqs_queue_url"`
	ConditionalWrites  *bool    `yaml:"conditional_writes"`
	RateLimitPerSecond float64  `yaml:"rate_limit_process_per_sec"`
	RateLimitBurst     int      `yaml:"rate_limit_process_burst"`
}

func defaults() Config {
	return Config{
		Port:              "8080",
		Env:               "dev",
		CORSAllowOrigin:   []string{"http://localhost:5173"},
		ObjectStoreType:   "local",
		LocalStoreDir:     "./data",
		MinioBucket:       "documents",
		DocumentStore:     "memory",
		OCRBackend:        "local",
		LLMProvider:       "openai",
		LLMModel:          "gpt-4o-mini",
		LLMMaxTokens:      4096,
		ProcessRatePerSec: 1,
		ProcessRateBurst:  5,
	}
}

// Load reads configuration from defaults, an optional YAML file named by
// CONFIG_FILE and environment variables, in that order.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			telemetry.Error("config.file_error", map[string]any{"path": path, "error": err.Error()})
		}
	}
	applyEnv(&cfg)

	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStoreType = normalizeStoreType(cfg.ObjectStoreType)
	cfg.DocumentStore = normalizeDocumentStore(cfg.DocumentStore, cfg.DatabaseURL)
	cfg.OCRBackend = strings.ToLower(strings.TrimSpace(cfg.OCRBackend))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))

	if cfg.Env == "production" && cfg.DocumentStore == "memory" {
		telemetry.Error("config.memory_store_in_production", map[string]any{"env": cfg.Env})
	}
	return cfg
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.Port, fc.Port)
	setString(&cfg.Env, fc.Env)
	if len(fc.CORSAllowOrigins) > 0 {
		cfg.CORSAllowOrigin = fc.CORSAllowOrigins
	}
	setString(&cfg.ObjectStoreType, fc.ObjectStore)
	setString(&cfg.LocalStoreDir, fc.LocalStoreDir)
	setString(&cfg.AWSRegion, fc.AWSRegion)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3Prefix, fc.S3Prefix)
	setString(&cfg.SSEKMSKeyID, fc.SSEKMSKeyID)
	setString(&cfg.MinioEndpoint, fc.MinioEndpoint)
	setString(&cfg.MinioBucket, fc.MinioBucket)
	if fc.MinioUseSSL != nil {
		cfg.MinioUseSSL = *fc.MinioUseSSL
	}
	setString(&cfg.DocumentStore, fc.DocumentStore)
	setString(&cfg.DynamoTable, fc.DynamoTable)
	setString(&cfg.OCRBackend, fc.OCRBackend)
	setString(&cfg.LLMProvider, fc.LLMProvider)
	setString(&cfg.LLMModel, fc.LLMModel)
	if fc.LLMMaxTokens > 0 {
		cfg.LLMMaxTokens = fc.LLMMaxTokens
	}
	if fc.LLMMaxRetries > 0 {
		cfg.LLMMaxRetries = fc.LLMMaxRetries
	}
	setString(&cfg.SQSQueueURL, fc.SQSQueueURL)
	if fc.ConditionalWrites != nil {
		cfg.ConditionalWrites = *fc.ConditionalWrites
	}
	if fc.RateLimitPerSecond > 0 {
		cfg.ProcessRatePerSec = fc.RateLimitPerSecond
	}
	if fc.RateLimitBurst > 0 {
		cfg.ProcessRateBurst = fc.RateLimitBurst
	}
	return nil
}

// Secrets are only read from the environment.
func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	if raw := os.Getenv("CORS_ALLOW_ORIGINS"); raw != "" {
		cfg.CORSAllowOrigin = splitAndTrim(raw)
	}
	cfg.ObjectStoreType = getEnv("OBJECT_STORE", cfg.ObjectStoreType)
	cfg.LocalStoreDir = getEnv("LOCAL_STORE_DIR", cfg.LocalStoreDir)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("S3_PREFIX", cfg.S3Prefix)
	cfg.SSEKMSKeyID = getEnv("SSE_KMS_KEY_ID", cfg.SSEKMSKeyID)
	cfg.MinioEndpoint = getEnv("MINIO_ENDPOINT", cfg.MinioEndpoint)
	cfg.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", cfg.MinioAccessKey)
	cfg.MinioSecretKey = getEnv("MINIO_SECRET_KEY", cfg.MinioSecretKey)
	cfg.MinioBucket = getEnv("MINIO_BUCKET", cfg.MinioBucket)
	cfg.MinioUseSSL = getBool("MINIO_USE_SSL", cfg.MinioUseSSL)
	cfg.DocumentStore = getEnv("DOCUMENT_STORE", cfg.DocumentStore)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DynamoTable = getEnv("DYNAMODB_TABLE", cfg.DynamoTable)
	cfg.OCRBackend = getEnv("OCR_BACKEND", cfg.OCRBackend)
	cfg.LLMProvider = getEnv("LLM_PROVIDER", cfg.LLMProvider)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.LLMMaxTokens = getInt("LLM_MAX_TOKENS", cfg.LLMMaxTokens)
	cfg.LLMMaxRetries = getInt("LLM_MAX_RETRIES", cfg.LLMMaxRetries)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.SQSQueueURL = getEnv("SQS_QUEUE_URL", cfg.SQSQueueURL)
	cfg.ConditionalWrites = getBool("CONDITIONAL_WRITES", cfg.ConditionalWrites)
	cfg.ProcessRatePerSec = getFloat("RATE_LIMIT_PROCESS_PER_SEC", cfg.ProcessRatePerSec)
	cfg.ProcessRateBurst = getInt("RATE_LIMIT_PROCESS_BURST", cfg.ProcessRateBurst)
}

func setString(dst *string, val string) {
	if strings.TrimSpace(val) != "" {
		*dst = val
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

// normalizeDocumentStore falls back to postgres when a DATABASE_URL is present
// and no explicit store was chosen.
func normalizeDocumentStore(raw, dbURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg":
		return "postgres"
	case "dynamodb", "dynamo":
		return "dynamodb"
	case "memory", "":
		if dbURL != "" && strings.TrimSpace(os.Getenv("DOCUMENT_STORE")) == "" {
			return "postgres"
		}
		return "memory"
	default:
		return "memory"
	}
}
