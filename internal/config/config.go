package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PgVectorDimensions is the width of the embedding column created by the
// pgvector migration.
const PgVectorDimensions = 1536

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Storage   StorageConfig
	Vector    VectorConfig
	Billing   BillingConfig
	Ingest    IngestConfig
	Chat      ChatConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string   // expected "iss" claim; empty disables the check
	AdminIDs  []string // identity-provider subjects allowed on admin operations
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	FallbackModel    string
	MaxRetries       int
}

type EmbeddingConfig struct {
	Backend    string // "gateway" or "langchain"
	Model      string
	BaseURL    string // langchain backend only; OpenAI-compatible endpoint
	APIKey     string
	Dimensions int
}

type StorageConfig struct {
	Backend       string // "s3" or "supabase"
	Bucket        string
	PublicBaseURL string
	PresignTTL    time.Duration

	SupabaseURL string
	SupabaseKey string

	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

type VectorConfig struct {
	Backend      string // "pgvector" or "qdrant"
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantTLS    bool
	Collection   string
}

type BillingConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	AppURL              string
	Production          bool // selects production vs test price ids
	PlanCacheTTL        time.Duration
}

type IngestConfig struct {
	Mode        string // "queue" (asynq worker) or "inline" (in-process pool)
	PoolSize    int
	Backlog     int // inline mode: jobs queued while every worker is busy
	MaxBlobMB   int
	Concurrency int
}

type ChatConfig struct {
	PageSize     int // default limit for message pages
	HistorySize  int
	ContextPages int
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real env vars win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ints := map[string]*int{}
	cfg := &Config{}

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	burst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	rps, err := getEnvFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	cfg.Server = ServerConfig{
		Host:           getEnv("SERVER_HOST", "0.0.0.0"),
		Port:           port,
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
	}
	cfg.Log = LogConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}
	cfg.Database = DatabaseConfig{URL: getEnv("DATABASE_URL", "")}
	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
	}
	cfg.Auth = AuthConfig{
		JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		Issuer:    getEnv("AUTH_ISSUER", ""),
		AdminIDs:  getEnvList("ADMIN_IDS", nil),
	}
	cfg.LLM = LLMConfig{
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
		DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
		DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gpt-4o-mini"),
		FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
		FallbackModel:    getEnv("LLM_FALLBACK_MODEL", ""),
	}
	cfg.Embedding = EmbeddingConfig{
		Backend: getEnv("EMBEDDING_BACKEND", "gateway"),
		Model:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		BaseURL: getEnv("EMBEDDING_BASE_URL", ""),
		APIKey:  getEnv("EMBEDDING_API_KEY", getEnv("OPENAI_API_KEY", "")),
	}
	cfg.Storage = StorageConfig{
		Backend:        getEnv("STORAGE_BACKEND", "s3"),
		Bucket:         getEnv("STORAGE_BUCKET", "pdfmate"),
		PublicBaseURL:  strings.TrimSuffix(getEnv("STORAGE_PUBLIC_BASE_URL", ""), "/"),
		SupabaseURL:    getEnv("SUPABASE_URL", ""),
		SupabaseKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3UsePathStyle: getEnvBool("S3_USE_PATH_STYLE", false),
	}
	cfg.Vector = VectorConfig{
		Backend:      getEnv("VECTOR_BACKEND", "pgvector"),
		QdrantHost:   getEnv("QDRANT_HOST", "localhost"),
		QdrantAPIKey: getEnv("QDRANT_API_KEY", ""),
		QdrantTLS:    getEnvBool("QDRANT_TLS", false),
		Collection:   getEnv("VECTOR_COLLECTION", "pdfmate"),
	}
	cfg.Billing = BillingConfig{
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		AppURL:              strings.TrimSuffix(getEnv("APP_URL", "http://localhost:3000"), "/"),
		Production:          getEnvBool("BILLING_PRODUCTION", false),
	}
	cfg.Ingest = IngestConfig{Mode: getEnv("INGEST_MODE", "queue")}

	ints["DB_MAX_CONNS"] = &cfg.Database.MaxConns
	ints["DB_MIN_CONNS"] = &cfg.Database.MinConns
	ints["REDIS_DB"] = &cfg.Redis.DB
	ints["LLM_MAX_RETRIES"] = &cfg.LLM.MaxRetries
	ints["EMBEDDING_DIMENSIONS"] = &cfg.Embedding.Dimensions
	ints["QDRANT_PORT"] = &cfg.Vector.QdrantPort
	ints["INGEST_POOL_SIZE"] = &cfg.Ingest.PoolSize
	ints["INGEST_BACKLOG"] = &cfg.Ingest.Backlog
	ints["INGEST_MAX_BLOB_MB"] = &cfg.Ingest.MaxBlobMB
	ints["WORKER_CONCURRENCY"] = &cfg.Ingest.Concurrency
	ints["CHAT_PAGE_SIZE"] = &cfg.Chat.PageSize
	ints["CHAT_HISTORY_SIZE"] = &cfg.Chat.HistorySize
	ints["CHAT_CONTEXT_PAGES"] = &cfg.Chat.ContextPages

	defaults := map[string]int{
		"DB_MAX_CONNS":         20,
		"DB_MIN_CONNS":         2,
		"REDIS_DB":             0,
		"LLM_MAX_RETRIES":      2,
		"EMBEDDING_DIMENSIONS": 1536,
		"QDRANT_PORT":          6334,
		"INGEST_POOL_SIZE":     4,
		"INGEST_BACKLOG":       64,
		"INGEST_MAX_BLOB_MB":   32,
		"WORKER_CONCURRENCY":   10,
		"CHAT_PAGE_SIZE":       10,
		"CHAT_HISTORY_SIZE":    6,
		"CHAT_CONTEXT_PAGES":   4,
	}
	for key, dst := range ints {
		v, err := getEnvInt(key, defaults[key])
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = v
	}

	ttl, err := getEnvDuration("STORAGE_PRESIGN_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_PRESIGN_TTL: %w", err)
	}
	cfg.Storage.PresignTTL = ttl

	planTTL, err := getEnvDuration("BILLING_PLAN_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid BILLING_PLAN_CACHE_TTL: %w", err)
	}
	cfg.Billing.PlanCacheTTL = planTTL

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports the settings the API server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	switch c.Storage.Backend {
	case "s3":
	case "supabase":
		if c.Storage.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	switch c.Vector.Backend {
	case "pgvector", "qdrant":
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.Vector.Backend)
	}
	switch c.Ingest.Mode {
	case "queue", "inline":
	default:
		return fmt.Errorf("unknown INGEST_MODE %q", c.Ingest.Mode)
	}
	if c.Vector.Backend == "pgvector" {
		if c.Database.URL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if c.Embedding.Dimensions != PgVectorDimensions {
			return fmt.Errorf("EMBEDDING_DIMENSIONS must be %d with VECTOR_BACKEND=pgvector, got %d",
				PgVectorDimensions, c.Embedding.Dimensions)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
