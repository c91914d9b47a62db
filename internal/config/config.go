package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

var ErrInvalidValue = errors.New("invalid configuration value")

const (
	ExecutorPool = "pool"
	ExecutorNSQ  = "nsq"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"reelsync"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"reelsync"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd    string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost      string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP      string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQMaxMsgSize int64  `envconfig:"NSQ_MAX_MSG_SIZE" default:"1048576"`

	// Background execution
	Executor        string `envconfig:"EXECUTOR" default:"pool"`
	WorkerCount     int    `envconfig:"WORKER_COUNT" default:"10"`
	WorkerQueueSize int    `envconfig:"WORKER_QUEUE_SIZE" default:"100"`

	// Gemini
	GeminiAPIKey        string        `envconfig:"GEMINI_API_KEY"`
	CaptionModel        string        `envconfig:"CAPTION_MODEL" default:"gemini-1.5-pro"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbeddingDim        int           `envconfig:"EMBEDDING_DIM" default:"3072"`
	CaptionTimeout      time.Duration `envconfig:"CAPTION_TIMEOUT" default:"120s"`
	CaptionPollInterval time.Duration `envconfig:"CAPTION_POLL_INTERVAL" default:"1s"`

	// Routing
	SelfID         string        `envconfig:"SELF_ID"`
	PendingTTL     time.Duration `envconfig:"PENDING_TTL" default:"1h"`
	PendingWait    time.Duration `envconfig:"PENDING_WAIT" default:"5s"`
	IntentMaxWords int           `envconfig:"INTENT_MAX_WORDS" default:"10"`
	SearchTopK     int           `envconfig:"SEARCH_TOP_K" default:"1"`

	// Instagram
	WebhookVerifyToken string        `envconfig:"WEBHOOK_VERIFY_TOKEN"`
	GraphAPIURL        string        `envconfig:"GRAPH_API_URL" default:"https://graph.instagram.com/v22.0"`
	AccessToken        string        `envconfig:"ACCESS_TOKEN"`
	NotifyChunkSize    int           `envconfig:"NOTIFY_CHUNK_SIZE" default:"1000"`
	NotifyChunkDelay   time.Duration `envconfig:"NOTIFY_CHUNK_DELAY" default:"300ms"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	SearchLogPath string `envconfig:"SEARCH_LOG_PATH" default:"data/logs/search.log"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}

	switch c.Executor {
	case ExecutorPool:
	case ExecutorNSQ:
		if c.NSQDHost == "" {
			return fmt.Errorf("%w: NSQD_HOST", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: EXECUTOR=%q", ErrInvalidValue, c.Executor)
	}

	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: WORKER_COUNT must be positive", ErrInvalidValue)
	}
	if c.PendingTTL <= 0 {
		return fmt.Errorf("%w: PENDING_TTL must be positive", ErrInvalidValue)
	}
	if c.EmbeddingDim < 0 {
		return fmt.Errorf("%w: EMBEDDING_DIM", ErrInvalidValue)
	}
	return nil
}
