package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"ragstor"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"ragstor"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Storage layout. Documents are read from <DataDir>/<user_id>, chunk
	// artifacts land in ChunksDir, ANN index and mapping files in IndexDir.
	DataDir   string `envconfig:"DATA_DIR" default:"data/docs"`
	ChunksDir string `envconfig:"CHUNKS_DIR" default:"data/chunks"`
	IndexDir  string `envconfig:"INDEX_DIR" default:"data/index"`

	// Layout model service.
	LayoutURL         string  `envconfig:"LAYOUT_URL" default:"http://layout:9000"`
	LayoutScoreThresh float64 `envconfig:"LAYOUT_SCORE_THRESH" default:"0.5"`
	RenderDPI         int     `envconfig:"RENDER_DPI" default:"150"`
	OCRLang           string  `envconfig:"OCR_LANG" default:"eng"`

	// Chunking.
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"50"`

	// Embeddings & reranking.
	EmbedModel     string `envconfig:"EMBED_MODEL" default:"gemini-embedding-001"`
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	RerankProvider string `envconfig:"RERANK_PROVIDER" default:"jina"`
	RerankAPIKey   string `envconfig:"RERANK_API_KEY"`

	// Concurrency. Document workers run whole files in parallel; page workers
	// bound OCR parallelism inside one document since every page job contends
	// for the single layout model.
	DocWorkers        int    `envconfig:"DOC_WORKERS" default:"9"`
	PageWorkers       int    `envconfig:"PAGE_WORKERS" default:"2"`
	JobTimeoutSeconds int    `envconfig:"JOB_TIMEOUT_SECONDS" default:"30"`
	IngestMode        string `envconfig:"INGEST_MODE" default:"layout"`

	ServerPort int `envconfig:"SERVER_PORT" default:"8081"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may come from the shell instead; a missing .env is fine.
	_ = godotenv.Load(".env")

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
	if c.DataDir == "" {
		return fmt.Errorf("%w: DATA_DIR", ErrMissingRequired)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be smaller than CHUNK_SIZE", ErrMissingRequired)
	}
	return nil
}

func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}
