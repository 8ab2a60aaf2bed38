package types

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// FragmentsPerPage is the display heuristic used to derive an approximate
// page number from a fragment's position. It has no relationship to real
// PDF page boundaries.
const FragmentsPerPage = 10

// Fragment is a contiguous slice of source text produced by chunking.
// Fragments live only for the duration of one ingestion run; after the
// embedding step only the VectorRecord survives.
type Fragment struct {
	SequenceIndex int
	Text          string
}

// ApproximatePage returns the display-only page estimate for a fragment.
func ApproximatePage(sequenceIndex int) int {
	return sequenceIndex/FragmentsPerPage + 1
}

// VectorRecord is the persisted unit: one embedded fragment plus the
// metadata needed to render it as a source.
type VectorRecord struct {
	ID            uuid.UUID
	Embedding     []float32
	Source        string
	Content       string
	SequenceIndex int
	Page          int
}

// RetrievalMatch is one similarity-search hit. It exists only within a
// single query.
type RetrievalMatch struct {
	ID            uuid.UUID
	Source        string
	Content       string
	SequenceIndex int
	Page          int
	Score         float64
}

// IndexStats reports vector store health for the connectivity probe.
type IndexStats struct {
	Fragments int64 `json:"fragments"`
	Dimension int   `json:"dimension"`
}

type IngestStatus string

const (
	IngestSuccess IngestStatus = "success"
	IngestPartial IngestStatus = "partial"
)

// IngestionOutcome summarizes one ingestion run. A run that stores zero
// vectors never produces an outcome; it fails with ErrNoVectors instead.
type IngestionOutcome struct {
	Source          string       `json:"source"`
	FragmentsTotal  int          `json:"fragments_total"`
	VectorsProduced int          `json:"vectors_produced"`
	VectorsStored   int          `json:"vectors_stored"`
	Status          IngestStatus `json:"status"`
}

// NewIngestionOutcome derives the run status from the counters.
func NewIngestionOutcome(source string, fragmentsTotal, vectorsProduced, vectorsStored int) IngestionOutcome {
	status := IngestPartial
	if vectorsStored == fragmentsTotal {
		status = IngestSuccess
	}
	return IngestionOutcome{
		Source:          source,
		FragmentsTotal:  fragmentsTotal,
		VectorsProduced: vectorsProduced,
		VectorsStored:   vectorsStored,
		Status:          status,
	}
}

// RetryPolicy bounds retries of a single external call. Delay doubles
// after every failed attempt.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

type Config struct {
	ServerAddr  string
	PostgresDSN string

	// Model providers: "openai" or "ollama".
	Provider       string
	OpenAIKey      string
	EmbedModel     string
	ChatModel      string
	OllamaEmbedURL string
	OllamaChatURL  string

	EmbedDimension int
	Temperature    float32

	ChunkSize    int
	ChunkOverlap int

	EmbedBatchSize   int
	EmbedBatchDelay  time.Duration
	UpsertBatchSize  int
	UpsertBatchDelay time.Duration
	EmbedRetry       RetryPolicy

	TopK             int
	MaxContextTokens int
	MaxStoredText    int

	MaxUploadBytes int

	// Loader settings.
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	MonitoringTime time.Duration
	CropTop        float64
	CropBottom     float64
}

// LoadConfig reads the configuration once at process start. Every value
// has a default so a bare environment still yields a usable config.
func LoadConfig() Config {
	return Config{
		ServerAddr:  envStr("SERVER_ADDR", ":8080"),
		PostgresDSN: postgresDSN(),

		Provider:       envStr("MODEL_PROVIDER", "openai"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		EmbedModel:     envStr("EMBED_MODEL", "text-embedding-3-small"),
		ChatModel:      envStr("CHAT_MODEL", "gpt-3.5-turbo"),
		OllamaEmbedURL: envStr("OLLAMA_EMBEDDING_URL", "http://localhost:11434/api/embeddings"),
		OllamaChatURL:  envStr("OLLAMA_GENERATE_URL", "http://localhost:11434/api/generate"),

		EmbedDimension: envInt("EMBED_DIMENSION", 1536),
		Temperature:    float32(envFloat("CHAT_TEMPERATURE", 0.1)),

		ChunkSize:    envInt("CHUNK_SIZE", 1000),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 200),

		EmbedBatchSize:   envInt("EMBED_BATCH_SIZE", 5),
		EmbedBatchDelay:  envDuration("EMBED_BATCH_DELAY", time.Second),
		UpsertBatchSize:  envInt("UPSERT_BATCH_SIZE", 100),
		UpsertBatchDelay: envDuration("UPSERT_BATCH_DELAY", 0),
		EmbedRetry: RetryPolicy{
			MaxAttempts: envInt("EMBED_RETRY_ATTEMPTS", 2),
			Delay:       envDuration("EMBED_RETRY_DELAY", 500*time.Millisecond),
		},

		TopK:             envInt("TOP_K", 5),
		MaxContextTokens: envInt("MAX_CONTEXT_TOKENS", 3000),
		MaxStoredText:    envInt("MAX_STORED_TEXT", 2000),

		MaxUploadBytes: envInt("MAX_UPLOAD_BYTES", 10*1024*1024),

		SourceDir:      envStr("LOADER_SOURCE_DIR", "source"),
		ArchiveDir:     envStr("LOADER_ARCHIVE_DIR", "archive"),
		BadDir:         envStr("LOADER_BAD_DIR", "bad"),
		MonitoringTime: envDuration("LOADER_MONITORING_TIME", 5*time.Second),
		CropTop:        envFloat("LOADER_CROP_TOP", 0),
		CropBottom:     envFloat("LOADER_CROP_BOTTOM", 0),
	}
}

func postgresDSN() string {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	port := envInt("PG_PORT", 5432)
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		envStr("PG_HOST", "localhost"), port, envStr("PG_USER", "postgres"),
		os.Getenv("PG_PASS"), envStr("PG_DB_NAME", "docchat"))
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
