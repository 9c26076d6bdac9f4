package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int               `json:"port"`
	APIToken      string            `json:"api_token"`
	CORSOrigins   []string          `json:"cors_origins"`
	RequestWindow int               `json:"request_window_ms"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	Database      DatabaseConfig    `json:"database"`
	AI            AIConfig          `json:"ai"`
	Embedding     EmbeddingConfig   `json:"embedding"`
	Chunk         ChunkConfig       `json:"chunk"`
	Retrieval     RetrievalConfig   `json:"retrieval"`
	Extract       ExtractConfig     `json:"extract"`
	Fetch         FetchConfig       `json:"fetch"`
	VectorStore   VectorStoreConfig `json:"vector_store"`
	SnapshotStore FileStoreConfig   `json:"snapshot_store"`
	Jobs          JobsConfig        `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

type ProviderConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ModelRef points a task at a named provider and the model it should use there.
type ModelRef struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

type AIConfig struct {
	Providers        map[string]ProviderConfig `json:"providers"`
	Insight          []ModelRef                `json:"insight"`
	Answer           []ModelRef                `json:"answer"`
	Embed            ModelRef                  `json:"embed"`
	Timeout          int                       `json:"timeout"`
	MaxInputChars    int                       `json:"max_input_chars"`
	EmbedConcurrency int                       `json:"embed_concurrency"`
	RateLimit        RateLimitConfig           `json:"rate_limit"`
}

type EmbeddingConfig struct {
	Dimension     int  `json:"dimension"`
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DBCache       bool `json:"db_cache"`
}

type ChunkConfig struct {
	MaxChars     int `json:"max_chars"`
	OverlapChars int `json:"overlap_chars"`
}

type RetrievalConfig struct {
	TopK         int `json:"top_k"`
	HistoryTurns int `json:"history_turns"`
}

type ExtractConfig struct {
	MinBlockChars       int      `json:"min_block_chars"`
	BoilerplateKeywords []string `json:"boilerplate_keywords"`
}

type FetchConfig struct {
	Timeout   int    `json:"timeout"`
	MaxBytes  int64  `json:"max_bytes"`
	UserAgent string `json:"user_agent"`
}

type VectorStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// PersistPath returns data.path of the store, empty when it is in-memory.
func (c VectorStoreConfig) PersistPath() string {
	data, ok := c.Data.(map[string]interface{})
	if !ok {
		return ""
	}
	path, _ := data["path"].(string)
	return strings.TrimSpace(path)
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JobsConfig struct {
	EmbeddingCacheCleanup    string `json:"embedding_cache_cleanup"`
	EmbeddingCacheMaxAgeDays int    `json:"embedding_cache_max_age_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 60
	}
	if c.AI.MaxInputChars <= 0 {
		c.AI.MaxInputChars = 24000
	}
	if c.AI.EmbedConcurrency <= 0 {
		c.AI.EmbedConcurrency = 4
	}
	if c.Embedding.LRUSize > 0 && c.Embedding.LRUTTLSeconds <= 0 {
		c.Embedding.LRUTTLSeconds = 7200
	}
	if c.Chunk.MaxChars <= 0 {
		c.Chunk.MaxChars = 1000
	}
	if c.Chunk.OverlapChars <= 0 {
		c.Chunk.OverlapChars = min(200, c.Chunk.MaxChars/5)
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.HistoryTurns <= 0 {
		c.Retrieval.HistoryTurns = 10
	}
	if c.Extract.MinBlockChars <= 0 {
		c.Extract.MinBlockChars = 20
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 15
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 2 << 20
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "memory"
	}
	if c.Jobs.EmbeddingCacheCleanup == "" {
		c.Jobs.EmbeddingCacheCleanup = "0 3 * * *"
	}
	if c.Jobs.EmbeddingCacheMaxAgeDays <= 0 {
		c.Jobs.EmbeddingCacheMaxAgeDays = 30
	}
}

func (c *Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension is required")
	}
	if c.Chunk.OverlapChars >= c.Chunk.MaxChars {
		return fmt.Errorf("chunk.overlap_chars must be smaller than chunk.max_chars")
	}
	if len(c.AI.Providers) == 0 {
		return fmt.Errorf("ai.providers is required")
	}
	if c.AI.Embed.Provider == "" || c.AI.Embed.Model == "" {
		return fmt.Errorf("ai.embed provider/model is required")
	}
	refs := append([]ModelRef{c.AI.Embed}, c.AI.Insight...)
	refs = append(refs, c.AI.Answer...)
	for _, ref := range refs {
		if _, ok := c.AI.Providers[ref.Provider]; !ok {
			return fmt.Errorf("ai provider %q is not defined in ai.providers", ref.Provider)
		}
	}
	if len(c.AI.Insight) == 0 {
		return fmt.Errorf("ai.insight requires at least one model")
	}
	if len(c.AI.Answer) == 0 {
		return fmt.Errorf("ai.answer requires at least one model")
	}
	switch strings.ToLower(c.VectorStore.Type) {
	case "memory":
	case "chromem":
		// persisted chunks are unusable once in-memory insight records are gone
		if c.VectorStore.PersistPath() != "" && !c.Database.Enabled() {
			return fmt.Errorf("database is required for a persistent chromem store")
		}
	case "pgvector":
		if !c.Database.Enabled() {
			return fmt.Errorf("database is required for pgvector store")
		}
	default:
		return fmt.Errorf("vector_store.type must be memory, chromem or pgvector")
	}
	if c.Embedding.DBCache && !c.Database.Enabled() {
		return fmt.Errorf("database is required for embedding.db_cache")
	}
	return nil
}
