package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "./configs/config.yaml"

type Config struct {
	App         AppConfig         `yaml:"app"`
	Server      ServerConfig      `yaml:"server"`
	RAG         RAGConfig         `yaml:"rag"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	LLM         LLMConfig         `yaml:"llm"`
	Session     SessionConfig     `yaml:"session"`
	Redis       RedisConfig       `yaml:"redis"`
}

type AppConfig struct {
	UploadDir string `yaml:"upload_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // console or json
}

type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	GinMode      string   `yaml:"gin_mode"`
	AllowOrigins []string `yaml:"allow_origins"`
	MaxUploadMB  int      `yaml:"max_upload_mb"`
}

// RAGConfig controls how documents are split before indexing.
type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float32 `yaml:"min_score"`
}

type VectorStoreConfig struct {
	Backend       string `yaml:"backend"` // chromem or pgvector
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type DatabaseConfig struct {
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	Driver     string `yaml:"driver"` // pgdriver or pq
	Table      string `yaml:"table"`
	Dimensions int    `yaml:"dimensions"`
	Debug      bool   `yaml:"debug"`
}

// LLMConfig is shared by the embedding model and the chat model.
type LLMConfig struct {
	Provider          string        `yaml:"provider"` // ollama or openai
	BaseURL           string        `yaml:"base_url"`
	Key               string        `yaml:"key"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	BatchSize         int           `yaml:"batch_size"`
}

type SessionConfig struct {
	MaxHistory     int    `yaml:"max_history"`     // negative keeps every turn
	HistoryBackend string `yaml:"history_backend"` // memory or redis
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// LoadConfig reads the yaml file at path. A missing file yields the defaults.
// Values from the environment (and a .env file, if present) take precedence.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	overrideByEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	switch c.VectorStore.Backend {
	case "chromem", "pgvector":
	default:
		return fmt.Errorf("unknown vector store backend %q", c.VectorStore.Backend)
	}
	if c.VectorStore.Backend == "pgvector" && c.Database.DSN == "" {
		return errors.New("database.dsn is required for the pgvector backend")
	}
	if k := c.VectorStore.EncryptionKey; k != "" && len(k) != 32 {
		return errors.New("vector_store.encryption_key must be 32 bytes")
	}
	switch c.Session.HistoryBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown history backend %q", c.Session.HistoryBackend)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.UploadDir == "" {
		cfg.App.UploadDir = "uploaded_docs"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = "console"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GinMode == "" {
		cfg.Server.GinMode = "release"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = 1000
	}
	switch {
	case cfg.RAG.ChunkOverlap < 0:
		// negative disables overlap
		cfg.RAG.ChunkOverlap = 0
	case cfg.RAG.ChunkOverlap == 0:
		cfg.RAG.ChunkOverlap = min(200, cfg.RAG.ChunkSize/5)
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = "chromem"
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "vector_store"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "docs"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgdriver"
	}
	if cfg.Database.Table == "" {
		cfg.Database.Table = "documents"
	}
	if cfg.Database.Dimensions == 0 {
		cfg.Database.Dimensions = 768
	}
	applyLLMDefaults(&cfg.EmbedLLM, "nomic-embed-text")
	applyLLMDefaults(&cfg.LLM, "llama3")
	if cfg.EmbedLLM.BatchSize <= 0 {
		cfg.EmbedLLM.BatchSize = 32
	}
	if cfg.Session.HistoryBackend == "" {
		cfg.Session.HistoryBackend = "memory"
	}
	if cfg.Session.MaxHistory == 0 {
		cfg.Session.MaxHistory = 50
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}
}

func applyLLMDefaults(c *LLMConfig, model string) {
	if c.Provider == "" {
		c.Provider = "ollama"
	}
	if c.BaseURL == "" {
		switch c.Provider {
		case "openai":
			c.BaseURL = "https://api.openai.com/v1"
		default:
			c.BaseURL = "http://localhost:11434"
		}
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 600
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.UploadDir = getEnv("DOCQA_UPLOAD_DIR", cfg.App.UploadDir)
	cfg.App.LogLevel = getEnv("DOCQA_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.LogFormat = getEnv("DOCQA_LOG_FORMAT", cfg.App.LogFormat)

	cfg.Server.Host = getEnv("DOCQA_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsInt("DOCQA_PORT", cfg.Server.Port)
	cfg.Server.GinMode = getEnv("GIN_MODE", cfg.Server.GinMode)
	if origins := getEnv("DOCQA_ALLOW_ORIGINS", ""); origins != "" {
		cfg.Server.AllowOrigins = strings.Split(origins, ",")
	}

	cfg.RAG.ChunkSize = getEnvAsInt("DOCQA_CHUNK_SIZE", cfg.RAG.ChunkSize)
	cfg.RAG.ChunkOverlap = getEnvAsInt("DOCQA_CHUNK_OVERLAP", cfg.RAG.ChunkOverlap)
	cfg.Retrieval.TopK = getEnvAsInt("DOCQA_TOP_K", cfg.Retrieval.TopK)

	cfg.VectorStore.Backend = getEnv("DOCQA_VECTOR_BACKEND", cfg.VectorStore.Backend)
	cfg.VectorStore.Path = getEnv("DOCQA_VECTOR_PATH", cfg.VectorStore.Path)
	cfg.VectorStore.EncryptionKey = getEnv("DOCQA_ENCRYPTION_KEY", cfg.VectorStore.EncryptionKey)

	cfg.Database.DSN = getEnv("DOCQA_DATABASE_DSN", cfg.Database.DSN)
	cfg.Database.Password = getEnv("DOCQA_DATABASE_PASSWORD", cfg.Database.Password)

	cfg.EmbedLLM.Provider = getEnv("DOCQA_EMBED_PROVIDER", cfg.EmbedLLM.Provider)
	cfg.EmbedLLM.BaseURL = getEnv("DOCQA_EMBED_BASE_URL", cfg.EmbedLLM.BaseURL)
	cfg.EmbedLLM.Model = getEnv("DOCQA_EMBED_MODEL", cfg.EmbedLLM.Model)
	cfg.EmbedLLM.Key = getEnv("DOCQA_EMBED_KEY", getEnv("OPENAI_API_KEY", cfg.EmbedLLM.Key))

	cfg.LLM.Provider = getEnv("DOCQA_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = getEnv("DOCQA_LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnv("DOCQA_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Key = getEnv("DOCQA_LLM_KEY", getEnv("OPENAI_API_KEY", cfg.LLM.Key))

	cfg.Session.MaxHistory = getEnvAsInt("DOCQA_MAX_HISTORY", cfg.Session.MaxHistory)
	cfg.Session.HistoryBackend = getEnv("DOCQA_HISTORY_BACKEND", cfg.Session.HistoryBackend)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
