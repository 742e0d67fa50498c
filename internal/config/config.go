// Package config loads the service's YAML configuration, the way the
// teacher's own config package does: search a handful of conventional
// paths when none is given, fall back to an in-memory default under test,
// and let a small set of environment variables override secrets so they
// never need to live in the YAML file on disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ai-agent-go/internal/logger"
)

// EmbeddingConfig configures the Embedding Client (component B).
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // e.g. "aliyun"
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key,omitempty"`
	QPM        int    `yaml:"qpm"`
}

// ChatModelConfig configures the Chat Model Client used by the LLM
// Re-ranker (component G) and the Conversational Filter (component J).
type ChatModelConfig struct {
	Provider    string  `yaml:"provider"` // e.g. "aliyun"
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	QPM         int     `yaml:"qpm"`
}

// MySQLConfig configures the keyword half of the Document Store Adapter.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	MaxIdleConns           int `yaml:"max_idle_conns"`
	MaxOpenConns           int `yaml:"max_open_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
	ConnMaxIdleTimeMinutes int `yaml:"conn_max_idle_time_minutes"`
	ConnectTimeoutSeconds  int `yaml:"connect_timeout_seconds"`
	ReadTimeoutSeconds     int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int `yaml:"write_timeout_seconds"`
	LogLevel               int `yaml:"log_level"`
}

// QdrantConfig configures the vector half of the Document Store Adapter.
type QdrantConfig struct {
	Endpoint           string `yaml:"endpoint"`
	Collection         string `yaml:"collection"`
	Dimension          int    `yaml:"dimension"`
	APIKey             string `yaml:"api_key,omitempty"`
	DefaultSearchLimit int    `yaml:"default_search_limit"`
}

// RedisConfig configures the short-TTL search cache and dedup lock.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	PoolSize            int `yaml:"pool_size"`
	MinIdleConns        int `yaml:"min_idle_conns"`
	DialTimeoutSeconds  int `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	MaxRetries          int `yaml:"max_retries"`
}

// ServerConfig configures the Hertz HTTP listener.
type ServerConfig struct {
	Address string `yaml:"address"` // e.g. ":8080"

	// APIKey, when non-empty, requires every /api/v1 request to present it
	// via the X-API-Key header. Blank disables the check entirely, which
	// is the default for local development.
	APIKey string `yaml:"api_key,omitempty"`
}

// LoggerConfig configures the global zerolog logger.
type LoggerConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	TimeFormat   string `yaml:"time_format"`
	ReportCaller bool   `yaml:"report_caller"`
}

// HybridConfig configures the Hybrid Engine's fusion weights (spec §3).
// w_v + w_k is expected to sum to ~1.0; violations are logged, not
// rejected — the invariant is a soft one.
type HybridConfig struct {
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// RerankConfig controls whether the Retrieval Pipeline invokes the LLM
// Re-ranker and how many candidates it asks the engines for when it does.
type RerankConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetrievalTopK int  `yaml:"retrieval_top_k"`
}

// ConversationConfig bounds in-process conversational memory (spec §5).
type ConversationConfig struct {
	MaxHistory int `yaml:"max_history"` // N_msg
}

// TracingConfig configures the OTLP exporter every component's tracer
// sends spans through. A blank Endpoint disables export entirely; spans
// are still created and usable by in-process recorders, they simply have
// nowhere to be shipped.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"` // e.g. "localhost:4317"
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Config is the complete process configuration.
type Config struct {
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	ChatModel    ChatModelConfig    `yaml:"chat_model"`
	MySQL        MySQLConfig        `yaml:"mysql"`
	Qdrant       QdrantConfig       `yaml:"qdrant"`
	Redis        RedisConfig        `yaml:"redis"`
	Server       ServerConfig       `yaml:"server"`
	Hybrid       HybridConfig       `yaml:"hybrid"`
	Rerank       RerankConfig       `yaml:"rerank"`
	Conversation ConversationConfig `yaml:"conversation"`
	Logger       LoggerConfig       `yaml:"logger"`
	Tracing      TracingConfig      `yaml:"tracing"`

	// ModelQPMLimits overrides per-model QPM for the token-bucket rate
	// limiters, keyed by model id. Falls back to Embedding.QPM/ChatModel.QPM
	// when a model has no entry.
	ModelQPMLimits map[string]int `yaml:"model_qpm_limits"`

	// IngestionBatchSize is a placeholder for the out-of-scope ingestion
	// path's batch size, kept so a future ingestion service can share this
	// config file without a breaking schema change.
	IngestionBatchSize int `yaml:"ingestion_batch_size"`
}

// LoadConfig loads configuration from configPath, or — if configPath is
// empty — searches conventional locations (cwd, parent dirs, the
// executable's directory, $HOME/.resume-retrieval-core). In a test binary
// (detected via os.Args), a missing file falls back to an in-memory
// default instead of failing, so package tests don't need fixtures.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		searchPaths := []string{
			"config.yaml",
			"./config.yaml",
			"../config.yaml",
			"../../config.yaml",
			filepath.Join(os.Getenv("HOME"), ".resume-retrieval-core", "config.yaml"),
		}

		if execPath, err := os.Executable(); err == nil {
			execDir := filepath.Dir(execPath)
			searchPaths = append(searchPaths, filepath.Join(execDir, "config.yaml"))
			searchPaths = append(searchPaths, filepath.Join(execDir, "..", "config.yaml"))
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}

		if configPath == "" {
			if inTestBinary() {
				return defaultConfig(), nil
			}
			configPath = "config.yaml"
		}
	}

	if _, err := os.Stat(configPath); err != nil {
		if inTestBinary() {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	validateHybridWeights(&cfg)

	return &cfg, nil
}

func inTestBinary() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, "test") {
			return true
		}
	}
	return false
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("CHAT_MODEL_API_KEY"); v != "" {
		cfg.ChatModel.APIKey = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Qdrant.APIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1024
	}
	if cfg.Qdrant.Dimension == 0 {
		cfg.Qdrant.Dimension = cfg.Embedding.Dimensions
	}
	if cfg.Qdrant.DefaultSearchLimit == 0 {
		cfg.Qdrant.DefaultSearchLimit = 10
	}
	if cfg.Hybrid.VectorWeight == 0 && cfg.Hybrid.KeywordWeight == 0 {
		cfg.Hybrid.VectorWeight = 0.7
		cfg.Hybrid.KeywordWeight = 0.3
	}
	if cfg.Rerank.RetrievalTopK == 0 {
		cfg.Rerank.RetrievalTopK = 10
	}
	if cfg.Conversation.MaxHistory == 0 {
		cfg.Conversation.MaxHistory = 10
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
}

// validateHybridWeights logs, rather than rejects, a hybrid weight pair
// that doesn't sum to ~1.0. spec §3 treats this as a soft invariant.
func validateHybridWeights(cfg *Config) {
	sum := cfg.Hybrid.VectorWeight + cfg.Hybrid.KeywordWeight
	if sum < 0.99 || sum > 1.01 {
		logger.Warn().
			Float64("vector_weight", cfg.Hybrid.VectorWeight).
			Float64("keyword_weight", cfg.Hybrid.KeywordWeight).
			Msg("hybrid weights do not sum to ~1.0")
	}
}

// defaultConfig returns a config usable for unit tests and local/offline
// runs, with no external dependency reachable. The embedding and chat-model
// providers are set to "mock", so cmd/server builds the in-process mock
// clients for them; there is no mock document store, and the MySQL, Qdrant
// and Redis settings point at localhost.
func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Model = "text-embedding-v3"
	cfg.Embedding.Dimensions = 1024
	cfg.Embedding.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
	cfg.Embedding.QPM = 1200

	cfg.ChatModel.Provider = "mock"
	cfg.ChatModel.Model = "qwen-turbo"
	cfg.ChatModel.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	cfg.ChatModel.Temperature = 0.2
	cfg.ChatModel.MaxTokens = 1024
	cfg.ChatModel.QPM = 1200

	cfg.MySQL.Host = "localhost"
	cfg.MySQL.Port = 3306
	cfg.MySQL.Username = "root"
	cfg.MySQL.Password = "password"
	cfg.MySQL.Database = "resume_retrieval_core"
	cfg.MySQL.MaxIdleConns = 10
	cfg.MySQL.MaxOpenConns = 100
	cfg.MySQL.ConnMaxLifetimeMinutes = 60
	cfg.MySQL.ConnMaxIdleTimeMinutes = 30
	cfg.MySQL.ConnectTimeoutSeconds = 10
	cfg.MySQL.ReadTimeoutSeconds = 30
	cfg.MySQL.WriteTimeoutSeconds = 30
	cfg.MySQL.LogLevel = 4

	cfg.Qdrant.Endpoint = "http://localhost:6333"
	cfg.Qdrant.Collection = "resume_documents"
	cfg.Qdrant.Dimension = 1024
	cfg.Qdrant.DefaultSearchLimit = 10

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.PoolSize = 10
	cfg.Redis.MinIdleConns = 2
	cfg.Redis.DialTimeoutSeconds = 5
	cfg.Redis.ReadTimeoutSeconds = 3
	cfg.Redis.WriteTimeoutSeconds = 3
	cfg.Redis.MaxRetries = 3

	cfg.Server.Address = ":8080"

	cfg.Hybrid.VectorWeight = 0.7
	cfg.Hybrid.KeywordWeight = 0.3

	cfg.Rerank.Enabled = true
	cfg.Rerank.RetrievalTopK = 10

	cfg.Conversation.MaxHistory = 10

	cfg.Logger.Level = "info"
	cfg.Logger.Format = "pretty"
	cfg.Logger.TimeFormat = "2006-01-02 15:04:05"
	cfg.Logger.ReportCaller = true

	cfg.Tracing.ServiceName = "resume-retrieval-core"

	cfg.ModelQPMLimits = map[string]int{
		"qwen-max":   1200,
		"qwen-plus":  15000,
		"qwen-turbo": 1200,
	}

	return cfg
}

// CreateSampleConfig writes a starter config.yaml to filePath, refusing to
// overwrite an existing file.
func CreateSampleConfig(filePath string) error {
	if _, err := os.Stat(filePath); err == nil {
		return fmt.Errorf("file %q already exists, refusing to overwrite", filePath)
	}

	cfg := defaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal sample config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write sample config %q: %w", filePath, err)
	}
	return nil
}

// QPMFor returns the rate-limit QPM for modelName, falling back to
// fallback when no override is configured.
func (c *Config) QPMFor(modelName string, fallback int) int {
	if c.ModelQPMLimits != nil {
		if qpm, ok := c.ModelQPMLimits[modelName]; ok && qpm > 0 {
			return qpm
		}
	}
	return fallback
}

// GetDuration parses durationStr, falling back to defaultDuration on an
// empty string or parse error.
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
