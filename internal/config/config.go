package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP front-end.
type ServerConfig struct {
	Addr             string  `yaml:"addr"`
	Mode             string  `yaml:"mode"`
	ReadTimeoutSecs  int     `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int     `yaml:"write_timeout_secs"`
	MaxUploadMB      int     `yaml:"max_upload_mb"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps"`
	RateLimitBurst   int     `yaml:"rate_limit_burst"`
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	// File receives logs in chat mode, where stdout belongs to the terminal UI.
	File string `yaml:"file"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type    string `yaml:"type"`
	Unit    string `yaml:"unit"`
	Size    int    `yaml:"size"`
	Overlap int    `yaml:"overlap"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

type GeminiEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
// Each indexed document gets its own collection prefixed with Collection.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
	// Scope is "session" (one document per session) or "global".
	Scope string `yaml:"scope"`
	// IdleTTLMins drops a session's index after this long without activity.
	// It matches the redis session TTL by default.
	IdleTTLMins int `yaml:"idle_ttl_mins"`
}

type OpenAIGeneratorConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type GeminiGeneratorConfig struct {
	APIKeyEnv       string  `yaml:"api_key_env"`
	Model           string  `yaml:"model"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

type ExtractiveConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// GeneratorConfig selects the answer generator. TimeoutSecs bounds one answer.
type GeneratorConfig struct {
	Type        string                 `yaml:"type"`
	TimeoutSecs int                    `yaml:"timeout_secs"`
	OpenAI      *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
	Gemini      *GeminiGeneratorConfig `yaml:"gemini,omitempty"`
	Extractive  ExtractiveConfig       `yaml:"extractive"`
}

// StorageConfig selects booking storage. DSN is a postgres:// URL or a
// SQLite file name.
type StorageConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	TTLMins     int    `yaml:"ttl_mins"`
}

type SessionsConfig struct {
	Type  string       `yaml:"type"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
	From        string `yaml:"from"`
}

// NotifierConfig selects how confirmations are sent: "none", "log" or "smtp".
type NotifierConfig struct {
	Type string      `yaml:"type"`
	SMTP *SMTPConfig `yaml:"smtp,omitempty"`
}

type BookingConfig struct {
	IntentKeywords      []string `yaml:"intent_keywords,omitempty"`
	PrefillFromDocument bool     `yaml:"prefill_from_document"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Storage     StorageConfig     `yaml:"storage"`
	Sessions    SessionsConfig    `yaml:"sessions"`
	Notifier    NotifierConfig    `yaml:"notifier"`
	Booking     BookingConfig     `yaml:"booking"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/assistant/config.yaml.
// If neither exists, it writes defaults to ~/.config/assistant/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings no component can run with.
func (c *AppConfig) Validate() error {
	switch c.Chunker.Unit {
	case "words", "chars":
	default:
		return fmt.Errorf("chunker.unit must be words or chars, got %q", c.Chunker.Unit)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("chunker.overlap must be in [0, size)")
	}
	switch c.Retrieval.Scope {
	case "session", "global":
	default:
		return fmt.Errorf("retrieval.scope must be session or global, got %q", c.Retrieval.Scope)
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval.min_score must be in [-1, 1]")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "assistant", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server:      ServerConfig{Addr: ":8000"},
		Chunker:     ChunkerConfig{Type: "window", Unit: "words"},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Generator:   GeneratorConfig{Type: "extractive"},
		Storage:     StorageConfig{Type: "memory"},
		Sessions:    SessionsConfig{Type: "memory"},
		Notifier:    NotifierConfig{Type: "log"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = 30
	}
	if cfg.Server.WriteTimeoutSecs == 0 {
		cfg.Server.WriteTimeoutSecs = 60
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 20
	}
	if cfg.Server.RateLimitRPS == 0 {
		cfg.Server.RateLimitRPS = 5
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "assistant.log"
	}

	if cfg.Chunker.Unit == "" {
		cfg.Chunker.Unit = "words"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 400
	}

	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "gemini" && cfg.Embedder.Gemini != nil && cfg.Embedder.Gemini.APIKeyEnv == "" {
		cfg.Embedder.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}

	if cfg.VectorStore.Qdrant != nil && cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = "assistant"
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.Scope == "" {
		cfg.Retrieval.Scope = "session"
	}
	if cfg.Retrieval.IdleTTLMins == 0 {
		cfg.Retrieval.IdleTTLMins = 1440
	}

	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 20
	}
	if cfg.Generator.Type == "openai" && cfg.Generator.OpenAI != nil && cfg.Generator.OpenAI.APIKeyEnv == "" {
		cfg.Generator.OpenAI.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.Generator.Type == "gemini" && cfg.Generator.Gemini != nil && cfg.Generator.Gemini.APIKeyEnv == "" {
		cfg.Generator.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Generator.Extractive.MaxSentences == 0 {
		cfg.Generator.Extractive.MaxSentences = 2
	}

	if cfg.Storage.Type == "sql" && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "bookings.db"
	}

	if cfg.Sessions.Redis != nil {
		if cfg.Sessions.Redis.Addr == "" {
			cfg.Sessions.Redis.Addr = "localhost:6379"
		}
		if cfg.Sessions.Redis.TTLMins == 0 {
			cfg.Sessions.Redis.TTLMins = 24 * 60
		}
	}

	if cfg.Notifier.SMTP != nil {
		if cfg.Notifier.SMTP.Host == "" {
			cfg.Notifier.SMTP.Host = "smtp.gmail.com"
		}
		if cfg.Notifier.SMTP.Port == 0 {
			cfg.Notifier.SMTP.Port = 587
		}
		if cfg.Notifier.SMTP.PasswordEnv == "" {
			cfg.Notifier.SMTP.PasswordEnv = "EMAIL_PASSWORD"
		}
	}
}
