// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	APIs     APIsConfig     `mapstructure:"apis"`
	Dialogue DialogueConfig `mapstructure:"dialogue"`
	Actions  ActionsConfig  `mapstructure:"actions"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
	TurnTimeout  int    `mapstructure:"turn_timeout"`  // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // single URL shortcut
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig selects where conversation history is persisted.
type SessionConfig struct {
	Backend   string `mapstructure:"backend"` // postgres | redis
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       int    `mapstructure:"ttl"` // milliseconds, redis only; 0 keeps forever
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		BaseURL         string  `mapstructure:"base_url"`
		APIKey          string  `mapstructure:"api_key"`
		Timeout         int     `mapstructure:"timeout"` // milliseconds
		MaxRetries      int     `mapstructure:"max_retries"`
		ClassifierModel string  `mapstructure:"classifier_model"`
		SynthesisModel  string  `mapstructure:"synthesis_model"`
		Temperature     float64 `mapstructure:"temperature"`
		MaxTokens       int     `mapstructure:"max_tokens"`
	} `mapstructure:"genai"`

	Embedding struct {
		BaseURL      string `mapstructure:"base_url"`
		APIKey       string `mapstructure:"api_key"`
		Timeout      int    `mapstructure:"timeout"` // milliseconds
		CacheSize    int    `mapstructure:"cache_size"`
		LocalBaseURL string `mapstructure:"local_base_url"`
		LocalModel   string `mapstructure:"local_model"`
	} `mapstructure:"embedding"`

	VectorIndex struct {
		Backend string `mapstructure:"backend"` // pinecone | elasticsearch
		Host    string `mapstructure:"host"`
		APIKey  string `mapstructure:"api_key"`
		Index   string `mapstructure:"index"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"vector_index"`

	WebSearch struct {
		BaseURL  string `mapstructure:"base_url"`
		APIKey   string `mapstructure:"api_key"`
		EngineID string `mapstructure:"engine_id"`
		Locale   string `mapstructure:"locale"`
		Timeout  int    `mapstructure:"timeout"`   // milliseconds
		CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds
	} `mapstructure:"web_search"`

	Redmine struct {
		URL       string `mapstructure:"url"`
		APIKey    string `mapstructure:"api_key"`
		UserID    string `mapstructure:"user_id"`
		ProjectID string `mapstructure:"project_id"`
		Timeout   int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"redmine"`
}

// DialogueConfig tunes the orchestration pipeline.
type DialogueConfig struct {
	DefaultMode  string `mapstructure:"default_mode"`
	TopK         int    `mapstructure:"top_k"`
	WebResults   int    `mapstructure:"web_results"`
	FetchDelay   int    `mapstructure:"fetch_delay"`   // milliseconds
	FetchTimeout int    `mapstructure:"fetch_timeout"` // milliseconds
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

// ActionsConfig points at an optional catalogue override file.
type ActionsConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
