// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// ENV override like APIS_GENAI_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // env overlay is optional

	expandEnvVars(viper.GetViper())

	return finish(viper.GetViper())
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(v)

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from well-known env names when the yaml left them empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.APIs.GenAI.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.APIs.Embedding.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.APIs.VectorIndex.APIKey, "PINECONE_API_KEY")
	setIfEmpty(&cfg.APIs.VectorIndex.Host, "PINECONE_INDEX_HOST")
	setIfEmpty(&cfg.APIs.WebSearch.APIKey, "GOOGLE_API_KEY")
	setIfEmpty(&cfg.APIs.WebSearch.EngineID, "GOOGLE_SEARCH_ENGINE_ID")
	setIfEmpty(&cfg.APIs.Redmine.URL, "REDMINE_URL")
	setIfEmpty(&cfg.APIs.Redmine.APIKey, "REDMINE_API_KEY")
	setIfEmpty(&cfg.APIs.Redmine.UserID, "REDMINE_USER_ID")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
}

func setIfEmpty(field *string, envName string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envName); val != "" {
		*field = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dialogue-engine"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 180000
	}
	if cfg.Server.TurnTimeout == 0 {
		cfg.Server.TurnTimeout = 150000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "postgres"
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "dialogue"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	genai := &cfg.APIs.GenAI
	if genai.BaseURL == "" {
		genai.BaseURL = "https://api.openai.com/v1"
	}
	if genai.Timeout == 0 {
		genai.Timeout = 60000
	}
	if genai.MaxRetries == 0 {
		genai.MaxRetries = 2
	}
	if genai.ClassifierModel == "" {
		genai.ClassifierModel = "gpt-4.1-nano"
	}
	if genai.SynthesisModel == "" {
		genai.SynthesisModel = "gpt-4o-mini"
	}
	if genai.Temperature == 0 {
		genai.Temperature = 0.3
	}
	if genai.MaxTokens == 0 {
		genai.MaxTokens = 1500
	}

	emb := &cfg.APIs.Embedding
	if emb.BaseURL == "" {
		emb.BaseURL = genai.BaseURL
	}
	if emb.Timeout == 0 {
		emb.Timeout = 20000
	}
	if emb.CacheSize == 0 {
		emb.CacheSize = 10000
	}
	if emb.LocalModel == "" {
		emb.LocalModel = "nomic-embed-text"
	}

	vi := &cfg.APIs.VectorIndex
	if vi.Backend == "" {
		vi.Backend = "pinecone"
	}
	if vi.Index == "" {
		vi.Index = "knowledge"
	}
	if vi.Timeout == 0 {
		vi.Timeout = 10000
	}

	ws := &cfg.APIs.WebSearch
	if ws.BaseURL == "" {
		ws.BaseURL = "https://www.googleapis.com/customsearch/v1"
	}
	if ws.Locale == "" {
		ws.Locale = "uk"
	}
	if ws.Timeout == 0 {
		ws.Timeout = 10000
	}
	if ws.CacheTTL == 0 {
		ws.CacheTTL = 300000
	}

	if cfg.APIs.Redmine.UserID == "" {
		cfg.APIs.Redmine.UserID = "me"
	}
	if cfg.APIs.Redmine.Timeout == 0 {
		cfg.APIs.Redmine.Timeout = 10000
	}

	d := &cfg.Dialogue
	if d.DefaultMode == "" {
		d.DefaultMode = "hybrid"
	}
	if d.TopK == 0 {
		d.TopK = 5
	}
	if d.WebResults == 0 {
		d.WebResults = 3
	}
	if d.FetchDelay == 0 {
		d.FetchDelay = 500
	}
	if d.FetchTimeout == 0 {
		d.FetchTimeout = 10000
	}
	if d.ChunkSize == 0 {
		d.ChunkSize = 1000
	}
	if d.ChunkOverlap == 0 {
		d.ChunkOverlap = 200
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.APIs.GenAI.APIKey == "" {
		return fmt.Errorf("apis.genai.api_key is required")
	}

	switch cfg.APIs.VectorIndex.Backend {
	case "pinecone":
		if cfg.APIs.VectorIndex.Host == "" {
			return fmt.Errorf("apis.vector_index.host is required for the pinecone backend")
		}
	case "elasticsearch":
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch backend")
		}
	default:
		return fmt.Errorf("apis.vector_index.backend must be pinecone or elasticsearch, got %q", cfg.APIs.VectorIndex.Backend)
	}

	switch cfg.Session.Backend {
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required")
		}
	default:
		return fmt.Errorf("session.backend must be postgres or redis, got %q", cfg.Session.Backend)
	}

	switch cfg.Dialogue.DefaultMode {
	case "hybrid", "web_only", "redmine", "knowledge_only":
	default:
		return fmt.Errorf("dialogue.default_mode %q is not supported", cfg.Dialogue.DefaultMode)
	}

	if cfg.Dialogue.ChunkOverlap >= cfg.Dialogue.ChunkSize {
		return fmt.Errorf("dialogue.chunk_overlap must be smaller than dialogue.chunk_size")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
