// internal/workers/dialogue/knowledge-retriever/config.go
package knowledgeretriever

import "time"

type Config struct {
	TopK int
	// RelevanceThreshold is exclusive: a match must score above it.
	RelevanceThreshold float64
	MinSelected        int
	Timeout            time.Duration
}

func LoadConfig() *Config {
	return &Config{
		TopK:               5,
		RelevanceThreshold: 0.73,
		MinSelected:        2,
		Timeout:            30 * time.Second,
	}
}
