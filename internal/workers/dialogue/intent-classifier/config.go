// internal/workers/dialogue/intent-classifier/config.go
package intentclassifier

import "time"

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// HistoryMessages counts messages, not user/assistant exchanges.
	HistoryMessages int
	// ContextPreview caps how much retrieved context the classifier sees.
	ContextPreview int
	Timeout        time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Model:           "gpt-4.1-nano",
		Temperature:     0.1,
		MaxTokens:       300,
		HistoryMessages: 3,
		ContextPreview:  100,
		Timeout:         30 * time.Second,
	}
}
