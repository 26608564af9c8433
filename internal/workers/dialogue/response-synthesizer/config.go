// internal/workers/dialogue/response-synthesizer/config.go
package responsesynthesizer

import "time"

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// HistoryMessages counts messages, not user/assistant exchanges.
	HistoryMessages int
	// ItemLimit caps each evidence item, CombinedLimit the joined evidence.
	ItemLimit      int
	CombinedLimit  int
	LimitedContent int
	Timeout        time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Model:           "gpt-4o-mini",
		Temperature:     0.3,
		MaxTokens:       1500,
		HistoryMessages: 3,
		ItemLimit:       2000,
		CombinedLimit:   1500,
		LimitedContent:  100,
		Timeout:         60 * time.Second,
	}
}
