// internal/workers/dialogue/web-evidence/config.go
package webevidence

import "time"

type Config struct {
	Count      int
	Locale     string
	FetchDelay time.Duration
	Timeout    time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Count:      3,
		Locale:     "uk",
		FetchDelay: 500 * time.Millisecond,
		Timeout:    60 * time.Second,
	}
}
