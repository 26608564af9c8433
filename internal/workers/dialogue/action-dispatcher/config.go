// internal/workers/dialogue/action-dispatcher/config.go
package actiondispatcher

import "time"

type Config struct {
	// UserID is the Redmine user that "my issues" and "me" resolve to.
	UserID    string
	ProjectID string
	// SearchCount is how many web results get_google_search gathers.
	SearchCount int
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		UserID:      "me",
		ProjectID:   "1",
		SearchCount: 3,
		Timeout:     30 * time.Second,
	}
}
