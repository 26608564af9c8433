// Package session persists conversation history between turns.
package session

import (
	"context"
	"strings"

	"dialogue-engine/internal/models"
)

// MaxSearchResults caps SearchMessages.
const MaxSearchResults = 50

// Store is the session history backend.
type Store interface {
	CreateSession(ctx context.Context, metadata map[string]interface{}) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	SaveMessage(ctx context.Context, sessionID, role, content string, metadata map[string]interface{}) error
	// GetHistory returns the last limit messages oldest first; limit <= 0 returns all.
	GetHistory(ctx context.Context, sessionID string, limit int) ([]models.StoredMessage, error)
	// ListSessions returns sessions newest first with their message counts.
	ListSessions(ctx context.Context, limit int) ([]models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	// SearchMessages finds messages containing query, newest first.
	SearchMessages(ctx context.Context, query string, limit int) ([]models.StoredMessage, error)
	Close() error
}

func searchLimit(limit int) int {
	if limit <= 0 || limit > MaxSearchResults {
		return MaxSearchResults
	}
	return limit
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
