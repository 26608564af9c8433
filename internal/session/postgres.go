package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"dialogue-engine/internal/common/database"
	"dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/models"

	"github.com/google/uuid"
)

// Schema is applied by Migrate.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS dialogue_sessions (
		id UUID PRIMARY KEY,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS dialogue_messages (
		id BIGSERIAL PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES dialogue_sessions(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dialogue_messages_session ON dialogue_messages (session_id, id)`,
}

// PostgresStore keeps sessions in two tables, messages cascading on delete.
type PostgresStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewPostgresStore(db *database.PostgresClient, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log.WithFields(map[string]interface{}{"component": "session-postgres"})}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, Schema...)
}

func encodeMeta(meta map[string]interface{}) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(meta)
}

func decodeMeta(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(raw, &meta); err != nil || len(meta) == 0 {
		return nil
	}
	return meta
}

func (s *PostgresStore) CreateSession(ctx context.Context, metadata map[string]interface{}) (*models.Session, error) {
	meta, err := encodeMeta(metadata)
	if err != nil {
		return nil, errors.NewSessionStoreError("create", err)
	}

	sess := &models.Session{ID: uuid.NewString(), Metadata: metadata}
	err = s.db.DB.QueryRowContext(ctx,
		`INSERT INTO dialogue_sessions (id, metadata) VALUES ($1, $2) RETURNING created_at, updated_at`,
		sess.ID, meta,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, errors.NewSessionStoreError("create", err)
	}

	s.logger.Info("session created", map[string]interface{}{"sessionId": sess.ID})
	return sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, errors.NewSessionNotFoundError(sessionID)
	}

	var sess models.Session
	var meta []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT s.id, s.metadata, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM dialogue_messages m WHERE m.session_id = s.id)
		FROM dialogue_sessions s WHERE s.id = $1`,
		sessionID,
	).Scan(&sess.ID, &meta, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount)
	if err == sql.ErrNoRows {
		return nil, errors.NewSessionNotFoundError(sessionID)
	}
	if err != nil {
		return nil, errors.NewSessionStoreError("get", err)
	}
	sess.Metadata = decodeMeta(meta)
	return &sess, nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, sessionID, role, content string, metadata map[string]interface{}) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return errors.NewSessionNotFoundError(sessionID)
	}
	meta, err := encodeMeta(metadata)
	if err != nil {
		return errors.NewSessionStoreError("save", err)
	}

	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewSessionStoreError("save", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE dialogue_sessions SET updated_at = NOW() WHERE id = $1`, sessionID)
	if err != nil {
		return errors.NewSessionStoreError("save", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewSessionNotFoundError(sessionID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO dialogue_messages (session_id, role, content, metadata) VALUES ($1, $2, $3, $4)`,
		sessionID, role, content, meta,
	); err != nil {
		return errors.NewSessionStoreError("save", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewSessionStoreError("save", err)
	}
	return nil
}

func (s *PostgresStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]models.StoredMessage, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, errors.NewSessionNotFoundError(sessionID)
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, session_id, role, content, metadata, created_at FROM (
			SELECT id, session_id, role, content, metadata, created_at
			FROM dialogue_messages WHERE session_id = $1
			ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, errors.NewSessionStoreError("history", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT s.id, s.metadata, s.created_at, s.updated_at, COUNT(m.id)
		FROM dialogue_sessions s
		LEFT JOIN dialogue_messages m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, errors.NewSessionStoreError("list", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var sess models.Session
		var meta []byte
		if err := rows.Scan(&sess.ID, &meta, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount); err != nil {
			return nil, errors.NewSessionStoreError("list", err)
		}
		sess.Metadata = decodeMeta(meta)
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewSessionStoreError("list", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return errors.NewSessionNotFoundError(sessionID)
	}

	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM dialogue_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return errors.NewSessionStoreError("delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewSessionNotFoundError(sessionID)
	}

	s.logger.Info("session deleted", map[string]interface{}{"sessionId": sessionID})
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *PostgresStore) SearchMessages(ctx context.Context, query string, limit int) ([]models.StoredMessage, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, session_id, role, content, metadata, created_at
		FROM dialogue_messages
		WHERE content ILIKE $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		pattern, searchLimit(limit),
	)
	if err != nil {
		return nil, errors.NewSessionStoreError("search", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]models.StoredMessage, error) {
	var out []models.StoredMessage
	for rows.Next() {
		var m models.StoredMessage
		var meta []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Metadata = decodeMeta(meta)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
