package session

import (
	"context"
	stderrors "errors"
	"encoding/json"
	"sort"
	"time"

	"dialogue-engine/internal/common/database"
	"dialogue-engine/internal/common/errors"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as a hash plus a JSON message list.
//
//	prefix:sessions               sorted set, score = created_at unix nanos
//	prefix:session:{id}           hash {metadata, created_at, updated_at}
//	prefix:session:{id}:messages  list of JSON StoredMessage
//	prefix:message_seq            message id counter
type RedisStore struct {
	rdb    *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

// NewRedisStore creates a store. A positive ttl expires idle sessions.
func NewRedisStore(rdb *database.RedisClient, ttl time.Duration, log logger.Logger) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "session-redis"}),
		now:    time.Now,
	}
}

func (s *RedisStore) indexKey() string             { return s.rdb.Key("sessions") }
func (s *RedisStore) sessionKey(id string) string  { return s.rdb.Key("session", id) }
func (s *RedisStore) messagesKey(id string) string { return s.rdb.Key("session", id, "messages") }
func (s *RedisStore) sequenceKey() string          { return s.rdb.Key("message_seq") }

func (s *RedisStore) CreateSession(ctx context.Context, metadata map[string]interface{}) (*models.Session, error) {
	meta, err := encodeMeta(metadata)
	if err != nil {
		return nil, errors.NewSessionStoreError("create", err)
	}

	now := s.now().UTC()
	sess := &models.Session{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now, Metadata: metadata}

	pipe := s.rdb.Client.TxPipeline()
	pipe.HSet(ctx, s.sessionKey(sess.ID),
		"metadata", string(meta),
		"created_at", now.Format(time.RFC3339Nano),
		"updated_at", now.Format(time.RFC3339Nano),
	)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: sess.ID})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.sessionKey(sess.ID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.NewSessionStoreError("create", err)
	}

	s.logger.Info("session created", map[string]interface{}{"sessionId": sess.ID})
	return sess, nil
}

func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	fields, err := s.rdb.Client.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, errors.NewSessionStoreError("get", err)
	}
	if len(fields) == 0 {
		return nil, errors.NewSessionNotFoundError(sessionID)
	}
	count, err := s.rdb.Client.LLen(ctx, s.messagesKey(sessionID)).Result()
	if err != nil {
		return nil, errors.NewSessionStoreError("get", err)
	}
	sess := sessionFromHash(sessionID, fields)
	sess.MessageCount = int(count)
	return &sess, nil
}

func sessionFromHash(id string, fields map[string]string) models.Session {
	sess := models.Session{ID: id, Metadata: decodeMeta([]byte(fields["metadata"]))}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return sess
}

func (s *RedisStore) SaveMessage(ctx context.Context, sessionID, role, content string, metadata map[string]interface{}) error {
	exists, err := s.rdb.Client.Exists(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return errors.NewSessionStoreError("save", err)
	}
	if exists == 0 {
		return errors.NewSessionNotFoundError(sessionID)
	}

	id, err := s.rdb.Client.Incr(ctx, s.sequenceKey()).Result()
	if err != nil {
		return errors.NewSessionStoreError("save", err)
	}

	now := s.now().UTC()
	raw, err := json.Marshal(models.StoredMessage{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: now,
	})
	if err != nil {
		return errors.NewSessionStoreError("save", err)
	}

	pipe := s.rdb.Client.TxPipeline()
	pipe.RPush(ctx, s.messagesKey(sessionID), raw)
	pipe.HSet(ctx, s.sessionKey(sessionID), "updated_at", now.Format(time.RFC3339Nano))
	if s.ttl > 0 {
		pipe.Expire(ctx, s.sessionKey(sessionID), s.ttl)
		pipe.Expire(ctx, s.messagesKey(sessionID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewSessionStoreError("save", err)
	}
	return nil
}

func (s *RedisStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]models.StoredMessage, error) {
	exists, err := s.rdb.Client.Exists(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, errors.NewSessionStoreError("history", err)
	}
	if exists == 0 {
		return nil, errors.NewSessionNotFoundError(sessionID)
	}

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.rdb.Client.LRange(ctx, s.messagesKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, errors.NewSessionStoreError("history", err)
	}
	return decodeMessages(raw), nil
}

func decodeMessages(raw []string) []models.StoredMessage {
	out := make([]models.StoredMessage, 0, len(raw))
	for _, r := range raw {
		var m models.StoredMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *RedisStore) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.rdb.Client.ZRevRange(ctx, s.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.NewSessionStoreError("list", err)
	}

	out := make([]models.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.GetSession(ctx, id)
		if err != nil {
			var stdErr *errors.StandardError
			if stderrors.As(err, &stdErr) && stdErr.Code == errors.ErrCodeSessionNotFound {
				// expired by TTL; drop the dangling index entry
				s.rdb.Client.ZRem(ctx, s.indexKey(), id)
				continue
			}
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	removed, err := s.rdb.Client.ZRem(ctx, s.indexKey(), sessionID).Result()
	if err != nil {
		return errors.NewSessionStoreError("delete", err)
	}
	deleted, err := s.rdb.Client.Del(ctx, s.sessionKey(sessionID), s.messagesKey(sessionID)).Result()
	if err != nil {
		return errors.NewSessionStoreError("delete", err)
	}
	if removed == 0 && deleted == 0 {
		return errors.NewSessionNotFoundError(sessionID)
	}

	s.logger.Info("session deleted", map[string]interface{}{"sessionId": sessionID})
	return nil
}

// SearchMessages scans every indexed session. Suitable for the ephemeral
// backend sizes this store targets.
func (s *RedisStore) SearchMessages(ctx context.Context, query string, limit int) ([]models.StoredMessage, error) {
	ids, err := s.rdb.Client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, errors.NewSessionStoreError("search", err)
	}

	var hits []models.StoredMessage
	for _, id := range ids {
		raw, err := s.rdb.Client.LRange(ctx, s.messagesKey(id), 0, -1).Result()
		if err != nil {
			return nil, errors.NewSessionStoreError("search", err)
		}
		for _, m := range decodeMessages(raw) {
			if containsFold(m.Content, query) {
				hits = append(hits, m)
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].ID > hits[j].ID
	})
	if n := searchLimit(limit); len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
