package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialogue-engine/internal/common/config"
	"dialogue-engine/internal/common/database"
	"dialogue-engine/internal/common/logger"
	"dialogue-engine/internal/models"
	"dialogue-engine/internal/session"
)

// ==========================
// Fakes
// ==========================

type fakeTurns struct {
	mu        sync.Mutex
	active    int
	maxActive int
	seen      []models.ConversationState
	delay     time.Duration
}

func (f *fakeTurns) ProcessTurn(_ context.Context, st models.ConversationState, input string) models.ConversationState {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.seen = append(f.seen, st.Clone())
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	out := st.Clone()
	out.UserInput = input
	if strings.TrimSpace(input) == "" {
		out.FinalAnswer = "Please enter a query."
		out.AnswerSource = models.SourceSystem
		return out
	}
	out.FinalAnswer = "echo: " + input
	out.AnswerSource = models.SourceKnowledgeBase
	out.Metadata.Mode = st.Mode
	out.Metadata.Score = 0.9
	out.AppendExchange()
	return out
}

// ==========================
// Test Helper Functions
// ==========================

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T, checks ...ReadinessCheck) (*Server, *fakeTurns, session.Store) {
	mr := miniredis.RunT(t)
	rdb := database.NewRedis(config.RedisConfig{Address: mr.Addr()}, "api")
	t.Cleanup(func() { rdb.Close() })

	store := session.NewRedisStore(rdb, 0, logger.NewTestLogger(t))
	turns := &fakeTurns{}
	srv := NewServer(DefaultConfig(), turns, store, logger.NewTestLogger(t), checks...)
	return srv, turns, store
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec, env := do(t, h, http.MethodPost, "/api/sessions", `{"metadata":{"user":"alice"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sess models.Session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	require.NotEmpty(t, sess.ID)
	return sess.ID
}

// ==========================
// Operational Endpoints
// ==========================

func TestHealthAndMetrics(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec, _ := do(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec, _ = do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestReady(t *testing.T) {
	up := ReadinessCheck{Name: "redis", Check: func(context.Context) error { return nil }}
	down := ReadinessCheck{Name: "index", Check: func(context.Context) error { return errors.New("unreachable") }}

	srv, _, _ := newTestServer(t, up)
	rec, _ := do(t, srv.Handler(), http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	srv, _, _ = newTestServer(t, up, down)
	rec, _ = do(t, srv.Handler(), http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreachable")
}

// ==========================
// Sessions
// ==========================

func TestSessions_CreateListGetDelete(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	id := createSession(t, h)

	rec, env := do(t, h, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Session
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Metadata["user"])

	rec, _ = do(t, h, http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session not found", env.Error)
}

func TestSessions_CreateWithoutBody(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec, _ := do(t, srv.Handler(), http.MethodPost, "/api/sessions", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRejectsNonJSONBody(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader("input=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// ==========================
// Turns
// ==========================

func TestTurn_PersistsExchangeAndLoadsHistory(t *testing.T) {
	srv, turns, _ := newTestServer(t)
	h := srv.Handler()
	id := createSession(t, h)

	rec, env := do(t, h, http.MethodPost, "/api/sessions/"+id+"/turns", `{"input":"first","mode":"knowledge_only"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TurnResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "echo: first", resp.Answer)
	assert.Equal(t, models.SourceKnowledgeBase, resp.Source)
	assert.Equal(t, models.ModeRedmine, resp.Mode)

	rec, _ = do(t, h, http.MethodPost, "/api/sessions/"+id+"/turns", `{"input":"second"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, turns.seen, 2)
	assert.Empty(t, turns.seen[0].History)
	assert.Equal(t, models.ModeHybrid, turns.seen[1].Mode)
	assert.Equal(t, []models.Message{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: "echo: first"},
	}, turns.seen[1].History)

	rec, env = do(t, h, http.MethodGet, "/api/sessions/"+id+"/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []models.StoredMessage
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 4)
	assert.Equal(t, "second", msgs[2].Content)
	assert.Equal(t, models.SourceKnowledgeBase, msgs[3].Metadata["source"])
}

func TestTurn_EmptyInputIsNotPersisted(t *testing.T) {
	srv, _, store := newTestServer(t)
	h := srv.Handler()
	id := createSession(t, h)

	rec, env := do(t, h, http.MethodPost, "/api/sessions/"+id+"/turns", `{"input":"  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TurnResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Please enter a query.", resp.Answer)

	history, err := store.GetHistory(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTurn_Errors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()
	id := createSession(t, h)

	rec, _ := do(t, h, http.MethodPost, "/api/sessions/"+id+"/turns", `{"input":"hi","mode":"telepathy"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/sessions/"+id+"/turns", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/sessions/3f0c1a9e-0000-4000-8000-000000000000/turns", `{"input":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTurn_SerializedPerSession(t *testing.T) {
	srv, turns, _ := newTestServer(t)
	turns.delay = 20 * time.Millisecond
	h := srv.Handler()
	id := createSession(t, h)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/turns", strings.NewReader(`{"input":"hi"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, turns.maxActive)
	assert.Equal(t, 0, srv.locks.size())
}

// ==========================
// Search
// ==========================

func TestSearchMessages(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()
	id := createSession(t, h)

	do(t, h, http.MethodPost, "/api/sessions/"+id+"/turns", `{"input":"vacation policy"}`)
	do(t, h, http.MethodPost, "/api/sessions/"+id+"/turns", `{"input":"printer broken"}`)

	rec, _ := do(t, h, http.MethodGet, "/api/messages/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := do(t, h, http.MethodGet, "/api/messages/search?q=VACATION", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []models.StoredMessage
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Contains(t, strings.ToLower(m.Content), "vacation")
	}
}

func TestSessionLocks_Release(t *testing.T) {
	l := newSessionLocks()
	unlockA := l.Lock("a")
	unlockB := l.Lock("b")
	assert.Equal(t, 2, l.size())
	unlockA()
	unlockB()
	assert.Equal(t, 0, l.size())
}
