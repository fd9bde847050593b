package httpserver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/exdly/conectai/internal/adapter/httpserver"
	"github.com/exdly/conectai/internal/config"
	"github.com/exdly/conectai/internal/domain"
	"github.com/exdly/conectai/internal/usecase"
)

type stubCache struct{ entries map[string]string }

func (c *stubCache) Get(query string) (string, bool) {
	v, ok := c.entries[query]
	return v, ok
}
func (c *stubCache) Put(query, answer string) {
	if c.entries == nil {
		c.entries = map[string]string{}
	}
	c.entries[query] = answer
}

type stubResponder struct {
	answer domain.Answer
	err    error
}

func (r *stubResponder) Respond(_ domain.Context, _ string, _ []domain.Turn) (domain.Answer, error) {
	return r.answer, r.err
}

type stubConvRepo struct {
	messages   []domain.Message
	convs      []domain.Conversation
	feedbackID string
	feedback   string
	deleted    string
}

func (r *stubConvRepo) CreateConversation(_ domain.Context, _, _ string) (string, error) {
	return "conv-1", nil
}
func (r *stubConvRepo) AddMessage(_ domain.Context, _, role, _ string) (string, error) {
	if role == domain.RoleAssistant {
		return "msg-assistant", nil
	}
	return "msg-user", nil
}
func (r *stubConvRepo) UpdateMessage(_ domain.Context, _, _ string) error { return nil }
func (r *stubConvRepo) UpdateMessageFeedback(_ domain.Context, messageID, feedback, _ string) error {
	if messageID == "missing" {
		return domain.ErrNotFound
	}
	r.feedbackID, r.feedback = messageID, feedback
	return nil
}
func (r *stubConvRepo) ListConversations(_ domain.Context, _ string) ([]domain.Conversation, error) {
	return r.convs, nil
}
func (r *stubConvRepo) ListMessages(_ domain.Context, _ string) ([]domain.Message, error) {
	return r.messages, nil
}
func (r *stubConvRepo) DeleteConversation(_ domain.Context, conversationID, _ string) error {
	r.deleted = conversationID
	return nil
}

func newTestServer(resp usecase.Responder, convs domain.ConversationRepository) *httpserver.Server {
	chat := usecase.NewChatService(&stubCache{}, resp, convs, nil, nil)
	return &httpserver.Server{Cfg: config.Config{AppEnv: "dev", Port: 8080}, Chat: chat}
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

func TestChatHandler_Success(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubResponder{answer: domain.Answer{Text: "La matrícula cuesta S/. 200.00.", Source: domain.SourceFAQ, Topic: "costos"}}, nil)
	w := postJSON(t, srv.ChatHandler(), `{"query":"¿cuánto cuesta la matrícula?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "La matrícula cuesta S/. 200.00.", out["reply"])
	assert.Equal(t, "faq", out["source"])
	assert.Equal(t, "costos", out["topic"])
}

func TestChatHandler_ValidationErrors(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubResponder{answer: domain.Answer{Text: "ok", Source: domain.SourceFAQ}}, nil)
	cases := []struct {
		name string
		body string
	}{
		{"empty query", `{"query":""}`},
		{"missing query", `{}`},
		{"bad json", `{"query":`},
		{"bad conversation id", `{"query":"hola","conversation_id":"not-a-uuid"}`},
		{"bad email", `{"query":"hola","user_email":"not-an-email"}`},
		{"too long", `{"query":"` + strings.Repeat("a", 2100) + `"}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := postJSON(t, srv.ChatHandler(), tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			body, _ := io.ReadAll(w.Body)
			assert.Contains(t, string(body), "INVALID_ARGUMENT")
		})
	}
}

func TestChatHandler_NoAnswerMapsTo503(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubResponder{err: domain.ErrNoAnswer}, nil)
	w := postJSON(t, srv.ChatHandler(), `{"query":"hola"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "NO_ANSWER")
}

func TestChatHandler_PersistsWhenEmailGiven(t *testing.T) {
	t.Parallel()
	repo := &stubConvRepo{}
	srv := newTestServer(&stubResponder{answer: domain.Answer{Text: "respuesta", Source: domain.SourceAI, Topic: "general"}}, repo)
	w := postJSON(t, srv.ChatHandler(), `{"query":"hola profe","user_email":"alumno@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "conv-1", out["conversation_id"])
	assert.Equal(t, "msg-assistant", out["message_id"])
}

func TestRegenerateHandler(t *testing.T) {
	t.Parallel()
	repo := &stubConvRepo{messages: []domain.Message{
		{ID: "m1", Role: domain.RoleUser, Content: "¿qué becas hay?"},
		{ID: "m2", Role: domain.RoleAssistant, Content: "respuesta vieja"},
	}}
	srv := newTestServer(&stubResponder{answer: domain.Answer{Text: "respuesta nueva", Source: domain.SourceAI, Topic: "becas"}}, repo)
	w := postJSON(t, srv.RegenerateHandler(), `{"conversation_id":"conv-1","message_id":"m2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "respuesta nueva")
}

func TestRegenerateHandler_MissingFields(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubResponder{}, &stubConvRepo{})
	w := postJSON(t, srv.RegenerateHandler(), `{"conversation_id":"conv-1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackHandler(t *testing.T) {
	t.Parallel()
	repo := &stubConvRepo{}
	srv := newTestServer(&stubResponder{}, repo)
	w := postJSON(t, srv.FeedbackHandler(), `{"message_id":"m2","feedback":"up"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m2", repo.feedbackID)
	assert.Equal(t, "up", repo.feedback)
}

func TestFeedbackHandler_UnknownMessage(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubResponder{}, &stubConvRepo{})
	w := postJSON(t, srv.FeedbackHandler(), `{"message_id":"missing","feedback":"down"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeedbackHandler_InvalidRating(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubResponder{}, &stubConvRepo{})
	w := postJSON(t, srv.FeedbackHandler(), `{"message_id":"m2","feedback":"meh"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListConversationsHandler(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	repo := &stubConvRepo{convs: []domain.Conversation{
		{ID: "conv-1", Title: "¿qué becas hay?", CreatedAt: now, UpdatedAt: now},
	}}
	srv := newTestServer(&stubResponder{}, repo)

	r := httptest.NewRequest(http.MethodGet, "/v1/conversations?user_email=alumno@example.com", nil)
	w := httptest.NewRecorder()
	srv.ListConversationsHandler()(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "conv-1")
	assert.Contains(t, w.Body.String(), "2025-03-10T15:00:00Z")
}

func TestListConversationsHandler_RequiresEmail(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubResponder{}, &stubConvRepo{})
	r := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	w := httptest.NewRecorder()
	srv.ListConversationsHandler()(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMessagesHandler(t *testing.T) {
	t.Parallel()
	repo := &stubConvRepo{messages: []domain.Message{
		{ID: "m1", Role: domain.RoleUser, Content: "hola"},
		{ID: "m2", Role: domain.RoleAssistant, Content: "¡Hola!", Feedback: "up"},
	}}
	srv := newTestServer(&stubResponder{}, repo)

	router := chi.NewRouter()
	router.Get("/v1/conversations/{id}/messages", srv.ListMessagesHandler())
	r := httptest.NewRequest(http.MethodGet, "/v1/conversations/conv-1/messages", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Messages, 2)
	assert.Equal(t, "up", out.Messages[1]["feedback"])
}

func TestDeleteConversationHandler(t *testing.T) {
	t.Parallel()
	repo := &stubConvRepo{}
	srv := newTestServer(&stubResponder{}, repo)

	router := chi.NewRouter()
	router.Delete("/v1/conversations/{id}", srv.DeleteConversationHandler())
	r := httptest.NewRequest(http.MethodDelete, "/v1/conversations/conv-9?user_email=alumno@example.com", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "conv-9", repo.deleted)
}

func TestReadyzHandler(t *testing.T) {
	t.Parallel()
	t.Run("all ok", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(&stubResponder{}, nil)
		srv.DBCheck = func(domain.Context) error { return nil }
		srv.RedisCheck = func(domain.Context) error { return nil }
		r := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()
		srv.ReadyzHandler()(w, r)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"db":"ok"`)
	})
	t.Run("db down", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(&stubResponder{}, nil)
		srv.DBCheck = func(domain.Context) error { return domain.ErrInternal }
		r := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()
		srv.ReadyzHandler()(w, r)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"db":"down"`)
		assert.Contains(t, w.Body.String(), `"redis":"disabled"`)
	})
}
