package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/exdly/conectai/internal/config"
	"github.com/exdly/conectai/internal/domain"
	"github.com/exdly/conectai/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Chat       *usecase.ChatService
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument)
	}
	if err := getValidator().Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

type chatRequest struct {
	Query          string `json:"query" validate:"required,min=1,max=2000"`
	ConversationID string `json:"conversation_id" validate:"omitempty,uuid4"`
	UserEmail      string `json:"user_email" validate:"omitempty,email"`
}

type chatResponse struct {
	Reply          string `json:"reply"`
	Source         string `json:"source"`
	Topic          string `json:"topic,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

// ChatHandler answers POST /v1/chat.
func (s *Server) ChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		res, err := s.Chat.Ask(r.Context(), usecase.AskRequest{
			Query:          req.Query,
			ConversationID: req.ConversationID,
			UserEmail:      req.UserEmail,
		})
		if err != nil {
			LoggerFrom(r).Error("chat failed", "error", err)
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{
			Reply:          res.Answer.Text,
			Source:         string(res.Answer.Source),
			Topic:          res.Answer.Topic,
			ConversationID: res.ConversationID,
			MessageID:      res.MessageID,
		})
	}
}

type regenerateRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	MessageID      string `json:"message_id" validate:"required"`
}

// RegenerateHandler answers POST /v1/chat/regenerate.
func (s *Server) RegenerateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req regenerateRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		answer, err := s.Chat.Regenerate(r.Context(), req.ConversationID, req.MessageID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{
			Reply:  answer.Text,
			Source: string(answer.Source),
			Topic:  answer.Topic,
		})
	}
}

type feedbackRequest struct {
	MessageID string `json:"message_id" validate:"required"`
	Feedback  string `json:"feedback" validate:"required,oneof=up down UP DOWN"`
	Reason    string `json:"reason" validate:"omitempty,max=500"`
}

// FeedbackHandler answers POST /v1/feedback.
func (s *Server) FeedbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Chat.Feedback(r.Context(), req.MessageID, req.Feedback, req.Reason); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	}
}

type conversationDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ListConversationsHandler answers GET /v1/conversations.
func (s *Server) ListConversationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("user_email")
		if email == "" {
			writeError(w, r, fmt.Errorf("%w: user_email required", domain.ErrInvalidArgument), nil)
			return
		}
		convs, err := s.Chat.ListConversations(r.Context(), email)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]conversationDTO, 0, len(convs))
		for _, c := range convs {
			out = append(out, conversationDTO{
				ID:        c.ID,
				Title:     c.Title,
				CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				UpdatedAt: c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversations": out})
	}
}

type messageDTO struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Content  string `json:"content"`
	Feedback string `json:"feedback,omitempty"`
}

// ListMessagesHandler answers GET /v1/conversations/{id}/messages.
func (s *Server) ListMessagesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		msgs, err := s.Chat.ListMessages(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]messageDTO, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, messageDTO{ID: m.ID, Role: m.Role, Content: m.Content, Feedback: m.Feedback})
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": out})
	}
}

// DeleteConversationHandler answers DELETE /v1/conversations/{id}.
func (s *Server) DeleteConversationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		email := r.URL.Query().Get("user_email")
		if email == "" {
			writeError(w, r, fmt.Errorf("%w: user_email required", domain.ErrInvalidArgument), nil)
			return
		}
		if err := s.Chat.DeleteConversation(r.Context(), id, email); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// ReadyzHandler reports readiness of the backing services.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]func(context.Context) error{
			"db":    s.DBCheck,
			"redis": s.RedisCheck,
		}
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if check == nil {
				status[name] = "disabled"
				continue
			}
			if err := check(r.Context()); err != nil {
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}
