// Package usecase contains the application services behind the HTTP surface.
package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/exdly/conectai/internal/adapter/observability"
	"github.com/exdly/conectai/internal/domain"
	"github.com/exdly/conectai/pkg/textx"
)

// maxQueryRunes bounds user input before it reaches the pipeline.
const maxQueryRunes = 2000

// historyMessages is how many stored messages are converted into prompt
// history. Four messages are two full turns.
const historyMessages = 4

// Responder is the query pipeline seam.
type Responder interface {
	Respond(ctx domain.Context, query string, history []domain.Turn) (domain.Answer, error)
}

// AskRequest is one chat question. ConversationID and UserEmail are optional;
// without them the exchange is answered but not persisted.
type AskRequest struct {
	Query          string
	ConversationID string
	UserEmail      string
}

// AskResult carries the answer and, when persistence is on, the stored ids.
type AskResult struct {
	Answer         domain.Answer
	ConversationID string
	MessageID      string
}

// ChatService orchestrates cache, pipeline and persistence for one question.
type ChatService struct {
	cache    domain.AnswerCache
	resp     Responder
	convs    domain.ConversationRepository
	consults domain.ConsultationRepository
	log      *slog.Logger
}

// NewChatService wires the chat flow. convs and consults may be nil to run
// without a database.
func NewChatService(cache domain.AnswerCache, resp Responder, convs domain.ConversationRepository, consults domain.ConsultationRepository, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{cache: cache, resp: resp, convs: convs, consults: consults, log: log}
}

// Ask answers a question, consulting the answer cache first. AI answers are
// written back to the cache; the exchange is persisted best effort.
func (s *ChatService) Ask(ctx domain.Context, req AskRequest) (AskResult, error) {
	query := textx.SanitizeText(req.Query)
	if query == "" {
		return AskResult{}, fmt.Errorf("op=chat.Ask: %w: empty query", domain.ErrInvalidArgument)
	}
	if len([]rune(query)) > maxQueryRunes {
		return AskResult{}, fmt.Errorf("op=chat.Ask: %w: query too long", domain.ErrInvalidArgument)
	}

	start := time.Now()
	answer, err := s.answer(ctx, query, req.ConversationID)
	if err != nil {
		observability.ChatFailuresTotal.Inc()
		return AskResult{}, err
	}
	observability.ObserveAnswer(string(answer.Source), answer.Topic, time.Since(start))

	res := AskResult{Answer: answer}
	res.ConversationID, res.MessageID = s.persistExchange(ctx, req, query, answer)
	return res, nil
}

func (s *ChatService) answer(ctx domain.Context, query, conversationID string) (domain.Answer, error) {
	if cached, ok := s.cache.Get(query); ok {
		observability.CacheHit()
		return domain.Answer{Text: cached, Source: domain.SourceCache}, nil
	}
	observability.CacheMiss()

	answer, err := s.resp.Respond(ctx, query, s.history(ctx, conversationID))
	if err != nil {
		return domain.Answer{}, err
	}
	if answer.Source == domain.SourceAI {
		s.cache.Put(query, answer.Text)
		observability.CacheWrite()
	}
	return answer, nil
}

// history converts a conversation's trailing messages into prompt turns.
func (s *ChatService) history(ctx domain.Context, conversationID string) []domain.Turn {
	if s.convs == nil || conversationID == "" {
		return nil
	}
	msgs, err := s.convs.ListMessages(ctx, conversationID)
	if err != nil {
		s.log.WarnContext(ctx, "history unavailable", slog.Any("error", err))
		return nil
	}
	if len(msgs) > historyMessages {
		msgs = msgs[len(msgs)-historyMessages:]
	}
	turns := make([]domain.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, domain.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// persistExchange stores the user question and the answer. Failures are
// logged, never surfaced: answering beats bookkeeping.
func (s *ChatService) persistExchange(ctx domain.Context, req AskRequest, query string, answer domain.Answer) (conversationID, messageID string) {
	if s.convs == nil {
		return "", ""
	}
	conversationID = req.ConversationID
	if conversationID == "" {
		if req.UserEmail == "" {
			return "", ""
		}
		id, err := s.convs.CreateConversation(ctx, req.UserEmail, conversationTitle(query))
		if err != nil {
			s.log.WarnContext(ctx, "conversation not created", slog.Any("error", err))
			return "", ""
		}
		conversationID = id
	}
	if _, err := s.convs.AddMessage(ctx, conversationID, domain.RoleUser, query); err != nil {
		s.log.WarnContext(ctx, "user message not stored", slog.Any("error", err))
	}
	messageID, err := s.convs.AddMessage(ctx, conversationID, domain.RoleAssistant, answer.Text)
	if err != nil {
		s.log.WarnContext(ctx, "assistant message not stored", slog.Any("error", err))
		messageID = ""
	}
	s.logConsultation(ctx, query, answer, messageID)
	return conversationID, messageID
}

func (s *ChatService) logConsultation(ctx domain.Context, query string, answer domain.Answer, messageID string) {
	if s.consults == nil {
		return
	}
	_, err := s.consults.Log(ctx, domain.Consultation{
		Query:     query,
		Response:  answer.Text,
		Topic:     answer.Topic,
		Source:    string(answer.Source),
		Status:    "answered",
		MessageID: messageID,
	})
	if err != nil {
		s.log.WarnContext(ctx, "consultation not logged", slog.Any("error", err))
	}
}

// Regenerate re-answers the user question behind an assistant message and
// overwrites the stored content. The cache is bypassed so a fresh answer is
// produced, then updated.
func (s *ChatService) Regenerate(ctx domain.Context, conversationID, messageID string) (domain.Answer, error) {
	if s.convs == nil {
		return domain.Answer{}, fmt.Errorf("op=chat.Regenerate: %w: persistence disabled", domain.ErrInvalidArgument)
	}
	msgs, err := s.convs.ListMessages(ctx, conversationID)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("op=chat.Regenerate: %w", err)
	}
	query, history, found := precedingQuery(msgs, messageID)
	if !found {
		return domain.Answer{}, fmt.Errorf("op=chat.Regenerate: %w", domain.ErrNotFound)
	}

	answer, err := s.resp.Respond(ctx, query, history)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("op=chat.Regenerate: %w", err)
	}
	if err := s.convs.UpdateMessage(ctx, messageID, answer.Text); err != nil {
		return domain.Answer{}, fmt.Errorf("op=chat.Regenerate: %w", err)
	}
	if answer.Source == domain.SourceAI {
		s.cache.Put(query, answer.Text)
		observability.CacheWrite()
	}
	return answer, nil
}

// precedingQuery finds the user message immediately before the target
// assistant message, plus the history before that exchange.
func precedingQuery(msgs []domain.Message, messageID string) (string, []domain.Turn, bool) {
	for i, m := range msgs {
		if m.ID != messageID || m.Role != domain.RoleAssistant {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if msgs[j].Role != domain.RoleUser {
				continue
			}
			var history []domain.Turn
			for _, h := range msgs[:j] {
				history = append(history, domain.Turn{Role: h.Role, Content: h.Content})
			}
			return msgs[j].Content, history, true
		}
	}
	return "", nil, false
}

// Feedback records a rating on an assistant message and mirrors it to the
// consultation log.
func (s *ChatService) Feedback(ctx domain.Context, messageID, feedback, reason string) error {
	feedback = strings.ToLower(strings.TrimSpace(feedback))
	if feedback != "up" && feedback != "down" {
		return fmt.Errorf("op=chat.Feedback: %w: feedback must be up or down", domain.ErrInvalidArgument)
	}
	if s.convs == nil {
		return fmt.Errorf("op=chat.Feedback: %w: persistence disabled", domain.ErrInvalidArgument)
	}
	if err := s.convs.UpdateMessageFeedback(ctx, messageID, feedback, reason); err != nil {
		return fmt.Errorf("op=chat.Feedback: %w", err)
	}
	if s.consults != nil {
		if err := s.consults.UpdateFeedbackByMessageID(ctx, messageID, feedback, reason); err != nil {
			s.log.WarnContext(ctx, "consultation feedback not mirrored", slog.Any("error", err))
		}
	}
	return nil
}

// ListConversations returns the user's conversations.
func (s *ChatService) ListConversations(ctx domain.Context, userEmail string) ([]domain.Conversation, error) {
	if s.convs == nil {
		return nil, nil
	}
	return s.convs.ListConversations(ctx, userEmail)
}

// ListMessages returns a conversation's messages.
func (s *ChatService) ListMessages(ctx domain.Context, conversationID string) ([]domain.Message, error) {
	if s.convs == nil {
		return nil, nil
	}
	return s.convs.ListMessages(ctx, conversationID)
}

// DeleteConversation removes a conversation owned by the user.
func (s *ChatService) DeleteConversation(ctx domain.Context, conversationID, userEmail string) error {
	if s.convs == nil {
		return fmt.Errorf("op=chat.DeleteConversation: %w: persistence disabled", domain.ErrInvalidArgument)
	}
	return s.convs.DeleteConversation(ctx, conversationID, userEmail)
}

// conversationTitle derives a short title from the first question.
func conversationTitle(query string) string {
	title := strings.TrimSpace(query)
	if r := []rune(title); len(r) > 60 {
		title = string(r[:57]) + "..."
	}
	return title
}
