package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrModelNotFound     = errors.New("model not found")
	ErrNoAnswer          = errors.New("no answer produced")
	ErrInternal          = errors.New("internal error")
)

// RateLimitError is returned by provider clients when the upstream signals a
// rate limit. RetryAfter carries the provider-suggested delay when the error
// payload encodes one; zero means the provider gave no hint.
type RateLimitError struct {
	Provider   string
	Model      string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s/%s rate limited, retry after %s", e.Provider, e.Model, e.RetryAfter)
	}
	return fmt.Sprintf("%s/%s rate limited", e.Provider, e.Model)
}

func (e *RateLimitError) Unwrap() error { return ErrUpstreamRateLimit }

// AnswerSource identifies which pipeline stage produced an answer.
type AnswerSource string

const (
	SourceCache  AnswerSource = "cache"
	SourceFAQ    AnswerSource = "faq"
	SourceSearch AnswerSource = "search"
	SourceAI     AnswerSource = "ai"
)

// Answer is the end result of routing a query through the pipeline.
type Answer struct {
	Text   string
	Source AnswerSource
	Topic  string
}

// Turn is one exchange of a conversation passed as prompt history.
// Only the last two turns are ever forwarded to a provider.
type Turn struct {
	Role    string
	Content string
}

// Conversation groups the messages of one user chat session.
type Conversation struct {
	ID        string
	UserEmail string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single user or assistant utterance inside a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	Feedback       string
	FeedbackReason string
	CreatedAt      time.Time
}

// Consultation is one append-only log row linking a query to its answer.
type Consultation struct {
	ID        string
	Query     string
	Response  string
	Topic     string
	Source    string
	Status    string
	MessageID string
	Feedback  string
	Comment   string
	CreatedAt time.Time
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Collaborator ports (spec'd boundaries; implementations live in adapters)

// DocumentSearcher returns concatenated relevant document text for a query.
// An empty string is a valid result.
type DocumentSearcher interface {
	SearchDocuments(ctx Context, query string) (string, error)
}

// WebContentProvider returns the concatenated scraped site text, each block
// tagged with its source URL. Implementations must tolerate their backing
// store being unavailable.
type WebContentProvider interface {
	WebsiteContent(ctx Context, forceRefresh bool) (string, error)
}

// ProviderClient is one LLM vendor endpoint. Complete must surface rate-limit
// signals as *RateLimitError and unknown models as ErrModelNotFound so the
// orchestrator's cooldown policy can tell them apart.
type ProviderClient interface {
	Name() string
	Complete(ctx Context, model, prompt string) (string, error)
}

// GenerateRequest carries everything the fallback orchestrator needs to
// compose a prompt and run the provider chains.
type GenerateRequest struct {
	Query      string
	Topic      string
	DocContext string
	WebContext string
	// Evidence is cross-layer context gathered by the router (FAQ hits, raw
	// search fragments) injected ahead of retrieved text.
	Evidence string
	History  []Turn
}

// AnswerGenerator produces an answer text for a request, or ErrNoAnswer when
// every model in every chain is exhausted.
type AnswerGenerator interface {
	Generate(ctx Context, req GenerateRequest) (string, error)
}

// AnswerCache is the content-addressed response cache.
type AnswerCache interface {
	Get(query string) (string, bool)
	Put(query, answer string)
}

// CacheSnapshotStore persists cache snapshots best-effort. Implementations
// report success with a boolean instead of an error: a read-only filesystem is
// an expected condition, not a failure callers handle.
type CacheSnapshotStore interface {
	TryLoad() (map[string]string, bool)
	TrySave(entries map[string]string) bool
}

// Repositories (ports)

type ConversationRepository interface {
	CreateConversation(ctx Context, userEmail, title string) (string, error)
	AddMessage(ctx Context, conversationID, role, content string) (string, error)
	UpdateMessage(ctx Context, messageID, content string) error
	UpdateMessageFeedback(ctx Context, messageID, feedback, reason string) error
	ListConversations(ctx Context, userEmail string) ([]Conversation, error)
	ListMessages(ctx Context, conversationID string) ([]Message, error)
	DeleteConversation(ctx Context, conversationID, userEmail string) error
}

type ConsultationRepository interface {
	Log(ctx Context, c Consultation) (string, error)
	UpdateFeedbackByMessageID(ctx Context, messageID, feedback, comment string) error
}

// Context is an alias so adapters and usecases share the std context without
// the domain package naming it everywhere.
type Context = context.Context
