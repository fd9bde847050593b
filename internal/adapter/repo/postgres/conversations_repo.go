// Package postgres persists conversations and the consultation log.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/exdly/conectai/internal/domain"
)

// PgxPool is the minimal pgxpool subset the repos use, narrowed for testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ConversationRepo implements domain.ConversationRepository.
type ConversationRepo struct{ Pool PgxPool }

func NewConversationRepo(p PgxPool) *ConversationRepo { return &ConversationRepo{Pool: p} }

// CreateConversation inserts a new conversation and returns its id.
func (r *ConversationRepo) CreateConversation(ctx domain.Context, userEmail, title string) (string, error) {
	tracer := otel.Tracer("repo.conversations")
	ctx, sp := tracer.Start(ctx, "conversations.Create")
	defer sp.End()
	sp.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "conversations"),
	)
	id := uuid.New().String()
	now := time.Now().UTC()
	q := `INSERT INTO conversations (id, user_email, title, created_at, updated_at) VALUES ($1,$2,$3,$4,$4)`
	if _, err := r.Pool.Exec(ctx, q, id, userEmail, title, now); err != nil {
		return "", fmt.Errorf("op=conversations.create: %w", err)
	}
	return id, nil
}

// AddMessage appends a message and bumps the conversation's updated_at.
func (r *ConversationRepo) AddMessage(ctx domain.Context, conversationID, role, content string) (string, error) {
	tracer := otel.Tracer("repo.conversations")
	ctx, sp := tracer.Start(ctx, "conversations.AddMessage")
	defer sp.End()
	sp.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "messages"),
	)
	id := uuid.New().String()
	now := time.Now().UTC()
	q := `INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.Pool.Exec(ctx, q, id, conversationID, role, content, now); err != nil {
		return "", fmt.Errorf("op=messages.add: %w", err)
	}
	if _, err := r.Pool.Exec(ctx, `UPDATE conversations SET updated_at=$1 WHERE id=$2`, now, conversationID); err != nil {
		return "", fmt.Errorf("op=messages.add: touch conversation: %w", err)
	}
	return id, nil
}

// UpdateMessage replaces a message's content, used by answer regeneration.
func (r *ConversationRepo) UpdateMessage(ctx domain.Context, messageID, content string) error {
	tracer := otel.Tracer("repo.conversations")
	ctx, sp := tracer.Start(ctx, "conversations.UpdateMessage")
	defer sp.End()
	sp.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "messages"),
	)
	tag, err := r.Pool.Exec(ctx, `UPDATE messages SET content=$1 WHERE id=$2`, content, messageID)
	if err != nil {
		return fmt.Errorf("op=messages.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=messages.update: %w", domain.ErrNotFound)
	}
	return nil
}

// UpdateMessageFeedback records a thumbs up/down with an optional reason.
func (r *ConversationRepo) UpdateMessageFeedback(ctx domain.Context, messageID, feedback, reason string) error {
	tracer := otel.Tracer("repo.conversations")
	ctx, sp := tracer.Start(ctx, "conversations.UpdateMessageFeedback")
	defer sp.End()
	sp.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "messages"),
	)
	q := `UPDATE messages SET feedback=$1, feedback_reason=$2 WHERE id=$3`
	tag, err := r.Pool.Exec(ctx, q, feedback, reason, messageID)
	if err != nil {
		return fmt.Errorf("op=messages.feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=messages.feedback: %w", domain.ErrNotFound)
	}
	return nil
}

// ListConversations returns a user's conversations, most recent first.
func (r *ConversationRepo) ListConversations(ctx domain.Context, userEmail string) ([]domain.Conversation, error) {
	tracer := otel.Tracer("repo.conversations")
	ctx, sp := tracer.Start(ctx, "conversations.List")
	defer sp.End()
	sp.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "conversations"),
	)
	q := `SELECT id, user_email, title, created_at, updated_at FROM conversations WHERE user_email=$1 ORDER BY updated_at DESC`
	rows, err := r.Pool.Query(ctx, q, userEmail)
	if err != nil {
		return nil, fmt.Errorf("op=conversations.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.UserEmail, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("op=conversations.list: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=conversations.list: %w", err)
	}
	return out, nil
}

// ListMessages returns a conversation's messages in chronological order.
func (r *ConversationRepo) ListMessages(ctx domain.Context, conversationID string) ([]domain.Message, error) {
	tracer := otel.Tracer("repo.conversations")
	ctx, sp := tracer.Start(ctx, "conversations.ListMessages")
	defer sp.End()
	sp.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "messages"),
	)
	q := `SELECT id, conversation_id, role, content, COALESCE(feedback,''), COALESCE(feedback_reason,''), created_at FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC`
	rows, err := r.Pool.Query(ctx, q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("op=messages.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Feedback, &m.FeedbackReason, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=messages.list: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=messages.list: %w", err)
	}
	return out, nil
}

// DeleteConversation removes a conversation and its messages, scoped to the
// owning user.
func (r *ConversationRepo) DeleteConversation(ctx domain.Context, conversationID, userEmail string) error {
	tracer := otel.Tracer("repo.conversations")
	ctx, sp := tracer.Start(ctx, "conversations.Delete")
	defer sp.End()
	sp.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "conversations"),
	)
	if _, err := r.Pool.Exec(ctx, `DELETE FROM messages WHERE conversation_id=$1`, conversationID); err != nil {
		return fmt.Errorf("op=conversations.delete: messages: %w", err)
	}
	tag, err := r.Pool.Exec(ctx, `DELETE FROM conversations WHERE id=$1 AND user_email=$2`, conversationID, userEmail)
	if err != nil {
		return fmt.Errorf("op=conversations.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=conversations.delete: %w", domain.ErrNotFound)
	}
	return nil
}
