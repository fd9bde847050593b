package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/exdly/conectai/internal/domain"
)

// ConsultationRepo implements domain.ConsultationRepository. The table is an
// append-only log; feedback is the only mutable column.
type ConsultationRepo struct{ Pool PgxPool }

func NewConsultationRepo(p PgxPool) *ConsultationRepo { return &ConsultationRepo{Pool: p} }

// Log records one answered (or failed) query.
func (r *ConsultationRepo) Log(ctx domain.Context, c domain.Consultation) (string, error) {
	tracer := otel.Tracer("repo.consultations")
	ctx, sp := tracer.Start(ctx, "consultations.Log")
	defer sp.End()
	sp.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "consultations"),
	)
	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO consultations (id, query, response, topic, source, status, message_id, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.Pool.Exec(ctx, q, id, c.Query, c.Response, c.Topic, c.Source, c.Status, c.MessageID, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=consultations.log: %w", err)
	}
	return id, nil
}

// UpdateFeedbackByMessageID attaches user feedback to the consultation row
// that produced a given chat message.
func (r *ConsultationRepo) UpdateFeedbackByMessageID(ctx domain.Context, messageID, feedback, comment string) error {
	tracer := otel.Tracer("repo.consultations")
	ctx, sp := tracer.Start(ctx, "consultations.UpdateFeedback")
	defer sp.End()
	sp.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "consultations"),
	)
	q := `UPDATE consultations SET feedback=$1, comment=$2 WHERE message_id=$3`
	tag, err := r.Pool.Exec(ctx, q, feedback, comment, messageID)
	if err != nil {
		return fmt.Errorf("op=consultations.feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=consultations.feedback: %w", domain.ErrNotFound)
	}
	return nil
}
