// Package store reads audit instances and responses from Postgres and owns
// the overlay write path.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
	"fra-engine/internal/models"
)

// Store is the query interface the engine depends on.
type Store interface {
	GetInstance(ctx context.Context, instanceID string) (*models.AuditInstance, error)
	ListResponses(ctx context.Context, instanceID string) ([]models.AuditResponse, error)
	AnchorQuestion(ctx context.Context, templateID string) (*models.AuditQuestion, error)
	MergeOverlay(ctx context.Context, instanceID, questionID string, patch map[string]interface{}) error
}

const (
	queryInstance = `SELECT ai.id, ai.template_id, COALESCE(t.name, ''), COALESCE(t.category, ''),
       COALESCE(ai.store_id::text, ''), COALESCE(s.name, ''), COALESCE(s.address, ''),
       COALESCE(ai.status, ''), COALESCE(ai.conducted_by::text, ''), ai.conducted_at, ai.completed_at
FROM audit_instances ai
JOIN audit_templates t ON t.id = ai.template_id
LEFT JOIN stores s ON s.id = ai.store_id
WHERE ai.id = $1`

	queryResponses = `SELECT r.question_id, COALESCE(q.semantic_tag, ''), COALESCE(q.question_text, ''),
       COALESCE(q.order_index, 0), r.response_value, r.response_json, r.metadata
FROM audit_responses r
JOIN audit_questions q ON q.id = r.question_id
WHERE r.instance_id = $1
ORDER BY q.order_index, r.question_id`

	queryAnchor = `SELECT id, template_id, COALESCE(semantic_tag, ''), COALESCE(order_index, 0)
FROM audit_questions
WHERE template_id = $1
ORDER BY order_index, id
LIMIT 1`

	// Merges the patch into metadata->fra_custom_data in one statement; the
	// row lock taken by ON CONFLICT serializes concurrent writers and sibling
	// metadata keys and response_value are left untouched.
	upsertOverlay = `INSERT INTO audit_responses (instance_id, question_id, metadata)
VALUES ($1, $2, jsonb_build_object('fra_custom_data', $3::jsonb))
ON CONFLICT (instance_id, question_id) DO UPDATE
SET metadata = jsonb_set(
    COALESCE(audit_responses.metadata, '{}'::jsonb),
    '{fra_custom_data}',
    COALESCE(audit_responses.metadata->'fra_custom_data', '{}'::jsonb) || $3::jsonb,
    true)`
)

type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.Component(log, "fra-store")}
}

func (s *PostgresStore) GetInstance(ctx context.Context, instanceID string) (*models.AuditInstance, error) {
	var (
		inst        models.AuditInstance
		conductedAt sql.NullTime
		completedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, queryInstance, instanceID).Scan(
		&inst.ID, &inst.TemplateID, &inst.TemplateName, &inst.TemplateCategory,
		&inst.StoreID, &inst.StoreName, &inst.StoreAddress,
		&inst.Status, &inst.ConductedBy, &conductedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInstanceNotFound, instanceID)
	}
	if err != nil {
		s.logger.Error("instance query failed", map[string]interface{}{"instanceId": instanceID, "error": err})
		return nil, fmt.Errorf("%w: instance: %v", apperrors.ErrQueryFailed, err)
	}
	inst.ConductedAt = nullTime(conductedAt)
	inst.CompletedAt = nullTime(completedAt)
	return &inst, nil
}

func (s *PostgresStore) ListResponses(ctx context.Context, instanceID string) ([]models.AuditResponse, error) {
	rows, err := s.db.QueryContext(ctx, queryResponses, instanceID)
	if err != nil {
		s.logger.Error("responses query failed", map[string]interface{}{"instanceId": instanceID, "error": err})
		return nil, fmt.Errorf("%w: responses: %v", apperrors.ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []models.AuditResponse
	for rows.Next() {
		var (
			r        models.AuditResponse
			value    sql.NullString
			payload  []byte
			metadata []byte
		)
		if err := rows.Scan(&r.QuestionID, &r.SemanticTag, &r.QuestionText, &r.OrderIndex, &value, &payload, &metadata); err != nil {
			return nil, fmt.Errorf("%w: scan response: %v", apperrors.ErrQueryFailed, err)
		}
		r.InstanceID = instanceID
		if value.Valid {
			v := value.String
			r.Value = &v
		}
		if len(payload) > 0 {
			r.Payload = json.RawMessage(payload)
		}
		if len(metadata) > 0 {
			r.Metadata = json.RawMessage(metadata)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: responses: %v", apperrors.ErrQueryFailed, err)
	}
	return out, nil
}

// AnchorQuestion returns the first question of the template by order, or nil
// when the template has none.
func (s *PostgresStore) AnchorQuestion(ctx context.Context, templateID string) (*models.AuditQuestion, error) {
	var q models.AuditQuestion
	err := s.db.QueryRowContext(ctx, queryAnchor, templateID).Scan(&q.ID, &q.TemplateID, &q.SemanticTag, &q.OrderIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: anchor question: %v", apperrors.ErrQueryFailed, err)
	}
	return &q, nil
}

func (s *PostgresStore) MergeOverlay(ctx context.Context, instanceID, questionID string, patch map[string]interface{}) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidPatch, err)
	}
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, upsertOverlay, instanceID, questionID, string(body)); err != nil {
		s.logger.Error("overlay upsert failed", map[string]interface{}{
			"instanceId": instanceID,
			"questionId": questionID,
			"error":      err,
		})
		return fmt.Errorf("%w: overlay upsert: %v", apperrors.ErrQueryFailed, err)
	}
	s.logger.Debug("overlay merged", map[string]interface{}{
		"instanceId": instanceID,
		"questionId": questionID,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
