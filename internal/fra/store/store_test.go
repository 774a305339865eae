package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "fra-engine/internal/common/errors"
	"fra-engine/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, logger.NewTestLogger(t)), mock
}

var instanceColumns = []string{
	"id", "template_id", "name", "category", "store_id", "store_name", "address",
	"status", "conducted_by", "conducted_at", "completed_at",
}

// ==========================
// Core Functionality Tests
// ==========================

func TestPostgresStore_GetInstance(t *testing.T) {
	s, mock := createTestStore(t)
	conducted := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryInstance)).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows(instanceColumns).AddRow(
			"inst-1", "tpl-fra", "FRA v2", "fire_risk_assessment", "store-9", "Test Store", "1 High St",
			"completed", "user-1", conducted, nil,
		))

	inst, err := s.GetInstance(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "tpl-fra", inst.TemplateID)
	assert.Equal(t, "fire_risk_assessment", inst.TemplateCategory)
	assert.Equal(t, "Test Store", inst.StoreName)
	require.NotNil(t, inst.ConductedAt)
	assert.True(t, conducted.Equal(*inst.ConductedAt))
	assert.Nil(t, inst.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetInstance_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"not found", sql.ErrNoRows, apperrors.ErrInstanceNotFound},
		{"connection failure", errors.New("connection reset"), apperrors.ErrQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := createTestStore(t)
			mock.ExpectQuery(regexp.QuoteMeta(queryInstance)).WithArgs("missing").WillReturnError(tt.err)

			inst, err := s.GetInstance(context.Background(), "missing")
			assert.Nil(t, inst)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestPostgresStore_ListResponses(t *testing.T) {
	s, mock := createTestStore(t)

	rows := sqlmock.NewRows([]string{"question_id", "semantic_tag", "question_text", "order_index", "response_value", "response_json", "metadata"}).
		AddRow("q1", "premises_name", "Premises name", 1, "Test Store", nil, []byte(`{"fra_custom_data":{"floorArea":"120"}}`)).
		AddRow("q2", "action_plan", "Actions", 2, nil, []byte(`[{"recommendation":"Fix door"}]`), nil)
	mock.ExpectQuery(regexp.QuoteMeta(queryResponses)).WithArgs("inst-1").WillReturnRows(rows)

	out, err := s.ListResponses(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "inst-1", out[0].InstanceID)
	require.NotNil(t, out[0].Value)
	assert.Equal(t, "Test Store", *out[0].Value)
	assert.Nil(t, out[0].Payload)
	assert.JSONEq(t, `{"fra_custom_data":{"floorArea":"120"}}`, string(out[0].Metadata))

	assert.Nil(t, out[1].Value)
	assert.JSONEq(t, `[{"recommendation":"Fix door"}]`, string(out[1].Payload))
	assert.True(t, out[1].HasAnswer())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AnchorQuestion(t *testing.T) {
	s, mock := createTestStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(queryAnchor)).WithArgs("tpl-fra").
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_id", "semantic_tag", "order_index"}).
			AddRow("q1", "tpl-fra", "premises_name", 1))

	q, err := s.AnchorQuestion(context.Background(), "tpl-fra")
	require.NoError(t, err)
	assert.Equal(t, "q1", q.ID)

	mock.ExpectQuery(regexp.QuoteMeta(queryAnchor)).WithArgs("tpl-empty").WillReturnError(sql.ErrNoRows)
	q, err = s.AnchorQuestion(context.Background(), "tpl-empty")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestPostgresStore_MergeOverlay(t *testing.T) {
	s, mock := createTestStore(t)
	mock.ExpectExec(regexp.QuoteMeta(upsertOverlay)).
		WithArgs("inst-1", "q1", `{"floorArea":"120"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.MergeOverlay(context.Background(), "inst-1", "q1", map[string]interface{}{"floorArea": "120"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MergeOverlay_Failure(t *testing.T) {
	s, mock := createTestStore(t)
	mock.ExpectExec(regexp.QuoteMeta(upsertOverlay)).WillReturnError(errors.New("deadlock detected"))

	err := s.MergeOverlay(context.Background(), "inst-1", "q1", map[string]interface{}{"floorArea": "120"})
	assert.ErrorIs(t, err, apperrors.ErrQueryFailed)
}
