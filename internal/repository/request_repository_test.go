package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/interpreter-booking-api/internal/models"
)

var requestRowColumns = []string{
	"id", "requested_by", "patient_id", "interpreter_id", "language", "delivery_method", "location_method",
	"duration_minutes", "is_stat", "patient_type", "request_notes", "encounter_notes", "status",
	"requested_at", "accepted_at", "completed_at", "cancelled_at", "updated_at",
}

func TestRequestRepositoryAcceptCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE interpreter_requests")).
		WithArgs("req-1", "int-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE interpreters SET availability_status = 'busy'")).
		WithArgs("int-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Accept(context.Background(), AcceptParams{RequestID: "req-1", InterpreterID: "int-1", AcceptedAt: now})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryAcceptLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'pending'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Accept(context.Background(), AcceptParams{RequestID: "req-1", InterpreterID: "int-1", AcceptedAt: time.Now()})
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryAcceptRollsBackWhenInterpreterBusy(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE interpreter_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("AND availability_status = 'available'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Accept(context.Background(), AcceptParams{RequestID: "req-1", InterpreterID: "int-1", AcceptedAt: time.Now()})
	assert.ErrorIs(t, err, ErrAvailabilityConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCompleteReleasesInterpreter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'completed'")).
		WithArgs("req-1", "int-1", "done", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE interpreters SET availability_status = 'available'")).
		WithArgs("int-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Complete(context.Background(), CompleteParams{RequestID: "req-1", InterpreterID: "int-1", EncounterNotes: "done", CompletedAt: now})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCancelPendingSkipsInterpreter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'cancelled', interpreter_id = NULL")).
		WithArgs("req-1", models.RequestStatusPending, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Cancel(context.Background(), CancelParams{RequestID: "req-1", From: models.RequestStatusPending, CancelledAt: now})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCancelSurfacesDriverError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)
	interpreterID := "int-1"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'cancelled'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE interpreters")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Cancel(context.Background(), CancelParams{
		RequestID:     "req-1",
		From:          models.RequestStatusAccepted,
		InterpreterID: &interpreterID,
		CancelledAt:   time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)
	now := time.Now()
	status := models.RequestStatusPending

	rows := sqlmock.NewRows(requestRowColumns).
		AddRow("req-1", "staff-1", "pat-1", nil, "Mandarin", "onsite", "Ward 3", 30, true, nil, nil, nil, "pending", now, nil, nil, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM interpreter_requests WHERE status = $1 ORDER BY is_stat DESC, requested_at DESC LIMIT 100 OFFSET 0")).
		WithArgs(status).
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), models.RequestFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsStat)
	assert.Nil(t, items[0].InterpreterID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
