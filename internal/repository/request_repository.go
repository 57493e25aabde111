package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/interpreter-booking-api/internal/models"
)

const requestColumns = `id, requested_by, patient_id, interpreter_id, language, delivery_method, location_method,
       duration_minutes, is_stat, patient_type, request_notes, encounter_notes, status,
       requested_at, accepted_at, completed_at, cancelled_at, updated_at`

// AcceptParams describes a pending -> accepted transition.
type AcceptParams struct {
	RequestID     string
	InterpreterID string
	AcceptedAt    time.Time
}

// CompleteParams describes an accepted -> completed transition.
type CompleteParams struct {
	RequestID      string
	InterpreterID  string
	EncounterNotes string
	CompletedAt    time.Time
}

// CancelParams describes a transition into cancelled. InterpreterID is set
// when the request was accepted and its interpreter must be released.
type CancelParams struct {
	RequestID     string
	From          models.RequestStatus
	InterpreterID *string
	CancelledAt   time.Time
}

// RequestRepository persists interpreter requests and performs the
// request/interpreter compound transitions in a single transaction.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, req *models.InterpreterRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	now := time.Now().UTC()
	if req.RequestedAt.IsZero() {
		req.RequestedAt = now
	}
	req.UpdatedAt = req.RequestedAt
	const query = `INSERT INTO interpreter_requests
	(id, requested_by, patient_id, interpreter_id, language, delivery_method, location_method, duration_minutes,
	 is_stat, patient_type, request_notes, encounter_notes, status, requested_at, updated_at)
	VALUES (:id, :requested_by, :patient_id, :interpreter_id, :language, :delivery_method, :location_method, :duration_minutes,
	 :is_stat, :patient_type, :request_notes, :encounter_notes, :status, :requested_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create interpreter request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier. Missing rows yield sql.ErrNoRows.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.InterpreterRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM interpreter_requests WHERE id = $1`
	var req models.InterpreterRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get interpreter request: %w", err)
	}
	return &req, nil
}

// ListByStatus returns every request currently in status, oldest first.
func (r *RequestRepository) ListByStatus(ctx context.Context, status models.RequestStatus) ([]models.InterpreterRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM interpreter_requests WHERE status = $1 ORDER BY requested_at ASC`
	var requests []models.InterpreterRequest
	if err := r.db.SelectContext(ctx, &requests, query, status); err != nil {
		return nil, fmt.Errorf("list interpreter requests by status: %w", err)
	}
	return requests, nil
}

// List returns requests for staff views, STAT first then newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.InterpreterRequest, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + requestColumns + ` FROM interpreter_requests`)

	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.InterpreterID != "" {
		args = append(args, filter.InterpreterID)
		conditions = append(conditions, fmt.Sprintf("interpreter_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY is_stat DESC, requested_at DESC")

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.InterpreterRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list interpreter requests: %w", err)
	}
	return requests, nil
}

// Accept moves a pending request to accepted and marks the interpreter busy.
// Both updates are status-guarded; ErrStatusConflict or ErrAvailabilityConflict
// is returned, and nothing is written, when either guard fails.
func (r *RequestRepository) Accept(ctx context.Context, params AcceptParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin accept transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const claimQuery = `UPDATE interpreter_requests
SET status = 'accepted', interpreter_id = $2, accepted_at = $3, updated_at = $3
WHERE id = $1 AND status = 'pending'`
	if err = execOne(ctx, tx, claimQuery, ErrStatusConflict, params.RequestID, params.InterpreterID, params.AcceptedAt); err != nil {
		return err
	}

	const busyQuery = `UPDATE interpreters SET availability_status = 'busy', updated_at = $2
WHERE id = $1 AND availability_status = 'available'`
	if err = execOne(ctx, tx, busyQuery, ErrAvailabilityConflict, params.InterpreterID, params.AcceptedAt); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit accept: %w", err)
	}
	return nil
}

// Complete closes an accepted request owned by the interpreter and restores
// the interpreter's availability.
func (r *RequestRepository) Complete(ctx context.Context, params CompleteParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const closeQuery = `UPDATE interpreter_requests
SET status = 'completed', encounter_notes = $3, completed_at = $4, updated_at = $4
WHERE id = $1 AND interpreter_id = $2 AND status = 'accepted'`
	if err = execOne(ctx, tx, closeQuery, ErrStatusConflict, params.RequestID, params.InterpreterID, params.EncounterNotes, params.CompletedAt); err != nil {
		return err
	}

	if err = releaseInterpreter(ctx, tx, params.InterpreterID, params.CompletedAt); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit complete: %w", err)
	}
	return nil
}

// Cancel moves a pending or accepted request to cancelled, clearing the
// assignment and releasing the interpreter of an accepted request in the
// same transaction.
func (r *RequestRepository) Cancel(ctx context.Context, params CancelParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const cancelQuery = `UPDATE interpreter_requests
SET status = 'cancelled', interpreter_id = NULL, cancelled_at = $3, updated_at = $3
WHERE id = $1 AND status = $2`
	if err = execOne(ctx, tx, cancelQuery, ErrStatusConflict, params.RequestID, params.From, params.CancelledAt); err != nil {
		return err
	}

	if params.From == models.RequestStatusAccepted && params.InterpreterID != nil {
		if err = releaseInterpreter(ctx, tx, *params.InterpreterID, params.CancelledAt); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}
	return nil
}

func releaseInterpreter(ctx context.Context, tx *sqlx.Tx, interpreterID string, at time.Time) error {
	const query = `UPDATE interpreters SET availability_status = 'available', updated_at = $2 WHERE id = $1`
	return execOne(ctx, tx, query, ErrAvailabilityConflict, interpreterID, at)
}

// execOne runs a guarded update and returns conflict when no row matched.
func execOne(ctx context.Context, tx *sqlx.Tx, query string, conflict error, args ...interface{}) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec guarded update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check guarded update rows: %w", err)
	}
	if affected == 0 {
		return conflict
	}
	return nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
