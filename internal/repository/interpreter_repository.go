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

const interpreterColumns = `id, login_id, name, language, phone_number, email, gender, gender_preference,
       availability_status, created_at, updated_at`

// InterpreterRepository persists interpreter profiles.
type InterpreterRepository struct {
	db *sqlx.DB
}

// NewInterpreterRepository constructs the repository.
func NewInterpreterRepository(db *sqlx.DB) *InterpreterRepository {
	return &InterpreterRepository{db: db}
}

// CreateWithLogin inserts the login and the interpreter profile together so a
// profile never exists without its login.
func (r *InterpreterRepository) CreateWithLogin(ctx context.Context, user *models.User, interpreter *models.Interpreter) (err error) {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt, user.UpdatedAt = now, now
	if interpreter.ID == "" {
		interpreter.ID = uuid.NewString()
	}
	interpreter.LoginID = user.ID
	if interpreter.AvailabilityStatus == "" {
		interpreter.AvailabilityStatus = models.AvailabilityAvailable
	}
	interpreter.CreatedAt, interpreter.UpdatedAt = now, now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create interpreter transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.NamedExecContext(ctx, insertUserQuery, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create interpreter login: %w", err)
	}

	const query = `INSERT INTO interpreters (id, login_id, name, language, phone_number, email, gender, gender_preference,
	availability_status, created_at, updated_at)
	VALUES (:id, :login_id, :name, :language, :phone_number, :email, :gender, :gender_preference,
	:availability_status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, interpreter); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create interpreter: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create interpreter: %w", err)
	}
	return nil
}

// GetByID fetches an interpreter by identifier.
func (r *InterpreterRepository) GetByID(ctx context.Context, id string) (*models.Interpreter, error) {
	return r.getOne(ctx, `SELECT `+interpreterColumns+` FROM interpreters WHERE id = $1`, id)
}

// GetByLoginID fetches the interpreter bound to a login.
func (r *InterpreterRepository) GetByLoginID(ctx context.Context, loginID string) (*models.Interpreter, error) {
	return r.getOne(ctx, `SELECT `+interpreterColumns+` FROM interpreters WHERE login_id = $1`, loginID)
}

func (r *InterpreterRepository) getOne(ctx context.Context, query, arg string) (*models.Interpreter, error) {
	var interpreter models.Interpreter
	if err := r.db.GetContext(ctx, &interpreter, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get interpreter: %w", err)
	}
	return &interpreter, nil
}

// List returns interpreters ordered by name.
func (r *InterpreterRepository) List(ctx context.Context, filter models.InterpreterFilter) ([]models.Interpreter, error) {
	query := `SELECT ` + interpreterColumns + ` FROM interpreters`
	var (
		conditions []string
		args       []interface{}
	)
	if lang := strings.TrimSpace(filter.Language); lang != "" {
		args = append(args, strings.ToLower(lang))
		conditions = append(conditions, fmt.Sprintf("LOWER(TRIM(language)) = $%d", len(args)))
	}
	if filter.AvailableOnly {
		conditions = append(conditions, "availability_status = 'available'")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name ASC"

	var interpreters []models.Interpreter
	if err := r.db.SelectContext(ctx, &interpreters, query, args...); err != nil {
		return nil, fmt.Errorf("list interpreters: %w", err)
	}
	return interpreters, nil
}

// UpdateContact updates the self-editable contact fields.
func (r *InterpreterRepository) UpdateContact(ctx context.Context, interpreter *models.Interpreter) error {
	interpreter.UpdatedAt = time.Now().UTC()
	const query = `UPDATE interpreters SET name = :name, phone_number = :phone_number, email = :email,
	gender = :gender, gender_preference = :gender_preference, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, interpreter)
	if err != nil {
		return fmt.Errorf("update interpreter contact: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetAvailability swaps the availability flag from one value to another.
// ErrAvailabilityConflict is returned when the current value is not from.
func (r *InterpreterRepository) SetAvailability(ctx context.Context, id string, from, to models.Availability, at time.Time) error {
	const query = `UPDATE interpreters SET availability_status = $3, updated_at = $4 WHERE id = $1 AND availability_status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, at)
	if err != nil {
		return fmt.Errorf("set interpreter availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check interpreter availability rows: %w", err)
	}
	if affected == 0 {
		return ErrAvailabilityConflict
	}
	return nil
}
