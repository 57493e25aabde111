package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/interpreter-booking-api/internal/models"
)

const patientColumns = `id, fhir_id, name, location, birthdate, gender, address, phone_number, email, language, created_at, updated_at`

// PatientRepository persists the local patient cache.
type PatientRepository struct {
	db *sqlx.DB
}

// NewPatientRepository constructs the repository.
func NewPatientRepository(db *sqlx.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// GetByFHIRID fetches the cached patient for an external identifier.
func (r *PatientRepository) GetByFHIRID(ctx context.Context, fhirID string) (*models.Patient, error) {
	return r.getOne(ctx, `SELECT `+patientColumns+` FROM patients WHERE fhir_id = $1`, fhirID)
}

// GetByID fetches a patient by local identifier.
func (r *PatientRepository) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	return r.getOne(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
}

func (r *PatientRepository) getOne(ctx context.Context, query, arg string) (*models.Patient, error) {
	var patient models.Patient
	if err := r.db.GetContext(ctx, &patient, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &patient, nil
}

// List returns cached patients by name with the total count.
func (r *PatientRepository) List(ctx context.Context, offset, limit int) ([]models.Patient, int, error) {
	limit, offset = normalizePage(limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM patients ORDER BY name ASC LIMIT %d OFFSET %d`, patientColumns, limit, offset)
	var patients []models.Patient
	if err := r.db.SelectContext(ctx, &patients, query); err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM patients`); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}
	return patients, total, nil
}

// Create inserts a patient. A second row for the same fhir_id yields ErrDuplicate.
func (r *PatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	patient.CreatedAt, patient.UpdatedAt = now, now
	const query = `INSERT INTO patients (id, fhir_id, name, location, birthdate, gender, address, phone_number, email, language, created_at, updated_at)
	VALUES (:id, :fhir_id, :name, :location, :birthdate, :gender, :address, :phone_number, :email, :language, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}
