package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/interpreter-booking-api/internal/models"
)

func TestPatientRepositoryGetByFHIRID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPatientRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "fhir_id", "name", "location", "birthdate", "gender", "address", "phone_number", "email", "language", "created_at", "updated_at"}).
		AddRow("pat-1", "592011", "Li Wei", nil, "1980-04-02", "male", nil, nil, nil, "Mandarin", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM patients WHERE fhir_id = $1")).
		WithArgs("592011").
		WillReturnRows(rows)

	patient, err := repo.GetByFHIRID(context.Background(), "592011")
	require.NoError(t, err)
	assert.Equal(t, "Li Wei", patient.Name)
	require.NotNil(t, patient.Birthdate)
	assert.Equal(t, "1980-04-02", *patient.Birthdate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepositoryGetByFHIRIDMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPatientRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM patients WHERE fhir_id = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByFHIRID(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPatientRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPatientRepository(db)

	mock.ExpectExec("INSERT INTO patients").WillReturnError(&pq.Error{Code: "23505", Constraint: "patients_fhir_id_key"})

	err := repo.Create(context.Background(), &models.Patient{FHIRID: "592011", Name: "Li Wei", Language: "Mandarin"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
