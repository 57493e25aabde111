package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/interpreter-booking-api/internal/models"
)

func TestInterpreterRepositoryCreateWithLogin(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInterpreterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO interpreters").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Username: "mei", PasswordHash: "hash", Role: models.RoleInterpreter}
	interpreter := &models.Interpreter{Name: "Mei", Language: "Mandarin"}
	require.NoError(t, repo.CreateWithLogin(context.Background(), user, interpreter))
	assert.Equal(t, user.ID, interpreter.LoginID)
	assert.Equal(t, models.AvailabilityAvailable, interpreter.AvailabilityStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInterpreterRepositoryListByLanguage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInterpreterRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "login_id", "name", "language", "phone_number", "email", "gender", "gender_preference", "availability_status", "created_at", "updated_at"}).
		AddRow("int-1", "user-1", "Mei", "Mandarin", nil, nil, nil, nil, "available", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(TRIM(language)) = $1 AND availability_status = 'available' ORDER BY name ASC")).
		WithArgs("mandarin").
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), models.InterpreterFilter{Language: " Mandarin ", AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Mei", items[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInterpreterRepositorySetAvailabilityConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInterpreterRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND availability_status = $2")).
		WithArgs("int-1", models.AvailabilityAvailable, models.AvailabilityUnavailable, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetAvailability(context.Background(), "int-1", models.AvailabilityAvailable, models.AvailabilityUnavailable, now)
	assert.ErrorIs(t, err, ErrAvailabilityConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
