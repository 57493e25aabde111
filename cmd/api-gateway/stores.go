package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/interpreter-booking-api/internal/models"
	"github.com/noah-isme/interpreter-booking-api/internal/repository"
	"github.com/noah-isme/interpreter-booking-api/migrations"
	"github.com/noah-isme/interpreter-booking-api/pkg/config"
	"github.com/noah-isme/interpreter-booking-api/pkg/database"
)

type requestRepository interface {
	Create(ctx context.Context, req *models.InterpreterRequest) error
	GetByID(ctx context.Context, id string) (*models.InterpreterRequest, error)
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]models.InterpreterRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.InterpreterRequest, error)
	Accept(ctx context.Context, params repository.AcceptParams) error
	Complete(ctx context.Context, params repository.CompleteParams) error
	Cancel(ctx context.Context, params repository.CancelParams) error
}

type interpreterRepository interface {
	CreateWithLogin(ctx context.Context, user *models.User, interpreter *models.Interpreter) error
	GetByID(ctx context.Context, id string) (*models.Interpreter, error)
	GetByLoginID(ctx context.Context, loginID string) (*models.Interpreter, error)
	List(ctx context.Context, filter models.InterpreterFilter) ([]models.Interpreter, error)
	UpdateContact(ctx context.Context, interpreter *models.Interpreter) error
	SetAvailability(ctx context.Context, id string, from, to models.Availability, at time.Time) error
}

type patientRepository interface {
	GetByFHIRID(ctx context.Context, fhirID string) (*models.Patient, error)
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	List(ctx context.Context, offset, limit int) ([]models.Patient, int, error)
	Create(ctx context.Context, patient *models.Patient) error
}

type userRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// stores is the record store selected by STORE_DRIVER.
type stores struct {
	requests     requestRepository
	interpreters interpreterRepository
	patients     patientRepository
	users        userRepository
	ping         func(ctx context.Context) error
	close        func() error
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		mem := repository.NewMemoryStore()
		return &stores{
			requests:     mem.Requests(),
			interpreters: mem.Interpreters(),
			patients:     mem.Patients(),
			users:        mem.Users(),
			ping:         func(context.Context) error { return nil },
			close:        func() error { return nil },
		}, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if _, err := database.Migrate(ctx, db, migrations.FS, logger); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return postgresStores(db), nil
}

func postgresStores(db *sqlx.DB) *stores {
	return &stores{
		requests:     repository.NewRequestRepository(db),
		interpreters: repository.NewInterpreterRepository(db),
		patients:     repository.NewPatientRepository(db),
		users:        repository.NewUserRepository(db),
		ping:         db.PingContext,
		close:        db.Close,
	}
}
