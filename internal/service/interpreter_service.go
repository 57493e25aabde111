package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/interpreter-booking-api/internal/dto"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	"github.com/noah-isme/interpreter-booking-api/internal/repository"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
)

type interpreterDirectory interface {
	CreateWithLogin(ctx context.Context, user *models.User, interpreter *models.Interpreter) error
	GetByID(ctx context.Context, id string) (*models.Interpreter, error)
	GetByLoginID(ctx context.Context, loginID string) (*models.Interpreter, error)
	List(ctx context.Context, filter models.InterpreterFilter) ([]models.Interpreter, error)
	UpdateContact(ctx context.Context, interpreter *models.Interpreter) error
}

// InterpreterService manages interpreter profiles. Availability changes go
// through AssignmentService.
type InterpreterService struct {
	repo      interpreterDirectory
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInterpreterService constructs the service.
func NewInterpreterService(repo interpreterDirectory, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *InterpreterService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterpreterService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Create registers an interpreter together with its INTERPRETER login.
func (s *InterpreterService) Create(ctx context.Context, actor models.Actor, payload dto.CreateInterpreterPayload) (*models.Interpreter, error) {
	payload.Username = strings.TrimSpace(payload.Username)
	payload.Name = strings.TrimSpace(payload.Name)
	payload.Language = strings.TrimSpace(payload.Language)
	if err := s.validator.Struct(payload); err != nil {
		return nil, validationError(err, "invalid interpreter payload")
	}

	hash, err := HashPassword(payload.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     payload.Username,
		PasswordHash: hash,
		Role:         models.RoleInterpreter,
	}
	interpreter := &models.Interpreter{
		Name:               payload.Name,
		Language:           payload.Language,
		PhoneNumber:        payload.PhoneNumber,
		Email:              payload.Email,
		Gender:             payload.Gender,
		GenderPreference:   payload.GenderPreference,
		AvailabilityStatus: models.AvailabilityAvailable,
	}
	if err := s.repo.CreateWithLogin(ctx, user, interpreter); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create interpreter")
	}

	if s.audit != nil {
		entry := &models.AuditLog{
			Action:     models.AuditActionUserCreate,
			Resource:   "interpreter",
			ResourceID: &interpreter.ID,
			IPAddress:  actor.IP,
			UserAgent:  actor.UserAgent,
		}
		if actor.UserID != "" {
			entry.UserID = &actor.UserID
		}
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to record interpreter audit log", zap.Error(err))
		}
	}
	s.logger.Info("interpreter registered", zap.String("interpreter_id", interpreter.ID), zap.String("language", interpreter.Language))
	return interpreter, nil
}

// List returns interpreters, optionally filtered by language or availability.
func (s *InterpreterService) List(ctx context.Context, query dto.InterpreterListQuery) ([]models.Interpreter, error) {
	interpreters, err := s.repo.List(ctx, models.InterpreterFilter{
		Language:      strings.TrimSpace(query.Language),
		AvailableOnly: query.AvailableOnly,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list interpreters")
	}
	return interpreters, nil
}

// Get returns an interpreter by id.
func (s *InterpreterService) Get(ctx context.Context, id string) (*models.Interpreter, error) {
	interpreter, err := s.repo.GetByID(ctx, id)
	return s.found(interpreter, err)
}

// Me returns the profile bound to the login.
func (s *InterpreterService) Me(ctx context.Context, loginID string) (*models.Interpreter, error) {
	interpreter, err := s.repo.GetByLoginID(ctx, loginID)
	return s.found(interpreter, err)
}

// UpdateContact changes the contact details of the caller's own profile.
func (s *InterpreterService) UpdateContact(ctx context.Context, loginID string, payload dto.UpdateInterpreterContactPayload) (*models.Interpreter, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, validationError(err, "invalid contact payload")
	}
	interpreter, err := s.Me(ctx, loginID)
	if err != nil {
		return nil, err
	}
	if payload.PhoneNumber != nil {
		interpreter.PhoneNumber = payload.PhoneNumber
	}
	if payload.Email != nil {
		interpreter.Email = payload.Email
	}
	if err := s.repo.UpdateContact(ctx, interpreter); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "interpreter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update interpreter")
	}
	return interpreter, nil
}

func (s *InterpreterService) found(interpreter *models.Interpreter, err error) (*models.Interpreter, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "interpreter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interpreter")
	}
	return interpreter, nil
}
