package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/interpreter-booking-api/internal/dto"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	"github.com/noah-isme/interpreter-booking-api/internal/repository"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, req *models.InterpreterRequest) error
	GetByID(ctx context.Context, id string) (*models.InterpreterRequest, error)
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]models.InterpreterRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.InterpreterRequest, error)
	Accept(ctx context.Context, params repository.AcceptParams) error
	Complete(ctx context.Context, params repository.CompleteParams) error
	Cancel(ctx context.Context, params repository.CancelParams) error
}

type interpreterStore interface {
	GetByID(ctx context.Context, id string) (*models.Interpreter, error)
	GetByLoginID(ctx context.Context, loginID string) (*models.Interpreter, error)
	List(ctx context.Context, filter models.InterpreterFilter) ([]models.Interpreter, error)
	SetAvailability(ctx context.Context, id string, from, to models.Availability, at time.Time) error
}

type patientReader interface {
	GetByID(ctx context.Context, id string) (*models.Patient, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Operation names used for metrics and logs.
const (
	opCreate          = "create"
	opAccept          = "accept"
	opComplete        = "complete"
	opCancel          = "cancel"
	opSetAvailability = "set_availability"
)

// AssignmentService is the request state machine. It is the only writer of a
// request's status and interpreter and of interpreter availability. Every
// write runs under a per-request (or per-interpreter) lock, commits through a
// status-guarded store transaction and then updates the matching index under
// the same lock.
type AssignmentService struct {
	requests     requestStore
	interpreters interpreterStore
	patients     patientReader
	audit        auditWriter
	index        *MatchingIndex
	locks        *keyedLocker
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	now          func() time.Time

	pendingFromStore bool
}

// NewAssignmentService wires the state machine.
func NewAssignmentService(
	requests requestStore,
	interpreters interpreterStore,
	patients patientReader,
	audit auditWriter,
	index *MatchingIndex,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
) *AssignmentService {
	if index == nil {
		index = NewMatchingIndex()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		requests:     requests,
		interpreters: interpreters,
		patients:     patients,
		audit:        audit,
		index:        index,
		locks:        newKeyedLocker(),
		validator:    validate,
		metrics:      metrics,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func requestKey(id string) string     { return "request:" + id }
func interpreterKey(id string) string { return "interpreter:" + id }

// notBefore keeps lifecycle timestamps monotonic under clock skew.
func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}

// Create validates and stores a new pending request and indexes it.
func (s *AssignmentService) Create(ctx context.Context, actor models.Actor, payload dto.CreateRequestPayload) (req *models.InterpreterRequest, err error) {
	start := time.Now()
	defer func() { s.observe(opCreate, start, err) }()

	payload.Language = strings.TrimSpace(payload.Language)
	payload.LocationMethod = strings.TrimSpace(payload.LocationMethod)
	if err := s.validator.Struct(payload); err != nil {
		return nil, validationError(err, "invalid request payload")
	}

	if _, err := s.patients.GetByID(ctx, payload.PatientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Validation("patient reference not found", "patient_id")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve patient")
	}

	req = &models.InterpreterRequest{
		ID:              uuid.NewString(),
		RequestedBy:     actor.UserID,
		PatientID:       payload.PatientID,
		Language:        payload.Language,
		DeliveryMethod:  payload.DeliveryMethod,
		LocationMethod:  payload.LocationMethod,
		DurationMinutes: payload.DurationMinutes,
		IsStat:          payload.IsStat,
		PatientType:     payload.PatientType,
		RequestNotes:    payload.RequestNotes,
		Status:          models.RequestStatusPending,
		RequestedAt:     s.now(),
	}

	unlock := s.locks.Lock(requestKey(req.ID))
	defer unlock()

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	s.index.Index(*req)
	s.metrics.SetPendingRequests(s.index.Len())

	s.record(ctx, actor, models.AuditActionRequestCreate, req.ID, nil, map[string]interface{}{
		"status":   req.Status,
		"language": req.Language,
		"is_stat":  req.IsStat,
	})
	s.logger.Info("interpreter request created",
		zap.String("request_id", req.ID),
		zap.String("language", req.Language),
		zap.Bool("is_stat", req.IsStat),
	)
	return req, nil
}

// ListPending returns pending requests for language, STAT first then oldest
// first, from the matching index or the store when ServePendingFromStore is on.
func (s *AssignmentService) ListPending(ctx context.Context, language string) ([]models.InterpreterRequest, error) {
	key := LanguageKey(language)
	if key == "" {
		return nil, appErrors.Validation("language is required", "language")
	}
	if !s.pendingFromStore {
		return s.index.PendingFor(language), nil
	}

	pending, err := s.requests.ListByStatus(ctx, models.RequestStatusPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	out := make([]models.InterpreterRequest, 0, len(pending))
	for _, req := range pending {
		if LanguageKey(req.Language) == key {
			out = append(out, req)
		}
	}
	sortPending(out)
	return out, nil
}

// ServePendingFromStore makes ListPending read committed pending requests
// from the record store instead of this process's index. Replicas sharing
// one database must enable it; each replica only sees its own transitions
// in the index until the next reconcile.
func (s *AssignmentService) ServePendingFromStore(enabled bool) {
	s.pendingFromStore = enabled
}

// ResolveInterpreter returns the interpreter profile bound to a login.
func (s *AssignmentService) ResolveInterpreter(ctx context.Context, loginID string) (*models.Interpreter, error) {
	interpreter, err := s.interpreters.GetByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "login has no interpreter profile")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interpreter")
	}
	return interpreter, nil
}

// Get returns a request enriched with its patient and interpreter. Callers
// that timed out on a write use it to learn the committed outcome.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.InterpreterRequestDetail, error) {
	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &models.InterpreterRequestDetail{InterpreterRequest: *req}
	if patient, err := s.patients.GetByID(ctx, req.PatientID); err == nil {
		detail.Patient = patient
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}
	if req.InterpreterID != nil {
		if interpreter, err := s.interpreters.GetByID(ctx, *req.InterpreterID); err == nil {
			detail.Interpreter = interpreter
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interpreter")
		}
	}
	return detail, nil
}

// List returns requests for staff views, STAT first then newest first.
func (s *AssignmentService) List(ctx context.Context, query dto.RequestListQuery) ([]models.InterpreterRequest, *models.Pagination, error) {
	filter := models.RequestFilter{Offset: query.Offset, Limit: query.Limit}
	if status := strings.ToLower(strings.TrimSpace(query.Status)); status != "" {
		st := models.RequestStatus(status)
		if !st.Valid() {
			return nil, nil, appErrors.Validation("unknown status", "status")
		}
		filter.Status = &st
	}
	items, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return items, &models.Pagination{Offset: filter.Offset, Limit: filter.Limit, TotalCount: len(items)}, nil
}

// ListAssigned returns the accepted requests owned by interpreterID.
func (s *AssignmentService) ListAssigned(ctx context.Context, interpreterID string) ([]models.InterpreterRequest, error) {
	status := models.RequestStatusAccepted
	items, err := s.requests.List(ctx, models.RequestFilter{Status: &status, InterpreterID: interpreterID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assigned requests")
	}
	return items, nil
}

// Accept assigns a pending request to an available interpreter. Exactly one
// of any number of concurrent accepts for the same request succeeds; the
// others fail with ALREADY_CLAIMED. Language is not checked.
func (s *AssignmentService) Accept(ctx context.Context, actor models.Actor, requestID, interpreterID string) (req *models.InterpreterRequest, err error) {
	start := time.Now()
	defer func() { s.observe(opAccept, start, err) }()

	unlock := s.locks.Lock(requestKey(requestID))
	defer unlock()

	req, err = s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusPending {
		return nil, appErrors.ErrAlreadyClaimed
	}

	interpreter, err := s.interpreters.GetByID(ctx, interpreterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "interpreter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interpreter")
	}
	if interpreter.AvailabilityStatus != models.AvailabilityAvailable {
		return nil, appErrors.ErrInterpreterUnavailable
	}

	acceptedAt := notBefore(s.now(), req.RequestedAt)
	err = s.requests.Accept(ctx, repository.AcceptParams{RequestID: req.ID, InterpreterID: interpreterID, AcceptedAt: acceptedAt})
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return nil, appErrors.ErrAlreadyClaimed
	case errors.Is(err, repository.ErrAvailabilityConflict):
		return nil, appErrors.ErrInterpreterUnavailable
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept request")
	}

	s.index.Remove(req.ID)
	s.index.Assign(interpreterID, req.ID)
	s.metrics.SetPendingRequests(s.index.Len())

	req.Status = models.RequestStatusAccepted
	req.InterpreterID = &interpreterID
	req.AcceptedAt = &acceptedAt
	req.UpdatedAt = acceptedAt

	s.record(ctx, actor, models.AuditActionRequestAccept, req.ID,
		map[string]interface{}{"status": models.RequestStatusPending},
		map[string]interface{}{"status": req.Status, "interpreter_id": interpreterID},
	)
	s.logger.Info("interpreter request accepted",
		zap.String("request_id", req.ID),
		zap.String("interpreter_id", interpreterID),
		zap.Bool("language_match", LanguageKey(req.Language) == LanguageKey(interpreter.Language)),
	)
	return req, nil
}

// Complete closes an accepted request owned by interpreterID and makes the
// interpreter available again.
func (s *AssignmentService) Complete(ctx context.Context, actor models.Actor, requestID, interpreterID, encounterNotes string) (req *models.InterpreterRequest, err error) {
	start := time.Now()
	defer func() { s.observe(opComplete, start, err) }()

	unlock := s.locks.Lock(requestKey(requestID))
	defer unlock()

	req, err = s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestStatusAccepted || !req.AssignedTo(interpreterID) {
		return nil, appErrors.ErrNotOwner
	}
	notes := strings.TrimSpace(encounterNotes)
	if notes == "" {
		return nil, appErrors.Validation("encounter notes are required", "encounter_notes")
	}

	floor := req.RequestedAt
	if req.AcceptedAt != nil {
		floor = *req.AcceptedAt
	}
	completedAt := notBefore(s.now(), floor)
	err = s.requests.Complete(ctx, repository.CompleteParams{
		RequestID:      req.ID,
		InterpreterID:  interpreterID,
		EncounterNotes: notes,
		CompletedAt:    completedAt,
	})
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return nil, appErrors.ErrNotOwner
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete request")
	}

	s.index.Release(interpreterID)

	req.Status = models.RequestStatusCompleted
	req.EncounterNotes = &notes
	req.CompletedAt = &completedAt
	req.UpdatedAt = completedAt

	s.record(ctx, actor, models.AuditActionRequestComplete, req.ID,
		map[string]interface{}{"status": models.RequestStatusAccepted},
		map[string]interface{}{"status": req.Status},
	)
	s.logger.Info("interpreter request completed",
		zap.String("request_id", req.ID),
		zap.String("interpreter_id", interpreterID),
	)
	return req, nil
}

// Cancel cancels a pending request (requester or admin) or an accepted one
// (admin only), releasing the assigned interpreter.
func (s *AssignmentService) Cancel(ctx context.Context, actor models.Actor, requestID string) (req *models.InterpreterRequest, err error) {
	start := time.Now()
	defer func() { s.observe(opCancel, start, err) }()

	unlock := s.locks.Lock(requestKey(requestID))
	defer unlock()

	req, err = s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	from := req.Status
	floor := req.RequestedAt
	switch from {
	case models.RequestStatusPending:
		if !actor.IsAdmin() && req.RequestedBy != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester or an administrator can cancel a pending request")
		}
	case models.RequestStatusAccepted:
		if !actor.IsAdmin() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only an administrator can cancel an accepted request")
		}
		if req.AcceptedAt != nil {
			floor = *req.AcceptedAt
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request is already "+string(from))
	}

	released := req.InterpreterID
	cancelledAt := notBefore(s.now(), floor)
	err = s.requests.Cancel(ctx, repository.CancelParams{
		RequestID:     req.ID,
		From:          from,
		InterpreterID: released,
		CancelledAt:   cancelledAt,
	})
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request state changed")
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}

	if from == models.RequestStatusPending {
		s.index.Remove(req.ID)
		s.metrics.SetPendingRequests(s.index.Len())
	} else if released != nil {
		s.index.Release(*released)
	}

	req.Status = models.RequestStatusCancelled
	req.InterpreterID = nil
	req.CancelledAt = &cancelledAt
	req.UpdatedAt = cancelledAt

	oldValues := map[string]interface{}{"status": from}
	if released != nil {
		oldValues["interpreter_id"] = *released
	}
	s.record(ctx, actor, models.AuditActionRequestCancel, req.ID, oldValues, map[string]interface{}{"status": req.Status})
	s.logger.Info("interpreter request cancelled",
		zap.String("request_id", req.ID),
		zap.String("from", string(from)),
		zap.String("actor", actor.UserID),
	)
	return req, nil
}

// SetAvailability toggles an interpreter between available and unavailable.
// A busy interpreter cannot be toggled.
func (s *AssignmentService) SetAvailability(ctx context.Context, actor models.Actor, interpreterID string, target models.Availability) (interpreter *models.Interpreter, err error) {
	start := time.Now()
	defer func() { s.observe(opSetAvailability, start, err) }()

	if target != models.AvailabilityAvailable && target != models.AvailabilityUnavailable {
		return nil, appErrors.Validation("availability must be available or unavailable", "availability_status")
	}

	unlock := s.locks.Lock(interpreterKey(interpreterID))
	defer unlock()

	interpreter, err = s.loadInterpreter(ctx, interpreterID)
	if err != nil {
		return nil, err
	}
	if interpreter.AvailabilityStatus == models.AvailabilityBusy {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "interpreter is serving an accepted request")
	}
	if interpreter.AvailabilityStatus == target {
		return interpreter, nil
	}

	from := interpreter.AvailabilityStatus
	at := s.now()
	if err := s.interpreters.SetAvailability(ctx, interpreterID, from, target, at); err != nil {
		if !errors.Is(err, repository.ErrAvailabilityConflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability")
		}
		// an accept won the interpreter between our read and write
		current, loadErr := s.loadInterpreter(ctx, interpreterID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.AvailabilityStatus == models.AvailabilityBusy {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "interpreter is serving an accepted request")
		}
		if current.AvailabilityStatus == target {
			return current, nil
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, "availability changed concurrently")
	}

	interpreter.AvailabilityStatus = target
	interpreter.UpdatedAt = at

	s.record(ctx, actor, models.AuditActionAvailabilityChange, interpreterID,
		map[string]interface{}{"availability_status": from},
		map[string]interface{}{"availability_status": target},
	)
	s.logger.Info("interpreter availability changed",
		zap.String("interpreter_id", interpreterID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)
	return interpreter, nil
}

// Rebuild repopulates the matching index from the store. Used at startup.
func (s *AssignmentService) Rebuild(ctx context.Context) error {
	pending, err := s.requests.ListByStatus(ctx, models.RequestStatusPending)
	if err != nil {
		return err
	}
	accepted, err := s.requests.ListByStatus(ctx, models.RequestStatusAccepted)
	if err != nil {
		return err
	}
	s.index.Rebuild(pending, accepted)
	s.metrics.SetPendingRequests(s.index.Len())
	s.logger.Info("matching index rebuilt", zap.Int("pending", len(pending)), zap.Int("accepted", len(accepted)))
	return nil
}

func (s *AssignmentService) loadRequest(ctx context.Context, id string) (*models.InterpreterRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return req, nil
}

func (s *AssignmentService) loadInterpreter(ctx context.Context, id string) (*models.Interpreter, error) {
	interpreter, err := s.interpreters.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "interpreter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load interpreter")
	}
	return interpreter, nil
}

func (s *AssignmentService) observe(operation string, start time.Time, err error) {
	outcome := OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, appErrors.ErrAlreadyClaimed):
		outcome = OutcomeLostRace
		s.logger.Debug("lost accept race", zap.Error(err))
	case appErrors.FromError(err).Status < 500:
		outcome = OutcomeRejected
	default:
		outcome = OutcomeError
		s.logger.Error("assignment operation failed", zap.String("operation", operation), zap.Error(err))
	}
	s.metrics.ObserveTransition(operation, outcome, time.Since(start))
}

func (s *AssignmentService) record(ctx context.Context, actor models.Actor, action, resourceID string, oldValues, newValues map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "interpreter_request",
		ResourceID: &resourceID,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if action == models.AuditActionAvailabilityChange || action == models.AuditActionAvailabilityRepair {
		entry.Resource = "interpreter"
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
