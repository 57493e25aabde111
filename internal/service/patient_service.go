package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/interpreter-booking-api/internal/dto"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	"github.com/noah-isme/interpreter-booking-api/internal/repository"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
	"github.com/noah-isme/interpreter-booking-api/pkg/fhir"
)

type patientStore interface {
	GetByFHIRID(ctx context.Context, fhirID string) (*models.Patient, error)
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	List(ctx context.Context, offset, limit int) ([]models.Patient, int, error)
	Create(ctx context.Context, patient *models.Patient) error
}

type patientRegistry interface {
	GetPatient(ctx context.Context, id string) (*fhir.Patient, error)
	SearchPatients(ctx context.Context, name, language string) ([]fhir.Patient, error)
	CreatePatient(ctx context.Context, patient fhir.Patient) (*fhir.Patient, error)
}

// Sync outcomes recorded on the patient sync counter.
const (
	syncCached  = "cached"
	syncCreated = "created"
	syncRaced   = "raced"
	syncFailed  = "failed"
)

const searchCachePrefix = "fhir:search"

// PatientService owns the local patient cache and the sync gate in front of
// the external registry.
type PatientService struct {
	store     patientStore
	registry  patientRegistry
	audit     auditWriter
	cache     *CacheService
	searchTTL time.Duration
	flights   singleflight.Group
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewPatientService constructs the service. cache may be nil.
func NewPatientService(store patientStore, registry patientRegistry, audit auditWriter, cache *CacheService, searchTTL time.Duration, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *PatientService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientService{
		store:     store,
		registry:  registry,
		audit:     audit,
		cache:     cache,
		searchTTL: searchTTL,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// SyncPatient returns the local record for a registry id, fetching and
// inserting it on first use. Concurrent calls for one id yield one record.
// No lock is held while the registry is called; the unique fhir_id
// constraint settles races between processes.
func (s *PatientService) SyncPatient(ctx context.Context, actor models.Actor, fhirID string) (*models.Patient, error) {
	fhirID = strings.TrimSpace(fhirID)
	if fhirID == "" {
		return nil, appErrors.Validation("fhir id is required", "fhir_id")
	}

	// The shared fetch must outlive any one caller; the registry client's own
	// timeout still bounds it.
	flight := s.flights.DoChan(fhirID, func() (interface{}, error) {
		return s.syncOnce(context.WithoutCancel(ctx), actor, fhirID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		patient := *res.Val.(*models.Patient)
		return &patient, nil
	}
}

func (s *PatientService) syncOnce(ctx context.Context, actor models.Actor, fhirID string) (*models.Patient, error) {
	existing, err := s.store.GetByFHIRID(ctx, fhirID)
	if err == nil {
		s.metrics.RecordPatientSync(syncCached)
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordPatientSync(syncFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read patient cache")
	}

	resource, err := s.registry.GetPatient(ctx, fhirID)
	if err != nil {
		s.metrics.RecordPatientSync(syncFailed)
		s.logger.Warn("patient registry lookup failed", zap.String("fhir_id", fhirID), zap.Error(err))
		if errors.Is(err, fhir.ErrNotFound) {
			return nil, appErrors.Wrap(err, appErrors.ErrExternalLookup.Code, appErrors.ErrExternalLookup.Status, "patient not found in registry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrExternalLookup.Code, appErrors.ErrExternalLookup.Status, appErrors.ErrExternalLookup.Message)
	}
	if strings.TrimSpace(resource.ID) == "" {
		s.metrics.RecordPatientSync(syncFailed)
		return nil, appErrors.Clone(appErrors.ErrExternalLookup, "registry returned a patient without an id")
	}

	patient := fhir.ToLocal(*resource)
	patient.FHIRID = fhirID
	return s.insert(ctx, actor, &patient)
}

// insert stores patient, returning the existing row when another caller won.
func (s *PatientService) insert(ctx context.Context, actor models.Actor, patient *models.Patient) (*models.Patient, error) {
	err := s.store.Create(ctx, patient)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, readErr := s.store.GetByFHIRID(ctx, patient.FHIRID)
		if readErr != nil {
			s.metrics.RecordPatientSync(syncFailed)
			return nil, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-read patient")
		}
		s.metrics.RecordPatientSync(syncRaced)
		s.logger.Debug("patient sync lost insert race", zap.String("fhir_id", patient.FHIRID))
		return existing, nil
	}
	if err != nil {
		s.metrics.RecordPatientSync(syncFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store patient")
	}

	s.metrics.RecordPatientSync(syncCreated)
	if s.audit != nil {
		entry := &models.AuditLog{
			Action:     models.AuditActionPatientSync,
			Resource:   "patient",
			ResourceID: &patient.ID,
			IPAddress:  actor.IP,
			UserAgent:  actor.UserAgent,
		}
		if actor.UserID != "" {
			entry.UserID = &actor.UserID
		}
		entry.NewValues, _ = json.Marshal(map[string]string{"fhir_id": patient.FHIRID})
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to record patient audit log", zap.Error(err))
		}
	}
	s.logger.Info("patient cached", zap.String("patient_id", patient.ID), zap.String("fhir_id", patient.FHIRID))
	return patient, nil
}

// Create registers a patient in the registry and caches it locally.
func (s *PatientService) Create(ctx context.Context, actor models.Actor, payload dto.CreatePatientPayload) (*models.Patient, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, validationError(err, "invalid patient payload")
	}

	created, err := s.registry.CreatePatient(ctx, fhir.BuildPatient(fhir.NewPatientInput{
		Name:        payload.Name,
		Birthdate:   payload.Birthdate,
		Gender:      payload.Gender,
		Language:    payload.Language,
		PhoneNumber: deref(payload.PhoneNumber),
		Email:       deref(payload.Email),
		Address:     deref(payload.Address),
	}))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrExternalLookup.Code, appErrors.ErrExternalLookup.Status, "failed to create patient in registry")
	}
	if strings.TrimSpace(created.ID) == "" {
		return nil, appErrors.Clone(appErrors.ErrExternalLookup, "registry returned a patient without an id")
	}

	patient := fhir.ToLocal(*created)
	patient.Location = payload.Location
	stored, err := s.insert(ctx, actor, &patient)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Invalidate(ctx, searchCachePrefix+":*")
	return stored, nil
}

// Search queries the registry, serving repeated queries from the cache. The
// boolean reports a cache hit.
func (s *PatientService) Search(ctx context.Context, query dto.PatientSearchQuery) ([]fhir.Patient, bool, error) {
	key := CacheKey(searchCachePrefix, query.Name, query.Language)
	var patients []fhir.Patient
	hit, err := s.cache.Remember(ctx, key, s.searchTTL, &patients, func(ctx context.Context) (interface{}, error) {
		found, err := s.registry.SearchPatients(ctx, strings.TrimSpace(query.Name), strings.TrimSpace(query.Language))
		if err != nil {
			return nil, err
		}
		if found == nil {
			found = []fhir.Patient{}
		}
		patients = found
		return found, nil
	})
	if err != nil {
		s.logger.Warn("patient registry search failed", zap.Error(err))
		return nil, false, appErrors.Wrap(err, appErrors.ErrExternalLookup.Code, appErrors.ErrExternalLookup.Status, appErrors.ErrExternalLookup.Message)
	}
	return patients, hit, nil
}

// FetchExternal returns the raw registry resource for fhirID.
func (s *PatientService) FetchExternal(ctx context.Context, fhirID string) (*fhir.Patient, error) {
	resource, err := s.registry.GetPatient(ctx, strings.TrimSpace(fhirID))
	if err != nil {
		if errors.Is(err, fhir.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found in registry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrExternalLookup.Code, appErrors.ErrExternalLookup.Status, appErrors.ErrExternalLookup.Message)
	}
	return resource, nil
}

// List pages the local patient cache.
func (s *PatientService) List(ctx context.Context, query dto.PatientListQuery) ([]models.Patient, *models.Pagination, error) {
	patients, total, err := s.store.List(ctx, query.Offset, query.Limit)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list patients")
	}
	return patients, &models.Pagination{Offset: query.Offset, Limit: query.Limit, TotalCount: total}, nil
}

// Get returns a cached patient by local id.
func (s *PatientService) Get(ctx context.Context, id string) (*models.Patient, error) {
	patient, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}
	return patient, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
