package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interpreter-booking-api/internal/dto"
	"github.com/noah-isme/interpreter-booking-api/internal/middleware"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
	"github.com/noah-isme/interpreter-booking-api/pkg/fhir"
	"github.com/noah-isme/interpreter-booking-api/pkg/response"
)

type patientService interface {
	SyncPatient(ctx context.Context, actor models.Actor, fhirID string) (*models.Patient, error)
	Create(ctx context.Context, actor models.Actor, payload dto.CreatePatientPayload) (*models.Patient, error)
	Search(ctx context.Context, query dto.PatientSearchQuery) ([]fhir.Patient, bool, error)
	FetchExternal(ctx context.Context, fhirID string) (*fhir.Patient, error)
	List(ctx context.Context, query dto.PatientListQuery) ([]models.Patient, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Patient, error)
}

// PatientHandler exposes the registry lookups and the local patient cache.
type PatientHandler struct {
	service patientService
}

// NewPatientHandler constructs the handler.
func NewPatientHandler(svc patientService) *PatientHandler {
	return &PatientHandler{service: svc}
}

// Search godoc
// @Summary Search the patient registry
// @Tags Patients
// @Produce json
// @Param name query string false "Patient name"
// @Param language query string false "Preferred language"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /fhir/patients/search [get]
func (h *PatientHandler) Search(c *gin.Context) {
	var query dto.PatientSearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	patients, cacheHit, err := h.service.Search(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, patients, nil, middleware.ExtractMeta(c))
}

// FetchExternal godoc
// @Summary Read a patient from the registry
// @Tags Patients
// @Produce json
// @Param fhirId path string true "Registry patient ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fhir/patients/{fhirId} [get]
func (h *PatientHandler) FetchExternal(c *gin.Context) {
	patient, err := h.service.FetchExternal(c.Request.Context(), c.Param("fhirId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, patient)
}

// Sync godoc
// @Summary Cache a registry patient locally
// @Description Idempotent: repeated or concurrent calls return the same local record
// @Tags Patients
// @Produce json
// @Param fhirId path string true "Registry patient ID"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /patients/sync/{fhirId} [post]
func (h *PatientHandler) Sync(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	patient, err := h.service.SyncPatient(c.Request.Context(), actor, c.Param("fhirId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, patient)
}

// Create godoc
// @Summary Register a patient in the registry and cache it
// @Tags Patients
// @Accept json
// @Produce json
// @Param payload body dto.CreatePatientPayload true "Patient payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /patients [post]
func (h *PatientHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var payload dto.CreatePatientPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid patient payload"))
		return
	}
	patient, err := h.service.Create(c.Request.Context(), actor, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, patient)
}

// List godoc
// @Summary List cached patients
// @Tags Patients
// @Produce json
// @Param skip query int false "Offset"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /patients [get]
func (h *PatientHandler) List(c *gin.Context) {
	var query dto.PatientListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	patients, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, patients, pagination)
}

// Get godoc
// @Summary Get a cached patient
// @Tags Patients
// @Produce json
// @Param id path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /patients/{id} [get]
func (h *PatientHandler) Get(c *gin.Context) {
	patient, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, patient)
}
