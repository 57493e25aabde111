package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interpreter-booking-api/internal/dto"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
	"github.com/noah-isme/interpreter-booking-api/pkg/response"
)

type interpreterService interface {
	Create(ctx context.Context, actor models.Actor, payload dto.CreateInterpreterPayload) (*models.Interpreter, error)
	List(ctx context.Context, query dto.InterpreterListQuery) ([]models.Interpreter, error)
	Me(ctx context.Context, loginID string) (*models.Interpreter, error)
	UpdateContact(ctx context.Context, loginID string, payload dto.UpdateInterpreterContactPayload) (*models.Interpreter, error)
}

type availabilityService interface {
	SetAvailability(ctx context.Context, actor models.Actor, interpreterID string, target models.Availability) (*models.Interpreter, error)
}

// InterpreterHandler exposes interpreter profiles and availability.
type InterpreterHandler struct {
	interpreters interpreterService
	availability availabilityService
}

// NewInterpreterHandler constructs the handler.
func NewInterpreterHandler(interpreters interpreterService, availability availabilityService) *InterpreterHandler {
	return &InterpreterHandler{interpreters: interpreters, availability: availability}
}

// Create godoc
// @Summary Register an interpreter with its login
// @Tags Interpreters
// @Accept json
// @Produce json
// @Param payload body dto.CreateInterpreterPayload true "Interpreter payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /interpreters [post]
func (h *InterpreterHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var payload dto.CreateInterpreterPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid interpreter payload"))
		return
	}
	interpreter, err := h.interpreters.Create(c.Request.Context(), actor, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, interpreter)
}

// List godoc
// @Summary List interpreters
// @Tags Interpreters
// @Produce json
// @Param language query string false "Language filter"
// @Param available_only query bool false "Only available interpreters"
// @Success 200 {object} response.Envelope
// @Router /interpreters [get]
func (h *InterpreterHandler) List(c *gin.Context) {
	var query dto.InterpreterListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	interpreters, err := h.interpreters.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, interpreters)
}

// Me godoc
// @Summary Caller's interpreter profile
// @Tags Interpreters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /interpreters/me [get]
func (h *InterpreterHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	interpreter, err := h.interpreters.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, interpreter)
}

// UpdateMe godoc
// @Summary Update the caller's contact details
// @Tags Interpreters
// @Accept json
// @Produce json
// @Param payload body dto.UpdateInterpreterContactPayload true "Contact payload"
// @Success 200 {object} response.Envelope
// @Router /interpreters/me [patch]
func (h *InterpreterHandler) UpdateMe(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var payload dto.UpdateInterpreterContactPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid contact payload"))
		return
	}
	interpreter, err := h.interpreters.UpdateContact(c.Request.Context(), actor.UserID, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, interpreter)
}

// SetMyAvailability godoc
// @Summary Toggle the caller's availability
// @Tags Interpreters
// @Accept json
// @Produce json
// @Param payload body dto.SetAvailabilityPayload true "available or unavailable"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /interpreters/me/availability [patch]
func (h *InterpreterHandler) SetMyAvailability(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payload, ok := bindAvailability(c)
	if !ok {
		return
	}
	interpreter, err := h.interpreters.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setAvailability(c, actor, interpreter.ID, payload.AvailabilityStatus)
}

// SetAvailability godoc
// @Summary Toggle an interpreter's availability
// @Tags Interpreters
// @Accept json
// @Produce json
// @Param id path string true "Interpreter ID"
// @Param payload body dto.SetAvailabilityPayload true "available or unavailable"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /interpreters/{id}/availability [patch]
func (h *InterpreterHandler) SetAvailability(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payload, ok := bindAvailability(c)
	if !ok {
		return
	}
	h.setAvailability(c, actor, c.Param("id"), payload.AvailabilityStatus)
}

func (h *InterpreterHandler) setAvailability(c *gin.Context, actor models.Actor, interpreterID string, target models.Availability) {
	interpreter, err := h.availability.SetAvailability(c.Request.Context(), actor, interpreterID, target)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, interpreter)
}

func bindAvailability(c *gin.Context) (dto.SetAvailabilityPayload, bool) {
	var payload dto.SetAvailabilityPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return payload, false
	}
	return payload, true
}
