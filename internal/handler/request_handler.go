package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interpreter-booking-api/internal/dto"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
	"github.com/noah-isme/interpreter-booking-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, actor models.Actor, payload dto.CreateRequestPayload) (*models.InterpreterRequest, error)
	Get(ctx context.Context, id string) (*models.InterpreterRequestDetail, error)
	List(ctx context.Context, query dto.RequestListQuery) ([]models.InterpreterRequest, *models.Pagination, error)
	ListPending(ctx context.Context, language string) ([]models.InterpreterRequest, error)
	ListAssigned(ctx context.Context, interpreterID string) ([]models.InterpreterRequest, error)
	ResolveInterpreter(ctx context.Context, loginID string) (*models.Interpreter, error)
	Accept(ctx context.Context, actor models.Actor, requestID, interpreterID string) (*models.InterpreterRequest, error)
	Complete(ctx context.Context, actor models.Actor, requestID, interpreterID, encounterNotes string) (*models.InterpreterRequest, error)
	Cancel(ctx context.Context, actor models.Actor, requestID string) (*models.InterpreterRequest, error)
}

// RequestHandler exposes the request state machine over HTTP.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(svc requestService) *RequestHandler {
	return &RequestHandler{service: svc}
}

// List godoc
// @Summary List interpreter requests
// @Description STAT requests first, then newest first
// @Tags Requests
// @Produce json
// @Param status query string false "pending, accepted, completed or cancelled"
// @Param skip query int false "Offset"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	var query dto.RequestListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Create godoc
// @Summary Raise an interpreter request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var payload dto.CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}
	req, err := h.service.Create(c.Request.Context(), actor, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// Get godoc
// @Summary Get request detail
// @Description Returns the committed state, including the patient and interpreter
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Cancel godoc
// @Summary Cancel a request
// @Description Pending requests may be cancelled by the requester or an admin; accepted ones by an admin
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/cancel [post]
func (h *RequestHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	req, err := h.service.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// Pending godoc
// @Summary Pending requests for the caller's language
// @Tags Interpreter
// @Produce json
// @Param language query string false "Override the profile language"
// @Success 200 {object} response.Envelope
// @Router /interpreter/requests/pending [get]
func (h *RequestHandler) Pending(c *gin.Context) {
	interpreter, ok := h.caller(c)
	if !ok {
		return
	}
	language := strings.TrimSpace(c.Query("language"))
	if language == "" {
		language = interpreter.Language
	}
	items, err := h.service.ListPending(c.Request.Context(), language)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Mine godoc
// @Summary Accepted requests owned by the caller
// @Tags Interpreter
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /interpreter/requests/my [get]
func (h *RequestHandler) Mine(c *gin.Context) {
	interpreter, ok := h.caller(c)
	if !ok {
		return
	}
	items, err := h.service.ListAssigned(c.Request.Context(), interpreter.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Accept godoc
// @Summary Accept a pending request
// @Description Exactly one concurrent accept wins; the others receive ALREADY_CLAIMED
// @Tags Interpreter
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /interpreter/requests/{id}/accept [post]
func (h *RequestHandler) Accept(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	interpreter, ok := h.caller(c)
	if !ok {
		return
	}
	req, err := h.service.Accept(c.Request.Context(), actor, c.Param("id"), interpreter.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// Complete godoc
// @Summary Complete an accepted request
// @Tags Interpreter
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.CompleteRequestPayload true "Encounter notes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /interpreter/requests/{id}/complete [post]
func (h *RequestHandler) Complete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var payload dto.CompleteRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion payload"))
		return
	}
	interpreter, ok := h.caller(c)
	if !ok {
		return
	}
	req, err := h.service.Complete(c.Request.Context(), actor, c.Param("id"), interpreter.ID, payload.EncounterNotes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// caller resolves the interpreter profile of the authenticated login.
func (h *RequestHandler) caller(c *gin.Context) (*models.Interpreter, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	interpreter, err := h.service.ResolveInterpreter(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return interpreter, true
}
