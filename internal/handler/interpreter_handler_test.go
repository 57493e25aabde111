package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/interpreter-booking-api/internal/dto"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
)

type fakeInterpreterSrv struct {
	query   dto.InterpreterListQuery
	contact dto.UpdateInterpreterContactPayload
}

func (f *fakeInterpreterSrv) Create(_ context.Context, _ models.Actor, payload dto.CreateInterpreterPayload) (*models.Interpreter, error) {
	if payload.Username == "taken" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already taken")
	}
	return &models.Interpreter{ID: "int-1", Name: payload.Name, Language: payload.Language}, nil
}

func (f *fakeInterpreterSrv) List(_ context.Context, query dto.InterpreterListQuery) ([]models.Interpreter, error) {
	f.query = query
	return []models.Interpreter{{ID: "int-1"}}, nil
}

func (f *fakeInterpreterSrv) Me(_ context.Context, loginID string) (*models.Interpreter, error) {
	return &models.Interpreter{ID: "int-for-" + loginID}, nil
}

func (f *fakeInterpreterSrv) UpdateContact(_ context.Context, loginID string, payload dto.UpdateInterpreterContactPayload) (*models.Interpreter, error) {
	f.contact = payload
	return &models.Interpreter{ID: "int-for-" + loginID}, nil
}

type fakeAvailabilitySrv struct {
	interpreterID string
	target        models.Availability
	err           error
}

func (f *fakeAvailabilitySrv) SetAvailability(_ context.Context, _ models.Actor, interpreterID string, target models.Availability) (*models.Interpreter, error) {
	f.interpreterID, f.target = interpreterID, target
	if f.err != nil {
		return nil, f.err
	}
	return &models.Interpreter{ID: interpreterID, AvailabilityStatus: target}, nil
}

func TestInterpreterHandlerSetMyAvailabilityResolvesProfile(t *testing.T) {
	availability := &fakeAvailabilitySrv{}
	h := NewInterpreterHandler(&fakeInterpreterSrv{}, availability)

	c, rec := newTestContext(http.MethodPatch, "/interpreters/me/availability", `{"availability_status":"unavailable"}`, interpreterClaims)
	h.SetMyAvailability(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "int-for-login-1", availability.interpreterID)
	assert.Equal(t, models.AvailabilityUnavailable, availability.target)
}

func TestInterpreterHandlerSetAvailabilityWhileBusy(t *testing.T) {
	availability := &fakeAvailabilitySrv{err: appErrors.Clone(appErrors.ErrInvalidTransition, "interpreter is busy")}
	h := NewInterpreterHandler(&fakeInterpreterSrv{}, availability)

	c, rec := newTestContext(http.MethodPatch, "/interpreters/int-7/availability", `{"availability_status":"available"}`, staffClaims)
	c.Params = gin.Params{{Key: "id", Value: "int-7"}}
	h.SetAvailability(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "int-7", availability.interpreterID)

	c, rec = newTestContext(http.MethodPatch, "/interpreters/int-7/availability", `[]`, staffClaims)
	h.SetAvailability(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInterpreterHandlerCreateAndList(t *testing.T) {
	srv := &fakeInterpreterSrv{}
	h := NewInterpreterHandler(srv, &fakeAvailabilitySrv{})

	c, rec := newTestContext(http.MethodPost, "/interpreters", `{"username":"ana","password":"secret1","name":"Ana","language":"Somali"}`, staffClaims)
	h.Create(c)
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/interpreters", `{"username":"taken","password":"secret1","name":"Ana","language":"Somali"}`, staffClaims)
	h.Create(c)
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/interpreters?language=Somali&available_only=true", "", staffClaims)
	h.List(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Somali", srv.query.Language)
	assert.True(t, srv.query.AvailableOnly)
}

func TestInterpreterHandlerUpdateMe(t *testing.T) {
	srv := &fakeInterpreterSrv{}
	h := NewInterpreterHandler(srv, &fakeAvailabilitySrv{})

	c, rec := newTestContext(http.MethodPatch, "/interpreters/me", `{"phone_number":"555-0101"}`, interpreterClaims)
	h.UpdateMe(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	if assert.NotNil(t, srv.contact.PhoneNumber) {
		assert.Equal(t, "555-0101", *srv.contact.PhoneNumber)
	}
	assert.Nil(t, srv.contact.Email)

	c, rec = newTestContext(http.MethodPatch, "/interpreters/me", `{}`, nil)
	h.UpdateMe(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
