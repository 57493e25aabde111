package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/interpreter-booking-api/internal/dto"
	"github.com/noah-isme/interpreter-booking-api/internal/middleware"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
)

type responseEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func newTestContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

var interpreterClaims = &models.JWTClaims{UserID: "login-1", Role: models.RoleInterpreter, Username: "ana"}

type fakeRequestSrv struct {
	interpreter *models.Interpreter
	resolveErr  error
	pending     []models.InterpreterRequest
	lastLang    string
	acceptErr   error
	accepted    struct{ requestID, interpreterID string }
	completed   struct{ requestID, interpreterID, notes string }
	created     dto.CreateRequestPayload
	listQuery   dto.RequestListQuery
	cancelActor models.Actor
}

func (f *fakeRequestSrv) Create(_ context.Context, _ models.Actor, payload dto.CreateRequestPayload) (*models.InterpreterRequest, error) {
	f.created = payload
	return &models.InterpreterRequest{ID: "req-1", Language: payload.Language, Status: models.RequestStatusPending}, nil
}

func (f *fakeRequestSrv) Get(_ context.Context, id string) (*models.InterpreterRequestDetail, error) {
	if id != "req-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	return &models.InterpreterRequestDetail{InterpreterRequest: models.InterpreterRequest{ID: id, Status: models.RequestStatusAccepted}}, nil
}

func (f *fakeRequestSrv) List(_ context.Context, query dto.RequestListQuery) ([]models.InterpreterRequest, *models.Pagination, error) {
	f.listQuery = query
	return []models.InterpreterRequest{{ID: "req-1"}}, &models.Pagination{Offset: query.Offset, Limit: query.Limit, TotalCount: 1}, nil
}

func (f *fakeRequestSrv) ListPending(_ context.Context, language string) ([]models.InterpreterRequest, error) {
	f.lastLang = language
	return f.pending, nil
}

func (f *fakeRequestSrv) ListAssigned(_ context.Context, interpreterID string) ([]models.InterpreterRequest, error) {
	return []models.InterpreterRequest{{ID: "req-9", InterpreterID: &interpreterID}}, nil
}

func (f *fakeRequestSrv) ResolveInterpreter(context.Context, string) (*models.Interpreter, error) {
	return f.interpreter, f.resolveErr
}

func (f *fakeRequestSrv) Accept(_ context.Context, _ models.Actor, requestID, interpreterID string) (*models.InterpreterRequest, error) {
	f.accepted.requestID, f.accepted.interpreterID = requestID, interpreterID
	if f.acceptErr != nil {
		return nil, f.acceptErr
	}
	return &models.InterpreterRequest{ID: requestID, InterpreterID: &interpreterID, Status: models.RequestStatusAccepted}, nil
}

func (f *fakeRequestSrv) Complete(_ context.Context, _ models.Actor, requestID, interpreterID, notes string) (*models.InterpreterRequest, error) {
	f.completed.requestID, f.completed.interpreterID, f.completed.notes = requestID, interpreterID, notes
	return &models.InterpreterRequest{ID: requestID, Status: models.RequestStatusCompleted}, nil
}

func (f *fakeRequestSrv) Cancel(_ context.Context, actor models.Actor, requestID string) (*models.InterpreterRequest, error) {
	f.cancelActor = actor
	return &models.InterpreterRequest{ID: requestID, Status: models.RequestStatusCancelled}, nil
}

func TestRequestHandlerPendingDefaultsToProfileLanguage(t *testing.T) {
	srv := &fakeRequestSrv{
		interpreter: &models.Interpreter{ID: "int-1", Language: "Somali"},
		pending:     []models.InterpreterRequest{{ID: "req-1", Language: "Somali", IsStat: true}},
	}
	h := NewRequestHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/interpreter/requests/pending", "", interpreterClaims)
	h.Pending(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Somali", srv.lastLang)

	var items []models.InterpreterRequest
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &items))
	require.Len(t, items, 1)
	assert.True(t, items[0].IsStat)

	c, _ = newTestContext(http.MethodGet, "/interpreter/requests/pending?language=Arabic", "", interpreterClaims)
	h.Pending(c)
	assert.Equal(t, "Arabic", srv.lastLang)
}

func TestRequestHandlerPendingWithoutProfile(t *testing.T) {
	h := NewRequestHandler(&fakeRequestSrv{resolveErr: appErrors.Clone(appErrors.ErrNotFound, "interpreter profile not found")})

	c, rec := newTestContext(http.MethodGet, "/interpreter/requests/pending", "", interpreterClaims)
	h.Pending(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/interpreter/requests/pending", "", nil)
	h.Pending(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestHandlerAcceptUsesCallerProfile(t *testing.T) {
	srv := &fakeRequestSrv{interpreter: &models.Interpreter{ID: "int-1"}}
	h := NewRequestHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/interpreter/requests/req-1/accept", "", interpreterClaims)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	h.Accept(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", srv.accepted.requestID)
	assert.Equal(t, "int-1", srv.accepted.interpreterID)
}

func TestRequestHandlerAcceptLostRace(t *testing.T) {
	srv := &fakeRequestSrv{interpreter: &models.Interpreter{ID: "int-2"}, acceptErr: appErrors.ErrAlreadyClaimed}
	h := NewRequestHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/interpreter/requests/req-1/accept", "", interpreterClaims)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	h.Accept(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "ALREADY_CLAIMED", envelope.Error.Code)
}

func TestRequestHandlerComplete(t *testing.T) {
	srv := &fakeRequestSrv{interpreter: &models.Interpreter{ID: "int-1"}}
	h := NewRequestHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/interpreter/requests/req-1/complete", `{"encounter_notes":"went well"}`, interpreterClaims)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	h.Complete(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "went well", srv.completed.notes)
	assert.Equal(t, "int-1", srv.completed.interpreterID)

	c, rec = newTestContext(http.MethodPost, "/interpreter/requests/req-1/complete", `{"encounter_notes":`, interpreterClaims)
	h.Complete(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestHandlerCreateAndList(t *testing.T) {
	srv := &fakeRequestSrv{}
	h := NewRequestHandler(srv)
	staff := &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff}

	body := `{"patient_id":"p-1","language":"Somali","delivery_method":"onsite","location_method":"Ward 3","duration_minutes":30,"is_stat":true}`
	c, rec := newTestContext(http.MethodPost, "/requests", body, staff)
	h.Create(c)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, srv.created.IsStat)
	assert.Equal(t, 30, srv.created.DurationMinutes)

	c, rec = newTestContext(http.MethodGet, "/requests?status=pending&skip=10&limit=5", "", staff)
	h.List(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", srv.listQuery.Status)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 10, envelope.Pagination.Offset)
}

func TestRequestHandlerGetAndCancel(t *testing.T) {
	srv := &fakeRequestSrv{}
	h := NewRequestHandler(srv)
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	c, rec := newTestContext(http.MethodGet, "/requests/missing", "", admin)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/requests/req-1/cancel", "", admin)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Request.Header.Set("User-Agent", "ward-console")
	h.Cancel(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleAdmin, srv.cancelActor.Role)
	assert.Equal(t, "ward-console", srv.cancelActor.UserAgent)
}
