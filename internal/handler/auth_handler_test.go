package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/interpreter-booking-api/internal/dto"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
)

type fakeAuthSrv struct {
	login     models.LoginRequest
	createdBy string
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.login = req
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "token", TokenType: "Bearer"}, nil
}

func (f *fakeAuthSrv) Me(_ context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID, Role: models.RoleStaff}, nil
}

func (f *fakeAuthSrv) CreateUser(_ context.Context, actorID string, req dto.CreateUserPayload) (*models.UserInfo, error) {
	f.createdBy = actorID
	return &models.UserInfo{ID: "u-2", Username: req.Username, Role: req.Role}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	srv := &fakeAuthSrv{}
	h := NewAuthHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/auth/login", `{"username":"ana","password":"secret"}`, nil)
	c.Request.Header.Set("User-Agent", "tablet")
	h.Login(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tablet", srv.login.UserAgent)

	c, rec = newTestContext(http.MethodPost, "/auth/login", `{"username":"ana","password":"nope"}`, nil)
	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerMeAndCreateUser(t *testing.T) {
	srv := &fakeAuthSrv{}
	h := NewAuthHandler(srv)
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	c, rec := newTestContext(http.MethodGet, "/auth/me", "", nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/auth/me", "", admin)
	h.Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/users", `{"username":"desk","password":"secret1","role":"STAFF"}`, admin)
	h.CreateUser(c)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "admin-1", srv.createdBy)
}
