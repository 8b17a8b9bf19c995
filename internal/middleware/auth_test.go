package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dafibh/loanledger/loanledger-backend/internal/auth"
	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
)

const (
	testSecret   = "middleware-test-secret"
	testIssuer   = "loanledger-test"
	testAudience = "loanledger-api"
)

type stubUserProvider struct {
	roles map[uuid.UUID]domain.Role
	err   error
}

func (s *stubUserProvider) GetActiveRole(ctx context.Context, userID uuid.UUID) (domain.Role, error) {
	if s.err != nil {
		return "", s.err
	}
	role, ok := s.roles[userID]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return role, nil
}

func issueToken(t *testing.T, user *domain.User) string {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   testSecret,
		Issuer:   testIssuer,
		Audience: testAudience,
		Expiry:   10 * time.Minute,
	})
	require.NoError(t, err)
	token, err := issuer.Issue(user)
	require.NoError(t, err)
	return token.AccessToken
}

func newTestAuthMiddleware(t *testing.T, provider UserProvider) *AuthMiddleware {
	t.Helper()
	m, err := NewAuthMiddleware(testSecret, testIssuer, testAudience, provider)
	require.NoError(t, err)
	return m
}

func runAuthenticated(m *AuthMiddleware, authHeader string) (*httptest.ResponseRecorder, echo.Context, bool) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	var seen echo.Context
	_ = m.Authenticate()(func(c echo.Context) error {
		called = true
		seen = c
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, seen, called
}

func TestAuthenticate_ValidToken(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "c@example.com", Role: domain.RoleCustomer}
	m := newTestAuthMiddleware(t, nil)

	rec, c, called := runAuthenticated(m, "Bearer "+issueToken(t, user))

	require.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, GetUserID(c))
	assert.Equal(t, domain.RoleCustomer, GetRole(c))
	require.NotNil(t, GetCustomClaims(c))
	assert.Equal(t, "c@example.com", GetCustomClaims(c).Email)
}

func TestAuthenticate_StoredRoleWins(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "o@example.com", Role: domain.RoleCustomer}
	provider := &stubUserProvider{roles: map[uuid.UUID]domain.Role{user.ID: domain.RoleLoanOfficer}}
	m := newTestAuthMiddleware(t, provider)

	_, c, called := runAuthenticated(m, "Bearer "+issueToken(t, user))

	require.True(t, called)
	assert.Equal(t, domain.RoleLoanOfficer, GetRole(c))
}

func TestAuthenticate_InactiveUser(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Role: domain.RoleCustomer}
	m := newTestAuthMiddleware(t, &stubUserProvider{err: domain.ErrUserInactive})

	rec, _, called := runAuthenticated(m, "Bearer "+issueToken(t, user))

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthenticate_Rejections(t *testing.T) {
	m := newTestAuthMiddleware(t, nil)

	tests := []struct {
		name   string
		header string
		detail string
	}{
		{"missing header", "", "Missing authorization header"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "Invalid authorization header format"},
		{"garbage token", "Bearer not-a-jwt", "Could not validate credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _, called := runAuthenticated(m, tt.header)
			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

			var body problemDetails
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.detail, body.Detail)
			assert.Equal(t, errorTypeUnauthorized, body.Type)
		})
	}
}

func TestAuthenticate_TokenFromOtherSecret(t *testing.T) {
	other, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: "not-the-secret", Issuer: testIssuer, Audience: testAudience, Expiry: time.Minute})
	require.NoError(t, err)
	token, err := other.Issue(&domain.User{ID: uuid.New(), Role: domain.RoleAdmin})
	require.NoError(t, err)

	rec, _, called := runAuthenticated(newTestAuthMiddleware(t, nil), "Bearer "+token.AccessToken)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateToken(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Role: domain.RoleAdmin}
	m := newTestAuthMiddleware(t, nil)

	userID, role, err := m.ValidateToken(context.Background(), issueToken(t, user))
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, domain.RoleAdmin, role)

	_, _, err = m.ValidateToken(context.Background(), "bogus")
	assert.Error(t, err)
}

func TestValidateToken_StoredRoleWins(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Role: domain.RoleAdmin}
	provider := &stubUserProvider{roles: map[uuid.UUID]domain.Role{user.ID: domain.RoleCustomer}}
	m := newTestAuthMiddleware(t, provider)

	_, role, err := m.ValidateToken(context.Background(), issueToken(t, user))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, role)

	provider.err = domain.ErrUserInactive
	_, _, err = m.ValidateToken(context.Background(), issueToken(t, user))
	assert.ErrorIs(t, err, domain.ErrUserInactive)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name     string
		role     domain.Role
		expected int
	}{
		{"officer allowed", domain.RoleLoanOfficer, http.StatusOK},
		{"admin allowed", domain.RoleAdmin, http.StatusOK},
		{"customer forbidden", domain.RoleCustomer, http.StatusForbidden},
		{"no role forbidden", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/1/approve", nil)
			if tt.role != "" {
				req = req.WithContext(context.WithValue(req.Context(), RoleKey, tt.role))
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequireRole(domain.RoleLoanOfficer, domain.RoleAdmin)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})(c)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestCustomClaims_Validate(t *testing.T) {
	assert.NoError(t, CustomClaims{Role: domain.RoleCustomer}.Validate(context.Background()))
	assert.ErrorIs(t, CustomClaims{Role: "root"}.Validate(context.Background()), domain.ErrRoleInvalid)
}

func TestGetUserID_Missing(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, uuid.Nil, GetUserID(c))
	assert.Equal(t, domain.Role(""), GetRole(c))
	assert.Nil(t, GetClaims(c))
}
