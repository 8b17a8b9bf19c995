package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/auth"
	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/middleware"
	"github.com/dafibh/loanledger/loanledger-backend/internal/repository/storage"
	"github.com/dafibh/loanledger/loanledger-backend/internal/service"
	"github.com/dafibh/loanledger/loanledger-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "handler-test-secret"
	testIssuer   = "loanledger"
	testAudience = "loanledger-api"
)

// testServer is a fully routed Echo instance over in-memory repositories
type testServer struct {
	t         *testing.T
	e         *echo.Echo
	issuer    *auth.TokenIssuer
	users     *testutil.MockUserRepository
	loans     *testutil.MockLoanApplicationRepository
	schedules *testutil.MockRepaymentScheduleRepository
	payments  *testutil.MockPaymentRepository
	store     *testutil.MockObjectStore
	customer  *domain.User
	officer   *domain.User
	admin     *domain.User
}

// newTestServer wires the handlers the way main does. Document storage is
// disabled unless withStorage is set.
func newTestServer(t *testing.T, withStorage bool) *testServer {
	t.Helper()

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   testSecret,
		Issuer:   testIssuer,
		Audience: testAudience,
		Expiry:   30 * time.Minute,
	})
	require.NoError(t, err)

	users := testutil.NewMockUserRepository()
	schedules := testutil.NewMockRepaymentScheduleRepository()
	loans := testutil.NewMockLoanApplicationRepository(schedules)
	payments := testutil.NewMockPaymentRepository(schedules, loans)
	docs := testutil.NewMockLoanDocumentRepository()

	var store storage.ObjectStore
	mockStore := testutil.NewMockObjectStore()
	if withStorage {
		store = mockStore
	}

	authService := service.NewAuthService(users, issuer)
	authMiddleware, err := middleware.NewAuthMiddleware(testSecret, testIssuer, testAudience, authService)
	require.NoError(t, err)

	e := echo.New()
	RegisterRoutes(e, authMiddleware, nil, Handlers{
		Auth:       NewAuthHandler(authService),
		User:       NewUserHandler(service.NewUserService(users)),
		Loan:       NewLoanHandler(service.NewLoanService(loans, schedules, users, nil, nil)),
		Payment:    NewPaymentHandler(service.NewPaymentService(loans, schedules, payments, nil, nil)),
		Calculator: NewCalculatorHandler(service.NewCalculatorService(nil)),
		Document:   NewDocumentHandler(service.NewDocumentService(docs, loans, store, nil)),
	})

	s := &testServer{
		t:         t,
		e:         e,
		issuer:    issuer,
		users:     users,
		loans:     loans,
		schedules: schedules,
		payments:  payments,
		store:     mockStore,
	}
	s.customer = s.seedUser("customer", domain.RoleCustomer)
	s.officer = s.seedUser("officer", domain.RoleLoanOfficer)
	s.admin = s.seedUser("admin", domain.RoleAdmin)
	return s
}

func (s *testServer) seedUser(username string, role domain.Role) *domain.User {
	hash, err := auth.HashPassword("password-" + username)
	require.NoError(s.t, err)
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	s.users.AddUser(user)
	return user
}

func (s *testServer) token(user *domain.User) string {
	issued, err := s.issuer.Issue(user)
	require.NoError(s.t, err)
	return issued.AccessToken
}

// request performs a request as user (anonymous when nil). A non-string
// body is encoded as JSON.
func (s *testServer) request(method, path string, body interface{}, user *domain.User) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token(user))
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertProblem(t *testing.T, rec *httptest.ResponseRecorder, status int, field string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	problem := decode[ProblemDetails](t, rec)
	assert.Equal(t, status, problem.Status)
	if field != "" {
		require.NotEmpty(t, problem.Errors)
		assert.Equal(t, field, problem.Errors[0].Field)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.request(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t, false)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodGet, "/api/v1/users"},
		{http.MethodGet, "/api/v1/loans"},
		{http.MethodGet, "/api/v1/payments/loan/1/schedule"},
	}
	for _, p := range paths {
		rec := s.request(p.method, p.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, p.path)
	}
}

func TestProtectedRoutes_InactiveUser(t *testing.T) {
	s := newTestServer(t, false)
	s.customer.IsActive = false

	rec := s.request(http.MethodGet, "/api/v1/loans", nil, s.customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReviewerRoutes_RejectCustomers(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.request(http.MethodGet, "/api/v1/users", nil, s.customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.request(http.MethodPost, "/api/v1/loans/1/approve", `{}`, s.customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.request(http.MethodGet, "/api/v1/users", nil, s.officer)
	assert.Equal(t, http.StatusOK, rec.Code)
}
