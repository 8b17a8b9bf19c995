package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/websocket"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTokenValidator is a test double for token validation
type mockTokenValidator struct {
	userID uuid.UUID
	role   domain.Role
	err    error
}

func (m *mockTokenValidator) ValidateToken(ctx context.Context, token string) (uuid.UUID, domain.Role, error) {
	return m.userID, m.role, m.err
}

var testAllowedOrigins = []string{"http://localhost:3000", "https://loanledger.app"}

func serveWS(h *WebSocketHandler, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = h.HandleWS(c)
	return rec
}

func TestWebSocketHandler_HandleWS_MissingToken(t *testing.T) {
	h := NewWebSocketHandler(websocket.NewHub(), &mockTokenValidator{userID: uuid.New()}, testAllowedOrigins)

	rec := serveWS(h, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing access token")
}

func TestWebSocketHandler_HandleWS_InvalidToken(t *testing.T) {
	h := NewWebSocketHandler(websocket.NewHub(), &mockTokenValidator{err: errors.New("bad signature")}, testAllowedOrigins)

	rec := serveWS(h, httptest.NewRequest(http.MethodGet, "/ws?token=invalid-jwt", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not validate credentials")
}

func TestWebSocketHandler_HandleWS_ValidToken_NoUpgrade(t *testing.T) {
	h := NewWebSocketHandler(websocket.NewHub(), &mockTokenValidator{userID: uuid.New(), role: domain.RoleCustomer}, testAllowedOrigins)

	rec := serveWS(h, httptest.NewRequest(http.MethodGet, "/ws?token=valid-jwt", nil))

	// Authentication passed; the plain GET cannot be upgraded
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamToken(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"query parameter", "/ws?token=abc", "", "abc"},
		{"query wins over header", "/ws?token=abc", "Bearer def", "abc"},
		{"bearer header", "/ws", "Bearer def", "def"},
		{"lowercase scheme", "/ws", "bearer def", "def"},
		{"other scheme", "/ws", "Basic def", ""},
		{"none", "/ws", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, streamToken(c))
		})
	}
}

func TestWebSocketHandler_HandleWS_RegistersClient(t *testing.T) {
	hub := websocket.NewHub()
	userID := uuid.New()
	h := NewWebSocketHandler(hub, &mockTokenValidator{userID: userID, role: domain.RoleLoanOfficer}, testAllowedOrigins)

	e := echo.New()
	e.GET("/ws", h.HandleWS)
	server := httptest.NewServer(e)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=valid"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount(userID) == 1 }, time.Second, 5*time.Millisecond)

	hub.PublishToReviewers(websocket.LoanApplicationCreated(map[string]interface{}{"id": float64(5)}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "loan_application.created")
}

func TestWebSocketHandler_CheckOrigin(t *testing.T) {
	h := NewWebSocketHandler(websocket.NewHub(), &mockTokenValidator{}, testAllowedOrigins)

	tests := []struct {
		name     string
		origin   string
		expected bool
	}{
		{"allowed origin", "http://localhost:3000", true},
		{"allowed origin https", "https://loanledger.app", true},
		{"disallowed origin", "https://evil.com", false},
		{"empty origin", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.expected, h.checkOrigin(req))
		})
	}
}
