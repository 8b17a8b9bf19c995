package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoute(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/loans/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for _, id := range []string{"1", "2", "3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/"+id, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	count := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/v1/loans/:id", "200"))
	assert.Equal(t, float64(3), count)
}

func TestMiddleware_RecordsErrorStatus(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "no")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/boom", "418")))
}

func TestDomainCounters(t *testing.T) {
	m := New()

	m.LoanApplicationSubmitted("personal")
	m.LoanApplicationSubmitted("personal")
	m.LoanApproved()
	m.LoanRejected()
	m.LoanRejected()
	m.PaymentRecorded(100.5)
	m.PaymentRecorded(50)
	m.EntriesMissed(3)
	m.EntriesMissed(0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.loanApplications.WithLabelValues("personal")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.loanDecisions.WithLabelValues("approved")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.loanDecisions.WithLabelValues("rejected")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.payments))
	assert.InDelta(t, 150.5, testutil.ToFloat64(m.paymentAmount), 1e-9)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.missedEntries))
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.LoanApproved()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `loanledger_loans_decisions_total{decision="approved"} 1`))
}
