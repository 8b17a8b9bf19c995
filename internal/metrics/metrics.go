// Package metrics exposes Prometheus instrumentation for the HTTP API and
// the loan lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loanledger"

// Metrics holds the collectors registered for the service
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	loanApplications *prometheus.CounterVec
	loanDecisions    *prometheus.CounterVec
	payments         prometheus.Counter
	paymentAmount    prometheus.Counter
	missedEntries    prometheus.Counter
}

// New creates a Metrics instance backed by its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		loanApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loans",
			Name:      "applications_total",
			Help:      "Loan applications submitted by loan type.",
		}, []string{"loan_type"}),
		loanDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loans",
			Name:      "decisions_total",
			Help:      "Loan review decisions by outcome.",
		}, []string{"decision"}),
		payments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "recorded_total",
			Help:      "Repayments recorded against schedule entries.",
		}),
		paymentAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "amount_total",
			Help:      "Sum of recorded repayment amounts.",
		}),
		missedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "missed_entries_total",
			Help:      "Schedule entries marked missed by the overdue sweep.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.loanApplications,
		m.loanDecisions,
		m.payments,
		m.paymentAmount,
		m.missedEntries,
	)

	return m
}

// Handler returns the HTTP handler serving the registry in the exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. Routes are labelled by their
// registered path so ids do not explode cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			m.httpRequests.WithLabelValues(method, route, status).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// LoanApplicationSubmitted counts a new application
func (m *Metrics) LoanApplicationSubmitted(loanType string) {
	m.loanApplications.WithLabelValues(loanType).Inc()
}

// LoanApproved counts an approval
func (m *Metrics) LoanApproved() {
	m.loanDecisions.WithLabelValues("approved").Inc()
}

// LoanRejected counts a rejection
func (m *Metrics) LoanRejected() {
	m.loanDecisions.WithLabelValues("rejected").Inc()
}

// PaymentRecorded counts a repayment and adds its amount
func (m *Metrics) PaymentRecorded(amount float64) {
	m.payments.Inc()
	m.paymentAmount.Add(amount)
}

// EntriesMissed adds the number of entries marked missed in one sweep
func (m *Metrics) EntriesMissed(n int64) {
	if n > 0 {
		m.missedEntries.Add(float64(n))
	}
}

// Recorder is the set of domain counters services report to
type Recorder interface {
	LoanApplicationSubmitted(loanType string)
	LoanApproved()
	LoanRejected()
	PaymentRecorded(amount float64)
	EntriesMissed(n int64)
}

var _ Recorder = (*Metrics)(nil)

// NoopRecorder discards all observations
type NoopRecorder struct{}

func (NoopRecorder) LoanApplicationSubmitted(string) {}
func (NoopRecorder) LoanApproved()                   {}
func (NoopRecorder) LoanRejected()                   {}
func (NoopRecorder) PaymentRecorded(float64)         {}
func (NoopRecorder) EntriesMissed(int64)             {}
