package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/amortization"
	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// CalculatorHandler serves loan calculations that touch no stored loan
type CalculatorHandler struct {
	calculator *service.CalculatorService
}

// NewCalculatorHandler creates a new CalculatorHandler
func NewCalculatorHandler(calculator *service.CalculatorService) *CalculatorHandler {
	return &CalculatorHandler{calculator: calculator}
}

// ScheduleQuoteRequest represents the schedule calculator request body
type ScheduleQuoteRequest struct {
	Principal  string  `json:"principal"`
	AnnualRate string  `json:"annualRate"`
	TermMonths int     `json:"termMonths"`
	StartDate  *string `json:"startDate,omitempty"` // YYYY-MM-DD, defaults to today
}

// PrepaymentQuoteRequest represents the prepayment calculator request body
type PrepaymentQuoteRequest struct {
	RemainingBalance   string `json:"remainingBalance"`
	PrepaymentAmount   string `json:"prepaymentAmount"`
	CurrentInstallment string `json:"currentInstallment"`
	RemainingMonths    int    `json:"remainingMonths"`
	AnnualRate         string `json:"annualRate"`
}

// QuoteEntryResponse represents one installment of a calculator schedule
type QuoteEntryResponse struct {
	InstallmentNumber     int    `json:"installmentNumber"`
	DueDate               string `json:"dueDate"`
	AmountDue             string `json:"amountDue"`
	PrincipalComponent    string `json:"principalComponent"`
	InterestComponent     string `json:"interestComponent"`
	RemainingBalanceAfter string `json:"remainingBalanceAfter"`
}

// ScheduleQuoteResponse represents a full amortization quote
type ScheduleQuoteResponse struct {
	Principal      string               `json:"principal"`
	AnnualRate     string               `json:"annualRate"`
	TermMonths     int                  `json:"termMonths"`
	StartDate      string               `json:"startDate"`
	MonthlyPayment string               `json:"monthlyPayment"`
	TotalInterest  string               `json:"totalInterest"`
	TotalPayment   string               `json:"totalPayment"`
	Schedule       []QuoteEntryResponse `json:"schedule"`
}

// PrepaymentQuoteResponse represents a prepayment projection
type PrepaymentQuoteResponse struct {
	NewBalance        string `json:"newBalance"`
	MonthsSaved       int    `json:"monthsSaved"`
	InterestSaved     string `json:"interestSaved"`
	NewMonthlyPayment string `json:"newMonthlyPayment"`
}

// RateQuoteResponse represents a policy rate quote
type RateQuoteResponse struct {
	AnnualRate string `json:"annualRate"`
	Basis      string `json:"basis"`
}

// QuoteSchedule handles POST /api/v1/calculator/schedule
func (h *CalculatorHandler) QuoteSchedule(c echo.Context) error {
	var req ScheduleQuoteRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	principal, err := parseDecimal(c, "principal", req.Principal)
	if err != nil {
		return err
	}
	rate, err := parseDecimal(c, "annualRate", req.AnnualRate)
	if err != nil {
		return err
	}

	var startDate time.Time
	if req.StartDate != nil && *req.StartDate != "" {
		startDate, err = time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			return NewValidationError(c, "Invalid start date", []ValidationError{
				{Field: "startDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
	}

	quote, err := h.calculator.Schedule(c.Request().Context(), amortization.Terms{
		Principal:         principal,
		AnnualRatePercent: rate,
		TermMonths:        req.TermMonths,
	}, startDate)
	if err != nil {
		return writeServiceError(c, err, "Failed to calculate schedule")
	}

	schedule := make([]QuoteEntryResponse, len(quote.Schedule))
	for i, e := range quote.Schedule {
		schedule[i] = QuoteEntryResponse{
			InstallmentNumber:     e.InstallmentNumber,
			DueDate:               formatDate(e.DueDate),
			AmountDue:             e.AmountDue.StringFixed(2),
			PrincipalComponent:    e.PrincipalComponent.StringFixed(2),
			InterestComponent:     e.InterestComponent.StringFixed(2),
			RemainingBalanceAfter: e.RemainingBalanceAfter.StringFixed(2),
		}
	}

	return c.JSON(http.StatusOK, ScheduleQuoteResponse{
		Principal:      quote.Principal.StringFixed(2),
		AnnualRate:     quote.AnnualRatePercent.String(),
		TermMonths:     quote.TermMonths,
		StartDate:      formatDate(quote.StartDate),
		MonthlyPayment: quote.MonthlyPayment.StringFixed(2),
		TotalInterest:  quote.TotalInterest.StringFixed(2),
		TotalPayment:   quote.TotalPayment.StringFixed(2),
		Schedule:       schedule,
	})
}

// QuotePrepayment handles POST /api/v1/calculator/prepayment
func (h *CalculatorHandler) QuotePrepayment(c echo.Context) error {
	var req PrepaymentQuoteRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	fields := []struct{ name, value string }{
		{"remainingBalance", req.RemainingBalance},
		{"prepaymentAmount", req.PrepaymentAmount},
		{"currentInstallment", req.CurrentInstallment},
		{"annualRate", req.AnnualRate},
	}
	values := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		v, err := parseDecimal(c, f.name, f.value)
		if err != nil {
			return err
		}
		values[i] = v
	}

	projection, err := h.calculator.Prepayment(amortization.PrepaymentRequest{
		RemainingBalance:   values[0],
		PrepaymentAmount:   values[1],
		CurrentInstallment: values[2],
		RemainingMonths:    req.RemainingMonths,
		AnnualRatePercent:  values[3],
	})
	if err != nil {
		return writeServiceError(c, err, "Failed to project prepayment")
	}

	return c.JSON(http.StatusOK, PrepaymentQuoteResponse{
		NewBalance:        projection.NewBalance.StringFixed(2),
		MonthsSaved:       projection.MonthsSaved,
		InterestSaved:     projection.InterestSaved.StringFixed(2),
		NewMonthlyPayment: projection.NewMonthlyPayment.StringFixed(2),
	})
}

// QuoteRate handles GET /api/v1/calculator/rate?loanType=&amount= or ?creditScore=
func (h *CalculatorHandler) QuoteRate(c echo.Context) error {
	var (
		loanType    *domain.LoanType
		amount      *decimal.Decimal
		creditScore *int
	)

	if v := c.QueryParam("creditScore"); v != "" {
		score, err := strconv.Atoi(v)
		if err != nil {
			return fieldError(c, "creditScore", errors.New("must be an integer"))
		}
		creditScore = &score
	}
	if v := c.QueryParam("loanType"); v != "" {
		lt := domain.LoanType(v)
		loanType = &lt
	}
	if v := c.QueryParam("amount"); v != "" {
		parsed, err := parseDecimal(c, "amount", v)
		if err != nil {
			return err
		}
		amount = &parsed
	}

	quote, err := h.calculator.Rate(loanType, amount, creditScore)
	if err != nil {
		if errors.Is(err, service.ErrRateQuoteInputMissing) {
			return NewValidationError(c, err.Error(), nil)
		}
		return writeServiceError(c, err, "Failed to quote rate")
	}

	return c.JSON(http.StatusOK, RateQuoteResponse{
		AnnualRate: quote.AnnualRatePercent.StringFixed(2),
		Basis:      quote.Basis,
	})
}
