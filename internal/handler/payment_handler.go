package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// PaymentHandler handles repayment schedule and payment HTTP requests
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// MakePaymentRequest represents the make payment request body
type MakePaymentRequest struct {
	Amount               string  `json:"amount"`
	PaymentMethod        *string `json:"paymentMethod,omitempty"`
	TransactionReference string  `json:"transactionReference"`
	Notes                *string `json:"notes,omitempty"`
	PaymentDate          *string `json:"paymentDate,omitempty"` // RFC 3339 or YYYY-MM-DD, officers only
}

// ScheduleEntryResponse represents one installment in API responses
type ScheduleEntryResponse struct {
	ID                    int32   `json:"id"`
	LoanID                int32   `json:"loanId"`
	InstallmentNumber     int32   `json:"installmentNumber"`
	DueDate               string  `json:"dueDate"`
	AmountDue             string  `json:"amountDue"`
	PrincipalComponent    string  `json:"principalComponent"`
	InterestComponent     string  `json:"interestComponent"`
	RemainingBalanceAfter string  `json:"remainingBalanceAfter"`
	Status                string  `json:"status"`
	AmountPaid            string  `json:"amountPaid"`
	PaymentDate           *string `json:"paymentDate,omitempty"`
}

// PaymentResponse represents a ledger row in API responses
type PaymentResponse struct {
	ID                   int32   `json:"id"`
	LoanID               int32   `json:"loanId"`
	ScheduleID           int32   `json:"scheduleId"`
	Amount               string  `json:"amount"`
	PaymentDate          string  `json:"paymentDate"`
	PaymentMethod        *string `json:"paymentMethod,omitempty"`
	TransactionReference string  `json:"transactionReference"`
	Notes                *string `json:"notes,omitempty"`
	ProcessedByID        *string `json:"processedById,omitempty"`
	CreatedAt            string  `json:"createdAt"`
}

// PaymentReceiptResponse represents the outcome of a payment
type PaymentReceiptResponse struct {
	Payment      PaymentResponse       `json:"payment"`
	Installment  ScheduleEntryResponse `json:"installment"`
	RemainingDue string                `json:"remainingDue"`
	LoanPaidOff  bool                  `json:"loanPaidOff"`
}

// BalanceResponse represents the outstanding balance of a loan
type BalanceResponse struct {
	LoanID            int32   `json:"loanId"`
	TotalDue          string  `json:"totalDue"`
	TotalPaid         string  `json:"totalPaid"`
	Outstanding       string  `json:"outstanding"`
	PaidPercentage    string  `json:"paidPercentage"`
	InstallmentsTotal int     `json:"installmentsTotal"`
	InstallmentsPaid  int     `json:"installmentsPaid"`
	NextDueDate       *string `json:"nextDueDate,omitempty"`
}

func toScheduleEntryResponse(e *domain.RepaymentScheduleEntry) ScheduleEntryResponse {
	resp := ScheduleEntryResponse{
		ID:                    e.ID,
		LoanID:                e.LoanID,
		InstallmentNumber:     e.InstallmentNumber,
		DueDate:               formatDate(e.DueDate),
		AmountDue:             e.AmountDue.StringFixed(2),
		PrincipalComponent:    e.PrincipalComponent.StringFixed(2),
		InterestComponent:     e.InterestComponent.StringFixed(2),
		RemainingBalanceAfter: e.RemainingBalanceAfter.StringFixed(2),
		Status:                string(e.Status),
		AmountPaid:            e.AmountPaid.StringFixed(2),
	}
	if e.PaymentDate != nil {
		paid := e.PaymentDate.Format(time.RFC3339)
		resp.PaymentDate = &paid
	}
	return resp
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                   p.ID,
		LoanID:               p.LoanID,
		ScheduleID:           p.ScheduleID,
		Amount:               p.Amount.StringFixed(2),
		PaymentDate:          p.PaymentDate.Format(time.RFC3339),
		PaymentMethod:        p.PaymentMethod,
		TransactionReference: p.TransactionReference,
		Notes:                p.Notes,
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
	}
	if p.ProcessedByID != nil {
		processedBy := p.ProcessedByID.String()
		resp.ProcessedByID = &processedBy
	}
	return resp
}

// parsePaymentDate accepts a full timestamp or a calendar date
func parsePaymentDate(value string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func loanIDPathParam(c echo.Context) (int32, error) {
	id, ok := int32Param(c, "loanId")
	if !ok {
		return 0, NewValidationError(c, "Invalid loan ID", []ValidationError{
			{Field: "loanId", Message: "Must be a positive integer"},
		})
	}
	return id, nil
}

func scheduleIDParam(c echo.Context) (int32, error) {
	id, ok := int32Param(c, "scheduleId")
	if !ok {
		return 0, NewValidationError(c, "Invalid schedule ID", []ValidationError{
			{Field: "scheduleId", Message: "Must be a positive integer"},
		})
	}
	return id, nil
}

// GetSchedule handles GET /api/v1/payments/loan/:loanId/schedule
func (h *PaymentHandler) GetSchedule(c echo.Context) error {
	loanID, err := loanIDPathParam(c)
	if err != nil {
		return err
	}
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}

	entries, err := h.paymentService.GetSchedule(c.Request().Context(), actorFrom(c), loanID, page)
	if err != nil {
		return writeServiceError(c, err, "Failed to load repayment schedule")
	}

	response := make([]ScheduleEntryResponse, len(entries))
	for i, e := range entries {
		response[i] = toScheduleEntryResponse(e)
	}
	return c.JSON(http.StatusOK, response)
}

// GetScheduleEntry handles GET /api/v1/payments/schedule/:scheduleId
func (h *PaymentHandler) GetScheduleEntry(c echo.Context) error {
	scheduleID, err := scheduleIDParam(c)
	if err != nil {
		return err
	}

	entry, err := h.paymentService.GetEntry(c.Request().Context(), actorFrom(c), scheduleID)
	if err != nil {
		return writeServiceError(c, err, "Failed to load installment")
	}
	return c.JSON(http.StatusOK, toScheduleEntryResponse(entry))
}

// MakePayment handles POST /api/v1/payments/schedule/:scheduleId/pay
func (h *PaymentHandler) MakePayment(c echo.Context) error {
	scheduleID, err := scheduleIDParam(c)
	if err != nil {
		return err
	}

	var req MakePaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := parseDecimal(c, "amount", req.Amount)
	if err != nil {
		return err
	}

	input := service.MakePaymentInput{
		Amount:               amount,
		PaymentMethod:        req.PaymentMethod,
		TransactionReference: req.TransactionReference,
		Notes:                req.Notes,
	}
	if req.PaymentDate != nil && *req.PaymentDate != "" {
		paidAt, ok := parsePaymentDate(*req.PaymentDate)
		if !ok {
			return NewValidationError(c, "Invalid payment date", []ValidationError{
				{Field: "paymentDate", Message: "Must be RFC 3339 or YYYY-MM-DD"},
			})
		}
		input.PaymentDate = &paidAt
	}

	receipt, err := h.paymentService.MakePayment(c.Request().Context(), actorFrom(c), scheduleID, input)
	if err != nil {
		return writeServiceError(c, err, "Failed to record payment")
	}

	return c.JSON(http.StatusCreated, PaymentReceiptResponse{
		Payment:      toPaymentResponse(receipt.Payment),
		Installment:  toScheduleEntryResponse(receipt.Entry),
		RemainingDue: receipt.Remaining.StringFixed(2),
		LoanPaidOff:  receipt.LoanPaid,
	})
}

// GetHistory handles GET /api/v1/payments/loan/:loanId/history
func (h *PaymentHandler) GetHistory(c echo.Context) error {
	loanID, err := loanIDPathParam(c)
	if err != nil {
		return err
	}
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}

	payments, err := h.paymentService.GetHistory(c.Request().Context(), actorFrom(c), loanID, page)
	if err != nil {
		return writeServiceError(c, err, "Failed to load payment history")
	}

	response := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		response[i] = toPaymentResponse(p)
	}
	return c.JSON(http.StatusOK, response)
}

// GetBalance handles GET /api/v1/payments/loan/:loanId/balance
func (h *PaymentHandler) GetBalance(c echo.Context) error {
	loanID, err := loanIDPathParam(c)
	if err != nil {
		return err
	}

	balance, err := h.paymentService.GetBalance(c.Request().Context(), actorFrom(c), loanID)
	if err != nil {
		return writeServiceError(c, err, "Failed to load balance")
	}

	resp := BalanceResponse{
		LoanID:            balance.LoanID,
		TotalDue:          balance.TotalDue.StringFixed(2),
		TotalPaid:         balance.TotalPaid.StringFixed(2),
		Outstanding:       balance.Outstanding.StringFixed(2),
		PaidPercentage:    balance.PaidPercentage.StringFixed(2),
		InstallmentsTotal: balance.InstallmentsTotal,
		InstallmentsPaid:  balance.InstallmentsPaid,
	}
	if balance.NextDueDate != nil {
		next := formatDate(*balance.NextDueDate)
		resp.NextDueDate = &next
	}
	return c.JSON(http.StatusOK, resp)
}
