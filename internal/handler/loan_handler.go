package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// LoanHandler handles loan application HTTP requests
type LoanHandler struct {
	loanService *service.LoanService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *service.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// CreateLoanRequest represents the create loan application request body
type CreateLoanRequest struct {
	ApplicantID *string `json:"applicantId,omitempty"` // Admins only
	LoanType    string  `json:"loanType"`
	Amount      string  `json:"amount"`
	TermMonths  int32   `json:"termMonths"`
	Purpose     *string `json:"purpose,omitempty"`
}

// UpdateLoanRequest represents the update loan application request body
type UpdateLoanRequest struct {
	Status         *string `json:"status,omitempty"`
	ReviewComments *string `json:"reviewComments,omitempty"`
}

// ReviewLoanRequest represents the approve/reject request body
type ReviewLoanRequest struct {
	Comments *string `json:"comments,omitempty"`
}

// PrepaymentProjectionRequest represents the loan prepayment projection request body
type PrepaymentProjectionRequest struct {
	PrepaymentAmount string `json:"prepaymentAmount"`
}

// LoanResponse represents a loan application in API responses
type LoanResponse struct {
	ID             int32   `json:"id"`
	ApplicantID    string  `json:"applicantId"`
	LoanType       string  `json:"loanType"`
	Amount         string  `json:"amount"`
	InterestRate   string  `json:"interestRate"`
	TermMonths     int32   `json:"termMonths"`
	Purpose        *string `json:"purpose,omitempty"`
	Status         string  `json:"status"`
	ReviewedByID   *string `json:"reviewedById,omitempty"`
	ReviewComments *string `json:"reviewComments,omitempty"`
	ReviewedAt     *string `json:"reviewedAt,omitempty"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

// PrepaymentProjectionResponse represents a prepayment projection for a loan
type PrepaymentProjectionResponse struct {
	LoanID             int32  `json:"loanId"`
	RemainingBalance   string `json:"remainingBalance"`
	RemainingMonths    int    `json:"remainingMonths"`
	CurrentInstallment string `json:"currentInstallment"`
	InterestRate       string `json:"interestRate"`
	PrepaymentAmount   string `json:"prepaymentAmount"`
	NewBalance         string `json:"newBalance"`
	MonthsSaved        int    `json:"monthsSaved"`
	InterestSaved      string `json:"interestSaved"`
	NewMonthlyPayment  string `json:"newMonthlyPayment"`
}

func toLoanResponse(l *domain.LoanApplication) LoanResponse {
	resp := LoanResponse{
		ID:             l.ID,
		ApplicantID:    l.ApplicantID.String(),
		LoanType:       string(l.LoanType),
		Amount:         l.Amount.StringFixed(2),
		InterestRate:   l.InterestRate.StringFixed(2),
		TermMonths:     l.TermMonths,
		Purpose:        l.Purpose,
		Status:         string(l.Status),
		ReviewComments: l.ReviewComments,
		CreatedAt:      l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      l.UpdatedAt.Format(time.RFC3339),
	}
	if l.ReviewedByID != nil {
		reviewer := l.ReviewedByID.String()
		resp.ReviewedByID = &reviewer
	}
	if l.ReviewedAt != nil {
		reviewedAt := l.ReviewedAt.Format(time.RFC3339)
		resp.ReviewedAt = &reviewedAt
	}
	return resp
}

func toLoanResponses(loans []*domain.LoanApplication) []LoanResponse {
	response := make([]LoanResponse, len(loans))
	for i, l := range loans {
		response[i] = toLoanResponse(l)
	}
	return response
}

func loanIDParam(c echo.Context) (int32, error) {
	id, ok := int32Param(c, "id")
	if !ok {
		return 0, NewValidationError(c, "Invalid loan ID", []ValidationError{
			{Field: "id", Message: "Must be a positive integer"},
		})
	}
	return id, nil
}

// CreateLoan handles POST /api/v1/loans
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := parseDecimal(c, "amount", req.Amount)
	if err != nil {
		return err
	}

	input := service.CreateLoanInput{
		LoanType:   domain.LoanType(req.LoanType),
		Amount:     amount,
		TermMonths: req.TermMonths,
		Purpose:    req.Purpose,
	}
	if req.ApplicantID != nil && *req.ApplicantID != "" {
		applicantID, err := uuid.Parse(*req.ApplicantID)
		if err != nil {
			return NewValidationError(c, "Invalid applicant ID", []ValidationError{
				{Field: "applicantId", Message: "Must be a valid UUID"},
			})
		}
		input.ApplicantID = &applicantID
	}

	loan, err := h.loanService.Create(c.Request().Context(), actorFrom(c), input)
	if err != nil {
		return writeServiceError(c, err, "Failed to create loan application")
	}
	return c.JSON(http.StatusCreated, toLoanResponse(loan))
}

// GetLoans handles GET /api/v1/loans
func (h *LoanHandler) GetLoans(c echo.Context) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}

	loans, err := h.loanService.List(c.Request().Context(), actorFrom(c), page)
	if err != nil {
		return writeServiceError(c, err, "Failed to list loan applications")
	}
	return c.JSON(http.StatusOK, toLoanResponses(loans))
}

// GetLoansByUser handles GET /api/v1/loans/user/:userId
func (h *LoanHandler) GetLoansByUser(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return NewValidationError(c, "Invalid user ID", []ValidationError{
			{Field: "userId", Message: "Must be a valid UUID"},
		})
	}
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}

	loans, err := h.loanService.ListByApplicant(c.Request().Context(), actorFrom(c), userID, page)
	if err != nil {
		return writeServiceError(c, err, "Failed to list loan applications")
	}
	return c.JSON(http.StatusOK, toLoanResponses(loans))
}

// GetLoan handles GET /api/v1/loans/:id
func (h *LoanHandler) GetLoan(c echo.Context) error {
	id, err := loanIDParam(c)
	if err != nil {
		return err
	}

	loan, err := h.loanService.Get(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return writeServiceError(c, err, "Failed to load loan application")
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// UpdateLoan handles PUT /api/v1/loans/:id
func (h *LoanHandler) UpdateLoan(c echo.Context) error {
	id, err := loanIDParam(c)
	if err != nil {
		return err
	}

	var req UpdateLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	update := domain.LoanApplicationUpdate{ReviewComments: req.ReviewComments}
	if req.Status != nil {
		status := domain.LoanStatus(*req.Status)
		update.Status = &status
	}

	loan, err := h.loanService.Update(c.Request().Context(), actorFrom(c), id, update)
	if err != nil {
		return writeServiceError(c, err, "Failed to update loan application")
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// ApproveLoan handles POST /api/v1/loans/:id/approve
func (h *LoanHandler) ApproveLoan(c echo.Context) error {
	id, err := loanIDParam(c)
	if err != nil {
		return err
	}

	var req ReviewLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	loan, err := h.loanService.Approve(c.Request().Context(), actorFrom(c), id, req.Comments)
	if err != nil {
		return writeServiceError(c, err, "Failed to approve loan application")
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// RejectLoan handles POST /api/v1/loans/:id/reject
func (h *LoanHandler) RejectLoan(c echo.Context) error {
	id, err := loanIDParam(c)
	if err != nil {
		return err
	}

	var req ReviewLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	loan, err := h.loanService.Reject(c.Request().Context(), actorFrom(c), id, req.Comments)
	if err != nil {
		return writeServiceError(c, err, "Failed to reject loan application")
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// ProjectPrepayment handles POST /api/v1/loans/:id/prepayment-projection
func (h *LoanHandler) ProjectPrepayment(c echo.Context) error {
	id, err := loanIDParam(c)
	if err != nil {
		return err
	}

	var req PrepaymentProjectionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	amount, err := parseDecimal(c, "prepaymentAmount", req.PrepaymentAmount)
	if err != nil {
		return err
	}

	quote, err := h.loanService.ProjectPrepayment(c.Request().Context(), actorFrom(c), id, amount)
	if err != nil {
		return writeServiceError(c, err, "Failed to project prepayment")
	}

	p := quote.Projection
	return c.JSON(http.StatusOK, PrepaymentProjectionResponse{
		LoanID:             quote.LoanID,
		RemainingBalance:   quote.RemainingBalance.StringFixed(2),
		RemainingMonths:    quote.RemainingMonths,
		CurrentInstallment: quote.CurrentInstallment.StringFixed(2),
		InterestRate:       quote.AnnualRatePercent.StringFixed(2),
		PrepaymentAmount:   quote.PrepaymentAmount.StringFixed(2),
		NewBalance:         p.NewBalance.StringFixed(2),
		MonthsSaved:        p.MonthsSaved,
		InterestSaved:      p.InterestSaved.StringFixed(2),
		NewMonthlyPayment:  p.NewMonthlyPayment.StringFixed(2),
	})
}
