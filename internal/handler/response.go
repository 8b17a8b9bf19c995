package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/amortization"
	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/middleware"
	"github.com/dafibh/loanledger/loanledger-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation    = "https://loanledger.app/errors/validation"
	ErrorTypeNotFound      = "https://loanledger.app/errors/not-found"
	ErrorTypeUnauthorized  = "https://loanledger.app/errors/unauthorized"
	ErrorTypeForbidden     = "https://loanledger.app/errors/forbidden"
	ErrorTypeConflict      = "https://loanledger.app/errors/conflict"
	ErrorTypeUnprocessable = "https://loanledger.app/errors/unprocessable"
	ErrorTypeUnavailable   = "https://loanledger.app/errors/unavailable"
	ErrorTypeInternal      = "https://loanledger.app/errors/internal"
)

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:     ErrorTypeValidation,
		Title:    "Validation Error",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errors,
	})
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return c.JSON(http.StatusNotFound, ProblemDetails{
		Type:     ErrorTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewUnauthorizedError creates an unauthorized error response
func NewUnauthorizedError(c echo.Context, detail string) error {
	return c.JSON(http.StatusUnauthorized, ProblemDetails{
		Type:     ErrorTypeUnauthorized,
		Title:    "Unauthorized",
		Status:   http.StatusUnauthorized,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewForbiddenError creates a forbidden error response
func NewForbiddenError(c echo.Context, detail string) error {
	return c.JSON(http.StatusForbidden, ProblemDetails{
		Type:     ErrorTypeForbidden,
		Title:    "Forbidden",
		Status:   http.StatusForbidden,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail string) error {
	return c.JSON(http.StatusConflict, ProblemDetails{
		Type:     ErrorTypeConflict,
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return c.JSON(http.StatusInternalServerError, ProblemDetails{
		Type:     ErrorTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewUnprocessableError creates an unprocessable entity error response
func NewUnprocessableError(c echo.Context, detail string) error {
	return c.JSON(http.StatusUnprocessableEntity, ProblemDetails{
		Type:     ErrorTypeUnprocessable,
		Title:    "Unprocessable Entity",
		Status:   http.StatusUnprocessableEntity,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewServiceUnavailableError creates a service unavailable error response
func NewServiceUnavailableError(c echo.Context, detail string) error {
	return c.JSON(http.StatusServiceUnavailable, ProblemDetails{
		Type:     ErrorTypeUnavailable,
		Title:    "Service Unavailable",
		Status:   http.StatusServiceUnavailable,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// fieldError is a single-field validation error response
func fieldError(c echo.Context, field string, err error) error {
	return NewValidationError(c, "Validation failed", []ValidationError{
		{Field: field, Message: err.Error()},
	})
}

// validationFields maps domain validation errors to the request field they concern
var validationFields = map[error]string{
	domain.ErrUsernameInvalid:               "username",
	domain.ErrEmailInvalid:                  "email",
	domain.ErrFullNameInvalid:               "fullName",
	domain.ErrPhoneTooLong:                  "phone",
	domain.ErrPasswordInvalid:               "password",
	domain.ErrRoleInvalid:                   "role",
	domain.ErrLoanTypeInvalid:               "loanType",
	domain.ErrLoanAmountInvalid:             "amount",
	domain.ErrLoanTermInvalid:               "termMonths",
	domain.ErrLoanTermTooLong:               "termMonths",
	domain.ErrLoanPurposeTooLong:            "purpose",
	domain.ErrLoanStatusInvalid:             "status",
	domain.ErrReviewCommentsTooLong:         "reviewComments",
	domain.ErrPaymentAmountInvalid:          "amount",
	domain.ErrPaymentExceedsDue:             "amount",
	domain.ErrPaymentReferenceRequired:      "transactionReference",
	domain.ErrPaymentReferenceTooLong:       "transactionReference",
	domain.ErrPaymentMethodTooLong:          "paymentMethod",
	domain.ErrPaymentNotesTooLong:           "notes",
	domain.ErrDocumentKindInvalid:           "kind",
	service.ErrCreditScoreInvalid:           "creditScore",
	amortization.ErrPrincipalInvalid:        "principal",
	amortization.ErrTermInvalid:             "termMonths",
	amortization.ErrRateInvalid:             "annualRate",
	amortization.ErrRemainingBalanceInvalid: "remainingBalance",
	amortization.ErrPrepaymentAmountInvalid: "prepaymentAmount",
	amortization.ErrInstallmentInvalid:      "currentInstallment",
	amortization.ErrAmountOutOfRange:        "amount",
}

// writeServiceError maps a service error to its problem response. Unknown
// errors are logged and reported as internal errors with fallback as detail.
func writeServiceError(c echo.Context, err error, fallback string) error {
	for target, field := range validationFields {
		if errors.Is(err, target) {
			return fieldError(c, field, target)
		}
	}

	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrScheduleNotFound),
		errors.Is(err, domain.ErrScheduleEntryNotFound),
		errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, domain.ErrNotFound):
		return NewNotFoundError(c, err.Error())
	case errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrPaymentReferenceTaken),
		errors.Is(err, domain.ErrScheduleAlreadyCreated),
		errors.Is(err, domain.ErrAlreadyExists):
		return NewConflictError(c, err.Error())
	case errors.Is(err, domain.ErrLoanNotReviewable),
		errors.Is(err, domain.ErrLoanTransitionInvalid),
		errors.Is(err, domain.ErrLoanNotActive),
		errors.Is(err, domain.ErrEntryAlreadySettled),
		errors.Is(err, amortization.ErrNonAmortizingPayment):
		return NewUnprocessableError(c, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		return NewUnauthorizedError(c, err.Error())
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrUserInactive),
		errors.Is(err, domain.ErrRoleChangeForbidden),
		errors.Is(err, domain.ErrCannotDeleteSelf):
		return NewForbiddenError(c, err.Error())
	case errors.Is(err, domain.ErrPasswordMismatch):
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "currentPassword", Message: err.Error()},
		})
	case errors.Is(err, domain.ErrStorageDisabled):
		return NewServiceUnavailableError(c, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return NewValidationError(c, err.Error(), nil)
	}

	log.Error().Err(err).Str("path", c.Request().URL.Path).Msg(fallback)
	return NewInternalError(c, fallback)
}

// pageFromQuery reads skip and limit query parameters
func pageFromQuery(c echo.Context) (domain.Page, error) {
	skip, limit := domain.DefaultPageSkip, domain.DefaultPageLimit
	if v := c.QueryParam("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return domain.Page{}, fieldError(c, "skip", errors.New("must be a non-negative integer"))
		}
		skip = n
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return domain.Page{}, fieldError(c, "limit", errors.New("must be a positive integer"))
		}
		limit = n
	}
	return domain.NewPage(skip, limit), nil
}

// int32Param parses a positive int32 path parameter
func int32Param(c echo.Context, name string) (int32, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}

// parseDecimal parses a decimal request field, reporting it as a validation error
func parseDecimal(c echo.Context, field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fieldError(c, field, errors.New("must be a valid decimal number"))
	}
	return d, nil
}

// actorFrom builds the service actor from the authenticated request
func actorFrom(c echo.Context) service.Actor {
	return service.Actor{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

// formatDate formats a calendar date
func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
