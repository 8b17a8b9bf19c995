package amortization

import "errors"

// Input validation errors. Callers are expected to check Terms.Validate and
// PrepaymentRequest.Validate before computing; the calculators themselves
// assume validated input.
var (
	ErrPrincipalInvalid        = errors.New("principal must be positive")
	ErrTermInvalid             = errors.New("term must be between 1 and 480 months")
	ErrRateInvalid             = errors.New("annual interest rate must be between 0 and 100 percent")
	ErrRemainingBalanceInvalid = errors.New("remaining balance must be positive")
	ErrPrepaymentAmountInvalid = errors.New("prepayment amount must be positive")
	ErrInstallmentInvalid      = errors.New("current installment must be positive")
	ErrAmountOutOfRange        = errors.New("amounts are too large to compute")
)

// ErrNonAmortizingPayment is returned when an installment does not cover the
// interest accruing on the balance, so the balance would never be retired.
var ErrNonAmortizingPayment = errors.New("installment does not exceed the interest-only payment")

// IsValidationError reports whether err is one of the input validation errors
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrPrincipalInvalid),
		errors.Is(err, ErrTermInvalid),
		errors.Is(err, ErrRateInvalid),
		errors.Is(err, ErrRemainingBalanceInvalid),
		errors.Is(err, ErrPrepaymentAmountInvalid),
		errors.Is(err, ErrInstallmentInvalid),
		errors.Is(err, ErrAmountOutOfRange):
		return true
	}
	return false
}
