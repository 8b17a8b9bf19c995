package amortization

import (
	"github.com/shopspring/decimal"
)

// settledTolerance is half a cent: a simulated balance below it is retired
const settledTolerance = 0.005

// PrepaymentRequest describes an out-of-schedule payment against a loan that
// still has RemainingMonths installments of CurrentInstallment to go.
type PrepaymentRequest struct {
	RemainingBalance   decimal.Decimal
	PrepaymentAmount   decimal.Decimal
	CurrentInstallment decimal.Decimal
	RemainingMonths    int
	AnnualRatePercent  decimal.Decimal
}

// Projection is the what-if outcome of a prepayment. It is never persisted.
//
// MonthsSaved and InterestSaved assume the borrower keeps paying the current
// installment; NewMonthlyPayment is the re-amortized installment for the new
// balance over the shortened term. NewMonthlyPayment is zero on full payoff.
type Projection struct {
	NewBalance        decimal.Decimal
	MonthsSaved       int
	InterestSaved     decimal.Decimal
	NewMonthlyPayment decimal.Decimal
}

// Validate checks the request inputs
func (p PrepaymentRequest) Validate() error {
	if p.RemainingBalance.LessThanOrEqual(decimal.Zero) {
		return ErrRemainingBalanceInvalid
	}
	if p.PrepaymentAmount.LessThanOrEqual(decimal.Zero) {
		return ErrPrepaymentAmountInvalid
	}
	if p.CurrentInstallment.LessThanOrEqual(decimal.Zero) {
		return ErrInstallmentInvalid
	}
	if p.RemainingMonths < 1 || p.RemainingMonths > MaxTermMonths {
		return ErrTermInvalid
	}
	if !rateInRange(p.AnnualRatePercent) {
		return ErrRateInvalid
	}

	r := monthlyRate(p.AnnualRatePercent.InexactFloat64())
	if !computable(p.RemainingBalance.InexactFloat64(), r, p.RemainingMonths) ||
		!finite(p.PrepaymentAmount.InexactFloat64()) || !finite(p.CurrentInstallment.InexactFloat64()) {
		return ErrAmountOutOfRange
	}
	return nil
}

// ProjectPrepayment computes how a prepayment shortens the loan and how much
// interest it avoids. The request is validated first. A prepayment that
// retires the balance is a full payoff whatever the installment; otherwise an
// installment that does not exceed the interest on the remaining balance is
// rejected with ErrNonAmortizingPayment instead of yielding a negative saving.
func ProjectPrepayment(req PrepaymentRequest) (*Projection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	balance := req.RemainingBalance.InexactFloat64()
	payment := req.CurrentInstallment.InexactFloat64()
	r := monthlyRate(req.AnnualRatePercent.InexactFloat64())
	oldInterest := totalInterest(balance, r, req.RemainingMonths)

	newBalance := balance - req.PrepaymentAmount.InexactFloat64()
	if newBalance <= 0 {
		return &Projection{
			NewBalance:        decimal.Zero,
			MonthsSaved:       req.RemainingMonths,
			InterestSaved:     oldInterest,
			NewMonthlyPayment: decimal.Zero,
		}, nil
	}

	if payment <= balance*r {
		return nil, ErrNonAmortizingPayment
	}

	// Keep paying the same installment against the reduced balance
	newMonths := 0
	simulated := newBalance
	for simulated > settledTolerance && newMonths < req.RemainingMonths {
		simulated -= payment - simulated*r
		newMonths++
	}

	newInterest := totalInterest(newBalance, r, newMonths)

	return &Projection{
		NewBalance:        round2(newBalance),
		MonthsSaved:       req.RemainingMonths - newMonths,
		InterestSaved:     oldInterest.Sub(newInterest),
		NewMonthlyPayment: round2(installment(newBalance, r, newMonths)),
	}, nil
}
