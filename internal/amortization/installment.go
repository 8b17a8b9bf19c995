package amortization

import (
	"math"

	"github.com/shopspring/decimal"
)

// Installment computes the fixed monthly payment (EMI) that retires principal
// over termMonths at the given annual rate:
//
//	r = annualRatePercent / 12 / 100
//	installment = P * r * (1+r)^n / ((1+r)^n - 1)
//
// A zero rate is an even split of the principal. The result is NOT rounded;
// rounding to currency precision is the caller's job at presentation time.
func Installment(principal, annualRatePercent decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	if annualRatePercent.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(termMonths)))
	}
	r := monthlyRate(annualRatePercent.InexactFloat64())
	return decimal.NewFromFloat(installment(principal.InexactFloat64(), r, termMonths))
}

// installment is the float recurrence form used inside the engine
func installment(principal, r float64, termMonths int) float64 {
	if termMonths <= 0 {
		return 0
	}
	if r == 0 {
		return principal / float64(termMonths)
	}
	factor := math.Pow(1+r, float64(termMonths))
	return principal * r * factor / (factor - 1)
}
