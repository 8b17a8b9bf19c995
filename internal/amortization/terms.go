package amortization

import (
	"math"

	"github.com/shopspring/decimal"
)

// currencyPlaces is the precision of every value leaving the engine
const currencyPlaces = 2

// Input bounds. MaxTermMonths matches the longest loan the service books.
const (
	MaxTermMonths        = 480
	MaxAnnualRatePercent = 100
)

var maxAnnualRate = decimal.NewFromInt(MaxAnnualRatePercent)

// Terms are the fixed inputs of an amortizing loan. AnnualRatePercent is a
// percentage (8.5 means 8.5% per year).
type Terms struct {
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	TermMonths        int
}

// Validate checks the terms before any computation
func (t Terms) Validate() error {
	if t.Principal.LessThanOrEqual(decimal.Zero) {
		return ErrPrincipalInvalid
	}
	if t.TermMonths < 1 || t.TermMonths > MaxTermMonths {
		return ErrTermInvalid
	}
	if !rateInRange(t.AnnualRatePercent) {
		return ErrRateInvalid
	}
	if !computable(t.Principal.InexactFloat64(), monthlyRate(t.AnnualRatePercent.InexactFloat64()), t.TermMonths) {
		return ErrAmountOutOfRange
	}
	return nil
}

func rateInRange(annualRatePercent decimal.Decimal) bool {
	return !annualRatePercent.IsNegative() && annualRatePercent.LessThanOrEqual(maxAnnualRate)
}

// computable reports whether the installment and the total paid over n
// months stay finite in float64
func computable(principal, r float64, n int) bool {
	return finite(principal) && finite(installment(principal, r, n)*float64(n))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// monthlyRate converts an annual percentage into a monthly decimal fraction
func monthlyRate(annualRatePercent float64) float64 {
	return annualRatePercent / 12 / 100
}

// round2 is the single place where engine values are rounded to currency precision
func round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(currencyPlaces)
}
