package amortization

import (
	"github.com/shopspring/decimal"
)

// TotalInterest is the closed-form interest paid over the life of the loan,
// installment * termMonths - principal, rounded to currency precision.
// It agrees with the sum of a generated schedule's interest up to rounding.
func TotalInterest(terms Terms) decimal.Decimal {
	return totalInterest(terms.Principal.InexactFloat64(), monthlyRate(terms.AnnualRatePercent.InexactFloat64()), terms.TermMonths)
}

func totalInterest(principal, r float64, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	return round2(installment(principal, r, termMonths)*float64(termMonths) - principal)
}
