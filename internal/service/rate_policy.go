package service

import (
	"errors"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrCreditScoreInvalid = errors.New("credit score must be between 300 and 850")

const (
	MinCreditScore = 300
	MaxCreditScore = 850
)

// defaultBaseRate applies to loan types without an entry in baseRates
var defaultBaseRate = decimal.NewFromFloat(7.0)

var baseRates = map[domain.LoanType]decimal.Decimal{
	domain.LoanTypePersonal:  decimal.NewFromFloat(8.5),
	domain.LoanTypeMortgage:  decimal.NewFromFloat(4.5),
	domain.LoanTypeAuto:      decimal.NewFromFloat(5.5),
	domain.LoanTypeStudent:   decimal.NewFromFloat(3.5),
	domain.LoanTypeBusiness:  decimal.NewFromFloat(7.5),
	domain.LoanTypeEducation: decimal.NewFromFloat(3.0),
}

var (
	smallLoanThreshold = decimal.NewFromInt(50000)
	largeLoanThreshold = decimal.NewFromInt(500000)
	smallLoanSurcharge = decimal.NewFromFloat(1.0)
	largeLoanDiscount  = decimal.NewFromFloat(0.5)
)

// RateForLoan returns the annual rate assigned to an application: the base rate
// of its type, one point more for amounts under 50 000, half a point less for
// amounts over 500 000
func RateForLoan(loanType domain.LoanType, amount decimal.Decimal) decimal.Decimal {
	rate, ok := baseRates[loanType]
	if !ok {
		rate = defaultBaseRate
	}

	switch {
	case amount.LessThan(smallLoanThreshold):
		rate = rate.Add(smallLoanSurcharge)
	case amount.GreaterThan(largeLoanThreshold):
		rate = rate.Sub(largeLoanDiscount)
	}
	return rate.Round(2)
}

// creditTiers are checked in order; the first floor the score reaches wins
var creditTiers = []struct {
	floor int
	rate  decimal.Decimal
}{
	{750, decimal.NewFromFloat(5.0)},
	{700, decimal.NewFromFloat(7.0)},
	{650, decimal.NewFromFloat(10.0)},
}

var subprimeRate = decimal.NewFromFloat(15.0)

// RateForCreditScore returns the tiered annual rate for a credit score
func RateForCreditScore(score int) (decimal.Decimal, error) {
	if score < MinCreditScore || score > MaxCreditScore {
		return decimal.Zero, ErrCreditScoreInvalid
	}
	for _, tier := range creditTiers {
		if score >= tier.floor {
			return tier.rate, nil
		}
	}
	return subprimeRate, nil
}
