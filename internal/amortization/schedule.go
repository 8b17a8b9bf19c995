package amortization

import (
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/util"
	"github.com/shopspring/decimal"
)

// Entry is one installment of a generated schedule. Every monetary field is
// rounded to currency precision; the recurrence that produced it is not.
type Entry struct {
	LoanID                int32
	InstallmentNumber     int
	DueDate               time.Time
	AmountDue             decimal.Decimal
	PrincipalComponent    decimal.Decimal
	InterestComponent     decimal.Decimal
	RemainingBalanceAfter decimal.Decimal
}

// GenerateSchedule materializes the month-by-month schedule for terms, with
// installment m due startDate + m calendar months. The running balance is
// carried at full precision; only the emitted components are rounded. The
// final installment takes whatever balance is left so the loan is retired
// exactly. Each reported principal component is the drop between consecutive
// reported balances, so the components are never negative and sum to the
// principal even when a cent-level payment rounds away.
//
// GenerateSchedule is pure: identical inputs yield identical schedules.
func GenerateSchedule(terms Terms, startDate time.Time, loanID int32) []Entry {
	n := terms.TermMonths
	if n <= 0 {
		return nil
	}

	principal := terms.Principal.InexactFloat64()
	r := monthlyRate(terms.AnnualRatePercent.InexactFloat64())
	payment := installment(principal, r, n)
	amountDue := round2(payment)

	entries := make([]Entry, 0, n)
	remaining := principal
	reportedBalance := terms.Principal.Round(currencyPlaces)

	for m := 1; m <= n; m++ {
		interest := remaining * r
		remaining -= payment - interest

		balanceOut := round2(remaining)
		if m == n {
			balanceOut = decimal.Zero
		}
		principalOut := reportedBalance.Sub(balanceOut)
		reportedBalance = balanceOut

		entries = append(entries, Entry{
			LoanID:                loanID,
			InstallmentNumber:     m,
			DueDate:               util.AddMonths(startDate, m),
			AmountDue:             amountDue,
			PrincipalComponent:    principalOut,
			InterestComponent:     round2(interest),
			RemainingBalanceAfter: balanceOut,
		})
	}

	return entries
}

// SumPrincipal adds up the principal components of a schedule
func SumPrincipal(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.PrincipalComponent)
	}
	return total
}

// SumInterest adds up the interest components of a schedule
func SumInterest(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.InterestComponent)
	}
	return total
}
