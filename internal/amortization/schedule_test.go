package amortization

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchedule_TwelveMonths(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	terms := Terms{Principal: d("120000"), AnnualRatePercent: d("6"), TermMonths: 12}

	entries := GenerateSchedule(terms, start, 42)
	require.Len(t, entries, 12)

	first := entries[0]
	assert.Equal(t, int32(42), first.LoanID)
	assert.Equal(t, 1, first.InstallmentNumber)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), first.DueDate)
	assert.Equal(t, "10327.97", first.AmountDue.StringFixed(2))
	assert.Equal(t, "600.00", first.InterestComponent.StringFixed(2))
	assert.Equal(t, "9727.97", first.PrincipalComponent.StringFixed(2))
	assert.Equal(t, "110272.03", first.RemainingBalanceAfter.StringFixed(2))

	last := entries[11]
	assert.Equal(t, 12, last.InstallmentNumber)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), last.DueDate)
	assert.Equal(t, "51.38", last.InterestComponent.StringFixed(2))
	assert.Equal(t, "10276.59", last.PrincipalComponent.StringFixed(2))
	assert.True(t, last.RemainingBalanceAfter.IsZero())

	assert.True(t, SumPrincipal(entries).Equal(d("120000")))
	assert.Equal(t, "3935.66", SumInterest(entries).StringFixed(2))
}

func TestGenerateSchedule_Properties(t *testing.T) {
	start := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	cases := []Terms{
		{Principal: d("5000"), AnnualRatePercent: d("8.5"), TermMonths: 6},
		{Principal: d("75000.50"), AnnualRatePercent: d("4.5"), TermMonths: 60},
		{Principal: d("250000"), AnnualRatePercent: d("7.25"), TermMonths: 360},
		{Principal: d("999.99"), AnnualRatePercent: d("15"), TermMonths: 1},
		// Sub-cent monthly principal for most of the term
		{Principal: d("7.19"), AnnualRatePercent: d("1.25"), TermMonths: 397},
		{Principal: d("2.13"), AnnualRatePercent: d("16.31"), TermMonths: 136},
	}

	for _, terms := range cases {
		entries := GenerateSchedule(terms, start, 1)
		require.Len(t, entries, terms.TermMonths)

		// Principal components retire the loan exactly
		assert.True(t, SumPrincipal(entries).Equal(terms.Principal), "sum %s", SumPrincipal(entries))

		// Interest sum tracks the closed form within rounding
		tolerance := decimal.NewFromFloat(0.005).Mul(decimal.NewFromInt(int64(terms.TermMonths)))
		diff := SumInterest(entries).Sub(TotalInterest(terms)).Abs()
		assert.True(t, diff.LessThanOrEqual(tolerance), "interest drift %s", diff)

		prev := terms.Principal
		for i, e := range entries {
			assert.Equal(t, i+1, e.InstallmentNumber)
			assert.True(t, e.InterestComponent.GreaterThanOrEqual(decimal.Zero))
			assert.True(t, e.PrincipalComponent.GreaterThanOrEqual(decimal.Zero),
				"installment %d principal %s", e.InstallmentNumber, e.PrincipalComponent)
			assert.True(t, prev.Sub(e.RemainingBalanceAfter).Equal(e.PrincipalComponent))
			assert.True(t, e.RemainingBalanceAfter.LessThanOrEqual(prev))
			assert.True(t, e.AmountDue.Equal(entries[0].AmountDue))
			prev = e.RemainingBalanceAfter
		}
		assert.True(t, entries[len(entries)-1].RemainingBalanceAfter.IsZero())
	}
}

func TestGenerateSchedule_LongTermLastEntry(t *testing.T) {
	terms := Terms{Principal: d("250000"), AnnualRatePercent: d("7.25"), TermMonths: 360}
	entries := GenerateSchedule(terms, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 7)

	first := entries[0]
	assert.Equal(t, "1705.44", first.AmountDue.StringFixed(2))
	assert.Equal(t, "1510.42", first.InterestComponent.StringFixed(2))
	assert.Equal(t, "249804.98", first.RemainingBalanceAfter.StringFixed(2))

	last := entries[359]
	assert.Equal(t, time.Date(2054, 1, 1, 0, 0, 0, 0, time.UTC), last.DueDate)
	assert.Equal(t, "10.24", last.InterestComponent.StringFixed(2))
	assert.True(t, last.RemainingBalanceAfter.IsZero())
	// The final principal absorbs the accumulated rounding residue
	assert.True(t, last.PrincipalComponent.Sub(d("1695.20")).Abs().LessThanOrEqual(d("0.50")))
}

func TestGenerateSchedule_ZeroRate(t *testing.T) {
	terms := Terms{Principal: d("10000"), AnnualRatePercent: decimal.Zero, TermMonths: 5}
	entries := GenerateSchedule(terms, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 3)
	require.Len(t, entries, 5)

	expectedBalances := []string{"8000.00", "6000.00", "4000.00", "2000.00", "0.00"}
	for i, e := range entries {
		assert.Equal(t, "2000.00", e.AmountDue.StringFixed(2))
		assert.Equal(t, "2000.00", e.PrincipalComponent.StringFixed(2))
		assert.True(t, e.InterestComponent.IsZero())
		assert.Equal(t, expectedBalances[i], e.RemainingBalanceAfter.StringFixed(2))
	}
}

func TestGenerateSchedule_EndOfMonthClamping(t *testing.T) {
	terms := Terms{Principal: d("1200"), AnnualRatePercent: d("5"), TermMonths: 4}
	entries := GenerateSchedule(terms, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 1)

	expected := []time.Time{
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
	}
	for i, e := range entries {
		assert.Equal(t, expected[i], e.DueDate)
	}
}

func TestGenerateSchedule_Deterministic(t *testing.T) {
	terms := Terms{Principal: d("48000"), AnnualRatePercent: d("9.99"), TermMonths: 24}
	start := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, GenerateSchedule(terms, start, 9), GenerateSchedule(terms, start, 9))
}

func TestGenerateSchedule_NoTerm(t *testing.T) {
	terms := Terms{Principal: d("1000"), AnnualRatePercent: d("5"), TermMonths: 0}
	assert.Empty(t, GenerateSchedule(terms, time.Now(), 1))
}
