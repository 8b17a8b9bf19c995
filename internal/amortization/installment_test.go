package amortization

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestInstallment(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		months    int
		expected  string
	}{
		{"twelve months at six percent", "120000", "6", 12, "10327.97"},
		{"zero rate splits evenly", "10000", "0", 5, "2000.00"},
		{"single month repays principal plus one month interest", "1000", "12", 1, "1010.00"},
		{"thirty year mortgage", "250000", "7.25", 360, "1705.44"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Installment(d(tt.principal), d(tt.rate), tt.months)
			assert.Equal(t, tt.expected, got.StringFixed(2))
		})
	}
}

func TestInstallment_NotRounded(t *testing.T) {
	got := Installment(d("120000"), d("6"), 12)
	assert.True(t, got.GreaterThan(d("10327.97")))
	assert.True(t, got.LessThan(d("10327.98")))
	assert.NotEqual(t, got.String(), got.StringFixed(2))
}

func TestInstallment_ZeroRateIsExact(t *testing.T) {
	got := Installment(d("1000"), decimal.Zero, 4)
	assert.True(t, got.Equal(d("250")))
}

func TestInstallment_NonPositiveTerm(t *testing.T) {
	assert.True(t, Installment(d("1000"), d("5"), 0).IsZero())
	assert.True(t, Installment(d("1000"), d("5"), -3).IsZero())
}

func TestTotalInterest(t *testing.T) {
	tests := []struct {
		name     string
		terms    Terms
		expected string
	}{
		{"twelve months at six percent", Terms{Principal: d("120000"), AnnualRatePercent: d("6"), TermMonths: 12}, "3935.66"},
		{"ten months at twelve percent", Terms{Principal: d("1000"), AnnualRatePercent: d("12"), TermMonths: 10}, "55.82"},
		{"zero rate", Terms{Principal: d("10000"), AnnualRatePercent: decimal.Zero, TermMonths: 5}, "0.00"},
		{"no term", Terms{Principal: d("10000"), AnnualRatePercent: d("5"), TermMonths: 0}, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TotalInterest(tt.terms).StringFixed(2))
		})
	}
}

func TestTotalInterest_ConsistentWithInstallment(t *testing.T) {
	terms := Terms{Principal: d("85000"), AnnualRatePercent: d("8.5"), TermMonths: 48}
	inst := Installment(terms.Principal, terms.AnnualRatePercent, terms.TermMonths)
	total := inst.Mul(decimal.NewFromInt(48))

	diff := total.Sub(terms.Principal.Add(TotalInterest(terms))).Abs()
	assert.True(t, diff.LessThanOrEqual(d("0.01")), "diff %s", diff)
}

func TestTerms_Validate(t *testing.T) {
	tests := []struct {
		name  string
		terms Terms
		err   error
	}{
		{"valid", Terms{Principal: d("1000"), AnnualRatePercent: d("5"), TermMonths: 12}, nil},
		{"zero rate is valid", Terms{Principal: d("1000"), AnnualRatePercent: decimal.Zero, TermMonths: 12}, nil},
		{"zero principal", Terms{Principal: decimal.Zero, AnnualRatePercent: d("5"), TermMonths: 12}, ErrPrincipalInvalid},
		{"negative principal", Terms{Principal: d("-1"), AnnualRatePercent: d("5"), TermMonths: 12}, ErrPrincipalInvalid},
		{"zero term", Terms{Principal: d("1000"), AnnualRatePercent: d("5"), TermMonths: 0}, ErrTermInvalid},
		{"negative rate", Terms{Principal: d("1000"), AnnualRatePercent: d("-0.5"), TermMonths: 12}, ErrRateInvalid},
		{"longest term", Terms{Principal: d("1000"), AnnualRatePercent: d("5"), TermMonths: MaxTermMonths}, nil},
		{"term too long", Terms{Principal: d("1000"), AnnualRatePercent: d("5"), TermMonths: MaxTermMonths + 1}, ErrTermInvalid},
		{"very long term", Terms{Principal: d("1000"), AnnualRatePercent: d("5"), TermMonths: 1000000}, ErrTermInvalid},
		{"highest rate", Terms{Principal: d("1000"), AnnualRatePercent: d("100"), TermMonths: MaxTermMonths}, nil},
		{"rate too high", Terms{Principal: d("1000"), AnnualRatePercent: d("100.01"), TermMonths: 12}, ErrRateInvalid},
		{"absurd rate", Terms{Principal: d("1000"), AnnualRatePercent: d("100000"), TermMonths: 480}, ErrRateInvalid},
		{"principal beyond float range", Terms{Principal: d("1e400"), AnnualRatePercent: d("5"), TermMonths: 12}, ErrAmountOutOfRange},
		{"installment overflows", Terms{Principal: d("1e306"), AnnualRatePercent: d("100"), TermMonths: 480}, ErrAmountOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.terms.Validate()
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, IsValidationError(err))
		})
	}
}
