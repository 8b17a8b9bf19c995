package amortization

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectPrepayment_Partial(t *testing.T) {
	req := PrepaymentRequest{
		RemainingBalance:   d("50000"),
		PrepaymentAmount:   d("10000"),
		CurrentInstallment: d("1907.98"),
		RemainingMonths:    30,
		AnnualRatePercent:  d("9"),
	}

	p, err := ProjectPrepayment(req)
	require.NoError(t, err)

	assert.Equal(t, "40000.00", p.NewBalance.StringFixed(2))
	assert.Equal(t, 7, p.MonthsSaved)
	assert.Equal(t, "2323.66", p.InterestSaved.StringFixed(2))
	assert.Equal(t, "1899.94", p.NewMonthlyPayment.StringFixed(2))
}

func TestProjectPrepayment_FullPayoff(t *testing.T) {
	req := PrepaymentRequest{
		RemainingBalance:   d("1000"),
		PrepaymentAmount:   d("1200"),
		CurrentInstallment: d("100"),
		RemainingMonths:    12,
		AnnualRatePercent:  d("12"),
	}

	p, err := ProjectPrepayment(req)
	require.NoError(t, err)

	assert.True(t, p.NewBalance.IsZero())
	assert.Equal(t, 12, p.MonthsSaved)
	assert.Equal(t, "66.19", p.InterestSaved.StringFixed(2))
	assert.True(t, p.NewMonthlyPayment.IsZero())
}

func TestProjectPrepayment_ExactPayoff(t *testing.T) {
	req := PrepaymentRequest{
		RemainingBalance:   d("5000"),
		PrepaymentAmount:   d("5000"),
		CurrentInstallment: d("450"),
		RemainingMonths:    12,
		AnnualRatePercent:  d("6"),
	}

	p, err := ProjectPrepayment(req)
	require.NoError(t, err)
	assert.True(t, p.NewBalance.IsZero())
	assert.Equal(t, 12, p.MonthsSaved)
}

func TestProjectPrepayment_FullPayoffIgnoresInstallment(t *testing.T) {
	// The installment no longer matters once the balance is retired
	req := PrepaymentRequest{
		RemainingBalance:   d("1000"),
		PrepaymentAmount:   d("1200"),
		CurrentInstallment: d("1"),
		RemainingMonths:    10,
		AnnualRatePercent:  d("5"),
	}

	require.NoError(t, req.Validate())

	p, err := ProjectPrepayment(req)
	require.NoError(t, err)
	assert.True(t, p.NewBalance.IsZero())
	assert.Equal(t, 10, p.MonthsSaved)
	assert.True(t, p.NewMonthlyPayment.IsZero())
	assert.True(t, p.InterestSaved.GreaterThanOrEqual(decimal.Zero))
}

func TestProjectPrepayment_CapsAtRemainingMonths(t *testing.T) {
	// An installment far above the schedule still cannot save more than the remaining term
	req := PrepaymentRequest{
		RemainingBalance:   d("10000"),
		PrepaymentAmount:   d("500"),
		CurrentInstallment: d("1000"),
		RemainingMonths:    12,
		AnnualRatePercent:  d("12"),
	}

	p, err := ProjectPrepayment(req)
	require.NoError(t, err)
	assert.Equal(t, "9500.00", p.NewBalance.StringFixed(2))
	assert.Equal(t, 1, p.MonthsSaved)
	assert.Equal(t, "916.31", p.NewMonthlyPayment.StringFixed(2))
}

func TestProjectPrepayment_SavingsNeverNegativeForAmortizingLoan(t *testing.T) {
	terms := Terms{Principal: d("60000"), AnnualRatePercent: d("9"), TermMonths: 36}
	inst := Installment(terms.Principal, terms.AnnualRatePercent, terms.TermMonths).Round(2)

	for _, amount := range []string{"1", "250", "5000", "20000", "59000"} {
		p, err := ProjectPrepayment(PrepaymentRequest{
			RemainingBalance:   terms.Principal,
			PrepaymentAmount:   d(amount),
			CurrentInstallment: inst,
			RemainingMonths:    terms.TermMonths,
			AnnualRatePercent:  terms.AnnualRatePercent,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.MonthsSaved, 0)
		assert.True(t, p.InterestSaved.GreaterThanOrEqual(decimal.Zero), "prepayment %s saved %s", amount, p.InterestSaved)
	}
}

func TestProjectPrepayment_NonAmortizing(t *testing.T) {
	// 1% monthly on 10000 is 100 of interest; a 100 installment never reduces the balance
	req := PrepaymentRequest{
		RemainingBalance:   d("10000"),
		PrepaymentAmount:   d("100"),
		CurrentInstallment: d("100"),
		RemainingMonths:    24,
		AnnualRatePercent:  d("12"),
	}

	p, err := ProjectPrepayment(req)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrNonAmortizingPayment)
	assert.False(t, IsValidationError(err))
}

func TestPrepaymentRequest_Validate(t *testing.T) {
	valid := PrepaymentRequest{
		RemainingBalance:   d("1000"),
		PrepaymentAmount:   d("100"),
		CurrentInstallment: d("100"),
		RemainingMonths:    12,
		AnnualRatePercent:  d("5"),
	}

	tests := []struct {
		name   string
		mutate func(*PrepaymentRequest)
		err    error
	}{
		{"valid", func(*PrepaymentRequest) {}, nil},
		{"zero balance", func(r *PrepaymentRequest) { r.RemainingBalance = decimal.Zero }, ErrRemainingBalanceInvalid},
		{"negative prepayment", func(r *PrepaymentRequest) { r.PrepaymentAmount = d("-5") }, ErrPrepaymentAmountInvalid},
		{"zero installment", func(r *PrepaymentRequest) { r.CurrentInstallment = decimal.Zero }, ErrInstallmentInvalid},
		{"no remaining months", func(r *PrepaymentRequest) { r.RemainingMonths = 0 }, ErrTermInvalid},
		{"negative rate", func(r *PrepaymentRequest) { r.AnnualRatePercent = d("-1") }, ErrRateInvalid},
		{"too many remaining months", func(r *PrepaymentRequest) { r.RemainingMonths = MaxTermMonths + 1 }, ErrTermInvalid},
		{"rate too high", func(r *PrepaymentRequest) { r.AnnualRatePercent = d("100000") }, ErrRateInvalid},
		{"balance beyond float range", func(r *PrepaymentRequest) { r.RemainingBalance = d("1e400") }, ErrAmountOutOfRange},
		{"installment beyond float range", func(r *PrepaymentRequest) { r.CurrentInstallment = d("1e400") }, ErrAmountOutOfRange},
		// Whether the installment amortizes depends on the prepayment outcome
		{"interest-only installment", func(r *PrepaymentRequest) { r.CurrentInstallment = d("1") }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, IsValidationError(err))
		})
	}
}
