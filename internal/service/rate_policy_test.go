package service

import (
	"testing"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateForLoan(t *testing.T) {
	tests := []struct {
		name     string
		loanType domain.LoanType
		amount   int64
		expected string
	}{
		{"personal mid amount", domain.LoanTypePersonal, 100000, "8.5"},
		{"personal small surcharge", domain.LoanTypePersonal, 10000, "9.5"},
		{"mortgage large discount", domain.LoanTypeMortgage, 600000, "4"},
		{"auto", domain.LoanTypeAuto, 50000, "5.5"},
		{"student boundary 500000 not discounted", domain.LoanTypeStudent, 500000, "3.5"},
		{"business", domain.LoanTypeBusiness, 200000, "7.5"},
		{"education small", domain.LoanTypeEducation, 20000, "4"},
		{"unknown type falls back", domain.LoanType("boat"), 100000, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RateForLoan(tt.loanType, decimal.NewFromInt(tt.amount))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)), "got %s", got)
		})
	}
}

func TestRateForCreditScore(t *testing.T) {
	tests := []struct {
		score    int
		expected string
	}{
		{850, "5"},
		{750, "5"},
		{749, "7"},
		{700, "7"},
		{699, "10"},
		{650, "10"},
		{649, "15"},
		{300, "15"},
	}

	for _, tt := range tests {
		got, err := RateForCreditScore(tt.score)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)), "score %d: got %s", tt.score, got)
	}
}

func TestRateForCreditScore_OutOfRange(t *testing.T) {
	_, err := RateForCreditScore(299)
	assert.ErrorIs(t, err, ErrCreditScoreInvalid)

	_, err = RateForCreditScore(851)
	assert.ErrorIs(t, err, ErrCreditScoreInvalid)
}
