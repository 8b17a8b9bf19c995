package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/amortization"
	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/repository/cache"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrRateQuoteInputMissing = errors.New("provide either a credit score or a loan type and amount")

// QuoteEntry is one installment of a calculator schedule
type QuoteEntry struct {
	InstallmentNumber     int             `json:"installmentNumber"`
	DueDate               time.Time       `json:"dueDate"`
	AmountDue             decimal.Decimal `json:"amountDue"`
	PrincipalComponent    decimal.Decimal `json:"principalComponent"`
	InterestComponent     decimal.Decimal `json:"interestComponent"`
	RemainingBalanceAfter decimal.Decimal `json:"remainingBalanceAfter"`
}

// ScheduleQuote is the full amortization of a hypothetical loan
type ScheduleQuote struct {
	Principal         decimal.Decimal `json:"principal"`
	AnnualRatePercent decimal.Decimal `json:"annualRatePercent"`
	TermMonths        int             `json:"termMonths"`
	StartDate         time.Time       `json:"startDate"`
	MonthlyPayment    decimal.Decimal `json:"monthlyPayment"`
	TotalInterest     decimal.Decimal `json:"totalInterest"`
	TotalPayment      decimal.Decimal `json:"totalPayment"`
	Schedule          []QuoteEntry    `json:"schedule"`
}

// RateQuote is the annual rate the rate policy assigns
type RateQuote struct {
	AnnualRatePercent decimal.Decimal `json:"annualRatePercent"`
	Basis             string          `json:"basis"`
}

// CalculatorService exposes the amortization engine without touching any loan
type CalculatorService struct {
	cache cache.Cache
	now   func() time.Time
}

// NewCalculatorService creates a new CalculatorService. Schedule quotes are
// cached when c is not nil.
func NewCalculatorService(c cache.Cache) *CalculatorService {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &CalculatorService{cache: c, now: time.Now}
}

// Schedule quotes the installment, total interest and full schedule for terms.
// A zero startDate means today.
func (s *CalculatorService) Schedule(ctx context.Context, terms amortization.Terms, startDate time.Time) (*ScheduleQuote, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if startDate.IsZero() {
		startDate = s.now()
	}
	y, m, d := startDate.UTC().Date()
	startDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	key := scheduleCacheKey(terms, startDate)
	if cached, ok := s.cache.Get(ctx, key); ok {
		var quote ScheduleQuote
		if err := json.Unmarshal(cached, &quote); err == nil {
			return &quote, nil
		}
		log.Warn().Str("key", key).Msg("Discarding unreadable cached schedule quote")
	}

	quote := buildScheduleQuote(terms, startDate)

	if data, err := json.Marshal(quote); err == nil {
		if err := s.cache.Set(ctx, key, data); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to cache schedule quote")
		}
	}
	return quote, nil
}

func buildScheduleQuote(terms amortization.Terms, startDate time.Time) *ScheduleQuote {
	entries := amortization.GenerateSchedule(terms, startDate, 0)
	totalInterest := amortization.TotalInterest(terms)

	schedule := make([]QuoteEntry, len(entries))
	for i, e := range entries {
		schedule[i] = QuoteEntry{
			InstallmentNumber:     e.InstallmentNumber,
			DueDate:               e.DueDate,
			AmountDue:             e.AmountDue,
			PrincipalComponent:    e.PrincipalComponent,
			InterestComponent:     e.InterestComponent,
			RemainingBalanceAfter: e.RemainingBalanceAfter,
		}
	}

	return &ScheduleQuote{
		Principal:         terms.Principal.Round(2),
		AnnualRatePercent: terms.AnnualRatePercent,
		TermMonths:        terms.TermMonths,
		StartDate:         startDate,
		MonthlyPayment:    amortization.Installment(terms.Principal, terms.AnnualRatePercent, terms.TermMonths).Round(2),
		TotalInterest:     totalInterest,
		TotalPayment:      terms.Principal.Round(2).Add(totalInterest),
		Schedule:          schedule,
	}
}

func scheduleCacheKey(terms amortization.Terms, startDate time.Time) string {
	return fmt.Sprintf("schedule:%s:%s:%d:%s",
		terms.Principal.String(), terms.AnnualRatePercent.String(), terms.TermMonths, startDate.Format("2006-01-02"))
}

// Prepayment projects a prepayment against arbitrary loan figures
func (s *CalculatorService) Prepayment(req amortization.PrepaymentRequest) (*amortization.Projection, error) {
	return amortization.ProjectPrepayment(req)
}

// Rate quotes the policy rate by credit score when given, otherwise by loan
// type and amount
func (s *CalculatorService) Rate(loanType *domain.LoanType, amount *decimal.Decimal, creditScore *int) (*RateQuote, error) {
	if creditScore != nil {
		rate, err := RateForCreditScore(*creditScore)
		if err != nil {
			return nil, err
		}
		return &RateQuote{AnnualRatePercent: rate, Basis: "credit_score"}, nil
	}

	if loanType == nil || amount == nil {
		return nil, ErrRateQuoteInputMissing
	}
	if !loanType.IsValid() {
		return nil, domain.ErrLoanTypeInvalid
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrLoanAmountInvalid
	}
	return &RateQuote{AnnualRatePercent: RateForLoan(*loanType, *amount), Basis: "loan_type"}, nil
}
