package domain

import (
	"context"
	"errors"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/util"
	"github.com/shopspring/decimal"
)

var (
	ErrScheduleNotFound      = errors.New("repayment schedule not found")
	ErrScheduleEntryNotFound = errors.New("repayment schedule entry not found")
	ErrEntryAlreadySettled   = errors.New("installment is already fully paid")
)

// RepaymentStatus records the timeliness of an installment
type RepaymentStatus string

const (
	RepaymentStatusPending RepaymentStatus = "pending"
	RepaymentStatusPaid    RepaymentStatus = "paid"
	RepaymentStatusLate    RepaymentStatus = "late"
	RepaymentStatusMissed  RepaymentStatus = "missed"
)

// RepaymentScheduleEntry is one persisted installment of a loan's schedule.
// The monetary components are fixed at generation; only AmountPaid,
// PaymentDate and Status move afterwards.
type RepaymentScheduleEntry struct {
	ID                    int32           `json:"id"`
	LoanID                int32           `json:"loanId"`
	InstallmentNumber     int32           `json:"installmentNumber"`
	DueDate               time.Time       `json:"dueDate"`
	AmountDue             decimal.Decimal `json:"amountDue"`
	PrincipalComponent    decimal.Decimal `json:"principalComponent"`
	InterestComponent     decimal.Decimal `json:"interestComponent"`
	RemainingBalanceAfter decimal.Decimal `json:"remainingBalanceAfter"`
	Status                RepaymentStatus `json:"status"`
	AmountPaid            decimal.Decimal `json:"amountPaid"`
	PaymentDate           *time.Time      `json:"paymentDate,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// IsSettled reports whether the installment has been paid in full
func (e *RepaymentScheduleEntry) IsSettled() bool {
	return e.AmountPaid.GreaterThanOrEqual(e.AmountDue)
}

// RemainingDue is what is still owed on the installment, never negative
func (e *RepaymentScheduleEntry) RemainingDue() decimal.Decimal {
	remaining := e.AmountDue.Sub(e.AmountPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// ApplyPayment adds amount paid on paidAt and derives the new status. A payment
// dated after the due date marks the installment late whether or not it
// settles it; an on-time payment marks it paid once settled and leaves it
// pending otherwise. A late mark is never cleared.
func (e *RepaymentScheduleEntry) ApplyPayment(amount decimal.Decimal, paidAt time.Time) {
	e.AmountPaid = e.AmountPaid.Add(amount)
	e.PaymentDate = &paidAt

	switch {
	case e.Status == RepaymentStatusLate:
	case util.IsAfterDay(paidAt, e.DueDate):
		e.Status = RepaymentStatusLate
	case e.IsSettled():
		e.Status = RepaymentStatusPaid
	default:
		e.Status = RepaymentStatusPending
	}
}

// IsOverdue reports whether the installment is unsettled past its due date
func (e *RepaymentScheduleEntry) IsOverdue(now time.Time) bool {
	return !e.IsSettled() && util.IsAfterDay(now, e.DueDate)
}

// LoanBalance summarizes what has been paid and what is still owed on a loan
type LoanBalance struct {
	LoanID            int32           `json:"loanId"`
	TotalDue          decimal.Decimal `json:"totalDue"`
	TotalPaid         decimal.Decimal `json:"totalPaid"`
	Outstanding       decimal.Decimal `json:"outstanding"`
	PaidPercentage    decimal.Decimal `json:"paidPercentage"`
	InstallmentsTotal int             `json:"installmentsTotal"`
	InstallmentsPaid  int             `json:"installmentsPaid"`
	NextDueDate       *time.Time      `json:"nextDueDate,omitempty"`
}

// SummarizeBalance folds a schedule into a LoanBalance
func SummarizeBalance(loanID int32, entries []*RepaymentScheduleEntry) *LoanBalance {
	balance := &LoanBalance{
		LoanID:            loanID,
		TotalDue:          decimal.Zero,
		TotalPaid:         decimal.Zero,
		PaidPercentage:    decimal.Zero,
		InstallmentsTotal: len(entries),
	}
	for _, e := range entries {
		balance.TotalDue = balance.TotalDue.Add(e.AmountDue)
		balance.TotalPaid = balance.TotalPaid.Add(e.AmountPaid)
		if e.IsSettled() {
			balance.InstallmentsPaid++
			continue
		}
		if balance.NextDueDate == nil {
			due := e.DueDate
			balance.NextDueDate = &due
		}
	}
	balance.Outstanding = balance.TotalDue.Sub(balance.TotalPaid)
	if balance.Outstanding.IsNegative() {
		balance.Outstanding = decimal.Zero
	}
	if balance.TotalDue.IsPositive() {
		balance.PaidPercentage = balance.TotalPaid.Div(balance.TotalDue).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return balance
}

// RepaymentScheduleRepository defines the interface for schedule persistence.
// Entries are created only through LoanApplicationRepository.Approve.
type RepaymentScheduleRepository interface {
	GetByID(ctx context.Context, id int32) (*RepaymentScheduleEntry, error)
	ListByLoan(ctx context.Context, loanID int32) ([]*RepaymentScheduleEntry, error)
	ListByLoanPage(ctx context.Context, loanID int32, page Page) ([]*RepaymentScheduleEntry, error)
	CountByLoan(ctx context.Context, loanID int32) (int, error)
	// MarkMissed flags unsettled entries due before cutoff that are still pending
	MarkMissed(ctx context.Context, cutoff time.Time) (int64, error)
}
