package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentAmountInvalid     = errors.New("payment amount must be positive")
	ErrPaymentExceedsDue        = errors.New("payment amount exceeds the remaining amount due")
	ErrPaymentReferenceRequired = errors.New("transaction reference is required")
	ErrPaymentReferenceTooLong  = errors.New("transaction reference must be 100 characters or less")
	ErrPaymentReferenceTaken    = errors.New("transaction reference has already been used")
	ErrPaymentMethodTooLong     = errors.New("payment method must be 50 characters or less")
	ErrPaymentNotesTooLong      = errors.New("payment notes must be 500 characters or less")
)

const (
	MaxTransactionReferenceLength = 100
	MaxPaymentMethodLength        = 50
	MaxPaymentNotesLength         = 500
)

// Payment is an append-only ledger row for money received against a loan
type Payment struct {
	ID                   int32           `json:"id"`
	LoanID               int32           `json:"loanId"`
	ScheduleID           int32           `json:"scheduleId"`
	Amount               decimal.Decimal `json:"amount"`
	PaymentDate          time.Time       `json:"paymentDate"`
	PaymentMethod        *string         `json:"paymentMethod,omitempty"`
	TransactionReference string          `json:"transactionReference"`
	Notes                *string         `json:"notes,omitempty"`
	ProcessedByID        *uuid.UUID      `json:"processedById,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}

func (p *Payment) Validate() error {
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrPaymentAmountInvalid
	}
	if p.TransactionReference == "" {
		return ErrPaymentReferenceRequired
	}
	if len(p.TransactionReference) > MaxTransactionReferenceLength {
		return ErrPaymentReferenceTooLong
	}
	if p.PaymentMethod != nil && len(*p.PaymentMethod) > MaxPaymentMethodLength {
		return ErrPaymentMethodTooLong
	}
	if p.Notes != nil && len(*p.Notes) > MaxPaymentNotesLength {
		return ErrPaymentNotesTooLong
	}
	return nil
}

// PaymentRepository defines the interface for the payment ledger
type PaymentRepository interface {
	// Record locks the schedule entry, lets apply mutate it, then persists the
	// entry and appends payment in one transaction. The loan is marked paid off
	// when the update leaves no unsettled entries.
	Record(ctx context.Context, payment *Payment, apply func(entry *RepaymentScheduleEntry) error) (*Payment, *RepaymentScheduleEntry, error)
	ListByLoan(ctx context.Context, loanID int32, page Page) ([]*Payment, error)
	GetByReference(ctx context.Context, reference string) (*Payment, error)
}
