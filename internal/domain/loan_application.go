package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrLoanNotFound           = errors.New("loan application not found")
	ErrLoanTypeInvalid        = errors.New("loan type must be one of personal, mortgage, auto, student, business, education")
	ErrLoanAmountInvalid      = errors.New("loan amount must be positive")
	ErrLoanTermInvalid        = errors.New("loan term must be at least 1 month")
	ErrLoanTermTooLong        = errors.New("loan term must be 480 months or less")
	ErrLoanPurposeTooLong     = errors.New("loan purpose must be 500 characters or less")
	ErrLoanNotReviewable      = errors.New("only pending or under review applications can be approved or rejected")
	ErrLoanNotActive          = errors.New("loan is not active")
	ErrLoanStatusInvalid      = errors.New("loan status is invalid")
	ErrLoanTransitionInvalid  = errors.New("loan status transition is not allowed")
	ErrReviewCommentsTooLong  = errors.New("review comments must be 1000 characters or less")
	ErrScheduleAlreadyCreated = errors.New("repayment schedule already generated for this loan")
)

const (
	MaxLoanTermMonths      = 480
	MaxLoanPurposeLength   = 500
	MaxReviewCommentLength = 1000
)

// LoanType is the product a customer applies for
type LoanType string

const (
	LoanTypePersonal  LoanType = "personal"
	LoanTypeMortgage  LoanType = "mortgage"
	LoanTypeAuto      LoanType = "auto"
	LoanTypeStudent   LoanType = "student"
	LoanTypeBusiness  LoanType = "business"
	LoanTypeEducation LoanType = "education"
)

// IsValid reports whether t is a product we offer
func (t LoanType) IsValid() bool {
	switch t {
	case LoanTypePersonal, LoanTypeMortgage, LoanTypeAuto, LoanTypeStudent, LoanTypeBusiness, LoanTypeEducation:
		return true
	}
	return false
}

// LoanStatus is the lifecycle stage of an application
type LoanStatus string

const (
	LoanStatusPending     LoanStatus = "pending"
	LoanStatusUnderReview LoanStatus = "under_review"
	LoanStatusApproved    LoanStatus = "approved"
	LoanStatusRejected    LoanStatus = "rejected"
	LoanStatusDisbursed   LoanStatus = "disbursed"
	LoanStatusDefaulted   LoanStatus = "defaulted"
	LoanStatusPaidOff     LoanStatus = "paid_off"
	LoanStatusClosed      LoanStatus = "closed"
)

// loanTransitions lists the statuses reachable from each status
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:     {LoanStatusUnderReview, LoanStatusApproved, LoanStatusRejected},
	LoanStatusUnderReview: {LoanStatusApproved, LoanStatusRejected},
	LoanStatusApproved:    {LoanStatusDisbursed, LoanStatusDefaulted, LoanStatusPaidOff},
	LoanStatusDisbursed:   {LoanStatusDefaulted, LoanStatusPaidOff},
	LoanStatusPaidOff:     {LoanStatusClosed},
	LoanStatusDefaulted:   {LoanStatusClosed},
}

// IsValid reports whether s is a known status
func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanStatusPending, LoanStatusUnderReview, LoanStatusApproved, LoanStatusRejected,
		LoanStatusDisbursed, LoanStatusDefaulted, LoanStatusPaidOff, LoanStatusClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsReviewable reports whether an application in this status awaits a decision
func (s LoanStatus) IsReviewable() bool {
	return s == LoanStatusPending || s == LoanStatusUnderReview
}

// HasSchedule reports whether a loan in this status carries a repayment schedule
// that accepts payments
func (s LoanStatus) HasSchedule() bool {
	return s == LoanStatusApproved || s == LoanStatusDisbursed
}

// LoanApplication is a customer's request for a loan. Once approved it is the
// loan itself: its amount, rate and term are the fixed terms of the schedule.
type LoanApplication struct {
	ID             int32           `json:"id"`
	ApplicantID    uuid.UUID       `json:"applicantId"`
	LoanType       LoanType        `json:"loanType"`
	Amount         decimal.Decimal `json:"amount"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	TermMonths     int32           `json:"termMonths"`
	Purpose        *string         `json:"purpose,omitempty"`
	Status         LoanStatus      `json:"status"`
	ReviewedByID   *uuid.UUID      `json:"reviewedById,omitempty"`
	ReviewComments *string         `json:"reviewComments,omitempty"`
	ReviewedAt     *time.Time      `json:"reviewedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (l *LoanApplication) Validate() error {
	if !l.LoanType.IsValid() {
		return ErrLoanTypeInvalid
	}
	if l.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrLoanAmountInvalid
	}
	if l.TermMonths < 1 {
		return ErrLoanTermInvalid
	}
	if l.TermMonths > MaxLoanTermMonths {
		return ErrLoanTermTooLong
	}
	if l.Purpose != nil && len(*l.Purpose) > MaxLoanPurposeLength {
		return ErrLoanPurposeTooLong
	}
	return nil
}

// LoanReview is the decision recorded when an application is approved or rejected
type LoanReview struct {
	ReviewerID uuid.UUID
	Comments   *string
	ReviewedAt time.Time
}

// LoanApplicationUpdate carries the officer-editable fields of an application
type LoanApplicationUpdate struct {
	Status         *LoanStatus
	ReviewComments *string
}

// LoanApplicationRepository defines the interface for loan application persistence
type LoanApplicationRepository interface {
	Create(ctx context.Context, loan *LoanApplication) (*LoanApplication, error)
	GetByID(ctx context.Context, id int32) (*LoanApplication, error)
	List(ctx context.Context, page Page) ([]*LoanApplication, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID, page Page) ([]*LoanApplication, error)
	// Update writes the editable fields only while the stored status is still
	// expected; otherwise it returns ErrLoanTransitionInvalid
	Update(ctx context.Context, loan *LoanApplication, expected LoanStatus) (*LoanApplication, error)
	// Approve marks the application approved and inserts its schedule in one transaction
	Approve(ctx context.Context, id int32, review LoanReview, schedule []*RepaymentScheduleEntry) (*LoanApplication, error)
	Reject(ctx context.Context, id int32, review LoanReview) (*LoanApplication, error)
}
