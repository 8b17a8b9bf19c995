package service

import (
	"context"
	"strings"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/amortization"
	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/metrics"
	"github.com/dafibh/loanledger/loanledger-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// LoanService handles the loan application lifecycle
type LoanService struct {
	loanRepo     domain.LoanApplicationRepository
	scheduleRepo domain.RepaymentScheduleRepository
	userRepo     domain.UserRepository
	publisher    websocket.EventPublisher
	metrics      metrics.Recorder
	now          func() time.Time
}

// NewLoanService creates a new LoanService
func NewLoanService(
	loanRepo domain.LoanApplicationRepository,
	scheduleRepo domain.RepaymentScheduleRepository,
	userRepo domain.UserRepository,
	publisher websocket.EventPublisher,
	recorder metrics.Recorder,
) *LoanService {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &LoanService{
		loanRepo:     loanRepo,
		scheduleRepo: scheduleRepo,
		userRepo:     userRepo,
		publisher:    publisher,
		metrics:      recorder,
		now:          time.Now,
	}
}

// CreateLoanInput contains input for creating a loan application
type CreateLoanInput struct {
	// ApplicantID is honoured for admins only; everyone else applies for themselves
	ApplicantID *uuid.UUID
	LoanType    domain.LoanType
	Amount      decimal.Decimal
	TermMonths  int32
	Purpose     *string
}

// Create submits a new application. The rate comes from the rate policy.
func (s *LoanService) Create(ctx context.Context, actor Actor, input CreateLoanInput) (*domain.LoanApplication, error) {
	applicantID := actor.UserID
	if input.ApplicantID != nil && *input.ApplicantID != actor.UserID {
		if !actor.IsAdmin() {
			return nil, domain.ErrForbidden
		}
		if _, err := s.userRepo.GetByID(ctx, *input.ApplicantID); err != nil {
			return nil, err
		}
		applicantID = *input.ApplicantID
	}

	var purpose *string
	if input.Purpose != nil {
		trimmed := strings.TrimSpace(*input.Purpose)
		if trimmed != "" {
			purpose = &trimmed
		}
	}

	loan := &domain.LoanApplication{
		ApplicantID:  applicantID,
		LoanType:     input.LoanType,
		Amount:       input.Amount.Round(2),
		InterestRate: RateForLoan(input.LoanType, input.Amount),
		TermMonths:   input.TermMonths,
		Purpose:      purpose,
		Status:       domain.LoanStatusPending,
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}

	created, err := s.loanRepo.Create(ctx, loan)
	if err != nil {
		log.Error().Err(err).Str("applicant_id", applicantID.String()).Msg("Failed to create loan application")
		return nil, err
	}

	log.Info().
		Int32("loan_id", created.ID).
		Str("applicant_id", applicantID.String()).
		Str("loan_type", string(created.LoanType)).
		Str("interest_rate", created.InterestRate.String()).
		Msg("Loan application created")

	s.metrics.LoanApplicationSubmitted(string(created.LoanType))
	event := websocket.LoanApplicationCreated(created)
	s.publisher.Publish(created.ApplicantID, event)
	s.publisher.PublishToReviewers(event)
	return created, nil
}

// Get returns an application visible to the actor
func (s *LoanService) Get(ctx context.Context, actor Actor, id int32) (*domain.LoanApplication, error) {
	loan, err := s.loanRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canAccessUser(loan.ApplicantID) {
		return nil, domain.ErrForbidden
	}
	return loan, nil
}

// List returns every application to reviewers and the actor's own to customers
func (s *LoanService) List(ctx context.Context, actor Actor, page domain.Page) ([]*domain.LoanApplication, error) {
	if actor.CanReview() {
		return s.loanRepo.List(ctx, page)
	}
	return s.loanRepo.ListByApplicant(ctx, actor.UserID, page)
}

// ListByApplicant returns one user's applications
func (s *LoanService) ListByApplicant(ctx context.Context, actor Actor, applicantID uuid.UUID, page domain.Page) ([]*domain.LoanApplication, error) {
	if !actor.canAccessUser(applicantID) {
		return nil, domain.ErrForbidden
	}
	return s.loanRepo.ListByApplicant(ctx, applicantID, page)
}

// Update edits review comments and moves the application along the status
// machine. Approval and rejection have their own operations.
func (s *LoanService) Update(ctx context.Context, actor Actor, id int32, update domain.LoanApplicationUpdate) (*domain.LoanApplication, error) {
	if !actor.CanReview() {
		return nil, domain.ErrForbidden
	}

	current, err := s.loanRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	loan := *current

	if update.ReviewComments != nil {
		if len(*update.ReviewComments) > domain.MaxReviewCommentLength {
			return nil, domain.ErrReviewCommentsTooLong
		}
		loan.ReviewComments = update.ReviewComments
	}

	if update.Status != nil && *update.Status != loan.Status {
		next := *update.Status
		if !next.IsValid() {
			return nil, domain.ErrLoanStatusInvalid
		}
		if next == domain.LoanStatusApproved || next == domain.LoanStatusRejected || !loan.Status.CanTransitionTo(next) {
			return nil, domain.ErrLoanTransitionInvalid
		}
		loan.Status = next
	}

	updated, err := s.loanRepo.Update(ctx, &loan, current.Status)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("loan_id", id).
		Str("status", string(updated.Status)).
		Str("actor_id", actor.UserID.String()).
		Msg("Loan application updated")

	s.publisher.Publish(updated.ApplicantID, websocket.LoanApplicationUpdated(updated))
	return updated, nil
}

// Approve approves a pending or under-review application and generates its
// repayment schedule from the application's amount, rate and term, starting
// at the approval date. Status change and schedule are persisted together.
func (s *LoanService) Approve(ctx context.Context, actor Actor, id int32, comments *string) (*domain.LoanApplication, error) {
	if !actor.CanReview() {
		return nil, domain.ErrForbidden
	}
	if comments != nil && len(*comments) > domain.MaxReviewCommentLength {
		return nil, domain.ErrReviewCommentsTooLong
	}

	loan, err := s.loanRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !loan.Status.IsReviewable() {
		return nil, domain.ErrLoanNotReviewable
	}

	approvedAt := s.now().UTC()
	terms := amortization.Terms{
		Principal:         loan.Amount,
		AnnualRatePercent: loan.InterestRate,
		TermMonths:        int(loan.TermMonths),
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	schedule := toScheduleEntries(amortization.GenerateSchedule(terms, approvedAt, loan.ID))

	approved, err := s.loanRepo.Approve(ctx, id, domain.LoanReview{
		ReviewerID: actor.UserID,
		Comments:   comments,
		ReviewedAt: approvedAt,
	}, schedule)
	if err != nil {
		log.Error().Err(err).Int32("loan_id", id).Msg("Failed to approve loan application")
		return nil, err
	}

	log.Info().
		Int32("loan_id", id).
		Str("reviewer_id", actor.UserID.String()).
		Int("installments", len(schedule)).
		Msg("Loan application approved")

	s.metrics.LoanApproved()
	s.publisher.Publish(approved.ApplicantID, websocket.LoanApplicationApproved(approved))
	return approved, nil
}

// Reject rejects a pending or under-review application with an optional reason
func (s *LoanService) Reject(ctx context.Context, actor Actor, id int32, reason *string) (*domain.LoanApplication, error) {
	if !actor.CanReview() {
		return nil, domain.ErrForbidden
	}
	if reason != nil && len(*reason) > domain.MaxReviewCommentLength {
		return nil, domain.ErrReviewCommentsTooLong
	}

	rejected, err := s.loanRepo.Reject(ctx, id, domain.LoanReview{
		ReviewerID: actor.UserID,
		Comments:   reason,
		ReviewedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("loan_id", id).
		Str("reviewer_id", actor.UserID.String()).
		Msg("Loan application rejected")

	s.metrics.LoanRejected()
	s.publisher.Publish(rejected.ApplicantID, websocket.LoanApplicationRejected(rejected))
	return rejected, nil
}

// PrepaymentQuote is a what-if projection for a loan together with the
// ledger-derived inputs it was computed from
type PrepaymentQuote struct {
	LoanID             int32
	RemainingBalance   decimal.Decimal
	RemainingMonths    int
	CurrentInstallment decimal.Decimal
	AnnualRatePercent  decimal.Decimal
	PrepaymentAmount   decimal.Decimal
	Projection         *amortization.Projection
}

// ProjectPrepayment projects the effect of paying amount off an active loan
// now. Nothing is persisted.
func (s *LoanService) ProjectPrepayment(ctx context.Context, actor Actor, id int32, amount decimal.Decimal) (*PrepaymentQuote, error) {
	loan, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !loan.Status.HasSchedule() {
		return nil, domain.ErrLoanNotActive
	}

	entries, err := s.scheduleRepo.ListByLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrScheduleNotFound
	}

	// Only the settled prefix of the schedule counts as retired; an
	// installment settled ahead of an open one leaves the balance where the
	// prefix ends.
	remainingBalance := loan.Amount
	prefix := 0
	for prefix < len(entries) && entries[prefix].IsSettled() {
		remainingBalance = entries[prefix].RemainingBalanceAfter
		prefix++
	}
	remainingMonths := len(entries) - prefix
	if remainingMonths == 0 {
		return nil, domain.ErrLoanNotActive
	}
	installment := entries[prefix].AmountDue

	projection, err := amortization.ProjectPrepayment(amortization.PrepaymentRequest{
		RemainingBalance:   remainingBalance,
		PrepaymentAmount:   amount,
		CurrentInstallment: installment,
		RemainingMonths:    remainingMonths,
		AnnualRatePercent:  loan.InterestRate,
	})
	if err != nil {
		return nil, err
	}

	return &PrepaymentQuote{
		LoanID:             id,
		RemainingBalance:   remainingBalance,
		RemainingMonths:    remainingMonths,
		CurrentInstallment: installment,
		AnnualRatePercent:  loan.InterestRate,
		PrepaymentAmount:   amount,
		Projection:         projection,
	}, nil
}

// toScheduleEntries turns generated installments into unpaid schedule rows
func toScheduleEntries(entries []amortization.Entry) []*domain.RepaymentScheduleEntry {
	rows := make([]*domain.RepaymentScheduleEntry, len(entries))
	for i, e := range entries {
		rows[i] = &domain.RepaymentScheduleEntry{
			LoanID:                e.LoanID,
			InstallmentNumber:     int32(e.InstallmentNumber),
			DueDate:               e.DueDate,
			AmountDue:             e.AmountDue,
			PrincipalComponent:    e.PrincipalComponent,
			InterestComponent:     e.InterestComponent,
			RemainingBalanceAfter: e.RemainingBalanceAfter,
			Status:                domain.RepaymentStatusPending,
			AmountPaid:            decimal.Zero,
		}
	}
	return rows
}
