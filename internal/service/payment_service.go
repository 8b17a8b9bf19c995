package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/metrics"
	"github.com/dafibh/loanledger/loanledger-backend/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PaymentService records repayments against schedule entries and reports
// on a loan's repayment progress
type PaymentService struct {
	loanRepo     domain.LoanApplicationRepository
	scheduleRepo domain.RepaymentScheduleRepository
	paymentRepo  domain.PaymentRepository
	publisher    websocket.EventPublisher
	metrics      metrics.Recorder
	now          func() time.Time
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	loanRepo domain.LoanApplicationRepository,
	scheduleRepo domain.RepaymentScheduleRepository,
	paymentRepo domain.PaymentRepository,
	publisher websocket.EventPublisher,
	recorder metrics.Recorder,
) *PaymentService {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &PaymentService{
		loanRepo:     loanRepo,
		scheduleRepo: scheduleRepo,
		paymentRepo:  paymentRepo,
		publisher:    publisher,
		metrics:      recorder,
		now:          time.Now,
	}
}

// loanFor loads a loan and checks the actor may see it
func (s *PaymentService) loanFor(ctx context.Context, actor Actor, loanID int32) (*domain.LoanApplication, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !actor.canAccessUser(loan.ApplicantID) {
		return nil, domain.ErrForbidden
	}
	return loan, nil
}

// GetSchedule returns a page of a loan's schedule. A loan without a schedule,
// or a page past its end, is reported as not found.
func (s *PaymentService) GetSchedule(ctx context.Context, actor Actor, loanID int32, page domain.Page) ([]*domain.RepaymentScheduleEntry, error) {
	if _, err := s.loanFor(ctx, actor, loanID); err != nil {
		return nil, err
	}
	entries, err := s.scheduleRepo.ListByLoanPage(ctx, loanID, page)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrScheduleNotFound
	}
	return entries, nil
}

// GetEntry returns one schedule entry
func (s *PaymentService) GetEntry(ctx context.Context, actor Actor, scheduleID int32) (*domain.RepaymentScheduleEntry, error) {
	entry, err := s.scheduleRepo.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loanFor(ctx, actor, entry.LoanID); err != nil {
		return nil, err
	}
	return entry, nil
}

// MakePaymentInput is a repayment against one schedule entry
type MakePaymentInput struct {
	Amount               decimal.Decimal
	PaymentMethod        *string
	TransactionReference string
	Notes                *string
	// PaymentDate defaults to now; only loan officers and admins may backdate
	PaymentDate *time.Time
}

// PaymentReceipt is the outcome of a recorded payment
type PaymentReceipt struct {
	Payment   *domain.Payment
	Entry     *domain.RepaymentScheduleEntry
	Remaining decimal.Decimal
	LoanPaid  bool
}

// MakePayment records amount against the entry. The amount must be positive
// and no more than what is still due on the entry; the transaction reference
// must be unique. The entry update and the ledger row are written together.
func (s *PaymentService) MakePayment(ctx context.Context, actor Actor, scheduleID int32, input MakePaymentInput) (*PaymentReceipt, error) {
	entry, err := s.scheduleRepo.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	loan, err := s.loanFor(ctx, actor, entry.LoanID)
	if err != nil {
		return nil, err
	}
	if !loan.Status.HasSchedule() {
		return nil, domain.ErrLoanNotActive
	}

	paidAt := s.now().UTC()
	if input.PaymentDate != nil {
		if !actor.CanReview() {
			return nil, domain.ErrForbidden
		}
		paidAt = input.PaymentDate.UTC()
	}

	payment := &domain.Payment{
		LoanID:               entry.LoanID,
		ScheduleID:           scheduleID,
		Amount:               input.Amount.Round(2),
		PaymentDate:          paidAt,
		PaymentMethod:        input.PaymentMethod,
		TransactionReference: strings.TrimSpace(input.TransactionReference),
		Notes:                input.Notes,
	}
	processedBy := actor.UserID
	payment.ProcessedByID = &processedBy
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	recorded, updated, err := s.paymentRepo.Record(ctx, payment, func(e *domain.RepaymentScheduleEntry) error {
		if e.IsSettled() {
			return domain.ErrEntryAlreadySettled
		}
		if payment.Amount.GreaterThan(e.RemainingDue()) {
			return domain.ErrPaymentExceedsDue
		}
		e.ApplyPayment(payment.Amount, paidAt)
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrPaymentExceedsDue) && !errors.Is(err, domain.ErrPaymentReferenceTaken) {
			log.Error().Err(err).Int32("schedule_id", scheduleID).Msg("Failed to record payment")
		}
		return nil, err
	}

	receipt := &PaymentReceipt{
		Payment:   recorded,
		Entry:     updated,
		Remaining: updated.RemainingDue(),
	}

	log.Info().
		Int32("loan_id", updated.LoanID).
		Int32("schedule_id", scheduleID).
		Str("amount", recorded.Amount.String()).
		Str("status", string(updated.Status)).
		Msg("Payment recorded")

	s.metrics.PaymentRecorded(recorded.Amount.InexactFloat64())
	s.publisher.Publish(loan.ApplicantID, websocket.RepaymentPaid(updated))

	if after, err := s.loanRepo.GetByID(ctx, loan.ID); err == nil && after.Status == domain.LoanStatusPaidOff {
		receipt.LoanPaid = true
		log.Info().Int32("loan_id", loan.ID).Msg("Loan paid off")
		s.publisher.Publish(loan.ApplicantID, websocket.LoanApplicationPaidOff(after))
	}

	return receipt, nil
}

// GetHistory returns a page of a loan's payment ledger, newest first
func (s *PaymentService) GetHistory(ctx context.Context, actor Actor, loanID int32, page domain.Page) ([]*domain.Payment, error) {
	if _, err := s.loanFor(ctx, actor, loanID); err != nil {
		return nil, err
	}
	return s.paymentRepo.ListByLoan(ctx, loanID, page)
}

// GetBalance summarizes what has been paid and what is outstanding on a loan
func (s *PaymentService) GetBalance(ctx context.Context, actor Actor, loanID int32) (*domain.LoanBalance, error) {
	if _, err := s.loanFor(ctx, actor, loanID); err != nil {
		return nil, err
	}
	entries, err := s.scheduleRepo.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrScheduleNotFound
	}
	return domain.SummarizeBalance(loanID, entries), nil
}
