package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
)

const scheduleColumns = `id, loan_id, installment_number, due_date, amount_due, principal_component,
	interest_component, remaining_balance_after, status, amount_paid, payment_date, created_at, updated_at`

// RepaymentScheduleRepository implements domain.RepaymentScheduleRepository using PostgreSQL
type RepaymentScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewRepaymentScheduleRepository creates a new RepaymentScheduleRepository
func NewRepaymentScheduleRepository(pool *pgxpool.Pool) *RepaymentScheduleRepository {
	return &RepaymentScheduleRepository{pool: pool}
}

func scanScheduleEntry(row pgx.Row) (*domain.RepaymentScheduleEntry, error) {
	var e domain.RepaymentScheduleEntry
	var status string
	var amountDue, principal, interest, remaining, amountPaid pgtype.Numeric
	err := row.Scan(&e.ID, &e.LoanID, &e.InstallmentNumber, &e.DueDate, &amountDue, &principal,
		&interest, &remaining, &status, &amountPaid, &e.PaymentDate, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleEntryNotFound
		}
		return nil, err
	}
	e.Status = domain.RepaymentStatus(status)
	e.AmountDue = pgNumericToDecimal(amountDue)
	e.PrincipalComponent = pgNumericToDecimal(principal)
	e.InterestComponent = pgNumericToDecimal(interest)
	e.RemainingBalanceAfter = pgNumericToDecimal(remaining)
	e.AmountPaid = pgNumericToDecimal(amountPaid)
	return &e, nil
}

func collectScheduleEntries(rows pgx.Rows) ([]*domain.RepaymentScheduleEntry, error) {
	defer rows.Close()
	entries := make([]*domain.RepaymentScheduleEntry, 0)
	for rows.Next() {
		e, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scheduleCopyRow converts an entry into a CopyFrom row for loanID
func scheduleCopyRow(loanID int32, e *domain.RepaymentScheduleEntry) ([]any, error) {
	amountDue, err := decimalToPgNumeric(e.AmountDue)
	if err != nil {
		return nil, err
	}
	principal, err := decimalToPgNumeric(e.PrincipalComponent)
	if err != nil {
		return nil, err
	}
	interest, err := decimalToPgNumeric(e.InterestComponent)
	if err != nil {
		return nil, err
	}
	remaining, err := decimalToPgNumeric(e.RemainingBalanceAfter)
	if err != nil {
		return nil, err
	}
	amountPaid, err := decimalToPgNumeric(e.AmountPaid)
	if err != nil {
		return nil, err
	}

	dueDate := pgtype.Date{Time: e.DueDate, Valid: true}
	return []any{loanID, e.InstallmentNumber, dueDate, amountDue, principal, interest, remaining, string(e.Status), amountPaid}, nil
}

// GetByID retrieves a schedule entry by ID
func (r *RepaymentScheduleRepository) GetByID(ctx context.Context, id int32) (*domain.RepaymentScheduleEntry, error) {
	return scanScheduleEntry(r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM repayment_schedules WHERE id = $1`, id))
}

// ListByLoan returns the full schedule of a loan in installment order
func (r *RepaymentScheduleRepository) ListByLoan(ctx context.Context, loanID int32) ([]*domain.RepaymentScheduleEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+` FROM repayment_schedules
		WHERE loan_id = $1
		ORDER BY installment_number`,
		loanID,
	)
	if err != nil {
		return nil, err
	}
	return collectScheduleEntries(rows)
}

// ListByLoanPage returns a window of a loan's schedule in installment order
func (r *RepaymentScheduleRepository) ListByLoanPage(ctx context.Context, loanID int32, page domain.Page) ([]*domain.RepaymentScheduleEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+` FROM repayment_schedules
		WHERE loan_id = $1
		ORDER BY installment_number
		OFFSET $2 LIMIT $3`,
		loanID, page.Skip, page.Limit,
	)
	if err != nil {
		return nil, err
	}
	return collectScheduleEntries(rows)
}

// CountByLoan returns the number of installments of a loan
func (r *RepaymentScheduleRepository) CountByLoan(ctx context.Context, loanID int32) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM repayment_schedules WHERE loan_id = $1`, loanID).Scan(&count)
	return count, err
}

// MarkMissed flags pending, unsettled entries due before cutoff as missed
func (r *RepaymentScheduleRepository) MarkMissed(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE repayment_schedules
		SET status = 'missed', updated_at = NOW()
		WHERE status = 'pending' AND amount_paid < amount_due AND due_date < $1`,
		pgtype.Date{Time: cutoff, Valid: true},
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
