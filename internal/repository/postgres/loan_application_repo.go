package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
)

const loanColumns = `id, applicant_id, loan_type, amount, interest_rate, term_months, purpose, status,
	reviewed_by_id, review_comments, reviewed_at, created_at, updated_at`

// LoanApplicationRepository implements domain.LoanApplicationRepository using PostgreSQL
type LoanApplicationRepository struct {
	pool *pgxpool.Pool
}

// NewLoanApplicationRepository creates a new LoanApplicationRepository
func NewLoanApplicationRepository(pool *pgxpool.Pool) *LoanApplicationRepository {
	return &LoanApplicationRepository{pool: pool}
}

func scanLoan(row pgx.Row) (*domain.LoanApplication, error) {
	var l domain.LoanApplication
	var loanType, status string
	var amount, rate pgtype.Numeric
	err := row.Scan(&l.ID, &l.ApplicantID, &loanType, &amount, &rate, &l.TermMonths, &l.Purpose, &status,
		&l.ReviewedByID, &l.ReviewComments, &l.ReviewedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	l.LoanType = domain.LoanType(loanType)
	l.Status = domain.LoanStatus(status)
	l.Amount = pgNumericToDecimal(amount)
	l.InterestRate = pgNumericToDecimal(rate)
	return &l, nil
}

func collectLoans(rows pgx.Rows) ([]*domain.LoanApplication, error) {
	defer rows.Close()
	loans := make([]*domain.LoanApplication, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// Create inserts a new application
func (r *LoanApplicationRepository) Create(ctx context.Context, loan *domain.LoanApplication) (*domain.LoanApplication, error) {
	amount, err := decimalToPgNumeric(loan.Amount)
	if err != nil {
		return nil, err
	}
	rate, err := decimalToPgNumeric(loan.InterestRate)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO loan_applications (applicant_id, loan_type, amount, interest_rate, term_months, purpose, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+loanColumns,
		loan.ApplicantID, string(loan.LoanType), amount, rate, loan.TermMonths, loan.Purpose, string(loan.Status),
	)
	return scanLoan(row)
}

// GetByID retrieves an application by ID
func (r *LoanApplicationRepository) GetByID(ctx context.Context, id int32) (*domain.LoanApplication, error) {
	return scanLoan(r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loan_applications WHERE id = $1`, id))
}

// List returns a page of all applications, newest first
func (r *LoanApplicationRepository) List(ctx context.Context, page domain.Page) ([]*domain.LoanApplication, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+loanColumns+` FROM loan_applications
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`,
		page.Skip, page.Limit,
	)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

// ListByApplicant returns a page of one applicant's applications, newest first
func (r *LoanApplicationRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID, page domain.Page) ([]*domain.LoanApplication, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+loanColumns+` FROM loan_applications
		WHERE applicant_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3`,
		applicantID, page.Skip, page.Limit,
	)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

// Update writes the officer-editable fields of an application. The write
// only lands if the row still has the expected status, so a concurrent
// approval or payoff is never overwritten.
func (r *LoanApplicationRepository) Update(ctx context.Context, loan *domain.LoanApplication, expected domain.LoanStatus) (*domain.LoanApplication, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE loan_applications
		SET status = $2, review_comments = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING `+loanColumns,
		loan.ID, string(loan.Status), loan.ReviewComments, string(expected),
	)
	updated, err := scanLoan(row)
	if errors.Is(err, domain.ErrLoanNotFound) {
		return nil, domain.ErrLoanTransitionInvalid
	}
	return updated, err
}

// Approve marks a reviewable application approved and persists its schedule
// in the same transaction. The row lock makes concurrent approvals serialize;
// the loser sees a non-reviewable status.
func (r *LoanApplicationRepository) Approve(ctx context.Context, id int32, review domain.LoanReview, schedule []*domain.RepaymentScheduleEntry) (*domain.LoanApplication, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockReviewable(ctx, tx, id); err != nil {
		return nil, err
	}

	var existing int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM repayment_schedules WHERE loan_id = $1`, id).Scan(&existing); err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, domain.ErrScheduleAlreadyCreated
	}

	approved, err := setReview(ctx, tx, id, domain.LoanStatusApproved, review)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(schedule))
	for _, e := range schedule {
		row, err := scheduleCopyRow(id, e)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"repayment_schedules"},
		[]string{"loan_id", "installment_number", "due_date", "amount_due", "principal_component",
			"interest_component", "remaining_balance_after", "status", "amount_paid"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert schedule: %w", err)
	}
	if copied != int64(len(schedule)) {
		return nil, fmt.Errorf("inserted %d of %d schedule entries", copied, len(schedule))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return approved, nil
}

// Reject marks a reviewable application rejected
func (r *LoanApplicationRepository) Reject(ctx context.Context, id int32, review domain.LoanReview) (*domain.LoanApplication, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockReviewable(ctx, tx, id); err != nil {
		return nil, err
	}

	rejected, err := setReview(ctx, tx, id, domain.LoanStatusRejected, review)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rejected, nil
}

func lockReviewable(ctx context.Context, q querier, id int32) error {
	var status string
	err := q.QueryRow(ctx, `SELECT status FROM loan_applications WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrLoanNotFound
		}
		return err
	}
	if !domain.LoanStatus(status).IsReviewable() {
		return domain.ErrLoanNotReviewable
	}
	return nil
}

func setReview(ctx context.Context, q querier, id int32, status domain.LoanStatus, review domain.LoanReview) (*domain.LoanApplication, error) {
	row := q.QueryRow(ctx, `
		UPDATE loan_applications
		SET status = $2, reviewed_by_id = $3, review_comments = COALESCE($4, review_comments), reviewed_at = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+loanColumns,
		id, string(status), review.ReviewerID, review.Comments, review.ReviewedAt,
	)
	return scanLoan(row)
}
