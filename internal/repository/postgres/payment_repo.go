package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
)

const paymentColumns = `id, loan_id, schedule_id, amount, payment_date, payment_method, transaction_reference,
	notes, processed_by_id, created_at`

// PaymentRepository implements domain.PaymentRepository using PostgreSQL
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var amount pgtype.Numeric
	err := row.Scan(&p.ID, &p.LoanID, &p.ScheduleID, &amount, &p.PaymentDate, &p.PaymentMethod,
		&p.TransactionReference, &p.Notes, &p.ProcessedByID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Amount = pgNumericToDecimal(amount)
	return &p, nil
}

// Record applies a payment to its schedule entry and appends it to the ledger.
// The entry row is locked for the duration so concurrent payments against the
// same installment serialize; apply sees the committed state of the entry.
func (r *PaymentRepository) Record(ctx context.Context, payment *domain.Payment, apply func(entry *domain.RepaymentScheduleEntry) error) (*domain.Payment, *domain.RepaymentScheduleEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	entry, err := scanScheduleEntry(tx.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM repayment_schedules WHERE id = $1 FOR UPDATE`, payment.ScheduleID))
	if err != nil {
		return nil, nil, err
	}

	if err := apply(entry); err != nil {
		return nil, nil, err
	}

	amountPaid, err := decimalToPgNumeric(entry.AmountPaid)
	if err != nil {
		return nil, nil, err
	}
	updated, err := scanScheduleEntry(tx.QueryRow(ctx, `
		UPDATE repayment_schedules
		SET amount_paid = $2, payment_date = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+scheduleColumns,
		entry.ID, amountPaid, entry.PaymentDate, string(entry.Status),
	))
	if err != nil {
		return nil, nil, err
	}

	amount, err := decimalToPgNumeric(payment.Amount)
	if err != nil {
		return nil, nil, err
	}
	created, err := scanPayment(tx.QueryRow(ctx, `
		INSERT INTO payments (loan_id, schedule_id, amount, payment_date, payment_method, transaction_reference, notes, processed_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		updated.LoanID, updated.ID, amount, payment.PaymentDate, payment.PaymentMethod,
		payment.TransactionReference, payment.Notes, payment.ProcessedByID,
	))
	if err != nil {
		if isUniqueViolation(err, "payments_transaction_reference_key") {
			return nil, nil, domain.ErrPaymentReferenceTaken
		}
		return nil, nil, err
	}

	if err := markPaidOffIfSettled(ctx, tx, updated.LoanID); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return created, updated, nil
}

// markPaidOffIfSettled closes out a loan whose every installment is settled
func markPaidOffIfSettled(ctx context.Context, q querier, loanID int32) error {
	var unsettled int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM repayment_schedules WHERE loan_id = $1 AND amount_paid < amount_due`, loanID,
	).Scan(&unsettled)
	if err != nil {
		return err
	}
	if unsettled > 0 {
		return nil
	}
	_, err = q.Exec(ctx, `
		UPDATE loan_applications SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)`,
		loanID, string(domain.LoanStatusPaidOff), string(domain.LoanStatusApproved), string(domain.LoanStatusDisbursed),
	)
	return err
}

// ListByLoan returns a page of a loan's payments, newest first
func (r *PaymentRepository) ListByLoan(ctx context.Context, loanID int32, page domain.Page) ([]*domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE loan_id = $1
		ORDER BY payment_date DESC, id DESC
		OFFSET $2 LIMIT $3`,
		loanID, page.Skip, page.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// GetByReference retrieves a payment by its transaction reference
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_reference = $1`, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}
