package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
)

const documentColumns = `id, loan_id, uploaded_by_id, kind, file_name, object_base, created_at`

// LoanDocumentRepository implements domain.LoanDocumentRepository using PostgreSQL
type LoanDocumentRepository struct {
	pool *pgxpool.Pool
}

// NewLoanDocumentRepository creates a new LoanDocumentRepository
func NewLoanDocumentRepository(pool *pgxpool.Pool) *LoanDocumentRepository {
	return &LoanDocumentRepository{pool: pool}
}

func scanDocument(row pgx.Row) (*domain.LoanDocument, error) {
	var d domain.LoanDocument
	var kind string
	err := row.Scan(&d.ID, &d.LoanID, &d.UploadedByID, &kind, &d.FileName, &d.ObjectBase, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	d.Kind = domain.DocumentKind(kind)
	return &d, nil
}

// Create inserts document metadata
func (r *LoanDocumentRepository) Create(ctx context.Context, doc *domain.LoanDocument) (*domain.LoanDocument, error) {
	return scanDocument(r.pool.QueryRow(ctx, `
		INSERT INTO loan_documents (id, loan_id, uploaded_by_id, kind, file_name, object_base)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+documentColumns,
		doc.ID, doc.LoanID, doc.UploadedByID, string(doc.Kind), doc.FileName, doc.ObjectBase,
	))
}

// GetByID retrieves a document of a loan
func (r *LoanDocumentRepository) GetByID(ctx context.Context, loanID int32, id uuid.UUID) (*domain.LoanDocument, error) {
	return scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM loan_documents WHERE loan_id = $1 AND id = $2`, loanID, id))
}

// ListByLoan returns the documents of a loan, oldest first
func (r *LoanDocumentRepository) ListByLoan(ctx context.Context, loanID int32) ([]*domain.LoanDocument, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM loan_documents WHERE loan_id = $1 ORDER BY created_at, id`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.LoanDocument, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes document metadata
func (r *LoanDocumentRepository) Delete(ctx context.Context, loanID int32, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM loan_documents WHERE loan_id = $1 AND id = $2`, loanID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
