package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrDocumentKindInvalid = errors.New("document kind must be one of id_card, payslip, bank_statement, other")
)

// DocumentKind classifies a supporting document attached to an application
type DocumentKind string

const (
	DocumentKindIDCard        DocumentKind = "id_card"
	DocumentKindPayslip       DocumentKind = "payslip"
	DocumentKindBankStatement DocumentKind = "bank_statement"
	DocumentKindOther         DocumentKind = "other"
)

func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentKindIDCard, DocumentKindPayslip, DocumentKindBankStatement, DocumentKindOther:
		return true
	}
	return false
}

// LoanDocument is an uploaded image supporting a loan application. ObjectBase
// is the storage key prefix shared by its size variants.
type LoanDocument struct {
	ID           uuid.UUID    `json:"id"`
	LoanID       int32        `json:"loanId"`
	UploadedByID uuid.UUID    `json:"uploadedById"`
	Kind         DocumentKind `json:"kind"`
	FileName     string       `json:"fileName"`
	ObjectBase   string       `json:"-"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// LoanDocumentRepository defines the interface for document metadata persistence
type LoanDocumentRepository interface {
	Create(ctx context.Context, doc *LoanDocument) (*LoanDocument, error)
	GetByID(ctx context.Context, loanID int32, id uuid.UUID) (*LoanDocument, error)
	ListByLoan(ctx context.Context, loanID int32) ([]*LoanDocument, error)
	Delete(ctx context.Context, loanID int32, id uuid.UUID) error
}
