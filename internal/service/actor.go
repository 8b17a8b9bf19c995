package service

import (
	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/google/uuid"
)

// Actor is the authenticated caller on whose behalf a service method runs
type Actor struct {
	UserID uuid.UUID
	Role   domain.Role
}

// IsAdmin reports whether the actor is an administrator
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// CanReview reports whether the actor may review loan applications
func (a Actor) CanReview() bool {
	return a.Role.CanReviewLoans()
}

// canAccessUser reports whether the actor may read data owned by ownerID
func (a Actor) canAccessUser(ownerID uuid.UUID) bool {
	return a.UserID == ownerID || a.CanReview()
}
