package service

import (
	"context"
	"strings"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UserService manages user accounts on behalf of an authenticated actor
type UserService struct {
	userRepo domain.UserRepository
}

// NewUserService creates a new UserService
func NewUserService(userRepo domain.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// Create adds a user with any role (admin only)
func (s *UserService) Create(ctx context.Context, actor Actor, input RegisterInput) (*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return createUser(ctx, s.userRepo, input)
}

// Get returns a user. Customers may only read themselves.
func (s *UserService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*domain.User, error) {
	if !actor.canAccessUser(id) {
		return nil, domain.ErrForbidden
	}
	return s.userRepo.GetByID(ctx, id)
}

// List returns a page of users (loan officers and admins)
func (s *UserService) List(ctx context.Context, actor Actor, page domain.Page) ([]*domain.User, error) {
	if !actor.CanReview() {
		return nil, domain.ErrForbidden
	}
	return s.userRepo.List(ctx, page)
}

// Update applies a partial update. Users may edit their own profile; role and
// active state are admin only.
func (s *UserService) Update(ctx context.Context, actor Actor, id uuid.UUID, update domain.UserUpdate) (*domain.User, error) {
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if update.TouchesPrivilegedFields() && !actor.IsAdmin() {
		return nil, domain.ErrRoleChangeForbidden
	}

	current, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user := *current

	if update.FullName != nil {
		user.FullName = strings.TrimSpace(*update.FullName)
	}
	if update.Phone != nil {
		user.Phone = update.Phone
	}
	if update.IsActive != nil {
		user.IsActive = *update.IsActive
	}
	if update.Role != nil {
		user.Role = *update.Role
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.userRepo.Update(ctx, &user)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", id.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("User updated")
	return updated, nil
}

// Delete removes a user (admin only, never oneself)
func (s *UserService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if actor.UserID == id {
		return domain.ErrCannotDeleteSelf
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}

	log.Info().
		Str("user_id", id.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("User deleted")
	return nil
}
