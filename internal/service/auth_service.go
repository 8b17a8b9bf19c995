package service

import (
	"context"
	"errors"
	"strings"

	"github.com/dafibh/loanledger/loanledger-backend/internal/auth"
	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TokenIssuer signs access tokens for authenticated users
type TokenIssuer interface {
	Issue(user *domain.User) (*auth.IssuedToken, error)
}

// AuthService handles registration, login and password management
type AuthService struct {
	userRepo domain.UserRepository
	tokens   TokenIssuer
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo domain.UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// RegisterInput is the data needed to create an account
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Phone    *string
	Password string
	Role     domain.Role
}

// LoginResult is a freshly issued token and the user it belongs to
type LoginResult struct {
	Token *auth.IssuedToken
	User  *domain.User
}

// Register creates a customer account. Self-registration always yields the
// customer role.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	input.Role = domain.RoleCustomer
	return createUser(ctx, s.userRepo, input)
}

// Login verifies credentials and issues an access token
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		log.Debug().Str("user_id", user.ID.String()).Msg("Login rejected: wrong password")
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to issue token")
		return nil, err
	}

	log.Info().Str("user_id", user.ID.String()).Msg("User logged in")
	return &LoginResult{Token: token, User: user}, nil
}

// Me returns the authenticated user's profile
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// ChangePassword replaces the user's password after verifying the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, currentPassword) {
		return domain.ErrPasswordMismatch
	}
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	log.Info().Str("user_id", userID.String()).Msg("Password changed")
	return nil
}

// GetActiveRole returns the stored role of an active user
func (s *AuthService) GetActiveRole(ctx context.Context, userID uuid.UUID) (domain.Role, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", domain.ErrUserInactive
	}
	return user.Role, nil
}

// createUser validates input, hashes the password and stores the user
func createUser(ctx context.Context, repo domain.UserRepository, input RegisterInput) (*domain.User, error) {
	if input.Role == "" {
		input.Role = domain.RoleCustomer
	}
	user := &domain.User{
		Username: strings.TrimSpace(input.Username),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		FullName: strings.TrimSpace(input.FullName),
		Phone:    input.Phone,
		Role:     input.Role,
		IsActive: true,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	created, err := repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", created.ID.String()).
		Str("role", string(created.Role)).
		Msg("User registered")
	return created, nil
}
