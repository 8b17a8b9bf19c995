package domain

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUsernameTaken       = errors.New("username is already registered")
	ErrEmailTaken          = errors.New("email is already registered")
	ErrUsernameInvalid     = errors.New("username must be between 3 and 50 characters")
	ErrEmailInvalid        = errors.New("email address is invalid")
	ErrFullNameInvalid     = errors.New("full name must be between 2 and 100 characters")
	ErrPhoneTooLong        = errors.New("phone number must be 20 characters or less")
	ErrPasswordInvalid     = errors.New("password must be between 8 and 128 characters")
	ErrRoleInvalid         = errors.New("role must be one of customer, loan_officer, admin")
	ErrInvalidCredentials  = errors.New("incorrect username or password")
	ErrUserInactive        = errors.New("user account is inactive")
	ErrPasswordMismatch    = errors.New("current password is incorrect")
	ErrCannotDeleteSelf    = errors.New("users cannot delete their own account")
	ErrRoleChangeForbidden = errors.New("only admins can change role or active state")
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinFullNameLength = 2
	MaxFullNameLength = 100
	MaxPhoneLength    = 20
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// Role is the authorization level of a user
type Role string

const (
	RoleCustomer    Role = "customer"
	RoleLoanOfficer Role = "loan_officer"
	RoleAdmin       Role = "admin"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleLoanOfficer, RoleAdmin:
		return true
	}
	return false
}

// CanReviewLoans reports whether the role may approve, reject and update applications
func (r Role) CanReviewLoans() bool {
	return r == RoleLoanOfficer || r == RoleAdmin
}

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Validate checks the profile fields of a user
func (u *User) Validate() error {
	username := strings.TrimSpace(u.Username)
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return ErrUsernameInvalid
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrEmailInvalid
	}
	fullName := strings.TrimSpace(u.FullName)
	if len(fullName) < MinFullNameLength || len(fullName) > MaxFullNameLength {
		return ErrFullNameInvalid
	}
	if u.Phone != nil && len(*u.Phone) > MaxPhoneLength {
		return ErrPhoneTooLong
	}
	if !u.Role.IsValid() {
		return ErrRoleInvalid
	}
	return nil
}

// ValidatePassword checks a plaintext password before it is hashed
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return ErrPasswordInvalid
	}
	return nil
}

// UserUpdate carries the optional fields of a partial user update
type UserUpdate struct {
	FullName *string
	Phone    *string
	IsActive *bool
	Role     *Role
}

// TouchesPrivilegedFields reports whether the update changes role or active state
func (u *UserUpdate) TouchesPrivilegedFields() bool {
	return u.IsActive != nil || u.Role != nil
}

// UserRepository defines the interface for user persistence operations
type UserRepository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, page Page) ([]*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}
