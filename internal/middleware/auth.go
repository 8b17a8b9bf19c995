package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
)

// CustomClaims contains the private claims of an access token
type CustomClaims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// Validate implements validator.CustomClaims
func (c CustomClaims) Validate(ctx context.Context) error {
	if !c.Role.IsValid() {
		return domain.ErrRoleInvalid
	}
	return nil
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"
	// UserIDKey is the context key for the authenticated user ID (subject)
	UserIDKey contextKey = "user_id"
	// RoleKey is the context key for the authenticated user's current role
	RoleKey contextKey = "role"
)

// UserProvider resolves the current role of a token subject. It returns
// domain.ErrUserInactive for deactivated accounts.
type UserProvider interface {
	GetActiveRole(ctx context.Context, userID uuid.UUID) (domain.Role, error)
}

// AuthMiddleware provides JWT validation middleware
type AuthMiddleware struct {
	validator    *validator.Validator
	userProvider UserProvider
}

// NewAuthMiddleware creates a new AuthMiddleware validating HS256 tokens
// signed with secret for the given issuer and audience
func NewAuthMiddleware(secret, issuer, audience string, userProvider UserProvider) (*AuthMiddleware, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	keyFunc := func(ctx context.Context) (interface{}, error) {
		return []byte(secret), nil
	}

	jwtValidator, err := validator.New(
		keyFunc,
		validator.HS256,
		issuer,
		[]string{audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &CustomClaims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMiddleware{
		validator:    jwtValidator,
		userProvider: userProvider,
	}, nil
}

// ValidateToken validates a raw token and returns its subject and role
func (m *AuthMiddleware) ValidateToken(ctx context.Context, token string) (uuid.UUID, domain.Role, error) {
	claims, err := m.validator.ValidateToken(ctx, token)
	if err != nil {
		return uuid.Nil, "", err
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return uuid.Nil, "", errors.New("invalid claims")
	}

	userID, err := uuid.Parse(validatedClaims.RegisteredClaims.Subject)
	if err != nil {
		return uuid.Nil, "", errors.New("invalid subject")
	}

	var role domain.Role
	if custom, ok := validatedClaims.CustomClaims.(*CustomClaims); ok {
		role = custom.Role
	}
	if m.userProvider != nil {
		role, err = m.userProvider.GetActiveRole(ctx, userID)
		if err != nil {
			return uuid.Nil, "", err
		}
	}
	return userID, role, nil
}

// Authenticate returns an Echo middleware that validates JWT tokens
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return unauthorizedError(c, "Missing authorization header")
			}

			// Check Bearer prefix
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return unauthorizedError(c, "Invalid authorization header format")
			}

			claims, err := m.validator.ValidateToken(c.Request().Context(), parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				return unauthorizedError(c, "Could not validate credentials")
			}

			validatedClaims, ok := claims.(*validator.ValidatedClaims)
			if !ok {
				return unauthorizedError(c, "Invalid claims")
			}

			userID, err := uuid.Parse(validatedClaims.RegisteredClaims.Subject)
			if err != nil {
				return unauthorizedError(c, "Invalid token subject")
			}

			role := domain.RoleCustomer
			if custom, ok := validatedClaims.CustomClaims.(*CustomClaims); ok {
				role = custom.Role
			}

			// The stored role wins over the one baked into the token
			if m.userProvider != nil {
				role, err = m.userProvider.GetActiveRole(c.Request().Context(), userID)
				if err != nil {
					log.Debug().Err(err).Str("user_id", userID.String()).Msg("User lookup failed")
					if errors.Is(err, domain.ErrUserInactive) {
						return forbiddenError(c, "User account is inactive")
					}
					return unauthorizedError(c, "User not found")
				}
			}

			ctx := context.WithValue(c.Request().Context(), ClaimsKey, validatedClaims)
			ctx = context.WithValue(ctx, UserIDKey, userID)
			ctx = context.WithValue(ctx, RoleKey, role)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequireRole returns an Echo middleware that admits only the given roles.
// It must run after Authenticate.
func RequireRole(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			current := GetRole(c)
			for _, role := range roles {
				if current == role {
					return next(c)
				}
			}
			log.Debug().Str("role", string(current)).Str("path", c.Path()).Msg("Role not permitted")
			return forbiddenError(c, "Not enough permissions")
		}
	}
}

// GetUserID extracts the authenticated user ID from the context
func GetUserID(c echo.Context) uuid.UUID {
	if id, ok := c.Request().Context().Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetRole extracts the authenticated user's role from the context
func GetRole(c echo.Context) domain.Role {
	if role, ok := c.Request().Context().Value(RoleKey).(domain.Role); ok {
		return role
	}
	return ""
}

// GetClaims extracts the validated claims from the context
func GetClaims(c echo.Context) *validator.ValidatedClaims {
	if claims, ok := c.Request().Context().Value(ClaimsKey).(*validator.ValidatedClaims); ok {
		return claims
	}
	return nil
}

// GetCustomClaims extracts the custom claims from the context
func GetCustomClaims(c echo.Context) *CustomClaims {
	claims := GetClaims(c)
	if claims == nil {
		return nil
	}
	if custom, ok := claims.CustomClaims.(*CustomClaims); ok {
		return custom
	}
	return nil
}
