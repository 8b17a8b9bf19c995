package handler

import (
	"net/http"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UserHandler handles user management HTTP requests
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CreateUserRequest represents the admin create user request body
type CreateUserRequest struct {
	RegisterRequest
	Role string `json:"role"`
}

// UpdateUserRequest represents the update user request body.
// Role and isActive may only be changed by admins.
type UpdateUserRequest struct {
	FullName *string `json:"fullName,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
	Role     *string `json:"role,omitempty"`
}

func userIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, NewValidationError(c, "Invalid user ID", []ValidationError{
			{Field: "id", Message: "Must be a valid UUID"},
		})
	}
	return id, nil
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	role := domain.RoleCustomer
	if req.Role != "" {
		role = domain.Role(req.Role)
	}

	user, err := h.userService.Create(c.Request().Context(), actorFrom(c), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		return writeServiceError(c, err, "Failed to create user")
	}

	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// GetUsers handles GET /api/v1/users
func (h *UserHandler) GetUsers(c echo.Context) error {
	page, err := pageFromQuery(c)
	if err != nil {
		return err
	}

	users, err := h.userService.List(c.Request().Context(), actorFrom(c), page)
	if err != nil {
		return writeServiceError(c, err, "Failed to list users")
	}

	response := make([]UserResponse, len(users))
	for i, u := range users {
		response[i] = toUserResponse(u)
	}
	return c.JSON(http.StatusOK, response)
}

// GetUser handles GET /api/v1/users/:id
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	user, err := h.userService.Get(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return writeServiceError(c, err, "Failed to load user")
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// UpdateUser handles PUT /api/v1/users/:id
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	update := domain.UserUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
		IsActive: req.IsActive,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		update.Role = &role
	}

	user, err := h.userService.Update(c.Request().Context(), actorFrom(c), id, update)
	if err != nil {
		return writeServiceError(c, err, "Failed to update user")
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// DeleteUser handles DELETE /api/v1/users/:id
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := userIDParam(c)
	if err != nil {
		return err
	}

	if err := h.userService.Delete(c.Request().Context(), actorFrom(c), id); err != nil {
		return writeServiceError(c, err, "Failed to delete user")
	}
	return c.NoContent(http.StatusNoContent)
}
