package domain

import "errors"

// Domain errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrAlreadyExists   = errors.New("resource already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("forbidden")
	ErrStorageDisabled = errors.New("document storage is not configured")
)

// Pagination defaults for list endpoints
const (
	DefaultPageSkip  = 0
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Page is a skip/limit window over a list
type Page struct {
	Skip  int
	Limit int
}

// NewPage clamps skip and limit to sane bounds, falling back to the defaults
func NewPage(skip, limit int) Page {
	if skip < 0 {
		skip = DefaultPageSkip
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Skip: skip, Limit: limit}
}
