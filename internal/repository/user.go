package repository

import (
	"context"

	"taxi/internal/domain"
)

// UserRepository defines the read operations the booking core needs on users.
type UserRepository interface {
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// ListByRole retrieves all users with the given role ordered by ID ascending.
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
}
