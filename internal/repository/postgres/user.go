package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taxi/internal/domain"
	"taxi/internal/repository"
)

const userColumns = `id, username, role, COALESCE(name, ''), COALESCE(address, ''), COALESCE(phone, ''), COALESCE(email, '')`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListByRole retrieves all users with the given role ordered by ID.
func (r *UserRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var role string
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&role,
		&user.Name,
		&user.Address,
		&user.Phone,
		&user.Email,
	); err != nil {
		return nil, err
	}

	user.Role = domain.Role(role)
	if !user.Role.Valid() {
		return nil, fmt.Errorf("user %d role %q: %w", user.ID, role, repository.ErrCorruptRow)
	}
	return &user, nil
}
