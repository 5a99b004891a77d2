package ports

import (
	"context"

	"github.com/taxtooter/support-api/internal/core/domain"
)

// UserRepository defines persistence operations for user accounts.
// Implementations return domain.ErrUserNotFound for unknown ids or emails and
// domain.ErrUserExists when an email is already taken.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// List returns every user, or only those with the given role when role is non-empty.
	List(ctx context.Context, role string) ([]*domain.User, error)
	// Update overwrites name, email, role and password hash of an existing user.
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}
