package ports

import (
	"context"

	"github.com/taxtooter/support-api/internal/core/domain"
)

// UpdateProfileInput carries self-service profile changes. Nil fields are left untouched.
type UpdateProfileInput struct {
	Name     *string
	Email    *string
	Password *string
}

// AdminUpdateInput carries admin changes to another account. Nil fields are left untouched.
type AdminUpdateInput struct {
	Name  *string
	Email *string
	Role  *string
}

type UserService interface {
	List(ctx context.Context, role string) ([]*domain.User, error)
	Consultants(ctx context.Context) ([]*domain.User, error)
	Profile(ctx context.Context, actor domain.Actor) (*domain.User, error)
	UpdateProfile(ctx context.Context, actor domain.Actor, in UpdateProfileInput) (*domain.User, error)
	AdminUpdate(ctx context.Context, actor domain.Actor, id string, in AdminUpdateInput) (*domain.User, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
}
