package ports

import (
	"context"

	"github.com/taxtooter/support-api/internal/core/domain"
)

// RegisterInput is the DTO for account creation.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// AuthService issues and verifies identities.
type AuthService interface {
	// Register creates an account and returns a signed token for it. requester
	// is the authenticated caller, or nil for anonymous sign-up.
	Register(ctx context.Context, in RegisterInput, requester *domain.Actor) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
}
