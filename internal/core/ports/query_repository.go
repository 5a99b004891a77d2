package ports

import (
	"context"

	"github.com/taxtooter/support-api/internal/core/domain"
)

// QueryFilter carries the parameters for listing queries.
type QueryFilter struct {
	CustomerID   string // empty = no filter
	ConsultantID string // empty = no filter
	Status       string // optional: filter by query status
	Page         int    // 1-based
	Limit        int    // max rows per page (capped at 100 by service)
}

// QueryRepository defines persistence operations for queries.
//
// Assign and Resolve are conditional single-document updates: they only apply
// when the stored status can transition to the target status. A query that
// exists but is in the wrong state yields domain.ErrInvalidTransition; an
// unknown id yields domain.ErrQueryNotFound.
type QueryRepository interface {
	Create(ctx context.Context, q *domain.Query) (*domain.Query, error)
	FindByID(ctx context.Context, id string) (*domain.Query, error)
	// List returns a page of queries matching filter, newest first, and the total count.
	List(ctx context.Context, filter QueryFilter) ([]*domain.Query, int64, error)
	Assign(ctx context.Context, id, consultantID string) (*domain.Query, error)
	AddResponse(ctx context.Context, id string, resp domain.Response) (*domain.Query, error)
	Resolve(ctx context.Context, id string) (*domain.Query, error)
}
