package ports

import (
	"context"

	"github.com/taxtooter/support-api/internal/core/domain"
)

// ListScope selects which queries a list call may see.
type ListScope string

const (
	ScopeAll      ListScope = "all"      // admin
	ScopeMine     ListScope = "mine"     // customer: own queries
	ScopeAssigned ListScope = "assigned" // consultant: assigned to me
)

// CreateQueryInput carries the data for a new query.
type CreateQueryInput struct {
	Title       string
	Description string
	Attachment  *Upload // optional
}

// RespondInput carries a new response message.
type RespondInput struct {
	Message string
	File    *Upload // optional
}

// ListQueriesInput carries list parameters.
type ListQueriesInput struct {
	Scope  ListScope
	Status string
	Page   int
	Limit  int
}

// ListQueriesResult is a paginated page of queries.
type ListQueriesResult struct {
	Items      []*domain.Query `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// QueryService drives the query lifecycle.
type QueryService interface {
	Create(ctx context.Context, actor domain.Actor, in CreateQueryInput) (*domain.Query, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Query, error)
	List(ctx context.Context, actor domain.Actor, in ListQueriesInput) (*ListQueriesResult, error)
	Assign(ctx context.Context, actor domain.Actor, id, consultantID string) (*domain.Query, error)
	Respond(ctx context.Context, actor domain.Actor, id string, in RespondInput) (*domain.Query, error)
	Resolve(ctx context.Context, actor domain.Actor, id string) (*domain.Query, error)
}
