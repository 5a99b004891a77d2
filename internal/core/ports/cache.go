package ports

import "context"

// ListCache is an opportunistic JSON cache for list results.
type ListCache interface {
	// Get decodes the cached value for key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// Generation returns the counter for prefix, 0 when never bumped.
	Generation(ctx context.Context, prefix string) (int64, error)
	// Bump advances the counter for prefix.
	Bump(ctx context.Context, prefix string) error
}
