package ports

import (
	"context"
	"io"
	"time"

	"github.com/taxtooter/support-api/internal/core/domain"
)

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FileStorage persists uploaded objects.
type FileStorage interface {
	// Save writes body under key and returns the object's location.
	Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// SignedURL returns a URL granting temporary read access to key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// FileService validates uploads and names objects.
type FileService interface {
	Upload(ctx context.Context, up Upload) (*domain.FileRef, error)
	SignedURL(ctx context.Context, key string) (string, time.Duration, error)
	Remove(ctx context.Context, key string) error
}
