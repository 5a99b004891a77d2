package service

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxtooter/support-api/internal/core/domain"
	"github.com/taxtooter/support-api/internal/core/ports"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultSignedURLTTL   = 5 * time.Minute
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileServiceConfig tunes upload handling.
type FileServiceConfig struct {
	// KeyPrefix is prepended to every object key ("prod" or "local").
	KeyPrefix    string
	MaxBytes     int64
	SignedURLTTL time.Duration
}

// FileService validates uploads, names objects and hands them to storage.
type FileService struct {
	storage ports.FileStorage
	cfg     FileServiceConfig
	log     zerolog.Logger
	now     func() time.Time
}

func NewFileService(storage ports.FileStorage, cfg FileServiceConfig, log zerolog.Logger) *FileService {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxUploadBytes
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedURLTTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "local"
	}
	return &FileService{storage: storage, cfg: cfg, log: log, now: time.Now}
}

// Upload stores the file under "<prefix>/<unix millis>-<clean name>".
func (s *FileService) Upload(ctx context.Context, up ports.Upload) (*domain.FileRef, error) {
	if up.Body == nil || up.Filename == "" {
		return nil, domain.ErrFileRequired
	}
	if up.Size > s.cfg.MaxBytes {
		return nil, domain.ErrFileTooLarge
	}

	key := s.objectKey(up.Filename)
	path, err := s.storage.Save(ctx, key, up.Body, up.Size, up.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	s.log.Debug().Str("key", key).Int64("size", up.Size).Msg("file stored")
	return &domain.FileRef{
		Filename: up.Filename,
		Path:     path,
		Key:      key,
	}, nil
}

// SignedURL returns a temporary read URL for key and its lifetime.
func (s *FileService) SignedURL(ctx context.Context, key string) (string, time.Duration, error) {
	if !validObjectKey(key) {
		return "", 0, domain.ErrInvalidFileKey
	}
	url, err := s.storage.SignedURL(ctx, key, s.cfg.SignedURLTTL)
	if err != nil {
		return "", 0, fmt.Errorf("sign %s: %w", key, err)
	}
	return url, s.cfg.SignedURLTTL, nil
}

// Remove deletes a stored object, e.g. when the record that referenced it
// was never written.
func (s *FileService) Remove(ctx context.Context, key string) error {
	if !validObjectKey(key) {
		return domain.ErrInvalidFileKey
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	s.log.Debug().Str("key", key).Msg("file removed")
	return nil
}

func (s *FileService) objectKey(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == ".." {
		base = "file"
	}
	return fmt.Sprintf("%s/%d-%s", s.cfg.KeyPrefix, s.now().UnixMilli(), base)
}

func validObjectKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
