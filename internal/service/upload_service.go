package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/observability/metrics"
	"github.com/aryan0dhankhar/productcatalog/internal/observability/tracing"
	"github.com/aryan0dhankhar/productcatalog/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/productcatalog/internal/reliability/retry"
)

const (
	DefaultMaxUploadBytes = 5 << 20
	defaultExtension      = "jpg"
	uploadFolder          = "products"
)

// AllowedImageTypes are the content types accepted for product images
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// ErrUploadFailed wraps blob store failures
var ErrUploadFailed = errors.New("failed to upload file")

// BlobStore stores bytes under key and returns their public URL
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// UploadFile is an image received from a caller
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadService validates images and stores them in the blob store
type UploadService struct {
	store    BlobStore
	maxBytes int64
	breaker  *circuitbreaker.CircuitBreaker
	retry    *retry.Config
	logger   *slog.Logger
}

// NewUploadService creates an upload service. A nil store means the bucket is
// not configured and every upload is rejected.
func NewUploadService(store BlobStore, maxBytes int64, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	breaker := circuitbreaker.New("blobstore", 5, 2, 30*time.Second)
	breaker.SetStateChangeCallback(func(name string, from, to circuitbreaker.State) {
		metrics.SetCircuitState(name, int(to))
		logger.Warn("circuit breaker state changed",
			slog.String("dependency", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	breaker.SetFailurePredicate(func(err error) bool {
		return !errors.Is(err, context.Canceled)
	})

	cfg := retry.DefaultConfig()
	cfg.MaxBackoff = 2 * time.Second
	cfg.Retryable = func(err error) bool {
		return !errors.Is(err, circuitbreaker.ErrOpen) && !errors.Is(err, context.Canceled)
	}

	return &UploadService{
		store:    store,
		maxBytes: maxBytes,
		breaker:  breaker,
		retry:    cfg,
		logger:   logger,
	}
}

// MaxBytes is the largest accepted image
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates f and stores it under products/<uuid>.<ext>, returning its URL
func (s *UploadService) Upload(ctx context.Context, f *UploadFile) (_ string, err error) {
	ctx, span := tracing.Start(ctx, "UploadService.Upload")
	start := time.Now()
	defer func() {
		tracing.End(span, err)
		size := int64(0)
		if f != nil {
			size = int64(len(f.Data))
		}
		metrics.ObserveUpload(resultOf(err), size, time.Since(start))
	}()

	if err := s.check(f); err != nil {
		return "", err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate object key: %w", err)
	}
	key := fmt.Sprintf("%s/%s.%s", uploadFolder, id, extension(f.Filename))

	url, err := retry.Do(ctx, s.retry, s.logger, "blob_put", func(ctx context.Context) (string, error) {
		var url string
		err := s.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			url, err = s.store.Put(ctx, key, f.ContentType, f.Data)
			return err
		})
		return url, err
	})
	if err != nil {
		s.logger.Error("image upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	s.logger.Info("image uploaded",
		slog.String("key", key),
		slog.Int("bytes", len(f.Data)),
	)
	return url, nil
}

func (s *UploadService) check(f *UploadFile) error {
	if f == nil || len(f.Data) == 0 {
		return domain.Validation("No file provided", map[string]string{"file": "is required"})
	}
	if !slices.Contains(AllowedImageTypes, f.ContentType) {
		return domain.Validation("Invalid file type. Only JPEG, PNG, WebP, and GIF are allowed.",
			map[string]string{"file": "unsupported content type " + f.ContentType})
	}
	if int64(len(f.Data)) > s.maxBytes {
		return domain.Validation(fmt.Sprintf("File size too large. Maximum size is %s.", sizeLabel(s.maxBytes)),
			map[string]string{"file": "too large"})
	}
	if s.store == nil {
		return domain.Validation("S3 configuration incomplete - bucket name missing", nil)
	}
	return nil
}

// extension returns the lowercased extension of name, or jpg when it has none
func extension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return defaultExtension
	}
	return ext
}

func sizeLabel(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
