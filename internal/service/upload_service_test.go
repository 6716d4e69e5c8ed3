package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

type fakeBlobStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures int
	calls    int
}

func (f *fakeBlobStore) Put(_ context.Context, key, _ string, body []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return "", errors.New("s3 unavailable")
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = body
	return "https://bucket.s3.eu-north-1.amazonaws.com/" + key, nil
}

func png(size int) *UploadFile {
	return &UploadFile{Filename: "photo.PNG", ContentType: "image/png", Data: bytes.Repeat([]byte{1}, size)}
}

func TestUploadStoresImage(t *testing.T) {
	store := &fakeBlobStore{failures: 1}
	svc := NewUploadService(store, 0, testLogger())

	url, err := svc.Upload(context.Background(), png(1024))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://bucket.s3.eu-north-1.amazonaws.com/products/"), url)
	require.True(t, strings.HasSuffix(url, ".png"), url)
	require.Equal(t, 2, store.calls, "one failure should be retried")
	require.Len(t, store.objects, 1)
}

func TestUploadRejectsInvalidFiles(t *testing.T) {
	svc := NewUploadService(&fakeBlobStore{}, 2048, testLogger())
	ctx := context.Background()

	_, err := svc.Upload(ctx, nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Upload(ctx, &UploadFile{Filename: "a.pdf", ContentType: "application/pdf", Data: []byte("x")})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Upload(ctx, png(4096))
	require.ErrorIs(t, err, domain.ErrValidation)

	unconfigured := NewUploadService(nil, 0, testLogger())
	_, err = unconfigured.Upload(ctx, png(10))
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Contains(t, err.Error(), "S3 configuration incomplete")
}

func TestUploadFailure(t *testing.T) {
	store := &fakeBlobStore{failures: 10}
	svc := NewUploadService(store, 0, testLogger())

	_, err := svc.Upload(context.Background(), png(10))
	require.ErrorIs(t, err, ErrUploadFailed)
	require.Equal(t, 3, store.calls)
}

func TestExtension(t *testing.T) {
	require.Equal(t, "png", extension("photo.PNG"))
	require.Equal(t, "jpg", extension("photo"))
	require.Equal(t, "webp", extension("a.b.webp"))
}
