package catalogclient

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/pkg/cache"
)

const (
	KeyUsers      = "users"
	keyUserPrefix = "users/"
)

// Register creates an account. Admin callers may set a role.
func (c *Client) Register(ctx context.Context, in domain.UserInput) (*domain.User, error) {
	return c.mutateUser(ctx, http.MethodPost, "/api/users/register", in)
}

// ListUsers lists every account (admin only)
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	return cache.QueryTagged(ctx, c.cache, KeyUsers, []cache.Tag{cache.UserListTag()}, func(ctx context.Context) ([]domain.User, []cache.Tag, error) {
		var out []domain.User
		if err := c.do(ctx, http.MethodGet, "/api/users", nil, &out); err != nil {
			return nil, nil, err
		}
		ids := make([]string, len(out))
		for i, u := range out {
			ids[i] = u.ID
		}
		return out, cache.UserListTags(ids), nil
	})
}

// User fetches one account
func (c *Client) User(ctx context.Context, id string) (*domain.User, error) {
	return cache.QueryTagged(ctx, c.cache, keyUserPrefix+id, []cache.Tag{cache.UserTag(id)}, func(ctx context.Context) (*domain.User, []cache.Tag, error) {
		var u domain.User
		if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &u); err != nil {
			return nil, nil, err
		}
		return &u, []cache.Tag{cache.UserTag(u.ID)}, nil
	})
}

func (c *Client) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	return c.mutateUser(ctx, http.MethodPatch, "/api/users/"+url.PathEscape(id), upd)
}

func (c *Client) DeactivateUser(ctx context.Context, id string) (*domain.User, error) {
	return c.mutateUser(ctx, http.MethodPatch, "/api/users/"+url.PathEscape(id)+"/deactivate", nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	_, err := cache.Mutate(ctx, c.cache, func(ctx context.Context) (struct{}, []cache.Tag, error) {
		if err := c.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil, nil); err != nil {
			return struct{}{}, nil, err
		}
		return struct{}{}, cache.UserChanged(id), nil
	})
	return err
}

func (c *Client) mutateUser(ctx context.Context, method, path string, body any) (*domain.User, error) {
	return cache.Mutate(ctx, c.cache, func(ctx context.Context) (*domain.User, []cache.Tag, error) {
		var u domain.User
		if err := c.do(ctx, method, path, body, &u); err != nil {
			return nil, nil, err
		}
		return &u, cache.UserChanged(u.ID), nil
	})
}

// UploadImage stores an image and returns its public URL
func (c *Client) UploadImage(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := c.send(ctx, http.MethodPost, "/api/upload/image", mw.FormDataContentType(), &buf, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}
