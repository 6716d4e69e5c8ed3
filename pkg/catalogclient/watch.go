package catalogclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/productcatalog/pkg/cache"
)

type invalidation struct {
	Tags []cache.Tag `json:"tags"`
}

// Watch follows the server's invalidation feed and applies every event to
// the local cache until ctx is cancelled or the connection drops. It returns
// nil when ctx ends the watch.
func (c *Client) Watch(ctx context.Context) error {
	wsURL := c.baseURL + "/ws/invalidations"
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("failed to connect to invalidation feed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.logger.Debug("watching invalidations", slog.String("url", wsURL))
	for {
		var ev invalidation
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("invalidation feed: %w", err)
		}
		if err := c.cache.Invalidate(ctx, ev.Tags...); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("failed to apply invalidation", slog.String("error", err.Error()))
		}
	}
}
