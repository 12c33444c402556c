package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/storage"
)

// Listener is the LISTEN/NOTIFY surface of the store.
type Listener interface {
	Listen(ctx context.Context, channel string) error
	WaitForNotification(ctx context.Context) (channel, payload string, err error)
}

// Watcher invalidates the graph cache whenever a knowledge entry changes.
type Watcher struct {
	listener Listener
	cache    *GraphCache
	logger   *slog.Logger
	backoff  time.Duration
}

// NewWatcher creates a watcher. Call Start to begin listening.
func NewWatcher(listener Listener, cache *GraphCache, logger *slog.Logger) *Watcher {
	return &Watcher{listener: listener, cache: cache, logger: logger, backoff: time.Second}
}

// Start listens on the knowledge channel until ctx is cancelled. It blocks,
// so call it in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	if err := w.listener.Listen(ctx, storage.ChannelKnowledge); err != nil {
		w.logger.Error("watcher: listen knowledge changes", "error", err)
		return
	}
	w.logger.Info("watcher: listening for knowledge changes", "channel", storage.ChannelKnowledge)

	for {
		_, payload, err := w.listener.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("watcher: notification error, retrying", "error", err)
			// A broken connection fails fast; do not spin.
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff):
			}
			continue
		}
		w.logger.Debug("watcher: knowledge changed, invalidating graphs", "knowledge_id", payload)
		w.cache.Invalidate()
	}
}
