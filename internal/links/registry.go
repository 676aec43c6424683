package links

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Edaad/gg-support-bot/core/logger"

	"log/slog"
)

// Registry caches chat-to-owner links in memory over the persistence
// backends. Hits are cached; misses always re-query the durable
// backend so a link bound by another instance becomes visible without
// a restart.
type Registry struct {
	mu    sync.RWMutex
	cache map[int64]int64

	durable Backend // optional
	file    Backend
}

// NewRegistry builds a registry over the given backends. durable may
// be nil when the bot runs without a database; file is required.
func NewRegistry(durable, file Backend) *Registry {
	return &Registry{
		cache:   make(map[int64]int64),
		durable: durable,
		file:    file,
	}
}

// Load populates the cache from the durable backend, falling back to
// the file backend when the durable load fails.
func (r *Registry) Load(ctx context.Context) error {
	var (
		loaded map[int64]int64
		err    error
		source = "file"
	)
	if r.durable != nil {
		loaded, err = r.durable.LoadAll(ctx)
		if err == nil {
			source = "durable"
		} else {
			logger.Warn(ctx, "links", "load.durable_failed",
				slog.String("err", err.Error()),
			)
		}
	}
	if loaded == nil {
		loaded, err = r.file.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to load links: %w", err)
		}
	}

	r.mu.Lock()
	r.cache = loaded
	r.mu.Unlock()

	logger.Info(ctx, "links", "load.done",
		slog.String("source", source),
		slog.Int("links", len(loaded)),
	)
	return nil
}

// Bind links a group chat to an owner. An existing binding for the
// chat is replaced; the last writer wins.
func (r *Registry) Bind(ctx context.Context, chatID, ownerID int64) error {
	link := Link{ChatID: chatID, OwnerID: ownerID}

	if r.durable != nil {
		if err := r.durable.Put(ctx, link); err != nil {
			logger.Warn(ctx, "links", "bind.fallback",
				slog.Int64("chat_id", chatID),
				slog.Int64("owner_id", ownerID),
				slog.String("err", err.Error()),
			)
			if err := r.file.Put(ctx, link); err != nil {
				return fmt.Errorf("failed to bind chat %d: %w", chatID, err)
			}
		}
	} else if err := r.file.Put(ctx, link); err != nil {
		return fmt.Errorf("failed to bind chat %d: %w", chatID, err)
	}

	r.mu.Lock()
	prev, had := r.cache[chatID]
	r.cache[chatID] = ownerID
	r.mu.Unlock()

	attrs := []slog.Attr{
		slog.Int64("chat_id", chatID),
		slog.Int64("owner_id", ownerID),
	}
	if had && prev != ownerID {
		attrs = append(attrs, slog.Int64("prev_owner_id", prev))
	}
	logger.Info(ctx, "links", "chat.bound", attrs...)
	return nil
}

// Resolve returns the owner bound to a chat. Cache misses re-query the
// durable backend every time; only hits are cached, so a chat that is
// linked later does not get stuck behind a stale negative answer.
func (r *Registry) Resolve(ctx context.Context, chatID int64) (int64, error) {
	r.mu.RLock()
	ownerID, ok := r.cache[chatID]
	r.mu.RUnlock()
	if ok {
		return ownerID, nil
	}

	if r.durable == nil {
		return 0, ErrNotLinked
	}

	link, err := r.durable.Get(ctx, chatID)
	if errors.Is(err, ErrNotLinked) {
		return 0, ErrNotLinked
	}
	if err != nil {
		logger.Warn(ctx, "links", "resolve.failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return 0, ErrNotLinked
	}

	r.mu.Lock()
	r.cache[chatID] = link.OwnerID
	r.mu.Unlock()

	return link.OwnerID, nil
}
