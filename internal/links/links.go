// Package links maps group chats to the user whose presets serve them.
package links

import (
	"context"
	"errors"
)

// Link binds a group chat to the owner of its preset namespace.
type Link struct {
	ChatID  int64 `db:"chat_id"`
	OwnerID int64 `db:"owner_id"`
}

// ErrNotLinked reports that a chat has no bound owner.
var ErrNotLinked = errors.New("chat is not linked to an owner")

// Backend persists chat-to-owner links.
type Backend interface {
	// Put inserts or replaces a link. Rebinding a chat to a new owner
	// silently wins over the previous binding.
	Put(ctx context.Context, link Link) error
	// Delete removes a link; missing records are not an error.
	Delete(ctx context.Context, chatID int64) error
	// Get returns the link for a chat or ErrNotLinked.
	Get(ctx context.Context, chatID int64) (Link, error)
	// LoadAll returns every stored link keyed by chat ID.
	LoadAll(ctx context.Context) (map[int64]int64, error)
}
