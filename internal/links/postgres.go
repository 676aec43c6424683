package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresBackend stores links in the group_links table.
type PostgresBackend struct {
	db *sqlx.DB
}

// NewPostgresBackend wraps a connected database handle.
func NewPostgresBackend(db *sqlx.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Put(ctx context.Context, link Link) error {
	query := `
		INSERT INTO group_links (chat_id, owner_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chat_id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			updated_at = now()
	`
	if _, err := b.db.ExecContext(ctx, query, link.ChatID, link.OwnerID); err != nil {
		return fmt.Errorf("failed to upsert link for chat %d: %w", link.ChatID, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, chatID int64) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM group_links WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("failed to delete link for chat %d: %w", chatID, err)
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, chatID int64) (Link, error) {
	var link Link
	err := b.db.GetContext(ctx, &link, `SELECT chat_id, owner_id FROM group_links WHERE chat_id = $1`, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Link{}, ErrNotLinked
	case err != nil:
		return Link{}, fmt.Errorf("failed to get link for chat %d: %w", chatID, err)
	}
	return link, nil
}

func (b *PostgresBackend) LoadAll(ctx context.Context) (map[int64]int64, error) {
	var rows []Link
	if err := b.db.SelectContext(ctx, &rows, `SELECT chat_id, owner_id FROM group_links`); err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	out := make(map[int64]int64, len(rows))
	for _, l := range rows {
		out[l.ChatID] = l.OwnerID
	}
	return out, nil
}
