package presets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresBackend stores presets in the user_presets table.
type PostgresBackend struct {
	db *sqlx.DB
}

// NewPostgresBackend wraps a connected database handle.
func NewPostgresBackend(db *sqlx.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

type presetRow struct {
	OwnerID int64  `db:"owner_id"`
	Name    string `db:"name"`
	Kind    string `db:"kind"`
	Content string `db:"content"`
	FileID  string `db:"file_id"`
	Caption string `db:"caption"`
}

func (b *PostgresBackend) Put(ctx context.Context, ownerID int64, p Preset) error {
	row := presetRow{
		OwnerID: ownerID,
		Name:    p.Name,
		Kind:    string(p.Kind),
		Content: p.Content,
		FileID:  p.FileID,
		Caption: p.Caption,
	}
	query := `
		INSERT INTO user_presets (owner_id, name, kind, content, file_id, caption, updated_at)
		VALUES (:owner_id, :name, :kind, :content, :file_id, :caption, now())
		ON CONFLICT (owner_id, name) DO UPDATE SET
			kind = EXCLUDED.kind,
			content = EXCLUDED.content,
			file_id = EXCLUDED.file_id,
			caption = EXCLUDED.caption,
			updated_at = now()
	`
	if _, err := b.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to upsert preset %q for owner %d: %w", p.Name, ownerID, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, ownerID int64, name string) error {
	query := `DELETE FROM user_presets WHERE owner_id = $1 AND name = $2`
	if _, err := b.db.ExecContext(ctx, query, ownerID, name); err != nil {
		return fmt.Errorf("failed to delete preset %q for owner %d: %w", name, ownerID, err)
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, ownerID int64, name string) (Preset, error) {
	var row presetRow
	query := `
		SELECT owner_id, name, kind, content, file_id, caption
		FROM user_presets
		WHERE owner_id = $1 AND name = $2
	`
	err := b.db.GetContext(ctx, &row, query, ownerID, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Preset{}, ErrNotFound
	case err != nil:
		return Preset{}, fmt.Errorf("failed to get preset %q for owner %d: %w", name, ownerID, err)
	}
	return row.toPreset(), nil
}

func (b *PostgresBackend) LoadAll(ctx context.Context) (map[int64]map[string]Preset, error) {
	var rows []presetRow
	query := `SELECT owner_id, name, kind, content, file_id, caption FROM user_presets`
	if err := b.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}
	out := make(map[int64]map[string]Preset, len(rows))
	for _, row := range rows {
		byName, ok := out[row.OwnerID]
		if !ok {
			byName = make(map[string]Preset)
			out[row.OwnerID] = byName
		}
		byName[row.Name] = row.toPreset()
	}
	return out, nil
}

func (r presetRow) toPreset() Preset {
	return Preset{
		Name:    r.Name,
		Kind:    Kind(r.Kind),
		Content: r.Content,
		FileID:  r.FileID,
		Caption: r.Caption,
	}
}
