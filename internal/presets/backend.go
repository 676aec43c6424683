package presets

import "context"

// Backend persists presets keyed by owner and name.
type Backend interface {
	// Put inserts or replaces a preset.
	Put(ctx context.Context, ownerID int64, p Preset) error
	// Delete removes a preset; missing records are not an error.
	Delete(ctx context.Context, ownerID int64, name string) error
	// Get returns a single preset or ErrNotFound.
	Get(ctx context.Context, ownerID int64, name string) (Preset, error)
	// LoadAll returns every stored preset grouped by owner.
	LoadAll(ctx context.Context) (map[int64]map[string]Preset, error)
}
