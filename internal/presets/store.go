package presets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Edaad/gg-support-bot/core/logger"

	"log/slog"
)

// Store keeps an in-memory index of every preset and writes changes
// through to a durable backend, falling back to the file backend when
// the durable one is unavailable. The index is the read source of
// truth; backends are only consulted on a miss.
type Store struct {
	mu    sync.RWMutex
	index map[int64]map[string]Preset

	durable Backend // optional
	file    Backend
}

// NewStore builds a store over the given backends. durable may be nil
// when the bot runs without a database; file is required.
func NewStore(durable, file Backend) *Store {
	return &Store{
		index:   make(map[int64]map[string]Preset),
		durable: durable,
		file:    file,
	}
}

// Load populates the index from the durable backend, falling back to
// the file backend when the durable load fails.
func (s *Store) Load(ctx context.Context) error {
	var (
		loaded map[int64]map[string]Preset
		err    error
		source = "file"
	)
	if s.durable != nil {
		loaded, err = s.durable.LoadAll(ctx)
		if err == nil {
			source = "durable"
		} else {
			logger.Warn(ctx, "store", "load.durable_failed",
				slog.String("err", err.Error()),
			)
		}
	}
	if loaded == nil {
		loaded, err = s.file.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to load presets: %w", err)
		}
	}

	total := 0
	for _, byName := range loaded {
		total += len(byName)
	}

	s.mu.Lock()
	s.index = loaded
	s.mu.Unlock()

	logger.Info(ctx, "store", "load.done",
		slog.String("source", source),
		slog.Int("owners", len(loaded)),
		slog.Int("presets", total),
	)
	return nil
}

// Save validates, persists and indexes a preset. Returns true when an
// existing preset with the same name was replaced.
func (s *Store) Save(ctx context.Context, ownerID int64, p Preset) (bool, error) {
	if err := ValidateName(p.Name, nil); err != nil {
		return false, err
	}
	if !p.Valid() {
		return false, fmt.Errorf("%w: empty payload for kind %q", ErrCorrupted, p.Kind)
	}

	if err := s.persist(ctx, ownerID, p); err != nil {
		return false, err
	}

	s.mu.Lock()
	byName, ok := s.index[ownerID]
	if !ok {
		byName = make(map[string]Preset)
		s.index[ownerID] = byName
	}
	_, replaced := byName[p.Name]
	byName[p.Name] = p
	s.mu.Unlock()

	logger.Debug(ctx, "store", "preset.saved",
		slog.Int64("owner_id", ownerID),
		slog.String("name", p.Name),
		slog.String("kind", string(p.Kind)),
		slog.Bool("replaced", replaced),
	)
	return replaced, nil
}

// Delete removes a preset everywhere. Returns false when the owner had
// no preset under that name.
func (s *Store) Delete(ctx context.Context, ownerID int64, name string) (bool, error) {
	s.mu.RLock()
	_, exists := s.index[ownerID][name]
	s.mu.RUnlock()
	if !exists {
		return false, nil
	}

	if s.durable != nil {
		if err := s.durable.Delete(ctx, ownerID, name); err != nil {
			logger.Warn(ctx, "store", "delete.durable_failed",
				slog.Int64("owner_id", ownerID),
				slog.String("name", name),
				slog.String("err", err.Error()),
			)
		}
	}
	if err := s.file.Delete(ctx, ownerID, name); err != nil {
		if s.durable == nil {
			return false, err
		}
		logger.Warn(ctx, "store", "delete.file_failed",
			slog.Int64("owner_id", ownerID),
			slog.String("name", name),
			slog.String("err", err.Error()),
		)
	}

	s.mu.Lock()
	delete(s.index[ownerID], name)
	if len(s.index[ownerID]) == 0 {
		delete(s.index, ownerID)
	}
	s.mu.Unlock()

	logger.Debug(ctx, "store", "preset.deleted",
		slog.Int64("owner_id", ownerID),
		slog.String("name", name),
	)
	return true, nil
}

// Lookup returns the named preset for an owner. On an index miss it
// consults the durable backend once so a record written by another
// instance can still be served, and caches the result.
func (s *Store) Lookup(ctx context.Context, ownerID int64, name string) (Preset, error) {
	s.mu.RLock()
	p, ok := s.index[ownerID][name]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	if s.durable == nil {
		return Preset{}, ErrNotFound
	}

	p, err := s.durable.Get(ctx, ownerID, name)
	if errors.Is(err, ErrNotFound) {
		return Preset{}, ErrNotFound
	}
	if err != nil {
		logger.Warn(ctx, "store", "lookup.durable_failed",
			slog.Int64("owner_id", ownerID),
			slog.String("name", name),
			slog.String("err", err.Error()),
		)
		return Preset{}, ErrNotFound
	}

	s.mu.Lock()
	byName, ok := s.index[ownerID]
	if !ok {
		byName = make(map[string]Preset)
		s.index[ownerID] = byName
	}
	byName[name] = p
	s.mu.Unlock()

	return p, nil
}

// Owners lists every owner that currently has at least one preset.
func (s *Store) Owners() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.index))
	for ownerID := range s.index {
		out = append(out, ownerID)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GetAll lists the owner's presets sorted by name.
func (s *Store) GetAll(ctx context.Context, ownerID int64) []Preset {
	s.mu.RLock()
	byName := s.index[ownerID]
	out := make([]Preset, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// persist writes through to the durable backend first and falls back
// to the file backend when the durable write fails. Only when both
// fail does the write error out.
func (s *Store) persist(ctx context.Context, ownerID int64, p Preset) error {
	if s.durable != nil {
		err := s.durable.Put(ctx, ownerID, p)
		if err == nil {
			return nil
		}
		logger.Warn(ctx, "store", "persist.fallback",
			slog.Int64("owner_id", ownerID),
			slog.String("name", p.Name),
			slog.String("err", err.Error()),
		)
	}
	if err := s.file.Put(ctx, ownerID, p); err != nil {
		return fmt.Errorf("failed to persist preset %q: %w", p.Name, err)
	}
	return nil
}
