package presets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// FileBackend stores the whole preset set as one JSON document.
// Writes go through a temp file and rename so a crash mid-write
// never leaves a truncated document behind.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend stores presets at the given path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// fileEntry tolerates the legacy layout where a preset was stored as a
// bare string instead of a typed object.
type fileEntry struct {
	Kind    Kind   `json:"type"`
	Content string `json:"content,omitempty"`
	FileID  string `json:"file_id,omitempty"`
	Caption string `json:"caption,omitempty"`
}

func (e *fileEntry) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		e.Kind = KindText
		e.Content = legacy
		return nil
	}
	type plain fileEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = fileEntry(p)
	return nil
}

func (b *FileBackend) Put(ctx context.Context, ownerID int64, p Preset) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.readDoc()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(ownerID, 10)
	byName, ok := doc[key]
	if !ok {
		byName = make(map[string]fileEntry)
		doc[key] = byName
	}
	byName[p.Name] = fileEntry{Kind: p.Kind, Content: p.Content, FileID: p.FileID, Caption: p.Caption}
	return b.writeDoc(doc)
}

func (b *FileBackend) Delete(ctx context.Context, ownerID int64, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.readDoc()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(ownerID, 10)
	byName, ok := doc[key]
	if !ok {
		return nil
	}
	if _, ok := byName[name]; !ok {
		return nil
	}
	delete(byName, name)
	if len(byName) == 0 {
		delete(doc, key)
	}
	return b.writeDoc(doc)
}

func (b *FileBackend) Get(ctx context.Context, ownerID int64, name string) (Preset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.readDoc()
	if err != nil {
		return Preset{}, err
	}
	byName, ok := doc[strconv.FormatInt(ownerID, 10)]
	if !ok {
		return Preset{}, ErrNotFound
	}
	entry, ok := byName[name]
	if !ok {
		return Preset{}, ErrNotFound
	}
	return entry.toPreset(name), nil
}

func (b *FileBackend) LoadAll(ctx context.Context) (map[int64]map[string]Preset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.readDoc()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]map[string]Preset, len(doc))
	for key, byName := range doc {
		ownerID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad owner key %q", ErrCorrupted, key)
		}
		converted := make(map[string]Preset, len(byName))
		for name, entry := range byName {
			converted[name] = entry.toPreset(name)
		}
		out[ownerID] = converted
	}
	return out, nil
}

func (b *FileBackend) readDoc() (map[string]map[string]fileEntry, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return make(map[string]map[string]fileEntry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	var doc map[string]map[string]fileEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, b.path, err)
	}
	if doc == nil {
		doc = make(map[string]map[string]fileEntry)
	}
	return doc, nil
}

func (b *FileBackend) writeDoc(doc map[string]map[string]fileEntry) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode presets: %w", err)
	}
	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", b.path, err)
	}
	return nil
}

func (e fileEntry) toPreset(name string) Preset {
	kind := e.Kind
	if kind == "" {
		kind = KindText
	}
	return Preset{Name: name, Kind: kind, Content: e.Content, FileID: e.FileID, Caption: e.Caption}
}
