package links

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// FileBackend stores links as one flat JSON object of chat ID to
// owner ID. Writes go through a temp file and rename.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend stores links at the given path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Put(ctx context.Context, link Link) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.readDoc()
	if err != nil {
		return err
	}
	doc[strconv.FormatInt(link.ChatID, 10)] = link.OwnerID
	return b.writeDoc(doc)
}

func (b *FileBackend) Delete(ctx context.Context, chatID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.readDoc()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(chatID, 10)
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return b.writeDoc(doc)
}

func (b *FileBackend) Get(ctx context.Context, chatID int64) (Link, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.readDoc()
	if err != nil {
		return Link{}, err
	}
	ownerID, ok := doc[strconv.FormatInt(chatID, 10)]
	if !ok {
		return Link{}, ErrNotLinked
	}
	return Link{ChatID: chatID, OwnerID: ownerID}, nil
}

func (b *FileBackend) LoadAll(ctx context.Context) (map[int64]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.readDoc()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(doc))
	for key, ownerID := range doc {
		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad chat key %q in %s", key, b.path)
		}
		out[chatID] = ownerID
	}
	return out, nil
}

func (b *FileBackend) readDoc() (map[string]int64, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return make(map[string]int64), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	var doc map[string]int64
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", b.path, err)
	}
	if doc == nil {
		doc = make(map[string]int64)
	}
	return doc, nil
}

func (b *FileBackend) writeDoc(doc map[string]int64) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".tmp-*")
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
