package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/indieinfra/mediadrop/config"
)

// FilesystemRegistrar stores asset records as JSON files in a local directory.
type FilesystemRegistrar struct {
	basePath string
	now      func() time.Time
	mu       sync.RWMutex
}

func NewFilesystemRegistrar(cfg *config.FilesystemContentStrategy) (*FilesystemRegistrar, error) {
	if cfg == nil {
		return nil, fmt.Errorf("filesystem content config is nil")
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FilesystemRegistrar{basePath: cfg.Path, now: time.Now}, nil
}

func (fs *FilesystemRegistrar) pathFor(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || !filepath.IsLocal(id) {
		return "", ErrNotFound
	}
	return filepath.Join(fs.basePath, id+".json"), nil
}

func (fs *FilesystemRegistrar) Register(ctx context.Context, reg *Registration) (*Record, error) {
	rec, err := NewRecord(reg, fs.now())
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, err
	}

	target, err := fs.pathFor(rec.ID)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(fs.basePath, ".asset-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to store record: %w", err)
	}

	return rec, nil
}

func (fs *FilesystemRegistrar) Get(ctx context.Context, id string) (*Record, error) {
	target, err := fs.pathFor(id)
	if err != nil {
		return nil, err
	}

	fs.mu.RLock()
	data, err := os.ReadFile(target)
	fs.mu.RUnlock()

	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid asset document %s: %w", id, err)
	}

	return &rec, nil
}

func (fs *FilesystemRegistrar) Delete(ctx context.Context, id string) error {
	target, err := fs.pathFor(id)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove record: %w", err)
	}

	return nil
}
