// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/danielhkuo/council/models"
)

// FileStore keeps the state document as a JSON file. Comments and trailing
// commas are tolerated on load so operators can edit the file by hand.
type FileStore struct {
	mu       sync.Mutex
	path     string
	defaults models.Settings
}

func OpenFile(path string, defaults models.Settings) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("state file path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{path: path, defaults: defaults}, nil
}

// Load reads the state file, creating it with the default state when it
// does not exist yet.
func (f *FileStore) Load(ctx context.Context) (models.State, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		state := models.DefaultState(f.defaults)
		if err := f.Save(ctx, state); err != nil {
			return models.State{}, err
		}
		return state, nil
	}
	if err != nil {
		return models.State{}, fmt.Errorf("failed to read state file: %w", err)
	}

	var state models.State
	if err := json.Unmarshal(jsonc.ToJSON(data), &state); err != nil {
		return models.State{}, fmt.Errorf("failed to decode state file %s: %w", f.path, err)
	}
	return state.Normalize(), nil
}

// Save replaces the file atomically via a temporary file in the same directory.
func (f *FileStore) Save(ctx context.Context, state models.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
