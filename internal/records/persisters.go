package records

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// JSONFile persists snapshots as one JSON document.
type JSONFile struct {
	Path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{Path: path}
}

// Load returns no snapshots when the file does not exist yet.
func (f *JSONFile) Load(ctx context.Context) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	snaps, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	return snaps, nil
}

// Save rewrites the file through a temporary file in the same directory so a
// crash never leaves a truncated document behind.
func (f *JSONFile) Save(ctx context.Context, snaps []Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(snaps)
	if err != nil {
		return fmt.Errorf("encode snapshots: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace %s: %w", f.Path, err)
	}
	return nil
}

// Memory keeps snapshots in process, for tests and throwaway sessions.
type Memory struct {
	mu    sync.Mutex
	snaps []Snapshot
	// Err, when set, is returned by Load and Save.
	Err   error
	Saves int
}

func NewMemory(initial ...Snapshot) *Memory {
	return &Memory{snaps: initial}
}

func (m *Memory) Load(ctx context.Context) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return slices.Clone(m.snaps), nil
}

func (m *Memory) Save(ctx context.Context, snaps []Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.snaps = slices.Clone(snaps)
	m.Saves++
	return nil
}

// SetErr changes the failure returned by Load and Save.
func (m *Memory) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}
