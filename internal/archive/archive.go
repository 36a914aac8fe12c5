// Package archive stores exported workbooks outside the process: in a local
// directory and optionally in a Cloud Storage bucket.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sink persists one named artifact and reports where it went.
type Sink interface {
	Name() string
	Store(ctx context.Context, name string, data []byte) (location string, err error)
}

// WorkbookName is the object name of a workbook exported at t.
func WorkbookName(t time.Time) string {
	return "clients-" + t.UTC().Format("20060102T150405Z") + ".xlsx"
}

// LatestName is the stable alias overwritten by every export.
const LatestName = "clients-latest.xlsx"

// Dir writes artifacts into a local directory.
type Dir struct {
	Path string
}

func NewDir(path string) *Dir { return &Dir{Path: path} }

func (d *Dir) Name() string { return "dir" }

// Store writes data to Path/name through a temporary file so readers never
// see a partial workbook.
func (d *Dir) Store(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.Path, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	dst := filepath.Join(d.Path, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return dst, nil
}
