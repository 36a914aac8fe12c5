package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultoria/internal/config"
	"consultoria/internal/records"
	"consultoria/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "json", DataFile: "records.json"})
	require.NoError(t, err)
	assert.Equal(t, JSONBackend, cfg.Type)
	assert.Equal(t, "records.json", cfg.DataFile)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"json with file", Config{Type: JSONBackend, DataFile: "x.json"}, false},
		{"json without file", Config{Type: JSONBackend}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"memory", Config{Type: MemoryBackend}, false},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() error = %v", err)
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: JSONBackend, DataFile: filepath.Join(dir, "records.json")})
		require.NoError(t, err)
		assert.IsType(t, &records.JSONFile{}, res.Persister)
		assert.Nil(t, res.Cleanup)
	})

	t.Run("sqlite", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "records.db")})
		require.NoError(t, err)
		assert.IsType(t, &storage.SQLiteRepository{}, res.Persister)
		require.NotNil(t, res.Cleanup)
		assert.NoError(t, res.Cleanup())
	})

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
		require.NoError(t, err)
		snaps, err := res.Persister.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, snaps)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := f.CreateBackend(ctx, Config{Type: "sheets"})
		assert.Error(t, err)
	})
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"json", "sqlite", "memory"}, GetBackendTypeStrings())
}
