package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"warimas-pos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "pos.db"), store.SkipMigrations())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrationsUp(t *testing.T) {
	db := openStore(t)
	var out bytes.Buffer

	require.NoError(t, run(db, "up", &out))
	assert.Contains(t, out.String(), "🚀 Applied migration 001: users and sync queue")
	assert.Contains(t, out.String(), "✅ All new migrations applied successfully.")

	v, err := db.Version()
	require.NoError(t, err)
	assert.Equal(t, store.Migrations[len(store.Migrations)-1].Version, v)

	out.Reset()
	require.NoError(t, run(db, "up", &out))
	assert.Contains(t, out.String(), "already up to date")
}

func TestRunMigrationsDown(t *testing.T) {
	db := openStore(t)
	var out bytes.Buffer

	require.NoError(t, run(db, "down", &out))
	assert.Contains(t, out.String(), "No migrations to roll back")

	require.NoError(t, run(db, "up", &out))
	out.Reset()
	require.NoError(t, run(db, "down", &out))

	last := store.Migrations[len(store.Migrations)-1]
	assert.Contains(t, out.String(), fmt.Sprintf("🧹 Rolled back migration %03d: %s", last.Version, last.Name))

	v, err := db.Version()
	require.NoError(t, err)
	assert.Equal(t, store.Migrations[len(store.Migrations)-2].Version, v)
}

func TestPrintStatus(t *testing.T) {
	db := openStore(t)
	var out bytes.Buffer

	require.NoError(t, run(db, "status", &out))
	assert.Contains(t, out.String(), "001  pending  users and sync queue")

	require.NoError(t, run(db, "up", &out))
	out.Reset()
	require.NoError(t, run(db, "status", &out))
	assert.Contains(t, out.String(), "001  applied  users and sync queue")
	assert.NotContains(t, out.String(), "pending")
}

func TestUnknownMode(t *testing.T) {
	db := openStore(t)
	err := run(db, "sideways", &bytes.Buffer{})
	assert.EqualError(t, err, "unknown mode: sideways (use 'up', 'down' or 'status')")
}
