package syncmeta

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"warimas-pos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	synced := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	now := synced
	tr := NewTracker(db, "products", func() time.Time { return now })

	t.Run("No metadata needs refresh", func(t *testing.T) {
		ok, err := tr.ShouldRefresh(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tr.ShouldRefreshHourly(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		last, err := tr.LastSyncAt(ctx)
		require.NoError(t, err)
		assert.Nil(t, last)
	})

	require.NoError(t, db.Update(ctx, tables, func(tx *store.Tx) error {
		return Put(tx, "products", 12, synced)
	}))

	t.Run("Fresh", func(t *testing.T) {
		now = synced.Add(59 * time.Minute)
		ok, _ := tr.ShouldRefreshHourly(ctx)
		assert.False(t, ok)
		ok, _ = tr.ShouldRefresh(ctx)
		assert.False(t, ok)
	})

	t.Run("Hourly boundary is inclusive", func(t *testing.T) {
		now = synced.Add(time.Hour)
		ok, _ := tr.ShouldRefreshHourly(ctx)
		assert.True(t, ok)
		ok, _ = tr.ShouldRefresh(ctx)
		assert.False(t, ok)
	})

	t.Run("Just under a day is fresh", func(t *testing.T) {
		now = synced.Add(23*time.Hour + 59*time.Minute)
		ok, err := tr.ShouldRefresh(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, _ = tr.ShouldRefreshHourly(ctx)
		assert.True(t, ok)
	})

	t.Run("Daily boundary is inclusive", func(t *testing.T) {
		now = synced.Add(24 * time.Hour)
		ok, _ := tr.ShouldRefresh(ctx)
		assert.True(t, ok)
	})

	t.Run("Meta", func(t *testing.T) {
		m, err := tr.Meta(ctx)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, 12, m.RecordCount)

		all, err := All(ctx, db)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}
