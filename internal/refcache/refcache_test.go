package refcache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"warimas-pos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestTable(t *testing.T, now func() time.Time) *Table[item] {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTable(db, store.TableProducts, "products", func(i *item) string { return i.ID }, now)
}

func fetchOf(rows []item, err error) FetchFunc[item] {
	return func(context.Context) ([]item, error) { return rows, err }
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	t.Run("Success replaces rows and writes meta", func(t *testing.T) {
		tbl := newTestTable(t, func() time.Time { return now })

		_, err := tbl.Replace(ctx, fetchOf([]item{{ID: "a"}, {ID: "b"}, {ID: "c"}}, nil))
		require.NoError(t, err)

		n, err := tbl.Replace(ctx, fetchOf([]item{{ID: "d", Name: "Croissant"}}, nil))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		rows, err := tbl.List(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []item{{ID: "d", Name: "Croissant"}}, rows)

		meta, err := tbl.Meta(ctx)
		require.NoError(t, err)
		require.NotNil(t, meta)
		assert.Equal(t, 1, meta.RecordCount)
		assert.Equal(t, "2026-02-01T08:00:00.000Z", meta.LastSyncAt)
	})

	t.Run("Fetch error keeps previous rows", func(t *testing.T) {
		tbl := newTestTable(t, nil)
		_, err := tbl.Replace(ctx, fetchOf([]item{{ID: "a"}}, nil))
		require.NoError(t, err)

		_, err = tbl.Replace(ctx, fetchOf(nil, errors.New("connection refused")))
		require.Error(t, err)
		assert.Equal(t, "failed to fetch products: connection refused", err.Error())

		n, err := tbl.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Nil data", func(t *testing.T) {
		tbl := newTestTable(t, nil)
		_, err := tbl.Replace(ctx, fetchOf(nil, nil))
		require.ErrorIs(t, err, ErrNoData)
		assert.Equal(t, "no data returned from products query", err.Error())
	})

	t.Run("Empty data clears table", func(t *testing.T) {
		tbl := newTestTable(t, nil)
		_, err := tbl.Replace(ctx, fetchOf([]item{{ID: "a"}}, nil))
		require.NoError(t, err)

		n, err := tbl.Replace(ctx, fetchOf([]item{}, nil))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		count, _ := tbl.Count(ctx)
		assert.Equal(t, 0, count)
	})
}

func TestRefreshIfNeeded(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	tbl := newTestTable(t, func() time.Time { return now })

	calls := 0
	fetch := func(context.Context) ([]item, error) {
		calls++
		return []item{{ID: "a"}}, nil
	}

	refreshed, err := tbl.RefreshIfNeeded(ctx, false, fetch)
	require.NoError(t, err)
	assert.True(t, refreshed)

	refreshed, err = tbl.RefreshIfNeeded(ctx, false, fetch)
	require.NoError(t, err)
	assert.False(t, refreshed)

	refreshed, err = tbl.RefreshIfNeeded(ctx, true, fetch)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 2, calls)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	tbl := newTestTable(t, nil)
	_, err := tbl.Replace(ctx, fetchOf([]item{{ID: "a"}}, nil))
	require.NoError(t, err)

	require.NoError(t, tbl.Clear(ctx))

	n, _ := tbl.Count(ctx)
	assert.Equal(t, 0, n)
	meta, err := tbl.Meta(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)

	row, err := tbl.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, row)
}
