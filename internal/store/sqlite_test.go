package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskflow/internal/store"
	"github.com/nhle/taskflow/internal/testutil"
)

func TestMigrationsApplied(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestItems_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	_, ok, err := s.GetItem(ctx, "userId")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItems(ctx, map[string]string{
		"userId":   "u1",
		"userName": "Ann",
	}))
	require.NoError(t, s.SetItem(ctx, "userId", "u2"))

	v, ok, err := s.GetItem(ctx, "userId")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u2", v)

	require.NoError(t, s.RemoveItems(ctx, "userId", "missing"))

	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"userName": "Ann"}, items)

	require.NoError(t, s.Clear(ctx))
	items, err = s.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReopenKeepsItems(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "taskflow.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SetItem(ctx, "userRole", "admin"))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.GetItem(ctx, "userRole")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "admin", v)

	ver, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ver)
}
