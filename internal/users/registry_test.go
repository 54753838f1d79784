package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "nested", "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSaveAndGet(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, User{TelegramID: 42, Username: "gopher", FirstName: "Go", LanguageCode: "en"}))

	u, err := r.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "gopher", u.Username)
	assert.Equal(t, "Go", u.FirstName)
	assert.Equal(t, "en", u.LanguageCode)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, u.CreatedAt, u.LastActiveAt)
}

func TestSave_UpsertRefreshesProfile(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return base }
	require.NoError(t, r.Save(ctx, User{TelegramID: 7, Username: "old"}))

	r.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, r.Save(ctx, User{TelegramID: 7, Username: "new", LastName: "Pike"}))

	u, err := r.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "new", u.Username)
	assert.Equal(t, "Pike", u.LastName)
	assert.True(t, u.CreatedAt.Equal(base), "created_at must survive upsert")
	assert.True(t, u.LastActiveAt.Equal(base.Add(time.Hour)))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGet_NotFound(t *testing.T) {
	r := openTest(t)
	_, err := r.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSave_RequiresID(t *testing.T) {
	r := openTest(t)
	assert.Error(t, r.Save(context.Background(), User{Username: "anon"}))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	r, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r.Save(context.Background(), User{TelegramID: 1}))
	require.NoError(t, r.Close())

	r, err = Open(path)
	require.NoError(t, err)
	defer r.Close()
	n, err := r.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
