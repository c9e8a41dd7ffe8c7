package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreLoadMissing(t *testing.T) {
	t.Parallel()

	s := NewFileStore(filepath.Join(t.TempDir(), "autolock.json"))
	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "autolock.json")
	s := NewFileStore(path)

	require.NoError(t, s.Save(ctx, false))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.False(t, got)

	require.NoError(t, s.Save(ctx, true))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.True(t, got)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"enabled": true}`, string(contents))
}

func TestFileStoreRejectsBadContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := map[string]string{
		"garbage.json": "not json",
		"missing.json": `{"other": 1}`,
		"notbool.json": `{"enabled": "yes"}`,
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		_, err := NewFileStore(path).Load(context.Background())
		require.Error(t, err, name)
		require.False(t, errors.Is(err, ErrNotFound), name)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	v, err := LoadOr(ctx, s, true)
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, v)

	require.NoError(t, s.Save(ctx, false))
	v, err = LoadOr(ctx, s, true)
	require.NoError(t, err)
	require.False(t, v)
	require.Equal(t, 1, s.Saves)

	s.SaveErr = errors.New("disk full")
	require.Error(t, s.Save(ctx, true))
	v, _ = s.Load(ctx)
	require.False(t, v)
}
