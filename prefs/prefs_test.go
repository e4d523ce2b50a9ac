package prefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func open(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTarget(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "prefs.db"))

	_, _, ok, err := s.Target(ctx)
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(s.SaveTarget(ctx, "192.168.10.20", 80))
	assert.NoError(s.SaveTarget(ctx, "192.168.10.21", 8080))

	host, port, ok, err := s.Target(ctx)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("192.168.10.21", host)
	assert.Equal(8080, port)
}

func TestSidebar(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "prefs.db"))

	collapsed, err := s.Sidebar(ctx)
	assert.NoError(err)
	assert.False(collapsed)

	assert.NoError(s.SetSidebar(ctx, true))
	collapsed, err = s.Sidebar(ctx)
	assert.NoError(err)
	assert.True(collapsed)
}

func TestReopen(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := Open(ctx, path)
	assert.NoError(err)
	assert.NoError(s.SaveTarget(ctx, "10.0.0.1", 80))
	assert.NoError(s.SetSidebar(ctx, true))
	assert.NoError(s.Close())

	s = open(t, path)
	host, port, ok, err := s.Target(ctx)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("10.0.0.1", host)
	assert.Equal(80, port)

	collapsed, err := s.Sidebar(ctx)
	assert.NoError(err)
	assert.True(collapsed)
}
