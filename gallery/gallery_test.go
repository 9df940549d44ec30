package gallery

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/abihf/absensi/facerec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func desc(i int, v float32) facerec.Descriptor {
	var d facerec.Descriptor
	d[i] = v
	return d
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMatch(t *testing.T) {
	alice := desc(0, 1)
	bob := desc(1, 1)

	g := New()
	assert.Equal(t, Unknown, g.Match(alice, facerec.DefaultTolerance), "empty gallery")

	g.Put("alice", alice)
	g.Put("bob", bob)

	assert.Equal(t, "alice", g.Match(alice, facerec.DefaultTolerance))
	assert.Equal(t, "bob", g.Match(bob, facerec.DefaultTolerance))

	// 0.9 from alice, ~1.68 from bob: closer to alice but outside tolerance
	far := desc(0, 1)
	far[2] = 0.9
	assert.Equal(t, Unknown, g.Match(far, facerec.DefaultTolerance))

	near := desc(0, 1)
	near[2] = 0.3
	name, dist := g.Nearest(near, facerec.DefaultTolerance)
	assert.Equal(t, "alice", name)
	assert.InDelta(t, 0.3, dist, 1e-6)
}

func TestMatchTieBreakFollowsInsertionOrder(t *testing.T) {
	g := New()
	g.Put("zed", desc(0, 1))
	g.Put("amy", desc(1, 1))

	// equidistant from both
	q := desc(2, 0)
	q[0], q[1] = 0.5, 0.5
	assert.Equal(t, "zed", g.Match(q, 1.0))
}

func TestPutOverwriteKeepsPosition(t *testing.T) {
	g := New()
	g.Put("alice", desc(0, 1))
	g.Put("bob", desc(1, 1))
	g.Put("alice", desc(2, 1))

	assert.Equal(t, []string{"alice", "bob"}, g.Names())
	assert.Equal(t, 2, g.Len())

	got, ok := g.Get("alice")
	require.True(t, ok)
	assert.Equal(t, desc(2, 1), got)

	_, ok = g.Get("carol")
	assert.False(t, ok)
}

func TestStoreLoadCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "registered_users")

	g, err := NewStore(dir, quietLogger()).Load()
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, quietLogger())

	require.NoError(t, s.Save("bob", desc(1, 1)))
	require.NoError(t, s.Save("alice", desc(0, 1)))
	require.NoError(t, s.Save("alice", desc(0, 0.5)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var files []string
	for _, e := range entries {
		files = append(files, e.Name())
	}
	assert.Equal(t, []string{"alice.face", "bob.face"}, files, "no temp files left behind")

	g, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, g.Names(), "loaded in file name order")

	got, _ := g.Get("alice")
	assert.Equal(t, desc(0, 0.5), got, "last save wins")
}

func TestStoreLoadSkipsCorruptAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, quietLogger())
	require.NoError(t, s.Save("alice", desc(0, 1)))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mallory.face"), []byte("pickle"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.face"), 0755))

	g, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, g.Names())
}

func TestStoreSaveRejectsInvalidNames(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, quietLogger())

	for _, name := range []string{"", ".hidden", "../escape", `a\b`, "a/b"} {
		err := s.Save(name, desc(0, 1))
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
