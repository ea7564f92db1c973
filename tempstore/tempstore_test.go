package tempstore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestCreatesAndOwnsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scratch")
	m, err := New(dir, quietLogger())
	require.NoError(t, err)

	assert.True(t, m.Owned())
	assert.DirExists(t, dir)
	assert.Equal(t, dir, m.Dir())

	id := m.NextID()
	require.NoError(t, os.WriteFile(id, []byte("run"), 0o644))

	require.NoError(t, m.Close())
	assert.NoDirExists(t, dir, "owned directory is removed with its contents")
}

func TestAdoptsExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	keeper := filepath.Join(dir, "keep.b")
	require.NoError(t, os.WriteFile(keeper, []byte("keep"), 0o644))

	m, err := New(dir, quietLogger())
	require.NoError(t, err)
	assert.False(t, m.Owned())

	require.NoError(t, m.Close())
	assert.DirExists(t, dir, "adopted directory survives Close")
	assert.FileExists(t, keeper)
}

func TestDefaultDirectoryIsUnique(t *testing.T) {
	a, err := New("", quietLogger())
	require.NoError(t, err)
	defer a.Close()
	b, err := New("", quietLogger())
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.Dir(), b.Dir())
	assert.True(t, a.Owned())
}

func TestNextIDUnique(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "ids"), quietLogger())
	require.NoError(t, err)
	defer m.Close()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := m.NextID()
		assert.False(t, seen[id], "id %s minted twice", id)
		seen[id] = true
		assert.Equal(t, m.Dir(), filepath.Dir(id))
	}
}

func TestCleanupIdempotent(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "cleanup"), quietLogger())
	require.NoError(t, err)
	defer m.Close()

	id := m.NextID()
	require.NoError(t, os.WriteFile(id, []byte("x"), 0o644))
	require.NoError(t, m.Cleanup(id))
	assert.NoFileExists(t, id)

	// a missing entry is not an error
	require.NoError(t, m.Cleanup(id))
}

func TestRejectsFileAsNamespace(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := New(file, quietLogger())
	require.Error(t, err)
}

func TestCloseTwice(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "twice"), quietLogger())
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
