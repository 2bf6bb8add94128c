package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
)

func TestStore_Load_MissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "embeddings", "state.json"))

	m, err := s.Load()

	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Empty(t, m)
}

func TestStore_SaveThenLoad(t *testing.T) {
	// Given: a manifest in a directory that does not exist yet
	s := NewStore(filepath.Join(t.TempDir(), "embeddings", "state.json"))
	want := Manifest{"main.tf": "aa", "README.md": "bb"}

	// When: saving and loading it back
	require.NoError(t, s.Save(want))
	got, err := s.Load()

	// Then: the entries are preserved
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestStore_Save_IsByteStable(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))
	m := Manifest{"b.tf": "2", "a.tf": "1", "c.md": "3"}

	require.NoError(t, s.Save(m))
	first, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	require.NoError(t, s.Save(m.Clone()))
	second, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "{\n  \"a.tf\": \"1\",\n  \"b.tf\": \"2\",\n  \"c.md\": \"3\"\n}\n", string(first))
}

func TestStore_Load_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a.tf": `), 0o644))

	_, err := NewStore(path).Load()

	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeManifestCorrupt, rerrors.GetCode(err))
}

func TestStore_Load_EmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	m, err := NewStore(path).Load()

	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestStore_Save_FailureKeepsPreviousManifest(t *testing.T) {
	// Given: a saved manifest whose directory then becomes read-only
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "state.json"))
	require.NoError(t, s.Save(Manifest{"a.tf": "old"}))
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	// When: saving a new manifest
	err := s.Save(Manifest{"a.tf": "new"})

	// Then: the error is a persist error and the old content is intact
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrManifestPersist))
	m, loadErr := s.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, "old", m["a.tf"])
}

func TestManifest_Helpers(t *testing.T) {
	m := Manifest{"z.md": "1", "a.tf": "2"}

	assert.Equal(t, []string{"a.tf", "z.md"}, m.Paths())

	c := m.Clone()
	c["new.tf"] = "3"
	assert.NotContains(t, m, "new.tf")
	assert.Equal(t, Manifest{}, Manifest(nil).Clone())
}

func TestLock_SecondHolderIsRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json.lock")
	first := NewLock(path)
	second := NewLock(path)

	require.NoError(t, first.TryLock())
	err := second.TryLock()
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrIndexLocked))

	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
	require.NoError(t, second.Unlock())
}
