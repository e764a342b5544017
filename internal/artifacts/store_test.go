package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavePage(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	path, err := store.SavePage("seek", "Kitchen Hand", 2, "<html>snapshot</html>")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html>snapshot</html>", string(data))

	assert.Contains(t, path, filepath.Join("seek", "kitchen-hand"))
	assert.True(t, strings.Contains(filepath.Base(path), "page-002-"))
}

func TestSavePageSlugifiesHostileNames(t *testing.T) {
	base := t.TempDir()
	store, err := New(base)
	require.NoError(t, err)

	path, err := store.SavePage("../escape", "..", 1, "x")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, base))
}

func TestNewRequiresDir(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "afile")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = New(file)
	require.Error(t, err)
}
