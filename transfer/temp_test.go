package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, IsTempName(e.Name()), "leftover temp file %s", e.Name())
	}
}

func TestUploadPromote(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "a.bin")

	up, err := CreateUpload(final)
	require.NoError(t, err)

	_, err = up.Write([]byte("hello world"))
	require.NoError(t, err)

	// Target must not exist before promotion.
	_, err = os.Stat(final)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, up.Promote())

	content, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
	noTempFiles(t, dir)
}

func TestUploadDiscardLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(final, []byte("original"), 0644))

	up, err := CreateUpload(final)
	require.NoError(t, err)
	_, err = up.Write([]byte("partial upl"))
	require.NoError(t, err)

	require.NoError(t, up.Discard())

	content, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))
	noTempFiles(t, dir)
}

func TestUploadPromoteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(final, []byte("old"), 0644))

	up, err := CreateUpload(final)
	require.NoError(t, err)
	_, err = up.Write([]byte("new content"))
	require.NoError(t, err)
	require.NoError(t, up.Promote())

	content, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(content))
}

func TestConcurrentUploadsToSamePathDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "a.bin")

	first, err := CreateUpload(final)
	require.NoError(t, err)
	second, err := CreateUpload(final)
	require.NoError(t, err)

	_, err = first.Write([]byte("first"))
	require.NoError(t, err)
	_, err = second.Write([]byte("second"))
	require.NoError(t, err)

	require.NoError(t, first.Promote())
	require.NoError(t, second.Promote())

	content, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
	noTempFiles(t, dir)
}

func TestIsTempName(t *testing.T) {
	up, err := CreateUpload(filepath.Join(t.TempDir(), "file.txt"))
	require.NoError(t, err)
	defer up.Discard()

	assert.True(t, IsTempName(filepath.Base(up.tempPath)))
	assert.False(t, IsTempName("file.txt"))
	assert.False(t, IsTempName(".hidden"))
}
