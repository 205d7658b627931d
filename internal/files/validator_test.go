package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	infos, err := ValidateFiles([]string{path})
	require.NoError(t, err)
	require.Len(t, infos, 1)

	assert.Equal(t, "doc.txt", infos[0].Name)
	assert.Equal(t, int64(5), infos[0].Size)
	assert.Contains(t, infos[0].Type, "text/plain")
	assert.True(t, filepath.IsAbs(infos[0].Path))
}

func TestValidateFilesUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.zzz123")
	require.NoError(t, os.WriteFile(path, []byte{0x00}, 0644))

	infos, err := ValidateFiles([]string{path})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", infos[0].Type)
}

func TestValidateFilesErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ValidateFiles(nil)
	assert.Error(t, err)

	_, err = ValidateFiles([]string{filepath.Join(dir, "missing.txt")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	_, err = ValidateFiles([]string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestGetTotalSize(t *testing.T) {
	infos := []FileInfo{{Size: 100}, {Size: 250}, {Size: 0}}
	assert.Equal(t, int64(350), GetTotalSize(infos))
}
