package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.00 KB", FormatSize(1024))
	assert.Equal(t, "1.50 MB", FormatSize(3*512*1024))
	assert.Equal(t, "2.00 GB", FormatSize(2*1024*1024*1024))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "100 B/s", FormatSpeed(100))
	assert.Equal(t, "1.00 KB/s", FormatSpeed(1024))
	assert.Equal(t, "4.00 MB/s", FormatSpeed(4*1024*1024))
}

func TestFormatTimeDuration(t *testing.T) {
	assert.Equal(t, "5s", FormatTimeDuration(5*time.Second))
	assert.Equal(t, "2m 3s", FormatTimeDuration(123*time.Second))
	assert.Equal(t, "1h 1m 5s", FormatTimeDuration(time.Hour+65*time.Second))
}

func TestGetUniqueFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")

	assert.Equal(t, path, GetUniqueFilename(path))

	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.Equal(t, filepath.Join(dir, "photo (1).jpg"), GetUniqueFilename(path))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo (1).jpg"), nil, 0644))
	assert.Equal(t, filepath.Join(dir, "photo (2).jpg"), GetUniqueFilename(path))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "exactly-10", TruncateString("exactly-10", 10))
	assert.Equal(t, "a-very-...", TruncateString("a-very-long-name", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
}
