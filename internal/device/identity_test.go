package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesStableID(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	first, err := Load("")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	_, err = uuid.Parse(first.ID)
	assert.NoError(t, err)

	second, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestLoadNameOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dev, err := Load("Kitchen Laptop")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen Laptop", dev.Name)

	dev, err = Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, dev.Name)
	assert.NotEqual(t, "Kitchen Laptop", dev.Name)
}

func TestLoadRecoversFromEmptyTokenFile(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)

	dir := filepath.Join(configHome, "beamdrop")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, idFileName), []byte("  \n"), 0600))

	dev, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, dev.ID)
}
