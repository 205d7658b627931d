package signaling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatRegistersImmediately(t *testing.T) {
	store := NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := StartHeartbeat(ctx, store, Device{ID: "dev-1", Name: "Laptop"})

	var seen [][]Device
	unsub, err := store.ListenToActiveDevices(ctx, "other", func(devices []Device) {
		seen = append(seen, devices)
	})
	require.NoError(t, err)
	defer unsub()

	require.NotEmpty(t, seen)
	require.Len(t, seen[0], 1)
	assert.Equal(t, "Laptop", seen[0][0].Name)
	assert.True(t, seen[0][0].ActiveAt(time.Now()))

	stop()

	var after []Device
	unsub2, err := store.ListenToActiveDevices(ctx, "other", func(devices []Device) {
		if after == nil {
			after = devices
		}
	})
	require.NoError(t, err)
	defer unsub2()

	assert.Empty(t, after)
}
