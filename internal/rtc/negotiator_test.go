package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beamdrop/internal/signaling"
	"beamdrop/internal/transfer"
)

// Full SDP/ICE exchange between two in-process peer connections over the
// in-memory store. Uses host candidates only, no STUN.
func TestNegotiationOverMemoryStore(t *testing.T) {
	if testing.Short() {
		t.Skip("needs local UDP sockets")
	}

	store := signaling.NewMemoryStore()
	roomID := signaling.NewRoomCode()

	host, err := NewNegotiator(store, nil, roomID, RoleHost)
	require.NoError(t, err)
	defer host.Close()

	peer, err := NewNegotiator(store, nil, roomID, RolePeer)
	require.NoError(t, err)
	defer peer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, host.Start(ctx))
	require.NoError(t, peer.Start(ctx))

	select {
	case <-host.Connected():
	case <-ctx.Done():
		t.Fatal("host never connected")
	}
	select {
	case <-peer.Connected():
	case <-ctx.Done():
		t.Fatal("peer never connected")
	}

	hostCh, err := host.Channel(ctx)
	require.NoError(t, err)
	peerCh, err := peer.Channel(ctx)
	require.NoError(t, err)

	require.NoError(t, hostCh.WaitOpen(ctx))
	require.NoError(t, peerCh.WaitOpen(ctx))

	received := make(chan transfer.Incoming, 1)
	peerCh.OnMessage(func(msg transfer.Incoming) {
		select {
		case received <- msg:
		default:
		}
	})

	require.NoError(t, hostCh.SendText("ping"))

	select {
	case msg := <-received:
		assert.True(t, msg.IsString)
		assert.Equal(t, "ping", string(msg.Data))
	case <-ctx.Done():
		t.Fatal("message never arrived")
	}
}

func TestPeerOfferTimeout(t *testing.T) {
	store := signaling.NewMemoryStore()

	peer, err := NewNegotiator(store, nil, "999999", RolePeer)
	require.NoError(t, err)
	defer peer.Close()

	// Nothing will ever write an offer; the context deadline stands in for
	// the 30 s production wait
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = peer.Start(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseCleansUpRoom(t *testing.T) {
	store := signaling.NewMemoryStore()
	roomID := "121212"

	host, err := NewNegotiator(store, nil, roomID, RoleHost)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, host.Start(ctx))

	_, ok := store.RoomDocumentSnapshot(roomID)
	require.True(t, ok)

	host.Close()

	_, ok = store.RoomDocumentSnapshot(roomID)
	assert.False(t, ok)

	// Close is idempotent
	host.Close()
}

func TestInvalidRole(t *testing.T) {
	store := signaling.NewMemoryStore()

	n, err := NewNegotiator(store, nil, "123456", Role("observer"))
	require.NoError(t, err)
	defer n.Close()

	err = n.Start(context.Background())
	assert.ErrorIs(t, err, ErrInvalidRole)
}
