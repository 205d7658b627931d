package signaling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomWritesMergeAndNotify(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var docs []RoomDocument
	unsub, err := store.ListenToRoom(ctx, "123456", func(doc RoomDocument) {
		docs = append(docs, doc)
	})
	require.NoError(t, err)
	defer unsub()

	// Initial snapshot of the empty room
	require.Len(t, docs, 1)
	assert.Nil(t, docs[0].Offer)

	offer := &SessionDescription{Type: "offer", SDP: "v=0 offer"}
	require.NoError(t, store.SetRoomData(ctx, "123456", RoomUpdate{Offer: offer}))

	answer := &SessionDescription{Type: "answer", SDP: "v=0 answer"}
	require.NoError(t, store.SetRoomData(ctx, "123456", RoomUpdate{Answer: answer}))

	require.Len(t, docs, 3)
	assert.Equal(t, "v=0 offer", docs[1].Offer.SDP)
	assert.Nil(t, docs[1].Answer)

	// The answer write must not clobber the offer
	assert.Equal(t, "v=0 offer", docs[2].Offer.SDP)
	assert.Equal(t, "v=0 answer", docs[2].Answer.SDP)
}

func TestRoomListenerSeesStateAtSubscribe(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	offer := &SessionDescription{Type: "offer", SDP: "early"}
	require.NoError(t, store.SetRoomData(ctx, "222222", RoomUpdate{Offer: offer}))

	// A peer joining after the host's write still finds the offer
	var docs []RoomDocument
	unsub, err := store.ListenToRoom(ctx, "222222", func(doc RoomDocument) {
		docs = append(docs, doc)
	})
	require.NoError(t, err)
	defer unsub()

	require.Len(t, docs, 1)
	require.NotNil(t, docs[0].Offer)
	assert.Equal(t, "early", docs[0].Offer.SDP)
}

func TestCandidatesDeliveredExactlyOnceInOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	early := Candidate{Candidate: "candidate:0"}
	require.NoError(t, store.AddICECandidate(ctx, "123456", CallerCandidates, early))

	var got []string
	unsub, err := store.ListenToICECandidates(ctx, "123456", CallerCandidates, func(c Candidate) {
		got = append(got, c.Candidate)
	})
	require.NoError(t, err)
	defer unsub()

	for _, cand := range []string{"candidate:1", "candidate:2", "candidate:3"} {
		require.NoError(t, store.AddICECandidate(ctx, "123456", CallerCandidates, Candidate{Candidate: cand}))
	}

	assert.Equal(t, []string{"candidate:0", "candidate:1", "candidate:2", "candidate:3"}, got)
}

func TestCandidateListsAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var callee []string
	unsub, err := store.ListenToICECandidates(ctx, "123456", CalleeCandidates, func(c Candidate) {
		callee = append(callee, c.Candidate)
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, store.AddICECandidate(ctx, "123456", CallerCandidates, Candidate{Candidate: "caller-side"}))
	require.NoError(t, store.AddICECandidate(ctx, "123456", CalleeCandidates, Candidate{Candidate: "callee-side"}))

	assert.Equal(t, []string{"callee-side"}, callee)
}

func TestCleanupRoomIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	offer := &SessionDescription{Type: "offer", SDP: "x"}
	require.NoError(t, store.SetRoomData(ctx, "123456", RoomUpdate{Offer: offer}))
	require.NoError(t, store.AddICECandidate(ctx, "123456", CallerCandidates, Candidate{Candidate: "c"}))

	require.NoError(t, store.CleanupRoom(ctx, "123456"))

	_, ok := store.RoomDocumentSnapshot("123456")
	assert.False(t, ok)
	assert.Zero(t, store.CandidateCount("123456", CallerCandidates))

	// Cleaning an absent room is a no-op
	require.NoError(t, store.CleanupRoom(ctx, "123456"))
	require.NoError(t, store.CleanupRoom(ctx, "never-existed"))
}

func TestActiveDevicesFilterAndSort(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UnixMilli()

	require.NoError(t, store.RegisterDevice(ctx, Device{ID: "me", Name: "Me", LastActive: now}))
	require.NoError(t, store.RegisterDevice(ctx, Device{ID: "b", Name: "Bravo", LastActive: now}))
	require.NoError(t, store.RegisterDevice(ctx, Device{ID: "a", Name: "Alpha", LastActive: now}))
	stale := now - (ActiveWindow + time.Second).Milliseconds()
	require.NoError(t, store.RegisterDevice(ctx, Device{ID: "old", Name: "Dusty", LastActive: stale}))

	var snapshots [][]Device
	unsub, err := store.ListenToActiveDevices(ctx, "me", func(devices []Device) {
		snapshots = append(snapshots, devices)
	})
	require.NoError(t, err)
	defer unsub()

	require.NotEmpty(t, snapshots)
	last := snapshots[len(snapshots)-1]
	require.Len(t, last, 2)
	assert.Equal(t, "Alpha", last[0].Name)
	assert.Equal(t, "Bravo", last[1].Name)
}

func TestHeartbeatPreservesPendingInvite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UnixMilli()

	require.NoError(t, store.RegisterDevice(ctx, Device{ID: "dev", Name: "Dev", LastActive: now}))
	require.NoError(t, store.SendTransferInvite(ctx, "dev", "654321"))

	// Heartbeat refresh carries no invite field
	require.NoError(t, store.RegisterDevice(ctx, Device{ID: "dev", Name: "Dev", LastActive: now + 1}))

	var invites []string
	unsub, err := store.ListenToIncomingInvites(ctx, "dev", func(roomID string) {
		invites = append(invites, roomID)
	})
	require.NoError(t, err)
	defer unsub()

	assert.Equal(t, []string{"654321"}, invites)
}

func TestInviteLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UnixMilli()

	require.NoError(t, store.RegisterDevice(ctx, Device{ID: "dev", Name: "Dev", LastActive: now}))

	var invites []string
	unsub, err := store.ListenToIncomingInvites(ctx, "dev", func(roomID string) {
		invites = append(invites, roomID)
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, store.SendTransferInvite(ctx, "dev", "111111"))
	assert.Equal(t, []string{"111111"}, invites)

	// Re-sending the same room id is not a new invite
	require.NoError(t, store.SendTransferInvite(ctx, "dev", "111111"))
	assert.Equal(t, []string{"111111"}, invites)

	require.NoError(t, store.ClearIncomingInvite(ctx, "dev"))

	// After the clear the same room id counts as fresh
	require.NoError(t, store.SendTransferInvite(ctx, "dev", "111111"))
	assert.Equal(t, []string{"111111", "111111"}, invites)
}

func TestNewRoomCodeFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := NewRoomCode()
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
}
