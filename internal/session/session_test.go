package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beamdrop/internal/config"
	"beamdrop/internal/rtc"
	"beamdrop/internal/signaling"
)

func newTestSession(t *testing.T, role rtc.Role) *Session {
	t.Helper()
	store := signaling.NewMemoryStore()
	cfg := &config.Config{}

	sess, err := New(store, cfg, signaling.NewRoomCode(), role)
	require.NoError(t, err)
	t.Cleanup(sess.Teardown)
	return sess
}

func TestSessionInitialState(t *testing.T) {
	sess := newTestSession(t, rtc.RoleHost)

	assert.Equal(t, StateIdle, sess.State())
	assert.Equal(t, rtc.RoleHost, sess.Role())
	assert.Len(t, sess.RoomID(), 6)
}

func TestSessionTeardownIdempotent(t *testing.T) {
	sess := newTestSession(t, rtc.RoleHost)

	sess.Teardown()
	assert.Equal(t, StateClosed, sess.State())

	sess.Teardown()
	assert.Equal(t, StateClosed, sess.State())
}

func TestSessionSendRequiresChannel(t *testing.T) {
	sess := newTestSession(t, rtc.RolePeer)

	// Peer side with no negotiation: the channel never materializes
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sess.Send(ctx, nil)
	assert.ErrorIs(t, err, rtc.ErrChannelNotReady)
}

func TestSessionRejectsTransferBeforeConnect(t *testing.T) {
	sess := newTestSession(t, rtc.RoleHost)

	// Still idle, so moving straight to sending is an invalid transition
	err := sess.transition(StateSending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session transition")
}

func TestSessionStartAfterCloseFails(t *testing.T) {
	sess := newTestSession(t, rtc.RoleHost)
	sess.Teardown()

	err := sess.Start(context.Background())
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestEventOrderingPreservedForBlockingEvents(t *testing.T) {
	sess := newTestSession(t, rtc.RoleHost)

	sess.emit(Event{Type: EventMeta, FileName: "a"})
	sess.emit(Event{Type: EventFileDone, FileName: "a"})
	sess.emit(Event{Type: EventAllDone})

	assert.Equal(t, EventMeta, (<-sess.Events()).Type)
	assert.Equal(t, EventFileDone, (<-sess.Events()).Type)
	assert.Equal(t, EventAllDone, (<-sess.Events()).Type)
}
