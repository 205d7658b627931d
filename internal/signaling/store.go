package signaling

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// CandidateList names one of the two append-only candidate feeds of a room.
// Each side writes only to its own list and listens on the other side's.
type CandidateList string

const (
	CallerCandidates CandidateList = "callerCandidates"
	CalleeCandidates CandidateList = "calleeCandidates"
)

const (
	// ActiveWindow is how recent a presence heartbeat must be for a device
	// to count as active. Staleness is a read-time filter, not an expiry.
	ActiveWindow = 2 * time.Minute

	// HeartbeatInterval is how often a registered device refreshes LastActive.
	HeartbeatInterval = 30 * time.Second

	// DevicePollInterval is how often polling store implementations refresh
	// the active-device snapshot.
	DevicePollInterval = 2 * time.Second
)

// SessionDescription is the stored form of an SDP offer or answer.
type SessionDescription struct {
	Type string `msgpack:"type" json:"type"`
	SDP  string `msgpack:"sdp" json:"sdp"`
}

// RoomDocument is the rendezvous record for one pairing attempt. Offer and
// Answer are each written at most once; a retry uses an entirely new room.
type RoomDocument struct {
	Offer  *SessionDescription `msgpack:"offer,omitempty" json:"offer,omitempty"`
	Answer *SessionDescription `msgpack:"answer,omitempty" json:"answer,omitempty"`
}

// RoomUpdate is a partial merge-write into the room document. Nil fields are
// left untouched.
type RoomUpdate struct {
	Offer  *SessionDescription
	Answer *SessionDescription
}

// Candidate is the serialized form of one ICE candidate.
type Candidate struct {
	Candidate        string  `msgpack:"candidate" json:"candidate"`
	SDPMid           *string `msgpack:"sdpMid,omitempty" json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `msgpack:"sdpMLineIndex,omitempty" json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `msgpack:"usernameFragment,omitempty" json:"usernameFragment,omitempty"`
}

// Device is one entry in the presence directory.
type Device struct {
	ID             string
	Name           string
	LastActive     int64 // epoch millis
	IncomingRoomID string
}

// ActiveAt reports whether the device's last heartbeat falls inside the
// staleness window relative to now.
func (d Device) ActiveAt(now time.Time) bool {
	return now.UnixMilli()-d.LastActive < ActiveWindow.Milliseconds()
}

// Unsubscribe stops a live subscription. Safe to call more than once.
type Unsubscribe func()

// Store is the rendezvous mechanism for WebRTC signaling plus the
// device-presence directory, keyed under one account namespace.
//
// Listener callbacks may fire for the caller's own writes, so re-entrant
// logic (e.g. "only set remote description once") must be guarded by the
// caller. Room and candidate listeners deliver the current state on
// subscribe, then every subsequent change.
type Store interface {
	// SetRoomData merge-writes fields into the room document. No conflict
	// detection; each side writes its own field exactly once.
	SetRoomData(ctx context.Context, roomID string, update RoomUpdate) error

	// ListenToRoom invokes callback with the full room document on every
	// change, including the subscriber's own writes.
	ListenToRoom(ctx context.Context, roomID string, callback func(RoomDocument)) (Unsubscribe, error)

	// AddICECandidate appends one candidate to the named list.
	AddICECandidate(ctx context.Context, roomID string, list CandidateList, cand Candidate) error

	// ListenToICECandidates invokes callback once per appended candidate, in
	// append order, never for deletions.
	ListenToICECandidates(ctx context.Context, roomID string, list CandidateList, callback func(Candidate)) (Unsubscribe, error)

	// CleanupRoom deletes both candidate lists and the room document.
	// Idempotent: cleaning an absent room is a no-op.
	CleanupRoom(ctx context.Context, roomID string) error

	// RegisterDevice upserts a presence record and refreshes LastActive,
	// preserving any pending invite.
	RegisterDevice(ctx context.Context, dev Device) error

	// UnregisterDevice deletes a presence record.
	UnregisterDevice(ctx context.Context, deviceID string) error

	// ListenToActiveDevices invokes callback with all presence records
	// except the caller's own, filtered to the staleness window.
	ListenToActiveDevices(ctx context.Context, myDeviceID string, callback func([]Device)) (Unsubscribe, error)

	// SendTransferInvite sets the invitation mailbox on the target device.
	SendTransferInvite(ctx context.Context, targetDeviceID, roomID string) error

	// ListenToIncomingInvites fires with the room id whenever this device's
	// mailbox becomes non-empty.
	ListenToIncomingInvites(ctx context.Context, myDeviceID string, callback func(roomID string)) (Unsubscribe, error)

	// ClearIncomingInvite empties the mailbox after the invite is consumed.
	ClearIncomingInvite(ctx context.Context, myDeviceID string) error
}

// NewRoomCode generates a 6-digit numeric room code. The code doubles as the
// room document id and the user-facing pairing code.
func NewRoomCode() string {
	return fmt.Sprintf("%d", 100000+rand.Intn(900000))
}
