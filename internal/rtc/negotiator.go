package rtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"beamdrop/internal/signaling"
)

// Role of this side of the room.
type Role string

const (
	// RoleHost creates the data channel and initiates the SDP offer.
	RoleHost Role = "host"

	// RolePeer receives the offer and responds with the answer.
	RolePeer Role = "peer"
)

const (
	// OfferWaitTimeout covers the race where the peer joins the room before
	// the host's offer write has landed in the store.
	OfferWaitTimeout = 30 * time.Second

	// CleanupGraceDelay defers room cleanup past the connected transition;
	// trailing ICE candidates may still be in flight to the remote side.
	CleanupGraceDelay = 5 * time.Second

	channelLabel = "beam"
)

var (
	ErrOfferTimeout    = errors.New("timed out waiting for offer")
	ErrInvalidRole     = errors.New("invalid negotiator role")
	ErrChannelNotReady = errors.New("data channel not ready")
)

// Negotiator drives exactly one peer connection through SDP/ICE exchange via
// the signaling store until the data channel transport is connected. It is
// constructed fresh per room and discarded on Close; a retry means a new
// room and a new Negotiator.
type Negotiator struct {
	store  signaling.Store
	roomID string
	role   Role
	pc     *webrtc.PeerConnection

	connected    chan struct{}
	disconnected chan struct{}
	channelReady chan *DataChannel

	connectOnce    sync.Once
	disconnectOnce sync.Once
	cleanupOnce    sync.Once
	closeOnce      sync.Once
	remoteSet      atomic.Bool

	mu      sync.Mutex
	pending []webrtc.ICECandidateInit
	unsubs  []signaling.Unsubscribe
}

// NewNegotiator creates the peer connection with a STUN-only ICE
// configuration and wires its connection-state handlers.
func NewNegotiator(store signaling.Store, stunServers []string, roomID string, role Role) (*Negotiator, error) {
	webrtcConfig := webrtc.Configuration{}
	if len(stunServers) > 0 {
		webrtcConfig.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
	}
	pc, err := webrtc.NewPeerConnection(webrtcConfig)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	n := &Negotiator{
		store:        store,
		roomID:       roomID,
		role:         role,
		pc:           pc,
		connected:    make(chan struct{}),
		disconnected: make(chan struct{}),
		channelReady: make(chan *DataChannel, 1),
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		switch state {
		case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
			n.connectOnce.Do(func() {
				close(n.connected)
				// Grace delay before tearing down the rendezvous: the
				// remote side may still be draining our candidate list
				time.AfterFunc(CleanupGraceDelay, n.cleanupRoom)
			})
		case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateFailed:
			n.disconnectOnce.Do(func() { close(n.disconnected) })
		}
	})

	return n, nil
}

// Start runs the role-specific half of the SDP/ICE exchange. For the peer
// role it blocks until the offer is found or the 30 s wait times out.
func (n *Negotiator) Start(ctx context.Context) error {
	switch n.role {
	case RoleHost:
		return n.startHost(ctx)
	case RolePeer:
		return n.startPeer(ctx)
	default:
		return ErrInvalidRole
	}
}

// Connected is closed once ICE reaches connected/completed.
func (n *Negotiator) Connected() <-chan struct{} { return n.connected }

// Disconnected is closed once ICE reaches disconnected/failed.
func (n *Negotiator) Disconnected() <-chan struct{} { return n.disconnected }

// Channel waits for the session's data channel: created locally for the
// host, announced by the remote side for the peer.
func (n *Negotiator) Channel(ctx context.Context) (*DataChannel, error) {
	select {
	case ch := <-n.channelReady:
		// Put it back for repeated calls
		n.channelReady <- ch
		return ch, nil
	case <-ctx.Done():
		return nil, ErrChannelNotReady
	}
}

// Close tears the session down: listeners unsubscribed, peer connection
// closed, room cleaned up unless the connected transition already did.
func (n *Negotiator) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		unsubs := n.unsubs
		n.unsubs = nil
		n.mu.Unlock()
		for _, unsub := range unsubs {
			unsub()
		}

		if err := n.pc.Close(); err != nil {
			slog.Debug("peer connection close failed", "room", n.roomID, "err", err)
		}
		n.cleanupRoom()
	})
}

func (n *Negotiator) startHost(ctx context.Context) error {
	dc, err := n.pc.CreateDataChannel(channelLabel, nil)
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	n.channelReady <- NewDataChannel(dc)

	n.emitLocalCandidates(signaling.CallerCandidates)

	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	// Trickle ICE: the offer goes out immediately, candidates follow as the
	// ICE agent discovers them
	err = n.store.SetRoomData(ctx, n.roomID, signaling.RoomUpdate{
		Offer: &signaling.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP},
	})
	if err != nil {
		return fmt.Errorf("write offer: %w", err)
	}

	unsub, err := n.store.ListenToRoom(ctx, n.roomID, func(doc signaling.RoomDocument) {
		// The listener also fires for our own offer write; the one-shot
		// guard keeps the remote description from being applied twice
		if doc.Answer == nil || !n.remoteSet.CompareAndSwap(false, true) {
			return
		}
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: doc.Answer.SDP}
		if err := n.pc.SetRemoteDescription(desc); err != nil {
			slog.Error("apply answer failed", "room", n.roomID, "err", err)
			return
		}
		n.flushPendingCandidates()
	})
	if err != nil {
		return fmt.Errorf("listen to room: %w", err)
	}
	n.addUnsub(unsub)

	return n.listenRemoteCandidates(ctx, signaling.CalleeCandidates)
}

func (n *Negotiator) startPeer(ctx context.Context) error {
	n.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != channelLabel {
			return
		}
		select {
		case n.channelReady <- NewDataChannel(dc):
		default:
		}
	})

	n.emitLocalCandidates(signaling.CalleeCandidates)

	offerCh := make(chan signaling.SessionDescription, 1)
	unsub, err := n.store.ListenToRoom(ctx, n.roomID, func(doc signaling.RoomDocument) {
		if doc.Offer == nil {
			return
		}
		select {
		case offerCh <- *doc.Offer:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("listen to room: %w", err)
	}
	n.addUnsub(unsub)

	var offer signaling.SessionDescription
	select {
	case offer = <-offerCh:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(OfferWaitTimeout):
		return ErrOfferTimeout
	}

	if !n.remoteSet.CompareAndSwap(false, true) {
		return nil
	}
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
	if err := n.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("apply offer: %w", err)
	}
	n.flushPendingCandidates()

	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	err = n.store.SetRoomData(ctx, n.roomID, signaling.RoomUpdate{
		Answer: &signaling.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP},
	})
	if err != nil {
		return fmt.Errorf("write answer: %w", err)
	}

	return n.listenRemoteCandidates(ctx, signaling.CallerCandidates)
}

// emitLocalCandidates forwards locally discovered ICE candidates into this
// side's own list as the ICE agent produces them.
func (n *Negotiator) emitLocalCandidates(list signaling.CandidateList) {
	n.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		cand := signaling.Candidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.store.AddICECandidate(ctx, n.roomID, list, cand); err != nil {
			slog.Warn("publish candidate failed", "room", n.roomID, "list", list, "err", err)
		}
	})
}

func (n *Negotiator) listenRemoteCandidates(ctx context.Context, list signaling.CandidateList) error {
	unsub, err := n.store.ListenToICECandidates(ctx, n.roomID, list, func(c signaling.Candidate) {
		init := webrtc.ICECandidateInit{
			Candidate:        c.Candidate,
			SDPMid:           c.SDPMid,
			SDPMLineIndex:    c.SDPMLineIndex,
			UsernameFragment: c.UsernameFragment,
		}
		n.addRemoteCandidate(init)
	})
	if err != nil {
		return fmt.Errorf("listen to %s: %w", list, err)
	}
	n.addUnsub(unsub)
	return nil
}

// addRemoteCandidate queues candidates that arrive before the remote
// description is applied; pion rejects them rather than buffering.
func (n *Negotiator) addRemoteCandidate(init webrtc.ICECandidateInit) {
	n.mu.Lock()
	if n.pc.RemoteDescription() == nil {
		n.pending = append(n.pending, init)
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	if err := n.pc.AddICECandidate(init); err != nil {
		slog.Debug("add remote candidate failed", "room", n.roomID, "err", err)
	}
}

func (n *Negotiator) flushPendingCandidates() {
	n.mu.Lock()
	pending := n.pending
	n.pending = nil
	n.mu.Unlock()

	for _, init := range pending {
		if err := n.pc.AddICECandidate(init); err != nil {
			slog.Debug("add queued candidate failed", "room", n.roomID, "err", err)
		}
	}
}

func (n *Negotiator) addUnsub(unsub signaling.Unsubscribe) {
	n.mu.Lock()
	n.unsubs = append(n.unsubs, unsub)
	n.mu.Unlock()
}

func (n *Negotiator) cleanupRoom() {
	n.cleanupOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.store.CleanupRoom(ctx, n.roomID); err != nil {
			slog.Warn("room cleanup failed", "room", n.roomID, "err", err)
		}
	})
}
