// Package session owns the live state of one room: the negotiator, the
// transfer in flight, and the wake lock. A Session is created fresh per
// room, driven through negotiate and transfer, and discarded on teardown;
// nothing survives into the next room.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"beamdrop/internal/config"
	"beamdrop/internal/files"
	"beamdrop/internal/power"
	"beamdrop/internal/rtc"
	"beamdrop/internal/signaling"
	"beamdrop/internal/transfer"
)

// State is the discrete lifecycle state of a session. Transitions are
// validated so out-of-order driving fails loudly instead of corrupting the
// transfer.
type State int

const (
	StateIdle State = iota
	StateNegotiating
	StateConnected
	StateSending
	StateReceiving
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateSending:
		return "sending"
	case StateReceiving:
		return "receiving"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var validTransitions = map[State][]State{
	StateIdle:         {StateNegotiating, StateClosed},
	StateNegotiating:  {StateConnected, StateDisconnected, StateClosed},
	StateConnected:    {StateSending, StateReceiving, StateDisconnected, StateClosed},
	StateSending:      {StateConnected, StateDisconnected, StateClosed},
	StateReceiving:    {StateConnected, StateDisconnected, StateClosed},
	StateDisconnected: {StateClosed},
	StateClosed:       {},
}

// EventType tags a session event.
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventMeta
	EventProgress
	EventFileDone
	EventAllDone
	EventError
)

// Event is one update surfaced to the UI shell.
type Event struct {
	Type      EventType
	FileName  string
	FileIndex int
	Bytes     int64
	Total     int64
	Path      string
	Err       error
}

// Session is the controller for one room.
type Session struct {
	store  signaling.Store
	neg    *rtc.Negotiator
	roomID string
	role   rtc.Role

	mu    sync.Mutex
	state State
	wake  power.Lock

	receiver *transfer.Receiver
	events   chan Event
}

// New builds a session for the given room and role.
func New(store signaling.Store, cfg *config.Config, roomID string, role rtc.Role) (*Session, error) {
	neg, err := rtc.NewNegotiator(store, cfg.GetSTUNServers(), roomID, role)
	if err != nil {
		return nil, err
	}

	return &Session{
		store:  store,
		neg:    neg,
		roomID: roomID,
		role:   role,
		state:  StateIdle,
		events: make(chan Event, 256),
	}, nil
}

// RoomID returns the 6-digit pairing code of this session's room.
func (s *Session) RoomID() string { return s.roomID }

// Role returns whether this side hosts or joins.
func (s *Session) Role() rtc.Role { return s.role }

// Events streams session updates to the UI shell.
func (s *Session) Events() <-chan Event { return s.events }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start kicks off negotiation and begins watching the transport state. For
// the peer role this blocks until the host's offer is found or the offer
// wait times out.
func (s *Session) Start(ctx context.Context) error {
	if err := s.transition(StateNegotiating); err != nil {
		return err
	}

	if err := s.neg.Start(ctx); err != nil {
		return err
	}

	go s.watchTransport(ctx)
	return nil
}

func (s *Session) watchTransport(ctx context.Context) {
	select {
	case <-s.neg.Connected():
		if err := s.transition(StateConnected); err == nil {
			s.emit(Event{Type: EventConnected})
		}
	case <-ctx.Done():
		return
	}

	select {
	case <-s.neg.Disconnected():
		s.mu.Lock()
		closed := s.state == StateClosed
		s.mu.Unlock()
		if closed {
			return
		}
		if err := s.transition(StateDisconnected); err != nil {
			return
		}
		s.releaseWake()
		if s.receiver != nil {
			s.receiver.Abort()
		}
		s.emit(Event{Type: EventDisconnected})
	case <-ctx.Done():
	}
}

// Send streams the batch over the data channel. It blocks until every file
// and the final done_all frame are out, then returns the session to the
// connected state.
func (s *Session) Send(ctx context.Context, fileInfos []files.FileInfo) error {
	ch, err := s.neg.Channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.WaitOpen(ctx); err != nil {
		return err
	}

	if err := s.transition(StateSending); err != nil {
		return err
	}
	s.acquireWake()
	defer s.releaseWake()

	sender := transfer.NewSender(ch, func(index int, sent, total int64) {
		s.emit(Event{Type: EventProgress, FileIndex: index, FileName: fileInfos[index].Name, Bytes: sent, Total: total})
		if sent >= total {
			s.emit(Event{Type: EventFileDone, FileIndex: index, FileName: fileInfos[index].Name, Bytes: total, Total: total})
		}
	})

	if err := sender.SendAll(ctx, fileInfos); err != nil {
		s.emit(Event{Type: EventError, Err: err})
		return err
	}

	if err := s.transition(StateConnected); err == nil {
		s.emit(Event{Type: EventAllDone})
	}
	return nil
}

// StartReceiving attaches the receive state machine to the data channel.
// Events flow until done_all; the caller decides when to leave the room.
func (s *Session) StartReceiving(ctx context.Context, factory transfer.SinkFactory) error {
	ch, err := s.neg.Channel(ctx)
	if err != nil {
		return err
	}

	fileIndex := -1
	s.receiver = transfer.NewReceiver(factory, transfer.ReceiverCallbacks{
		OnMeta: func(meta transfer.FileMeta) {
			fileIndex++
			if err := s.transition(StateReceiving); err != nil {
				slog.Warn("unexpected meta", "state", s.State(), "err", err)
				return
			}
			s.acquireWake()
			s.emit(Event{Type: EventMeta, FileIndex: fileIndex, FileName: meta.Name, Total: meta.Size})
		},
		OnProgress: func(meta transfer.FileMeta, received int64) {
			s.emit(Event{Type: EventProgress, FileIndex: fileIndex, FileName: meta.Name, Bytes: received, Total: meta.Size})
		},
		OnFileDone: func(meta transfer.FileMeta, path string) {
			if err := s.transition(StateConnected); err != nil {
				return
			}
			s.emit(Event{Type: EventFileDone, FileIndex: fileIndex, FileName: meta.Name, Bytes: meta.Size, Total: meta.Size, Path: path})
		},
		OnAllDone: func() {
			s.releaseWake()
			s.emit(Event{Type: EventAllDone})
		},
	})

	ch.OnMessage(func(msg transfer.Incoming) {
		if err := s.receiver.HandleMessage(msg); err != nil {
			s.emit(Event{Type: EventError, Err: err})
		}
	})
	return nil
}

// Teardown unwinds the session: wake lock released, any partial sink
// aborted, peer connection closed, room cleaned up if still standing.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.releaseWake()
	if s.receiver != nil {
		s.receiver.Abort()
	}
	s.neg.Close()
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range validTransitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", s.state, to)
}

func (s *Session) acquireWake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wake == nil {
		s.wake = power.Acquire()
	}
}

func (s *Session) releaseWake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wake != nil {
		s.wake.Release()
		s.wake = nil
	}
}

// emit never blocks the transfer path: progress updates are dropped when
// the consumer lags, everything else waits for buffer space.
func (s *Session) emit(ev Event) {
	if ev.Type == EventProgress {
		select {
		case s.events <- ev:
		default:
		}
		return
	}
	s.events <- ev
}
