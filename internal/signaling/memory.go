package signaling

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same listener semantics as the
// Redis implementation. It backs the unit tests and single-machine demos.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int

	rooms      map[string]RoomDocument
	candidates map[string][]Candidate // keyed roomID + "/" + list
	devices    map[string]Device

	roomSubs   map[string]map[int]func(RoomDocument)
	candSubs   map[string]map[int]*candidateSub
	inviteSubs map[string]map[int]*inviteSub
	deviceSubs map[int]*deviceSub
}

type candidateSub struct {
	callback  func(Candidate)
	delivered int
}

type inviteSub struct {
	callback func(string)
	lastSeen string
}

type deviceSub struct {
	myID     string
	callback func([]Device)
}

// NewMemoryStore creates an empty in-memory signaling store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:      make(map[string]RoomDocument),
		candidates: make(map[string][]Candidate),
		devices:    make(map[string]Device),
		roomSubs:   make(map[string]map[int]func(RoomDocument)),
		candSubs:   make(map[string]map[int]*candidateSub),
		inviteSubs: make(map[string]map[int]*inviteSub),
		deviceSubs: make(map[int]*deviceSub),
	}
}

func candKey(roomID string, list CandidateList) string {
	return roomID + "/" + string(list)
}

func (s *MemoryStore) SetRoomData(_ context.Context, roomID string, update RoomUpdate) error {
	s.mu.Lock()
	doc := s.rooms[roomID]
	if update.Offer != nil {
		doc.Offer = update.Offer
	}
	if update.Answer != nil {
		doc.Answer = update.Answer
	}
	s.rooms[roomID] = doc
	callbacks := s.roomCallbacksLocked(roomID)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(doc)
	}
	return nil
}

func (s *MemoryStore) ListenToRoom(_ context.Context, roomID string, callback func(RoomDocument)) (Unsubscribe, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.roomSubs[roomID] == nil {
		s.roomSubs[roomID] = make(map[int]func(RoomDocument))
	}
	s.roomSubs[roomID][id] = callback
	doc := s.rooms[roomID]
	s.mu.Unlock()

	// Initial snapshot, matching the live-query semantics of the Redis store
	callback(doc)

	return func() {
		s.mu.Lock()
		delete(s.roomSubs[roomID], id)
		s.mu.Unlock()
	}, nil
}

func (s *MemoryStore) AddICECandidate(_ context.Context, roomID string, list CandidateList, cand Candidate) error {
	key := candKey(roomID, list)

	s.mu.Lock()
	s.candidates[key] = append(s.candidates[key], cand)
	type delivery struct {
		callback func(Candidate)
		pending  []Candidate
	}
	var deliveries []delivery
	for _, sub := range s.candSubs[key] {
		pending := append([]Candidate(nil), s.candidates[key][sub.delivered:]...)
		sub.delivered = len(s.candidates[key])
		deliveries = append(deliveries, delivery{sub.callback, pending})
	}
	s.mu.Unlock()

	for _, d := range deliveries {
		for _, c := range d.pending {
			d.callback(c)
		}
	}
	return nil
}

func (s *MemoryStore) ListenToICECandidates(_ context.Context, roomID string, list CandidateList, callback func(Candidate)) (Unsubscribe, error) {
	key := candKey(roomID, list)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.candSubs[key] == nil {
		s.candSubs[key] = make(map[int]*candidateSub)
	}
	existing := append([]Candidate(nil), s.candidates[key]...)
	s.candSubs[key][id] = &candidateSub{callback: callback, delivered: len(existing)}
	s.mu.Unlock()

	// Candidates appended before the subscription still count as "newly
	// added" from the subscriber's point of view
	for _, c := range existing {
		callback(c)
	}

	return func() {
		s.mu.Lock()
		delete(s.candSubs[key], id)
		s.mu.Unlock()
	}, nil
}

func (s *MemoryStore) CleanupRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	delete(s.rooms, roomID)
	delete(s.candidates, candKey(roomID, CallerCandidates))
	delete(s.candidates, candKey(roomID, CalleeCandidates))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) RegisterDevice(_ context.Context, dev Device) error {
	s.mu.Lock()
	if existing, ok := s.devices[dev.ID]; ok && dev.IncomingRoomID == "" {
		// A heartbeat refresh must not swallow a pending invite
		dev.IncomingRoomID = existing.IncomingRoomID
	}
	s.devices[dev.ID] = dev
	subs := s.deviceSubsLocked()
	s.mu.Unlock()

	s.notifyDeviceSubs(subs)
	return nil
}

func (s *MemoryStore) UnregisterDevice(_ context.Context, deviceID string) error {
	s.mu.Lock()
	delete(s.devices, deviceID)
	subs := s.deviceSubsLocked()
	s.mu.Unlock()

	s.notifyDeviceSubs(subs)
	return nil
}

func (s *MemoryStore) ListenToActiveDevices(_ context.Context, myDeviceID string, callback func([]Device)) (Unsubscribe, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	sub := &deviceSub{myID: myDeviceID, callback: callback}
	s.deviceSubs[id] = sub
	s.mu.Unlock()

	callback(s.activeSnapshot(myDeviceID))

	return func() {
		s.mu.Lock()
		delete(s.deviceSubs, id)
		s.mu.Unlock()
	}, nil
}

func (s *MemoryStore) SendTransferInvite(_ context.Context, targetDeviceID, roomID string) error {
	s.mu.Lock()
	dev, ok := s.devices[targetDeviceID]
	if ok {
		dev.IncomingRoomID = roomID
		s.devices[targetDeviceID] = dev
	}
	var deliveries []func()
	for _, sub := range s.inviteSubs[targetDeviceID] {
		if sub.lastSeen != roomID && roomID != "" {
			sub.lastSeen = roomID
			cb := sub.callback
			deliveries = append(deliveries, func() { cb(roomID) })
		}
	}
	s.mu.Unlock()

	for _, d := range deliveries {
		d()
	}
	return nil
}

func (s *MemoryStore) ListenToIncomingInvites(_ context.Context, myDeviceID string, callback func(string)) (Unsubscribe, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.inviteSubs[myDeviceID] == nil {
		s.inviteSubs[myDeviceID] = make(map[int]*inviteSub)
	}
	sub := &inviteSub{callback: callback}
	pending := s.devices[myDeviceID].IncomingRoomID
	sub.lastSeen = pending
	s.inviteSubs[myDeviceID][id] = sub
	s.mu.Unlock()

	if pending != "" {
		callback(pending)
	}

	return func() {
		s.mu.Lock()
		delete(s.inviteSubs[myDeviceID], id)
		s.mu.Unlock()
	}, nil
}

func (s *MemoryStore) ClearIncomingInvite(_ context.Context, myDeviceID string) error {
	s.mu.Lock()
	if dev, ok := s.devices[myDeviceID]; ok {
		dev.IncomingRoomID = ""
		s.devices[myDeviceID] = dev
	}
	for _, sub := range s.inviteSubs[myDeviceID] {
		sub.lastSeen = ""
	}
	s.mu.Unlock()
	return nil
}

// RoomDocumentSnapshot returns the current room document; test helper.
func (s *MemoryStore) RoomDocumentSnapshot(roomID string) (RoomDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.rooms[roomID]
	return doc, ok
}

// CandidateCount returns the number of stored candidates; test helper.
func (s *MemoryStore) CandidateCount(roomID string, list CandidateList) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidates[candKey(roomID, list)])
}

func (s *MemoryStore) roomCallbacksLocked(roomID string) []func(RoomDocument) {
	callbacks := make([]func(RoomDocument), 0, len(s.roomSubs[roomID]))
	for _, cb := range s.roomSubs[roomID] {
		callbacks = append(callbacks, cb)
	}
	return callbacks
}

func (s *MemoryStore) deviceSubsLocked() []*deviceSub {
	subs := make([]*deviceSub, 0, len(s.deviceSubs))
	for _, sub := range s.deviceSubs {
		subs = append(subs, sub)
	}
	return subs
}

func (s *MemoryStore) notifyDeviceSubs(subs []*deviceSub) {
	for _, sub := range subs {
		sub.callback(s.activeSnapshot(sub.myID))
	}
}

func (s *MemoryStore) activeSnapshot(myDeviceID string) []Device {
	now := time.Now()

	s.mu.Lock()
	devices := make([]Device, 0, len(s.devices))
	for _, dev := range s.devices {
		if dev.ID == myDeviceID || !dev.ActiveAt(now) {
			continue
		}
		devices = append(devices, dev)
	}
	s.mu.Unlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices
}
