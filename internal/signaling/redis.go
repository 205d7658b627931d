package signaling

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"beamdrop/internal/config"
)

// Room event payloads published on a room's change channel.
const (
	eventRoom   = "room"
	eventInvite = "invite"
)

// RedisStore implements Store on a shared Redis instance. Room documents are
// hashes with msgpack-encoded offer/answer fields, candidate lists are
// RPUSH-only lists of msgpack documents, and change feeds ride on pub/sub
// channels per room and per device. The active-device listing is a poll with
// the staleness filter applied at read time.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: "beamdrop:" + cfg.Namespace + ":",
	}, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) roomKey(roomID string) string {
	return s.prefix + "room:" + roomID
}

func (s *RedisStore) candidateKey(roomID string, list CandidateList) string {
	return s.roomKey(roomID) + ":" + string(list)
}

func (s *RedisStore) roomEventsKey(roomID string) string {
	return s.roomKey(roomID) + ":events"
}

func (s *RedisStore) deviceKey(deviceID string) string {
	return s.prefix + "device:" + deviceID
}

func (s *RedisStore) deviceEventsKey(deviceID string) string {
	return s.deviceKey(deviceID) + ":events"
}

func (s *RedisStore) devicesKey() string {
	return s.prefix + "devices"
}

func (s *RedisStore) SetRoomData(ctx context.Context, roomID string, update RoomUpdate) error {
	fields := make([]any, 0, 4)
	if update.Offer != nil {
		data, err := msgpack.Marshal(update.Offer)
		if err != nil {
			return fmt.Errorf("marshal offer: %w", err)
		}
		fields = append(fields, "offer", data)
	}
	if update.Answer != nil {
		data, err := msgpack.Marshal(update.Answer)
		if err != nil {
			return fmt.Errorf("marshal answer: %w", err)
		}
		fields = append(fields, "answer", data)
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.client.HSet(ctx, s.roomKey(roomID), fields...).Err(); err != nil {
		return fmt.Errorf("write room %s: %w", roomID, err)
	}
	return s.client.Publish(ctx, s.roomEventsKey(roomID), eventRoom).Err()
}

func (s *RedisStore) readRoom(ctx context.Context, roomID string) (RoomDocument, error) {
	raw, err := s.client.HGetAll(ctx, s.roomKey(roomID)).Result()
	if err != nil {
		return RoomDocument{}, fmt.Errorf("read room %s: %w", roomID, err)
	}

	var doc RoomDocument
	if data, ok := raw["offer"]; ok {
		var desc SessionDescription
		if err := msgpack.Unmarshal([]byte(data), &desc); err == nil {
			doc.Offer = &desc
		}
	}
	if data, ok := raw["answer"]; ok {
		var desc SessionDescription
		if err := msgpack.Unmarshal([]byte(data), &desc); err == nil {
			doc.Answer = &desc
		}
	}
	return doc, nil
}

func (s *RedisStore) ListenToRoom(ctx context.Context, roomID string, callback func(RoomDocument)) (Unsubscribe, error) {
	lctx, cancel := context.WithCancel(ctx)
	pubsub := s.client.Subscribe(lctx, s.roomEventsKey(roomID))

	deliver := func() {
		doc, err := s.readRoom(lctx, roomID)
		if err != nil {
			slog.Debug("room read failed", "room", roomID, "err", err)
			return
		}
		callback(doc)
	}

	go func() {
		deliver()
		ch := pubsub.Channel()
		for {
			select {
			case <-lctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == eventRoom {
					deliver()
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			pubsub.Close()
		})
	}, nil
}

func (s *RedisStore) AddICECandidate(ctx context.Context, roomID string, list CandidateList, cand Candidate) error {
	data, err := msgpack.Marshal(cand)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	if err := s.client.RPush(ctx, s.candidateKey(roomID, list), data).Err(); err != nil {
		return fmt.Errorf("append candidate to %s: %w", list, err)
	}
	return s.client.Publish(ctx, s.roomEventsKey(roomID), string(list)).Err()
}

func (s *RedisStore) ListenToICECandidates(ctx context.Context, roomID string, list CandidateList, callback func(Candidate)) (Unsubscribe, error) {
	lctx, cancel := context.WithCancel(ctx)
	pubsub := s.client.Subscribe(lctx, s.roomEventsKey(roomID))
	key := s.candidateKey(roomID, list)

	go func() {
		// Subscribed before the first LRANGE so nothing lands unseen in
		// between; the delivered index keeps redelivery out
		delivered := 0
		deliver := func() {
			vals, err := s.client.LRange(lctx, key, int64(delivered), -1).Result()
			if err != nil {
				slog.Debug("candidate read failed", "room", roomID, "list", list, "err", err)
				return
			}
			for _, v := range vals {
				var cand Candidate
				if err := msgpack.Unmarshal([]byte(v), &cand); err != nil {
					slog.Debug("candidate decode failed", "room", roomID, "err", err)
					continue
				}
				callback(cand)
			}
			delivered += len(vals)
		}

		deliver()
		ch := pubsub.Channel()
		for {
			select {
			case <-lctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == string(list) {
					deliver()
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			pubsub.Close()
		})
	}, nil
}

func (s *RedisStore) CleanupRoom(ctx context.Context, roomID string) error {
	err := s.client.Del(ctx,
		s.candidateKey(roomID, CallerCandidates),
		s.candidateKey(roomID, CalleeCandidates),
		s.roomKey(roomID),
	).Err()
	if err != nil {
		return fmt.Errorf("cleanup room %s: %w", roomID, err)
	}
	return nil
}

func (s *RedisStore) RegisterDevice(ctx context.Context, dev Device) error {
	lastActive := dev.LastActive
	if lastActive == 0 {
		lastActive = time.Now().UnixMilli()
	}

	// Only name and lastActive are touched so a heartbeat refresh never
	// swallows a pending invite
	err := s.client.HSet(ctx, s.deviceKey(dev.ID),
		"name", dev.Name,
		"lastActive", strconv.FormatInt(lastActive, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("register device %s: %w", dev.ID, err)
	}
	return s.client.SAdd(ctx, s.devicesKey(), dev.ID).Err()
}

func (s *RedisStore) UnregisterDevice(ctx context.Context, deviceID string) error {
	if err := s.client.SRem(ctx, s.devicesKey(), deviceID).Err(); err != nil {
		return fmt.Errorf("unregister device %s: %w", deviceID, err)
	}
	return s.client.Del(ctx, s.deviceKey(deviceID)).Err()
}

func (s *RedisStore) readDevice(ctx context.Context, deviceID string) (Device, bool, error) {
	raw, err := s.client.HGetAll(ctx, s.deviceKey(deviceID)).Result()
	if err != nil {
		return Device{}, false, err
	}
	if len(raw) == 0 {
		return Device{}, false, nil
	}

	dev := Device{
		ID:             deviceID,
		Name:           raw["name"],
		IncomingRoomID: raw["incomingRoomId"],
	}
	if v, err := strconv.ParseInt(raw["lastActive"], 10, 64); err == nil {
		dev.LastActive = v
	}
	return dev, true, nil
}

func (s *RedisStore) activeSnapshot(ctx context.Context, myDeviceID string) ([]Device, error) {
	ids, err := s.client.SMembers(ctx, s.devicesKey()).Result()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	devices := make([]Device, 0, len(ids))
	for _, id := range ids {
		if id == myDeviceID {
			continue
		}
		dev, ok, err := s.readDevice(ctx, id)
		if err != nil || !ok {
			continue
		}
		if dev.ActiveAt(now) {
			devices = append(devices, dev)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

func (s *RedisStore) ListenToActiveDevices(ctx context.Context, myDeviceID string, callback func([]Device)) (Unsubscribe, error) {
	lctx, cancel := context.WithCancel(ctx)

	go func() {
		var last []Device
		first := true
		deliver := func() {
			devices, err := s.activeSnapshot(lctx, myDeviceID)
			if err != nil {
				slog.Debug("device snapshot failed", "err", err)
				return
			}
			if first || !devicesEqual(last, devices) {
				first = false
				last = devices
				callback(devices)
			}
		}

		deliver()
		ticker := time.NewTicker(DevicePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-lctx.Done():
				return
			case <-ticker.C:
				deliver()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (s *RedisStore) SendTransferInvite(ctx context.Context, targetDeviceID, roomID string) error {
	err := s.client.HSet(ctx, s.deviceKey(targetDeviceID), "incomingRoomId", roomID).Err()
	if err != nil {
		return fmt.Errorf("send invite to %s: %w", targetDeviceID, err)
	}
	return s.client.Publish(ctx, s.deviceEventsKey(targetDeviceID), eventInvite).Err()
}

func (s *RedisStore) ListenToIncomingInvites(ctx context.Context, myDeviceID string, callback func(string)) (Unsubscribe, error) {
	lctx, cancel := context.WithCancel(ctx)
	pubsub := s.client.Subscribe(lctx, s.deviceEventsKey(myDeviceID))

	go func() {
		lastSeen := ""
		deliver := func() {
			dev, ok, err := s.readDevice(lctx, myDeviceID)
			if err != nil || !ok {
				return
			}
			if dev.IncomingRoomID != "" && dev.IncomingRoomID != lastSeen {
				lastSeen = dev.IncomingRoomID
				callback(dev.IncomingRoomID)
			}
			if dev.IncomingRoomID == "" {
				lastSeen = ""
			}
		}

		deliver()
		ch := pubsub.Channel()
		for {
			select {
			case <-lctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == eventInvite {
					deliver()
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			pubsub.Close()
		})
	}, nil
}

func (s *RedisStore) ClearIncomingInvite(ctx context.Context, myDeviceID string) error {
	return s.client.HDel(ctx, s.deviceKey(myDeviceID), "incomingRoomId").Err()
}

func devicesEqual(a, b []Device) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
