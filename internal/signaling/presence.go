package signaling

import (
	"context"
	"log/slog"
	"time"
)

// StartHeartbeat registers the device and refreshes its LastActive stamp on
// an interval until the returned stop function is called. Presence is
// best-effort: write failures are logged and the loop keeps going.
func StartHeartbeat(ctx context.Context, store Store, dev Device) (stop func()) {
	hctx, cancel := context.WithCancel(ctx)

	beat := func() {
		dev.LastActive = time.Now().UnixMilli()
		if err := store.RegisterDevice(hctx, dev); err != nil {
			slog.Warn("presence heartbeat failed", "device", dev.ID, "err", err)
		}
	}

	beat()
	go func() {
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hctx.Done():
				return
			case <-ticker.C:
				beat()
			}
		}
	}()

	return func() {
		cancel()
		// Unregister with a fresh context; the loop context is already gone
		dctx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		if err := store.UnregisterDevice(dctx, dev.ID); err != nil {
			slog.Warn("presence unregister failed", "device", dev.ID, "err", err)
		}
	}
}
