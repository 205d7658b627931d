package transfer

import "time"

const (
	// ChunkSize is the fixed size of one binary frame on the data channel.
	ChunkSize = 16 * 1024

	// BufferLowWater is the buffered-amount threshold for the backpressure
	// gate: above it the sender waits for the channel to drain.
	BufferLowWater = 64 * 1024

	// DiskSinkThreshold routes files declared above this size to a
	// streaming disk sink instead of the RAM buffer.
	DiskSinkThreshold = 50 * 1024 * 1024

	// InterFileDelay is the settle pause between files, letting the
	// receiver finalize the previous sink before the next meta arrives.
	InterFileDelay = 500 * time.Millisecond

	// LeaveDelay is how long both sides linger after done_all before
	// leaving the room.
	LeaveDelay = 2500 * time.Millisecond

	// SendTimeout bounds one wait for the channel to drain.
	SendTimeout = 60 * time.Second
)
