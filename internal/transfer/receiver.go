package transfer

import (
	"log/slog"
	"sync"
)

// ReceiverState is the discrete protocol state of the receive side. Frames
// arriving in the wrong state fail loudly instead of corrupting a sink.
type ReceiverState int

const (
	// ReceiverIdle: between files, waiting for the next meta or done_all.
	ReceiverIdle ReceiverState = iota

	// ReceiverReceiving: a meta has been accepted, chunks are streaming
	// into the active sink until eof.
	ReceiverReceiving
)

// ReceiverCallbacks surface receive-side events to the UI shell. Callbacks
// run on the channel's message goroutine and must not call back into the
// Receiver.
type ReceiverCallbacks struct {
	// OnMeta fires when the next file is announced.
	OnMeta func(meta FileMeta)

	// OnProgress fires after every chunk with total bytes received so far.
	OnProgress func(meta FileMeta, received int64)

	// OnFileDone fires after the sink is finalized, with the on-disk path.
	OnFileDone func(meta FileMeta, path string)

	// OnAllDone fires on done_all, the end of the whole batch.
	OnAllDone func()
}

// Receiver is the receive half of the transfer protocol: a single logical
// stream of state driven by incoming frames. Each file is routed to a RAM
// or disk sink when its meta arrives and finalized on eof.
type Receiver struct {
	factory   SinkFactory
	callbacks ReceiverCallbacks

	mu       sync.Mutex
	state    ReceiverState
	meta     FileMeta
	sink     Sink
	received int64
}

// NewReceiver creates an idle receiver writing through the given factory.
func NewReceiver(factory SinkFactory, callbacks ReceiverCallbacks) *Receiver {
	return &Receiver{
		factory:   factory,
		callbacks: callbacks,
	}
}

// State returns the current protocol state.
func (r *Receiver) State() ReceiverState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HandleMessage consumes one data-channel message: a JSON control frame for
// text messages, a raw chunk for binary ones.
func (r *Receiver) HandleMessage(msg Incoming) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !msg.IsString {
		return r.handleChunk(msg.Data)
	}

	frame, err := DecodeFrame(msg.Data)
	if err != nil {
		return err
	}

	switch frame.Type {
	case FrameMeta:
		return r.handleMeta(frame.Meta)
	case FrameEOF:
		return r.handleEOF()
	default:
		return r.handleDoneAll()
	}
}

// Abort discards any in-flight file after a transport failure. A partial
// disk file is deleted; the RAM buffer is dropped.
func (r *Receiver) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sink != nil {
		if err := r.sink.Abort(); err != nil {
			slog.Warn("sink abort failed", "file", r.meta.Name, "err", err)
		}
		r.sink = nil
	}
	r.state = ReceiverIdle
	r.received = 0
}

func (r *Receiver) handleMeta(meta FileMeta) error {
	if r.state != ReceiverIdle {
		return NewFileError("meta", meta.Name, ErrMetaWhileActive)
	}

	sink, err := r.openSink(meta)
	if err != nil {
		return NewFileError("open sink", meta.Name, err)
	}

	r.state = ReceiverReceiving
	r.meta = meta
	r.sink = sink
	r.received = 0

	if r.callbacks.OnMeta != nil {
		r.callbacks.OnMeta(meta)
	}
	return nil
}

// openSink routes by declared size: large files stream straight to disk so
// they are never held in RAM, everything else takes the simpler RAM path.
// A disk-sink failure falls back to RAM transparently.
func (r *Receiver) openSink(meta FileMeta) (Sink, error) {
	if meta.Size > DiskSinkThreshold && r.factory.DiskAvailable() {
		sink, err := r.factory.NewDiskSink(meta)
		if err == nil {
			return sink, nil
		}
		slog.Debug("disk sink unavailable, falling back to RAM", "file", meta.Name, "err", err)
	}
	return r.factory.NewMemorySink(meta)
}

func (r *Receiver) handleChunk(data []byte) error {
	if r.state != ReceiverReceiving {
		return NewError("chunk", ErrChunkBeforeMeta)
	}

	if _, err := r.sink.Write(data); err != nil {
		return NewFileError("write chunk", r.meta.Name, err)
	}
	r.received += int64(len(data))

	if r.callbacks.OnProgress != nil {
		r.callbacks.OnProgress(r.meta, r.received)
	}
	return nil
}

func (r *Receiver) handleEOF() error {
	if r.state != ReceiverReceiving {
		return NewError("eof", ErrFrameOutOfPlace)
	}

	if err := r.sink.Close(); err != nil {
		return NewFileError("finalize", r.meta.Name, err)
	}

	meta, path := r.meta, r.sink.Path()
	r.sink = nil
	r.state = ReceiverIdle
	r.received = 0

	if r.callbacks.OnFileDone != nil {
		r.callbacks.OnFileDone(meta, path)
	}
	return nil
}

func (r *Receiver) handleDoneAll() error {
	if r.state != ReceiverIdle {
		return NewError("done_all", ErrFrameOutOfPlace)
	}

	if r.callbacks.OnAllDone != nil {
		r.callbacks.OnAllDone()
	}
	return nil
}
