package transfer

import (
	"context"
	"io"
	"os"
	"time"

	"beamdrop/internal/files"
)

// SendProgress reports bytes sent for the file at index.
type SendProgress func(index int, sent, total int64)

// Sender streams a batch of files, strictly in order, over one channel.
// One Sender owns the channel's backpressure configuration for the lifetime
// of the session.
type Sender struct {
	channel        Channel
	onProgress     SendProgress
	interFileDelay time.Duration
	sendTimeout    time.Duration
}

// NewSender wraps a channel for sending and arms its drain signal.
func NewSender(ch Channel, onProgress SendProgress) *Sender {
	ch.SetBufferedAmountLowThreshold(BufferLowWater)
	return &Sender{
		channel:        ch,
		onProgress:     onProgress,
		interFileDelay: InterFileDelay,
		sendTimeout:    SendTimeout,
	}
}

// SendAll streams every file in order, then announces the end of the batch.
// The pause between files gives the receiver time to finalize the previous
// sink before the next meta lands.
func (s *Sender) SendAll(ctx context.Context, fileInfos []files.FileInfo) error {
	for i, info := range fileInfos {
		if err := s.sendFile(ctx, i, info); err != nil {
			return err
		}

		if i < len(fileInfos)-1 {
			select {
			case <-ctx.Done():
				return WrapError("send", ErrTransferCancelled, info.Name)
			case <-time.After(s.interFileDelay):
			}
		}
	}

	frame, err := EncodeSimpleFrame(FrameDoneAll)
	if err != nil {
		return NewError("encode done_all", err)
	}
	if err := s.channel.SendText(string(frame)); err != nil {
		return NewError("send done_all", err)
	}
	return nil
}

func (s *Sender) sendFile(ctx context.Context, index int, info files.FileInfo) error {
	meta, err := EncodeMetaFrame(FileMeta{Name: info.Name, Size: info.Size, MimeType: info.Type})
	if err != nil {
		return NewFileError("encode meta", info.Name, err)
	}
	if err := s.channel.SendText(string(meta)); err != nil {
		return NewFileError("send meta", info.Name, err)
	}

	file, err := os.Open(info.Path)
	if err != nil {
		return NewFileError("open", info.Name, err)
	}
	defer file.Close()

	buffer := make([]byte, ChunkSize)
	var sent int64

	for {
		if err := s.waitForWindow(ctx); err != nil {
			return NewFileError("send", info.Name, err)
		}

		n, readErr := file.Read(buffer)
		if n > 0 {
			if err := s.channel.Send(buffer[:n]); err != nil {
				return NewFileError("send chunk", info.Name, err)
			}
			sent += int64(n)
			if s.onProgress != nil {
				s.onProgress(index, sent, info.Size)
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return NewFileError("read", info.Name, readErr)
		}
	}

	frame, err := EncodeSimpleFrame(FrameEOF)
	if err != nil {
		return NewFileError("encode eof", info.Name, err)
	}
	if err := s.channel.SendText(string(frame)); err != nil {
		return NewFileError("send eof", info.Name, err)
	}
	return nil
}

// waitForWindow is the backpressure gate: when the channel has buffered more
// than the threshold, wait for its one-shot drain signal before sending the
// next chunk. Keeps the outbound buffer bounded when the receiver or the
// network is slower than the file reads.
func (s *Sender) waitForWindow(ctx context.Context) error {
	if s.channel.BufferedAmount() <= BufferLowWater {
		return nil
	}

	wait := make(chan struct{}, 1)
	s.channel.OnBufferedAmountLow(func() {
		select {
		case wait <- struct{}{}:
		default:
		}
	})

	// Re-check after arming the handler; the channel may have drained in
	// between and the signal already fired
	if s.channel.BufferedAmount() <= BufferLowWater {
		return nil
	}

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ErrTransferCancelled
	case <-time.After(s.sendTimeout):
		return ErrBufferTimeout
	}
}
