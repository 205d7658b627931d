package rtc

import (
	"context"

	"github.com/pion/webrtc/v4"

	"beamdrop/internal/transfer"
)

// DataChannel adapts a pion data channel to the transfer protocol's Channel
// interface.
type DataChannel struct {
	dc *webrtc.DataChannel
}

// NewDataChannel wraps a pion data channel.
func NewDataChannel(dc *webrtc.DataChannel) *DataChannel {
	return &DataChannel{dc: dc}
}

func (c *DataChannel) Label() string {
	return c.dc.Label()
}

func (c *DataChannel) SendText(s string) error {
	return c.dc.SendText(s)
}

func (c *DataChannel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *DataChannel) BufferedAmount() uint64 {
	return c.dc.BufferedAmount()
}

func (c *DataChannel) SetBufferedAmountLowThreshold(threshold uint64) {
	c.dc.SetBufferedAmountLowThreshold(threshold)
}

func (c *DataChannel) OnBufferedAmountLow(f func()) {
	c.dc.OnBufferedAmountLow(f)
}

// OnMessage routes incoming channel messages, text and binary alike, to the
// handler.
func (c *DataChannel) OnMessage(f func(transfer.Incoming)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		f(transfer.Incoming{IsString: msg.IsString, Data: msg.Data})
	})
}

// WaitOpen blocks until the channel is open or the context ends.
func (c *DataChannel) WaitOpen(ctx context.Context) error {
	if c.dc.ReadyState() == webrtc.DataChannelStateOpen {
		return nil
	}

	open := make(chan struct{}, 1)
	c.dc.OnOpen(func() {
		select {
		case open <- struct{}{}:
		default:
		}
	})

	if c.dc.ReadyState() == webrtc.DataChannelStateOpen {
		return nil
	}

	select {
	case <-open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *DataChannel) Close() error {
	return c.dc.Close()
}
