package transfer

// Channel is the slice of an ordered, reliable data channel the transfer
// protocol needs. The ordering guarantee is what lets the receiver append
// chunks without sequence numbers.
type Channel interface {
	// SendText sends a JSON control frame as a text message.
	SendText(s string) error

	// Send sends one raw binary chunk.
	Send(data []byte) error

	// BufferedAmount reports bytes queued but not yet handed to the transport.
	BufferedAmount() uint64

	// SetBufferedAmountLowThreshold arms the buffered-amount-low signal.
	SetBufferedAmountLowThreshold(threshold uint64)

	// OnBufferedAmountLow registers the handler fired once the buffered
	// amount drains below the configured threshold. Re-registering replaces
	// the previous handler.
	OnBufferedAmountLow(f func())
}
