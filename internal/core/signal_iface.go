package core

//go:generate mockgen -destination=mocks/mock_signal.go -package=mocks github.com/dkeye/LiveClass/internal/core SignalConnection

// Frame is one encoded envelope.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues a frame without blocking.
	TrySend(Frame) error
	// Close flushes queued frames and shuts the transport down.
	Close()
	// Done is closed once the peer is gone, including silent network loss
	// detected by the transport heartbeat.
	Done() <-chan struct{}
}
