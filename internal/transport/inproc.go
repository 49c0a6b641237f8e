package transport

import (
	"sync"

	"github.com/weftlang/weft/internal/wire"
)

// queue is an unbounded, goroutine-safe FIFO of multipart frame sets.
type queue struct {
	mu    sync.Mutex
	items [][][]byte
}

func (q *queue) push(parts [][]byte) {
	q.mu.Lock()
	q.items = append(q.items, parts)
	q.mu.Unlock()
}

func (q *queue) pop() ([][]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// pairedChannel is one logical channel's pair of unbounded queues: sends
// from endpoint A enqueue into inbound-to-B, and vice versa.
type pairedChannel struct {
	toA *queue
	toB *queue
}

func newPairedChannel() *pairedChannel {
	return &pairedChannel{toA: &queue{}, toB: &queue{}}
}

// InProcTransport is the embedded-use implementation of Transport: no
// serialization, parts passed by reference, used by tests and by an
// in-process client driving the kernel without a ZeroMQ socket.
type InProcTransport struct {
	mu       sync.RWMutex
	channels map[wire.Channel]*pairedChannel
	isServer bool // true = this endpoint reads toA/writes toB
	closed   bool
}

// NewInProcPair returns two linked transports: the first plays the kernel
// side, the second the client side, for every channel in wire.AllChannels.
func NewInProcPair() (kernelSide, clientSide *InProcTransport) {
	channels := make(map[wire.Channel]*pairedChannel, len(wire.AllChannels))
	for _, ch := range wire.AllChannels {
		channels[ch] = newPairedChannel()
	}
	kernelSide = &InProcTransport{channels: channels, isServer: true}
	clientSide = &InProcTransport{channels: channels, isServer: false}
	return kernelSide, clientSide
}

func (t *InProcTransport) Bind(cfg Config) (BoundEndpoints, error) {
	return BoundEndpoints{IP: "inproc"}, nil
}

func (t *InProcTransport) Connect(cfg Config) error { return nil }

func (t *InProcTransport) Send(channel wire.Channel, parts [][]byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrTransportClosed
	}
	pc, ok := t.channels[channel]
	if !ok {
		return unknownChannel(channel)
	}
	if t.isServer {
		pc.toB.push(parts)
	} else {
		pc.toA.push(parts)
	}
	return nil
}

func (t *InProcTransport) Recv(channel wire.Channel) ([][]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, ErrTransportClosed
	}
	pc, ok := t.channels[channel]
	if !ok {
		return nil, unknownChannel(channel)
	}
	var parts [][]byte
	var found bool
	if t.isServer {
		parts, found = pc.toA.pop()
	} else {
		parts, found = pc.toB.pop()
	}
	if !found {
		return nil, nil
	}
	return parts, nil
}

func (t *InProcTransport) Heartbeat() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.closed
}

func (t *InProcTransport) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
