package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-zeromq/zmq4"

	"github.com/weftlang/weft/internal/wire"
)

// socketKind maps a logical channel to the ZeroMQ socket pattern spec.md
// §4.1 requires: shell/stdin/control are ROUTER (client-identity framed),
// iopub is PUB (lossless to the kernel, may drop for slow subscribers),
// heartbeat is REP (echo).
func socketKind(ch wire.Channel) (zmq4.SocketType, bool) {
	switch ch {
	case wire.ChannelShell, wire.ChannelStdin, wire.ChannelControl:
		return zmq4.Router, true
	case wire.ChannelIOPub:
		return zmq4.Pub, true
	case wire.ChannelHeartbeat:
		return zmq4.Rep, true
	default:
		return "", false
	}
}

// ZMQTransport is the daemon/multi-client implementation of Transport.
// zmq4 sockets only expose a blocking Recv, so each socket gets its own
// receive goroutine draining into an internal queue (the same pattern the
// teacher's kernel used with per-channel goroutines); Recv itself just pops
// that queue non-blockingly, matching the Transport contract.
type ZMQTransport struct {
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	sockets map[wire.Channel]zmq4.Socket
	inbound map[wire.Channel]*queue
	closed  bool
}

// NewZMQTransport constructs an unbound transport; call Bind or Connect.
func NewZMQTransport() *ZMQTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &ZMQTransport{
		ctx:     ctx,
		cancel:  cancel,
		sockets: map[wire.Channel]zmq4.Socket{},
		inbound: map[wire.Channel]*queue{},
	}
}

func addr(cfg Config, port int) string {
	kind := cfg.TransportKind
	if kind == "" {
		kind = "tcp"
	}
	if kind == "ipc" {
		return fmt.Sprintf("ipc://%s", cfg.IP)
	}
	return fmt.Sprintf("tcp://%s:%d", cfg.IP, port)
}

func (t *ZMQTransport) Bind(cfg Config) (BoundEndpoints, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	endpoints := BoundEndpoints{IP: cfg.IP, Ports: map[wire.Channel]int{}}
	for _, ch := range wire.AllChannels {
		kind, ok := socketKind(ch)
		if !ok {
			continue
		}
		var sock zmq4.Socket
		switch kind {
		case zmq4.Router:
			sock = zmq4.NewRouter(t.ctx)
		case zmq4.Pub:
			sock = zmq4.NewPub(t.ctx)
		case zmq4.Rep:
			sock = zmq4.NewRep(t.ctx)
		default:
			return BoundEndpoints{}, fmt.Errorf("unsupported socket type for %s", ch)
		}

		port := cfg.Ports[ch]
		a := addr(cfg, port)
		if err := sock.Listen(a); err != nil {
			return BoundEndpoints{}, fmt.Errorf("bind %s (%s): %w", ch, a, err)
		}
		t.sockets[ch] = sock
		endpoints.Ports[ch] = actualPort(sock, port)
		if ch == wire.ChannelHeartbeat {
			go t.echoHeartbeat(sock)
			continue
		}
		t.inbound[ch] = &queue{}
		go t.pump(ch, sock)
	}
	return endpoints, nil
}

// echoHeartbeat implements the REP echo pattern (spec.md §4.1): every
// received frame is sent back verbatim. It must not be routed through the
// generic inbound queue because a REP socket requires exactly one Send
// between two Recv calls.
func (t *ZMQTransport) echoHeartbeat(sock zmq4.Socket) {
	for {
		msg, err := sock.Recv()
		if err != nil {
			return
		}
		if err := sock.Send(msg); err != nil {
			return
		}
	}
}

func (t *ZMQTransport) Connect(cfg Config) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ch := range wire.AllChannels {
		kind, ok := socketKind(ch)
		if !ok {
			continue
		}
		var sock zmq4.Socket
		switch kind {
		case zmq4.Router:
			sock = zmq4.NewDealer(t.ctx)
		case zmq4.Pub:
			sock = zmq4.NewSub(t.ctx)
		case zmq4.Rep:
			sock = zmq4.NewReq(t.ctx)
		}
		a := addr(cfg, cfg.Ports[ch])
		if err := sock.Dial(a); err != nil {
			return fmt.Errorf("connect %s (%s): %w", ch, a, err)
		}
		if kind == zmq4.Pub {
			_ = sock.SetOption(zmq4.OptionSubscribe, "")
		}
		t.sockets[ch] = sock
		t.inbound[ch] = &queue{}
		go t.pump(ch, sock)
	}
	return nil
}

// pump blocks on sock.Recv() forever, pushing each message into the
// channel's inbound queue, until the socket closes.
func (t *ZMQTransport) pump(ch wire.Channel, sock zmq4.Socket) {
	for {
		msg, err := sock.Recv()
		if err != nil {
			return
		}
		t.mu.RLock()
		q := t.inbound[ch]
		t.mu.RUnlock()
		if q == nil {
			return
		}
		q.push(msg.Frames)
	}
}

func (t *ZMQTransport) Send(channel wire.Channel, parts [][]byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrTransportClosed
	}
	sock, ok := t.sockets[channel]
	if !ok {
		return unknownChannel(channel)
	}
	return sock.Send(zmq4.NewMsgFrom(parts...))
}

func (t *ZMQTransport) Recv(channel wire.Channel) ([][]byte, error) {
	t.mu.RLock()
	q, ok := t.inbound[channel]
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return nil, ErrTransportClosed
	}
	if !ok {
		return nil, unknownChannel(channel)
	}
	parts, found := q.pop()
	if !found {
		return nil, nil
	}
	return parts, nil
}

func (t *ZMQTransport) Heartbeat() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sockets[wire.ChannelHeartbeat]
	return ok && !t.closed
}

func (t *ZMQTransport) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()
	var firstErr error
	for _, sock := range t.sockets {
		if err := sock.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// actualPort extracts the bound port from a listening socket's address,
// resolving config's "0 = kernel-assigned" request (spec.md §4.1).
func actualPort(sock zmq4.Socket, requested int) int {
	if requested != 0 {
		return requested
	}
	addrs := sock.Addr()
	if addrs == nil {
		return 0
	}
	s := addrs.String()
	if idx := strings.LastIndex(s, ":"); idx != -1 {
		var port int
		fmt.Sscanf(s[idx+1:], "%d", &port)
		return port
	}
	return 0
}
