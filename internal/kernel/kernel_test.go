package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/internal/config"
	"github.com/weftlang/weft/internal/registry"
	"github.com/weftlang/weft/internal/transport"
	"github.com/weftlang/weft/internal/wire"
)

var testKey = []byte("test-secret")

func newTestKernel(t *testing.T) (*Kernel, *transport.InProcTransport) {
	t.Helper()
	kernelSide, clientSide := transport.NewInProcPair()

	cfg := config.Defaults()
	cfg.ExecuteTimeout = 2 * time.Second

	deps := Deps{
		Transport: kernelSide,
		Registry:  registry.NewInMemory(),
	}
	k := New(cfg, deps, testKey)
	require.NoError(t, k.Bind(transport.Config{}))
	return k, clientSide
}

func sendOn(t *testing.T, tr transport.Transport, ch wire.Channel, msgType string, content any) wire.Header {
	t.Helper()
	header := wire.NewHeader("session-1", msgType, "tester")
	parts, err := wire.Encode(testKey, header, wire.Header{}, nil, content)
	require.NoError(t, err)
	require.NoError(t, tr.Send(ch, parts))
	return header
}

func recvWithin(t *testing.T, tr transport.Transport, ch wire.Channel, d time.Duration) *wire.Message {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		parts, err := tr.Recv(ch)
		require.NoError(t, err)
		if parts != nil {
			msg, err := wire.Decode(parts, testKey)
			require.NoError(t, err)
			return msg
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for a message on %s", ch)
	return nil
}

func TestKernelInfoRequestRoundTrip(t *testing.T) {
	k, client := newTestKernel(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.Run(ctx)

	sendOn(t, client, wire.ChannelShell, "kernel_info_request", map[string]any{})

	reply := recvWithin(t, client, wire.ChannelShell, time.Second)
	assert.Equal(t, "kernel_info_reply", reply.Header.MsgType)

	var content map[string]any
	require.NoError(t, reply.DecodeContent(&content))
	assert.Equal(t, wire.ProtocolVersion, content["protocol_version"])
}

func TestExecuteRequestPublishesBusyIdleAndResult(t *testing.T) {
	k, client := newTestKernel(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.Run(ctx)

	sendOn(t, client, wire.ChannelShell, "execute_request", map[string]any{"code": "1 + 1"})

	busy := recvWithin(t, client, wire.ChannelIOPub, time.Second)
	assert.Equal(t, "status", busy.Header.MsgType)

	reply := recvWithin(t, client, wire.ChannelShell, time.Second)
	assert.Equal(t, "execute_reply", reply.Header.MsgType)
	var content map[string]any
	require.NoError(t, reply.DecodeContent(&content))
	assert.Equal(t, "ok", content["status"])

	result := recvUntil(t, client, wire.ChannelIOPub, "execute_result", time.Second)
	assert.Equal(t, "execute_result", result.Header.MsgType)

	idle := recvUntil(t, client, wire.ChannelIOPub, "status", time.Second)
	var idleContent map[string]any
	require.NoError(t, idle.DecodeContent(&idleContent))
	assert.Equal(t, "idle", idleContent["execution_state"])
}

func TestShutdownRequestDrivesKernelToCompletion(t *testing.T) {
	k, client := newTestKernel(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- k.Run(ctx) }()

	sendOn(t, client, wire.ChannelControl, "shutdown_request", map[string]any{"restart": false})

	reply := recvWithin(t, client, wire.ChannelControl, time.Second)
	assert.Equal(t, "shutdown_reply", reply.Header.MsgType)

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("kernel never exited its run loop after shutdown_request")
	}
}

func TestToolRequestUnknownCommand(t *testing.T) {
	k, client := newTestKernel(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go k.Run(ctx)

	sendOn(t, client, wire.ChannelShell, "tool_request", map[string]any{"command": "not_a_command"})

	reply := recvWithin(t, client, wire.ChannelShell, time.Second)
	assert.Equal(t, "tool_reply", reply.Header.MsgType)
	var content map[string]any
	require.NoError(t, reply.DecodeContent(&content))
	assert.Equal(t, "error", content["status"])
}
