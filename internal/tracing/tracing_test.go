package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerReturnsNoopWhenNeverInitialized(t *testing.T) {
	tr := Tracer("kernel")
	require.NotNil(t, tr)
	_, span := tr.Start(context.Background(), "op")
	defer span.End()
	assert.False(t, span.IsRecording())
}

func TestInitWithEmptyEndpointIsANoop(t *testing.T) {
	require.NoError(t, Init(context.Background(), ""))
	assert.NoError(t, Shutdown(context.Background()))
}

func TestStripSchemeRemovesKnownPrefixes(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("collector:4318"))
}

func TestShutdownIsSafeWithoutInit(t *testing.T) {
	assert.NoError(t, Shutdown(context.Background()))
}
