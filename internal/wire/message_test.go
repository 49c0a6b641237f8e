package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	key := []byte("secret")
	header := NewHeader("session-1", "execute_request", "tester")
	parent := Header{}
	content := map[string]any{"code": "1 + 1"}

	frames, err := Encode(key, header, parent, nil, content)
	require.NoError(t, err)

	msg, err := Decode(frames, key)
	require.NoError(t, err)
	assert.Equal(t, header.MsgID, msg.Header.MsgID)
	assert.Equal(t, "execute_request", msg.Header.MsgType)

	var decoded map[string]any
	require.NoError(t, msg.DecodeContent(&decoded))
	assert.Equal(t, "1 + 1", decoded["code"])
}

func TestEncodeDecodeWithIdentities(t *testing.T) {
	key := []byte("secret")
	header := NewHeader("session-1", "kernel_info_request", "")
	frames, err := Encode(key, header, Header{}, nil, nil, []byte("routing-id-1"), []byte("routing-id-2"))
	require.NoError(t, err)

	msg, err := Decode(frames, key)
	require.NoError(t, err)
	require.Len(t, msg.Identities, 2)
	assert.Equal(t, "routing-id-1", string(msg.Identities[0]))
}

func TestDecodeRejectsInvalidSignature(t *testing.T) {
	header := NewHeader("session-1", "execute_request", "tester")
	frames, err := Encode([]byte("secret"), header, Header{}, nil, nil)
	require.NoError(t, err)

	_, err = Decode(frames, []byte("wrong-key"))
	require.Error(t, err)
	var sigErr *ErrInvalidSignature
	assert.ErrorAs(t, err, &sigErr)
}

func TestDecodeRejectsMissingDelimiter(t *testing.T) {
	_, err := Decode([][]byte{[]byte("garbage")}, []byte("secret"))
	require.Error(t, err)
	var frameErr *ErrMalformedFrame
	assert.ErrorAs(t, err, &frameErr)
}

func TestDecodeContentNoopOnEmpty(t *testing.T) {
	m := &Message{}
	var v map[string]any
	assert.NoError(t, m.DecodeContent(&v))
}

func TestHeaderJSONFieldNames(t *testing.T) {
	h := NewHeader("sess", "execute_request", "bob")
	data, err := json.Marshal(h)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "msg_id")
	assert.Contains(t, raw, "session_id")
}
