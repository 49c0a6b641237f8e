// Package wire implements the Jupyter v5.3 wire protocol: message framing,
// HMAC-SHA256 signing/verification, and the fixed channel topology (spec.md
// §4.2). It has no transport or kernel-state knowledge — it only knows how
// to turn a Message into frames and back.
package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Delimiter is the literal multipart frame marker (spec.md §3, §6).
const Delimiter = "<IDS|MSG>"

// SignatureScheme is the only scheme this protocol version supports.
const SignatureScheme = "hmac-sha256"

// ProtocolVersion is the Jupyter wire protocol version implemented here.
const ProtocolVersion = "5.3"

// Header is the Jupyter message header (spec.md §3).
type Header struct {
	MsgID    string `json:"msg_id"`
	MsgType  string `json:"msg_type"`
	Session  string `json:"session_id"`
	Username string `json:"username"`
	Date     string `json:"date"`
	Version  string `json:"version"`
}

// NewHeader builds a header with a fresh UUID v4 msg_id and the current
// RFC 3339 timestamp.
func NewHeader(session, msgType, username string) Header {
	if username == "" {
		username = "kernel"
	}
	return Header{
		MsgID:    uuid.NewString(),
		MsgType:  msgType,
		Session:  session,
		Username: username,
		Date:     time.Now().UTC().Format(time.RFC3339),
		Version:  ProtocolVersion,
	}
}

// Message is a fully decoded wire message (spec.md §3). Metadata and Content
// are raw JSON objects; handlers decode Content into typed structs
// themselves since the schema depends on MsgType.
type Message struct {
	Header       Header
	ParentHeader Header
	Metadata     json.RawMessage
	Content      json.RawMessage

	// Identities is the client routing prefix captured off a ROUTER
	// socket; empty for transports (like in-process) that carry it
	// out-of-band.
	Identities [][]byte
}

// ErrMalformedFrame is returned when the <IDS|MSG> delimiter is missing.
type ErrMalformedFrame struct{ Reason string }

func (e *ErrMalformedFrame) Error() string { return "malformed frame: " + e.Reason }

// ErrInvalidSignature is returned when the HMAC does not verify. Per
// spec.md §4.2/§7 the caller must log and drop the message without a reply.
type ErrInvalidSignature struct {
	Expected, Got string
}

func (e *ErrInvalidSignature) Error() string { return "invalid signature" }

// Decode parses a raw multipart frame set into a Message, verifying its
// signature against key. Frames before the delimiter are treated as routing
// identity.
func Decode(parts [][]byte, key []byte) (*Message, error) {
	delim := -1
	for i, p := range parts {
		if string(p) == Delimiter {
			delim = i
			break
		}
	}
	if delim == -1 {
		return nil, &ErrMalformedFrame{Reason: "missing <IDS|MSG> delimiter"}
	}
	if len(parts) < delim+6 {
		return nil, &ErrMalformedFrame{Reason: "too few frames after delimiter"}
	}

	identities := parts[:delim]
	signature := string(parts[delim+1])
	headerBytes := parts[delim+2]
	parentBytes := parts[delim+3]
	metaBytes := parts[delim+4]
	contentBytes := parts[delim+5]

	expected := sign(key, headerBytes, parentBytes, metaBytes, contentBytes)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, &ErrInvalidSignature{Expected: expected, Got: signature}
	}

	var m Message
	if err := json.Unmarshal(headerBytes, &m.Header); err != nil {
		return nil, &ErrMalformedFrame{Reason: "header: " + err.Error()}
	}
	if len(parentBytes) > 0 && string(parentBytes) != "null" {
		if err := json.Unmarshal(parentBytes, &m.ParentHeader); err != nil {
			return nil, &ErrMalformedFrame{Reason: "parent_header: " + err.Error()}
		}
	}
	m.Metadata = append(json.RawMessage(nil), metaBytes...)
	m.Content = append(json.RawMessage(nil), contentBytes...)
	m.Identities = identities
	return &m, nil
}

// Encode turns header/parent/metadata/content into a signed multipart frame
// set, with identities (if any) prepended for ROUTER delivery.
func Encode(key []byte, header, parent Header, metadata, content interface{}, identities ...[]byte) ([][]byte, error) {
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	parentBytes, err := json.Marshal(parent)
	if err != nil {
		return nil, fmt.Errorf("marshal parent_header: %w", err)
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if content == nil {
		content = map[string]interface{}{}
	}
	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	contentBytes, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	signature := sign(key, headerBytes, parentBytes, metaBytes, contentBytes)

	frames := make([][]byte, 0, len(identities)+6)
	frames = append(frames, identities...)
	frames = append(frames,
		[]byte(Delimiter),
		[]byte(signature),
		headerBytes,
		parentBytes,
		metaBytes,
		contentBytes,
	)
	return frames, nil
}

func sign(key []byte, parts ...[]byte) string {
	mac := hmac.New(sha256.New, key)
	for _, p := range parts {
		mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// DecodeContent is a convenience for handlers: unmarshal Content into v.
func (m *Message) DecodeContent(v interface{}) error {
	if len(m.Content) == 0 {
		return nil
	}
	return json.Unmarshal(m.Content, v)
}
