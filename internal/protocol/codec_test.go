// ABOUTME: Tests for the JSON codec and length-prefixed framing.
// ABOUTME: Covers round-trips, decode failures, and the max-frame-size guard.

package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_MessageRoundTrip(t *testing.T) {
	codec := NewCodec(0)

	msg := &Message{
		Role:    "user",
		Content: "hello",
		Metadata: map[string]any{
			"trace":  "abc-123",
			"weight": float64(2),
		},
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := codec.EncodeMessage(msg)
	require.NoError(t, err)

	got, err := codec.DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, msg.Role, got.Role)
	assert.Equal(t, msg.Content, got.Content)
	assert.Equal(t, msg.Metadata, got.Metadata)
	assert.True(t, msg.Timestamp.Equal(got.Timestamp))
}

func TestCodec_EnvelopeRoundTrip(t *testing.T) {
	codec := NewCodec(0)
	env := NewRequest("req-1", "echo", NewMessage("user", "hi"))

	data, err := codec.EncodeEnvelope(env)
	require.NoError(t, err)

	got, err := codec.DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, Version, got.Version)
	assert.Equal(t, TypeRequest, got.Type)
	assert.Equal(t, "req-1", got.ID)

	msg, err := got.RequestMessage()
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
}

func TestCodec_DecodeEnvelope_InvalidJSON(t *testing.T) {
	codec := NewCodec(0)
	_, err := codec.DecodeEnvelope([]byte("{not json"))
	assert.True(t, IsCode(err, CodeInvalidMessage), "got %v", err)
}

func TestCodec_DecodeEnvelope_UnsupportedVersion(t *testing.T) {
	codec := NewCodec(0)
	_, err := codec.DecodeEnvelope([]byte(`{"version":"2.0","type":"request","id":"x"}`))
	assert.True(t, IsCode(err, CodeUnsupportedVersion), "got %v", err)
}

func TestCodec_DecodeEnvelope_MissingVersion(t *testing.T) {
	codec := NewCodec(0)
	_, err := codec.DecodeEnvelope([]byte(`{"type":"request","id":"x"}`))
	assert.True(t, IsCode(err, CodeInvalidMessage), "got %v", err)
}

func TestCodec_FrameRoundTrip(t *testing.T) {
	codec := NewCodec(0)
	payload := []byte(`{"version":"1.0"}`)

	var buf bytes.Buffer
	require.NoError(t, codec.WriteFrame(&buf, payload))

	// 4-byte big-endian prefix followed by the body
	assert.Equal(t, uint32(len(payload)), binary.BigEndian.Uint32(buf.Bytes()[:4]))

	got, err := codec.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCodec_ReadFrame_OversizedDeclaredLength(t *testing.T) {
	codec := NewCodec(64)

	// Header declares a frame far beyond the limit; no body follows. The
	// codec must reject on the header alone instead of allocating.
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 1<<30)

	_, err := codec.ReadFrame(bytes.NewReader(header[:]))
	assert.True(t, IsCode(err, CodeMalformedPayload), "got %v", err)
}

func TestCodec_WriteFrame_OversizedPayload(t *testing.T) {
	codec := NewCodec(8)
	err := codec.WriteFrame(&bytes.Buffer{}, make([]byte, 9))
	assert.True(t, IsCode(err, CodeMalformedPayload), "got %v", err)
}

func TestCodec_ReadFrame_TruncatedBody(t *testing.T) {
	codec := NewCodec(0)

	var buf bytes.Buffer
	require.NoError(t, codec.WriteFrame(&buf, []byte("full frame body")))
	truncated := buf.Bytes()[:buf.Len()-3]

	_, err := codec.ReadFrame(bytes.NewReader(truncated))
	assert.True(t, IsCode(err, CodeConnectionClosed), "got %v", err)
}

func TestCodec_ReadFrame_EmptyReader(t *testing.T) {
	codec := NewCodec(0)
	_, err := codec.ReadFrame(bytes.NewReader(nil))
	assert.True(t, IsCode(err, CodeConnectionClosed), "got %v", err)
}
