// ABOUTME: JSON codec and length-prefixed framing for envelopes and messages.
// ABOUTME: Enforces the maximum frame size before allocating or reading a body.

package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
)

// DefaultMaxFrameSize is the largest frame the codec accepts by default.
const DefaultMaxFrameSize = 10 << 20 // 10 MiB

// frameHeaderSize is the length prefix width: a big-endian uint32.
const frameHeaderSize = 4

// Codec serializes messages and envelopes to UTF-8 JSON and frames them
// with a 4-byte big-endian length prefix. The zero value is not usable;
// construct with NewCodec.
type Codec struct {
	maxFrameSize uint32
}

// NewCodec creates a Codec with the given maximum frame size. Sizes of
// zero or less fall back to DefaultMaxFrameSize.
func NewCodec(maxFrameSize int) *Codec {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Codec{maxFrameSize: uint32(maxFrameSize)}
}

// MaxFrameSize returns the configured frame size limit in bytes.
func (c *Codec) MaxFrameSize() int {
	return int(c.maxFrameSize)
}

// EncodeEnvelope validates and serializes an envelope.
func (c *Codec) EncodeEnvelope(env *Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, WrapError(CodeInvalidMessage, "encoding envelope", err)
	}
	return data, nil
}

// DecodeEnvelope parses and validates an envelope from a frame body.
func (c *Codec) DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, WrapError(CodeInvalidMessage, "decoding envelope", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// EncodeMessage serializes a bare Message.
func (c *Codec) EncodeMessage(msg *Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, WrapError(CodeInvalidMessage, "invalid message", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, WrapError(CodeInvalidMessage, "encoding message", err)
	}
	return data, nil
}

// DecodeMessage parses a bare Message.
func (c *Codec) DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, WrapError(CodeInvalidMessage, "decoding message", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, WrapError(CodeInvalidMessage, "invalid message", err)
	}
	return &msg, nil
}

// WriteFrame writes one length-prefixed frame to w.
func (c *Codec) WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > int(c.maxFrameSize) {
		return Errorf(CodeMalformedPayload, "frame size %d exceeds maximum %d", len(payload), c.maxFrameSize)
	}
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return WrapError(CodeConnectionClosed, "writing frame header", err)
	}
	if _, err := w.Write(payload); err != nil {
		return WrapError(CodeConnectionClosed, "writing frame body", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r. A declared length
// beyond the maximum is rejected before the body is allocated or read.
func (c *Codec) ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
			return nil, WrapError(CodeConnectionClosed, "connection closed", err)
		}
		return nil, WrapError(CodeConnectionFailed, "reading frame header", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > c.maxFrameSize {
		return nil, Errorf(CodeMalformedPayload, "declared frame size %d exceeds maximum %d", length, c.maxFrameSize)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
			return nil, WrapError(CodeConnectionClosed, "connection closed mid-frame", err)
		}
		return nil, WrapError(CodeConnectionFailed, "reading frame body", err)
	}
	return payload, nil
}
