// Package frame implements the wire codec: UTF-8 text frames terminated
// by a single '\n'.  Decode is a pure function of the accumulated
// buffer, so callers may feed bytes in arbitrary chunks and call it
// again whenever more arrive.
package frame

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	ncerr "supportd/internal/errors"
)

// Delimiter terminates every frame on the wire.
const Delimiter = '\n'

// DefaultMaxFrameSize bounds a single payload (64 KiB).
const DefaultMaxFrameSize = 64 * 1024

// ErrNeedMoreData is returned by Decode when the buffer does not yet
// hold a complete frame.  It is not a protocol error.
var ErrNeedMoreData = ncerr.New("need more data")

// Message is one decoded frame.  The zero value is the empty message.
type Message struct {
	payload string
}

// NewMessage validates text as a frame payload.
func NewMessage(text string) (Message, error) {
	if strings.IndexByte(text, Delimiter) >= 0 {
		return Message{}, fmt.Errorf("%w: payload contains newline", ncerr.ErrInvalidFrame)
	}
	if !utf8.ValidString(text) {
		return Message{}, fmt.Errorf("%w: payload is not valid UTF-8", ncerr.ErrInvalidFrame)
	}
	return Message{payload: text}, nil
}

// MustMessage is NewMessage for constant payloads; it panics on error.
func MustMessage(text string) Message {
	m, err := NewMessage(text)
	if err != nil {
		panic(err)
	}
	return m
}

// Payload returns the frame text without its delimiter.
func (m Message) Payload() string { return m.payload }

// Len is the byte length of the payload.
func (m Message) Len() int { return len(m.payload) }

func (m Message) String() string { return m.payload }

// Encode returns the wire form of m.
func Encode(m Message) []byte {
	out := make([]byte, 0, len(m.payload)+1)
	out = append(out, m.payload...)
	return append(out, Delimiter)
}

// Decode extracts the first frame from buf.
//
// With no delimiter present it returns ErrNeedMoreData and buf
// unchanged, unless buf already exceeds max, in which case the frame
// can never complete and ErrFrameTooLarge is returned.  A max of zero
// or less selects DefaultMaxFrameSize.
func Decode(buf []byte, max int) (Message, []byte, error) {
	if max <= 0 {
		max = DefaultMaxFrameSize
	}

	idx := bytes.IndexByte(buf, Delimiter)
	if idx < 0 {
		if len(buf) > max {
			return Message{}, buf, fmt.Errorf("%w: %d bytes buffered without delimiter (max %d)",
				ncerr.ErrFrameTooLarge, len(buf), max)
		}
		return Message{}, buf, ErrNeedMoreData
	}
	if idx > max {
		return Message{}, buf, fmt.Errorf("%w: %d byte payload (max %d)",
			ncerr.ErrFrameTooLarge, idx, max)
	}

	payload := buf[:idx]
	if !utf8.Valid(payload) {
		return Message{}, buf[idx+1:], fmt.Errorf("%w: payload is not valid UTF-8", ncerr.ErrInvalidFrame)
	}
	return Message{payload: string(payload)}, buf[idx+1:], nil
}
