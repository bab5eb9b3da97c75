package frame

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerr "supportd/internal/errors"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"plain", "I need help with my order", false},
		{"empty", "", false},
		{"unicode", "remboursement s'il vous plaît", false},
		{"carriage return allowed", "hello\r", false},
		{"embedded newline", "line one\nline two", true},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMessage(tt.text)
			if tt.wantErr {
				require.ErrorIs(t, err, ncerr.ErrInvalidFrame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.text, m.Payload())
			assert.Equal(t, len(tt.text), m.Len())
		})
	}
}

func TestEncode(t *testing.T) {
	assert.Equal(t, []byte("bye\n"), Encode(MustMessage("bye")))
	assert.Equal(t, []byte("\n"), Encode(Message{}))
}

func TestDecode_RoundTrip(t *testing.T) {
	payloads := []string{
		"",
		"exit",
		"Hi, I need help in order status",
		strings.Repeat("x", DefaultMaxFrameSize),
		"naïve café ☕",
	}
	for _, p := range payloads {
		m := MustMessage(p)
		got, rest, err := Decode(Encode(m), 0)
		require.NoError(t, err)
		assert.Equal(t, m, got)
		assert.Empty(t, rest)
	}
}

func TestDecode_NeedMoreDataPreservesBuffer(t *testing.T) {
	buf := []byte("partial frame")
	_, rest, err := Decode(buf, 0)
	require.ErrorIs(t, err, ErrNeedMoreData)
	assert.Equal(t, buf, rest)
}

func TestDecode_SplitAnywhere(t *testing.T) {
	wire := Encode(MustMessage("I want to get refund soon"))
	for cut := 0; cut < len(wire); cut++ {
		first, second := wire[:cut], wire[cut:]

		_, rest, err := Decode(first, 0)
		require.ErrorIs(t, err, ErrNeedMoreData, "cut=%d", cut)

		acc := append(append([]byte{}, rest...), second...)
		m, rest, err := Decode(acc, 0)
		require.NoError(t, err, "cut=%d", cut)
		assert.Equal(t, "I want to get refund soon", m.Payload())
		assert.Empty(t, rest)
	}
}

func TestDecode_MultipleFrames(t *testing.T) {
	buf := []byte("one\ntwo\nthr")

	m, buf, err := Decode(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "one", m.Payload())

	m, buf, err = Decode(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "two", m.Payload())

	_, buf, err = Decode(buf, 0)
	require.ErrorIs(t, err, ErrNeedMoreData)
	assert.Equal(t, []byte("thr"), buf)
}

func TestDecode_FrameTooLarge(t *testing.T) {
	t.Run("no delimiter yet", func(t *testing.T) {
		_, _, err := Decode(bytes.Repeat([]byte("a"), 17), 16)
		require.ErrorIs(t, err, ncerr.ErrFrameTooLarge)
	})
	t.Run("delimiter past bound", func(t *testing.T) {
		_, _, err := Decode(append(bytes.Repeat([]byte("a"), 17), '\n'), 16)
		require.ErrorIs(t, err, ncerr.ErrFrameTooLarge)
	})
	t.Run("exactly at bound", func(t *testing.T) {
		m, _, err := Decode(append(bytes.Repeat([]byte("a"), 16), '\n'), 16)
		require.NoError(t, err)
		assert.Equal(t, 16, m.Len())
	})
	t.Run("default bound", func(t *testing.T) {
		_, _, err := Decode(bytes.Repeat([]byte("a"), 70000), 0)
		require.ErrorIs(t, err, ncerr.ErrFrameTooLarge)
	})
}

func TestDecode_InvalidUTF8(t *testing.T) {
	_, rest, err := Decode([]byte{0xc3, 0x28, '\n', 'o', 'k'}, 0)
	require.ErrorIs(t, err, ncerr.ErrInvalidFrame)
	assert.Equal(t, []byte("ok"), rest)
}

func TestReader_ChunkedInput(t *testing.T) {
	wire := "Hi, I need help in order status\nI want to get refund soon\nexit\n"
	fr := NewReader(iotest.OneByteReader(strings.NewReader(wire)), 0)

	for _, want := range []string{"Hi, I need help in order status", "I want to get refund soon", "exit"} {
		m, err := fr.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, m.Payload())
	}
	_, err := fr.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, fr.Buffered())
}

func TestReader_DataWithEOF(t *testing.T) {
	fr := NewReader(iotest.DataErrReader(strings.NewReader("last\n")), 0)
	m, err := fr.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "last", m.Payload())

	_, err = fr.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_UnexpectedEOF(t *testing.T) {
	fr := NewReader(strings.NewReader("truncated"), 0)
	_, err := fr.ReadMessage()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReader_TooLarge(t *testing.T) {
	fr := NewReader(bytes.NewReader(bytes.Repeat([]byte("z"), 70000)), 0)
	_, err := fr.ReadMessage()
	require.ErrorIs(t, err, ncerr.ErrFrameTooLarge)
}

func TestReader_ErrorKeepsPartialFrame(t *testing.T) {
	r := io.MultiReader(
		strings.NewReader("hel"),
		iotest.ErrReader(iotest.ErrTimeout),
	)
	fr := NewReader(r, 0)
	_, err := fr.ReadMessage()
	require.ErrorIs(t, err, iotest.ErrTimeout)
	assert.Equal(t, 3, fr.Buffered())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	fw := NewWriter(&buf)

	n, err := fw.WriteText("I will process refund immediately....")
	require.NoError(t, err)
	assert.Equal(t, buf.Len(), n)
	assert.Equal(t, "I will process refund immediately....\n", buf.String())

	_, err = fw.WriteText("two\nlines")
	require.ErrorIs(t, err, ncerr.ErrInvalidFrame)

	_, err = NewWriter(failingWriter{}).WriteText("x")
	require.ErrorIs(t, err, ncerr.ErrWriteFailed)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
