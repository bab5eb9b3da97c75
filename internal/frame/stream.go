package frame

import (
	"errors"
	"fmt"
	"io"

	ncerr "supportd/internal/errors"
	"supportd/util"
)

// Reader decodes frames from a byte stream, holding partial frames
// between calls.
type Reader struct {
	r   io.Reader
	max int
	buf []byte
}

// NewReader returns a Reader that rejects payloads longer than max
// bytes (0 selects DefaultMaxFrameSize).
func NewReader(r io.Reader, max int) *Reader {
	if max <= 0 {
		max = DefaultMaxFrameSize
	}
	return &Reader{r: r, max: max}
}

// Buffered reports how many undecoded bytes are held.
func (fr *Reader) Buffered() int { return len(fr.buf) }

// ReadMessage blocks until one complete frame is available.
//
// It returns io.EOF when the stream ends on a frame boundary and
// io.ErrUnexpectedEOF when it ends mid-frame.  Frame errors
// (ErrInvalidFrame, ErrFrameTooLarge) leave the Reader unusable.
func (fr *Reader) ReadMessage() (Message, error) {
	var scratch *[]byte
	defer func() { util.PutBuf(scratch) }()

	for {
		msg, rest, err := Decode(fr.buf, fr.max)
		if err == nil {
			fr.compact(rest)
			return msg, nil
		}
		if !errors.Is(err, ErrNeedMoreData) {
			return Message{}, err
		}

		if scratch == nil {
			scratch = util.GetBuf()
		}
		n, rerr := fr.r.Read(*scratch)
		if n > 0 {
			fr.buf = append(fr.buf, (*scratch)[:n]...)
		}
		if rerr != nil {
			if n > 0 && errors.Is(rerr, io.EOF) {
				// Decode what arrived alongside EOF before reporting it.
				continue
			}
			if errors.Is(rerr, io.EOF) && len(fr.buf) > 0 {
				return Message{}, io.ErrUnexpectedEOF
			}
			return Message{}, rerr
		}
	}
}

// compact moves the undecoded tail to the front of the buffer so the
// backing array does not grow with every frame.
func (fr *Reader) compact(rest []byte) {
	n := copy(fr.buf, rest)
	fr.buf = fr.buf[:n]
}

// Writer emits exactly one encoded frame per call.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteMessage writes m followed by the delimiter in a single Write.
// Any failure is reported as ErrWriteFailed.
func (fw *Writer) WriteMessage(m Message) (int, error) {
	n, err := fw.w.Write(Encode(m))
	if err != nil {
		return n, fmt.Errorf("%w: %w", ncerr.ErrWriteFailed, err)
	}
	return n, nil
}

// WriteText validates text as a payload and writes it.
func (fw *Writer) WriteText(text string) (int, error) {
	m, err := NewMessage(text)
	if err != nil {
		return 0, err
	}
	return fw.WriteMessage(m)
}
