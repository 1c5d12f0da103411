package exr

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// errShortPayload is wrapped by callers into the matching taxonomy error.
var errShortPayload = errors.New("payload too short")

// byteWriter appends little-endian values to a growing buffer.
type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u8(v uint8)    { w.buf = append(w.buf, v) }
func (w *byteWriter) i32(v int32)   { w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v)) }
func (w *byteWriter) u32(v uint32)  { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *byteWriter) u64(v uint64)  { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *byteWriter) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *byteWriter) f64(v float64) { w.u64(math.Float64bits(v)) }
func (w *byteWriter) raw(b []byte)  { w.buf = append(w.buf, b...) }

func (w *byteWriter) nullString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// sliceReader decodes little-endian values from an in-memory payload.
type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) remaining() int { return len(r.data) - r.pos }

func (r *sliceReader) take(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at %d, have %d", errShortPayload, n, r.pos, r.remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *sliceReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *sliceReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *sliceReader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *sliceReader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *sliceReader) f32() (float32, error) {
	v, err := r.u32()
	return math.Float32frombits(v), err
}

func (r *sliceReader) f64() (float64, error) {
	v, err := r.u64()
	return math.Float64frombits(v), err
}

// nullString reads a zero-terminated string of at most maxLen bytes.
func (r *sliceReader) nullString(maxLen int) (string, error) {
	idx := bytes.IndexByte(r.data[r.pos:], 0)
	if idx < 0 {
		return "", fmt.Errorf("%w: unterminated string at %d", errShortPayload, r.pos)
	}
	if idx > maxLen {
		return "", fmt.Errorf("%w: string of %d bytes at %d exceeds %d", errShortPayload, idx, r.pos, maxLen)
	}
	s := string(r.data[r.pos : r.pos+idx])
	r.pos += idx + 1
	return s, nil
}

// streamReader reads the header section of a file and tracks the byte
// position for error context.
type streamReader struct {
	r     *bufio.Reader
	pos   int64
	limit int64
	size  int64 // total stream size, or -1 when unknown
}

func newStreamReader(r io.Reader, limit, size int64) *streamReader {
	return &streamReader{r: bufio.NewReader(r), limit: limit, size: size}
}

func (s *streamReader) ioErr(what string, err error) error {
	return fmt.Errorf("%w: %s at byte %d: %w", ErrIO, what, s.pos, err)
}

func (s *streamReader) peekByte() (byte, error) {
	b, err := s.r.Peek(1)
	if err != nil {
		return 0, s.ioErr("peek", err)
	}
	return b[0], nil
}

func (s *streamReader) readByte() (byte, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, s.ioErr("read byte", err)
	}
	s.pos++
	return b, nil
}

func (s *streamReader) fixed(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, s.ioErr("read", err)
	}
	s.pos += int64(n)
	return buf, nil
}

func (s *streamReader) u32() (uint32, error) {
	b, err := s.fixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (s *streamReader) i32() (int32, error) {
	v, err := s.u32()
	return int32(v), err
}

func (s *streamReader) u64() (uint64, error) {
	b, err := s.fixed(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// sized reads n bytes declared by the stream itself. The size is checked
// against the allocation limit and the known stream size first, and the
// buffer grows with the data actually read.
func (s *streamReader) sized(n int64, what string) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %s: negative size %d at byte %d", ErrInvalidHeader, what, n, s.pos)
	}
	if err := checkAlloc(n, s.limit, what); err != nil {
		return nil, err
	}
	if s.size >= 0 && s.pos+n > s.size {
		return nil, fmt.Errorf("%w: %s: %d bytes at byte %d exceed stream size %d", ErrInvalidHeader, what, n, s.pos, s.size)
	}

	var buf bytes.Buffer
	got, err := io.CopyN(&buf, s.r, n)
	s.pos += got
	if err != nil {
		return nil, s.ioErr(what, err)
	}
	return buf.Bytes(), nil
}

// nullString reads a zero-terminated string of at most maxLen bytes.
func (s *streamReader) nullString(maxLen int, what string) (string, error) {
	start := s.pos
	var out []byte
	for {
		b, err := s.readByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(out), nil
		}
		if len(out) >= maxLen {
			return "", fmt.Errorf("%w: %s at byte %d longer than %d bytes", ErrInvalidHeader, what, start, maxLen)
		}
		out = append(out, b)
	}
}
