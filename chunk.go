package exr

import (
	"fmt"
	"io"
	"math"
	"sync"
)

// RawChunk is one chunk record as stored, with its payload still compressed.
type RawChunk struct {
	Part  int
	Chunk int
	// Y is the first scanline of a scanline chunk.
	Y int32
	// Tile and Level locate a tile chunk.
	Tile  V2i
	Level V2i

	// Deep is set for chunks of deep parts.
	Deep bool
	// UnpackedSampleSize is the uncompressed size of the deep sample data.
	UnpackedSampleSize uint64
	// SampleCounts is the compressed pixel offset table of a deep chunk.
	SampleCounts []byte

	// Data is the compressed pixel payload.
	Data []byte
}

// encodeChunk returns the record of one flat chunk.
func encodeChunk(h *Header, b BlockIndex, multipart bool, payload []byte) ([]byte, error) {
	size, err := i32FromInt(len(payload))
	if err != nil {
		return nil, fmt.Errorf("part %d chunk %d: %w", b.Part, b.Chunk, err)
	}

	w := &byteWriter{buf: make([]byte, 0, len(payload)+24)}
	if multipart {
		part, err := i32FromInt(b.Part)
		if err != nil {
			return nil, err
		}
		w.i32(part)
	}
	if h.Type.IsTiled() {
		tile := h.tileCoords(b)
		w.i32(tile.X)
		w.i32(tile.Y)
		w.i32(b.Level.X)
		w.i32(b.Level.Y)
	} else {
		w.i32(h.DataWindow.Min.Y + b.Position.Y)
	}
	w.i32(size)
	w.raw(payload)
	return w.buf, nil
}

// chunkFetch describes where a chunk is and what it must contain.
type chunkFetch struct {
	header    *Header
	block     BlockIndex
	multipart bool
	offset    int64
	// streamSize is the size of the source, or -1 when unknown.
	streamSize int64
	limit      int64
}

// readChunk reads and checks one chunk record from src.
func readChunk(src io.ReaderAt, f chunkFetch) (*RawChunk, error) {
	remaining := int64(math.MaxInt64 - 1)
	if f.streamSize >= 0 {
		remaining = f.streamSize - f.offset
	}
	sr := newStreamReader(io.NewSectionReader(src, f.offset, remaining), f.limit, remaining)

	c, err := parseChunk(sr, f)
	if err != nil {
		return nil, fmt.Errorf("part %d chunk %d at byte %d: %w", f.block.Part, f.block.Chunk, f.offset, err)
	}
	return c, nil
}

func parseChunk(sr *streamReader, f chunkFetch) (*RawChunk, error) {
	h, b := f.header, f.block
	c := &RawChunk{Part: b.Part, Chunk: b.Chunk, Deep: h.Type.IsDeep()}

	if f.multipart {
		part, err := sr.i32()
		if err != nil {
			return nil, err
		}
		if int(part) != b.Part {
			return nil, fmt.Errorf("%w: chunk belongs to part %d", ErrInvalidHeader, part)
		}
	}

	if h.Type.IsTiled() {
		var coords [4]int32
		for i := range coords {
			v, err := sr.i32()
			if err != nil {
				return nil, err
			}
			coords[i] = v
		}
		c.Tile = V2i{X: coords[0], Y: coords[1]}
		c.Level = V2i{X: coords[2], Y: coords[3]}
		if want := h.tileCoords(b); c.Tile != want || c.Level != b.Level {
			return nil, fmt.Errorf("%w: tile %v level %v, want tile %v level %v", ErrInvalidHeader, c.Tile, c.Level, want, b.Level)
		}
	} else {
		y, err := sr.i32()
		if err != nil {
			return nil, err
		}
		c.Y = y
		if want := h.DataWindow.Min.Y + b.Position.Y; y != want {
			return nil, fmt.Errorf("%w: scanline %d, want %d", ErrInvalidHeader, y, want)
		}
	}

	if c.Deep {
		return parseDeepPayload(sr, c)
	}

	size, err := sr.i32()
	if err != nil {
		return nil, err
	}
	expected, err := h.BlockByteSize(b)
	if err != nil {
		return nil, err
	}
	if size < 0 || int64(size) > expected {
		return nil, fmt.Errorf("%w: chunk size %d, uncompressed size is %d", ErrInvalidHeader, size, expected)
	}
	if c.Data, err = sr.sized(int64(size), "chunk data"); err != nil {
		return nil, err
	}
	return c, nil
}

// parseDeepPayload reads the three sizes and both tables of a deep chunk.
func parseDeepPayload(sr *streamReader, c *RawChunk) (*RawChunk, error) {
	var sizes [3]uint64
	for i := range sizes {
		v, err := sr.u64()
		if err != nil {
			return nil, err
		}
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("%w: deep chunk size %d", ErrSizeOverflow, v)
		}
		sizes[i] = v
	}
	if err := checkAlloc(int64(sizes[2]), sr.limit, "deep sample data"); err != nil {
		return nil, err
	}
	c.UnpackedSampleSize = sizes[2]

	var err error
	if c.SampleCounts, err = sr.sized(int64(sizes[0]), "deep offset table"); err != nil {
		return nil, err
	}
	if c.Data, err = sr.sized(int64(sizes[1]), "deep sample data"); err != nil {
		return nil, err
	}
	return c, nil
}

// lockedReaderAt serves ReadAt from a plain seeker, one read at a time.
type lockedReaderAt struct {
	mu sync.Mutex
	rs io.ReadSeeker
}

func (l *lockedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(l.rs, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}
