package exr

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// defaultZipLevel matches the level used by the reference writers.
const defaultZipLevel = 4

type zipCodec struct {
	level int
}

// zlibWriterPools holds one writer pool per compression level.
var zlibWriterPools sync.Map

func zlibWriterPool(level int) *sync.Pool {
	if p, ok := zlibWriterPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	p, _ := zlibWriterPools.LoadOrStore(level, &sync.Pool{
		New: func() any {
			zw, err := zlib.NewWriterLevel(nil, level)
			if err != nil {
				return err
			}
			return zw
		},
	})
	return p.(*sync.Pool)
}

func (c zipCodec) compress(raw []byte) ([]byte, error) {
	pool := zlibWriterPool(c.level)
	got := pool.Get()
	zw, ok := got.(*zlib.Writer)
	if !ok {
		return nil, fmt.Errorf("deflate level %d: %v", c.level, got)
	}
	defer pool.Put(zw)

	var buf bytes.Buffer
	buf.Grow(len(raw) / 2)
	zw.Reset(&buf)
	if _, err := zw.Write(preprocess(raw)); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}

func (zipCodec) decompress(data []byte, expected int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib header: %v", ErrCorruptCompressedBlock, err)
	}
	defer func() { _ = zr.Close() }()

	out := make([]byte, expected)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrCorruptCompressedBlock, err)
	}

	// Reading past the end verifies the checksum and rejects extra output.
	var extra [1]byte
	if n, err := zr.Read(extra[:]); n != 0 || err != io.EOF {
		if err == nil || err == io.EOF {
			return nil, fmt.Errorf("%w: inflate produced more than %d bytes", ErrCorruptCompressedBlock, expected)
		}
		return nil, fmt.Errorf("%w: inflate: %v", ErrCorruptCompressedBlock, err)
	}

	return postprocess(out), nil
}
