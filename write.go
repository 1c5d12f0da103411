package exr

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// BlockSource supplies uncompressed blocks to the writer. ReadBlock may be
// called concurrently and must fill dst completely.
type BlockSource interface {
	ReadBlock(b BlockIndex, dst []byte) error
}

// writePlan is a validated file layout.
type writePlan struct {
	meta   *MetaData
	counts []int64
	blocks []BlockIndex
	header []byte
}

// planWrite validates headers and lays out the file. Nothing is written.
func planWrite(headers []Header) (*writePlan, error) {
	meta, err := NewMetaData(headers...)
	if err != nil {
		return nil, err
	}

	plan := &writePlan{meta: meta, counts: make([]int64, len(headers))}
	for i := range meta.Headers {
		h := &meta.Headers[i]
		if h.Type.IsDeep() {
			return nil, fmt.Errorf("part %d: %w: writing deep pixel data", i, ErrUnsupportedFeature)
		}
		if !h.Compression.Supported() {
			return nil, fmt.Errorf("part %d: %w: %s", i, ErrUnsupportedCompression, h.Compression)
		}
		if plan.counts[i], err = h.BlockCount(); err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		plan.blocks = append(plan.blocks, h.FileOrder(i)...)
	}

	if plan.header, err = meta.encode(plan.counts); err != nil {
		return nil, err
	}
	return plan, nil
}

// tableSize returns the byte size of all offset tables.
func (p *writePlan) tableSize() int64 {
	var n int64
	for _, c := range p.counts {
		n += c * 8
	}
	return n
}

// encodeTables serializes offsets, indexed by part and chunk.
func (p *writePlan) encodeTables(offsets [][]uint64) []byte {
	out := make([]byte, 0, p.tableSize())
	for _, table := range offsets {
		for _, off := range table {
			out = binary.LittleEndian.AppendUint64(out, off)
		}
	}
	return out
}

func (p *writePlan) newOffsets() [][]uint64 {
	offsets := make([][]uint64, len(p.counts))
	for i, c := range p.counts {
		offsets[i] = make([]uint64, c)
	}
	return offsets
}

// Write validates headers and writes a complete file to w, pulling pixels
// from src. Validation failures leave w untouched. An io.WriteSeeker gets
// chunks streamed with the offset tables patched at the end; any other
// writer gets every chunk compressed in memory first.
func Write(ctx context.Context, w io.Writer, headers []Header, src BlockSource, opts ...Option) error {
	plan, err := planWrite(headers)
	if err != nil {
		return err
	}
	return writePlanned(ctx, w, plan, src, newOptions(opts))
}

func writePlanned(ctx context.Context, w io.Writer, plan *writePlan, src BlockSource, o *options) error {
	compress := func(_ context.Context, i int) ([]byte, error) {
		b := plan.blocks[i]
		h := &plan.meta.Headers[b.Part]
		size, err := h.BlockByteSize(b)
		if err != nil {
			return nil, err
		}
		raw := make([]byte, size)
		if err := src.ReadBlock(b, raw); err != nil {
			return nil, fmt.Errorf("part %d chunk %d: %w", b.Part, b.Chunk, err)
		}
		payload, err := h.Compression.compressLevel(raw, o.zipLevel)
		if err != nil {
			return nil, fmt.Errorf("part %d chunk %d: %w", b.Part, b.Chunk, err)
		}
		return encodeChunk(h, b, plan.meta.Requirements.Multipart, payload)
	}

	var (
		total int64
		err   error
	)
	if ws, ok := w.(io.WriteSeeker); ok {
		total, err = writeStreaming(ctx, ws, plan, compress, o)
	} else {
		total, err = writeBuffered(ctx, w, plan, compress, o)
	}
	if err != nil {
		return err
	}

	o.log().Debug("write finished", "parts", len(plan.counts), "chunks", len(plan.blocks), "bytes", total)
	return nil
}

type compressFunc func(ctx context.Context, i int) ([]byte, error)

// writeStreaming writes header and zeroed tables, streams chunks in file
// order and seeks back to fill in the tables.
func writeStreaming(ctx context.Context, ws io.WriteSeeker, plan *writePlan, compress compressFunc, o *options) (int64, error) {
	start, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}

	bw := bufio.NewWriter(ws)
	if _, err := bw.Write(plan.header); err != nil {
		return 0, fmt.Errorf("%w: header: %w", ErrIO, err)
	}
	if _, err := bw.Write(make([]byte, plan.tableSize())); err != nil {
		return 0, fmt.Errorf("%w: offset tables: %w", ErrIO, err)
	}

	offsets := plan.newOffsets()
	pos := int64(len(plan.header)) + plan.tableSize()

	p := newPipeline(o, len(plan.blocks))
	o.log().Debug("streaming chunks", "chunks", len(plan.blocks), "workers", p.workers)
	err = p.run(ctx, true, compress, func(i int, record []byte) error {
		b := plan.blocks[i]
		offsets[b.Part][b.Chunk] = uint64(pos)
		if _, err := bw.Write(record); err != nil {
			return fmt.Errorf("%w: part %d chunk %d: %w", ErrIO, b.Part, b.Chunk, err)
		}
		pos += int64(len(record))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if _, err := ws.Seek(start+int64(len(plan.header)), io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if _, err := ws.Write(plan.encodeTables(offsets)); err != nil {
		return 0, fmt.Errorf("%w: offset tables: %w", ErrIO, err)
	}
	if _, err := ws.Seek(start+pos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return pos, nil
}

// writeBuffered compresses every chunk before writing anything.
func writeBuffered(ctx context.Context, w io.Writer, plan *writePlan, compress compressFunc, o *options) (int64, error) {
	records := make([][]byte, len(plan.blocks))

	p := newPipeline(o, len(plan.blocks))
	o.log().Debug("compressing chunks", "chunks", len(plan.blocks), "workers", p.workers)
	err := p.run(ctx, false, compress, func(i int, record []byte) error {
		records[i] = record
		return nil
	})
	if err != nil {
		return 0, err
	}

	offsets := plan.newOffsets()
	pos := int64(len(plan.header)) + plan.tableSize()
	for i, b := range plan.blocks {
		offsets[b.Part][b.Chunk] = uint64(pos)
		pos += int64(len(records[i]))
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(plan.header); err != nil {
		return 0, fmt.Errorf("%w: header: %w", ErrIO, err)
	}
	if _, err := bw.Write(plan.encodeTables(offsets)); err != nil {
		return 0, fmt.Errorf("%w: offset tables: %w", ErrIO, err)
	}
	for i, rec := range records {
		if _, err := bw.Write(rec); err != nil {
			b := plan.blocks[i]
			return 0, fmt.Errorf("%w: part %d chunk %d: %w", ErrIO, b.Part, b.Chunk, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return pos, nil
}

// planImage validates an in-memory image against its headers.
func planImage(img *Image) (*writePlan, error) {
	if img == nil || len(img.Parts) == 0 {
		return nil, fmt.Errorf("%w: no parts", ErrInvalidHeader)
	}
	plan, err := planWrite(img.Headers())
	if err != nil {
		return nil, err
	}
	for i := range img.Parts {
		if err := img.Parts[i].check(); err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
	}
	return plan, nil
}

// WriteImage writes an in-memory image to w.
func WriteImage(ctx context.Context, w io.Writer, img *Image, opts ...Option) error {
	plan, err := planImage(img)
	if err != nil {
		return err
	}
	return writePlanned(ctx, w, plan, imageSource{img: img}, newOptions(opts))
}

// WriteFile writes img to path. The file is only created after validation
// passed and is removed again when writing fails.
func WriteFile(path string, img *Image, opts ...Option) (err error) {
	plan, err := planImage(img)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrIO, cerr)
		}
		if err != nil {
			err = errors.Join(err, removeIfExists(path))
		}
	}()

	return writePlanned(context.Background(), f, plan, imageSource{img: img}, newOptions(opts))
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
