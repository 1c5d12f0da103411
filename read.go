package exr

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"unsafe"
)

// BlockSink receives decoded blocks. WriteBlock is never called
// concurrently; data belongs to the sink.
type BlockSink interface {
	WriteBlock(b BlockIndex, data []byte) error
}

// Region selects blocks of one part.
type Region struct {
	Part int
	// Window limits level (0,0) to the blocks intersecting it, in absolute
	// pixel coordinates. Nil selects the whole data window.
	Window *Box2i
	// AllLevels adds every block of the other resolution levels.
	AllLevels bool
	// Channels limits the decoded bytes to the named channels, kept in
	// channel list order. Empty selects all channels. Regions of the same
	// part must select the same channels.
	Channels []string
}

// Reader reads pixel data of a file whose header section is parsed.
// Offset tables are loaded on the first pixel operation.
type Reader struct {
	meta      *MetaData
	src       io.ReaderAt
	size      int64
	headerEnd int64
	opts      *options

	mu     sync.Mutex
	tables [][]int64
}

// ReadMetaData parses only the header section of r.
func ReadMetaData(r io.Reader, opts ...Option) (*MetaData, error) {
	o := newOptions(opts)
	meta, err := readMetaData(newStreamReader(r, o.maxAlloc, -1))
	if err != nil {
		return nil, err
	}
	logMetaData(o, meta)
	return meta, nil
}

// ReadMetaDataFile parses only the header section of the file at path.
func ReadMetaDataFile(path string, opts ...Option) (*MetaData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	o := newOptions(opts)
	meta, err := readMetaData(newStreamReader(f, o.maxAlloc, st.Size()))
	if err != nil {
		return nil, err
	}
	logMetaData(o, meta)
	return meta, nil
}

func logMetaData(o *options, meta *MetaData) {
	o.log().Debug("header parsed",
		"parts", len(meta.Headers),
		"multipart", meta.Requirements.Multipart,
		"deep", meta.Requirements.Deep,
		"long_names", meta.Requirements.LongNames)
}

// Open parses the header section of r, which must be positioned at the
// magic number. Offsets are relative to that position. Sources that also
// implement io.ReaderAt are read concurrently.
func Open(r io.ReadSeeker, opts ...Option) (*Reader, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	size := end - start

	var base io.ReaderAt
	if ra, ok := r.(io.ReaderAt); ok {
		base = ra
	} else {
		base = &lockedReaderAt{rs: r}
	}
	src := io.NewSectionReader(base, start, size)

	o := newOptions(opts)
	sr := newStreamReader(io.NewSectionReader(src, 0, size), o.maxAlloc, size)
	meta, err := readMetaData(sr)
	if err != nil {
		return nil, err
	}
	logMetaData(o, meta)

	return &Reader{meta: meta, src: src, size: size, headerEnd: sr.pos, opts: o}, nil
}

// MetaData returns the parsed header section.
func (r *Reader) MetaData() *MetaData {
	return r.meta
}

// offsetTables returns the chunk offsets of every part.
func (r *Reader) offsetTables() ([][]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tables != nil {
		return r.tables, nil
	}

	counts := make([]int64, len(r.meta.Headers))
	var total int64
	for i := range r.meta.Headers {
		n, err := r.meta.Headers[i].BlockCount()
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		counts[i] = n
		total += n
	}
	tableBytes, err := mulSize(total, 8)
	if err != nil {
		return nil, err
	}
	if err := checkAlloc(tableBytes, r.opts.maxAlloc, "offset tables"); err != nil {
		return nil, err
	}

	sr := newStreamReader(io.NewSectionReader(r.src, r.headerEnd, r.size-r.headerEnd), r.opts.maxAlloc, r.size-r.headerEnd)
	raw, err := sr.sized(tableBytes, "offset tables")
	if err != nil {
		return nil, err
	}

	chunksStart := r.headerEnd + tableBytes
	tables := make([][]int64, len(counts))
	in := &sliceReader{data: raw}
	for p, n := range counts {
		tables[p] = make([]int64, n)
		for c := range tables[p] {
			off, err := in.u64()
			if err != nil {
				return nil, fmt.Errorf("%w: offset table: %v", ErrInvalidHeader, err)
			}
			if off < uint64(chunksStart) || off >= uint64(r.size) {
				return nil, fmt.Errorf("%w: part %d chunk %d offset %d outside chunk data [%d, %d)", ErrInvalidHeader, p, c, off, chunksStart, r.size)
			}
			tables[p][c] = int64(off)
		}
	}

	r.opts.log().Debug("offset tables read", "chunks", total, "bytes", tableBytes)
	r.tables = tables
	return tables, nil
}

// checkReadable fails for parts whose pixels cannot be decoded.
func checkReadable(h *Header) error {
	if h.Type.IsDeep() {
		return fmt.Errorf("%w: deep pixel data", ErrUnsupportedFeature)
	}
	if !h.Compression.Supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedCompression, h.Compression)
	}
	return nil
}

// blockEntryBytes is the memory one block costs while selecting: its entry
// in the part listing, its selected copy and a seen flag.
const blockEntryBytes = 2*int64(unsafe.Sizeof(BlockIndex{})) + 1

// selection is a validated set of regions. channels holds the channel mask
// of every part, nil when all channels are read.
type selection struct {
	regions  []Region
	channels [][]bool
}

// checkRegions validates regions against the headers. It reads nothing
// from the source.
func (r *Reader) checkRegions(regions []Region) (*selection, error) {
	if len(regions) == 0 {
		for p := range r.meta.Headers {
			regions = append(regions, Region{Part: p, AllLevels: true})
		}
	}

	sel := &selection{regions: regions, channels: make([][]bool, len(r.meta.Headers))}
	for i, reg := range regions {
		if reg.Part < 0 || reg.Part >= len(r.meta.Headers) {
			return nil, fmt.Errorf("%w: part %d of %d", ErrInvalidRegion, reg.Part, len(r.meta.Headers))
		}
		h := &r.meta.Headers[reg.Part]
		if reg.Window != nil && (reg.Window.IsEmpty() || !h.DataWindow.Contains(*reg.Window)) {
			return nil, fmt.Errorf("%w: window %s outside data window %s of part %d", ErrInvalidRegion, *reg.Window, h.DataWindow, reg.Part)
		}
		if err := checkReadable(h); err != nil {
			return nil, fmt.Errorf("part %d: %w", reg.Part, err)
		}

		mask, err := channelMask(h, reg.Channels)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", reg.Part, err)
		}
		if first := slices.IndexFunc(regions[:i], func(o Region) bool { return o.Part == reg.Part }); first >= 0 {
			if !slices.Equal(sel.channels[reg.Part], mask) {
				return nil, fmt.Errorf("%w: regions %d and %d select different channels of part %d", ErrInvalidRegion, first, i, reg.Part)
			}
			continue
		}
		sel.channels[reg.Part] = mask
	}
	return sel, nil
}

// channelMask marks the channels of h named in names. No names selects
// every channel and returns nil.
func channelMask(h *Header, names []string) ([]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	mask := make([]bool, len(h.Channels))
	for _, name := range names {
		i := h.Channels.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: no channel %q", ErrInvalidRegion, name)
		}
		mask[i] = true
	}
	return mask, nil
}

// selectBlocks lists the blocks of a checked selection without
// duplicates. The listing is bounded by the allocation limit.
func (r *Reader) selectBlocks(sel *selection) ([]BlockIndex, error) {
	counts := make([]int64, len(r.meta.Headers))
	var total int64
	for _, reg := range sel.regions {
		if counts[reg.Part] != 0 {
			continue
		}
		n, err := r.meta.Headers[reg.Part].BlockCount()
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", reg.Part, err)
		}
		counts[reg.Part] = n
		total += n
	}
	listBytes, err := mulSize(total, blockEntryBytes)
	if err != nil {
		return nil, err
	}
	if err := checkAlloc(listBytes, r.opts.maxAlloc, "block list"); err != nil {
		return nil, err
	}

	var (
		lists = make([][]BlockIndex, len(r.meta.Headers))
		seen  = make([][]bool, len(r.meta.Headers))
		out   []BlockIndex
	)
	for _, reg := range sel.regions {
		h := &r.meta.Headers[reg.Part]
		if lists[reg.Part] == nil {
			lists[reg.Part] = h.Blocks(reg.Part)
			seen[reg.Part] = make([]bool, counts[reg.Part])
		}
		for _, b := range lists[reg.Part] {
			if b.Level != (V2i{}) {
				if !reg.AllLevels {
					continue
				}
			} else if reg.Window != nil && !b.Window(h.DataWindow).Intersects(*reg.Window) {
				continue
			}
			if !seen[b.Part][b.Chunk] {
				seen[b.Part][b.Chunk] = true
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// ReadBlocks decodes the blocks of regions and hands them to sink. No
// regions means every block of every part. A failing chunk aborts the
// whole read.
func (r *Reader) ReadBlocks(ctx context.Context, sink BlockSink, regions ...Region) error {
	sel, err := r.checkRegions(regions)
	if err != nil {
		return err
	}
	tables, err := r.offsetTables()
	if err != nil {
		return err
	}
	blocks, err := r.selectBlocks(sel)
	if err != nil {
		return err
	}

	// Chunks are fetched in file order.
	slices.SortStableFunc(blocks, func(a, b BlockIndex) int {
		return cmp.Compare(tables[a.Part][a.Chunk], tables[b.Part][b.Chunk])
	})

	p := newPipeline(r.opts, len(blocks))
	r.opts.log().Debug("reading chunks", "chunks", len(blocks), "workers", p.workers)

	return p.run(ctx, false,
		func(_ context.Context, i int) ([]byte, error) {
			b := blocks[i]
			data, err := r.decodeBlock(b, tables)
			if err != nil {
				return nil, err
			}
			if mask := sel.channels[b.Part]; mask != nil {
				data = filterChannels(r.meta.Headers[b.Part].Channels, b, data, mask)
			}
			return data, nil
		},
		func(i int, data []byte) error {
			return sink.WriteBlock(blocks[i], data)
		},
	)
}

// filterChannels keeps the bytes of the masked channels of a decoded
// block, preserving the line and channel layout.
func filterChannels(channels ChannelList, b BlockIndex, data []byte, mask []bool) []byte {
	width := int(b.Size.X)
	outSize := 0
	for c, ch := range channels {
		if mask[c] {
			outSize += width * ch.Type.Size()
		}
	}
	out := make([]byte, 0, outSize*int(b.Size.Y))
	pos := 0
	for range int(b.Size.Y) {
		for c, ch := range channels {
			n := width * ch.Type.Size()
			if mask[c] {
				out = append(out, data[pos:pos+n]...)
			}
			pos += n
		}
	}
	return out
}

func (r *Reader) decodeBlock(b BlockIndex, tables [][]int64) ([]byte, error) {
	h := &r.meta.Headers[b.Part]
	expected, err := h.BlockByteSize(b)
	if err != nil {
		return nil, err
	}
	if err := checkAlloc(expected, r.opts.maxAlloc, "chunk pixels"); err != nil {
		return nil, fmt.Errorf("part %d chunk %d: %w", b.Part, b.Chunk, err)
	}

	c, err := readChunk(r.src, chunkFetch{
		header:     h,
		block:      b,
		multipart:  r.meta.Requirements.Multipart,
		offset:     tables[b.Part][b.Chunk],
		streamSize: r.size,
		limit:      r.opts.maxAlloc,
	})
	if err != nil {
		return nil, err
	}

	data, err := h.Compression.Decompress(c.Data, int(expected))
	if err != nil {
		return nil, fmt.Errorf("part %d chunk %d: %w", b.Part, b.Chunk, err)
	}
	return data, nil
}

// ReadImage decodes every part into memory.
func (r *Reader) ReadImage(ctx context.Context) (*Image, error) {
	img := &Image{Parts: make([]Part, len(r.meta.Headers))}
	var total int64
	for i := range r.meta.Headers {
		if err := checkReadable(&r.meta.Headers[i]); err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
	}
	for i := range r.meta.Headers {
		p, err := newPart(r.meta.Headers[i], r.opts.maxAlloc)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		total += p.byteSize()
		if err := checkAlloc(total, r.opts.maxAlloc, "image pixels"); err != nil {
			return nil, err
		}
		img.Parts[i] = p
	}

	if err := r.ReadBlocks(ctx, imageSink{img: img}); err != nil {
		return nil, err
	}
	return img, nil
}

// ReadPart decodes every level of one part. With channel names given, only
// those channels are read and the returned header lists just them.
func (r *Reader) ReadPart(ctx context.Context, part int, channels ...string) (*Part, error) {
	if part < 0 || part >= len(r.meta.Headers) {
		return nil, fmt.Errorf("%w: part %d of %d", ErrInvalidRegion, part, len(r.meta.Headers))
	}
	h := r.meta.Headers[part].Clone()
	mask, err := channelMask(&h, channels)
	if err != nil {
		return nil, fmt.Errorf("part %d: %w", part, err)
	}
	if mask != nil {
		var kept ChannelList
		for c, ch := range h.Channels {
			if mask[c] {
				kept = append(kept, ch)
			}
		}
		h.Channels = kept
	}
	if err := checkReadable(&h); err != nil {
		return nil, fmt.Errorf("part %d: %w", part, err)
	}

	p, err := newPart(h, r.opts.maxAlloc)
	if err != nil {
		return nil, fmt.Errorf("part %d: %w", part, err)
	}
	region := Region{Part: part, AllLevels: true, Channels: channels}
	if err := r.ReadBlocks(ctx, partSink{part: &p}, region); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReadRawChunk returns one chunk record without decompressing it. Deep
// chunks are supported.
func (r *Reader) ReadRawChunk(part, chunk int) (*RawChunk, error) {
	if part < 0 || part >= len(r.meta.Headers) {
		return nil, fmt.Errorf("%w: part %d of %d", ErrInvalidRegion, part, len(r.meta.Headers))
	}
	tables, err := r.offsetTables()
	if err != nil {
		return nil, err
	}
	if chunk < 0 || chunk >= len(tables[part]) {
		return nil, fmt.Errorf("%w: chunk %d of %d in part %d", ErrInvalidRegion, chunk, len(tables[part]), part)
	}

	h := &r.meta.Headers[part]
	b, err := h.blockAt(part, chunk)
	if err != nil {
		return nil, err
	}
	return readChunk(r.src, chunkFetch{
		header:     h,
		block:      b,
		multipart:  r.meta.Requirements.Multipart,
		offset:     tables[part][chunk],
		streamSize: r.size,
		limit:      r.opts.maxAlloc,
	})
}

// ReadFile reads the complete image stored at path.
func ReadFile(path string, opts ...Option) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer func() { _ = f.Close() }()

	r, err := Open(f, opts...)
	if err != nil {
		return nil, err
	}
	return r.ReadImage(context.Background())
}
