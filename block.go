package exr

import "fmt"

// BlockIndex addresses one chunk: a block of scanlines or one tile.
type BlockIndex struct {
	// Part is the index of the part in the file.
	Part int
	// Chunk is the index of the block in the part's offset table.
	Chunk int
	// Level is the resolution level, (0,0) for scanline parts.
	Level V2i
	// Position is the top-left pixel of the block relative to the level origin.
	Position V2i
	// Size is the block size in pixels.
	Size V2i
}

// Window returns the block in absolute pixel coordinates of its level.
func (b BlockIndex) Window(dataWindow Box2i) Box2i {
	return NewBox2i(dataWindow.Min.X+b.Position.X, dataWindow.Min.Y+b.Position.Y, b.Size.X, b.Size.Y)
}

// linesPerBlock returns the scanlines per chunk of a scanline part.
func (h *Header) linesPerBlock() int64 {
	return int64(h.Compression.ScanLinesPerBlock())
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// BlockCount returns the number of chunks of the part.
func (h *Header) BlockCount() (int64, error) {
	width, height := h.DataWindow.Width(), h.DataWindow.Height()
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: empty data window %s", ErrInvalidHeader, h.DataWindow)
	}

	if !h.Type.IsTiled() {
		n := ceilDiv(height, h.linesPerBlock())
		if n > int64(maxInt32) {
			return 0, fmt.Errorf("%w: %d chunks", ErrSizeOverflow, n)
		}
		return n, nil
	}
	if h.Tiles == nil || h.Tiles.XSize == 0 || h.Tiles.YSize == 0 {
		return 0, fmt.Errorf("%w: tiled part without positive tile size", ErrInvalidHeader)
	}

	var total int64
	for _, lvl := range h.Levels() {
		n, err := mulSize(ceilDiv(int64(lvl.Size.X), int64(h.Tiles.XSize)), ceilDiv(int64(lvl.Size.Y), int64(h.Tiles.YSize)))
		if err != nil {
			return 0, err
		}
		total += n
		if total > int64(maxInt32) {
			return 0, fmt.Errorf("%w: %d chunks", ErrSizeOverflow, total)
		}
	}
	return total, nil
}

// Blocks enumerates every block of the part in increasing chunk order:
// levels ascending, tiles row-major within a level.
func (h *Header) Blocks(part int) []BlockIndex {
	var out []BlockIndex
	if n, err := h.BlockCount(); err == nil {
		out = make([]BlockIndex, 0, n)
	}

	if !h.Type.IsTiled() {
		height := int32(h.DataWindow.Height())
		width := int32(h.DataWindow.Width())
		lines := int32(h.linesPerBlock())
		for y := int32(0); y < height; y += lines {
			out = append(out, BlockIndex{
				Part:     part,
				Chunk:    len(out),
				Position: V2i{Y: y},
				Size:     V2i{X: width, Y: min(lines, height-y)},
			})
		}
		return out
	}

	tw, th := int32(h.Tiles.XSize), int32(h.Tiles.YSize)
	for _, lvl := range h.Levels() {
		for y := int32(0); y < lvl.Size.Y; y += th {
			for x := int32(0); x < lvl.Size.X; x += tw {
				out = append(out, BlockIndex{
					Part:     part,
					Chunk:    len(out),
					Level:    lvl.Index,
					Position: V2i{X: x, Y: y},
					Size:     V2i{X: min(tw, lvl.Size.X-x), Y: min(th, lvl.Size.Y-y)},
				})
			}
		}
	}
	return out
}

// blockAt returns block chunk of the part without listing the others.
func (h *Header) blockAt(part, chunk int) (BlockIndex, error) {
	count, err := h.BlockCount()
	if err != nil {
		return BlockIndex{}, err
	}
	if chunk < 0 || int64(chunk) >= count {
		return BlockIndex{}, fmt.Errorf("%w: chunk %d of %d in part %d", ErrInvalidRegion, chunk, count, part)
	}

	if !h.Type.IsTiled() {
		lines := h.linesPerBlock()
		y := int64(chunk) * lines
		return BlockIndex{
			Part:     part,
			Chunk:    chunk,
			Position: V2i{Y: int32(y)},
			Size:     V2i{X: int32(h.DataWindow.Width()), Y: int32(min(lines, h.DataWindow.Height()-y))},
		}, nil
	}

	tw, th := int64(h.Tiles.XSize), int64(h.Tiles.YSize)
	rest := int64(chunk)
	for _, lvl := range h.Levels() {
		cols := ceilDiv(int64(lvl.Size.X), tw)
		n := cols * ceilDiv(int64(lvl.Size.Y), th)
		if rest >= n {
			rest -= n
			continue
		}
		x, y := rest%cols*tw, rest/cols*th
		return BlockIndex{
			Part:     part,
			Chunk:    chunk,
			Level:    lvl.Index,
			Position: V2i{X: int32(x), Y: int32(y)},
			Size:     V2i{X: int32(min(tw, int64(lvl.Size.X)-x)), Y: int32(min(th, int64(lvl.Size.Y)-y))},
		}, nil
	}
	return BlockIndex{}, fmt.Errorf("%w: chunk %d outside the level layout", ErrInvalidHeader, chunk)
}

// FileOrder returns the blocks in the order they are stored. Decreasing
// line order reverses scanline blocks and the tile rows of every level.
// Random order is written as increasing.
func (h *Header) FileOrder(part int) []BlockIndex {
	blocks := h.Blocks(part)
	if h.LineOrder != DecreasingY {
		return blocks
	}

	if !h.Type.IsTiled() {
		for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
			blocks[i], blocks[j] = blocks[j], blocks[i]
		}
		return blocks
	}

	out := make([]BlockIndex, 0, len(blocks))
	for start := 0; start < len(blocks); {
		end := start
		for end < len(blocks) && blocks[end].Level == blocks[start].Level {
			end++
		}
		level := blocks[start:end]
		for rowEnd := len(level); rowEnd > 0; {
			rowStart := rowEnd - 1
			for rowStart > 0 && level[rowStart-1].Position.Y == level[rowEnd-1].Position.Y {
				rowStart--
			}
			out = append(out, level[rowStart:rowEnd]...)
			rowEnd = rowStart
		}
		start = end
	}
	return out
}

// BlockByteSize returns the uncompressed size of a flat block.
func (h *Header) BlockByteSize(b BlockIndex) (int64, error) {
	if h.Type.IsDeep() {
		return 0, fmt.Errorf("%w: deep blocks have no fixed size", ErrUnsupportedFeature)
	}
	return mulSize(int64(b.Size.X), int64(b.Size.Y), int64(h.Channels.BytesPerPixel()))
}

// tileCoords returns the tile column and row of a tiled block.
func (h *Header) tileCoords(b BlockIndex) V2i {
	return V2i{X: b.Position.X / int32(h.Tiles.XSize), Y: b.Position.Y / int32(h.Tiles.YSize)}
}
