package exr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size     int64
		down, up int
	}{
		{size: 1, down: 1, up: 1},
		{size: 2, down: 2, up: 2},
		{size: 3, down: 2, up: 3},
		{size: 4, down: 3, up: 3},
		{size: 5, down: 3, up: 4},
		{size: 1024, down: 11, up: 11},
		{size: 1025, down: 11, up: 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.down, levelCount(tt.size, RoundDown), "down %d", tt.size)
		assert.Equal(t, tt.up, levelCount(tt.size, RoundUp), "up %d", tt.size)
	}
}

func TestLevelSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(37), levelSize(37, 0, RoundDown))
	assert.Equal(t, int64(18), levelSize(37, 1, RoundDown))
	assert.Equal(t, int64(19), levelSize(37, 1, RoundUp))
	assert.Equal(t, int64(5), levelSize(37, 3, RoundUp))
	assert.Equal(t, int64(1), levelSize(37, 10, RoundDown))
	assert.Equal(t, int64(1), levelSize(37, 70, RoundUp))
}

func TestLevelsOrder(t *testing.T) {
	t.Parallel()

	rip := levels(4, 2, &TileDescription{XSize: 1, YSize: 1, Mode: RipMapLevels})
	want := []Level{
		{Index: V2i{X: 0, Y: 0}, Size: V2i{X: 4, Y: 2}},
		{Index: V2i{X: 1, Y: 0}, Size: V2i{X: 2, Y: 2}},
		{Index: V2i{X: 2, Y: 0}, Size: V2i{X: 1, Y: 2}},
		{Index: V2i{X: 0, Y: 1}, Size: V2i{X: 4, Y: 1}},
		{Index: V2i{X: 1, Y: 1}, Size: V2i{X: 2, Y: 1}},
		{Index: V2i{X: 2, Y: 1}, Size: V2i{X: 1, Y: 1}},
	}
	assert.Equal(t, want, rip)

	mip := levels(5, 3, &TileDescription{XSize: 1, YSize: 1, Mode: MipMapLevels, Rounding: RoundUp})
	assert.Equal(t, []Level{
		{Index: V2i{X: 0, Y: 0}, Size: V2i{X: 5, Y: 3}},
		{Index: V2i{X: 1, Y: 1}, Size: V2i{X: 3, Y: 2}},
		{Index: V2i{X: 2, Y: 2}, Size: V2i{X: 2, Y: 1}},
		{Index: V2i{X: 3, Y: 3}, Size: V2i{X: 1, Y: 1}},
	}, mip)
}

func TestScanlineBlocks(t *testing.T) {
	t.Parallel()

	h := NewScanlineHeader(10, 40, ZIP, NewChannel("R", F16), NewChannel("G", F32))
	count, err := h.BlockCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	blocks := h.Blocks(2)
	require.Len(t, blocks, 3)
	assert.Equal(t, BlockIndex{Part: 2, Chunk: 2, Position: V2i{Y: 32}, Size: V2i{X: 10, Y: 8}}, blocks[2])

	size, err := h.BlockByteSize(blocks[0])
	require.NoError(t, err)
	assert.Equal(t, int64(10*16*6), size)

	h.LineOrder = DecreasingY
	order := h.FileOrder(0)
	assert.Equal(t, []int{2, 1, 0}, chunkIndices(order))
}

func TestTiledBlocks(t *testing.T) {
	t.Parallel()

	h := NewTiledHeader(5, 3, NoCompression, TileDescription{XSize: 2, YSize: 2, Mode: MipMapLevels}, NewChannel("Y", F16))
	// Levels 5x3, 2x1, 1x1 hold 3x2, 1x1 and 1x1 tiles.
	count, err := h.BlockCount()
	require.NoError(t, err)
	assert.Equal(t, int64(8), count)

	blocks := h.Blocks(0)
	require.Len(t, blocks, 8)
	assert.Equal(t, BlockIndex{Chunk: 5, Position: V2i{X: 4, Y: 2}, Size: V2i{X: 1, Y: 1}}, blocks[5])
	assert.Equal(t, BlockIndex{Chunk: 6, Level: V2i{X: 1, Y: 1}, Size: V2i{X: 2, Y: 1}}, blocks[6])
	assert.Equal(t, V2i{X: 2, Y: 1}, h.tileCoords(blocks[5]))

	h.LineOrder = DecreasingY
	assert.Equal(t, []int{3, 4, 5, 0, 1, 2, 6, 7}, chunkIndices(h.FileOrder(0)))

	h.LineOrder = RandomY
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, chunkIndices(h.FileOrder(0)))
}

func TestBlockWindow(t *testing.T) {
	t.Parallel()

	b := BlockIndex{Position: V2i{X: 2, Y: 16}, Size: V2i{X: 4, Y: 16}}
	assert.Equal(t, NewBox2i(-8, 11, 4, 16), b.Window(NewBox2i(-10, -5, 100, 100)))
}

func TestBlockAtMatchesBlocks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header Header
	}{
		{name: "scanline-zip", header: NewScanlineHeader(7, 41, ZIP, NewChannel("R", F16))},
		{name: "scanline-rle", header: NewScanlineHeader(3, 5, RLE, NewChannel("R", F16))},
		{name: "tiled-one", header: NewTiledHeader(37, 21, ZIP, TileDescription{XSize: 16, YSize: 8}, NewChannel("R", F16))},
		{name: "mipmap-up", header: NewTiledHeader(37, 21, ZIP, TileDescription{XSize: 4, YSize: 4, Mode: MipMapLevels, Rounding: RoundUp}, NewChannel("R", F16))},
		{name: "ripmap", header: NewTiledHeader(37, 21, ZIP, TileDescription{XSize: 8, YSize: 4, Mode: RipMapLevels}, NewChannel("R", F16))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			blocks := tt.header.Blocks(2)
			for _, want := range blocks {
				got, err := tt.header.blockAt(2, want.Chunk)
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
			_, err := tt.header.blockAt(2, len(blocks))
			require.ErrorIs(t, err, ErrInvalidRegion)
			_, err = tt.header.blockAt(2, -1)
			require.ErrorIs(t, err, ErrInvalidRegion)
		})
	}
}

func TestBlockCountOverflow(t *testing.T) {
	t.Parallel()

	h := NewScanlineHeader(1, 1, NoCompression, NewChannel("R", F16))
	h.DataWindow = Box2i{Min: V2i{Y: -1 << 31}, Max: V2i{Y: 1<<31 - 1}}
	_, err := h.BlockCount()
	require.ErrorIs(t, err, ErrSizeOverflow)
}

func chunkIndices(blocks []BlockIndex) []int {
	out := make([]int, len(blocks))
	for i, b := range blocks {
		out[i] = b.Chunk
	}
	return out
}
