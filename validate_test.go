package exr

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScanline() Header {
	return NewScanlineHeader(16, 8, ZIP, NewChannel("B", F16), NewChannel("G", F16), NewChannel("R", F16))
}

func TestValidateHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(h *Header)
		wantErr error
	}{
		{name: "valid", mutate: func(*Header) {}},
		{name: "no-channels", mutate: func(h *Header) { h.Channels = nil }, wantErr: ErrInvalidAttribute},
		{name: "duplicate-channel", mutate: func(h *Header) { h.Channels[1].Name = "B" }, wantErr: ErrInvalidHeader},
		{name: "unsorted-channels", mutate: func(h *Header) { h.Channels[0].Name = "Z" }, wantErr: ErrInvalidHeader},
		{name: "subsampled-flat", mutate: func(h *Header) { h.Channels[0].Sampling = V2i{X: 2, Y: 2} }, wantErr: ErrInvalidHeader},
		{name: "unknown-sample-type", mutate: func(h *Header) { h.Channels[0].Type = 9 }, wantErr: ErrInvalidHeader},
		{name: "unknown-compression", mutate: func(h *Header) { h.Compression = 10 }, wantErr: ErrInvalidHeader},
		{name: "random-scanline", mutate: func(h *Header) { h.LineOrder = RandomY }, wantErr: ErrInvalidHeader},
		{name: "empty-data-window", mutate: func(h *Header) { h.DataWindow = Box2i{Min: V2i{X: 5}, Max: V2i{X: 4}} }, wantErr: ErrInvalidHeader},
		{name: "huge-data-window", mutate: func(h *Header) { h.DataWindow.Max.X = math.MaxInt32 }, wantErr: ErrInvalidHeader},
		{name: "too-tall-data-window", mutate: func(h *Header) {
			h.DataWindow.Min.Y, h.DataWindow.Max.Y = -1<<30, 1<<30
		}, wantErr: ErrInvalidHeader},
		{name: "too-wide-display-window", mutate: func(h *Header) {
			h.DisplayWindow.Min.X, h.DisplayWindow.Max.X = -1<<30, 1<<30
		}, wantErr: ErrInvalidHeader},
		{name: "zero-aspect", mutate: func(h *Header) { h.PixelAspectRatio = 0 }, wantErr: ErrInvalidHeader},
		{name: "nan-aspect", mutate: func(h *Header) { h.PixelAspectRatio = float32(math.NaN()) }, wantErr: ErrInvalidHeader},
		{name: "scanline-with-tiles", mutate: func(h *Header) {
			h.Tiles = &TileDescription{XSize: 8, YSize: 8, Mode: MipMapLevels}
		}, wantErr: ErrInvalidHeader},
		{name: "tiled-without-tiles", mutate: func(h *Header) { h.Type = TiledImage }, wantErr: ErrInvalidHeader},
		{name: "zero-tile", mutate: func(h *Header) {
			h.Type = TiledImage
			h.Tiles = &TileDescription{XSize: 0, YSize: 8}
		}, wantErr: ErrInvalidHeader},
		{name: "reserved-custom", mutate: func(h *Header) { h.Attributes.Set(AttrName, Text("x")) }, wantErr: ErrInvalidHeader},
		{name: "empty-custom-list", mutate: func(h *Header) { h.Attributes.Set("views", TextVector{}) }, wantErr: ErrInvalidAttribute},
		{name: "chunk-count-mismatch", mutate: func(h *Header) { h.ChunkCount = 5 }, wantErr: ErrInvalidHeader},
		{name: "deep-bad-version", mutate: func(h *Header) { h.Type = DeepScanLine }, wantErr: ErrInvalidHeader},
		{name: "deep-lossy-compression", mutate: func(h *Header) {
			h.Type = DeepScanLine
			h.DeepVersion = 1
			h.Compression = PIZ
		}, wantErr: ErrInvalidHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := validScanline()
			tt.mutate(&h)
			_, err := NewMetaData(h)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateMultipart(t *testing.T) {
	t.Parallel()

	named := func(name string) Header {
		h := validScanline()
		h.Name = name
		return h
	}

	_, err := NewMetaData(named("a"), named("b"))
	require.NoError(t, err)

	_, err = NewMetaData(named("a"), named(""))
	require.ErrorIs(t, err, ErrInvalidHeader)

	_, err = NewMetaData(named("a"), named("a"))
	require.ErrorIs(t, err, ErrInvalidHeader)

	b := named("b")
	b.DisplayWindow = NewBox2i(0, 0, 1920, 1080)
	_, err = NewMetaData(named("a"), b)
	require.ErrorIs(t, err, ErrInvalidHeader)

	b = named("b")
	b.PixelAspectRatio = 2
	_, err = NewMetaData(named("a"), b)
	require.ErrorIs(t, err, ErrInvalidHeader)

	a, b := named("a"), named("b")
	a.Attributes.Set(AttrTimeCode, TimeCode{Time: 1})
	b.Attributes.Set(AttrTimeCode, TimeCode{Time: 2})
	_, err = NewMetaData(a, b)
	require.ErrorIs(t, err, ErrInvalidHeader)

	// A shared attribute present in only one part is fine.
	b.Attributes.Delete(AttrTimeCode)
	_, err = NewMetaData(a, b)
	require.NoError(t, err)

	_, err = NewMetaData()
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestLongNames(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("c", 40)
	h := NewScanlineHeader(4, 4, NoCompression, NewChannel(long, F32))
	h.Attributes.Set(strings.Repeat("a", 32), Int(1))

	meta, err := NewMetaData(h)
	require.NoError(t, err)
	assert.True(t, meta.Requirements.LongNames)

	img := newTestImage(t, h)
	data := encodeImage(t, img)
	assert.Equal(t, uint32(2|flagLongNames), uint32(data[4])|uint32(data[5])<<8)

	got, err := ReadMetaData(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, long, got.Headers[0].Channels[0].Name)

	// The same file without the flag must be rejected.
	data[5] &^= flagLongNames >> 8
	_, err = ReadMetaData(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestParseRequirements(t *testing.T) {
	t.Parallel()

	r, err := parseRequirements(2 | flagMultipart | flagDeep)
	require.NoError(t, err)
	assert.Equal(t, Requirements{Version: 2, Multipart: true, Deep: true}, r)
	assert.Equal(t, uint32(2|flagMultipart|flagDeep), r.word())

	_, err = parseRequirements(1)
	require.ErrorIs(t, err, ErrUnsupportedFeature)
	_, err = parseRequirements(2 | 0x4000)
	require.ErrorIs(t, err, ErrUnsupportedFeature)
	_, err = parseRequirements(2 | flagSinglePartTiled | flagMultipart)
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestReadHeaderErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadMetaData(bytes.NewReader([]byte{1, 2, 3, 4, 2, 0, 0, 0}))
	require.ErrorIs(t, err, ErrInvalidHeader)

	_, err = ReadMetaData(bytes.NewReader([]byte{1, 2}))
	require.ErrorIs(t, err, ErrIO)

	// Header without required attributes.
	w := &byteWriter{}
	w.u32(Magic)
	w.u32(2)
	w.nullString("comment")
	w.nullString("string")
	w.i32(2)
	w.raw([]byte("hi"))
	w.u8(0)
	_, err = ReadMetaData(bytes.NewReader(w.buf))
	require.ErrorIs(t, err, ErrInvalidHeader)
}
