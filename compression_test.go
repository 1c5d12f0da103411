package exr

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	noise := make([]byte, 4096)
	for i := range noise {
		noise[i] = byte(rng.IntN(256))
	}
	gradient := make([]byte, 128*1024)
	for i := range gradient {
		gradient[i] = byte((i*31 + 7) & 0xff)
	}
	runs := bytes.Repeat([]byte{0, 0, 0, 0, 9, 9, 1, 2, 3, 4, 4, 4, 4, 4}, 300)

	inputs := map[string][]byte{
		"empty":    {},
		"single":   {42},
		"odd":      {1, 2, 3},
		"zeros":    make([]byte, 1000),
		"noise":    noise,
		"gradient": gradient,
		"runs":     runs,
	}

	for _, c := range []Compression{NoCompression, RLE, ZIPS, ZIP} {
		for name, data := range inputs {
			t.Run(c.String()+"/"+name, func(t *testing.T) {
				t.Parallel()

				packed, err := c.Compress(data)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(packed), len(data))

				out, err := c.Decompress(packed, len(data))
				require.NoError(t, err)
				assert.Equal(t, data, out)
			})
		}
	}
}

func TestCompressShrinksRegularData(t *testing.T) {
	t.Parallel()

	data := make([]byte, 8192)
	for i := range data {
		data[i] = byte(i / 64)
	}
	for _, c := range []Compression{RLE, ZIPS, ZIP} {
		packed, err := c.Compress(data)
		require.NoError(t, err, c)
		assert.Less(t, len(packed), len(data)/4, c)
	}
}

func TestCompressionLevels(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("scanline "), 500)
	for _, level := range []int{1, 4, 9} {
		packed, err := ZIP.compressLevel(data, level)
		require.NoError(t, err)
		out, err := ZIP.Decompress(packed, len(data))
		require.NoError(t, err)
		assert.Equal(t, data, out, "level %d", level)
	}
}

func TestDecompressCorrupt(t *testing.T) {
	t.Parallel()

	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i % 7)
	}
	zipPacked, err := ZIP.Compress(data)
	require.NoError(t, err)
	zipsPacked, err := ZIPS.Compress(data)
	require.NoError(t, err)

	tests := []struct {
		name string
		c    Compression
		data func() []byte
		size int
	}{
		{name: "none-short", c: NoCompression, data: func() []byte { return data[:10] }, size: 512},
		{name: "rle-truncated-literal", c: RLE, data: func() []byte { return []byte{0xf0, 1, 2} }, size: 64},
		{name: "rle-missing-value", c: RLE, data: func() []byte { return []byte{5} }, size: 64},
		{name: "rle-overflow", c: RLE, data: func() []byte { return []byte{100, 1} }, size: 64},
		{name: "rle-underflow", c: RLE, data: func() []byte { return []byte{3, 1} }, size: 64},
		{name: "zip-garbage", c: ZIP, data: func() []byte { return []byte{1, 2, 3, 4} }, size: 512},
		{name: "zip-truncated", c: ZIP, data: func() []byte { return zipPacked[:len(zipPacked)/2] }, size: 512},
		{name: "zip-wrong-size", c: ZIPS, data: func() []byte { return zipsPacked }, size: 500},
		{name: "payload-larger-than-block", c: ZIP, data: func() []byte { return data }, size: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.c.Decompress(tt.data(), tt.size)
			require.ErrorIs(t, err, ErrCorruptCompressedBlock)
		})
	}
}

func TestUnsupportedCompression(t *testing.T) {
	t.Parallel()

	for _, c := range []Compression{PIZ, PXR24, B44, B44A, DWAA, DWAB} {
		assert.False(t, c.Supported(), c)
		_, err := c.Compress([]byte{1, 2, 3})
		require.ErrorIs(t, err, ErrUnsupportedCompression, c)
		_, err = c.Decompress([]byte{1, 2, 3}, 3)
		require.ErrorIs(t, err, ErrUnsupportedCompression, c)
	}
}

func TestScanLinesPerBlock(t *testing.T) {
	t.Parallel()

	want := map[Compression]int{
		NoCompression: 1, RLE: 1, ZIPS: 1, ZIP: 16, PXR24: 16,
		PIZ: 32, B44: 32, B44A: 32, DWAA: 32, DWAB: 256,
	}
	for c, n := range want {
		assert.Equal(t, n, c.ScanLinesPerBlock(), c)
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	for c := NoCompression; c <= DWAB; c++ {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("lz4")
	require.ErrorIs(t, err, ErrUnsupportedCompression)
	assert.False(t, Compression(10).Valid())
}

func TestPredictorRoundTrip(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 2, 7, 256} {
		raw := make([]byte, n)
		for i := range raw {
			raw[i] = byte(i*13 + 5)
		}
		assert.Equal(t, raw, postprocess(preprocess(raw)), "len %d", n)
	}
	assert.Equal(t, []byte{1, 3, 5, 2, 4}, splitBytes([]byte{1, 2, 3, 4, 5}))
}

func TestRLEEncoding(t *testing.T) {
	t.Parallel()

	// After preprocessing, 8 zero bytes become 0 followed by seven 128s.
	packed, err := rleCodec{}.compress(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0, 6, 128}, packed)
}
