package exr

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// fillPattern writes deterministic samples into every level of p,
// including NaN payloads that must survive a round trip bit for bit.
func fillPattern(p *Part) {
	for li := range p.Levels {
		for ci, s := range p.Levels[li].Channels {
			switch s := s.(type) {
			case F16Samples:
				for i := range s {
					s[i] = uint16((i*7 + ci*131 + li*17) & 0xffff) //nolint:gosec // bounded by mask
				}
				if len(s) > 1 {
					s[1] = 0x7e01
				}
			case F32Samples:
				for i := range s {
					s[i] = float32(i%37)*0.25 + float32(ci) - float32(li)
				}
				if len(s) > 1 {
					s[1] = math.Float32frombits(0x7fc00001)
				}
			case U32Samples:
				for i := range s {
					s[i] = uint32(i*2654435761 + ci) //nolint:gosec // wrap is intended
				}
			}
		}
	}
}

// newTestImage allocates an image for headers and fills it with fillPattern.
func newTestImage(t testing.TB, headers ...Header) *Image {
	t.Helper()

	img, err := NewImage(headers...)
	require.NoError(t, err)
	for i := range img.Parts {
		fillPattern(&img.Parts[i])
	}
	return img
}

// sampleBits returns the samples as raw bit patterns for exact comparison.
func sampleBits(s Samples) []uint32 {
	out := make([]uint32, 0, s.Len())
	switch s := s.(type) {
	case F16Samples:
		for _, v := range s {
			out = append(out, uint32(v))
		}
	case F32Samples:
		for _, v := range s {
			out = append(out, math.Float32bits(v))
		}
	case U32Samples:
		out = append(out, s...)
	}
	return out
}

// requireSamplesEqual compares two images sample by sample.
func requireSamplesEqual(t *testing.T, want, got *Image) {
	t.Helper()

	require.Len(t, got.Parts, len(want.Parts))
	for pi := range want.Parts {
		wp, gp := &want.Parts[pi], &got.Parts[pi]
		require.Len(t, gp.Levels, len(wp.Levels), "part %d", pi)
		for li := range wp.Levels {
			require.Equal(t, wp.Levels[li].Level, gp.Levels[li].Level, "part %d level %d", pi, li)
			for ci := range wp.Levels[li].Channels {
				require.Equal(t, wp.Levels[li].Channels[ci].SampleType(), gp.Levels[li].Channels[ci].SampleType())
				require.Equal(t,
					sampleBits(wp.Levels[li].Channels[ci]),
					sampleBits(gp.Levels[li].Channels[ci]),
					"part %d level %v channel %d", pi, wp.Levels[li].Index, ci)
			}
		}
	}
}

// encodeImage writes img into memory.
func encodeImage(t *testing.T, img *Image, opts ...Option) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, WriteImage(context.Background(), &buf, img, opts...))
	return buf.Bytes()
}

// decodeImage reads a complete image from memory.
func decodeImage(t *testing.T, data []byte, opts ...Option) *Image {
	t.Helper()

	r, err := Open(bytes.NewReader(data), opts...)
	require.NoError(t, err)
	img, err := r.ReadImage(context.Background())
	require.NoError(t, err)
	return img
}
