package exr

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
)

// benchMainFlowImage builds a deterministic RGBA half image used by IO benchmarks.
func benchMainFlowImage(b *testing.B, width, height int32, c Compression) *Image {
	b.Helper()

	h := NewScanlineHeader(width, height, c,
		NewChannel("A", F16), NewChannel("B", F16), NewChannel("G", F16), NewChannel("R", F16))
	img, err := NewImage(h)
	if err != nil {
		b.Fatalf("new image: %v", err)
	}

	w := int(width)
	for ci, s := range img.Parts[0].Levels[0].Channels {
		px := s.(F16Samples)
		for i := range px {
			x, y := i%w, i/w
			// Smooth gradients with a little noise, like rendered frames.
			px[i] = uint16(0x3000 + (x*7+y*3+ci*11)&0x3ff) //nolint:gosec // bounded by mask
		}
	}
	return img
}

// benchMainFlowInput prepares an encoded file for read benchmarks.
func benchMainFlowInput(b *testing.B, img *Image) []byte {
	b.Helper()

	var buf bytes.Buffer
	if err := WriteImage(context.Background(), &buf, img); err != nil {
		b.Fatalf("prepare input: %v", err)
	}
	return buf.Bytes()
}

// benchImageBytes computes raw pixel bytes for throughput reporting.
func benchImageBytes(img *Image) int64 {
	var total int64
	for i := range img.Parts {
		total += img.Parts[i].byteSize()
	}
	return total
}

func BenchmarkMainFlowWrite(b *testing.B) {
	for _, c := range []Compression{NoCompression, RLE, ZIPS, ZIP} {
		b.Run(c.String(), func(b *testing.B) {
			img := benchMainFlowImage(b, 1024, 1024, c)

			b.ReportAllocs()
			b.SetBytes(benchImageBytes(img))
			b.ResetTimer()

			for b.Loop() {
				if err := WriteImage(context.Background(), io.Discard, img); err != nil {
					b.Fatalf("write: %v", err)
				}
			}
		})
	}
}

func BenchmarkMainFlowWriteFile(b *testing.B) {
	img := benchMainFlowImage(b, 1024, 1024, ZIP)
	path := filepath.Join(b.TempDir(), "main_flow_write.exr")

	b.ReportAllocs()
	b.SetBytes(benchImageBytes(img))
	b.ResetTimer()

	for b.Loop() {
		if err := WriteFile(path, img); err != nil {
			b.Fatalf("write: %v", err)
		}
	}
}

func BenchmarkMainFlowRead(b *testing.B) {
	for _, c := range []Compression{NoCompression, RLE, ZIPS, ZIP} {
		b.Run(c.String(), func(b *testing.B) {
			img := benchMainFlowImage(b, 1024, 1024, c)
			data := benchMainFlowInput(b, img)

			b.ReportAllocs()
			b.SetBytes(benchImageBytes(img))
			b.ResetTimer()

			for b.Loop() {
				r, err := Open(bytes.NewReader(data))
				if err != nil {
					b.Fatalf("open: %v", err)
				}
				if _, err := r.ReadImage(context.Background()); err != nil {
					b.Fatalf("read: %v", err)
				}
			}
		})
	}
}

func BenchmarkReadSequential(b *testing.B) {
	img := benchMainFlowImage(b, 1024, 1024, ZIP)
	data := benchMainFlowInput(b, img)

	b.ReportAllocs()
	b.SetBytes(benchImageBytes(img))
	b.ResetTimer()

	for b.Loop() {
		r, err := Open(bytes.NewReader(data), WithWorkers(-1))
		if err != nil {
			b.Fatalf("open: %v", err)
		}
		if _, err := r.ReadImage(context.Background()); err != nil {
			b.Fatalf("read: %v", err)
		}
	}
}
