package exr

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Samples holds the values of one channel in one level, row-major. The
// set of implementations is closed.
type Samples interface {
	// Len returns the number of samples.
	Len() int
	// SampleType returns the stored numeric kind.
	SampleType() SampleType
}

type (
	// F16Samples are half floats kept as their raw bit patterns.
	F16Samples []uint16
	// F32Samples are 32-bit floats.
	F32Samples []float32
	// U32Samples are 32-bit unsigned integers.
	U32Samples []uint32
)

func (s F16Samples) Len() int { return len(s) }
func (s F32Samples) Len() int { return len(s) }
func (s U32Samples) Len() int { return len(s) }

func (F16Samples) SampleType() SampleType { return F16 }
func (F32Samples) SampleType() SampleType { return F32 }
func (U32Samples) SampleType() SampleType { return U32 }

// newSamples allocates n zero samples of type t.
func newSamples(t SampleType, n int) Samples {
	switch t {
	case F16:
		return make(F16Samples, n)
	case U32:
		return make(U32Samples, n)
	default:
		return make(F32Samples, n)
	}
}

// LevelPixels is the pixel data of one resolution level. Channels follow
// the order of the header's channel list.
type LevelPixels struct {
	Level
	Channels []Samples
}

// Part is one header with its pixels.
type Part struct {
	Header Header
	Levels []LevelPixels
}

// Image is a complete multi-part image held in memory.
type Image struct {
	Parts []Part
}

// NewPart allocates zeroed pixels for every level of h. The pixel buffers
// are bounded by DefaultMaxAllocation unless WithMaxAllocation says
// otherwise.
func NewPart(h Header, opts ...Option) (Part, error) {
	return newPart(h, newOptions(opts).maxAlloc)
}

func newPart(h Header, limit int64) (Part, error) {
	if h.Type.IsDeep() {
		return Part{}, fmt.Errorf("%w: deep pixel data", ErrUnsupportedFeature)
	}

	lvls := h.Levels()
	var total int64
	for _, lvl := range lvls {
		n, err := mulSize(int64(lvl.Size.X), int64(lvl.Size.Y), int64(h.Channels.BytesPerPixel()))
		if err != nil {
			return Part{}, err
		}
		total += n
		if err := checkAlloc(total, limit, "image pixels"); err != nil {
			return Part{}, err
		}
	}

	p := Part{Header: h, Levels: make([]LevelPixels, len(lvls))}
	for i, lvl := range lvls {
		n := int(lvl.Size.X) * int(lvl.Size.Y)
		p.Levels[i] = LevelPixels{Level: lvl, Channels: make([]Samples, len(h.Channels))}
		for c, ch := range h.Channels {
			p.Levels[i].Channels[c] = newSamples(ch.Type, n)
		}
	}
	return p, nil
}

// NewImage allocates an image with zeroed pixels for headers, bounded by
// DefaultMaxAllocation in total. Larger images are assembled from parts
// built with NewPart and WithMaxAllocation.
func NewImage(headers ...Header) (*Image, error) {
	img := &Image{Parts: make([]Part, len(headers))}
	var total int64
	for i, h := range headers {
		p, err := NewPart(h)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		total += p.byteSize()
		if err := checkAlloc(total, DefaultMaxAllocation, "image pixels"); err != nil {
			return nil, err
		}
		img.Parts[i] = p
	}
	return img, nil
}

// Headers returns the headers of all parts.
func (img *Image) Headers() []Header {
	out := make([]Header, len(img.Parts))
	for i := range img.Parts {
		out[i] = img.Parts[i].Header
	}
	return out
}

// Level returns the pixels of the level with the given index.
func (p *Part) Level(index V2i) (*LevelPixels, bool) {
	for i := range p.Levels {
		if p.Levels[i].Index == index {
			return &p.Levels[i], true
		}
	}
	return nil, false
}

func (p *Part) byteSize() int64 {
	var n int64
	for _, lvl := range p.Levels {
		n += int64(lvl.Size.X) * int64(lvl.Size.Y) * int64(p.Header.Channels.BytesPerPixel())
	}
	return n
}

// check verifies that the sample buffers match the header.
func (p *Part) check() error {
	lvls := p.Header.Levels()
	if len(p.Levels) != len(lvls) {
		return fmt.Errorf("%w: %d levels, header has %d", ErrPixelDataMismatch, len(p.Levels), len(lvls))
	}
	for i, lvl := range lvls {
		got := &p.Levels[i]
		if got.Level != lvl {
			return fmt.Errorf("%w: level %d is %v, header has %v", ErrPixelDataMismatch, i, got.Level, lvl)
		}
		if len(got.Channels) != len(p.Header.Channels) {
			return fmt.Errorf("%w: level %v has %d channels, header has %d", ErrPixelDataMismatch, lvl.Index, len(got.Channels), len(p.Header.Channels))
		}
		n := int(lvl.Size.X) * int(lvl.Size.Y)
		for c, ch := range p.Header.Channels {
			s := got.Channels[c]
			if s == nil || s.SampleType() != ch.Type || s.Len() != n {
				return fmt.Errorf("%w: level %v channel %q needs %d %s samples", ErrPixelDataMismatch, lvl.Index, ch.Name, n, ch.Type)
			}
		}
	}
	return nil
}

// packBlock serializes the pixels of block b: for every line, every
// channel in list order, little-endian.
func (lp *LevelPixels) packBlock(b BlockIndex, dst []byte) {
	stride := int(lp.Size.X)
	pos := 0
	for y := range int(b.Size.Y) {
		row := (int(b.Position.Y)+y)*stride + int(b.Position.X)
		for _, s := range lp.Channels {
			switch s := s.(type) {
			case F16Samples:
				for _, v := range s[row : row+int(b.Size.X)] {
					binary.LittleEndian.PutUint16(dst[pos:], v)
					pos += 2
				}
			case F32Samples:
				for _, v := range s[row : row+int(b.Size.X)] {
					binary.LittleEndian.PutUint32(dst[pos:], math.Float32bits(v))
					pos += 4
				}
			case U32Samples:
				for _, v := range s[row : row+int(b.Size.X)] {
					binary.LittleEndian.PutUint32(dst[pos:], v)
					pos += 4
				}
			}
		}
	}
}

// unpackBlock is the inverse of packBlock.
func (lp *LevelPixels) unpackBlock(b BlockIndex, src []byte) {
	stride := int(lp.Size.X)
	pos := 0
	for y := range int(b.Size.Y) {
		row := (int(b.Position.Y)+y)*stride + int(b.Position.X)
		for _, s := range lp.Channels {
			switch s := s.(type) {
			case F16Samples:
				for x := range int(b.Size.X) {
					s[row+x] = binary.LittleEndian.Uint16(src[pos:])
					pos += 2
				}
			case F32Samples:
				for x := range int(b.Size.X) {
					s[row+x] = math.Float32frombits(binary.LittleEndian.Uint32(src[pos:]))
					pos += 4
				}
			case U32Samples:
				for x := range int(b.Size.X) {
					s[row+x] = binary.LittleEndian.Uint32(src[pos:])
					pos += 4
				}
			}
		}
	}
}

// imageSource serves blocks of an in-memory image to the writer.
type imageSource struct {
	img *Image
}

func (s imageSource) ReadBlock(b BlockIndex, dst []byte) error {
	p := &s.img.Parts[b.Part]
	lp, ok := p.Level(b.Level)
	if !ok {
		return fmt.Errorf("%w: part %d has no level %v", ErrPixelDataMismatch, b.Part, b.Level)
	}
	lp.packBlock(b, dst)
	return nil
}

// imageSink fills an in-memory image from decoded blocks.
type imageSink struct {
	img *Image
}

func (s imageSink) WriteBlock(b BlockIndex, data []byte) error {
	return partSink{part: &s.img.Parts[b.Part]}.WriteBlock(b, data)
}

// partSink fills one part, whatever its index in the file.
type partSink struct {
	part *Part
}

func (s partSink) WriteBlock(b BlockIndex, data []byte) error {
	lp, ok := s.part.Level(b.Level)
	if !ok {
		return fmt.Errorf("%w: part %d has no level %v", ErrPixelDataMismatch, b.Part, b.Level)
	}
	lp.unpackBlock(b, data)
	return nil
}
