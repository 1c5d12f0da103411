package exr

import (
	"fmt"
	"slices"
)

// Names of attributes kept as typed Header fields.
const (
	AttrChannels           = "channels"
	AttrCompression        = "compression"
	AttrDataWindow         = "dataWindow"
	AttrDisplayWindow      = "displayWindow"
	AttrLineOrder          = "lineOrder"
	AttrPixelAspectRatio   = "pixelAspectRatio"
	AttrScreenWindowCenter = "screenWindowCenter"
	AttrScreenWindowWidth  = "screenWindowWidth"
	AttrTiles              = "tiles"
	AttrName               = "name"
	AttrType               = "type"
	AttrVersion            = "version"
	AttrChunkCount         = "chunkCount"
	AttrMaxSamplesPerPixel = "maxSamplesPerPixel"

	// AttrChromaticities and AttrTimeCode are optional attributes that
	// must agree across parts.
	AttrChromaticities = "chromaticities"
	AttrTimeCode       = "timeCode"
)

// requiredAttributes must be present in every header.
var requiredAttributes = []string{
	AttrChannels, AttrCompression, AttrDataWindow, AttrDisplayWindow,
	AttrLineOrder, AttrPixelAspectRatio, AttrScreenWindowCenter, AttrScreenWindowWidth,
}

// reservedAttributes are stored as Header fields, never in Header.Attributes.
var reservedAttributes = append(slices.Clone(requiredAttributes),
	AttrTiles, AttrName, AttrType, AttrVersion, AttrChunkCount, AttrMaxSamplesPerPixel,
)

// BlockType is the structural kind of a part.
type BlockType uint8

const (
	// ScanLineImage stores flat pixels in blocks of scanlines.
	ScanLineImage BlockType = iota
	// TiledImage stores flat pixels in tiles, optionally with levels.
	TiledImage
	// DeepScanLine stores deep samples in blocks of scanlines.
	DeepScanLine
	// DeepTile stores deep samples in tiles.
	DeepTile
)

var blockTypeNames = [...]string{
	ScanLineImage: "scanlineimage",
	TiledImage:    "tiledimage",
	DeepScanLine:  "deepscanline",
	DeepTile:      "deeptile",
}

func (t BlockType) String() string {
	if int(t) < len(blockTypeNames) {
		return blockTypeNames[t]
	}
	return fmt.Sprintf("block type %d", uint8(t))
}

// IsTiled reports whether blocks are tiles.
func (t BlockType) IsTiled() bool { return t == TiledImage || t == DeepTile }

// IsDeep reports whether the part stores deep samples.
func (t BlockType) IsDeep() bool { return t == DeepScanLine || t == DeepTile }

func parseBlockType(s string) (BlockType, error) {
	if i := slices.Index(blockTypeNames[:], s); i >= 0 {
		return BlockType(i), nil
	}
	return 0, fmt.Errorf("%w: unknown part type %q", ErrInvalidHeader, s)
}

// Header describes one part. Required attributes are typed fields; every
// other attribute lives in Attributes and is written after them.
type Header struct {
	Channels           ChannelList
	Compression        Compression
	DataWindow         Box2i
	DisplayWindow      Box2i
	LineOrder          LineOrder
	PixelAspectRatio   float32
	ScreenWindowCenter V2f
	ScreenWindowWidth  float32

	Type BlockType
	// Tiles is set for tiled parts only.
	Tiles *TileDescription
	// Name is required when a file has more than one part.
	Name string

	// DeepVersion and MaxSamplesPerPixel are used by deep parts only.
	DeepVersion        int32
	MaxSamplesPerPixel int32

	// ChunkCount is the value read from a file, 0 when absent. Writers
	// always store the computed count.
	ChunkCount int32

	Attributes Attributes
}

// NewScanlineHeader returns a scanline part covering width x height pixels
// at the origin, with matching display window and default geometry.
func NewScanlineHeader(width, height int32, compression Compression, channels ...Channel) Header {
	window := NewBox2i(0, 0, width, height)
	return Header{
		Channels:          NewChannelList(channels...),
		Compression:       compression,
		DataWindow:        window,
		DisplayWindow:     window,
		LineOrder:         IncreasingY,
		PixelAspectRatio:  1,
		ScreenWindowWidth: 1,
		Type:              ScanLineImage,
	}
}

// NewTiledHeader returns a tiled part covering width x height pixels.
func NewTiledHeader(width, height int32, compression Compression, tiles TileDescription, channels ...Channel) Header {
	h := NewScanlineHeader(width, height, compression, channels...)
	h.Type = TiledImage
	h.Tiles = &tiles
	return h
}

// Chromaticities returns the stored primaries, or Rec. 709 when absent.
func (h *Header) Chromaticities() (Chromaticities, bool) {
	if c, ok := AttributeAs[Chromaticities](&h.Attributes, AttrChromaticities); ok {
		return c, true
	}
	return Rec709Chromaticities(), false
}

// TimeCode returns the stored time code.
func (h *Header) TimeCode() (TimeCode, bool) {
	return AttributeAs[TimeCode](&h.Attributes, AttrTimeCode)
}

// Levels returns the resolution levels of the part in file order.
func (h *Header) Levels() []Level {
	if !h.Type.IsTiled() {
		return levels(h.DataWindow.Width(), h.DataWindow.Height(), nil)
	}
	return levels(h.DataWindow.Width(), h.DataWindow.Height(), h.Tiles)
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() Header {
	c := *h
	c.Channels = slices.Clone(h.Channels)
	if h.Tiles != nil {
		td := *h.Tiles
		c.Tiles = &td
	}
	c.Attributes = h.Attributes.Clone()
	return c
}

func (h *Header) needsLongNames() bool {
	for _, ch := range h.Channels {
		if len(ch.Name) > shortNameLimit {
			return true
		}
	}
	for name, v := range h.Attributes.All() {
		if len(name) > shortNameLimit || len(v.TypeName()) > shortNameLimit {
			return true
		}
	}
	return false
}

// attributeList returns the attributes to store: required ones in a fixed
// order, then structural ones, then custom attributes in insertion order.
func (h *Header) attributeList(multipart bool, chunkCount int32) []Attribute {
	list := []Attribute{
		{AttrChannels, h.Channels},
		{AttrCompression, h.Compression},
		{AttrDataWindow, h.DataWindow},
		{AttrDisplayWindow, h.DisplayWindow},
		{AttrLineOrder, h.LineOrder},
		{AttrPixelAspectRatio, Float(h.PixelAspectRatio)},
		{AttrScreenWindowCenter, h.ScreenWindowCenter},
		{AttrScreenWindowWidth, Float(h.ScreenWindowWidth)},
	}
	if h.Type.IsTiled() && h.Tiles != nil {
		list = append(list, Attribute{AttrTiles, *h.Tiles})
	}
	if h.Name != "" {
		list = append(list, Attribute{AttrName, Text(h.Name)})
	}
	if multipart || h.Type.IsDeep() {
		list = append(list, Attribute{AttrType, Text(h.Type.String())})
	}
	if h.Type.IsDeep() {
		list = append(list,
			Attribute{AttrVersion, Int(h.DeepVersion)},
			Attribute{AttrMaxSamplesPerPixel, Int(h.MaxSamplesPerPixel)},
		)
	}
	if multipart || h.Type.IsDeep() {
		list = append(list, Attribute{AttrChunkCount, Int(chunkCount)})
	}
	for name, v := range h.Attributes.All() {
		list = append(list, Attribute{name, v})
	}
	return list
}

// headerFromAttributes builds a header from the attributes of one part.
func headerFromAttributes(attrs []Attribute, req Requirements) (Header, error) {
	var (
		h    Header
		seen = make(map[string]bool, len(attrs))
	)

	for _, a := range attrs {
		if seen[a.Name] {
			return Header{}, fmt.Errorf("%w: duplicate attribute %q", ErrInvalidHeader, a.Name)
		}
		seen[a.Name] = true

		var ok bool
		switch a.Name {
		case AttrChannels:
			h.Channels, ok = a.Value.(ChannelList)
		case AttrCompression:
			h.Compression, ok = a.Value.(Compression)
		case AttrDataWindow:
			h.DataWindow, ok = a.Value.(Box2i)
		case AttrDisplayWindow:
			h.DisplayWindow, ok = a.Value.(Box2i)
		case AttrLineOrder:
			h.LineOrder, ok = a.Value.(LineOrder)
		case AttrPixelAspectRatio:
			var f Float
			f, ok = a.Value.(Float)
			h.PixelAspectRatio = float32(f)
		case AttrScreenWindowCenter:
			h.ScreenWindowCenter, ok = a.Value.(V2f)
		case AttrScreenWindowWidth:
			var f Float
			f, ok = a.Value.(Float)
			h.ScreenWindowWidth = float32(f)
		case AttrTiles:
			var td TileDescription
			td, ok = a.Value.(TileDescription)
			h.Tiles = &td
		case AttrName:
			var s Text
			s, ok = a.Value.(Text)
			h.Name = string(s)
		case AttrType:
			var s Text
			if s, ok = a.Value.(Text); ok {
				var err error
				if h.Type, err = parseBlockType(string(s)); err != nil {
					return Header{}, err
				}
			}
		case AttrVersion:
			var n Int
			n, ok = a.Value.(Int)
			h.DeepVersion = int32(n)
		case AttrChunkCount:
			var n Int
			n, ok = a.Value.(Int)
			h.ChunkCount = int32(n)
		case AttrMaxSamplesPerPixel:
			var n Int
			n, ok = a.Value.(Int)
			h.MaxSamplesPerPixel = int32(n)
		default:
			h.Attributes.Set(a.Name, a.Value)
			ok = true
		}
		if !ok {
			return Header{}, fmt.Errorf("%w: attribute %q has unexpected type %q", ErrInvalidHeader, a.Name, a.Value.TypeName())
		}
	}

	for _, name := range requiredAttributes {
		if !seen[name] {
			return Header{}, fmt.Errorf("%w: missing required attribute %q", ErrInvalidHeader, name)
		}
	}

	if !seen[AttrType] {
		switch {
		case req.Multipart:
			return Header{}, fmt.Errorf("%w: multipart header without %q", ErrInvalidHeader, AttrType)
		case req.Deep:
			return Header{}, fmt.Errorf("%w: deep header without %q", ErrInvalidHeader, AttrType)
		case req.SinglePartTiled:
			h.Type = TiledImage
		default:
			h.Type = ScanLineImage
		}
	}
	if req.Multipart && !seen[AttrChunkCount] {
		return Header{}, fmt.Errorf("%w: multipart header without %q", ErrInvalidHeader, AttrChunkCount)
	}
	if h.Type.IsTiled() && h.Tiles == nil {
		return Header{}, fmt.Errorf("%w: tiled part without %q", ErrInvalidHeader, AttrTiles)
	}

	return h, nil
}
