package exr

import (
	"fmt"
	"math"
	"slices"
)

// windowLimit bounds window coordinates so that sizes fit in int32.
const windowLimit = 1 << 30

// validationContext is the read-only view every header rule runs against.
type validationContext struct {
	req     Requirements
	headers []Header
}

// validate checks every part and the cross-part rules, stopping at the
// first violation.
func (c *validationContext) validate() error {
	if len(c.headers) == 0 {
		return fmt.Errorf("%w: no parts", ErrInvalidHeader)
	}
	if len(c.headers) > 1 && !c.req.Multipart {
		return fmt.Errorf("%w: %d parts without the multipart flag", ErrInvalidHeader, len(c.headers))
	}
	if c.req.SinglePartTiled && (len(c.headers) != 1 || c.headers[0].Type != TiledImage) {
		return fmt.Errorf("%w: single-part tiled flag on a file that is not one tiled part", ErrInvalidHeader)
	}

	for i := range c.headers {
		if err := c.validateHeader(i); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
	}
	return c.validateShared()
}

//nolint:gocyclo // one check per header rule
func (c *validationContext) validateHeader(i int) error {
	h := &c.headers[i]

	if int(h.Type) >= len(blockTypeNames) {
		return fmt.Errorf("%w: %s", ErrInvalidHeader, h.Type)
	}
	if h.Type.IsDeep() && !c.req.Deep {
		return fmt.Errorf("%w: deep part without the deep flag", ErrInvalidHeader)
	}
	if err := h.Channels.validate(h.Type.IsDeep()); err != nil {
		return err
	}
	if !h.Compression.Valid() {
		return fmt.Errorf("%w: unknown %s", ErrInvalidHeader, h.Compression)
	}
	if !h.LineOrder.Valid() {
		return fmt.Errorf("%w: unknown %s", ErrInvalidHeader, h.LineOrder)
	}
	if err := validateWindow(AttrDataWindow, h.DataWindow); err != nil {
		return err
	}
	if err := validateWindow(AttrDisplayWindow, h.DisplayWindow); err != nil {
		return err
	}
	if ar := float64(h.PixelAspectRatio); math.IsNaN(ar) || math.IsInf(ar, 0) || ar <= 0 {
		return fmt.Errorf("%w: pixel aspect ratio %v", ErrInvalidHeader, h.PixelAspectRatio)
	}
	if sw := float64(h.ScreenWindowWidth); math.IsNaN(sw) || math.IsInf(sw, 0) || sw < 0 {
		return fmt.Errorf("%w: screen window width %v", ErrInvalidHeader, h.ScreenWindowWidth)
	}

	if h.Type.IsTiled() {
		if err := validateTiles(h.Tiles); err != nil {
			return err
		}
	} else {
		if h.Tiles != nil {
			return fmt.Errorf("%w: scanline part carries a tile description", ErrInvalidHeader)
		}
		if !h.Type.IsDeep() && h.LineOrder == RandomY {
			return fmt.Errorf("%w: scanline parts require increasing or decreasing line order", ErrInvalidHeader)
		}
	}

	if h.Type.IsDeep() {
		if h.DeepVersion != 1 {
			return fmt.Errorf("%w: deep data version %d", ErrInvalidHeader, h.DeepVersion)
		}
		if !h.Compression.supportsDeep() {
			return fmt.Errorf("%w: %s cannot compress deep data", ErrInvalidHeader, h.Compression)
		}
	}

	if len(c.headers) > 1 {
		if h.Name == "" {
			return fmt.Errorf("%w: part name is required in a multipart file", ErrInvalidHeader)
		}
		for j := range i {
			if c.headers[j].Name == h.Name {
				return fmt.Errorf("%w: part name %q is also used by part %d", ErrInvalidHeader, h.Name, j)
			}
		}
	}

	count, err := h.BlockCount()
	if err != nil {
		return err
	}
	if h.ChunkCount != 0 && int64(h.ChunkCount) != count {
		return fmt.Errorf("%w: chunk count %d, layout has %d", ErrInvalidHeader, h.ChunkCount, count)
	}

	limit := c.req.nameLimit()
	for _, ch := range h.Channels {
		if len(ch.Name) > limit {
			return fmt.Errorf("%w: channel name %q longer than %d bytes", ErrInvalidHeader, ch.Name, limit)
		}
	}
	for name, v := range h.Attributes.All() {
		if slices.Contains(reservedAttributes, name) {
			return fmt.Errorf("%w: %q must be set through the header field", ErrInvalidHeader, name)
		}
		if err := validateAttribute(name, v); err != nil {
			return err
		}
		if len(name) > limit || len(v.TypeName()) > limit {
			return fmt.Errorf("%w: attribute %q or its type is longer than %d bytes", ErrInvalidHeader, name, limit)
		}
	}
	return nil
}

func validateWindow(name string, b Box2i) error {
	if b.IsEmpty() {
		return fmt.Errorf("%w: %s %s is empty", ErrInvalidHeader, name, b)
	}
	for _, v := range [...]int32{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y} {
		if v < -windowLimit || v > windowLimit {
			return fmt.Errorf("%w: %s %s exceeds +-%d", ErrInvalidHeader, name, b, windowLimit)
		}
	}
	if b.Width() > int64(maxInt32) || b.Height() > int64(maxInt32) {
		return fmt.Errorf("%w: %s %s is %dx%d pixels", ErrInvalidHeader, name, b, b.Width(), b.Height())
	}
	return nil
}

func validateTiles(td *TileDescription) error {
	if td == nil {
		return fmt.Errorf("%w: tiled part without a tile description", ErrInvalidHeader)
	}
	if td.XSize == 0 || td.YSize == 0 || td.XSize > windowLimit || td.YSize > windowLimit {
		return fmt.Errorf("%w: tile size %dx%d", ErrInvalidHeader, td.XSize, td.YSize)
	}
	if td.Mode > RipMapLevels || td.Rounding > RoundUp {
		return fmt.Errorf("%w: %s with %s", ErrInvalidHeader, td.Mode, td.Rounding)
	}
	return nil
}

// validateShared checks attributes that must agree between parts.
func (c *validationContext) validateShared() error {
	first := &c.headers[0]
	for i := 1; i < len(c.headers); i++ {
		h := &c.headers[i]
		if h.DisplayWindow != first.DisplayWindow {
			return fmt.Errorf("%w: part %d: %s %s differs from part 0 %s", ErrInvalidHeader, i, AttrDisplayWindow, h.DisplayWindow, first.DisplayWindow)
		}
		if h.PixelAspectRatio != first.PixelAspectRatio {
			return fmt.Errorf("%w: part %d: %s %v differs from part 0 %v", ErrInvalidHeader, i, AttrPixelAspectRatio, h.PixelAspectRatio, first.PixelAspectRatio)
		}
	}

	if err := checkShared[Chromaticities](c.headers, AttrChromaticities); err != nil {
		return err
	}
	return checkShared[TimeCode](c.headers, AttrTimeCode)
}

// checkShared fails when parts store different values under name.
func checkShared[T interface {
	comparable
	AttributeValue
}](headers []Header, name string) error {
	var (
		ref     T
		refPart = -1
	)
	for i := range headers {
		v, ok := headers[i].Attributes.Get(name)
		if !ok {
			continue
		}
		t, ok := v.(T)
		if !ok {
			return fmt.Errorf("%w: part %d: %s has type %q", ErrInvalidHeader, i, name, v.TypeName())
		}
		if refPart < 0 {
			ref, refPart = t, i
			continue
		}
		if t != ref {
			return fmt.Errorf("%w: part %d: %s differs from part %d", ErrInvalidHeader, i, name, refPart)
		}
	}
	return nil
}
