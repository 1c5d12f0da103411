package exr

import "fmt"

// V2i is a 2D integer vector.
type V2i struct {
	X, Y int32
}

// V2f is a 2D float vector.
type V2f struct {
	X, Y float32
}

// V2d is a 2D double-precision vector.
type V2d struct {
	X, Y float64
}

// V3i is a 3D integer vector.
type V3i struct {
	X, Y, Z int32
}

// V3f is a 3D float vector.
type V3f struct {
	X, Y, Z float32
}

// V3d is a 3D double-precision vector.
type V3d struct {
	X, Y, Z float64
}

// Box2i is an integer rectangle with inclusive min and max corners.
type Box2i struct {
	Min, Max V2i
}

// Box2f is a float rectangle.
type Box2f struct {
	Min, Max V2f
}

// NewBox2i returns the box at (x, y) with the given width and height.
func NewBox2i(x, y, width, height int32) Box2i {
	return Box2i{Min: V2i{X: x, Y: y}, Max: V2i{X: x + width - 1, Y: y + height - 1}}
}

// Width returns the number of columns covered by the box.
func (b Box2i) Width() int64 {
	return int64(b.Max.X) - int64(b.Min.X) + 1
}

// Height returns the number of rows covered by the box.
func (b Box2i) Height() int64 {
	return int64(b.Max.Y) - int64(b.Min.Y) + 1
}

// IsEmpty reports whether the box covers no pixels.
func (b Box2i) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y
}

// Contains reports whether o lies completely inside b.
func (b Box2i) Contains(o Box2i) bool {
	return o.Min.X >= b.Min.X && o.Min.Y >= b.Min.Y && o.Max.X <= b.Max.X && o.Max.Y <= b.Max.Y
}

// Intersects reports whether the boxes share at least one pixel.
func (b Box2i) Intersects(o Box2i) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X && b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y
}

func (b Box2i) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
}

// M33f is a 3x3 float matrix in row-major order.
type M33f [9]float32

// M44f is a 4x4 float matrix in row-major order.
type M44f [16]float32

// M33d is a 3x3 double matrix in row-major order.
type M33d [9]float64

// M44d is a 4x4 double matrix in row-major order.
type M44d [16]float64

// Rational is a numerator over an unsigned denominator.
type Rational struct {
	Num   int32
	Denom uint32
}

// Float64 returns the value of the rational, or 0 for a zero denominator.
func (r Rational) Float64() float64 {
	if r.Denom == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Denom)
}

// Chromaticities are CIE xy coordinates of the primaries and white point.
type Chromaticities struct {
	Red, Green, Blue, White V2f
}

// Rec709Chromaticities returns the primaries assumed when none are stored.
func Rec709Chromaticities() Chromaticities {
	return Chromaticities{
		Red:   V2f{X: 0.6400, Y: 0.3300},
		Green: V2f{X: 0.3000, Y: 0.6000},
		Blue:  V2f{X: 0.1500, Y: 0.0600},
		White: V2f{X: 0.3127, Y: 0.3290},
	}
}

// TimeCode is an SMPTE 12M time code and its user bits, stored packed.
type TimeCode struct {
	Time uint32
	User uint32
}

// Hours returns the BCD-decoded hour field.
func (t TimeCode) Hours() int { return bcd(t.Time >> 24 & 0x3f) }

// Minutes returns the BCD-decoded minute field.
func (t TimeCode) Minutes() int { return bcd(t.Time >> 16 & 0x7f) }

// Seconds returns the BCD-decoded second field.
func (t TimeCode) Seconds() int { return bcd(t.Time >> 8 & 0x7f) }

// Frame returns the BCD-decoded frame field.
func (t TimeCode) Frame() int { return bcd(t.Time & 0x3f) }

func bcd(v uint32) int {
	return int(v&0x0f) + 10*int((v>>4)&0x07)
}

// KeyCode identifies a motion picture film frame.
type KeyCode struct {
	FilmMfcCode   int32
	FilmType      int32
	Prefix        int32
	Count         int32
	PerfOffset    int32
	PerfsPerFrame int32
	PerfsPerCount int32
}

// Preview is a small RGBA8 thumbnail, four bytes per pixel.
type Preview struct {
	Width, Height uint32
	Pixels        []byte
}

// EnvMap is the environment map layout.
type EnvMap uint8

const (
	// EnvMapLatLong is a latitude-longitude map.
	EnvMapLatLong EnvMap = 0
	// EnvMapCube is a cube-face map.
	EnvMapCube EnvMap = 1
)

// LineOrder is the traversal order of chunks in the file.
type LineOrder uint8

const (
	// IncreasingY stores chunks top to bottom.
	IncreasingY LineOrder = 0
	// DecreasingY stores chunks bottom to top.
	DecreasingY LineOrder = 1
	// RandomY allows any chunk order.
	RandomY LineOrder = 2
)

func (l LineOrder) String() string {
	switch l {
	case IncreasingY:
		return "increasing y"
	case DecreasingY:
		return "decreasing y"
	case RandomY:
		return "random y"
	default:
		return fmt.Sprintf("line order %d", uint8(l))
	}
}

// Valid reports whether l is a known line order.
func (l LineOrder) Valid() bool {
	return l <= RandomY
}
