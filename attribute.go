package exr

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

const (
	// shortNameLimit is the name length allowed without the long-names flag.
	shortNameLimit = 31
	// longNameLimit is the name length allowed with the long-names flag.
	longNameLimit = 255
)

// AttributeValue is a typed attribute value. The set of implementations is
// closed; unknown attribute types decode to Raw.
type AttributeValue interface {
	// TypeName returns the type tag stored in files.
	TypeName() string
	attributeValue()
}

type (
	// Int is an "int" attribute.
	Int int32
	// Float is a "float" attribute.
	Float float32
	// Double is a "double" attribute.
	Double float64
	// Text is a "string" attribute.
	Text string
	// TextVector is a "stringvector" attribute.
	TextVector []string
	// FloatVector is a "floatvector" attribute.
	FloatVector []float32
	// Raw keeps the payload of an attribute whose type is not known.
	Raw struct {
		Type string
		Data []byte
	}
)

func (Box2i) TypeName() string           { return "box2i" }
func (Box2f) TypeName() string           { return "box2f" }
func (ChannelList) TypeName() string     { return "chlist" }
func (Chromaticities) TypeName() string  { return "chromaticities" }
func (Compression) TypeName() string     { return "compression" }
func (Double) TypeName() string          { return "double" }
func (EnvMap) TypeName() string          { return "envmap" }
func (Float) TypeName() string           { return "float" }
func (FloatVector) TypeName() string     { return "floatvector" }
func (Int) TypeName() string             { return "int" }
func (KeyCode) TypeName() string         { return "keycode" }
func (LineOrder) TypeName() string       { return "lineOrder" }
func (M33f) TypeName() string            { return "m33f" }
func (M44f) TypeName() string            { return "m44f" }
func (M33d) TypeName() string            { return "m33d" }
func (M44d) TypeName() string            { return "m44d" }
func (Preview) TypeName() string         { return "preview" }
func (Rational) TypeName() string        { return "rational" }
func (Text) TypeName() string            { return "string" }
func (TextVector) TypeName() string      { return "stringvector" }
func (TileDescription) TypeName() string { return "tiledesc" }
func (TimeCode) TypeName() string        { return "timecode" }
func (V2i) TypeName() string             { return "v2i" }
func (V2f) TypeName() string             { return "v2f" }
func (V2d) TypeName() string             { return "v2d" }
func (V3i) TypeName() string             { return "v3i" }
func (V3f) TypeName() string             { return "v3f" }
func (V3d) TypeName() string             { return "v3d" }
func (r Raw) TypeName() string           { return r.Type }

func (Box2i) attributeValue()           {}
func (Box2f) attributeValue()           {}
func (ChannelList) attributeValue()     {}
func (Chromaticities) attributeValue()  {}
func (Compression) attributeValue()     {}
func (Double) attributeValue()          {}
func (EnvMap) attributeValue()          {}
func (Float) attributeValue()           {}
func (FloatVector) attributeValue()     {}
func (Int) attributeValue()             {}
func (KeyCode) attributeValue()         {}
func (LineOrder) attributeValue()       {}
func (M33f) attributeValue()            {}
func (M44f) attributeValue()            {}
func (M33d) attributeValue()            {}
func (M44d) attributeValue()            {}
func (Preview) attributeValue()         {}
func (Rational) attributeValue()        {}
func (Text) attributeValue()            {}
func (TextVector) attributeValue()      {}
func (TileDescription) attributeValue() {}
func (TimeCode) attributeValue()        {}
func (V2i) attributeValue()             {}
func (V2f) attributeValue()             {}
func (V2d) attributeValue()             {}
func (V3i) attributeValue()             {}
func (V3f) attributeValue()             {}
func (V3d) attributeValue()             {}
func (Raw) attributeValue()             {}

// Attribute is a named value.
type Attribute struct {
	Name  string
	Value AttributeValue
}

// Attributes is an ordered attribute registry. The zero value is empty and
// ready to use.
type Attributes struct {
	list []Attribute
}

// Set stores value under name, replacing an existing value in place.
func (a *Attributes) Set(name string, value AttributeValue) {
	for i := range a.list {
		if a.list[i].Name == name {
			a.list[i].Value = value
			return
		}
	}
	a.list = append(a.list, Attribute{Name: name, Value: value})
}

// Get returns the value stored under name.
func (a *Attributes) Get(name string) (AttributeValue, bool) {
	for _, attr := range a.list {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// Delete removes name and reports whether it was present.
func (a *Attributes) Delete(name string) bool {
	for i, attr := range a.list {
		if attr.Name == name {
			a.list = slices.Delete(a.list, i, i+1)
			return true
		}
	}
	return false
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	return len(a.list)
}

// All iterates attributes in insertion order.
func (a *Attributes) All() iter.Seq2[string, AttributeValue] {
	return func(yield func(string, AttributeValue) bool) {
		for _, attr := range a.list {
			if !yield(attr.Name, attr.Value) {
				return
			}
		}
	}
}

// Clone returns a copy that does not share the ordering with a.
func (a *Attributes) Clone() Attributes {
	return Attributes{list: slices.Clone(a.list)}
}

// AttributeAs returns the named attribute when it holds a value of type T.
func AttributeAs[T AttributeValue](a *Attributes, name string) (T, bool) {
	var zero T
	v, ok := a.Get(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// validateAttribute checks the name and the value constraints of one attribute.
func validateAttribute(name string, value AttributeValue) error {
	if name == "" {
		return fmt.Errorf("%w: empty attribute name", ErrInvalidAttribute)
	}
	if len(name) > longNameLimit {
		return fmt.Errorf("%w: attribute name %q longer than %d bytes", ErrInvalidAttribute, name, longNameLimit)
	}
	if value == nil {
		return fmt.Errorf("%w: %s: nil value", ErrInvalidAttribute, name)
	}
	typeName := value.TypeName()
	if typeName == "" || len(typeName) > longNameLimit {
		return fmt.Errorf("%w: %s: invalid type name %q", ErrInvalidAttribute, name, typeName)
	}

	switch v := value.(type) {
	case ChannelList:
		if len(v) == 0 {
			return fmt.Errorf("%w: %s: list must have at least one element", ErrInvalidAttribute, name)
		}
	case TextVector:
		if len(v) == 0 {
			return fmt.Errorf("%w: %s: list must have at least one element", ErrInvalidAttribute, name)
		}
	case FloatVector:
		if len(v) == 0 {
			return fmt.Errorf("%w: %s: list must have at least one element", ErrInvalidAttribute, name)
		}
	case Preview:
		n, err := mulSize(int64(v.Width), int64(v.Height), 4)
		if err != nil || int64(len(v.Pixels)) != n {
			return fmt.Errorf("%w: %s: %dx%d preview needs %d bytes, has %d", ErrInvalidAttribute, name, v.Width, v.Height, n, len(v.Pixels))
		}
	case Raw:
		if _, known := fixedSizes[v.Type]; known || isVariableType(v.Type) {
			return fmt.Errorf("%w: %s: raw value uses known type %q", ErrInvalidAttribute, name, v.Type)
		}
	}
	return nil
}

// fixedSizes are the payload sizes of fixed-layout attribute types.
var fixedSizes = map[string]int{
	"box2i":          16,
	"box2f":          16,
	"chromaticities": 32,
	"compression":    1,
	"double":         8,
	"envmap":         1,
	"float":          4,
	"int":            4,
	"keycode":        28,
	"lineOrder":      1,
	"m33f":           36,
	"m44f":           64,
	"m33d":           72,
	"m44d":           128,
	"rational":       8,
	"tiledesc":       9,
	"timecode":       8,
	"v2i":            8,
	"v2f":            8,
	"v2d":            16,
	"v3i":            12,
	"v3f":            12,
	"v3d":            24,
}

func isVariableType(typeName string) bool {
	switch typeName {
	case "chlist", "floatvector", "preview", "string", "stringvector":
		return true
	}
	return false
}

// DecodeAttribute decodes an attribute payload of the given type. Unknown
// types are returned as Raw with a copy of data.
func DecodeAttribute(typeName string, data []byte) (AttributeValue, error) {
	if want, ok := fixedSizes[typeName]; ok && len(data) != want {
		return nil, fmt.Errorf("%w: %s: payload is %d bytes, want %d", ErrInvalidAttribute, typeName, len(data), want)
	}

	v, err := decodeValue(typeName, &sliceReader{data: data})
	if err != nil {
		if errors.Is(err, errShortPayload) {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidAttribute, typeName, err)
		}
		return nil, err
	}
	return v, nil
}

//nolint:gocyclo // one case per attribute type
func decodeValue(typeName string, r *sliceReader) (AttributeValue, error) {
	switch typeName {
	case "box2i":
		b, err := readI32s(r, 4)
		if err != nil {
			return nil, err
		}
		return Box2i{Min: V2i{X: b[0], Y: b[1]}, Max: V2i{X: b[2], Y: b[3]}}, nil
	case "box2f":
		f, err := readF32s(r, 4)
		if err != nil {
			return nil, err
		}
		return Box2f{Min: V2f{X: f[0], Y: f[1]}, Max: V2f{X: f[2], Y: f[3]}}, nil
	case "chlist":
		return decodeChannelList(r)
	case "chromaticities":
		f, err := readF32s(r, 8)
		if err != nil {
			return nil, err
		}
		return Chromaticities{
			Red: V2f{X: f[0], Y: f[1]}, Green: V2f{X: f[2], Y: f[3]},
			Blue: V2f{X: f[4], Y: f[5]}, White: V2f{X: f[6], Y: f[7]},
		}, nil
	case "compression":
		b, err := r.u8()
		if err != nil {
			return nil, err
		}
		if c := Compression(b); !c.Valid() {
			return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidAttribute, b)
		}
		return Compression(b), nil
	case "double":
		v, err := r.f64()
		return Double(v), err
	case "envmap":
		b, err := r.u8()
		if err != nil {
			return nil, err
		}
		if b > uint8(EnvMapCube) {
			return nil, fmt.Errorf("%w: unknown environment map %d", ErrInvalidAttribute, b)
		}
		return EnvMap(b), nil
	case "float":
		v, err := r.f32()
		return Float(v), err
	case "floatvector":
		if r.remaining() == 0 || r.remaining()%4 != 0 {
			return nil, fmt.Errorf("%w: floatvector payload of %d bytes", ErrInvalidAttribute, r.remaining())
		}
		f, err := readF32s(r, r.remaining()/4)
		return FloatVector(f), err
	case "int":
		v, err := r.i32()
		return Int(v), err
	case "keycode":
		k, err := readI32s(r, 7)
		if err != nil {
			return nil, err
		}
		return KeyCode{
			FilmMfcCode: k[0], FilmType: k[1], Prefix: k[2], Count: k[3],
			PerfOffset: k[4], PerfsPerFrame: k[5], PerfsPerCount: k[6],
		}, nil
	case "lineOrder":
		b, err := r.u8()
		if err != nil {
			return nil, err
		}
		if !LineOrder(b).Valid() {
			return nil, fmt.Errorf("%w: unknown line order %d", ErrInvalidAttribute, b)
		}
		return LineOrder(b), nil
	case "m33f":
		f, err := readF32s(r, 9)
		if err != nil {
			return nil, err
		}
		return M33f(f), nil
	case "m44f":
		f, err := readF32s(r, 16)
		if err != nil {
			return nil, err
		}
		return M44f(f), nil
	case "m33d":
		f, err := readF64s(r, 9)
		if err != nil {
			return nil, err
		}
		return M33d(f), nil
	case "m44d":
		f, err := readF64s(r, 16)
		if err != nil {
			return nil, err
		}
		return M44d(f), nil
	case "preview":
		return decodePreview(r)
	case "rational":
		num, err := r.i32()
		if err != nil {
			return nil, err
		}
		den, err := r.u32()
		return Rational{Num: num, Denom: den}, err
	case "string":
		b, _ := r.take(r.remaining())
		return Text(b), nil
	case "stringvector":
		return decodeTextVector(r)
	case "tiledesc":
		return decodeTileDescription(r)
	case "timecode":
		t, err := r.u32()
		if err != nil {
			return nil, err
		}
		u, err := r.u32()
		return TimeCode{Time: t, User: u}, err
	case "v2i":
		v, err := readI32s(r, 2)
		if err != nil {
			return nil, err
		}
		return V2i{X: v[0], Y: v[1]}, nil
	case "v2f":
		v, err := readF32s(r, 2)
		if err != nil {
			return nil, err
		}
		return V2f{X: v[0], Y: v[1]}, nil
	case "v2d":
		v, err := readF64s(r, 2)
		if err != nil {
			return nil, err
		}
		return V2d{X: v[0], Y: v[1]}, nil
	case "v3i":
		v, err := readI32s(r, 3)
		if err != nil {
			return nil, err
		}
		return V3i{X: v[0], Y: v[1], Z: v[2]}, nil
	case "v3f":
		v, err := readF32s(r, 3)
		if err != nil {
			return nil, err
		}
		return V3f{X: v[0], Y: v[1], Z: v[2]}, nil
	case "v3d":
		v, err := readF64s(r, 3)
		if err != nil {
			return nil, err
		}
		return V3d{X: v[0], Y: v[1], Z: v[2]}, nil
	default:
		return Raw{Type: typeName, Data: slices.Clone(r.data)}, nil
	}
}

func readI32s(r *sliceReader, n int) ([]int32, error) {
	out := make([]int32, n)
	for i := range out {
		v, err := r.i32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readF32s(r *sliceReader, n int) ([]float32, error) {
	out := make([]float32, n)
	for i := range out {
		v, err := r.f32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readF64s(r *sliceReader, n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		v, err := r.f64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeChannelList(r *sliceReader) (ChannelList, error) {
	var list ChannelList
	for {
		name, err := r.nullString(longNameLimit)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typ, err := r.i32()
		if err != nil {
			return nil, err
		}
		linear, err := r.take(4) // pLinear and three reserved bytes
		if err != nil {
			return nil, err
		}
		xs, err := r.i32()
		if err != nil {
			return nil, err
		}
		ys, err := r.i32()
		if err != nil {
			return nil, err
		}
		if SampleType(typ).Size() == 0 {
			return nil, fmt.Errorf("%w: channel %q: unknown sample type %d", ErrInvalidAttribute, name, typ)
		}
		list = append(list, Channel{
			Name:     name,
			Type:     SampleType(typ),
			Linear:   linear[0] != 0,
			Sampling: V2i{X: xs, Y: ys},
		})
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: chlist: %d trailing bytes", ErrInvalidAttribute, r.remaining())
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: chlist: list must have at least one element", ErrInvalidAttribute)
	}
	return list, nil
}

func decodePreview(r *sliceReader) (Preview, error) {
	w, err := r.u32()
	if err != nil {
		return Preview{}, err
	}
	h, err := r.u32()
	if err != nil {
		return Preview{}, err
	}
	n, err := mulSize(int64(w), int64(h), 4)
	if err != nil || n != int64(r.remaining()) {
		return Preview{}, fmt.Errorf("%w: %dx%d preview with %d pixel bytes", ErrInvalidAttribute, w, h, r.remaining())
	}
	px, _ := r.take(int(n))
	return Preview{Width: w, Height: h, Pixels: slices.Clone(px)}, nil
}

func decodeTextVector(r *sliceReader) (TextVector, error) {
	var out TextVector
	for r.remaining() > 0 {
		n, err := r.i32()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: stringvector element of %d bytes", ErrInvalidAttribute, n)
		}
		b, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: stringvector: list must have at least one element", ErrInvalidAttribute)
	}
	return out, nil
}

func decodeTileDescription(r *sliceReader) (TileDescription, error) {
	x, err := r.u32()
	if err != nil {
		return TileDescription{}, err
	}
	y, err := r.u32()
	if err != nil {
		return TileDescription{}, err
	}
	mode, err := r.u8()
	if err != nil {
		return TileDescription{}, err
	}
	td := TileDescription{XSize: x, YSize: y, Mode: LevelMode(mode & 0x0f), Rounding: RoundingMode(mode >> 4)}
	if td.Mode > RipMapLevels || td.Rounding > RoundUp {
		return TileDescription{}, fmt.Errorf("%w: tiledesc mode byte 0x%02x", ErrInvalidAttribute, mode)
	}
	return td, nil
}

// EncodeAttribute serializes a value into its payload bytes.
//
//nolint:gocyclo // one case per attribute type
func EncodeAttribute(value AttributeValue) ([]byte, error) {
	w := &byteWriter{}
	switch v := value.(type) {
	case Box2i:
		w.i32(v.Min.X)
		w.i32(v.Min.Y)
		w.i32(v.Max.X)
		w.i32(v.Max.Y)
	case Box2f:
		w.f32(v.Min.X)
		w.f32(v.Min.Y)
		w.f32(v.Max.X)
		w.f32(v.Max.Y)
	case ChannelList:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: chlist: list must have at least one element", ErrInvalidAttribute)
		}
		for _, ch := range v {
			w.nullString(ch.Name)
			w.i32(int32(ch.Type))
			if ch.Linear {
				w.u8(1)
			} else {
				w.u8(0)
			}
			w.raw([]byte{0, 0, 0})
			w.i32(ch.Sampling.X)
			w.i32(ch.Sampling.Y)
		}
		w.u8(0)
	case Chromaticities:
		for _, p := range [...]V2f{v.Red, v.Green, v.Blue, v.White} {
			w.f32(p.X)
			w.f32(p.Y)
		}
	case Compression:
		w.u8(uint8(v))
	case Double:
		w.f64(float64(v))
	case EnvMap:
		w.u8(uint8(v))
	case Float:
		w.f32(float32(v))
	case FloatVector:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: floatvector: list must have at least one element", ErrInvalidAttribute)
		}
		for _, f := range v {
			w.f32(f)
		}
	case Int:
		w.i32(int32(v))
	case KeyCode:
		for _, k := range [...]int32{v.FilmMfcCode, v.FilmType, v.Prefix, v.Count, v.PerfOffset, v.PerfsPerFrame, v.PerfsPerCount} {
			w.i32(k)
		}
	case LineOrder:
		w.u8(uint8(v))
	case M33f:
		for _, f := range v {
			w.f32(f)
		}
	case M44f:
		for _, f := range v {
			w.f32(f)
		}
	case M33d:
		for _, f := range v {
			w.f64(f)
		}
	case M44d:
		for _, f := range v {
			w.f64(f)
		}
	case Preview:
		if err := validateAttribute("preview", v); err != nil {
			return nil, err
		}
		w.u32(v.Width)
		w.u32(v.Height)
		w.raw(v.Pixels)
	case Rational:
		w.i32(v.Num)
		w.u32(v.Denom)
	case Text:
		w.raw([]byte(v))
	case TextVector:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: stringvector: list must have at least one element", ErrInvalidAttribute)
		}
		for _, s := range v {
			n, err := i32FromInt(len(s))
			if err != nil {
				return nil, fmt.Errorf("%w: stringvector element of %d bytes", ErrInvalidAttribute, len(s))
			}
			w.i32(n)
			w.raw([]byte(s))
		}
	case TileDescription:
		w.u32(v.XSize)
		w.u32(v.YSize)
		w.u8(uint8(v.Mode) | uint8(v.Rounding)<<4)
	case TimeCode:
		w.u32(v.Time)
		w.u32(v.User)
	case V2i:
		w.i32(v.X)
		w.i32(v.Y)
	case V2f:
		w.f32(v.X)
		w.f32(v.Y)
	case V2d:
		w.f64(v.X)
		w.f64(v.Y)
	case V3i:
		w.i32(v.X)
		w.i32(v.Y)
		w.i32(v.Z)
	case V3f:
		w.f32(v.X)
		w.f32(v.Y)
		w.f32(v.Z)
	case V3d:
		w.f64(v.X)
		w.f64(v.Y)
		w.f64(v.Z)
	case Raw:
		w.raw(v.Data)
	default:
		return nil, fmt.Errorf("%w: unsupported value %T", ErrInvalidAttribute, value)
	}
	return w.buf, nil
}
