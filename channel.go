package exr

import (
	"fmt"
	"slices"
	"strings"
)

// SampleType is the numeric kind of a channel's samples.
type SampleType int32

const (
	// U32 is a 32-bit unsigned integer sample.
	U32 SampleType = 0
	// F16 is a 16-bit float sample.
	F16 SampleType = 1
	// F32 is a 32-bit float sample.
	F32 SampleType = 2
)

// Size returns the byte size of one sample, or 0 for an unknown type.
func (t SampleType) Size() int {
	switch t {
	case F16:
		return 2
	case F32, U32:
		return 4
	default:
		return 0
	}
}

func (t SampleType) String() string {
	switch t {
	case U32:
		return "uint"
	case F16:
		return "half"
	case F32:
		return "float"
	default:
		return fmt.Sprintf("sample type %d", int32(t))
	}
}

// Channel describes one named channel of a part.
type Channel struct {
	Name   string
	Type   SampleType
	Linear bool
	// Sampling is the horizontal and vertical subsampling rate.
	Sampling V2i
}

// NewChannel returns a channel sampled at every pixel.
func NewChannel(name string, t SampleType) Channel {
	return Channel{Name: name, Type: t, Sampling: V2i{X: 1, Y: 1}}
}

// ChannelList is the channel set of a part, kept sorted by name as stored
// in files.
type ChannelList []Channel

// NewChannelList returns the channels sorted by name.
func NewChannelList(channels ...Channel) ChannelList {
	list := slices.Clone(channels)
	slices.SortStableFunc(list, func(a, b Channel) int { return strings.Compare(a.Name, b.Name) })
	return list
}

// BytesPerPixel returns the byte size of one pixel across all channels.
func (l ChannelList) BytesPerPixel() int {
	n := 0
	for _, ch := range l {
		n += ch.Type.Size()
	}
	return n
}

// Index returns the position of the named channel, or -1.
func (l ChannelList) Index(name string) int {
	for i, ch := range l {
		if ch.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the channel names in list order.
func (l ChannelList) Names() []string {
	names := make([]string, len(l))
	for i, ch := range l {
		names[i] = ch.Name
	}
	return names
}

// validate checks names, types and sampling of every channel.
func (l ChannelList) validate(deep bool) error {
	if len(l) == 0 {
		return fmt.Errorf("%w: channels: list must have at least one element", ErrInvalidAttribute)
	}
	seen := make(map[string]struct{}, len(l))
	for i, ch := range l {
		if ch.Name == "" {
			return fmt.Errorf("%w: channel %d has an empty name", ErrInvalidHeader, i)
		}
		if ch.Type.Size() == 0 {
			return fmt.Errorf("%w: channel %q: unknown %s", ErrInvalidHeader, ch.Name, ch.Type)
		}
		if ch.Sampling.X < 1 || ch.Sampling.Y < 1 {
			return fmt.Errorf("%w: channel %q: sampling %dx%d must be positive", ErrInvalidHeader, ch.Name, ch.Sampling.X, ch.Sampling.Y)
		}
		if !deep && (ch.Sampling.X != 1 || ch.Sampling.Y != 1) {
			return fmt.Errorf("%w: channel %q: flat images require sampling 1x1, got %dx%d",
				ErrInvalidHeader, ch.Name, ch.Sampling.X, ch.Sampling.Y)
		}
		if _, dup := seen[ch.Name]; dup {
			return fmt.Errorf("%w: duplicate channel name %q", ErrInvalidHeader, ch.Name)
		}
		seen[ch.Name] = struct{}{}
	}
	for i := 1; i < len(l); i++ {
		if l[i-1].Name > l[i].Name {
			return fmt.Errorf("%w: channel %q is not sorted after %q", ErrInvalidHeader, l[i].Name, l[i-1].Name)
		}
	}
	return nil
}
