package exr

import "fmt"

// LevelMode selects how many resolution levels a tiled part stores.
type LevelMode uint8

const (
	// OneLevel stores only the full resolution.
	OneLevel LevelMode = 0
	// MipMapLevels halves both axes together per level.
	MipMapLevels LevelMode = 1
	// RipMapLevels halves each axis independently.
	RipMapLevels LevelMode = 2
)

func (m LevelMode) String() string {
	switch m {
	case OneLevel:
		return "one level"
	case MipMapLevels:
		return "mip map"
	case RipMapLevels:
		return "rip map"
	default:
		return fmt.Sprintf("level mode %d", uint8(m))
	}
}

// RoundingMode is the rounding policy for level sizes that are not powers of two.
type RoundingMode uint8

const (
	// RoundDown truncates halved dimensions.
	RoundDown RoundingMode = 0
	// RoundUp rounds halved dimensions up.
	RoundUp RoundingMode = 1
)

func (m RoundingMode) String() string {
	switch m {
	case RoundDown:
		return "round down"
	case RoundUp:
		return "round up"
	default:
		return fmt.Sprintf("rounding mode %d", uint8(m))
	}
}

// TileDescription is the tiling of a tiled part.
type TileDescription struct {
	XSize, YSize uint32
	Mode         LevelMode
	Rounding     RoundingMode
}

// levelCount returns the number of levels down to a 1 pixel dimension.
func levelCount(size int64, round RoundingMode) int {
	count := 1
	for v := int64(1); v < size; v <<= 1 {
		count++
	}
	// count-1 is now ceil(log2(size)).
	if round == RoundDown && size&(size-1) != 0 {
		count--
	}
	return count
}

// levelSize returns the dimension of a resolution level.
func levelSize(base int64, level int, round RoundingMode) int64 {
	if level >= 63 {
		return 1
	}
	div := int64(1) << level
	var result int64
	if round == RoundUp {
		result = (base + div - 1) / div
	} else {
		result = base / div
	}
	if result < 1 {
		return 1
	}

	return result
}

// Level identifies one resolution level and its pixel size.
type Level struct {
	Index V2i
	Size  V2i
}

// levels lists the resolution levels of a part in file order: level 0
// first, rip levels with x varying fastest.
func levels(width, height int64, td *TileDescription) []Level {
	if td == nil || td.Mode == OneLevel {
		return []Level{{Size: V2i{X: int32(width), Y: int32(height)}}}
	}

	if td.Mode == MipMapLevels {
		count := levelCount(max(width, height), td.Rounding)
		out := make([]Level, count)
		for l := range count {
			out[l] = Level{
				Index: V2i{X: int32(l), Y: int32(l)},
				Size: V2i{
					X: int32(levelSize(width, l, td.Rounding)),
					Y: int32(levelSize(height, l, td.Rounding)),
				},
			}
		}
		return out
	}

	xCount := levelCount(width, td.Rounding)
	yCount := levelCount(height, td.Rounding)
	out := make([]Level, 0, xCount*yCount)
	for ly := range yCount {
		for lx := range xCount {
			out = append(out, Level{
				Index: V2i{X: int32(lx), Y: int32(ly)},
				Size: V2i{
					X: int32(levelSize(width, lx, td.Rounding)),
					Y: int32(levelSize(height, ly, td.Rounding)),
				},
			})
		}
	}
	return out
}
