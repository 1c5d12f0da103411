package exr

import "fmt"

const (
	// Magic is the little-endian number every file starts with.
	Magic = 20000630

	// formatVersion is the only file format version in use.
	formatVersion = 2

	flagSinglePartTiled = 0x200
	flagLongNames       = 0x400
	flagDeep            = 0x800
	flagMultipart       = 0x1000

	versionMask = 0xff
	knownFlags  = flagSinglePartTiled | flagLongNames | flagDeep | flagMultipart
)

// Requirements are the feature flags stored in the file version word.
type Requirements struct {
	// Version is the file format version, always 2.
	Version uint8
	// SinglePartTiled marks a single-part file whose only part is tiled.
	SinglePartTiled bool
	// LongNames marks attribute, type or channel names longer than 31 bytes.
	LongNames bool
	// Deep marks a file containing at least one deep part.
	Deep bool
	// Multipart marks a file with a multipart header section.
	Multipart bool
}

// word packs the requirements into the version field.
func (r Requirements) word() uint32 {
	w := uint32(r.Version)
	if r.SinglePartTiled {
		w |= flagSinglePartTiled
	}
	if r.LongNames {
		w |= flagLongNames
	}
	if r.Deep {
		w |= flagDeep
	}
	if r.Multipart {
		w |= flagMultipart
	}
	return w
}

func (r Requirements) nameLimit() int {
	if r.LongNames {
		return longNameLimit
	}
	return shortNameLimit
}

// parseRequirements unpacks a version field.
func parseRequirements(word uint32) (Requirements, error) {
	version := word & versionMask
	if version != formatVersion {
		return Requirements{}, fmt.Errorf("%w: file format version %d", ErrUnsupportedFeature, version)
	}
	if unknown := word &^ (versionMask | knownFlags); unknown != 0 {
		return Requirements{}, fmt.Errorf("%w: unknown version flags 0x%x", ErrUnsupportedFeature, unknown)
	}

	r := Requirements{
		Version:         formatVersion,
		SinglePartTiled: word&flagSinglePartTiled != 0,
		LongNames:       word&flagLongNames != 0,
		Deep:            word&flagDeep != 0,
		Multipart:       word&flagMultipart != 0,
	}
	if r.SinglePartTiled && (r.Multipart || r.Deep) {
		return Requirements{}, fmt.Errorf("%w: single-part tiled flag combined with multipart or deep (0x%x)", ErrInvalidHeader, word)
	}
	return r, nil
}

// requirementsFor derives the flags a file with these headers needs.
func requirementsFor(headers []Header) Requirements {
	r := Requirements{Version: formatVersion, Multipart: len(headers) > 1}
	for i := range headers {
		h := &headers[i]
		if h.Type.IsDeep() {
			r.Deep = true
		}
		if h.needsLongNames() {
			r.LongNames = true
		}
	}
	if len(headers) == 1 && headers[0].Type == TiledImage {
		r.SinglePartTiled = true
	}
	return r
}
