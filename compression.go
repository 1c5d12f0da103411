package exr

import (
	"fmt"
	"slices"
)

// Compression is the pixel data compression method of a part.
type Compression uint8

const (
	// NoCompression stores chunks verbatim.
	NoCompression Compression = 0
	// RLE is byte-wise run length encoding.
	RLE Compression = 1
	// ZIPS is deflate over single scanlines.
	ZIPS Compression = 2
	// ZIP is deflate over blocks of 16 scanlines.
	ZIP Compression = 3
	// PIZ is wavelet and Huffman compression. Not implemented.
	PIZ Compression = 4
	// PXR24 is lossy 24-bit float compression. Not implemented.
	PXR24 Compression = 5
	// B44 is lossy 4x4 block compression. Not implemented.
	B44 Compression = 6
	// B44A is B44 with flat-area optimization. Not implemented.
	B44A Compression = 7
	// DWAA is lossy DCT compression over 32 scanlines. Not implemented.
	DWAA Compression = 8
	// DWAB is lossy DCT compression over 256 scanlines. Not implemented.
	DWAB Compression = 9
)

var compressionNames = [...]string{
	NoCompression: "none",
	RLE:           "rle",
	ZIPS:          "zips",
	ZIP:           "zip",
	PIZ:           "piz",
	PXR24:         "pxr24",
	B44:           "b44",
	B44A:          "b44a",
	DWAA:          "dwaa",
	DWAB:          "dwab",
}

func (c Compression) String() string {
	if c.Valid() {
		return compressionNames[c]
	}
	return fmt.Sprintf("compression %d", uint8(c))
}

// ParseCompression returns the compression with the given short name.
func ParseCompression(name string) (Compression, error) {
	if i := slices.Index(compressionNames[:], name); i >= 0 {
		return Compression(i), nil
	}
	return 0, fmt.Errorf("%w: unknown compression %q", ErrUnsupportedCompression, name)
}

// Valid reports whether c is a method known to the file format.
func (c Compression) Valid() bool {
	return c <= DWAB
}

// Supported reports whether pixel data in c can be encoded and decoded.
func (c Compression) Supported() bool {
	switch c {
	case NoCompression, RLE, ZIPS, ZIP:
		return true
	default:
		return false
	}
}

// ScanLinesPerBlock returns the number of scanlines grouped into one chunk.
func (c Compression) ScanLinesPerBlock() int {
	switch c {
	case ZIP, PXR24:
		return 16
	case PIZ, B44, B44A, DWAA:
		return 32
	case DWAB:
		return 256
	default:
		return 1
	}
}

// supportsDeep reports whether c may be used for deep data.
func (c Compression) supportsDeep() bool {
	switch c {
	case NoCompression, RLE, ZIPS, ZIP:
		return true
	default:
		return false
	}
}

// codec is the contract of one implemented compression method.
type codec interface {
	compress(raw []byte) ([]byte, error)
	// decompress returns exactly expected bytes or an error.
	decompress(data []byte, expected int) ([]byte, error)
}

type nopCodec struct{}

func (nopCodec) compress(raw []byte) ([]byte, error) { return raw, nil }

func (nopCodec) decompress(data []byte, expected int) ([]byte, error) {
	if len(data) != expected {
		return nil, fmt.Errorf("%w: uncompressed block has %d bytes, want %d", ErrCorruptCompressedBlock, len(data), expected)
	}
	return data, nil
}

// newCodec returns the codec for c. level is the deflate level used by
// the ZIP methods.
func (c Compression) newCodec(level int) (codec, error) {
	switch c {
	case NoCompression:
		return nopCodec{}, nil
	case RLE:
		return rleCodec{}, nil
	case ZIPS, ZIP:
		return zipCodec{level: level}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
	}
}

// Compress compresses one uncompressed chunk. When compression does not
// shrink the data the raw bytes are returned, as the file format requires.
func (c Compression) Compress(raw []byte) ([]byte, error) {
	return c.compressLevel(raw, defaultZipLevel)
}

func (c Compression) compressLevel(raw []byte, level int) ([]byte, error) {
	cd, err := c.newCodec(level)
	if err != nil {
		return nil, err
	}
	packed, err := cd.compress(raw)
	if err != nil {
		return nil, err
	}
	if len(packed) >= len(raw) {
		return raw, nil
	}
	return packed, nil
}

// Decompress restores one chunk to exactly expected bytes. A payload as
// long as the expected size is stored raw.
func (c Compression) Decompress(data []byte, expected int) ([]byte, error) {
	cd, err := c.newCodec(defaultZipLevel)
	if err != nil {
		return nil, err
	}
	if expected < 0 {
		return nil, fmt.Errorf("%w: negative expected size %d", ErrCorruptCompressedBlock, expected)
	}
	if len(data) == expected {
		return data, nil
	}
	if len(data) > expected {
		return nil, fmt.Errorf("%w: %s payload of %d bytes exceeds uncompressed size %d", ErrCorruptCompressedBlock, c, len(data), expected)
	}

	out, err := cd.decompress(data, expected)
	if err != nil {
		return nil, err
	}
	if len(out) != expected {
		return nil, fmt.Errorf("%w: %s decoded %d bytes, want %d", ErrCorruptCompressedBlock, c, len(out), expected)
	}
	return out, nil
}
