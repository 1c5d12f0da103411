package exr

import "errors"

var (
	// ErrInvalidHeader indicates a header that is malformed or violates a structural rule.
	ErrInvalidHeader = errors.New("invalid header")
	// ErrInvalidAttribute indicates an attribute whose bytes do not match its type schema.
	ErrInvalidAttribute = errors.New("invalid attribute")
	// ErrUnsupportedCompression indicates a compression method that is recognized but not implemented.
	ErrUnsupportedCompression = errors.New("unsupported compression")
	// ErrUnsupportedFeature indicates file content this package can describe but not decode.
	ErrUnsupportedFeature = errors.New("unsupported feature")
	// ErrCorruptCompressedBlock indicates a chunk payload that does not decode to its expected size.
	ErrCorruptCompressedBlock = errors.New("corrupt compressed block")
	// ErrAllocationTooLarge indicates a declared size above the configured allocation limit.
	ErrAllocationTooLarge = errors.New("allocation too large")
	// ErrCancelled indicates the operation was stopped by its progress callback or context.
	ErrCancelled = errors.New("cancelled")
	// ErrIO indicates a failure of the underlying byte stream.
	ErrIO = errors.New("i/o failure")
	// ErrInvalidRegion indicates a requested read region outside a part's data window.
	ErrInvalidRegion = errors.New("invalid region")
	// ErrPixelDataMismatch indicates sample buffers that do not match their header.
	ErrPixelDataMismatch = errors.New("pixel data mismatch")
	// ErrSizeOverflow indicates a size or dimension exceeds supported limits.
	ErrSizeOverflow = errors.New("size overflow")
)
