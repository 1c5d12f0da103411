/*
Package exr implements reading and writing of OpenEXR high dynamic range
image files, including multi-part, tiled and multi-resolution layouts.

A file stores a magic number and version flags, one attribute list per part,
one offset table per part and the chunk data. Chunks hold blocks of
scanlines or single tiles and may be compressed with RLE, ZIPS or ZIP.
Files using PIZ, PXR24, B44, B44A, DWAA or DWAB can be inspected with
ReadMetaData but their pixels fail with ErrUnsupportedCompression. Deep
parts are parsed structurally through Reader.ReadRawChunk only.

Chunks are compressed and decompressed on a bounded worker pool
(WithWorkers); WithWorkers(-1) selects a sequential mode that keeps one
chunk in memory at a time. WithProgress observes progress and may cancel.
Every allocation sized from file contents is checked against
WithMaxAllocation first.

Typical use:

	img, err := exr.ReadFile("in.exr")
	...
	img.Parts[0].Header.Compression = exr.ZIP
	err = exr.WriteFile("out.exr", img, exr.WithWorkers(4))
*/
package exr
