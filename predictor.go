package exr

// splitBytes moves even-indexed bytes to the first half and odd-indexed
// bytes to the second half, separating the low and high byte planes of
// little-endian samples.
func splitBytes(src []byte) []byte {
	out := make([]byte, len(src))
	half := (len(src) + 1) / 2
	for i, b := range src {
		if i%2 == 0 {
			out[i/2] = b
		} else {
			out[half+i/2] = b
		}
	}
	return out
}

// interleaveBytes is the inverse of splitBytes.
func interleaveBytes(src []byte) []byte {
	out := make([]byte, len(src))
	half := (len(src) + 1) / 2
	for i := range out {
		if i%2 == 0 {
			out[i] = src[i/2]
		} else {
			out[i] = src[half+i/2]
		}
	}
	return out
}

// encodeDelta replaces each byte with its difference to the previous one,
// biased by 128.
func encodeDelta(buf []byte) {
	if len(buf) == 0 {
		return
	}
	prev := buf[0]
	for i := 1; i < len(buf); i++ {
		cur := buf[i]
		buf[i] = cur - prev + 128
		prev = cur
	}
}

// decodeDelta is the inverse of encodeDelta.
func decodeDelta(buf []byte) {
	for i := 1; i < len(buf); i++ {
		buf[i] = buf[i-1] + buf[i] - 128
	}
}

// preprocess prepares raw chunk bytes for RLE and ZIP.
func preprocess(raw []byte) []byte {
	out := splitBytes(raw)
	encodeDelta(out)
	return out
}

// postprocess is the inverse of preprocess and works in place on buf.
func postprocess(buf []byte) []byte {
	decodeDelta(buf)
	return interleaveBytes(buf)
}
