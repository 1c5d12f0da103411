package exr

import "fmt"

const (
	rleMinRun = 3
	rleMaxRun = 127
)

type rleCodec struct{}

// compress emits runs as (count-1, byte) and literal spans as
// (-count, bytes...).
func (rleCodec) compress(raw []byte) ([]byte, error) {
	src := preprocess(raw)
	out := make([]byte, 0, len(src)+len(src)/rleMaxRun+1)

	for start := 0; start < len(src); {
		end := start + 1
		for end < len(src) && src[end] == src[start] && end-start-1 < rleMaxRun {
			end++
		}

		if end-start >= rleMinRun {
			out = append(out, byte(end-start-1), src[start])
			start = end
			continue
		}

		for end < len(src) &&
			(end+1 >= len(src) || src[end] != src[end+1] || end+2 >= len(src) || src[end+1] != src[end+2]) &&
			end-start < rleMaxRun {
			end++
		}
		out = append(out, byte(-int8(end-start)))
		out = append(out, src[start:end]...)
		start = end
	}

	return out, nil
}

func (rleCodec) decompress(data []byte, expected int) ([]byte, error) {
	out := make([]byte, 0, expected)

	for i := 0; i < len(data); {
		count := int(int8(data[i]))
		i++
		if count < 0 {
			n := -count
			if i+n > len(data) {
				return nil, fmt.Errorf("%w: rle literal of %d bytes at %d overruns payload", ErrCorruptCompressedBlock, n, i-1)
			}
			if len(out)+n > expected {
				return nil, fmt.Errorf("%w: rle output exceeds %d bytes", ErrCorruptCompressedBlock, expected)
			}
			out = append(out, data[i:i+n]...)
			i += n
			continue
		}

		if i >= len(data) {
			return nil, fmt.Errorf("%w: rle run at %d has no value", ErrCorruptCompressedBlock, i-1)
		}
		n := count + 1
		if len(out)+n > expected {
			return nil, fmt.Errorf("%w: rle output exceeds %d bytes", ErrCorruptCompressedBlock, expected)
		}
		v := data[i]
		i++
		for range n {
			out = append(out, v)
		}
	}

	if len(out) != expected {
		return nil, fmt.Errorf("%w: rle decoded %d bytes, want %d", ErrCorruptCompressedBlock, len(out), expected)
	}
	return postprocess(out), nil
}
