package exr

import (
	"errors"
	"fmt"
)

// MetaData is everything stored before the offset tables.
type MetaData struct {
	Requirements Requirements
	Headers      []Header
}

// NewMetaData derives the requirements for headers and validates them.
func NewMetaData(headers ...Header) (*MetaData, error) {
	m := &MetaData{Requirements: requirementsFor(headers), Headers: headers}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks every header rule and the cross-part rules.
func (m *MetaData) Validate() error {
	ctx := validationContext{req: m.Requirements, headers: m.Headers}
	return ctx.validate()
}

// readMetaData parses magic, version and the header section. No codec is
// involved, so any compression method is accepted here.
func readMetaData(sr *streamReader) (*MetaData, error) {
	magic, err := sr.u32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic number %d", ErrInvalidHeader, magic)
	}

	word, err := sr.u32()
	if err != nil {
		return nil, err
	}
	req, err := parseRequirements(word)
	if err != nil {
		return nil, err
	}

	m := &MetaData{Requirements: req}
	for {
		if req.Multipart {
			b, err := sr.peekByte()
			if err != nil {
				return nil, err
			}
			if b == 0 {
				if _, err := sr.readByte(); err != nil {
					return nil, err
				}
				break
			}
		}

		start := sr.pos
		attrs, err := readAttributes(sr, req.nameLimit())
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", len(m.Headers), err)
		}
		h, err := headerFromAttributes(attrs, req)
		if err != nil {
			return nil, fmt.Errorf("part %d at byte %d: %w", len(m.Headers), start, err)
		}
		m.Headers = append(m.Headers, h)

		if !req.Multipart {
			break
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// readAttributes reads one attribute list up to its terminating zero byte.
func readAttributes(sr *streamReader, nameLimit int) ([]Attribute, error) {
	var attrs []Attribute
	for {
		at := sr.pos
		name, err := sr.nullString(nameLimit, "attribute name")
		if err != nil {
			return nil, err
		}
		if name == "" {
			return attrs, nil
		}

		typeName, err := sr.nullString(nameLimit, "attribute type")
		if err != nil {
			return nil, err
		}
		if typeName == "" {
			return nil, fmt.Errorf("%w: attribute %q at byte %d has an empty type", ErrInvalidHeader, name, at)
		}
		size, err := sr.i32()
		if err != nil {
			return nil, err
		}
		data, err := sr.sized(int64(size), "attribute "+name)
		if err != nil {
			return nil, err
		}

		value, err := DecodeAttribute(typeName, data)
		if err != nil {
			return nil, fmt.Errorf("attribute %q at byte %d: %w", name, at, err)
		}
		attrs = append(attrs, Attribute{Name: name, Value: value})
	}
}

// encode returns magic, version and the header section. chunkCounts holds
// the computed block count of every part.
func (m *MetaData) encode(chunkCounts []int64) ([]byte, error) {
	if len(chunkCounts) != len(m.Headers) {
		return nil, errors.New("chunk counts do not match parts")
	}

	w := &byteWriter{}
	w.u32(Magic)
	w.u32(m.Requirements.word())

	for i := range m.Headers {
		count, err := i32FromInt(int(chunkCounts[i]))
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		for _, a := range m.Headers[i].attributeList(m.Requirements.Multipart, count) {
			data, err := EncodeAttribute(a.Value)
			if err != nil {
				return nil, fmt.Errorf("part %d: attribute %q: %w", i, a.Name, err)
			}
			size, err := i32FromInt(len(data))
			if err != nil {
				return nil, fmt.Errorf("part %d: attribute %q: %w", i, a.Name, err)
			}
			w.nullString(a.Name)
			w.nullString(a.Value.TypeName())
			w.i32(size)
			w.raw(data)
		}
		w.u8(0)
	}
	if m.Requirements.Multipart {
		w.u8(0)
	}
	return w.buf, nil
}
