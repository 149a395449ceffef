package pe

import (
	"bytes"
	"math"
)

// VirtualView is a read-only byte view of an image keyed by RVA.
//
// Slice never panics: it returns the bytes in [from, until) that are mapped,
// which is shorter than requested at the end of data and nil when from itself
// is not mapped.
type VirtualView interface {
	Len() int64
	Slice(from, until int64) []byte
}

// FlatView is a VirtualView where every RVA equals its index in the slice.
type FlatView []byte

func (v FlatView) Len() int64 {
	return int64(len(v))
}

func (v FlatView) Slice(from, until int64) []byte {
	if from < 0 || until <= from || from >= int64(len(v)) {
		return nil
	}
	if until > int64(len(v)) {
		until = int64(len(v))
	}
	return v[from:until]
}

// imageView maps RVAs through the section table of a parsed File.
type imageView struct {
	f *File
}

func (v imageView) Len() int64 {
	return maxOf(int64(v.f.sizeOfImage()), int64(v.f.size))
}

func (v imageView) Slice(from, until int64) []byte {
	if from < 0 || until <= from || from > math.MaxUint32 {
		return nil
	}
	offset := v.f.getOffsetFromRva(uint32(from))
	if offset == ^uint32(0) || offset >= v.f.size {
		return nil
	}
	end := int64(offset) + (until - from)
	if end > int64(v.f.size) {
		end = int64(v.f.size)
	}
	return v.f.data[offset:end]
}

// readASCIIZ reads the NUL-terminated string at rva, at most maxNameLength
// bytes of it. It returns the string and the number of bytes consumed,
// terminator included when one was found. An unmapped rva yields an empty
// string.
func readASCIIZ(v VirtualView, rva int64) (string, int64) {
	b := v.Slice(rva, rva+maxNameLength)
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i]), int64(i) + 1
	}
	return string(b), int64(len(b))
}
