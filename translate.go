package pe

import "math"

// AddressTranslator converts RVAs to file offsets relative to the import
// directory: the directory's RVA corresponds to FileOffset and every other RVA
// keeps its distance to it.
type AddressTranslator struct {
	VirtualAddress uint32
	FileOffset     uint32
}

// Offset returns the file offset of rva. ok is false when the result would be
// negative or beyond the 32-bit file offset range.
func (t AddressTranslator) Offset(rva int64) (offset int64, ok bool) {
	offset = int64(t.FileOffset) + rva - int64(t.VirtualAddress)
	if !inRange(offset, 0, math.MaxUint32) {
		return 0, false
	}
	return offset, true
}

// Relative returns the distance of rva from the directory's RVA.
func (t AddressTranslator) Relative(rva int64) int64 {
	return rva - int64(t.VirtualAddress)
}
