package pe

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// LookupEntry is one decoded lookup table entry: *OrdinalEntry, *NameEntry or
// *NullEntry. Null entries end a table and never appear in Import.Entries.
type LookupEntry interface {
	Header() EntryHeader
	entry() *EntryHeader
}

// EntryHeader carries the fields shared by all lookup entry variants.
type EntryHeader struct {
	// Directory is the index of the owning Import in ImportSection.Imports.
	Directory int
	Offset    int64
	RVA       uint32
	Width     int64
	Raw       uint64
}

func (h EntryHeader) Header() EntryHeader { return h }

func (h *EntryHeader) entry() *EntryHeader { return h }

// OrdinalEntry is a symbol imported by ordinal.
type OrdinalEntry struct {
	EntryHeader
	Ordinal uint16
}

// NameEntry is a symbol imported by name through the hint/name table.
type NameEntry struct {
	EntryHeader
	HintNameRVA uint32
	Hint        uint16
	Name        string
}

// NullEntry is the all-zero entry that terminates a lookup table.
type NullEntry struct {
	EntryHeader
}

// lookupTableAddress picks the ILT when it is set and inside the file, the IAT
// otherwise.
func (d *importDecoder) lookupTableAddress(desc ImageImportDirectory) int64 {
	if desc.OriginalFirstThunk != 0 {
		offset, ok := d.tr.Offset(int64(desc.OriginalFirstThunk))
		if ok && offset < d.loc.FileSize {
			return int64(desc.OriginalFirstThunk)
		}
	}
	return int64(desc.FirstThunk)
}

// readLookupTables attaches the lookup entries to every import, stopping at
// the first unreadable entry, and drops imports left without entries.
func (d *importDecoder) readLookupTables(imports []*Import, magic Magic) ([]*Import, []error, error) {
	width, err := magic.EntryWidth()
	if err != nil {
		return nil, nil, err
	}
	flag := magic.ordinalFlag()

	var warnings []error
	for i, imp := range imports {
		entries, err := d.readLookupTable(i, d.lookupTableAddress(imp.Descriptor), width, flag)
		imp.Entries = entries
		if err != nil {
			warnings = append(warnings, errors.WithMessagef(err,
				"library %q: skipped %d remaining import directory entries", imp.Name, len(imports)-i-1))
			break
		}
	}

	kept := make([]*Import, 0, len(imports))
	for _, imp := range imports {
		if len(imp.Entries) > 0 {
			kept = append(kept, imp)
		}
	}
	for i, imp := range kept {
		for _, e := range imp.Entries {
			e.entry().Directory = i
		}
	}
	return kept, warnings, nil
}

func (d *importDecoder) readLookupTable(dir int, start, width int64, flag uint64) ([]LookupEntry, error) {
	var entries []LookupEntry
	for rva := start; ; rva += width {
		raw := d.v.Slice(rva, rva+width)
		if len(raw) == 0 {
			return entries, errors.Wrapf(ErrMalformedLookupEntry, "entry at RVA 0x%x", rva)
		}
		if int64(len(raw)) < width {
			return entries, nil
		}
		d.track(rva, width, LocationLookupTable)

		switch e := d.decodeLookupEntry(dir, rva, raw, flag).(type) {
		case *NullEntry:
			return entries, nil
		case *OrdinalEntry, *NameEntry:
			entries = append(entries, e)
		default:
			panic(fmt.Sprintf("pe: unexpected lookup entry %T", e))
		}
	}
}

func (d *importDecoder) decodeLookupEntry(dir int, rva int64, raw []byte, flag uint64) LookupEntry {
	var value uint64
	if len(raw) == 8 {
		value = binary.LittleEndian.Uint64(raw)
	} else {
		value = uint64(binary.LittleEndian.Uint32(raw))
	}

	h := EntryHeader{Directory: dir, RVA: uint32(rva), Width: int64(len(raw)), Raw: value}
	h.Offset, _ = d.tr.Offset(rva)

	switch {
	case value == 0:
		return &NullEntry{EntryHeader: h}
	case value&flag != 0:
		return &OrdinalEntry{EntryHeader: h, Ordinal: uint16(value & ordinalMask)}
	}

	e := &NameEntry{EntryHeader: h, HintNameRVA: uint32(value & addressMask)}
	hintRVA := int64(e.HintNameRVA)
	if hint := d.v.Slice(hintRVA, hintRVA+2); len(hint) == 2 {
		e.Hint = binary.LittleEndian.Uint16(hint)
		d.track(hintRVA, 2, LocationHintNameTable)
		e.Name = d.readName(hintRVA+2, LocationHintNameTable)
	}
	return e
}
