package pe

import "encoding/binary"

// ImageImportDirectory is one IMAGE_IMPORT_DESCRIPTOR record.
type ImageImportDirectory struct {
	OriginalFirstThunk uint32 // lookup table RVA
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32 // address table RVA
}

func (d ImageImportDirectory) isSentinel() bool {
	return d.OriginalFirstThunk == 0 && d.FirstThunk == 0
}

// importDecoder holds the state of one ReadImports call.
type importDecoder struct {
	v   VirtualView
	loc DirectoryLocation
	tr  AddressTranslator

	locations   []Location
	maxRelative int64
}

func newImportDecoder(v VirtualView, loc DirectoryLocation) *importDecoder {
	return &importDecoder{
		v:   v,
		loc: loc,
		tr:  AddressTranslator{VirtualAddress: loc.VirtualAddress, FileOffset: loc.FileOffset},
	}
}

// track records that n bytes were consumed at rva.
func (d *importDecoder) track(rva, n int64, purpose string) {
	if n <= 0 {
		return
	}
	d.maxRelative = maxOf(d.maxRelative, d.tr.Relative(rva)+n)
	if offset, ok := d.tr.Offset(rva); ok {
		d.locations = append(d.locations, Location{Offset: offset, Length: n, Purpose: purpose})
	}
}

func (d *importDecoder) readName(rva int64, purpose string) string {
	s, n := readASCIIZ(d.v, rva)
	d.track(rva, n, purpose)
	return s
}

// readDirectoryTable walks the import directory records until the all-zero
// sentinel or until less than one record is left in the view.
func (d *importDecoder) readDirectoryTable() []*Import {
	var imports []*Import
	for rva := int64(d.loc.VirtualAddress); ; rva += importDirectorySize {
		rec := d.v.Slice(rva, rva+importDirectorySize)
		if len(rec) < importDirectorySize {
			break
		}
		d.track(rva, importDirectorySize, LocationImportDirectory)

		desc := ImageImportDirectory{
			OriginalFirstThunk: binary.LittleEndian.Uint32(rec[0:4]),
			TimeDateStamp:      binary.LittleEndian.Uint32(rec[4:8]),
			ForwarderChain:     binary.LittleEndian.Uint32(rec[8:12]),
			Name:               binary.LittleEndian.Uint32(rec[12:16]),
			FirstThunk:         binary.LittleEndian.Uint32(rec[16:20]),
		}
		if desc.isSentinel() {
			break
		}

		imp := &Import{Descriptor: desc}
		imp.Offset, _ = d.tr.Offset(rva)
		imp.Name = d.readName(int64(desc.Name), LocationLibraryName)
		if desc.ForwarderChain != 0 {
			imp.ForwarderName = d.readName(int64(desc.ForwarderChain), LocationForwarderName)
		}
		imports = append(imports, imp)
	}
	return imports
}
