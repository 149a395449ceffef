package pe

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

type NtHeader struct {
	Signature      uint32
	FileHeader     FileHeader
	OptionalHeader any // of type *OptionalHeader32 or *OptionalHeader64
}

type FileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

type OptionalHeader32 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [16]DataDirectory
}

type OptionalHeader64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [16]DataDirectory
}

func (f *File) readNTHeader() (err error) {
	if _, err := f.sr.Seek(int64(f.DOSHeader.AddressOfNewEXEHeader), io.SeekStart); err != nil {
		return err
	}

	if err := binary.Read(f.sr, binary.LittleEndian, &f.Signature); err != nil {
		return errors.WithMessage(err, "fail to read PE signature")
	}

	if f.Signature != ImageNTHeaderSignature {
		return errors.New("not a valid PE signature. Magic not found")
	}

	if err := binary.Read(f.sr, binary.LittleEndian, &f.FileHeader); err != nil {
		return errors.WithMessage(err, "fail to read file header")
	}

	f.OptionalHeader, err = f.readOptionalHeader(f.sr)
	return err
}

func (f *File) readOptionalHeader(r io.ReadSeeker) (any, error) {
	if f.FileHeader.SizeOfOptionalHeader == 0 {
		return nil, nil
	}

	var magic uint16
	if f.FileHeader.SizeOfOptionalHeader < uint16(binary.Size(magic)) {
		return nil, errors.New("optional header size is less than optional header magic size")
	}
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, errors.WithMessage(err, "failure to read optional header magic")
	}

	switch Magic(magic) {
	case MagicPE32:
		var oh32 OptionalHeader32
		// There can be 0 or more data directories, so the fixed part is
		// everything before DataDirectory.
		minSz := binary.Size(oh32) - binary.Size(oh32.DataDirectory)
		if err := f.readOptionalHeaderFields(r, &oh32, magic, minSz); err != nil {
			return nil, err
		}
		if oh32.ImageBase%0x10000 != 0 {
			return nil, errors.New("corrupt PE file. Image base not aligned to 64 K")
		}
		dd, err := readDataDirectories(r, f.FileHeader.SizeOfOptionalHeader-uint16(minSz), oh32.NumberOfRvaAndSizes)
		if err != nil {
			return nil, err
		}
		copy(oh32.DataDirectory[:], dd)
		f.Is32 = true
		return &oh32, nil
	case MagicPE32Plus:
		var oh64 OptionalHeader64
		minSz := binary.Size(oh64) - binary.Size(oh64.DataDirectory)
		if err := f.readOptionalHeaderFields(r, &oh64, magic, minSz); err != nil {
			return nil, err
		}
		if oh64.ImageBase%0x10000 != 0 {
			return nil, errors.New("corrupt PE file. Image base not aligned to 64 K")
		}
		dd, err := readDataDirectories(r, f.FileHeader.SizeOfOptionalHeader-uint16(minSz), oh64.NumberOfRvaAndSizes)
		if err != nil {
			return nil, err
		}
		copy(oh64.DataDirectory[:], dd)
		f.Is64 = true
		return &oh64, nil
	default:
		_, err := Magic(magic).EntryWidth()
		return nil, err
	}
}

// readOptionalHeaderFields fills the fixed part of oh, which must be an
// *OptionalHeader32 or *OptionalHeader64, from r positioned right after the
// magic. DataDirectory is left zeroed.
func (f *File) readOptionalHeaderFields(r io.Reader, oh any, magic uint16, minSz int) error {
	if int(f.FileHeader.SizeOfOptionalHeader) < minSz {
		return errors.Errorf("optional header size(%d) is less minimum size (%d) of %s optional header",
			f.FileHeader.SizeOfOptionalHeader, minSz, Magic(magic))
	}

	buf := make([]byte, binary.Size(oh))
	binary.LittleEndian.PutUint16(buf, magic)
	if _, err := io.ReadFull(r, buf[2:minSz]); err != nil {
		return errors.Wrapf(err, "failure to read %s optional header", Magic(magic))
	}
	return binary.Read(bytes.NewReader(buf), binary.LittleEndian, oh)
}

func readDataDirectories(r io.ReadSeeker, sz uint16, n uint32) ([]DataDirectory, error) {
	ddSz := binary.Size(DataDirectory{})
	if uint32(sz) != n*uint32(ddSz) {
		return nil, errors.Errorf("size of data directories("+
			"%d) is inconsistent with number of data directories(%d)", sz, n)
	}
	if n > 16 {
		return nil, errors.Errorf("too many data directories(%d)", n)
	}

	dd := make([]DataDirectory, n)
	if err := binary.Read(r, binary.LittleEndian, dd); err != nil {
		return nil, errors.WithMessage(err, "failure to read data directories")
	}

	return dd, nil
}

// ImageMagic returns the optional header magic, or 0 when there is no optional
// header.
func (nt *NtHeader) ImageMagic() Magic {
	switch oh := nt.OptionalHeader.(type) {
	case *OptionalHeader32:
		return Magic(oh.Magic)
	case *OptionalHeader64:
		return Magic(oh.Magic)
	}
	return 0
}

// DataDirectory returns the i-th data directory when the optional header
// declares it.
func (nt *NtHeader) DataDirectory(i int) (DataDirectory, bool) {
	var (
		n   uint32
		dds [16]DataDirectory
	)
	switch oh := nt.OptionalHeader.(type) {
	case *OptionalHeader32:
		n, dds = oh.NumberOfRvaAndSizes, oh.DataDirectory
	case *OptionalHeader64:
		n, dds = oh.NumberOfRvaAndSizes, oh.DataDirectory
	default:
		return DataDirectory{}, false
	}
	if i < 0 || i >= len(dds) || uint32(i) >= n {
		return DataDirectory{}, false
	}
	return dds[i], true
}

func (nt *NtHeader) alignments() (fileAlignment, sectionAlignment uint32) {
	switch oh := nt.OptionalHeader.(type) {
	case *OptionalHeader32:
		return oh.FileAlignment, oh.SectionAlignment
	case *OptionalHeader64:
		return oh.FileAlignment, oh.SectionAlignment
	}
	return 0, 0
}

func (nt *NtHeader) sizeOfImage() uint32 {
	switch oh := nt.OptionalHeader.(type) {
	case *OptionalHeader32:
		return oh.SizeOfImage
	case *OptionalHeader64:
		return oh.SizeOfImage
	}
	return 0
}
