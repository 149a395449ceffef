package pe

import (
	"bytes"
	"io"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

type File struct {
	DOSHeader
	NtHeader
	Sections    []*Section
	StringTable StringTable
	Imports     *ImportSection

	Is64 bool
	Is32 bool
	size uint32
	data []byte
	mm   mmap.MMap
	sr   *io.SectionReader
}

// NewFile maps filename read-only and parses it.
func NewFile(filename string) (*File, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	stat, err := fd.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() < MinFileSize {
		return nil, ErrInvalidPESize
	}

	m, err := mmap.Map(fd, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to map %s", filename)
	}

	file, err := newFile(m)
	if err != nil {
		_ = m.Unmap()
		return nil, err
	}
	file.mm = m
	return file, nil
}

// NewBytes parses an image already held in memory. data must not be modified
// while the File is in use.
func NewBytes(data []byte) (*File, error) {
	if len(data) < MinFileSize {
		return nil, ErrInvalidPESize
	}
	return newFile(data)
}

func newFile(data []byte) (*File, error) {
	if int64(len(data)) > math.MaxUint32 {
		return nil, errors.Errorf("file of %d bytes is too large for a PE image", len(data))
	}

	file := &File{
		size: uint32(len(data)),
		data: data,
		sr:   io.NewSectionReader(bytes.NewReader(data), 0, int64(len(data))),
	}

	if err := file.readDOSHeader(); err != nil {
		return nil, err
	}

	if err := file.readNTHeader(); err != nil {
		return nil, err
	}

	if err := file.readStringTable(); err != nil {
		return nil, err
	}

	if err := file.readSections(); err != nil {
		return nil, err
	}

	if err := file.readImportDirectory(); err != nil {
		return nil, err
	}
	return file, nil
}

func (f *File) Close() error {
	if f.mm != nil {
		err := f.mm.Unmap()
		f.mm = nil
		return err
	}
	return nil
}

func (f *File) GetSize() uint32 {
	return f.size
}

// View returns the image as a VirtualView keyed by RVA.
func (f *File) View() VirtualView {
	return imageView{f: f}
}

// SectionAt returns the section that maps rva, or nil.
func (f *File) SectionAt(rva uint32) *Section {
	return f.getSectionByRva(rva)
}

func (f *File) Section(name string) *Section {
	for _, s := range f.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ImpHash calculates the import hash.
func (f *File) ImpHash() (string, error) {
	return f.Imports.ImpHash()
}

func (f *File) readImportDirectory() error {
	if f.OptionalHeader == nil {
		return nil
	}

	idd, ok := f.DataDirectory(ImageDirectoryEntryImport)
	if !ok || idd.VirtualAddress == 0 {
		return nil
	}

	offset := f.getOffsetFromRva(idd.VirtualAddress)
	if offset == ^uint32(0) {
		return nil
	}

	loc := DirectoryLocation{
		VirtualAddress: idd.VirtualAddress,
		FileOffset:     offset,
		FileSize:       int64(f.size),
	}
	imports, err := ReadImports(f.View(), loc, f.ImageMagic())
	if err != nil {
		return errors.WithMessage(err, "fail to read import directory")
	}
	f.Imports = imports
	return nil
}

// SectionContains reports whether rva falls inside section once the
// alignment adjustments the loader applies are taken into account.
func (f *File) SectionContains(rva uint32, section *Section) bool {
	var size uint32
	adjustedPointer := f.adjustFileAlignment(section.Offset)
	if adjustedPointer > f.size || f.size-adjustedPointer < section.Size {
		size = section.VirtualSize
	} else {
		size = maxOf(section.Size, section.VirtualSize)
	}
	vaAdj := f.adjustSectionAlignment(section.VirtualAddress)

	// A section never extends past the start of the next one.
	if next := f.nextSectionAddr(section); next != 0 && next > section.VirtualAddress &&
		uint64(vaAdj)+uint64(size) > uint64(next) {
		size = next - vaAdj
	}

	return vaAdj <= rva && uint64(rva) < uint64(vaAdj)+uint64(size)
}

// nextSectionAddr returns the VirtualAddress of the section following
// section, or 0 when it is the last one.
func (f *File) nextSectionAddr(section *Section) uint32 {
	for i, s := range f.Sections {
		if s == section && i+1 < len(f.Sections) {
			return f.Sections[i+1].VirtualAddress
		}
	}
	return 0
}

func (f *File) adjustSectionAlignment(va uint32) uint32 {
	fileAlignment, sectionAlignment := f.alignments()

	if sectionAlignment < 0x1000 {
		sectionAlignment = fileAlignment
	}

	if sectionAlignment != 0 && va%sectionAlignment != 0 {
		return sectionAlignment * (va / sectionAlignment)
	}
	return va
}

func (f *File) adjustFileAlignment(va uint32) uint32 {
	fileAlignment, _ := f.alignments()

	if fileAlignment < uint32(FileAlignmentHardcodedValue) {
		return va
	}
	return (va / 0x200) * 0x200
}

func (f *File) getOffsetFromRva(rva uint32) uint32 {
	section := f.getSectionByRva(rva)
	if section == nil {
		if rva < f.size {
			return rva
		}
		return ^uint32(0)
	}
	sectionAlignment := f.adjustSectionAlignment(section.VirtualAddress)
	fileAlignment := f.adjustFileAlignment(section.Offset)
	return rva - sectionAlignment + fileAlignment
}

func (f *File) getSectionByRva(rva uint32) *Section {
	for _, section := range f.Sections {
		if f.SectionContains(rva, section) {
			return section
		}
	}
	return nil
}
