package pe

import (
	"encoding/binary"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

const (
	ImageScnMemExecute = 0x20000000
	ImageScnMemRead    = 0x40000000
	ImageScnMemWrite   = 0x80000000
)

type SectionHeader32 struct {
	Name                 [8]uint8
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

func (sh *SectionHeader32) fullName(st StringTable) (string, error) {
	if sh.Name[0] != '/' {
		return cString(sh.Name[:]), nil
	}
	i, err := strconv.Atoi(cString(sh.Name[1:]))
	if err != nil {
		return "", err
	}
	return st.String(uint32(i))
}

type SectionHeader struct {
	Name            string
	VirtualSize     uint32
	VirtualAddress  uint32
	Size            uint32
	Offset          uint32
	Characteristics uint32
}

type Section struct {
	SectionHeader
}

func (s *Section) Flags() (flags string) {
	if (ImageScnMemRead & s.Characteristics) == ImageScnMemRead {
		flags += "r"
	}
	if (ImageScnMemExecute & s.Characteristics) == ImageScnMemExecute {
		flags += "x"
	}
	if (ImageScnMemWrite & s.Characteristics) == ImageScnMemWrite {
		flags += "w"
	}
	return flags
}

// byVirtualAddress sorts all sections by Virtual Address.
type byVirtualAddress []*Section

func (s byVirtualAddress) Len() int           { return len(s) }
func (s byVirtualAddress) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s byVirtualAddress) Less(i, j int) bool { return s[i].VirtualAddress < s[j].VirtualAddress }

func (f *File) readSections() error {
	optionalHeaderOffset := f.DOSHeader.AddressOfNewEXEHeader + 4 + uint32(binary.Size(f.NtHeader.FileHeader))
	offset := optionalHeaderOffset + uint32(f.NtHeader.FileHeader.SizeOfOptionalHeader)
	if _, err := f.sr.Seek(int64(offset), io.SeekStart); err != nil {
		return err
	}

	f.Sections = make([]*Section, 0, f.FileHeader.NumberOfSections)
	for i := 0; i < int(f.FileHeader.NumberOfSections); i++ {
		sh := new(SectionHeader32)
		if err := binary.Read(f.sr, binary.LittleEndian, sh); err != nil {
			return errors.WithMessagef(err, "fail to read section header %d", i)
		}
		name, err := sh.fullName(f.StringTable)
		if err != nil {
			return err
		}
		f.Sections = append(f.Sections, &Section{SectionHeader{
			Name:            name,
			VirtualSize:     sh.VirtualSize,
			VirtualAddress:  sh.VirtualAddress,
			Size:            sh.SizeOfRawData,
			Offset:          sh.PointerToRawData,
			Characteristics: sh.Characteristics,
		}})
	}
	sort.Sort(byVirtualAddress(f.Sections))
	return nil
}
