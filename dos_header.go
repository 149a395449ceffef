package pe

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

type DOSHeader struct {
	Magic                    uint16
	BytesOnLastPageOfFile    uint16
	PagesInFile              uint16
	Relocations              uint16
	SizeOfHeader             uint16
	MinExtraParagraphsNeeded uint16
	MaxExtraParagraphsNeeded uint16
	InitialSS                uint16
	InitialSP                uint16
	Checksum                 uint16
	InitialIP                uint16
	InitialCS                uint16
	AddressOfRelocationTable uint16
	OverlayNumber            uint16
	ReservedWords1           [4]uint16
	OEMIdentifier            uint16
	OEMInformation           uint16
	ReservedWords2           [10]uint16
	AddressOfNewEXEHeader    uint32
}

// readDOSHeader decodes the MZ header through the image view, where header
// RVAs equal file offsets, and checks that e_lfanew leaves room for the PE
// signature and file header.
func (f *File) readDOSHeader() error {
	raw := f.View().Slice(0, int64(DOSHeaderSize))
	if len(raw) < DOSHeaderSize {
		return errors.Wrap(ErrInvalidPESize, "DOS header is truncated")
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &f.DOSHeader); err != nil {
		return errors.WithMessage(err, "fail to read DOS header")
	}

	switch f.DOSHeader.Magic {
	case ImageDOSSignature, ImageDOSZMSignature:
	default:
		return errors.Errorf("invalid PE file signature 0x%04x", f.DOSHeader.Magic)
	}

	ntEnd := int64(f.DOSHeader.AddressOfNewEXEHeader) + 4 + int64(FileHeaderSize)
	if f.DOSHeader.AddressOfNewEXEHeader < 4 || ntEnd > int64(f.size) {
		return errors.Errorf("invalid e_lfanew value 0x%x. Probably not a PE file", f.DOSHeader.AddressOfNewEXEHeader)
	}
	return nil
}
