package pe

import (
	"fmt"

	"github.com/pkg/errors"
)

// Magic is the optional header magic that tells the image's width class.
type Magic uint16

const (
	MagicROM      Magic = 0x107
	MagicPE32     Magic = 0x10b
	MagicPE32Plus Magic = 0x20b
)

func (m Magic) String() string {
	switch m {
	case MagicROM:
		return "ROM"
	case MagicPE32:
		return "PE32"
	case MagicPE32Plus:
		return "PE32+"
	}
	return fmt.Sprintf("Magic(0x%x)", uint16(m))
}

// EntryWidth returns the size in bytes of one lookup table entry for images
// of this width class.
func (m Magic) EntryWidth() (int64, error) {
	switch m {
	case MagicPE32:
		return 4, nil
	case MagicPE32Plus:
		return 8, nil
	case MagicROM:
		return 0, errors.Wrap(ErrUnsupportedMagic, "ROM images have no import lookup tables")
	}
	return 0, errors.Wrapf(ErrUnsupportedMagic, "optional header has unexpected Magic of 0x%x", uint16(m))
}

func (m Magic) ordinalFlag() uint64 {
	if m == MagicPE32Plus {
		return imageOrdinalFlag64
	}
	return imageOrdinalFlag32
}
