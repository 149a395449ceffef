package pe

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

const (
	testNtOffset      = 0x40
	testSectionRVA    = 0x2000
	testSectionOffset = 0x200
	testFileSize      = 0x400
)

// buildPE returns a minimal image with one .idata section holding an import
// directory for KERNEL32.dll: an ordinal import #5 and CreateFileW.
func buildPE(t *testing.T, magic Magic) []byte {
	t.Helper()

	var oh any
	switch magic {
	case MagicPE32Plus:
		oh64 := OptionalHeader64{
			Magic:               uint16(magic),
			ImageBase:           0x140000000,
			SectionAlignment:    0x1000,
			FileAlignment:       0x200,
			SizeOfImage:         0x3000,
			SizeOfHeaders:       0x200,
			NumberOfRvaAndSizes: 16,
		}
		oh64.DataDirectory[ImageDirectoryEntryImport] = DataDirectory{VirtualAddress: testSectionRVA, Size: 40}
		oh = &oh64
	default:
		oh32 := OptionalHeader32{
			Magic:               uint16(magic),
			ImageBase:           0x400000,
			SectionAlignment:    0x1000,
			FileAlignment:       0x200,
			SizeOfImage:         0x3000,
			SizeOfHeaders:       0x200,
			NumberOfRvaAndSizes: 16,
		}
		oh32.DataDirectory[ImageDirectoryEntryImport] = DataDirectory{VirtualAddress: testSectionRVA, Size: 40}
		oh = &oh32
	}

	var hdr bytes.Buffer
	write := func(v any) {
		if err := binary.Write(&hdr, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	write(uint32(ImageNTHeaderSignature))
	write(FileHeader{
		Machine:              0x14c,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(oh)),
		Characteristics:      0x102,
	})
	write(oh)
	sh := SectionHeader32{
		VirtualSize:      0x1000,
		VirtualAddress:   testSectionRVA,
		SizeOfRawData:    0x200,
		PointerToRawData: testSectionOffset,
		Characteristics:  ImageScnMemRead | ImageScnMemWrite,
	}
	copy(sh.Name[:], ".idata")
	write(sh)

	im := newImage(testFileSize).u16(0, ImageDOSSignature).u32(0x3c, testNtOffset)
	copy(im[testNtOffset:], hdr.Bytes())

	// Section contents, addressed by file offset.
	width, _ := magic.EntryWidth()
	at := func(rva int) int { return rva - testSectionRVA + testSectionOffset }
	table := []uint64{magic.ordinalFlag() | 5, 0x20A0, 0}
	im.descriptor(at(0x2000), 0x2040, 0, 0x2080, 0x2060).
		entries(at(0x2040), int(width), table...).
		entries(at(0x2060), int(width), table...).
		str(at(0x2080), "KERNEL32.dll").
		hintName(at(0x20A0), 7, "CreateFileW")
	return im
}

func TestNewBytes(t *testing.T) {
	tests := []struct {
		name      string
		magic     Magic
		wantWidth int64
	}{
		{name: "pe32", magic: MagicPE32, wantWidth: 4},
		{name: "pe32+", magic: MagicPE32Plus, wantWidth: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewBytes(buildPE(t, tt.magic))
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			if got := f.ImageMagic(); got != tt.magic {
				t.Errorf("ImageMagic() = %v, want %v", got, tt.magic)
			}
			if f.Section(".idata") == nil {
				t.Fatal("Section(.idata) = nil")
			}
			if f.Imports == nil || len(f.Imports.Imports) != 1 {
				t.Fatalf("Imports = %v, want one library", f.Imports)
			}
			imp := f.Imports.Imports[0]
			if imp.Name != "KERNEL32.dll" {
				t.Errorf("Name = %q, want KERNEL32.dll", imp.Name)
			}
			if got, want := imp.Symbols(), []string{"#5", "CreateFileW"}; !slices.Equal(got, want) {
				t.Errorf("Symbols() = %v, want %v", got, want)
			}
			if imp.Offset != testSectionOffset {
				t.Errorf("Offset = 0x%x, want 0x%x", imp.Offset, testSectionOffset)
			}
			h := imp.Entries[1].Header()
			if want := int64(0x240) + tt.wantWidth; h.Offset != want || h.Width != tt.wantWidth {
				t.Errorf("Entries[1] offset, width = 0x%x, %d, want 0x%x, %d", h.Offset, h.Width, want, tt.wantWidth)
			}
			if _, err := f.ImpHash(); err != nil {
				t.Errorf("ImpHash() error = %v", err)
			}
		})
	}
}

func TestNewBytes_Errors(t *testing.T) {
	rom := buildPE(t, MagicPE32)
	binary.LittleEndian.PutUint16(rom[testNtOffset+4+FileHeaderSize:], uint16(MagicROM))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "tiny", data: make([]byte, MinFileSize-1), want: ErrInvalidPESize},
		{name: "rom", data: rom, want: ErrUnsupportedMagic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBytes(tt.data)
			if errors.Cause(err) != tt.want {
				t.Errorf("NewBytes() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "kernel32_user.exe")
	if err := os.WriteFile(name, buildPE(t, MagicPE32), 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := NewFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if f.GetSize() != testFileSize {
		t.Errorf("GetSize() = %d, want %d", f.GetSize(), testFileSize)
	}
	if f.Imports == nil || len(f.Imports.Imports) != 1 {
		t.Errorf("Imports = %v, want one library", f.Imports)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestImageView_Slice(t *testing.T) {
	f, err := NewBytes(buildPE(t, MagicPE32))
	if err != nil {
		t.Fatal(err)
	}
	v := f.View()

	if got := string(v.Slice(0x2080, 0x2080+12)); got != "KERNEL32.dll" {
		t.Errorf("Slice(.idata name) = %q, want KERNEL32.dll", got)
	}
	if got := v.Slice(0x2000+0x1ff, 0x2000+0x210); len(got) != 1 {
		t.Errorf("len(Slice(end of file)) = %d, want 1", len(got))
	}
	if got := v.Slice(0x5000, 0x5004); got != nil {
		t.Errorf("Slice(unmapped) = %v, want nil", got)
	}
	if got := v.Len(); got != 0x3000 {
		t.Errorf("Len() = 0x%x, want 0x3000", got)
	}
}

func TestFile_SectionAt(t *testing.T) {
	tests := []struct {
		name   string
		magic  Magic
		want64 bool
	}{
		{name: "pe32", magic: MagicPE32},
		{name: "pe32+", magic: MagicPE32Plus, want64: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewBytes(buildPE(t, tt.magic))
			if err != nil {
				t.Fatal(err)
			}
			if f.Is64 != tt.want64 || f.Is32 == tt.want64 {
				t.Errorf("Is64, Is32 = %v, %v, want %v, %v", f.Is64, f.Is32, tt.want64, !tt.want64)
			}
			s := f.SectionAt(0x2040)
			if s == nil || s.Name != ".idata" {
				t.Fatalf("SectionAt(0x2040) = %v, want .idata", s)
			}
			if got := s.Flags(); got != "rw" {
				t.Errorf("Flags() = %q, want %q", got, "rw")
			}
			if s := f.SectionAt(0x100); s != nil {
				t.Errorf("SectionAt(header) = %v, want nil", s)
			}
		})
	}
}

func TestNewBytes_DOSHeader(t *testing.T) {
	badMagic := buildPE(t, MagicPE32)
	badMagic[0] = 'X'
	farLfanew := buildPE(t, MagicPE32)
	binary.LittleEndian.PutUint32(farLfanew[0x3c:], testFileSize-8)
	tinyLfanew := buildPE(t, MagicPE32)
	binary.LittleEndian.PutUint32(tinyLfanew[0x3c:], 2)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "bad magic", data: badMagic},
		{name: "e_lfanew leaves no room for headers", data: farLfanew},
		{name: "e_lfanew too small", data: tinyLfanew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBytes(tt.data); err == nil {
				t.Error("NewBytes() error = nil, want error")
			}
		})
	}
}
