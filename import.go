package pe

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DirectoryLocation tells where the import directory starts and how large the
// file holding it is.
type DirectoryLocation struct {
	VirtualAddress uint32
	FileOffset     uint32
	FileSize       int64
}

// Import is one imported library and the symbols taken from it.
type Import struct {
	// Offset is the file offset of the import directory record.
	Offset        int64
	Name          string
	ForwarderName string
	Entries       []LookupEntry
	Descriptor    ImageImportDirectory
}

// HasForwarder reports whether the record names a forwarder chain.
func (imp *Import) HasForwarder() bool {
	return imp.Descriptor.ForwarderChain != 0
}

// Symbols returns the imported symbol names in table order. Ordinal imports
// are rendered as "#<ordinal>".
func (imp *Import) Symbols() []string {
	names := make([]string, 0, len(imp.Entries))
	for _, e := range imp.Entries {
		switch e := e.(type) {
		case *OrdinalEntry:
			names = append(names, "#"+strconv.Itoa(int(e.Ordinal)))
		case *NameEntry:
			names = append(names, e.Name)
		case *NullEntry:
		}
	}
	return names
}

// ImportSection is the decoded import directory.
type ImportSection struct {
	Imports []*Import
	// Locations are the merged file ranges read while decoding.
	Locations []Location
	// MaxRelativeOffset is the furthest byte read, relative to the directory RVA.
	MaxRelativeOffset int64
	// Warnings lists recoverable problems. A non-empty list means the
	// decode stopped early and Imports is partial.
	Warnings []error
}

// Partial reports whether decoding stopped before the end of the table.
func (s *ImportSection) Partial() bool {
	return len(s.Warnings) > 0
}

// ReadImports decodes the import directory located at loc. Only an
// unsupported magic fails the call; malformed tables yield a partial result
// with warnings.
func ReadImports(v VirtualView, loc DirectoryLocation, magic Magic) (*ImportSection, error) {
	if _, err := magic.EntryWidth(); err != nil {
		return nil, err
	}

	d := newImportDecoder(v, loc)
	imports := d.readDirectoryTable()
	imports, warnings, err := d.readLookupTables(imports, magic)
	if err != nil {
		return nil, err
	}

	return &ImportSection{
		Imports:           imports,
		Locations:         mergeLocations(d.locations),
		MaxRelativeOffset: d.maxRelative,
		Warnings:          warnings,
	}, nil
}

func (s *ImportSection) String() string {
	var b strings.Builder
	b.WriteString("Imports\n-------\n")
	for _, imp := range s.Imports {
		fmt.Fprintf(&b, "\n%s, %d symbols, descriptor at 0x%x\n", imp.Name, len(imp.Entries), imp.Offset)
		if imp.HasForwarder() {
			fmt.Fprintf(&b, "  forwarder: %s\n", imp.ForwarderName)
		}
		for _, e := range imp.Entries {
			switch e := e.(type) {
			case *OrdinalEntry:
				fmt.Fprintf(&b, "  ordinal %d, RVA 0x%x, offset 0x%x\n", e.Ordinal, e.RVA, e.Offset)
			case *NameEntry:
				fmt.Fprintf(&b, "  %s, hint %d, RVA 0x%x, offset 0x%x\n", e.Name, e.Hint, e.RVA, e.Offset)
			case *NullEntry:
			}
		}
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "\nwarning: %v\n", w)
	}
	return b.String()
}

// ImpHash calculates the import hash.
func (s *ImportSection) ImpHash() (string, error) {
	if s == nil || len(s.Imports) == 0 {
		return "", errors.New("no imports found")
	}

	extensions := []string{"ocx", "sys", "dll"}
	var normalizedImports []string

	for _, imp := range s.Imports {
		libName := imp.Name
		parts := strings.Split(imp.Name, ".")
		if len(parts) == 2 && stringInSlice(strings.ToLower(parts[1]), extensions) {
			libName = parts[0]
		}
		libName = strings.ToLower(libName)

		for _, e := range imp.Entries {
			var funcName string
			switch e := e.(type) {
			case *OrdinalEntry:
				funcName = "ord" + strconv.Itoa(int(e.Ordinal))
			case *NameEntry:
				funcName = e.Name
			case *NullEntry:
			}
			if funcName == "" {
				continue
			}
			normalizedImports = append(normalizedImports, libName+"."+strings.ToLower(funcName))
		}
	}
	h := md5.New()
	_, _ = io.WriteString(h, strings.Join(normalizedImports, ","))
	return hex.EncodeToString(h.Sum(nil)), nil
}
