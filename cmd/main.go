package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	binject "github.com/Binject/debug/pe"
	"github.com/fatih/color"
	"github.com/h2non/filetype"
	pefile "github.com/wanglei-coder/peimports"
)

var (
	filename string
	asJSON   bool
	verify   bool
	noColor  bool
)

func init() {
	flag.StringVar(&filename, "filename", "", "Please enter the file path")
	flag.BoolVar(&asJSON, "json", false, "Print the import table as JSON")
	flag.BoolVar(&verify, "verify", false, "Compare named imports with a reference parser")
	flag.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flag.Parse()
}

type Info struct {
	MachineType uint16
	Magic       string
	Is64        bool
	Section     *Section `json:",omitempty"`
	ImpHash     string
	Imports     []*Import
	Locations   []pefile.Location
	Warnings    []string
}

type Section struct {
	Name           string
	Flags          string
	VirtualAddress uint32
	RawSize        uint32
}

// importSection returns the section that holds the import directory.
func importSection(f *pefile.File) *Section {
	dd, ok := f.DataDirectory(pefile.ImageDirectoryEntryImport)
	if !ok || dd.VirtualAddress == 0 {
		return nil
	}
	s := f.SectionAt(dd.VirtualAddress)
	if s == nil {
		return nil
	}
	return &Section{Name: s.Name, Flags: s.Flags(), VirtualAddress: s.VirtualAddress, RawSize: s.Size}
}

func bitness(f *pefile.File) string {
	switch {
	case f.Is64:
		return "64-bit"
	case f.Is32:
		return "32-bit"
	}
	return "no optional header"
}

type Import struct {
	Name      string
	Forwarder string `json:",omitempty"`
	Offset    int64
	Symbols   []*Symbol
}

type Symbol struct {
	Name    string `json:",omitempty"`
	Hint    uint16 `json:",omitempty"`
	Ordinal uint16 `json:",omitempty"`
	RVA     uint32
	Offset  int64
}

func getImports(s *pefile.ImportSection) []*Import {
	imports := make([]*Import, 0, len(s.Imports))
	for _, imp := range s.Imports {
		i := &Import{Name: imp.Name, Forwarder: imp.ForwarderName, Offset: imp.Offset}
		for _, e := range imp.Entries {
			h := e.Header()
			sym := &Symbol{RVA: h.RVA, Offset: h.Offset}
			switch e := e.(type) {
			case *pefile.OrdinalEntry:
				sym.Ordinal = e.Ordinal
			case *pefile.NameEntry:
				sym.Name, sym.Hint = e.Name, e.Hint
			case *pefile.NullEntry:
				continue
			}
			i.Symbols = append(i.Symbols, sym)
		}
		imports = append(imports, i)
	}
	return imports
}

func printSummary(f *pefile.File) {
	title := color.New(color.FgCyan, color.Bold)
	lib := color.New(color.FgYellow, color.Bold)
	gray := color.New(color.FgHiBlack)

	title.Printf("%s (%s, %s)\n", filename, f.ImageMagic(), bitness(f))
	if s := importSection(f); s != nil {
		gray.Printf("  import directory in %s [%s] at 0x%X\n", s.Name, s.Flags, s.VirtualAddress)
	}
	if f.Imports == nil {
		gray.Println("  no import directory")
		return
	}
	for _, imp := range f.Imports.Imports {
		lib.Printf("\n%s", imp.Name)
		gray.Printf("  descriptor at 0x%X, %d symbols\n", imp.Offset, len(imp.Entries))
		if imp.HasForwarder() {
			fmt.Printf("  forwarder: %s\n", imp.ForwarderName)
		}
		for _, e := range imp.Entries {
			switch e := e.(type) {
			case *pefile.OrdinalEntry:
				fmt.Printf("  %-40s ", fmt.Sprintf("#%d", e.Ordinal))
			case *pefile.NameEntry:
				fmt.Printf("  %-40s ", e.Name)
				gray.Printf("hint %-5d ", e.Hint)
			case *pefile.NullEntry:
				continue
			}
			gray.Printf("RVA 0x%08X\n", e.Header().RVA)
		}
	}
	if hash, err := f.ImpHash(); err == nil {
		fmt.Printf("\nimphash: %s\n", hash)
	}
}

// verifyImports compares the named imports with those Binject/debug/pe finds.
func verifyImports(f *pefile.File) error {
	ref, err := binject.Open(filename)
	if err != nil {
		return err
	}
	defer ref.Close()

	want, err := ref.ImportedSymbols()
	if err != nil {
		return err
	}

	got := make(map[string]bool)
	if f.Imports != nil {
		for _, imp := range f.Imports.Imports {
			for _, e := range imp.Entries {
				if n, ok := e.(*pefile.NameEntry); ok {
					got[n.Name+":"+imp.Name] = true
				}
			}
		}
	}

	var missing []string
	for _, sym := range want {
		if !got[sym] {
			missing = append(missing, sym)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%d symbols not decoded: %s", len(missing), strings.Join(missing, ", "))
	}
	log.Printf("verified %d named imports", len(want))
	return nil
}

func main() {
	if filename == "" {
		flag.Usage()
		os.Exit(2)
	}
	color.NoColor = color.NoColor || noColor

	head := make([]byte, 262)
	if fd, err := os.Open(filename); err != nil {
		log.Fatal(err)
	} else {
		n, _ := fd.Read(head)
		_ = fd.Close()
		head = head[:n]
	}
	if kind, _ := filetype.Match(head); kind != filetype.Unknown && kind.Extension != "exe" {
		log.Fatalf("%s is %s, not a PE image", filename, kind.MIME.Value)
	}

	f, err := pefile.NewFile(filename)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	if f.Imports != nil {
		for _, w := range f.Imports.Warnings {
			log.Printf("warning: %v", w)
		}
	}

	if verify {
		if err := verifyImports(f); err != nil {
			log.Printf("verify: %v", err)
		}
	}

	if !asJSON {
		printSummary(f)
		return
	}

	info := Info{
		MachineType: f.FileHeader.Machine,
		Magic:       f.ImageMagic().String(),
		Is64:        f.Is64,
		Section:     importSection(f),
	}
	if f.Imports != nil {
		info.ImpHash, _ = f.ImpHash()
		info.Imports = getImports(f.Imports)
		info.Locations = f.Imports.Locations
		for _, w := range f.Imports.Warnings {
			info.Warnings = append(info.Warnings, w.Error())
		}
	}

	data, _ := json.MarshalIndent(&info, "", "    ")
	fmt.Printf("%s\n", data)
}
