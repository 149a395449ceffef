package pe

import "golang.org/x/exp/slices"

// Purposes of the byte ranges consumed while reading the import directory.
const (
	LocationImportDirectory = "import directory"
	LocationLookupTable     = "lookup table"
	LocationHintNameTable   = "hint/name table"
	LocationLibraryName     = "library name"
	LocationForwarderName   = "forwarder name"
)

// Location is the file range [Offset, Offset+Length) read for Purpose.
type Location struct {
	Offset  int64
	Length  int64
	Purpose string
}

func (l Location) End() int64 {
	return l.Offset + l.Length
}

// mergeLocations orders locs by offset and joins ranges of the same purpose
// that touch or overlap.
func mergeLocations(locs []Location) []Location {
	if len(locs) == 0 {
		return nil
	}
	sorted := make([]Location, len(locs))
	copy(sorted, locs)
	slices.SortStableFunc(sorted, func(a, b Location) bool {
		return a.Offset < b.Offset
	})

	merged := make([]Location, 0, len(sorted))
	for _, l := range sorted {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.Purpose == l.Purpose && l.Offset <= last.End() {
				last.Length = maxOf(last.End(), l.End()) - last.Offset
				continue
			}
		}
		merged = append(merged, l)
	}
	return merged
}
