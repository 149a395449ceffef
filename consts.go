package pe

// MinFileSize On Windows XP (x32) the smallest PE executable is 97 bytes.
const MinFileSize = 97

const (
	ImageDOSSignature   = 0x5A4D // MZ
	ImageDOSZMSignature = 0x4D5A // ZM
)

const ImageNTHeaderSignature = 0x00004550

// IMAGE_DIRECTORY_ENTRY constants
const (
	ImageDirectoryEntryExport        = 0
	ImageDirectoryEntryImport        = 1
	ImageDirectoryEntryResource      = 2
	ImageDirectoryEntryException     = 3
	ImageDirectoryEntrySecurity      = 4
	ImageDirectoryEntryBaseReLoc     = 5
	ImageDirectoryEntryDebug         = 6
	ImageDirectoryEntryArchitecture  = 7
	ImageDirectoryEntryGlobalPtr     = 8
	ImageDirectoryEntryTls           = 9
	ImageDirectoryEntryLoadConfig    = 10
	ImageDirectoryEntryBoundImport   = 11
	ImageDirectoryEntryIat           = 12
	ImageDirectoryEntryDelayImport   = 13
	ImageDirectoryEntryComDescriptor = 14
)

const FileAlignmentHardcodedValue = 0x200

const (
	// importDirectorySize is the size of one IMAGE_IMPORT_DESCRIPTOR record.
	importDirectorySize = 20

	imageOrdinalFlag32 = uint64(0x80000000)
	imageOrdinalFlag64 = uint64(0x8000000000000000)
	addressMask        = uint64(0x7fffffff)
	ordinalMask        = uint64(0xffff)

	// maxNameLength caps library, forwarder and import names. Longer runs
	// without a NUL are cut there.
	maxNameLength = 0x200
)

var (
	DOSHeaderSize  = 64
	FileHeaderSize = 20
)
