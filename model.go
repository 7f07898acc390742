// File model contains the structs which match the on-disk structures of the
// compound file binary format ([MS-CFB]).

package gocfb

// magic is the 8-byte signature every compound file starts with.
var magic = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

const (
	// headerLen is the fixed size of the file header in bytes.
	headerLen = 512

	// dirEntryLen is the fixed size of a directory entry in bytes.
	dirEntryLen = 128

	// numDifatEntriesInHeader is the number of DIFAT slots embedded
	// directly in the header.
	numDifatEntriesInHeader = 109

	// minimalFileSize is the smallest possible valid compound file:
	// header, one FAT sector and one directory sector of 512 bytes each.
	minimalFileSize = 3 * 512

	// byteOrderMark is the mandatory little-endian marker of the header.
	byteOrderMark uint16 = 0xFFFE

	// defaultMiniStreamCutoff is the stream size below which streams are
	// allocated inside the mini stream.
	defaultMiniStreamCutoff uint32 = 4096
)

// header is the raw 512-byte file header.
type header struct {
	Signature            [8]byte
	CLSID                [16]byte
	MinorVersion         uint16
	MajorVersion         uint16 // must be 3 or 4
	ByteOrder            uint16 // must be 0xFFFE
	SectorShift          uint16 // sector size as a power of two
	MiniSectorShift      uint16 // mini sector size as a power of two
	Reserved             [6]byte
	NumDirSectors        uint32 // unused for version 3 files
	NumFatSectors        uint32
	FirstDirSector       uint32
	TransactionSignature uint32
	MiniStreamCutoff     uint32
	FirstMiniFatSector   uint32
	NumMiniFatSectors    uint32
	FirstDifatSector     uint32
	NumDifatSectors      uint32
	Difat                [numDifatEntriesInHeader]uint32
}

// rawDirectoryEntry is the raw 128-byte directory entry record.
type rawDirectoryEntry struct {
	Name        [64]byte // UTF-16LE, null-padded
	NameLength  uint16   // in bytes, including the null terminator
	EntryType   uint8
	Color       uint8 // red-black tree color, not needed for reading
	LeftSID     uint32
	RightSID    uint32
	ChildSID    uint32
	CLSID       [16]byte
	StateBits   uint32
	CreateTime  uint64 // FILETIME
	ModifyTime  uint64 // FILETIME
	StartSector uint32
	StreamSize  uint64 // only the low 32 bits are valid for version 3 files
}

// fatEntry is a single entry of the FAT, the MiniFAT or the DIFAT.
// Values above maxRegularSector are sentinels.
type fatEntry uint32

const (
	maxRegularSector fatEntry = 0xFFFFFFFA
	difatSector      fatEntry = 0xFFFFFFFC
	fatSector        fatEntry = 0xFFFFFFFD
	endOfChain       fatEntry = 0xFFFFFFFE
	freeSector       fatEntry = 0xFFFFFFFF
)

// Value returns the plain sector number of the entry.
func (e fatEntry) Value() uint32 {
	return uint32(e)
}

// IsRegular reports whether the entry points to an ordinary sector.
func (e fatEntry) IsRegular() bool {
	return e <= maxRegularSector
}

// IsEndOfChain reports whether the entry terminates a sector chain.
func (e fatEntry) IsEndOfChain() bool {
	return e == endOfChain
}

// IsFree reports whether the entry marks an unallocated sector.
func (e fatEntry) IsFree() bool {
	return e == freeSector
}

// noStream marks an absent SID link in a directory entry.
const noStream uint32 = 0xFFFFFFFF

// EntryType describes what kind of object a directory entry represents.
type EntryType uint8

const (
	EntryTypeUnallocated EntryType = 0
	EntryTypeStorage     EntryType = 1
	EntryTypeStream      EntryType = 2
	EntryTypeRoot        EntryType = 5
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeUnallocated:
		return "unallocated"
	case EntryTypeStorage:
		return "storage"
	case EntryTypeStream:
		return "stream"
	case EntryTypeRoot:
		return "root"
	default:
		return "unknown"
	}
}
