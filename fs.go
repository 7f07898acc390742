package gocfb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/aligator/gocfb/checkpoint"
	"github.com/spf13/afero"
)

// These errors describe the ways opening and reading a compound file can fail.
var (
	// ErrNotOleFile means the data does not even look like a compound file.
	// Useful for cheap format sniffing before committing to a full parse.
	ErrNotOleFile = errors.New("not an OLE2 structured storage file")

	// ErrInvalidFormat means a header or field violates the format rules.
	ErrInvalidFormat = errors.New("invalid compound file header")

	// ErrInvalidData means a fixed-size record could not be decoded.
	ErrInvalidData = errors.New("malformed directory entry")

	// ErrCorrupted means a sector chain or tree reference is inconsistent.
	ErrCorrupted = errors.New("corrupted compound file")

	// ErrStreamNotFound means a path did not resolve to an entry.
	ErrStreamNotFound = errors.New("stream or storage not found")
)

// Fs is a single opened compound file. The whole structure (header, FAT,
// MiniFAT, directory) is built once inside New; afterwards the file is only
// touched to read stream content.
//
// An Fs owns its reader exclusively and provides no internal locking. Use one
// Fs per goroutine or synchronize externally.
type Fs struct {
	reader   io.ReadSeeker
	fileSize int64

	header         header
	sectorSize     uint32
	miniSectorSize uint32
	miniCutoff     uint32

	fat     []fatEntry
	miniFat []fatEntry

	root       *DirectoryEntry
	dirEntries []*DirectoryEntry

	// miniStream caches the root entry's stream which backs all
	// mini-allocated streams. It is populated on first use.
	miniStream     []byte
	miniStreamRead bool
}

// IsOleFile reports whether the given data starts like a compound file.
func IsOleFile(data []byte) bool {
	return len(data) >= minimalFileSize && bytes.Equal(data[:8], magic[:])
}

// New opens a compound file from the given reader.
// The reader must stay usable for the whole lifetime of the Fs.
func New(reader io.ReadSeeker) (*Fs, error) {
	return newFs(reader, false)
}

// NewSkipChecks opens a compound file just like New but skips some strict
// header validations. This may allow you to read slightly malformed but
// still decodable files. Use with caution!
func NewSkipChecks(reader io.ReadSeeker) (*Fs, error) {
	return newFs(reader, true)
}

func newFs(reader io.ReadSeeker, skipChecks bool) (*Fs, error) {
	fs := &Fs{
		reader: reader,
	}

	if err := fs.initialize(skipChecks); err != nil {
		return nil, err
	}

	return fs, nil
}

func (fs *Fs) initialize(skipChecks bool) error {
	size, err := fs.reader.Seek(0, io.SeekEnd)
	if err != nil {
		return checkpoint.From(err)
	}
	fs.fileSize = size

	if size < minimalFileSize {
		return checkpoint.From(ErrNotOleFile)
	}

	if _, err := fs.reader.Seek(0, io.SeekStart); err != nil {
		return checkpoint.From(err)
	}
	if err := binary.Read(fs.reader, binary.LittleEndian, &fs.header); err != nil {
		return checkpoint.Wrap(err, ErrNotOleFile)
	}

	if fs.header.Signature != magic {
		return checkpoint.From(ErrNotOleFile)
	}
	if fs.header.ByteOrder != byteOrderMark {
		return checkpoint.Wrap(fmt.Errorf("incorrect byte order mark 0x%04X", fs.header.ByteOrder), ErrInvalidFormat)
	}

	// A shift of 31 or more cannot describe a sector size.
	if fs.header.SectorShift >= 31 || fs.header.MiniSectorShift >= 31 {
		return checkpoint.Wrap(fmt.Errorf("invalid sector shift %d/%d", fs.header.SectorShift, fs.header.MiniSectorShift), ErrInvalidFormat)
	}
	fs.sectorSize = 1 << fs.header.SectorShift
	fs.miniSectorSize = 1 << fs.header.MiniSectorShift
	fs.miniCutoff = fs.header.MiniStreamCutoff

	if !skipChecks {
		if fs.header.MajorVersion != 3 && fs.header.MajorVersion != 4 {
			return checkpoint.Wrap(fmt.Errorf("incorrect major version %d", fs.header.MajorVersion), ErrInvalidFormat)
		}
		if (fs.header.MajorVersion == 3 && fs.sectorSize != 512) ||
			(fs.header.MajorVersion == 4 && fs.sectorSize != 4096) {
			return checkpoint.Wrap(fmt.Errorf("sector size %d does not match major version %d", fs.sectorSize, fs.header.MajorVersion), ErrInvalidFormat)
		}
		if fs.miniSectorSize != 64 {
			return checkpoint.Wrap(fmt.Errorf("incorrect mini sector size %d", fs.miniSectorSize), ErrInvalidFormat)
		}
		if fs.miniCutoff != defaultMiniStreamCutoff {
			return checkpoint.Wrap(fmt.Errorf("incorrect mini stream cutoff %d", fs.miniCutoff), ErrInvalidFormat)
		}
		if fs.sectorSize == 512 && fs.header.NumDirSectors != 0 {
			return checkpoint.Wrap(errors.New("version 3 file declares directory sectors in the header"), ErrInvalidFormat)
		}
	}
	if fs.miniCutoff == 0 {
		fs.miniCutoff = defaultMiniStreamCutoff
	}

	logger.Debugf("header: version=%d sectorSize=%d miniSectorSize=%d cutoff=%d",
		fs.header.MajorVersion, fs.sectorSize, fs.miniSectorSize, fs.miniCutoff)

	if err := fs.loadFat(); err != nil {
		return err
	}
	if err := fs.loadDirectory(); err != nil {
		return err
	}
	if fs.header.NumMiniFatSectors > 0 {
		if err := fs.loadMiniFat(); err != nil {
			return err
		}
	}

	return nil
}

// loadFat builds the flat FAT out of the sectors listed in the header and,
// for files with more than 109 FAT sectors, out of the DIFAT chain.
func (fs *Fs) loadFat() error {
	fatSectors := make([]fatEntry, 0, fs.header.NumFatSectors)
	for _, raw := range fs.header.Difat {
		entry := fatEntry(raw)
		if entry.IsEndOfChain() || entry.IsFree() {
			break
		}
		fatSectors = append(fatSectors, entry)
	}

	if fs.header.NumDifatSectors > 0 {
		logger.Debugf("following the DIFAT chain for %d sectors", fs.header.NumDifatSectors)

		// Each DIFAT sector holds sectorSize/4 - 1 FAT sector numbers plus a
		// trailing pointer to the next DIFAT sector.
		perSector := int(fs.sectorSize/4) - 1
		next := fatEntry(fs.header.FirstDifatSector)

		for i := uint32(0); i < fs.header.NumDifatSectors; i++ {
			if !next.IsRegular() {
				return checkpoint.Wrap(errors.New("unexpected end of the DIFAT chain"), ErrCorrupted)
			}

			sector, err := fs.readSector(next.Value())
			if err != nil {
				return err
			}

			entries := parseFatEntries(sector)
			for _, entry := range entries[:perSector] {
				if entry.IsEndOfChain() || entry.IsFree() {
					break
				}
				fatSectors = append(fatSectors, entry)
			}

			next = entries[perSector]
			if next.IsEndOfChain() || next.IsFree() {
				break
			}
		}
	}

	fs.fat = make([]fatEntry, 0, len(fatSectors)*int(fs.sectorSize/4))
	for _, id := range fatSectors {
		sector, err := fs.readSector(id.Value())
		if err != nil {
			return err
		}
		fs.fat = append(fs.fat, parseFatEntries(sector)...)
	}

	logger.Debugf("FAT references %d sectors", len(fs.fat))
	return nil
}

// loadMiniFat reads the MiniFAT which is itself an ordinary FAT-chained
// stream starting at FirstMiniFatSector.
func (fs *Fs) loadMiniFat() error {
	data, err := fs.readChainFat(fs.header.FirstMiniFatSector)
	if err != nil {
		return err
	}

	fs.miniFat = parseFatEntries(data)
	logger.Debugf("MiniFAT references %d mini sectors", len(fs.miniFat))
	return nil
}

// readSector reads a single sector. Sector n starts at byte (n+1)*sectorSize
// because the header occupies the space before sector 0.
func (fs *Fs) readSector(id uint32) ([]byte, error) {
	offset := (int64(id) + 1) * int64(fs.sectorSize)
	if offset+int64(fs.sectorSize) > fs.fileSize {
		return nil, checkpoint.Wrap(fmt.Errorf("sector %d is beyond the end of the file", id), ErrCorrupted)
	}

	if _, err := fs.reader.Seek(offset, io.SeekStart); err != nil {
		return nil, checkpoint.From(err)
	}

	buffer := make([]byte, fs.sectorSize)
	if _, err := io.ReadFull(fs.reader, buffer); err != nil {
		return nil, checkpoint.From(err)
	}

	return buffer, nil
}

// parseFatEntries reinterprets raw sector bytes as little-endian u32 entries.
func parseFatEntries(data []byte) []fatEntry {
	entries := make([]fatEntry, len(data)/4)
	for i := range entries {
		entries[i] = fatEntry(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return entries
}

// resolvePath resolves a slash separated path to a directory entry.
// An empty path, "." and "/" resolve to the root.
func (fs *Fs) resolvePath(name string) (*DirectoryEntry, error) {
	name = strings.Trim(name, "/")
	if name == "" || name == "." {
		return fs.root, nil
	}
	return fs.findEntry(strings.Split(name, "/"))
}

// Open opens the stream or storage at the given slash separated path as an
// afero.File. Streams are fully materialized on first read.
func (fs *Fs) Open(name string) (afero.File, error) {
	entry, err := fs.resolvePath(name)
	if err != nil {
		return nil, err
	}

	return &File{
		fs:    fs,
		path:  name,
		entry: entry,
		stat:  entryFileInfo{entry: entry},
	}, nil
}

// OpenFile is like Open but rejects any write access: a compound file opened
// through this package is strictly read-only.
func (fs *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, syscall.EPERM
	}
	return fs.Open(name)
}

// Stat returns the FileInfo of the entry at the given path.
func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	entry, err := fs.resolvePath(name)
	if err != nil {
		return nil, err
	}
	return entryFileInfo{entry: entry}, nil
}

func (fs *Fs) Name() string {
	return "gocfb"
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return nil, syscall.EPERM
}

func (fs *Fs) Mkdir(name string, perm os.FileMode) error {
	return syscall.EPERM
}

func (fs *Fs) MkdirAll(path string, perm os.FileMode) error {
	return syscall.EPERM
}

func (fs *Fs) Remove(name string) error {
	return syscall.EPERM
}

func (fs *Fs) RemoveAll(path string) error {
	return syscall.EPERM
}

func (fs *Fs) Rename(oldname, newname string) error {
	return syscall.EPERM
}

func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	return syscall.EPERM
}

func (fs *Fs) Chown(name string, uid, gid int) error {
	return syscall.EPERM
}

func (fs *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return syscall.EPERM
}
