package gocfb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aligator/gocfb/checkpoint"
	"golang.org/x/text/encoding/unicode"
)

// DirectoryEntry is one node of the container's namespace: either a stream
// (a file) or a storage (a folder). Entries are parsed once while opening
// the container and immutable afterwards.
type DirectoryEntry struct {
	SID         uint32
	Name        string
	Type        EntryType
	LeftSID     uint32
	RightSID    uint32
	ChildSID    uint32
	CLSID       string
	StartSector uint32
	Size        uint64
	Created     time.Time
	Modified    time.Time

	// isMini is true for streams small enough to live in the mini stream.
	isMini bool
}

// loadDirectory reads the whole directory stream, slices it into 128-byte
// records and builds the namespace starting at the root's child.
func (fs *Fs) loadDirectory() error {
	dirData, err := fs.readChainFat(fs.header.FirstDirSector)
	if err != nil {
		return err
	}

	numEntries := len(dirData) / dirEntryLen
	if numEntries == 0 {
		return checkpoint.Wrap(errors.New("directory stream is empty"), ErrCorrupted)
	}
	logger.Debugf("directory stream holds up to %d entries", numEntries)

	fs.dirEntries = make([]*DirectoryEntry, numEntries)

	root, err := fs.parseDirectoryEntry(dirData[:dirEntryLen], 0)
	if err != nil {
		return err
	}
	if root.Type != EntryTypeRoot {
		return checkpoint.Wrap(errors.New("first directory entry is not the root"), ErrCorrupted)
	}
	fs.dirEntries[0] = root
	fs.root = root

	return fs.buildDirectoryTree(root.ChildSID, dirData)
}

// buildDirectoryTree walks the left/right/child pointers starting at the
// root's child and parses every reachable entry exactly once. A visited set
// makes cyclic trees terminate instead of looping forever.
func (fs *Fs) buildDirectoryTree(rootChild uint32, dirData []byte) error {
	if rootChild == noStream {
		return nil
	}

	maxEntries := len(dirData) / dirEntryLen
	visited := make([]bool, maxEntries)
	visited[0] = true

	stack := []uint32{rootChild}
	for len(stack) > 0 {
		sid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if sid == noStream {
			continue
		}
		if int64(sid) >= int64(maxEntries) {
			return checkpoint.Wrap(fmt.Errorf("directory entry %d is out of range (%d entries)", sid, maxEntries), ErrCorrupted)
		}
		if visited[sid] {
			continue
		}
		visited[sid] = true

		offset := int(sid) * dirEntryLen
		entry, err := fs.parseDirectoryEntry(dirData[offset:offset+dirEntryLen], sid)
		if err != nil {
			return err
		}
		fs.dirEntries[sid] = entry

		stack = append(stack, entry.ChildSID, entry.RightSID, entry.LeftSID)
	}

	return nil
}

// parseDirectoryEntry decodes a single 128-byte directory record.
func (fs *Fs) parseDirectoryEntry(data []byte, sid uint32) (*DirectoryEntry, error) {
	var raw rawDirectoryEntry
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		return nil, checkpoint.Wrap(err, ErrInvalidData)
	}

	entryType := EntryType(raw.EntryType)
	switch entryType {
	case EntryTypeUnallocated, EntryTypeStorage, EntryTypeStream, EntryTypeRoot:
	default:
		return nil, checkpoint.Wrap(fmt.Errorf("unhandled directory entry type %d", raw.EntryType), ErrInvalidData)
	}

	if raw.NameLength > 64 {
		return nil, checkpoint.Wrap(fmt.Errorf("directory entry name length %d exceeds 64 bytes", raw.NameLength), ErrInvalidData)
	}
	nameBytes := raw.Name[:]
	if raw.NameLength >= 2 {
		// The length includes the UTF-16 null terminator.
		nameBytes = nameBytes[:raw.NameLength-2]
	} else {
		nameBytes = nil
	}

	size := raw.StreamSize
	if fs.sectorSize == 512 {
		// Version 3 writers often leave garbage in the upper half.
		size &= 0xFFFFFFFF
	}

	entry := &DirectoryEntry{
		SID:         sid,
		Name:        decodeUTF16(nameBytes),
		Type:        entryType,
		LeftSID:     raw.LeftSID,
		RightSID:    raw.RightSID,
		ChildSID:    raw.ChildSID,
		CLSID:       formatCLSID(raw.CLSID),
		StartSector: raw.StartSector,
		Size:        size,
		Created:     filetimeToTime(raw.CreateTime),
		Modified:    filetimeToTime(raw.ModifyTime),
		isMini:      entryType == EntryTypeStream && size < uint64(fs.miniCutoff),
	}

	logger.Debugf("directory entry sid=%d name=%q type=%s start=%d size=%d",
		sid, entry.Name, entry.Type, entry.StartSector, entry.Size)

	return entry, nil
}

// findEntry resolves a path, one component per directory level, by
// case-insensitively searching each level's sibling tree and then descending
// into the match's child. An empty path resolves to the root.
func (fs *Fs) findEntry(path []string) (*DirectoryEntry, error) {
	if fs.root == nil {
		return nil, checkpoint.From(ErrStreamNotFound)
	}
	if len(path) == 0 {
		return fs.root, nil
	}

	current := fs.root.ChildSID
	for i, name := range path {
		entry, err := fs.findSibling(current, name)
		if err != nil {
			return nil, err
		}
		if i == len(path)-1 {
			return entry, nil
		}
		current = entry.ChildSID
	}

	return nil, checkpoint.From(ErrStreamNotFound)
}

// findSibling searches one level's left/right tree for a name.
func (fs *Fs) findSibling(sid uint32, name string) (*DirectoryEntry, error) {
	stack := []uint32{sid}
	// The sibling tree of a well-formed file holds fewer nodes than the
	// directory has entries, so anything beyond that is a cycle.
	steps := 0

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current == noStream || int64(current) >= int64(len(fs.dirEntries)) {
			continue
		}
		entry := fs.dirEntries[current]
		if entry == nil {
			continue
		}

		if steps++; steps > len(fs.dirEntries) {
			return nil, checkpoint.Wrap(errors.New("directory sibling tree does not terminate"), ErrCorrupted)
		}

		if strings.EqualFold(entry.Name, name) {
			return entry, nil
		}

		stack = append(stack, entry.RightSID, entry.LeftSID)
	}

	return nil, checkpoint.From(ErrStreamNotFound)
}

// listChildren collects the direct children of a storage, sorted by name.
func (fs *Fs) listChildren(entry *DirectoryEntry) ([]*DirectoryEntry, error) {
	if entry.Type != EntryTypeStorage && entry.Type != EntryTypeRoot {
		return nil, checkpoint.Wrap(fmt.Errorf("%q is not a storage", entry.Name), ErrInvalidFormat)
	}

	var children []*DirectoryEntry
	seen := make(map[uint32]bool)

	stack := []uint32{entry.ChildSID}
	for len(stack) > 0 {
		sid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if sid == noStream || int64(sid) >= int64(len(fs.dirEntries)) || seen[sid] {
			continue
		}
		seen[sid] = true

		child := fs.dirEntries[sid]
		if child == nil {
			continue
		}

		children = append(children, child)
		stack = append(stack, child.RightSID, child.LeftSID)
	}

	sort.Slice(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})

	return children, nil
}

// ListDirectoryEntries returns the entries directly inside the storage at
// the given path. An empty path lists the root.
func (fs *Fs) ListDirectoryEntries(path ...string) ([]*DirectoryEntry, error) {
	entry, err := fs.findEntry(path)
	if err != nil {
		return nil, err
	}
	return fs.listChildren(entry)
}

// ListStreams returns the paths of all streams in the container, each path
// as its list of storage names ending with the stream name.
func (fs *Fs) ListStreams() [][]string {
	var streams [][]string
	if fs.root == nil {
		return streams
	}

	visited := make(map[uint32]bool)
	fs.collectStreams(fs.root, nil, &streams, visited)
	return streams
}

func (fs *Fs) collectStreams(entry *DirectoryEntry, prefix []string, streams *[][]string, visited map[uint32]bool) {
	if visited[entry.SID] {
		return
	}
	visited[entry.SID] = true

	children, err := fs.listChildren(entry)
	if err != nil {
		return
	}

	for _, child := range children {
		switch child.Type {
		case EntryTypeStream:
			path := make([]string, 0, len(prefix)+1)
			path = append(path, prefix...)
			path = append(path, child.Name)
			*streams = append(*streams, path)
		case EntryTypeStorage:
			childPrefix := make([]string, 0, len(prefix)+1)
			childPrefix = append(childPrefix, prefix...)
			childPrefix = append(childPrefix, child.Name)
			fs.collectStreams(child, childPrefix, streams, visited)
		}
	}
}

// Exists reports whether a stream or storage exists at the given path.
// Like all path lookups it is case-insensitive.
func (fs *Fs) Exists(path ...string) bool {
	_, err := fs.findEntry(path)
	return err == nil
}

// DirectoryExists reports whether the given path exists and is a storage.
func (fs *Fs) DirectoryExists(path ...string) bool {
	entry, err := fs.findEntry(path)
	return err == nil && (entry.Type == EntryTypeStorage || entry.Type == EntryTypeRoot)
}

// RootName returns the name of the root entry, usually "Root Entry".
func (fs *Fs) RootName() string {
	if fs.root == nil {
		return ""
	}
	return fs.root.Name
}

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeUTF16 decodes UTF-16LE bytes up to the first null code unit.
func decodeUTF16(data []byte) string {
	data = data[:len(data)&^1]
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			data = data[:i]
			break
		}
	}
	if len(data) == 0 {
		return ""
	}

	decoded, err := utf16LE.NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// formatCLSID renders a CLSID in its registry form. The first three fields
// are stored little-endian, the rest big-endian. The zero GUID renders as
// an empty string.
func formatCLSID(clsid [16]byte) string {
	if clsid == ([16]byte{}) {
		return ""
	}

	return fmt.Sprintf("%08X-%04X-%04X-%04X-%X",
		binary.LittleEndian.Uint32(clsid[0:4]),
		binary.LittleEndian.Uint16(clsid[4:6]),
		binary.LittleEndian.Uint16(clsid[6:8]),
		binary.BigEndian.Uint16(clsid[8:10]),
		clsid[10:16])
}
