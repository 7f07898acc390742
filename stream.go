package gocfb

import (
	"errors"
	"fmt"

	"github.com/aligator/gocfb/checkpoint"
)

// readChainFat reads a whole FAT-allocated chain into memory, sector by
// sector, starting at the given sector id. A chain that starts at the
// end-of-chain sentinel is empty. The walk is bounded by the FAT length so
// a cyclic chain fails instead of allocating forever.
func (fs *Fs) readChainFat(start uint32) ([]byte, error) {
	current := fatEntry(start)
	if current.IsEndOfChain() {
		return nil, nil
	}

	var data []byte
	count := 0

	for !current.IsEndOfChain() {
		if !current.IsRegular() || int64(current.Value()) >= int64(len(fs.fat)) {
			return nil, checkpoint.Wrap(fmt.Errorf("chain references sector %d outside the allocation table (%d entries)", current.Value(), len(fs.fat)), ErrCorrupted)
		}
		if count++; count > len(fs.fat) {
			return nil, checkpoint.Wrap(errors.New("sector chain does not terminate"), ErrCorrupted)
		}

		sector, err := fs.readSector(current.Value())
		if err != nil {
			return nil, err
		}
		data = append(data, sector...)

		current = fs.fat[current.Value()]
	}

	return data, nil
}

// loadMiniStream reads and caches the root entry's stream, which backs all
// mini-sector allocations. It is loaded lazily on the first small-stream
// read.
func (fs *Fs) loadMiniStream() error {
	if fs.miniStreamRead {
		return nil
	}

	data, err := fs.readChainFat(fs.root.StartSector)
	if err != nil {
		return err
	}
	if uint64(len(data)) > fs.root.Size {
		data = data[:fs.root.Size]
	}

	fs.miniStream = data
	fs.miniStreamRead = true
	logger.Debugf("mini stream loaded, %d bytes", len(data))
	return nil
}

// readChainMiniFat reads a mini-FAT chain out of the cached mini stream and
// truncates the result to the stream's recorded size.
func (fs *Fs) readChainMiniFat(start uint32, size uint64) ([]byte, error) {
	if err := fs.loadMiniStream(); err != nil {
		return nil, err
	}

	current := fatEntry(start)
	var data []byte
	count := 0

	for !current.IsEndOfChain() {
		if !current.IsRegular() || int64(current.Value()) >= int64(len(fs.miniFat)) {
			return nil, checkpoint.Wrap(fmt.Errorf("chain references mini sector %d outside the mini allocation table (%d entries)", current.Value(), len(fs.miniFat)), ErrCorrupted)
		}
		if count++; count > len(fs.miniFat) {
			return nil, checkpoint.Wrap(errors.New("mini sector chain does not terminate"), ErrCorrupted)
		}

		offset := uint64(current.Value()) * uint64(fs.miniSectorSize)
		end := offset + uint64(fs.miniSectorSize)
		if end > uint64(len(fs.miniStream)) {
			end = uint64(len(fs.miniStream))
		}
		if offset > uint64(len(fs.miniStream)) {
			return nil, checkpoint.Wrap(fmt.Errorf("mini sector %d lies beyond the mini stream", current.Value()), ErrCorrupted)
		}
		data = append(data, fs.miniStream[offset:end]...)

		current = fs.miniFat[current.Value()]
	}

	if uint64(len(data)) > size {
		data = data[:size]
	}
	return data, nil
}

// materializeStream reads the full content of a stream entry.
func (fs *Fs) materializeStream(entry *DirectoryEntry) ([]byte, error) {
	if entry.Type != EntryTypeStream {
		return nil, checkpoint.Wrap(fmt.Errorf("%q is not a stream", entry.Name), ErrInvalidFormat)
	}
	if entry.Size == 0 {
		return nil, nil
	}

	if entry.isMini {
		return fs.readChainMiniFat(entry.StartSector, entry.Size)
	}

	data, err := fs.readChainFat(entry.StartSector)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) < entry.Size {
		return nil, checkpoint.Wrap(fmt.Errorf("stream %q is %d bytes but its chain only covers %d", entry.Name, entry.Size, len(data)), ErrCorrupted)
	}
	return data[:entry.Size], nil
}

// OpenStream reads the whole content of the stream at the given path.
func (fs *Fs) OpenStream(path ...string) ([]byte, error) {
	entry, err := fs.findEntry(path)
	if err != nil {
		return nil, err
	}
	return fs.materializeStream(entry)
}

// readStreamAt serves File reads by materializing the stream and slicing
// out the requested window.
func (fs *Fs) readStreamAt(entry *DirectoryEntry, offset int64, size int) ([]byte, error) {
	data, err := fs.materializeStream(entry)
	if err != nil {
		return nil, err
	}

	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := offset + int64(size)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end], nil
}
