package gocfb

import (
	"os"
	"time"
)

// FileInfo returns an os.FileInfo view of the entry.
func (e *DirectoryEntry) FileInfo() os.FileInfo {
	return entryFileInfo{e}
}

type entryFileInfo struct {
	entry *DirectoryEntry
}

func (e entryFileInfo) Name() string {
	return e.entry.Name
}

func (e entryFileInfo) Size() int64 {
	return int64(e.entry.Size)
}

func (e entryFileInfo) Mode() os.FileMode {
	if e.IsDir() {
		return os.ModeDir
	}
	return 0
}

func (e entryFileInfo) ModTime() time.Time {
	return e.entry.Modified
}

func (e entryFileInfo) IsDir() bool {
	return e.entry.Type == EntryTypeStorage || e.entry.Type == EntryTypeRoot
}

func (e entryFileInfo) Sys() interface{} {
	return e.entry
}
