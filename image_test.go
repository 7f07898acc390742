package gocfb

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unicode/utf16"
)

// imageEntry describes one directory entry of a crafted test image. Left,
// right and child SIDs of 0 mean "no link" since SID 0 is always the root
// and can never be a sibling or child.
type imageEntry struct {
	name     string
	typ      EntryType
	left     uint32
	right    uint32
	child    uint32
	data     []byte
	created  uint64
	modified uint64
}

func encodeEntryName(name string) ([64]byte, uint16) {
	var buf [64]byte
	units := utf16.Encode([]rune(name))
	for i, unit := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], unit)
	}
	return buf, uint16((len(units) + 1) * 2)
}

func sidOrNoStream(sid uint32) uint32 {
	if sid == 0 {
		return noStream
	}
	return sid
}

// buildImage writes a version 3 compound file holding the given entries.
// entries[0] must be the root. The layout is fixed: sector 0 is the single
// FAT sector, the directory follows, then the MiniFAT sector, the mini
// stream and finally all big streams.
func buildImage(t *testing.T, entries []imageEntry) []byte {
	t.Helper()

	if len(entries) == 0 || entries[0].typ != EntryTypeRoot {
		t.Fatal("buildImage needs the root as first entry")
	}

	const sectorLen = 512

	numDirSectors := (len(entries)*dirEntryLen + sectorLen - 1) / sectorLen

	// Assign mini granules and count big sectors.
	miniStart := make([]uint32, len(entries))
	bigSectors := make([]int, len(entries))
	totalGranules := uint32(0)
	totalBigSectors := 0
	for i, e := range entries {
		miniStart[i] = uint32(endOfChain)
		if e.typ != EntryTypeStream || len(e.data) == 0 {
			continue
		}
		if len(e.data) < int(defaultMiniStreamCutoff) {
			miniStart[i] = totalGranules
			totalGranules += uint32((len(e.data) + 63) / 64)
		} else {
			bigSectors[i] = (len(e.data) + sectorLen - 1) / sectorLen
			totalBigSectors += bigSectors[i]
		}
	}

	numMiniFatSectors := 0
	if totalGranules > 0 {
		numMiniFatSectors = 1
	}
	miniStreamLen := int(totalGranules) * 64
	numMiniStreamSectors := (miniStreamLen + sectorLen - 1) / sectorLen

	dirStart := uint32(1)
	miniFatStart := dirStart + uint32(numDirSectors)
	miniStreamStart := miniFatStart + uint32(numMiniFatSectors)
	bigStart := miniStreamStart + uint32(numMiniStreamSectors)
	totalSectors := bigStart + uint32(totalBigSectors)

	if totalSectors > sectorLen/4 {
		t.Fatalf("test image needs %d sectors, a single FAT sector covers %d", totalSectors, sectorLen/4)
	}

	// Build the FAT.
	fat := make([]uint32, sectorLen/4)
	for i := range fat {
		fat[i] = uint32(freeSector)
	}
	fat[0] = uint32(fatSector)
	chain := func(start, count uint32) {
		for i := uint32(0); i < count; i++ {
			if i == count-1 {
				fat[start+i] = uint32(endOfChain)
			} else {
				fat[start+i] = start + i + 1
			}
		}
	}
	chain(dirStart, uint32(numDirSectors))
	if numMiniFatSectors > 0 {
		chain(miniFatStart, uint32(numMiniFatSectors))
	}
	if numMiniStreamSectors > 0 {
		chain(miniStreamStart, uint32(numMiniStreamSectors))
	}
	nextBig := bigStart
	startSectors := make([]uint32, len(entries))
	for i := range entries {
		startSectors[i] = uint32(endOfChain)
		if bigSectors[i] > 0 {
			startSectors[i] = nextBig
			chain(nextBig, uint32(bigSectors[i]))
			nextBig += uint32(bigSectors[i])
		} else if miniStart[i] != uint32(endOfChain) {
			startSectors[i] = miniStart[i]
		}
	}

	// Build the MiniFAT and the mini stream.
	miniFat := make([]uint32, sectorLen/4)
	for i := range miniFat {
		miniFat[i] = uint32(freeSector)
	}
	miniStream := make([]byte, numMiniStreamSectors*sectorLen)
	for i, e := range entries {
		if miniStart[i] == uint32(endOfChain) {
			continue
		}
		granules := uint32((len(e.data) + 63) / 64)
		for g := uint32(0); g < granules; g++ {
			if g == granules-1 {
				miniFat[miniStart[i]+g] = uint32(endOfChain)
			} else {
				miniFat[miniStart[i]+g] = miniStart[i] + g + 1
			}
		}
		copy(miniStream[miniStart[i]*64:], e.data)
	}

	// Build the directory sectors.
	dir := make([]byte, numDirSectors*sectorLen)
	dirBuf := bytes.NewBuffer(dir[:0])
	for i, e := range entries {
		name, nameLen := encodeEntryName(e.name)
		raw := rawDirectoryEntry{
			Name:        name,
			NameLength:  nameLen,
			EntryType:   uint8(e.typ),
			Color:       1,
			LeftSID:     sidOrNoStream(e.left),
			RightSID:    sidOrNoStream(e.right),
			ChildSID:    sidOrNoStream(e.child),
			CreateTime:  e.created,
			ModifyTime:  e.modified,
			StartSector: startSectors[i],
			StreamSize:  uint64(len(e.data)),
		}
		if e.typ == EntryTypeRoot {
			raw.StartSector = uint32(endOfChain)
			if numMiniStreamSectors > 0 {
				raw.StartSector = miniStreamStart
			}
			raw.StreamSize = uint64(miniStreamLen)
		}
		if err := binary.Write(dirBuf, binary.LittleEndian, &raw); err != nil {
			t.Fatalf("writing directory entry %d: %v", i, err)
		}
	}

	// Build the header.
	h := header{
		Signature:          magic,
		MinorVersion:       0x3E,
		MajorVersion:       3,
		ByteOrder:          byteOrderMark,
		SectorShift:        9,
		MiniSectorShift:    6,
		NumFatSectors:      1,
		FirstDirSector:     dirStart,
		MiniStreamCutoff:   defaultMiniStreamCutoff,
		FirstMiniFatSector: uint32(endOfChain),
		NumMiniFatSectors:  uint32(numMiniFatSectors),
		FirstDifatSector:   uint32(endOfChain),
	}
	if numMiniFatSectors > 0 {
		h.FirstMiniFatSector = miniFatStart
	}
	h.Difat[0] = 0
	for i := 1; i < numDifatEntriesInHeader; i++ {
		h.Difat[i] = uint32(freeSector)
	}

	var image bytes.Buffer
	if err := binary.Write(&image, binary.LittleEndian, &h); err != nil {
		t.Fatalf("writing header: %v", err)
	}
	if err := binary.Write(&image, binary.LittleEndian, fat); err != nil {
		t.Fatalf("writing FAT: %v", err)
	}
	image.Write(dirBuf.Bytes())
	image.Write(dir[dirBuf.Len():])
	if numMiniFatSectors > 0 {
		if err := binary.Write(&image, binary.LittleEndian, miniFat); err != nil {
			t.Fatalf("writing MiniFAT: %v", err)
		}
	}
	image.Write(miniStream)
	for i, e := range entries {
		if bigSectors[i] == 0 {
			continue
		}
		image.Write(e.data)
		if padding := bigSectors[i]*sectorLen - len(e.data); padding > 0 {
			image.Write(make([]byte, padding))
		}
	}

	if image.Len() != int(totalSectors+1)*sectorLen {
		t.Fatalf("built image is %d bytes, expected %d", image.Len(), int(totalSectors+1)*sectorLen)
	}

	return image.Bytes()
}

// patternData returns deterministic stream content for round-trip checks.
func patternData(size int, seed byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)*7 + seed
	}
	return data
}

// testImage is the shared fixture used by most tests: two streams in the
// root (one mini, one big) and a storage holding a third stream.
func testImage(t *testing.T) []byte {
	t.Helper()
	return buildImage(t, []imageEntry{
		{name: "Root Entry", typ: EntryTypeRoot, child: 1},
		{name: "docs", typ: EntryTypeStorage, right: 2, child: 4},
		{name: "big.bin", typ: EntryTypeStream, right: 3, data: patternData(5000, 1)},
		{name: "small.txt", typ: EntryTypeStream, data: patternData(3000, 2)},
		{name: "guide.txt", typ: EntryTypeStream, data: []byte("mini stream content!")},
	})
}
