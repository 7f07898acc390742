package gocfb

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testProperty is one already encoded property value (type tag included).
type testProperty struct {
	id    uint32
	value []byte
}

func propU32(propType uint16, value uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:], propType)
	binary.LittleEndian.PutUint32(buf[4:], value)
	return buf
}

func propI2(value int16) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:], vtI2)
	binary.LittleEndian.PutUint16(buf[4:], uint16(value))
	return buf
}

func propLpstr(value string) []byte {
	data := append([]byte(value), 0)
	buf := make([]byte, 8+len(data)+(4-len(data)%4)%4)
	binary.LittleEndian.PutUint16(buf[0:], vtLpstr)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(data)))
	copy(buf[8:], data)
	return buf
}

func propFiletime(value uint64) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint16(buf[0:], vtFiletime)
	binary.LittleEndian.PutUint64(buf[4:], value)
	return buf
}

// buildPropertyStream writes a property set stream with a single section.
func buildPropertyStream(t *testing.T, properties []testProperty) []byte {
	t.Helper()

	var stream bytes.Buffer
	head := make([]byte, 48)
	binary.LittleEndian.PutUint16(head[0:], 0xFFFE)     // byte order
	binary.LittleEndian.PutUint32(head[4:], 0x00020006) // os version
	binary.LittleEndian.PutUint32(head[24:], 1)         // one section
	binary.LittleEndian.PutUint32(head[44:], 48)        // section offset
	stream.Write(head)

	valueOffset := uint32(8 + 8*len(properties))
	section := make([]byte, valueOffset)
	binary.LittleEndian.PutUint32(section[4:], uint32(len(properties)))
	for i, p := range properties {
		binary.LittleEndian.PutUint32(section[8+i*8:], p.id)
		binary.LittleEndian.PutUint32(section[8+i*8+4:], valueOffset)
		valueOffset += uint32(len(p.value))
	}
	binary.LittleEndian.PutUint32(section[0:], valueOffset) // section size
	stream.Write(section)
	for _, p := range properties {
		stream.Write(p.value)
	}

	return stream.Bytes()
}

func TestFs_Metadata(t *testing.T) {
	// 2021-01-01 00:00:00 UTC.
	const createTime = uint64(132539328000000000)
	// Two hours in 100 nanosecond units.
	const editTime = uint64(2 * 3600 * 10000000)

	summary := buildPropertyStream(t, []testProperty{
		{id: 1, value: propI2(1252)},
		{id: 2, value: propLpstr("Annual Report")},
		{id: 4, value: propLpstr("G\xF6tz")}, // "Götz" in codepage 1252
		{id: 10, value: propFiletime(editTime)},
		{id: 12, value: propFiletime(createTime)},
		{id: 14, value: propU32(vtI4, 42)},
		{id: 18, value: propLpstr("Microsoft Word 10.0")},
	})
	docSummary := buildPropertyStream(t, []testProperty{
		{id: 1, value: propI2(1252)},
		{id: 15, value: propLpstr("ACME Inc.")},
	})

	image := buildImage(t, []imageEntry{
		{name: "Root Entry", typ: EntryTypeRoot, child: 1},
		{name: summaryInformationStream, typ: EntryTypeStream, right: 2, data: summary},
		{name: documentSummaryInformationStream, typ: EntryTypeStream, data: docSummary},
	})

	fs, err := New(bytes.NewReader(image))
	require.NoError(t, err)

	meta := fs.Metadata()
	assert.Equal(t, uint32(1252), meta.Codepage)
	assert.Equal(t, "Annual Report", meta.Title)
	assert.Equal(t, "Götz", meta.Author)
	assert.Equal(t, 2*time.Hour, meta.EditTime)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), meta.CreateTime)
	assert.Equal(t, uint32(42), meta.NumPages)
	assert.Equal(t, "Microsoft Word 10.0", meta.CreatingApplication)
	assert.Equal(t, "ACME Inc.", meta.Company)

	// Absent properties keep their zero value.
	assert.Empty(t, meta.Subject)
	assert.True(t, meta.LastSavedTime.IsZero())
}

func TestFs_Metadata_MissingStreams(t *testing.T) {
	image := buildImage(t, []imageEntry{
		{name: "Root Entry", typ: EntryTypeRoot, child: 1},
		{name: "data.bin", typ: EntryTypeStream, data: []byte("no properties here")},
	})

	fs, err := New(bytes.NewReader(image))
	require.NoError(t, err)

	assert.Equal(t, Metadata{}, fs.Metadata())
}

func TestParsePropertyStream(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		_, err := parsePropertyStream(make([]byte, 10))
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("section offset beyond the stream", func(t *testing.T) {
		data := buildPropertyStream(t, nil)
		binary.LittleEndian.PutUint32(data[44:], 100000)
		_, err := parsePropertyStream(data)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("property count is capped", func(t *testing.T) {
		data := buildPropertyStream(t, nil)
		binary.LittleEndian.PutUint32(data[52:], 0xFFFFFF)
		properties, err := parsePropertyStream(data)
		assert.NoError(t, err)
		assert.Empty(t, properties)
	})

	t.Run("broken property values are skipped", func(t *testing.T) {
		data := buildPropertyStream(t, []testProperty{
			{id: 2, value: propLpstr("kept")},
		})
		// Point the pair's value offset past the section.
		binary.LittleEndian.PutUint32(data[48+12:], 100000)
		properties, err := parsePropertyStream(data)
		assert.NoError(t, err)
		assert.Empty(t, properties)
	})
}

func TestParsePropertyValue(t *testing.T) {
	t.Run("wide string", func(t *testing.T) {
		value := make([]byte, 8+6)
		binary.LittleEndian.PutUint16(value[0:], vtLpwstr)
		binary.LittleEndian.PutUint32(value[4:], 3) // characters, terminator included
		copy(value[8:], []byte{'H', 0, 'i', 0, 0, 0})

		got, err := parsePropertyValue(value, 0)
		require.NoError(t, err)
		assert.Equal(t, propertyWideString, got.kind)
		assert.Equal(t, "Hi", got.str)
	})

	t.Run("bool", func(t *testing.T) {
		value := make([]byte, 8)
		binary.LittleEndian.PutUint16(value[0:], vtBool)
		binary.LittleEndian.PutUint16(value[4:], 0xFFFF)

		got, err := parsePropertyValue(value, 0)
		require.NoError(t, err)
		assert.Equal(t, propertyBool, got.kind)
		assert.True(t, got.boolean)
	})

	t.Run("blob", func(t *testing.T) {
		value := make([]byte, 8+4)
		binary.LittleEndian.PutUint16(value[0:], vtBlob)
		binary.LittleEndian.PutUint32(value[4:], 4)
		copy(value[8:], []byte{1, 2, 3, 4})

		got, err := parsePropertyValue(value, 0)
		require.NoError(t, err)
		assert.Equal(t, propertyBlob, got.kind)
		assert.Equal(t, []byte{1, 2, 3, 4}, got.raw)
	})

	t.Run("empty and unknown types", func(t *testing.T) {
		for _, propType := range []uint16{vtEmpty, vtNull, 4095} {
			value := make([]byte, 8)
			binary.LittleEndian.PutUint16(value[0:], propType)

			got, err := parsePropertyValue(value, 0)
			require.NoError(t, err)
			assert.Equal(t, propertyEmpty, got.kind)
		}
	})

	t.Run("truncated string", func(t *testing.T) {
		value := make([]byte, 8)
		binary.LittleEndian.PutUint16(value[0:], vtLpstr)
		binary.LittleEndian.PutUint32(value[4:], 100)

		_, err := parsePropertyValue(value, 0)
		assert.Error(t, err)
	})

	t.Run("offset beyond the section", func(t *testing.T) {
		_, err := parsePropertyValue(make([]byte, 8), 100)
		assert.Error(t, err)
	})
}
