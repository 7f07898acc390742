package gocfb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/aligator/gocfb/checkpoint"
)

// Well known property streams written by Office applications.
const (
	summaryInformationStream         = "\x05SummaryInformation"
	documentSummaryInformationStream = "\x05DocumentSummaryInformation"
)

// Property type tags used in property set streams.
const (
	vtEmpty    = 0
	vtNull     = 1
	vtI2       = 2
	vtI4       = 3
	vtBstr     = 8
	vtError    = 10
	vtBool     = 11
	vtUI2      = 18
	vtUI4      = 19
	vtInt      = 22
	vtUInt     = 23
	vtLpstr    = 30
	vtLpwstr   = 31
	vtFiletime = 64
	vtBlob     = 65
)

// maxProperties caps the property count read from a section header so a
// corrupted count cannot drive a huge allocation.
const maxProperties = 1000

// Metadata holds the document properties collected from the summary
// information streams. Fields keep their zero value when the property is
// absent or its codepage is not supported.
type Metadata struct {
	Codepage uint32

	Title          string
	Subject        string
	Author         string
	Keywords       string
	Comments       string
	Template       string
	LastSavedBy    string
	RevisionNumber string

	EditTime        time.Duration
	CreateTime      time.Time
	LastPrintedTime time.Time
	LastSavedTime   time.Time

	NumPages uint32
	NumWords uint32
	NumChars uint32

	CreatingApplication string
	Security            uint32

	Category string
	Manager  string
	Company  string
}

type propertyKind int

const (
	propertyEmpty propertyKind = iota
	propertyInteger
	propertyBool
	propertyString
	propertyWideString
	propertyBlob
	propertyFiletime
)

type propertyValue struct {
	kind     propertyKind
	integer  int64
	boolean  bool
	str      string
	raw      []byte
	filetime uint64
}

// parsePropertyStream decodes the first section of a property set stream
// into a map from property id to value. String payloads stay raw since
// their decoding depends on the section's codepage property.
func parsePropertyStream(data []byte) (map[uint32]propertyValue, error) {
	if len(data) < 48 {
		return nil, checkpoint.Wrap(errors.New("property stream is too short"), ErrInvalidData)
	}

	sectionOffset := binary.LittleEndian.Uint32(data[44:48])
	if uint64(sectionOffset)+8 > uint64(len(data)) {
		return nil, checkpoint.Wrap(errors.New("property section offset lies beyond the stream"), ErrInvalidData)
	}
	section := data[sectionOffset:]

	numProps := binary.LittleEndian.Uint32(section[4:8])
	if numProps > maxProperties {
		numProps = maxProperties
	}

	properties := make(map[uint32]propertyValue, numProps)
	for i := uint32(0); i < numProps; i++ {
		pairOffset := 8 + i*8
		if uint64(pairOffset)+8 > uint64(len(section)) {
			break
		}
		id := binary.LittleEndian.Uint32(section[pairOffset : pairOffset+4])
		valueOffset := binary.LittleEndian.Uint32(section[pairOffset+4 : pairOffset+8])

		value, err := parsePropertyValue(section, valueOffset)
		if err != nil {
			logger.Debugf("skipping property %d: %v", id, err)
			continue
		}
		properties[id] = value
	}

	return properties, nil
}

// parsePropertyValue decodes one typed property at the given offset
// relative to the section start.
func parsePropertyValue(section []byte, offset uint32) (propertyValue, error) {
	if uint64(offset)+4 > uint64(len(section)) {
		return propertyValue{}, fmt.Errorf("property offset %d lies beyond the section", offset)
	}
	propType := binary.LittleEndian.Uint16(section[offset : offset+2])
	payload := section[offset+4:]

	switch propType {
	case vtI2, vtUI2, vtBool:
		if len(payload) < 2 {
			return propertyValue{}, errors.New("truncated 16 bit property")
		}
		v := binary.LittleEndian.Uint16(payload[:2])
		if propType == vtBool {
			return propertyValue{kind: propertyBool, boolean: v != 0}, nil
		}
		if propType == vtI2 {
			return propertyValue{kind: propertyInteger, integer: int64(int16(v))}, nil
		}
		return propertyValue{kind: propertyInteger, integer: int64(v)}, nil

	case vtI4, vtInt, vtError:
		if len(payload) < 4 {
			return propertyValue{}, errors.New("truncated 32 bit property")
		}
		return propertyValue{kind: propertyInteger, integer: int64(int32(binary.LittleEndian.Uint32(payload[:4])))}, nil

	case vtUI4, vtUInt:
		if len(payload) < 4 {
			return propertyValue{}, errors.New("truncated 32 bit property")
		}
		return propertyValue{kind: propertyInteger, integer: int64(binary.LittleEndian.Uint32(payload[:4]))}, nil

	case vtLpstr, vtBstr:
		raw, err := propertyBytes(payload)
		if err != nil {
			return propertyValue{}, err
		}
		return propertyValue{kind: propertyString, raw: raw}, nil

	case vtLpwstr:
		if len(payload) < 4 {
			return propertyValue{}, errors.New("truncated wide string property")
		}
		numChars := binary.LittleEndian.Uint32(payload[:4])
		byteLen := uint64(numChars) * 2
		if 4+byteLen > uint64(len(payload)) {
			return propertyValue{}, errors.New("wide string property lies beyond the section")
		}
		return propertyValue{kind: propertyWideString, str: decodeUTF16(payload[4 : 4+byteLen])}, nil

	case vtFiletime:
		if len(payload) < 8 {
			return propertyValue{}, errors.New("truncated filetime property")
		}
		low := binary.LittleEndian.Uint32(payload[:4])
		high := binary.LittleEndian.Uint32(payload[4:8])
		return propertyValue{kind: propertyFiletime, filetime: uint64(low) | uint64(high)<<32}, nil

	case vtBlob:
		raw, err := propertyBytes(payload)
		if err != nil {
			return propertyValue{}, err
		}
		return propertyValue{kind: propertyBlob, raw: raw}, nil

	case vtEmpty, vtNull:
		return propertyValue{kind: propertyEmpty}, nil

	default:
		return propertyValue{kind: propertyEmpty}, nil
	}
}

// propertyBytes reads a length-prefixed byte payload.
func propertyBytes(payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, errors.New("truncated length prefixed property")
	}
	length := binary.LittleEndian.Uint32(payload[:4])
	if 4+uint64(length) > uint64(len(payload)) {
		return nil, errors.New("length prefixed property lies beyond the section")
	}
	return payload[4 : 4+length], nil
}

// Metadata collects the document properties from the summary information
// streams. It is best effort: missing streams, unsupported codepages and
// malformed properties leave the affected fields at their zero value.
func (fs *Fs) Metadata() Metadata {
	var meta Metadata

	if data, err := fs.OpenStream(summaryInformationStream); err == nil {
		if properties, err := parsePropertyStream(data); err == nil {
			extractSummaryInformation(&meta, properties)
		} else {
			logger.Debugf("summary information stream unreadable: %v", err)
		}
	}

	if data, err := fs.OpenStream(documentSummaryInformationStream); err == nil {
		if properties, err := parsePropertyStream(data); err == nil {
			extractDocumentSummaryInformation(&meta, properties)
		} else {
			logger.Debugf("document summary information stream unreadable: %v", err)
		}
	}

	return meta
}

func extractSummaryInformation(meta *Metadata, properties map[uint32]propertyValue) {
	if v, ok := properties[1]; ok && v.kind == propertyInteger {
		// The codepage is declared as a signed 16 bit value, so 65001
		// arrives as -535.
		meta.Codepage = uint32(uint16(int16(v.integer)))
	}

	stringProperty(meta, properties, 2, &meta.Title)
	stringProperty(meta, properties, 3, &meta.Subject)
	stringProperty(meta, properties, 4, &meta.Author)
	stringProperty(meta, properties, 5, &meta.Keywords)
	stringProperty(meta, properties, 6, &meta.Comments)
	stringProperty(meta, properties, 7, &meta.Template)
	stringProperty(meta, properties, 8, &meta.LastSavedBy)
	stringProperty(meta, properties, 9, &meta.RevisionNumber)
	stringProperty(meta, properties, 18, &meta.CreatingApplication)

	if v, ok := properties[10]; ok && v.kind == propertyFiletime {
		meta.EditTime = filetimeToDuration(v.filetime)
	}
	if v, ok := properties[11]; ok && v.kind == propertyFiletime {
		meta.LastPrintedTime = filetimeToTime(v.filetime)
	}
	if v, ok := properties[12]; ok && v.kind == propertyFiletime {
		meta.CreateTime = filetimeToTime(v.filetime)
	}
	if v, ok := properties[13]; ok && v.kind == propertyFiletime {
		meta.LastSavedTime = filetimeToTime(v.filetime)
	}

	if v, ok := properties[14]; ok && v.kind == propertyInteger {
		meta.NumPages = uint32(v.integer)
	}
	if v, ok := properties[15]; ok && v.kind == propertyInteger {
		meta.NumWords = uint32(v.integer)
	}
	if v, ok := properties[16]; ok && v.kind == propertyInteger {
		meta.NumChars = uint32(v.integer)
	}
	if v, ok := properties[19]; ok && v.kind == propertyInteger {
		meta.Security = uint32(v.integer)
	}
}

func extractDocumentSummaryInformation(meta *Metadata, properties map[uint32]propertyValue) {
	codepage := meta.Codepage
	if v, ok := properties[1]; ok && v.kind == propertyInteger {
		codepage = uint32(uint16(int16(v.integer)))
	}

	if v, ok := properties[2]; ok {
		setString(&meta.Category, v, codepage)
	}
	if v, ok := properties[14]; ok {
		setString(&meta.Manager, v, codepage)
	}
	if v, ok := properties[15]; ok {
		setString(&meta.Company, v, codepage)
	}
}

func stringProperty(meta *Metadata, properties map[uint32]propertyValue, id uint32, target *string) {
	if v, ok := properties[id]; ok {
		setString(target, v, meta.Codepage)
	}
}

func setString(target *string, value propertyValue, codepage uint32) {
	switch value.kind {
	case propertyString:
		if decoded, ok := decodeCodepage(value.raw, codepage); ok {
			*target = decoded
		}
	case propertyWideString:
		*target = value.str
	}
}
