package gocfb

import "time"

// Windows FILETIME counts 100-nanosecond intervals since 1601-01-01. The
// offset to the Unix epoch is 11644473600 seconds.
const filetimeEpochDiff = 116444736000000000

// filetimeToTime converts a FILETIME value to a UTC time. The zero value
// maps to the zero time, since writers use it for "not set".
func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	return time.Unix(0, (int64(ft)-filetimeEpochDiff)*100).UTC()
}

// filetimeToDuration interprets a FILETIME value as a span instead of a
// point in time, as the edit time property stores it.
func filetimeToDuration(ft uint64) time.Duration {
	return time.Duration(ft * 100)
}
