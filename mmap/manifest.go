package mmap

import (
	"encoding/binary"
	"fmt"
	"io"
)

// manifest is the fixed layout of manifest.bin: magic, format
// version, then record counts for every other table plus the
// calendar window. Opening fails fast if magic or version mismatch
// (spec.md §4.4, error kind BadTimetable in §7).
type manifest struct {
	NumStops         uint32
	NumPatterns      uint32
	NumPatternStops  uint32
	NumTrips         uint32
	NumStopTimes     uint32
	NumTransferStops uint32
	NumTransfers     uint32
	CalendarStart    stringRef
	CalendarDays     uint32
	BytesPerTrip     uint32
}

const manifestBodySize = 4*9 + stringRefSize

func writeManifest(w io.Writer, m manifest) error {
	if err := binary.Write(w, byteOrder, Magic); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if err := binary.Write(w, byteOrder, FormatVersion); err != nil {
		return fmt.Errorf("writing format version: %w", err)
	}
	buf := make([]byte, manifestBodySize)
	i := 0
	putU32 := func(v uint32) { byteOrder.PutUint32(buf[i:i+4], v); i += 4 }
	putU32(m.NumStops)
	putU32(m.NumPatterns)
	putU32(m.NumPatternStops)
	putU32(m.NumTrips)
	putU32(m.NumStopTimes)
	putU32(m.NumTransferStops)
	putU32(m.NumTransfers)
	writeStringRef(buf[i:i+stringRefSize], m.CalendarStart)
	i += stringRefSize
	putU32(m.CalendarDays)
	putU32(m.BytesPerTrip)
	_, err := w.Write(buf)
	return err
}

func readManifest(data []byte) (manifest, error) {
	var m manifest
	if len(data) < 8+4+manifestBodySize {
		return m, fmt.Errorf("manifest.bin truncated: %d bytes", len(data))
	}
	magic := byteOrder.Uint64(data[0:8])
	if magic != Magic {
		return m, fmt.Errorf("bad timetable: magic mismatch (got %x, want %x)", magic, Magic)
	}
	version := byteOrder.Uint32(data[8:12])
	if version != FormatVersion {
		return m, fmt.Errorf("bad timetable: format version %d, this binary supports %d", version, FormatVersion)
	}
	buf := data[12:]
	i := 0
	getU32 := func() uint32 { v := byteOrder.Uint32(buf[i : i+4]); i += 4; return v }
	m.NumStops = getU32()
	m.NumPatterns = getU32()
	m.NumPatternStops = getU32()
	m.NumTrips = getU32()
	m.NumStopTimes = getU32()
	m.NumTransferStops = getU32()
	m.NumTransfers = getU32()
	m.CalendarStart = readStringRef(buf[i : i+stringRefSize])
	i += stringRefSize
	m.CalendarDays = getU32()
	m.BytesPerTrip = getU32()
	return m, nil
}
