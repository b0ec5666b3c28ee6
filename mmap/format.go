// Package mmap serializes a timetable.Timetable to the fixed-layout,
// mmap-openable directory format spec.md §4.4 and §6 describe, and
// opens such a directory back into a zero-copy, read-only view. No
// example repo in the reference pack links an mmap library (neither
// edsrzf/mmap-go nor golang.org/x/sys/unix appears anywhere in the
// pack's go.sum); see DESIGN.md for why this package reaches for the
// standard library's syscall.Mmap instead of inventing a new,
// ungrounded dependency.
package mmap

import "encoding/binary"

// Magic identifies a Solari timetable directory; FormatVersion is
// bumped whenever the on-disk layout changes incompatibly.
const (
	Magic         uint64 = 0x536f6c6172690001 // "Solari" + format tag
	FormatVersion uint32 = 1
)

var byteOrder = binary.LittleEndian

// stringRef addresses a UTF-8 payload in strings.bin.
type stringRef struct {
	Offset uint32
	Length uint32
}

const stringRefSize = 8

func writeStringRef(buf []byte, r stringRef) {
	byteOrder.PutUint32(buf[0:4], r.Offset)
	byteOrder.PutUint32(buf[4:8], r.Length)
}

func readStringRef(buf []byte) stringRef {
	return stringRef{Offset: byteOrder.Uint32(buf[0:4]), Length: byteOrder.Uint32(buf[4:8])}
}

// Fixed record sizes, in bytes. Each is a flat sequence of
// little-endian fields; see writer.go/reader.go for field order.
const (
	stopRecordSize     = stringRefSize*3 + 8*5 + 4 // ID,Code,Name + Lat,Lon,SphereX,Y,Z + ParentStop
	patternRecordSize  = 4*4 + stringRefSize*4 + 4 // offsets/counts + RouteID,AgencyID,ShortName,LongName + RouteType
	tripRecordSize     = 4 + stringRefSize*2 + 4   // PatternID + ServiceID,Headsign + StopsIndex
	stopTimeRecordSize = 4 + 4                     // Arrival, Departure
	transferRecordSize = 4 + 4                     // ToStop, WalkSeconds
)

const (
	fileManifest        = "manifest.bin"
	fileStops           = "stops.bin"
	filePatterns        = "patterns.bin"
	filePatternStops    = "pattern_stops.bin"
	fileTrips           = "trips.bin"
	fileStopTimes       = "stop_times.bin"
	fileCalendar        = "calendar.bin"
	fileTransfers       = "transfers.bin"
	fileTransferOffsets = "transfer_offsets.bin"
	fileStrings         = "strings.bin"
)
