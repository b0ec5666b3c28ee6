package mmap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ellenhp/solari-go/timetable"
)

// Write serializes tt into dir as the fixed-layout file set spec.md
// §6 lists. dir is created if absent; a partial write on error is not
// cleaned up (spec.md §7: "a cancelled or crashed build leaves an
// incomplete directory that must be deleted before retry").
func Write(dir string, tt *timetable.Timetable) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	strs := newStringTable()
	calendarStartRef := strs.intern(tt.CalendarStart)

	stopBuf := make([]byte, 0, len(tt.Stops)*stopRecordSize)
	for _, s := range tt.Stops {
		stopBuf = appendStop(stopBuf, strs, s)
	}

	patternBuf := make([]byte, 0, len(tt.Patterns)*patternRecordSize)
	for _, p := range tt.Patterns {
		patternBuf = appendPattern(patternBuf, strs, p)
	}

	patternStopBuf := make([]byte, len(tt.PatternStops)*4)
	for i, idx := range tt.PatternStops {
		byteOrder.PutUint32(patternStopBuf[i*4:i*4+4], uint32(idx))
	}

	tripBuf := make([]byte, 0, len(tt.Trips)*tripRecordSize)
	for _, t := range tt.Trips {
		tripBuf = appendTrip(tripBuf, strs, t)
	}

	stopTimeBuf := make([]byte, len(tt.StopTimes)*stopTimeRecordSize)
	for i, st := range tt.StopTimes {
		off := i * stopTimeRecordSize
		byteOrder.PutUint32(stopTimeBuf[off:off+4], st.Arrival)
		byteOrder.PutUint32(stopTimeBuf[off+4:off+8], st.Departure)
	}

	transferOffsetBuf := make([]byte, (len(tt.Transfers)+1)*4)
	var transferBuf []byte
	running := uint32(0)
	for i, edges := range tt.Transfers {
		byteOrder.PutUint32(transferOffsetBuf[i*4:i*4+4], running)
		for _, e := range edges {
			rec := make([]byte, transferRecordSize)
			byteOrder.PutUint32(rec[0:4], uint32(e.ToStop))
			byteOrder.PutUint32(rec[4:8], e.WalkSecond)
			transferBuf = append(transferBuf, rec...)
		}
		running += uint32(len(edges))
	}
	byteOrder.PutUint32(transferOffsetBuf[len(tt.Transfers)*4:], running)

	bytesPerTrip := tt.BytesPerTrip()
	calendarBuf := make([]byte, len(tt.Trips)*bytesPerTrip)
	for i, c := range tt.Calendar {
		if len(c.Days) != bytesPerTrip {
			return fmt.Errorf("trip %d: calendar bitmap is %d bytes, want %d", i, len(c.Days), bytesPerTrip)
		}
		copy(calendarBuf[i*bytesPerTrip:(i+1)*bytesPerTrip], c.Days)
	}

	m := manifest{
		NumStops:         uint32(len(tt.Stops)),
		NumPatterns:      uint32(len(tt.Patterns)),
		NumPatternStops:  uint32(len(tt.PatternStops)),
		NumTrips:         uint32(len(tt.Trips)),
		NumStopTimes:     uint32(len(tt.StopTimes)),
		NumTransferStops: uint32(len(tt.Transfers)),
		NumTransfers:     running,
		CalendarStart:    calendarStartRef,
		CalendarDays:     uint32(tt.CalendarDays),
		BytesPerTrip:     uint32(bytesPerTrip),
	}

	files := map[string][]byte{
		fileStops:           stopBuf,
		filePatterns:        patternBuf,
		filePatternStops:    patternStopBuf,
		fileTrips:           tripBuf,
		fileStopTimes:       stopTimeBuf,
		fileCalendar:        calendarBuf,
		fileTransfers:       transferBuf,
		fileTransferOffsets: transferOffsetBuf,
		fileStrings:         strs.bytes(),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}

	manifestFile, err := os.Create(filepath.Join(dir, fileManifest))
	if err != nil {
		return fmt.Errorf("creating manifest.bin: %w", err)
	}
	defer manifestFile.Close()
	if err := writeManifest(manifestFile, m); err != nil {
		return fmt.Errorf("writing manifest.bin: %w", err)
	}

	return nil
}

func appendStop(buf []byte, strs *stringTable, s timetable.Stop) []byte {
	rec := make([]byte, stopRecordSize)
	i := 0
	writeStringRef(rec[i:i+stringRefSize], strs.intern(s.ID))
	i += stringRefSize
	writeStringRef(rec[i:i+stringRefSize], strs.intern(s.Code))
	i += stringRefSize
	writeStringRef(rec[i:i+stringRefSize], strs.intern(s.Name))
	i += stringRefSize
	byteOrder.PutUint64(rec[i:i+8], float64bits(s.Lat))
	i += 8
	byteOrder.PutUint64(rec[i:i+8], float64bits(s.Lon))
	i += 8
	byteOrder.PutUint64(rec[i:i+8], float64bits(s.SphereX))
	i += 8
	byteOrder.PutUint64(rec[i:i+8], float64bits(s.SphereY))
	i += 8
	byteOrder.PutUint64(rec[i:i+8], float64bits(s.SphereZ))
	i += 8
	byteOrder.PutUint32(rec[i:i+4], uint32(s.ParentStop))
	return append(buf, rec...)
}

func appendPattern(buf []byte, strs *stringTable, p timetable.PatternHeader) []byte {
	rec := make([]byte, patternRecordSize)
	i := 0
	putU32 := func(v uint32) { byteOrder.PutUint32(rec[i:i+4], v); i += 4 }
	putU32(uint32(p.StopOffset))
	putU32(uint32(p.NumStops))
	putU32(uint32(p.TripOffset))
	putU32(uint32(p.NumTrips))
	writeStringRef(rec[i:i+stringRefSize], strs.intern(p.RouteID))
	i += stringRefSize
	writeStringRef(rec[i:i+stringRefSize], strs.intern(p.AgencyID))
	i += stringRefSize
	writeStringRef(rec[i:i+stringRefSize], strs.intern(p.ShortName))
	i += stringRefSize
	writeStringRef(rec[i:i+stringRefSize], strs.intern(p.LongName))
	i += stringRefSize
	putU32(uint32(p.RouteType))
	return append(buf, rec...)
}

func appendTrip(buf []byte, strs *stringTable, t timetable.Trip) []byte {
	rec := make([]byte, tripRecordSize)
	i := 0
	byteOrder.PutUint32(rec[i:i+4], uint32(t.PatternID))
	i += 4
	writeStringRef(rec[i:i+stringRefSize], strs.intern(t.ServiceID))
	i += stringRefSize
	writeStringRef(rec[i:i+stringRefSize], strs.intern(t.Headsign))
	i += stringRefSize
	byteOrder.PutUint32(rec[i:i+4], uint32(t.StopsIndex))
	return append(buf, rec...)
}
