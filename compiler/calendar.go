package compiler

import (
	"fmt"
	"time"

	"github.com/ellenhp/solari-go/feed/model"
)

const dateLayout = "20060102"

// ExpandCalendar converts calendar.txt rows plus calendar_dates.txt
// exceptions into one per-service-ID activity bitmap covering
// [startDate, startDate+numDays), the representation
// timetable.Timetable.ApplyCalendar consumes (spec.md §4.1's "boolean
// vector of length num_days", §9's compact per-trip bitmap).
func ExpandCalendar(calendars []*model.Calendar, calendarDates []*model.CalendarDate, startDate string, numDays int) (map[string][]byte, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar window start %s: %w", startDate, err)
	}

	bytesPerTrip := (numDays + 7) / 8
	out := map[string][]byte{}
	ensure := func(serviceID string) []byte {
		b, ok := out[serviceID]
		if !ok {
			b = make([]byte, bytesPerTrip)
			out[serviceID] = b
		}
		return b
	}

	for _, cal := range calendars {
		calStart, err := time.Parse(dateLayout, cal.StartDate)
		if err != nil {
			return nil, fmt.Errorf("service %s: bad start_date %q: %w", cal.ServiceID, cal.StartDate, err)
		}
		calEnd, err := time.Parse(dateLayout, cal.EndDate)
		if err != nil {
			return nil, fmt.Errorf("service %s: bad end_date %q: %w", cal.ServiceID, cal.EndDate, err)
		}
		bits := ensure(cal.ServiceID)
		for d := 0; d < numDays; d++ {
			day := start.AddDate(0, 0, d)
			if day.Before(calStart) || day.After(calEnd) {
				continue
			}
			if cal.Weekday&weekdayBit(day.Weekday()) == 0 {
				continue
			}
			bits[d/8] |= 1 << uint(d%8)
		}
	}

	for _, cd := range calendarDates {
		day, err := time.Parse(dateLayout, cd.Date)
		if err != nil {
			return nil, fmt.Errorf("service %s: bad exception date %q: %w", cd.ServiceID, cd.Date, err)
		}
		d := int(day.Sub(start).Hours() / 24)
		if d < 0 || d >= numDays {
			continue
		}
		bits := ensure(cd.ServiceID)
		switch cd.ExceptionType {
		case model.ExceptionTypeAdded:
			bits[d/8] |= 1 << uint(d%8)
		case model.ExceptionTypeRemoved:
			bits[d/8] &^= 1 << uint(d%8)
		}
	}

	return out, nil
}

func weekdayBit(w time.Weekday) int8 {
	return int8(1) << uint(w)
}
