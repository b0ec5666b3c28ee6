package router

import (
	"fmt"
	"time"
)

// calendarDateLayout matches compiler.dateLayout: compiled calendar
// windows are stamped YYYYMMDD (GTFS's own date format).
const calendarDateLayout = "20060102"

func parseCalendarStart(s string) (int64, error) {
	t, err := time.Parse(calendarDateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parsing calendar start %q: %w", s, err)
	}
	return t.Unix(), nil
}
