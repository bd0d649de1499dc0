package canopywatch

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/soniakeys/meeus/v3/julian"
)

// Date is the time axis value attached to every input raster: a calendar
// year/day-of-year pair and a monotone integer day index (ce) used directly
// as the independent variable of the harmonic basis (harmonic.go).
type Date struct {
	CE   int
	Year int
	DOY  int
}

var (
	reYMD  = regexp.MustCompile(`(\d{4})-?(\d{2})-?(\d{2})`)
	reYDOY = regexp.MustCompile(`(\d{4})(\d{3})(?:[^\d]|$)`)
)

// DateFromFilename parses the timestamp embedded in a raster's basename.
// Two layouts are recognised: YYYY-MM-DD (or YYYYMMDD) and YYYYDDD
// (year + day-of-year). This mirrors the teacher's filename-embedded
// timestamp convention (decode/params.go's "yyyy/ddd hh:mm:ss" parsing),
// adapted to the date-only, extension-bearing basenames this domain uses.
func DateFromFilename(path string) (Date, error) {
	base := filepath.Base(path)

	if m := reYMD.FindStringSubmatch(base); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return newDate(year, month, float64(day))
	}

	if m := reYDOY.FindStringSubmatch(base); m != nil {
		year, _ := strconv.Atoi(m[1])
		doy, _ := strconv.Atoi(m[2])
		month, day := julian.DayOfYearToCalendar(doy, julian.LeapYearGregorian(year))
		return newDate(year, month, float64(day))
	}

	return Date{}, fmt.Errorf("could not parse a date from filename %q", base)
}

// newDate builds a Date from a calendar year/month/day, computing both the
// day-of-year and the continuous day index (CE) via the Julian Day Number.
// CE counts days on the proleptic Gregorian calendar with 0001-01-01 as
// day 1, so CE - 1970*365 (disturbance band 0) is a small epoch offset.
func newDate(year, month int, day float64) (Date, error) {
	jd := julian.CalendarGregorianToJD(year, month, day)
	ce := int(jd - julian.CalendarGregorianToJD(0, 12, 31))

	jan1 := julian.CalendarGregorianToJD(year, 1, 1)
	doy := int(jd-jan1) + 1

	return Date{CE: ce, Year: year, DOY: doy}, nil
}

// Ordered reports whether dates is strictly non-decreasing by CE, the
// correctness precondition spec.md §5 requires of every input stack.
func Ordered(dates []Date) bool {
	for i := 1; i < len(dates); i++ {
		if dates[i].CE < dates[i-1].CE {
			return false
		}
	}
	return true
}
