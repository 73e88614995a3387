// Package dateutil normalizes the handful of date formats the upstream
// emits into ISO 8601 and derives the ISO week fields the canonical model
// requires.
package dateutil

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const isoDateLayout = "2006-01-02"

var (
	periodDateFull  = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	periodDateShort = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})`)
	hyphenDate      = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	slashDateYear   = regexp.MustCompile(`(\d{1,2})/(\d{1,2})-(\d{4})`)
	slashDateShort  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})`)

	dateRange = regexp.MustCompile(`(\d{1,2}\.\d{1,2}\.\d{4})\s*-\s*(\d{1,2}\.\d{1,2}\.\d{4})`)
)

// ParseToISO parses a date fragment in any of the upstream's formats
// (DD.MM.YYYY, DD.MM, YYYY-MM-DD, DD/MM, DD/MM-YYYY) and returns it as
// YYYY-MM-DD. When the fragment omits a year, defaultYear is used.
func ParseToISO(s string, defaultYear int) (string, error) {
	if m := hyphenDate.FindStringSubmatch(s); m != nil {
		return formatISO(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := periodDateFull.FindStringSubmatch(s); m != nil {
		return formatISO(atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	if m := slashDateYear.FindStringSubmatch(s); m != nil {
		return formatISO(atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	if m := periodDateShort.FindStringSubmatch(s); m != nil {
		return formatISO(defaultYear, atoi(m[2]), atoi(m[1]))
	}
	if m := slashDateShort.FindStringSubmatch(s); m != nil {
		return formatISO(defaultYear, atoi(m[2]), atoi(m[1]))
	}
	return "", fmt.Errorf("dateutil: no recognized date pattern in %q", s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func formatISO(year, month, day int) (string, error) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if int(t.Month()) != month || t.Day() != day {
		return "", fmt.Errorf("dateutil: invalid calendar date %04d-%02d-%02d", year, month, day)
	}
	return t.Format(isoDateLayout), nil
}

// FindDateRange locates the first "DD.MM.YYYY - DD.MM.YYYY" occurrence in s
// and returns both endpoints as ISO dates.
func FindDateRange(s string) (startISO, endISO string, ok bool) {
	m := dateRange.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	start, err1 := ParseToISO(m[1], 0)
	end, err2 := ParseToISO(m[2], 0)
	if err1 != nil || err2 != nil {
		return "", "", false
	}
	return start, end, true
}

// ISOWeekYear derives the (year, week number) pair used for week_key, from
// an ISO date string.
func ISOWeekYear(isoDate string) (year, week int, err error) {
	t, err := time.Parse(isoDateLayout, isoDate)
	if err != nil {
		return 0, 0, err
	}
	year, week = t.ISOWeek()
	return year, week, nil
}

// WeekKey formats the canonical "YYYY-Www" string.
func WeekKey(year, week int) string {
	return fmt.Sprintf("%d-W%02d", year, week)
}

var academicYearCode = regexp.MustCompile(`^\d{4}$`)

// FormatAcademicYear converts a four-digit code "YYZZ" to "20YY-20ZZ" when
// ZZ == YY+1, and returns the code unchanged otherwise (including for
// non-four-digit input). Empty input returns empty.
func FormatAcademicYear(code string) string {
	if code == "" {
		return ""
	}
	if !academicYearCode.MatchString(code) {
		return code
	}
	startYY := atoi(code[:2])
	endYY := atoi(code[2:])
	if endYY != startYY+1 {
		return code
	}
	return fmt.Sprintf("20%02d-20%02d", startYY, endYY)
}

// DayName maps a Faroese weekday name to its English equivalent. Unknown
// names are returned unchanged.
func DayName(fo string) string {
	if en, ok := faroeseDayNames[fo]; ok {
		return en
	}
	return fo
}

var faroeseDayNames = map[string]string{
	"Mánadagur":    "Monday",
	"Týsdagur":     "Tuesday",
	"Mikudagur":    "Wednesday",
	"Hósdagur":     "Thursday",
	"Fríggjadagur": "Friday",
	"Leygardagur":  "Saturday",
	"Sunnudagur":   "Sunday",
}
