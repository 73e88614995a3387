// Package model defines the canonical timetable data model and the
// validators the orchestrator runs against it before returning a payload.
package model

import (
	"fmt"
	"regexp"

	"tgadapter/internal/apierr"
)

// FormatVersion is the fixed schema version stamped on every payload.
const FormatVersion = 2

// StudentInfo is parsed from the base page text near the "Næmingatímatalva"
// marker.
type StudentInfo struct {
	StudentName string `json:"studentName"`
	Class       string `json:"class"`
}

// WeekInfo describes the week a TimetableData covers.
type WeekInfo struct {
	WeekNumber int    `json:"weekNumber"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	Year       int    `json:"year"`
	WeekKey    string `json:"weekKey"`
}

// Lesson is one scheduled event, possibly enriched with homework.
type Lesson struct {
	Title           string  `json:"title"`
	Level           string  `json:"level"`
	Year            string  `json:"year"`
	Date            string  `json:"date"`
	DayOfWeek       string  `json:"dayOfWeek"`
	Teacher         string  `json:"teacher"`
	TeacherShort    string  `json:"teacherShort"`
	Location        string  `json:"location"`
	TimeSlot        string  `json:"timeSlot"`
	StartTime       *string `json:"startTime,omitempty"`
	EndTime         *string `json:"endTime,omitempty"`
	TimeRange       string  `json:"timeRange"`
	Cancelled       bool    `json:"cancelled"`
	LessonID        *string `json:"lessonId,omitempty"`
	Description     *string `json:"description,omitempty"`
	HasHomeworkNote bool    `json:"hasHomeworkNote"`
}

// TimetableData is the full payload for one (request, offset) pair.
type TimetableData struct {
	StudentInfo   StudentInfo `json:"studentInfo"`
	WeekInfo      WeekInfo    `json:"weekInfo"`
	Events        []Lesson    `json:"events"`
	FormatVersion int         `json:"formatVersion"`
}

var (
	isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	hhmmRe    = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Validate enforces the invariants C9 is responsible for: date formats,
// time formats, week number range, and the fixed format version. It
// computes WeekKey when absent rather than trusting caller-supplied input.
func Validate(d *TimetableData) error {
	if d.WeekInfo.WeekNumber < 1 || d.WeekInfo.WeekNumber > 53 {
		return apierr.Validation(fmt.Sprintf("week_number %d out of range [1,53]", d.WeekInfo.WeekNumber))
	}
	if d.WeekInfo.StartDate != "" && !isoDateRe.MatchString(d.WeekInfo.StartDate) {
		return apierr.Validation("startDate is not YYYY-MM-DD")
	}
	if d.WeekInfo.EndDate != "" && !isoDateRe.MatchString(d.WeekInfo.EndDate) {
		return apierr.Validation("endDate is not YYYY-MM-DD")
	}
	if d.WeekInfo.WeekKey == "" {
		d.WeekInfo.WeekKey = fmt.Sprintf("%d-W%02d", d.WeekInfo.Year, d.WeekInfo.WeekNumber)
	}
	expectedKey := fmt.Sprintf("%d-W%02d", d.WeekInfo.Year, d.WeekInfo.WeekNumber)
	if d.WeekInfo.WeekKey != expectedKey {
		return apierr.Validation("weekKey does not match year/week_number")
	}
	for i, e := range d.Events {
		if e.Date != "" && !isoDateRe.MatchString(e.Date) {
			return apierr.Validation(fmt.Sprintf("event %d: date is not YYYY-MM-DD", i))
		}
		if e.StartTime != nil && !hhmmRe.MatchString(*e.StartTime) {
			return apierr.Validation(fmt.Sprintf("event %d: startTime is not HH:MM", i))
		}
		if e.EndTime != nil && !hhmmRe.MatchString(*e.EndTime) {
			return apierr.Validation(fmt.Sprintf("event %d: endTime is not HH:MM", i))
		}
	}
	d.FormatVersion = FormatVersion
	return nil
}
