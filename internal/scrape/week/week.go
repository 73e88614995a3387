// Package week implements C5: parsing one week's timetable HTML into a
// week/student-info/lesson list plus the homework ids worth fetching.
package week

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"tgadapter/internal/dateutil"
	"tgadapter/internal/htmlutil"
	"tgadapter/internal/model"
	"tgadapter/internal/teachers"
)

// Result is C5's output for one week HTML document.
type Result struct {
	// NoData is true when the time_8_16 table is entirely absent; the
	// orchestrator treats this as "no data" rather than a parse failure.
	NoData      bool
	StudentInfo model.StudentInfo
	WeekInfo    model.WeekInfo
	Lessons     []model.Lesson
	HomeworkIDs []string
	Warnings    []string
}

// cancelledClasses overlaps lessonClassRe by design: upstream marks a
// cancelled lesson by giving its cell one of these classes, while an active
// lesson carries a different lektionslinje_lessonN class (N not in this
// set). A cell with any class from this set is marked cancelled, whatever
// other classes it also carries.
var cancelledClasses = map[string]bool{
	"lektionslinje_lesson1":        true,
	"lektionslinje_lesson2":        true,
	"lektionslinje_lesson3":        true,
	"lektionslinje_lesson4":        true,
	"lektionslinje_lesson5":        true,
	"lektionslinje_lesson7":        true,
	"lektionslinje_lesson10":       true,
	"lektionslinje_lessoncancelled": true,
}

var lessonClassRe = regexp.MustCompile(`^lektionslinje_lesson\d+$`)

var cancelledClassRe = compileCancelledClassRe()

func compileCancelledClassRe() *regexp.Regexp {
	keys := make([]string, 0, len(cancelledClasses))
	for k := range cancelledClasses {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	return regexp.MustCompile("^(" + strings.Join(keys, "|") + ")$")
}

var dayHeaderRe = regexp.MustCompile(`^(\S+)\s+(\d{1,2}/\d{1,2})$`)

var studentInfoRe = regexp.MustCompile(`Næmingatímatalva\s*:\s*(.*?)\s*,\s*([\w\s]+)`)

var weekNumberRe = regexp.MustCompile(`Vika\s+(\d+)`)

var lessonIDSpanSelector = "span[id^='MyWindow']"

// Parse runs the full C5 algorithm against one week HTML document.
func Parse(weekHTML string, teacherMap teachers.Map, fuzzyThreshold float64) Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(weekHTML))
	if err != nil {
		return Result{NoData: true, Warnings: []string{"failed to parse document: " + err.Error()}}
	}

	table := doc.Find("table.time_8_16").First()
	if table.Length() == 0 {
		return Result{NoData: true}
	}

	result := Result{}
	result.StudentInfo = parseStudentInfo(doc)
	result.WeekInfo = parseWeekInfo(doc)

	currentDay := ""
	currentDatePart := ""

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		first := cells.First()
		firstText := htmlutil.CleanText(htmlutil.GetText(first.Nodes[0]))

		isHeader := htmlutil.HasClass(first, "lektionslinje_1") || htmlutil.HasClass(first, "lektionslinje_1_aktuel")
		if isHeader {
			if m := dayHeaderRe.FindStringSubmatch(firstText); m != nil {
				currentDay = m[1]
				currentDatePart = m[2]
			}
		} else if !dayHeaderRe.MatchString(firstText) && currentDay == "" {
			// No header seen yet and this row doesn't look like one either:
			// nothing to anchor lesson cells to.
			return
		}

		col := 1
		cells.Each(func(i int, cell *goquery.Selection) {
			colspan := htmlutil.Colspan(cell)
			startCol := col
			col += colspan
			if i == 0 {
				return
			}
			if !htmlutil.AnyClassMatches(cell, lessonClassRe) {
				return
			}
			lesson, homeworkID, warn := parseLessonCell(cell, startCol, colspan, currentDay, currentDatePart, result.WeekInfo.Year, teacherMap, fuzzyThreshold)
			if warn != "" {
				result.Warnings = append(result.Warnings, warn)
				return
			}
			result.Lessons = append(result.Lessons, lesson)
			if homeworkID != "" {
				result.HomeworkIDs = append(result.HomeworkIDs, homeworkID)
			}
		})
	})

	if len(result.Lessons) == 0 {
		if fallback, ok := fallbackParse(doc, result.WeekInfo.Year, teacherMap, fuzzyThreshold); ok {
			result.Lessons = fallback
		}
	}

	return result
}

// textBeforeNestedTable concatenates td's child text, stopping at (and
// excluding) the first nested <table>.
func textBeforeNestedTable(td *goquery.Selection) string {
	var b strings.Builder
	for _, child := range td.Contents().Nodes {
		if child.Type == html.ElementNode && child.Data == "table" {
			break
		}
		b.WriteString(htmlutil.GetText(child))
	}
	return b.String()
}

func parseStudentInfo(doc *goquery.Document) model.StudentInfo {
	var info model.StudentInfo
	doc.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		if !strings.Contains(htmlutil.GetText(td.Nodes[0]), "Næmingatímatalva") {
			return true
		}
		text := htmlutil.CleanText(textBeforeNestedTable(td))
		if m := studentInfoRe.FindStringSubmatch(text); m != nil {
			info.StudentName = strings.TrimSpace(m[1])
			info.Class = strings.TrimSpace(m[2])
			return false
		}
		if idx := strings.Index(text, ":"); idx >= 0 {
			rest := text[idx+1:]
			parts := strings.SplitN(rest, ",", 2)
			if len(parts) == 2 {
				info.StudentName = strings.TrimSpace(parts[0])
				info.Class = strings.TrimSpace(parts[1])
			}
		}
		return false
	})
	return info
}

func parseWeekInfo(doc *goquery.Document) model.WeekInfo {
	var info model.WeekInfo

	weekText := htmlutil.CleanText(doc.Find("a.UgeKnapValgt").First().Text())
	if m := weekNumberRe.FindStringSubmatch(weekText); m != nil {
		info.WeekNumber, _ = strconv.Atoi(m[1])
	}

	bodyText := doc.Text()
	if start, end, ok := dateutil.FindDateRange(bodyText); ok {
		info.StartDate = start
		info.EndDate = end
		if year, _, err := dateutil.ISOWeekYear(start); err == nil {
			info.Year = year
		}
	}

	if info.WeekNumber > 0 && info.Year > 0 {
		info.WeekKey = dateutil.WeekKey(info.Year, info.WeekNumber)
	}
	return info
}

func timeSlot(startCol, colspan int) (slot, startTime, endTime string) {
	if colspan >= 90 {
		return "All day", "08:10", "15:25"
	}
	switch {
	case startCol >= 2 && startCol <= 25:
		return "1", "08:10", "09:40"
	case startCol >= 26 && startCol <= 50:
		return "2", "10:05", "11:35"
	case startCol >= 51 && startCol <= 71:
		return "3", "12:10", "13:40"
	case startCol >= 72 && startCol <= 90:
		return "4", "13:55", "15:25"
	case startCol >= 91 && startCol <= 111:
		return "5", "15:30", "17:00"
	case startCol >= 112 && startCol <= 131:
		return "6", "17:15", "18:45"
	default:
		return "N/A", "", ""
	}
}

var subjectLevelRe = regexp.MustCompile(`^([a-zA-Z]+)(\d*|[A-Z]?)$`)

func parseSubjectCode(raw string) (subject, level, yearCode string) {
	parts := strings.Split(raw, "-")
	switch {
	case parts[0] == "Várroynd" && len(parts) >= 5:
		return parts[0] + "-" + parts[1], parts[2], parts[4]
	case len(parts) >= 4:
		return parts[0], parts[1], parts[3]
	case len(parts) == 3:
		if m := subjectLevelRe.FindStringSubmatch(parts[0]); m != nil {
			return m[1], m[2], parts[1]
		}
		return parts[0], "", parts[1]
	default:
		return raw, "", ""
	}
}

func parseLessonCell(cell *goquery.Selection, startCol, colspan int, dayName, datePart string, year int, teacherMap teachers.Map, fuzzyThreshold float64) (lesson model.Lesson, homeworkID string, warn string) {
	anchors := htmlutil.Anchors(cell.Find("a"))
	if len(anchors) < 3 {
		return model.Lesson{}, "", "lesson cell has fewer than 3 anchors, skipping"
	}

	subject, level, yearCode := parseSubjectCode(anchors[0].Text)
	teacherShort := anchors[1].Text
	room := strings.TrimPrefix(anchors[2].Text, "st.")
	room = strings.TrimSpace(room)

	lesson.Title = subject
	lesson.Level = level
	lesson.Year = dateutil.FormatAcademicYear(yearCode)
	lesson.TeacherShort = teacherShort
	lesson.Teacher = teacherMap.Resolve(teacherShort, fuzzyThreshold)
	lesson.Location = room
	lesson.DayOfWeek = dateutil.DayName(dayName)

	if iso, err := dateutil.ParseToISO(datePart, year); err == nil {
		lesson.Date = iso
	}

	slot, start, end := timeSlot(startCol, colspan)
	lesson.TimeSlot = slot
	if start != "" {
		s := start
		e := end
		lesson.StartTime = &s
		lesson.EndTime = &e
		lesson.TimeRange = start + "-" + end
	}

	lesson.Cancelled = htmlutil.AnyClassMatches(cell, cancelledClassRe)

	if span := cell.Find(lessonIDSpanSelector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return strings.HasSuffix(id, "Main")
	}).First(); span.Length() > 0 {
		id, _ := span.Attr("id")
		if len(id) > 12 {
			stripped := strings.TrimSuffix(strings.TrimPrefix(id, "MyWindow"), "Main")
			lesson.LessonID = &stripped
		}
	}

	if cell.Find(`input[type="image"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		return strings.Contains(src, "note.gif")
	}).Length() > 0 {
		lesson.HasHomeworkNote = true
		if lesson.LessonID != nil {
			homeworkID = *lesson.LessonID
		}
	}

	return lesson, homeworkID, ""
}

// fallbackAnchorRe matches "subject-level-team-year TEACH st. ROOM"
// substrings the degraded-layout fallback scans for; see fallbackParse.
var fallbackAnchorRe = regexp.MustCompile(`([A-Za-zÁÐÍÓÚÝÆØÅáðíóúýæøå]+-[A-Za-z0-9]+-[A-Za-z0-9]+-\d{4})\s+([A-Z]{2,4})\s+st\.\s*(\S+)`)
var fallbackDayRe = regexp.MustCompile(`(\S+)\s+(\d{1,2}/\d{1,2})`)

// fallbackParse is the best-effort degraded-layout scan (spec §9 OQ3): it
// only runs when the primary table walk found zero lessons, and only
// synthesizes events when both a day marker and a lesson-shaped substring
// are found in the page's raw text. It is not a contract.
func fallbackParse(doc *goquery.Document, year int, teacherMap teachers.Map, fuzzyThreshold float64) ([]model.Lesson, bool) {
	text := doc.Text()
	days := fallbackDayRe.FindAllStringSubmatch(text, -1)
	lessons := fallbackAnchorRe.FindAllStringSubmatch(text, -1)
	if len(days) == 0 || len(lessons) == 0 {
		return nil, false
	}

	var out []model.Lesson
	for i, lm := range lessons {
		dayName, datePart := "", ""
		if i < len(days) {
			dayName, datePart = days[i][1], days[i][2]
		} else {
			dayName, datePart = days[len(days)-1][1], days[len(days)-1][2]
		}

		subject, level, yearCode := parseSubjectCode(lm[1])
		teacherShort := lm[2]
		room := lm[3]

		l := model.Lesson{
			Title:        subject,
			Level:        level,
			Year:         dateutil.FormatAcademicYear(yearCode),
			DayOfWeek:    dateutil.DayName(dayName),
			Teacher:      teacherMap.Resolve(teacherShort, fuzzyThreshold),
			TeacherShort: teacherShort,
			Location:     room,
			TimeSlot:     "N/A",
		}
		if iso, err := dateutil.ParseToISO(datePart, year); err == nil {
			l.Date = iso
		}
		out = append(out, l)
	}
	return out, len(out) > 0
}
