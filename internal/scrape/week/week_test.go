package week

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"tgadapter/internal/model"
	"tgadapter/internal/teachers"
)

func TestParseNoTableMeansNoData(t *testing.T) {
	result := Parse(`<html><body>nothing here</body></html>`, teachers.Map{}, 0.92)
	require.True(t, result.NoData)
	require.Empty(t, result.Lessons)
}

func weekShellHTML(body string) string {
	return `<html><body>
		<table><tr><td>Næmingatímatalva: Jógvan Dánielsen, 24y<table><tr><td>nested</td></tr></table></td></tr></table>
		<a class="UgeKnapValgt">Vika 13</a>
		<div>24.03.2025 - 30.03.2025</div>
		<table class="time_8_16">` + body + `</table>
	</body></html>`
}

func TestParseDayHeaderWithOneLesson(t *testing.T) {
	tm := teachers.Map{"BIJ": "Brynjálvur I. Johansen"}
	// lesson6 is deliberately used here: the cancellation marker set only
	// covers lesson1-5/7/10, so this class is a lesson cell that is NOT
	// also a cancellation indicator (see cancelledClasses).
	body := `<tr>
		<td class="lektionslinje_1">Mánadagur 24/3</td>
		<td class="lektionslinje_lesson6">
			<a>søg-A-x-2024</a><a>BIJ</a><a>st.608</a>
			<span id="MyWindow12345Main"></span>
		</td>
	</tr>`

	result := Parse(weekShellHTML(body), tm, 0.92)
	require.False(t, result.NoData)
	require.Equal(t, "Jógvan Dánielsen", result.StudentInfo.StudentName)
	require.Equal(t, "24y", result.StudentInfo.Class)
	require.Equal(t, 13, result.WeekInfo.WeekNumber)
	require.Equal(t, "2025-03-24", result.WeekInfo.StartDate)
	require.Equal(t, "2025-03-30", result.WeekInfo.EndDate)

	require.Len(t, result.Lessons, 1)
	l := result.Lessons[0]
	require.Equal(t, "søg", l.Title)
	require.Equal(t, "A", l.Level)
	require.Equal(t, "Brynjálvur I. Johansen", l.Teacher)
	require.Equal(t, "BIJ", l.TeacherShort)
	require.Equal(t, "608", l.Location)
	require.Equal(t, "Monday", l.DayOfWeek)
	require.Equal(t, "2025-03-24", l.Date)
	require.Equal(t, "1", l.TimeSlot)
	require.NotNil(t, l.StartTime)
	require.Equal(t, "08:10", *l.StartTime)
	require.NotNil(t, l.EndTime)
	require.Equal(t, "09:40", *l.EndTime)
	require.Equal(t, "08:10-09:40", l.TimeRange)
	require.False(t, l.Cancelled)
	require.NotNil(t, l.LessonID)
	require.Equal(t, "12345", *l.LessonID)
	require.False(t, l.HasHomeworkNote)
	require.Empty(t, result.HomeworkIDs)
}

func TestParseDayHeaderWithOneLessonExactShape(t *testing.T) {
	tm := teachers.Map{"BIJ": "Brynjálvur I. Johansen"}
	body := `<tr>
		<td class="lektionslinje_1">Mánadagur 24/3</td>
		<td class="lektionslinje_lesson6">
			<a>søg-A-x-2024</a><a>BIJ</a><a>st.608</a>
			<span id="MyWindow12345Main"></span>
		</td>
	</tr>`

	result := Parse(weekShellHTML(body), tm, 0.92)
	require.Len(t, result.Lessons, 1)

	start, end, lessonID := "08:10", "09:40", "12345"
	want := model.Lesson{
		Title:        "søg",
		Level:        "A",
		Year:         "2024",
		Date:         "2025-03-24",
		DayOfWeek:    "Monday",
		Teacher:      "Brynjálvur I. Johansen",
		TeacherShort: "BIJ",
		Location:     "608",
		TimeSlot:     "1",
		StartTime:    &start,
		EndTime:      &end,
		TimeRange:    "08:10-09:40",
		Cancelled:    false,
		LessonID:     &lessonID,
		HasHomeworkNote: false,
	}
	if diff := cmp.Diff(want, result.Lessons[0]); diff != "" {
		t.Errorf("lesson mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCancelledLessonWithHomeworkNote(t *testing.T) {
	body := `<tr>
		<td class="lektionslinje_1">Týsdagur 25/3</td>
		<td class="lektionslinje_lesson1 lektionslinje_lessoncancelled">
			<a>søg-A-x-2024</a><a>BIJ</a><a>st.608</a>
			<span id="MyWindow99Main"></span>
			<input type="image" src="/images/note.gif">
		</td>
	</tr>`

	result := Parse(weekShellHTML(body), teachers.Map{}, 0.92)
	require.Len(t, result.Lessons, 1)
	l := result.Lessons[0]
	require.True(t, l.Cancelled)
	require.True(t, l.HasHomeworkNote)
	require.NotNil(t, l.LessonID)
	require.Equal(t, "99", *l.LessonID)
	require.Equal(t, []string{"99"}, result.HomeworkIDs)
	// identity fallback: empty teacher map leaves the bare initials
	require.Equal(t, "BIJ", l.Teacher)
}

func TestParseLessonCellWithTooFewAnchorsWarnsAndSkips(t *testing.T) {
	body := `<tr>
		<td class="lektionslinje_1">Mánadagur 24/3</td>
		<td class="lektionslinje_lesson1"><a>only-one</a></td>
	</tr>`

	result := Parse(weekShellHTML(body), teachers.Map{}, 0.92)
	require.Empty(t, result.Lessons)
	require.Len(t, result.Warnings, 1)
}

func TestTimeSlotBoundaries(t *testing.T) {
	cases := []struct {
		col  int
		slot string
	}{
		{1, "N/A"},
		{2, "1"},
		{25, "1"},
		{26, "2"},
		{71, "3"},
		{91, "5"},
		{131, "6"},
		{132, "N/A"},
	}
	for _, c := range cases {
		slot, _, _ := timeSlot(c.col, 1)
		require.Equal(t, c.slot, slot, "col %d", c.col)
	}
	slot, start, end := timeSlot(2, 90)
	require.Equal(t, "All day", slot)
	require.Equal(t, "08:10", start)
	require.Equal(t, "15:25", end)
}

func TestParseSubjectCodeVarroynd(t *testing.T) {
	subject, level, yearCode := parseSubjectCode("Várroynd-søg-A-x-2024")
	require.Equal(t, "Várroynd-søg", subject)
	require.Equal(t, "A", level)
	require.Equal(t, "2024", yearCode)
}

func TestParseSubjectCodeStandardFourPart(t *testing.T) {
	subject, level, yearCode := parseSubjectCode("søg-A-x-2024")
	require.Equal(t, "søg", subject)
	require.Equal(t, "A", level)
	require.Equal(t, "2024", yearCode)
}

func TestParseSubjectCodeFallback(t *testing.T) {
	subject, level, yearCode := parseSubjectCode("justone")
	require.Equal(t, "justone", subject)
	require.Empty(t, level)
	require.Empty(t, yearCode)
}
