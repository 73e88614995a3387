package dateutil

import "testing"

import "github.com/stretchr/testify/require"

func TestParseToISO(t *testing.T) {
	cases := []struct {
		name        string
		in          string
		defaultYear int
		want        string
	}{
		{"period full", "24.3.2025", 0, "2025-03-24"},
		{"period short uses default year", "24.3", 2025, "2025-03-24"},
		{"hyphen", "2025-03-24", 0, "2025-03-24"},
		{"slash with year", "24/3-2025", 0, "2025-03-24"},
		{"slash short uses default year", "24/3", 2025, "2025-03-24"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseToISO(c.in, c.defaultYear)
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestFindDateRange(t *testing.T) {
	start, end, ok := FindDateRange("Vika 13: 24.3.2025 - 30.3.2025")
	require.True(t, ok)
	require.Equal(t, "2025-03-24", start)
	require.Equal(t, "2025-03-30", end)
}

func TestFindDateRangeAbsent(t *testing.T) {
	_, _, ok := FindDateRange("no date here")
	require.False(t, ok)
}

func TestISOWeekYear(t *testing.T) {
	year, week, err := ISOWeekYear("2025-03-24")
	require.NoError(t, err)
	require.Equal(t, 2025, year)
	require.Equal(t, 13, week)
}

func TestWeekKey(t *testing.T) {
	require.Equal(t, "2025-W13", WeekKey(2025, 13))
	require.Equal(t, "2025-W01", WeekKey(2025, 1))
}

func TestFormatAcademicYear(t *testing.T) {
	require.Equal(t, "2024-2025", FormatAcademicYear("2425"))
	require.Equal(t, "2425x", FormatAcademicYear("2425x"))
	require.Equal(t, "2426", FormatAcademicYear("2426"))
	require.Equal(t, "", FormatAcademicYear(""))
}

func TestDayName(t *testing.T) {
	require.Equal(t, "Monday", DayName("Mánadagur"))
	require.Equal(t, "Unknown", DayName("Unknown"))
}
