package teachers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSelectOptions(t *testing.T) {
	html := `<select>
		<option value="-1">-- choose --</option>
		<option value="">empty</option>
		<option value="BIJ">Brynjálvur I. Johansen</option>
		<option value="ABC">Anna B. Clausen</option>
	</select>`
	m := Parse(html)
	require.Equal(t, "Brynjálvur I. Johansen", m["BIJ"])
	require.Equal(t, "Anna B. Clausen", m["ABC"])
	require.Len(t, m, 2)
}

func TestParseRegexFallbackWithLink(t *testing.T) {
	html := `Brynjálvur I. Johansen ( <a href="#">BIJ</a> )`
	m := Parse(html)
	require.Equal(t, "Brynjálvur I. Johansen", m["BIJ"])
}

func TestParseRegexFallbackNoLink(t *testing.T) {
	html := `Anna B. Clausen ( ABC )`
	m := Parse(html)
	require.Equal(t, "Anna B. Clausen", m["ABC"])
}

func TestResolveIdentityFallback(t *testing.T) {
	m := Map{"BIJ": "Brynjálvur I. Johansen"}
	require.Equal(t, "ZZZ", m.Resolve("ZZZ", 0.92))
}

func TestResolveExactMatch(t *testing.T) {
	m := Map{"BIJ": "Brynjálvur I. Johansen"}
	require.Equal(t, "Brynjálvur I. Johansen", m.Resolve("BIJ", 0.92))
}

func TestResolveFuzzyRecovery(t *testing.T) {
	m := Map{"BIJ": "Brynjálvur I. Johansen"}
	// one-character typo, should still clear a permissive threshold
	got := m.Resolve("BIK", 0.80)
	require.Equal(t, "Brynjálvur I. Johansen", got)
}
