package homework

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMissingLessonIDYieldsEmpty(t *testing.T) {
	id, text := Parse(`<html><body><p><b>Heimaarbeiði</b><br>Read pages 1-10</p></body></html>`)
	require.Empty(t, id)
	require.Empty(t, text)
}

func TestParseNoHomeworkHeaderYieldsEmptyText(t *testing.T) {
	id, text := Parse(`<html><body>
		<input type="hidden" id="LektionsID123" value="99">
		<p>Nothing relevant here</p>
	</body></html>`)
	require.Equal(t, "99", id)
	require.Empty(t, text)
}

func TestParseSimpleHomework(t *testing.T) {
	id, text := Parse(`<html><body>
		<input type="hidden" id="LektionsID1" value="42">
		<p><b>Heimaarbeiði</b><br>Read pages 1-10 and answer the questions.</p>
	</body></html>`)
	require.Equal(t, "42", id)
	require.Equal(t, "Read pages 1-10 and answer the questions.", text)
}

func TestParseHomeworkWithFormatting(t *testing.T) {
	id, text := Parse(`<html><body>
		<input type="hidden" id="LektionsID1" value="7">
		<p><b>Heimaarbeiði</b><br>Finish <b>chapter 3</b> and read <i>chapter 4</i>.<br>Bring your book.</p>
	</body></html>`)
	require.Equal(t, "7", id)
	require.Equal(t, "Finish **chapter 3** and read *chapter 4*.\nBring your book.", text)
}

func TestParseOnlyFirstBRAfterHeaderSuppressed(t *testing.T) {
	id, text := Parse(`<html><body>
		<input type="hidden" id="LektionsID1" value="7">
		<p><b>Heimaarbeiði</b><br><br>Second line starts after a blank line.</p>
	</body></html>`)
	require.Equal(t, "7", id)
	// The leading blank line survives the header/first-br suppression but
	// is then trimmed away by the final whitespace cleanup.
	require.Equal(t, "Second line starts after a blank line.", text)
}
