package offsets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverDedupsAndSorts(t *testing.T) {
	html := `<html><body>
		<a onclick="go(v=2)">next</a>
		<a onclick="go(v=-1)">prev</a>
		<a onclick="go(v=0)">current</a>
		<a onclick="go(v=2)">dup</a>
		<a href="#">no onclick</a>
	</body></html>`
	require.Equal(t, []int{-1, 0, 2}, Discover(html))
}

func TestDiscoverNoMatchesReturnsEmpty(t *testing.T) {
	html := `<html><body><a onclick="doSomethingElse()">x</a></body></html>`
	require.Empty(t, Discover(html))
}
