package traceio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindMatchingBrace(t *testing.T) {
	cases := []struct {
		s     string
		open  int
		close int
	}{
		{"{}", 0, 1},
		{"{1}", 0, 2},
		{"{1;{2};3}", 0, 8},
		{"{1;{2};3}", 3, 5},
		{"{{{}{}}{}}", 0, 9},
		{"{{{}{}}{}}", 1, 6},
		{"{{{}{}}{}}", 2, 3},
	}
	for _, c := range cases {
		got, err := findMatchingBrace(c.s, c.open)
		require.NoError(t, err)
		require.Equal(t, c.close, got, "findMatchingBrace(%q, %d)", c.s, c.open)
	}
}

func TestFindMatchingBraceUnmatched(t *testing.T) {
	_, err := findMatchingBrace("{1;2", 0)
	require.Error(t, err)
}

func TestSplitTopLevelIgnoresNestedSemicolons(t *testing.T) {
	require.Equal(t, []string{"a", "{b;c}", "d"}, splitTopLevel("a;{b;c};d"))
	require.Equal(t, []string{""}, splitTopLevel(""))
	require.Equal(t, []string{"{}", "{1;2}"}, splitTopLevel("{};{1;2}"))
}

func TestStripBraces(t *testing.T) {
	inner, err := stripBraces("{1;2;3}")
	require.NoError(t, err)
	require.Equal(t, "1;2;3", inner)

	empty, err := stripBraces("{}")
	require.NoError(t, err)
	require.Equal(t, "", empty)

	_, err = stripBraces("1;2;3")
	require.Error(t, err)
}
