package traceio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

func TestParseTraceParsesOrderedEntries(t *testing.T) {
	input := strings.Join([]string{
		"0;0;{5;0;{100;200;200;400;10;{0;100;200;30}};{};{}}",
		"",
		"  10;0;{1;30;{50;50;100;100;0;{1;10;10}};{};{}}  ",
	}, "\n")

	trace, err := ParseTrace(strings.NewReader(input), simtype.NewIDGenerator())
	require.NoError(t, err)
	require.Len(t, trace.Entries, 2)
	require.Equal(t, 0.0, trace.Entries[0].SubmitTime)
	require.Equal(t, 10.0, trace.Entries[1].SubmitTime)
	require.Equal(t, 5, trace.Entries[0].Group.Count)
	require.NotEqual(t, trace.Entries[0].Group.ID, trace.Entries[1].Group.ID)
}

func TestParseTraceRejectsUnknownEnumIndex(t *testing.T) {
	_, err := ParseTrace(strings.NewReader("0;9;{}"), simtype.NewIDGenerator())
	require.Error(t, err)
}

func TestParseTraceRejectsMalformedLine(t *testing.T) {
	_, err := ParseTrace(strings.NewReader("not-a-number-without-semicolon"), simtype.NewIDGenerator())
	require.Error(t, err)
}
