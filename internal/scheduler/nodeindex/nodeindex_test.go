package nodeindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

func TestQueryReturnsNodesMeetingBothDimensions(t *testing.T) {
	idx := New()
	idx.Insert(1, simtype.Resource{CPU: 1000, Memory: 1000})
	idx.Insert(2, simtype.Resource{CPU: 2000, Memory: 500})
	idx.Insert(3, simtype.Resource{CPU: 3000, Memory: 3000})

	got := idx.Query(simtype.Resource{CPU: 1500, Memory: 1000})
	require.ElementsMatch(t, []simtype.NodeID{3}, got)
}

func TestQueryEmptyWhenNoneFit(t *testing.T) {
	idx := New()
	idx.Insert(1, simtype.Resource{CPU: 100, Memory: 100})
	require.Empty(t, idx.Query(simtype.Resource{CPU: 1000, Memory: 1000}))
}

func TestUpdateRepositions(t *testing.T) {
	idx := New()
	idx.Insert(1, simtype.Resource{CPU: 100, Memory: 100})
	require.Empty(t, idx.Query(simtype.Resource{CPU: 1000, Memory: 1000}))

	idx.Update(1, simtype.Resource{CPU: 2000, Memory: 2000})
	got := idx.Query(simtype.Resource{CPU: 1000, Memory: 1000})
	require.Equal(t, []simtype.NodeID{1}, got)
}

func TestRemove(t *testing.T) {
	idx := New()
	idx.Insert(1, simtype.Resource{CPU: 1000, Memory: 1000})
	idx.Remove(1)
	require.False(t, idx.Contains(1))
	require.Equal(t, 0, idx.Len())
}
