package queue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

func TestActiveByIDOrdering(t *testing.T) {
	q := NewActive(ByID)
	q.Push(3)
	q.Push(1)
	q.Push(2)
	var order []simtype.PodID
	for q.Len() > 0 {
		id, _ := q.TryPop()
		order = append(order, id)
	}
	require.Equal(t, []simtype.PodID{1, 2, 3}, order)
}

func TestActiveByPriorityThenID(t *testing.T) {
	priorities := map[simtype.PodID]int64{1: 5, 2: 10, 3: 10}
	q := NewActive(ByPriorityThenID(func(id simtype.PodID) int64 { return priorities[id] }))
	q.Push(1)
	q.Push(2)
	q.Push(3)
	id, _ := q.TryPop()
	require.Equal(t, simtype.PodID(2), id) // priority 10, lower id wins tie
	id, _ = q.TryPop()
	require.Equal(t, simtype.PodID(3), id)
	id, _ = q.TryPop()
	require.Equal(t, simtype.PodID(1), id)
}

func TestActiveTryRemove(t *testing.T) {
	q := NewActive(ByID)
	q.Push(1)
	q.Push(2)
	require.True(t, q.TryRemove(1))
	require.False(t, q.TryRemove(1))
	require.True(t, q.Contains(2))
	id, ok := q.TryPop()
	require.True(t, ok)
	require.Equal(t, simtype.PodID(2), id)
}

func TestActivePushIsIdempotent(t *testing.T) {
	q := NewActive(ByID)
	q.Push(1)
	q.Push(1)
	require.Equal(t, 1, q.Len())
}

func TestTimeQueueDrainReady(t *testing.T) {
	q := NewTimeQueue()
	q.Push(1, 5)
	q.Push(2, 10)
	q.Push(3, 3)
	ready := q.DrainReady(5)
	require.Equal(t, []simtype.PodID{3, 1}, ready)
	require.Equal(t, 1, q.Len())
}

func TestTimeQueueTryRemove(t *testing.T) {
	q := NewTimeQueue()
	q.Push(1, 5)
	require.True(t, q.TryRemove(1))
	require.False(t, q.TryRemove(1))
	require.Empty(t, q.DrainReady(100))
}

func TestTimeQueuePushReplacesReleaseTime(t *testing.T) {
	q := NewTimeQueue()
	q.Push(1, 100)
	q.Push(1, 1)
	ready := q.DrainReady(1)
	require.Equal(t, []simtype.PodID{1}, ready)
}
