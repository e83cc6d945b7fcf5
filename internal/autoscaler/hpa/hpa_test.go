package hpa

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/apihub"
	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/eventbus"
	"github.com/vpsie/cluster-simulator/internal/simevents"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

func newTestHPA(t *testing.T) (*eventbus.Bus, *HPA) {
	t.Helper()
	bus := eventbus.New()
	h := New(bus, config.NetworkDelays{HPAToAPI: 1}, config.HPAConfig{SelfUpdatePeriod: 10}, zap.NewNop(), nil, simtype.NewIDGenerator())
	return bus, h
}

func testGroup(id simtype.GroupID, minSize, maxSize int) *simtype.PodGroup {
	return &simtype.PodGroup{
		ID:       id,
		Template: simtype.PodSpec{Request: simtype.Resource{CPU: 100, Memory: 100}},
		HPAProfile: &simtype.HPAProfile{
			MinSize: minSize, MaxSize: maxSize,
			ScaleUpCPUFraction: 0.8, ScaleUpMemoryFraction: 0.8,
			ScaleDownCPUFraction: 0.2, ScaleDownMemoryFraction: 0.2,
		},
	}
}

func TestScalesUpWhenGroupBelowMinSize(t *testing.T) {
	bus, h := newTestHPA(t)
	h.onAddPodGroup(simevents.AddPodGroup{Group: testGroup(1, 2, 5)})
	h.onAddPod(simevents.AddPod{Pod: simtype.NewPod(1, 1, simtype.PodSpec{}, nil)})

	var added []simevents.AddPod
	bus.Register(apihub.Key, func(now float64, ev eventbus.Event) {
		if ev.Kind == simevents.KindAddPod {
			added = append(added, ev.Payload.(simevents.AddPod))
		}
	})

	h.onTick()
	bus.RunUntil(bus.Now() + 10)

	require.Len(t, added, 1)
	require.Equal(t, simtype.GroupID(1), added[0].Pod.GroupID)
}

func TestScalesDownOversizedGroup(t *testing.T) {
	bus, h := newTestHPA(t)
	h.onAddPodGroup(simevents.AddPodGroup{Group: testGroup(1, 1, 2)})
	for _, id := range []simtype.PodID{1, 2, 3} {
		h.onAddPod(simevents.AddPod{Pod: simtype.NewPod(id, 1, simtype.PodSpec{}, nil)})
	}

	var removed []simtype.PodID
	bus.Register(apihub.Key, func(now float64, ev eventbus.Event) {
		if ev.Kind == simevents.KindRemovePod {
			removed = append(removed, ev.Payload.(simevents.RemovePod).PodID)
		}
	})

	h.onTick()
	bus.RunUntil(bus.Now() + 10)

	require.Equal(t, []simtype.PodID{3}, removed)
}

func TestRunningMetricsDriveScaleDownOnLowUtilization(t *testing.T) {
	bus, h := newTestHPA(t)
	h.onAddPodGroup(simevents.AddPodGroup{Group: testGroup(1, 1, 5)})
	for _, id := range []simtype.PodID{10, 11} {
		h.onAddPod(simevents.AddPod{Pod: simtype.NewPod(id, 1, simtype.PodSpec{}, nil)})
		h.onPodUpdateFromAgent(simevents.PodUpdateFromAgent{PodID: id, GroupID: 1, Phase: simtype.PhaseRunning, CPU: 5, Memory: 5})
	}

	var removed []simtype.PodID
	bus.Register(apihub.Key, func(now float64, ev eventbus.Event) {
		if ev.Kind == simevents.KindRemovePod {
			removed = append(removed, ev.Payload.(simevents.RemovePod).PodID)
		}
	})

	h.onTick()
	bus.RunUntil(bus.Now() + 10)

	require.Equal(t, []simtype.PodID{11}, removed)
}

func TestTerminalPhaseDecrementsAliveSet(t *testing.T) {
	_, h := newTestHPA(t)
	h.onAddPodGroup(simevents.AddPodGroup{Group: testGroup(1, 0, 5)})
	h.onAddPod(simevents.AddPod{Pod: simtype.NewPod(5, 1, simtype.PodSpec{}, nil)})
	h.onPodUpdateFromAgent(simevents.PodUpdateFromAgent{PodID: 5, GroupID: 1, Phase: simtype.PhaseRunning, CPU: 10, Memory: 10})
	h.onPodUpdateFromAgent(simevents.PodUpdateFromAgent{PodID: 5, GroupID: 1, Phase: simtype.PhaseSucceeded})

	info := h.groups[1]
	require.NotContains(t, info.AliveUIDs, simtype.PodID(5))
	require.Equal(t, 0, info.RunningPodCount)
	require.Equal(t, 0.0, info.NumeratorCPU)
}

func TestRemovePodGroupForgetsGroup(t *testing.T) {
	_, h := newTestHPA(t)
	h.onAddPodGroup(simevents.AddPodGroup{Group: testGroup(1, 0, 5)})
	h.handle(0, eventbus.Event{Kind: simevents.KindRemovePodGroup, Payload: simevents.RemovePodGroup{GroupID: 1}})

	require.NotContains(t, h.groups, simtype.GroupID(1))
}
