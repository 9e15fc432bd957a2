package core

import (
	"context"
	"testing"
	"time"

	"github.com/sugartom/nexus/internal/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochGrowsSupplyWithDemand(t *testing.T) {
	setup := newTestSetup(t)
	setup.RunWith(func() {
		ctx := context.Background()
		ss := setup.NewScheduler(ctx)
		defer ss.StopAndWaitForExit(ctx)

		ss.RegisterNode(1, data.NK_Backend, "10.0.0.1:8001", 100)
		ss.RegisterNode(10, data.NK_Frontend, "10.0.0.10:9001", 0)
		ss.LoadModel(10, data.ModelSession{ModelId: "resnet", Version: "1"}, 40)

		// observed rate runs at double the declared rate across an epoch
		for i := 0; i < 6; i++ {
			ss.UpdateBackendStats(1, map[string]float64{"resnet:1": 80})
			setup.tick(ctx, ss, []data.NodeId{1}, []data.NodeId{10})
		}

		inspect(ss, func(ss *SchedulerState) {
			assert.InDelta(t, 80.0, ss.ModelTable["resnet:1"].TotalThroughput(), 1e-6)
			assert.InDelta(t, 80.0, ss.AllBackends[1].Instances["resnet:1"], 1e-6)
		})
	})
}

func TestEpochShrinksOnLowDemand(t *testing.T) {
	setup := newTestSetup(t)
	setup.RunWith(func() {
		ctx := context.Background()
		ss := setup.NewScheduler(ctx)
		defer ss.StopAndWaitForExit(ctx)

		ss.RegisterNode(1, data.NK_Backend, "10.0.0.1:8001", 100)
		ss.RegisterNode(10, data.NK_Frontend, "10.0.0.10:9001", 0)
		ss.LoadModel(10, data.ModelSession{ModelId: "resnet", Version: "1"}, 40)

		// observed rate far below the allocation
		for i := 0; i < 6; i++ {
			ss.UpdateBackendStats(1, map[string]float64{"resnet:1": 10})
			setup.tick(ctx, ss, []data.NodeId{1}, []data.NodeId{10})
		}

		inspect(ss, func(ss *SchedulerState) {
			assert.InDelta(t, 10.0, ss.ModelTable["resnet:1"].TotalThroughput(), 1e-6)
		})
	})
}

func TestEpochHoldsInsideHysteresisBand(t *testing.T) {
	setup := newTestSetup(t)
	setup.RunWith(func() {
		ctx := context.Background()
		ss := setup.NewScheduler(ctx)
		defer ss.StopAndWaitForExit(ctx)

		ss.RegisterNode(1, data.NK_Backend, "10.0.0.1:8001", 100)
		ss.RegisterNode(10, data.NK_Frontend, "10.0.0.10:9001", 0)
		ss.LoadModel(10, data.ModelSession{ModelId: "resnet", Version: "1"}, 40)

		// 38 observed vs 40 allocated: inside the 10% band, nothing moves
		for i := 0; i < 12; i++ {
			ss.UpdateBackendStats(1, map[string]float64{"resnet:1": 38})
			setup.tick(ctx, ss, []data.NodeId{1}, []data.NodeId{10})
		}

		inspect(ss, func(ss *SchedulerState) {
			assert.InDelta(t, 40.0, ss.ModelTable["resnet:1"].TotalThroughput(), 1e-6)
		})
		// no unload was ever issued
		assert.Zero(t, setup.Delegates.UnloadCount(1))
	})
}

// Full lifecycle: register, load, scale-out candidate joins without causing
// churn, then the serving backend dies and the session fails over.
func TestSchedulerEndToEnd(t *testing.T) {
	setup := newTestSetup(t)
	setup.RunWith(func() {
		ctx := context.Background()
		ss := setup.NewScheduler(ctx)
		defer ss.StopAndWaitForExit(ctx)

		ss.RegisterNode(1, data.NK_Backend, "10.0.0.1:8001", 100)
		ss.RegisterNode(10, data.NK_Frontend, "10.0.0.10:9001", 0)

		route := ss.LoadModel(10, data.ModelSession{ModelId: "resnet", Version: "1"}, 40)
		require.Len(t, route.Backends, 1)
		assert.Equal(t, uint32(1), route.Backends[0].NodeId)

		// a second backend joins; the session has no reason to move
		ss.RegisterNode(2, data.NK_Backend, "10.0.0.2:8001", 100)
		for i := 0; i < 6; i++ {
			ss.UpdateBackendStats(1, map[string]float64{"resnet:1": 40})
			ss.UpdateBackendStats(2, nil)
			setup.tick(ctx, ss, []data.NodeId{1, 2}, []data.NodeId{10})
		}
		inspect(ss, func(ss *SchedulerState) {
			assert.InDelta(t, 40.0, ss.AllBackends[1].Instances["resnet:1"], 1e-6)
			assert.Empty(t, ss.AllBackends[2].Instances)
		})

		// backend 1 dies; the session fails over to backend 2
		for i := 0; i < 4; i++ {
			setup.tick(ctx, ss, []data.NodeId{2}, []data.NodeId{10})
		}
		inspect(ss, func(ss *SchedulerState) {
			assert.NotContains(t, ss.AllBackends, data.NodeId(1))
			assert.InDelta(t, 40.0, ss.AllBackends[2].Instances["resnet:1"], 1e-6)
			assert.Empty(t, ss.UnassignedWorkloads)
		})
		assert.Eventually(t, func() bool {
			pushed := setup.Delegates.LastPushedRoute(10, "resnet:1")
			return pushed != nil && len(pushed.Backends) == 1 && pushed.Backends[0].NodeId == 2
		}, time.Second, 5*time.Millisecond)
	})
}
