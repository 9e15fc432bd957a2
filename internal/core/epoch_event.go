package core

import (
	"context"

	"github.com/sugartom/nexus/internal/common"
	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/kcommon"
	"github.com/sugartom/nexus/internal/klogging"
	"github.com/sugartom/nexus/internal/metrics"
	"go.opencensus.io/stats"
)

// EpochScheduleEvent is the slow periodic pass: reconcile each session's
// allocated supply against smoothed demand. At most one adjustment per
// session per epoch, grow before shrink, shrink only past the hysteresis
// band. Reschedules itself.
type EpochScheduleEvent struct {
	createTimeMs int64
}

func NewEpochScheduleEvent() *EpochScheduleEvent {
	return &EpochScheduleEvent{createTimeMs: kcommon.GetWallTimeMs()}
}

func (eve *EpochScheduleEvent) GetName() string {
	return "EpochSchedule"
}

func (eve *EpochScheduleEvent) Process(ctx context.Context, ss *SchedulerState) {
	startMs := kcommon.GetMonoTimeMs()
	changed := make(map[data.ModelSessionId]common.Unit)

	for _, sessionId := range sortedModelSessionIds(ss.ModelTable) {
		info := ss.ModelTable[sessionId]
		demand := ss.DemandPolicy(info.RateHistory, info.RequestedRate)
		supply := info.TotalThroughput()
		pending := ss.pendingUnassignedRate(sessionId)

		if demand > supply+pending+rateEpsilon {
			// pending queued rate counts as supply in flight, otherwise the
			// same gap would be enqueued again every epoch
			gap := demand - supply - pending
			ss.UnassignedWorkloads = append(ss.UnassignedWorkloads, &UnassignedWorkload{
				SessionId:   sessionId,
				RequestRate: gap,
			})
			klogging.Info(ctx).With("sessionId", string(sessionId)).With("demand", demand).With("supply", supply).With("gap", gap).Log("EpochGrow", "demand outgrew supply")
			continue
		}
		if supply > demand*(1+ss.Config.ShrinkHysteresis)+rateEpsilon {
			if ss.shrinkSession(ctx, info, supply-demand) {
				changed[sessionId] = common.Unit{}
			}
		}
	}

	allocated, _ := ss.allocateUnassignedWorkloads(ctx, nil)
	for sessionId := range allocated {
		changed[sessionId] = common.Unit{}
	}
	ss.updateModelRoutes(ctx, changed)
	ss.displayModelTable(ctx)

	stats.Record(ctx, metrics.MEpochElapsedMs.M(kcommon.GetMonoTimeMs()-startMs))
	ss.flushNotifications(ctx)

	kcommon.ScheduleRun(ss.Config.EpochIntervalSec*1000, func() {
		ss.PostEvent(NewEpochScheduleEvent())
	})
}

// shrinkSession trims excess supply off the largest contributor only.
// Taking from one backend per epoch keeps the adjustment small and
// reversible; the hysteresis band upstream already filtered out noise.
func (ss *SchedulerState) shrinkSession(ctx context.Context, info *ModelInfo, excess float64) bool {
	var largest data.NodeId
	var largestRate float64
	for _, nodeId := range sortedNodeIds(info.BackendThroughputs) {
		if rate := info.BackendThroughputs[nodeId]; rate > largestRate+rateEpsilon {
			largest, largestRate = nodeId, rate
		}
	}
	if largestRate <= rateEpsilon {
		return false
	}
	backend := ss.FindBackend(largest)
	if backend == nil {
		klogging.Fatal(ctx).With("sessionId", string(info.SessionId)).With("nodeId", largest.String()).Log("ShrinkSession", "throughput contribution references unregistered backend")
		return false
	}

	trim := excess
	if trim >= largestRate-rateEpsilon {
		// contributor drops to zero: unload the instance entirely
		delete(info.BackendThroughputs, largest)
		delete(backend.Instances, info.SessionId)
		ss.notifyUnloadInstance(backend, info.SessionId)
		klogging.Info(ctx).With("sessionId", string(info.SessionId)).With("nodeId", largest.String()).With("freed", largestRate).Log("EpochShrink", "instance unloaded")
		return true
	}
	info.BackendThroughputs[largest] = largestRate - trim
	backend.Instances[info.SessionId] = largestRate - trim
	ss.notifyLoadInstance(backend, info.SessionId, largestRate-trim)
	klogging.Info(ctx).With("sessionId", string(info.SessionId)).With("nodeId", largest.String()).With("trimmed", trim).Log("EpochShrink", "rate share reduced")
	return true
}

// displayModelTable dumps the model table at debug level after every epoch.
func (ss *SchedulerState) displayModelTable(ctx context.Context) {
	for _, sessionId := range sortedModelSessionIds(ss.ModelTable) {
		info := ss.ModelTable[sessionId]
		demand := ss.DemandPolicy(info.RateHistory, info.RequestedRate)
		klogging.Debug(ctx).
			With("sessionId", string(sessionId)).
			With("demand", demand).
			With("supply", info.TotalThroughput()).
			With("backends", len(info.BackendThroughputs)).
			With("subscribers", len(info.Subscribers)).
			With("state", info.ServedStateFor(demand)).
			Log("ModelTable", "epoch summary")
	}
}
