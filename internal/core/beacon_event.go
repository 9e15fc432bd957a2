package core

import (
	"context"

	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/kcommon"
	"github.com/sugartom/nexus/internal/klogging"
	"github.com/sugartom/nexus/internal/metrics"
	"go.opencensus.io/stats"
)

// BeaconCheckEvent is the fast periodic pass: evict nodes whose heartbeat
// went stale, aggregate the rates staged since the last pass into each
// session's history, and give freed or queued demand one placement pass.
// Reschedules itself.
type BeaconCheckEvent struct {
	createTimeMs int64
}

func NewBeaconCheckEvent() *BeaconCheckEvent {
	return &BeaconCheckEvent{createTimeMs: kcommon.GetWallTimeMs()}
}

func (eve *BeaconCheckEvent) GetName() string {
	return "BeaconCheck"
}

func (eve *BeaconCheckEvent) Process(ctx context.Context, ss *SchedulerState) {
	startMs := kcommon.GetMonoTimeMs()

	ss.evictStaleNodes(ctx)
	ss.harvestStagedRates(ctx)

	changed, _ := ss.allocateUnassignedWorkloads(ctx, nil)
	ss.updateModelRoutes(ctx, changed)

	stats.Record(ctx, metrics.MBeaconElapsedMs.M(kcommon.GetMonoTimeMs()-startMs))
	ss.flushNotifications(ctx)

	kcommon.ScheduleRun(ss.Config.BeaconIntervalSec*1000, func() {
		ss.PostEvent(NewBeaconCheckEvent())
	})
}

// evictStaleNodes removes every node whose last heartbeat is older than two
// beacon intervals. Backend eviction re-queues its load and the placement
// pass right after this picks it up.
func (ss *SchedulerState) evictStaleNodes(ctx context.Context) {
	now := kcommon.GetMonoTimeMs()
	staleMs := int64(ss.Config.BeaconIntervalSec) * 2 * 1000

	for _, nodeId := range sortedNodeIdsOfBackends(ss.AllBackends) {
		backend := ss.AllBackends[nodeId]
		if now-backend.LastHeartbeatMs > staleMs {
			klogging.Warning(ctx).With("nodeId", nodeId.String()).With("silentMs", now-backend.LastHeartbeatMs).Log("EvictBackend", "backend missed heartbeats")
			ss.unregisterBackend(ctx, nodeId)
			metrics.RecordEviction(ctx, string(data.NK_Backend))
		}
	}

	var staleFrontends []data.NodeId
	for nodeId, frontend := range ss.AllFrontends {
		if now-frontend.LastHeartbeatMs > staleMs {
			staleFrontends = append(staleFrontends, nodeId)
		}
	}
	for _, nodeId := range staleFrontends {
		klogging.Warning(ctx).With("nodeId", nodeId.String()).Log("EvictFrontend", "frontend missed heartbeats")
		ss.unregisterFrontend(ctx, nodeId)
		metrics.RecordEviction(ctx, string(data.NK_Frontend))
	}
}

// harvestStagedRates sums the per backend staged rates into one observation
// per session and appends it to the session's history. When at least one
// backend reported this interval, served sessions absent from the reports
// get a zero sample, so an idle but served model decays toward zero demand
// while its backends keep reporting. A pass where no backend reported at
// all appends nothing: stats cycles are not aligned with beacon passes, and
// an empty pass means the reports have not arrived yet, not that traffic
// stopped.
func (ss *SchedulerState) harvestStagedRates(ctx context.Context) {
	observed := make(map[data.ModelSessionId]float64)
	for _, nodeId := range sortedNodeIdsOfBackends(ss.AllBackends) {
		backend := ss.AllBackends[nodeId]
		for sessionId, rate := range backend.stagedRates {
			observed[sessionId] += rate
		}
		backend.stagedRates = make(map[data.ModelSessionId]float64)
	}
	if len(observed) == 0 {
		return
	}
	for _, sessionId := range sortedModelSessionIds(ss.ModelTable) {
		info := ss.ModelTable[sessionId]
		if rate, ok := observed[sessionId]; ok {
			info.AppendRate(rate)
		} else if len(info.BackendThroughputs) > 0 {
			info.AppendRate(0)
		}
	}
}
