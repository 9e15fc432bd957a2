package core

import (
	"context"
	"sort"

	"github.com/sugartom/nexus/internal/common"
	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/klogging"
	"github.com/sugartom/nexus/internal/metrics"
	"go.opencensus.io/stats"
)

// rates are float sums; comparisons go through this epsilon so repeated
// add/remove cycles can not flip a decision on noise
const rateEpsilon = 1e-6

// placementCandidate is the outcome of one FindBestBackend call: where to
// place and how much of the asked rate fits there.
type placementCandidate struct {
	backend    *BackendState
	absorbRate float64
}

// findBestBackend picks the backend with the most spare capacity, ties
// broken by lowest node id. Pure: no state is mutated. Returns nil only
// when no backend has spare capacity above epsilon (skip is excluded from
// consideration). The returned absorbRate may be less than rate; the caller
// owns the residual.
func (ss *SchedulerState) findBestBackend(rate float64, skip map[data.NodeId]common.Unit) *placementCandidate {
	var best *BackendState
	for _, nodeId := range sortedNodeIdsOfBackends(ss.AllBackends) {
		if _, excluded := skip[nodeId]; excluded {
			continue
		}
		backend := ss.AllBackends[nodeId]
		if backend.SpareCapacity() <= rateEpsilon {
			continue
		}
		// iteration is in ascending id order, so strict greater-than keeps
		// the lowest id on ties
		if best == nil || backend.SpareCapacity() > best.SpareCapacity()+rateEpsilon {
			best = backend
		}
	}
	if best == nil {
		return nil
	}
	absorb := rate
	if spare := best.SpareCapacity(); absorb > spare {
		absorb = spare
	}
	return &placementCandidate{backend: best, absorbRate: absorb}
}

// applyPlacement mutates both sides of the assignment: the backend's
// instance map and the session's throughput map stay mirrored.
func (ss *SchedulerState) applyPlacement(ctx context.Context, backend *BackendState, sessionId data.ModelSessionId, rate float64) {
	backend.Instances[sessionId] += rate
	info := ss.ensureModelInfo(sessionId, 0)
	info.BackendThroughputs[backend.NodeId] += rate
	// load is idempotent on the backend side: a second call for the same
	// session just updates the rate share
	ss.notifyLoadInstance(backend, sessionId, info.BackendThroughputs[backend.NodeId])
	stats.Record(ctx, metrics.MPlacements.M(1))
}

// allocateUnassignedWorkloads drains as much of the queue as fits. Entries
// that fit only partially leave their residual on the queue; an entry that
// fits nowhere stays whole. Demand is never dropped here. Returns the
// sessions whose routes changed and the backends that took on new load.
func (ss *SchedulerState) allocateUnassignedWorkloads(ctx context.Context, skip map[data.NodeId]common.Unit) (map[data.ModelSessionId]common.Unit, map[data.NodeId]common.Unit) {
	changed := make(map[data.ModelSessionId]common.Unit)
	touched := make(map[data.NodeId]common.Unit)
	var remaining []*UnassignedWorkload
	for _, wl := range ss.UnassignedWorkloads {
		if _, exists := ss.ModelTable[wl.SessionId]; !exists {
			// session was garbage collected while queued
			continue
		}
		rate := wl.RequestRate
		for rate > rateEpsilon {
			candidate := ss.findBestBackend(rate, skip)
			if candidate == nil {
				break
			}
			ss.applyPlacement(ctx, candidate.backend, wl.SessionId, candidate.absorbRate)
			changed[wl.SessionId] = common.Unit{}
			touched[candidate.backend.NodeId] = common.Unit{}
			rate -= candidate.absorbRate
		}
		if rate > rateEpsilon {
			remaining = append(remaining, &UnassignedWorkload{SessionId: wl.SessionId, RequestRate: rate})
		}
	}
	ss.UnassignedWorkloads = remaining
	ss.persistUnassigned(ctx)
	stats.Record(ctx, metrics.MUnassignedDepth.M(int64(len(ss.UnassignedWorkloads))))
	if len(changed) > 0 {
		klogging.Debug(ctx).With("changedSessions", len(changed)).With("changedBackends", len(touched)).With("stillQueued", len(ss.UnassignedWorkloads)).Log("AllocateUnassigned", "placement pass done")
	}
	return changed, touched
}

/********************************* iteration order ************************************/

// Map iteration order is random in Go; every scheduling decision iterates
// through these so identical state yields identical placement.

func sortedNodeIdsOfBackends(m map[data.NodeId]*BackendState) []data.NodeId {
	ids := make([]data.NodeId, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedNodeIds(m map[data.NodeId]float64) []data.NodeId {
	ids := make([]data.NodeId, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedSessionIds(m map[data.ModelSessionId]float64) []data.ModelSessionId {
	ids := make([]data.ModelSessionId, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedSessionIdSet(m map[data.ModelSessionId]common.Unit) []data.ModelSessionId {
	ids := make([]data.ModelSessionId, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedModelSessionIds(m map[data.ModelSessionId]*ModelInfo) []data.ModelSessionId {
	ids := make([]data.ModelSessionId, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
