package core

import (
	"context"

	"github.com/sugartom/nexus/internal/common"
	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/klogging"
)

// seedStaticWorkloads assigns the lowest-index unseeded static group to a
// freshly registered backend. What does not fit on the backend goes onto
// the unassigned queue; a group is seeded at most once, its demand lives on
// in the model table afterwards.
func (ss *SchedulerState) seedStaticWorkloads(ctx context.Context, backend *BackendState) {
	groupIdx := -1
	for idx := range ss.StaticWorkloads {
		if _, seeded := ss.seededStaticGroups[idx]; !seeded {
			groupIdx = idx
			break
		}
	}
	if groupIdx < 0 {
		return
	}
	ss.seededStaticGroups[groupIdx] = common.Unit{}
	ss.AssignedStaticWorkloads[groupIdx] = backend.NodeId

	group := ss.StaticWorkloads[groupIdx]
	for _, entry := range group.Models {
		session := data.ModelSession{ModelId: entry.ModelId, Version: entry.Version, TargetConfig: entry.TargetConfig}
		sessionId := session.SessionId()
		// static sessions have no frontend subscriber yet; the throughput
		// entry below keeps them alive until one shows up
		ss.ensureModelInfo(sessionId, entry.RequestRate)

		absorb := entry.RequestRate
		if spare := backend.SpareCapacity(); absorb > spare {
			absorb = spare
		}
		if absorb > rateEpsilon {
			ss.applyPlacement(ctx, backend, sessionId, absorb)
		}
		if residual := entry.RequestRate - absorb; residual > rateEpsilon {
			ss.UnassignedWorkloads = append(ss.UnassignedWorkloads, &UnassignedWorkload{
				SessionId:   sessionId,
				RequestRate: residual,
			})
		}
	}
	ss.persistUnassigned(ctx)
	klogging.Info(ctx).With("group", groupIdx).With("nodeId", backend.NodeId.String()).With("models", len(group.Models)).Log("SeedStaticWorkloads", "static group seeded")
}
