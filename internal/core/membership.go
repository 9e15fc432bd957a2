package core

import (
	"context"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/common"
	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/kcommon"
	"github.com/sugartom/nexus/internal/kerror"
	"github.com/sugartom/nexus/internal/klogging"
	"github.com/sugartom/nexus/internal/metrics"
)

// BackendState is one registered backend in the membership table.
type BackendState struct {
	NodeId   data.NodeId
	Address  string
	Capacity float64

	// rate share per model session served by this backend; mirror of the
	// ModelInfo.BackendThroughputs entries pointing at this node
	Instances map[data.ModelSessionId]float64

	LastHeartbeatMs int64

	// per session rates reported since the last beacon check, harvested
	// and cleared by the beacon pass
	stagedRates map[data.ModelSessionId]float64
}

// AssignedLoad is the total rate currently placed on this backend.
func (bs *BackendState) AssignedLoad() float64 {
	var total float64
	for _, rate := range bs.Instances {
		total += rate
	}
	return total
}

func (bs *BackendState) SpareCapacity() float64 {
	return bs.Capacity - bs.AssignedLoad()
}

// FrontendState is one registered frontend in the membership table.
type FrontendState struct {
	NodeId  data.NodeId
	Address string

	Subscriptions map[data.ModelSessionId]common.Unit

	LastHeartbeatMs int64
}

/********************************* register ************************************/

// registerBackend adds the backend and seeds static workloads onto it.
// Returns the instance configs the backend must load immediately.
func (ss *SchedulerState) registerBackend(ctx context.Context, nodeId data.NodeId, address string, capacity float64) []*api.InstanceConfigJson {
	ss.checkIdFree(nodeId)
	if capacity <= 0 {
		panic(kerror.Create("InvalidParameter", "backend capacity must be positive").
			WithErrorCode(kerror.EC_INVALID_PARAMETER).
			With("nodeId", nodeId.String()).With("capacity", capacity))
	}
	backend := &BackendState{
		NodeId:          nodeId,
		Address:         address,
		Capacity:        capacity,
		Instances:       make(map[data.ModelSessionId]float64),
		LastHeartbeatMs: kcommon.GetMonoTimeMs(),
		stagedRates:     make(map[data.ModelSessionId]float64),
	}
	ss.AllBackends[nodeId] = backend
	klogging.Info(ctx).With("nodeId", nodeId.String()).With("address", address).With("capacity", capacity).Log("RegisterBackend", "backend joined")

	ss.seedStaticWorkloads(ctx, backend)

	// a fresh backend may be able to absorb queued demand right away
	changed, _ := ss.allocateUnassignedWorkloads(ctx, nil)
	ss.updateModelRoutes(ctx, changed)

	configs := make([]*api.InstanceConfigJson, 0, len(backend.Instances))
	for _, sessionId := range sortedSessionIds(backend.Instances) {
		configs = append(configs, &api.InstanceConfigJson{
			ModelSessionId: string(sessionId),
			RequestRate:    backend.Instances[sessionId],
		})
	}
	metrics.RecordMembership(ctx, len(ss.AllBackends), len(ss.AllFrontends))
	return configs
}

func (ss *SchedulerState) registerFrontend(ctx context.Context, nodeId data.NodeId, address string) {
	ss.checkIdFree(nodeId)
	ss.AllFrontends[nodeId] = &FrontendState{
		NodeId:          nodeId,
		Address:         address,
		Subscriptions:   make(map[data.ModelSessionId]common.Unit),
		LastHeartbeatMs: kcommon.GetMonoTimeMs(),
	}
	klogging.Info(ctx).With("nodeId", nodeId.String()).With("address", address).Log("RegisterFrontend", "frontend joined")
	metrics.RecordMembership(ctx, len(ss.AllBackends), len(ss.AllFrontends))
}

// node ids are shared across kinds: a backend and a frontend can not reuse
// the same id.
func (ss *SchedulerState) checkIdFree(nodeId data.NodeId) {
	_, isBackend := ss.AllBackends[nodeId]
	_, isFrontend := ss.AllFrontends[nodeId]
	if isBackend || isFrontend {
		panic(kerror.Create("AlreadyRegistered", "node id already in use").
			WithErrorCode(kerror.EC_CONFLICT).
			With("nodeId", nodeId.String()))
	}
}

/********************************* unregister ************************************/

// unregisterBackend removes the backend and every ModelInfo contribution
// pointing at it, inside the same critical section. The lost rate shares go
// back onto the unassigned queue; re-placement happens on the next beacon
// or epoch pass.
func (ss *SchedulerState) unregisterBackend(ctx context.Context, nodeId data.NodeId) {
	backend, ok := ss.AllBackends[nodeId]
	if !ok {
		// unregister of an absent node is a no-op
		return
	}
	delete(ss.AllBackends, nodeId)

	for _, sessionId := range sortedSessionIds(backend.Instances) {
		rate := backend.Instances[sessionId]
		if info, ok := ss.ModelTable[sessionId]; ok {
			delete(info.BackendThroughputs, nodeId)
		}
		ss.UnassignedWorkloads = append(ss.UnassignedWorkloads, &UnassignedWorkload{
			SessionId:   sessionId,
			RequestRate: rate,
		})
	}

	// the static groups seeded onto this backend stay seeded; their demand
	// was just re-queued with everything else the backend carried
	for groupIdx, owner := range ss.AssignedStaticWorkloads {
		if owner == nodeId {
			delete(ss.AssignedStaticWorkloads, groupIdx)
		}
	}

	klogging.Info(ctx).With("nodeId", nodeId.String()).With("requeued", len(backend.Instances)).Log("UnregisterBackend", "backend left")

	ss.persistUnassigned(ctx)
	// subscribers must stop dispatching to the dead backend right away
	affected := make(map[data.ModelSessionId]common.Unit)
	for sessionId := range backend.Instances {
		affected[sessionId] = common.Unit{}
	}
	ss.updateModelRoutes(ctx, affected)
	metrics.RecordMembership(ctx, len(ss.AllBackends), len(ss.AllFrontends))
}

// unregisterFrontend removes the frontend and drops its subscriptions. A
// session whose last subscriber left is garbage collected together with its
// queued demand.
func (ss *SchedulerState) unregisterFrontend(ctx context.Context, nodeId data.NodeId) {
	frontend, ok := ss.AllFrontends[nodeId]
	if !ok {
		return
	}
	delete(ss.AllFrontends, nodeId)

	for _, sessionId := range sortedSessionIdSet(frontend.Subscriptions) {
		info, ok := ss.ModelTable[sessionId]
		if !ok {
			continue
		}
		delete(info.Subscribers, nodeId)
		if len(info.Subscribers) == 0 {
			// unload from every serving backend, then collect
			for _, backendId := range sortedNodeIds(info.BackendThroughputs) {
				if backend := ss.FindBackend(backendId); backend != nil {
					delete(backend.Instances, sessionId)
					ss.notifyUnloadInstance(backend, sessionId)
				}
			}
			info.BackendThroughputs = make(map[data.NodeId]float64)
			ss.maybeDeleteModelInfo(sessionId)
			ss.Store.StoreRoutingEntry(ctx, string(sessionId), nil)
		}
	}
	ss.persistUnassigned(ctx)
	klogging.Info(ctx).With("nodeId", nodeId.String()).Log("UnregisterFrontend", "frontend left")
	metrics.RecordMembership(ctx, len(ss.AllBackends), len(ss.AllFrontends))
}

/********************************* stats / heartbeat ************************************/

// updateBackendStats stages the reported per session rates and refreshes
// the heartbeat. Aggregation into the rate history happens at the next
// beacon check, not here.
func (ss *SchedulerState) updateBackendStats(ctx context.Context, nodeId data.NodeId, modelRates map[string]float64) {
	backend := ss.FindBackend(nodeId)
	if backend == nil {
		panic(kerror.Create("UnknownNode", "stats report from unregistered backend").
			WithErrorCode(kerror.EC_NOT_FOUND).
			With("nodeId", nodeId.String()))
	}
	backend.LastHeartbeatMs = kcommon.GetMonoTimeMs()
	for sessionId, rate := range modelRates {
		backend.stagedRates[data.ModelSessionId(sessionId)] = rate
	}
}

func (ss *SchedulerState) keepAlive(ctx context.Context, nodeId data.NodeId, kind data.NodeKind) {
	now := kcommon.GetMonoTimeMs()
	switch kind {
	case data.NK_Backend:
		if backend := ss.FindBackend(nodeId); backend != nil {
			backend.LastHeartbeatMs = now
			return
		}
	case data.NK_Frontend:
		if frontend := ss.FindFrontend(nodeId); frontend != nil {
			frontend.LastHeartbeatMs = now
			return
		}
	}
	panic(kerror.Create("UnknownNode", "keepalive from unregistered node").
		WithErrorCode(kerror.EC_NOT_FOUND).
		With("nodeId", nodeId.String()).With("kind", string(kind)))
}

/********************************* load model ************************************/

// loadModel subscribes the frontend to the session, creating it and
// placing its demand when it is new. Returns the current route; a route
// with no backends means the demand is queued (soft failure).
func (ss *SchedulerState) loadModel(ctx context.Context, frontendId data.NodeId, session data.ModelSession, requestRate float64) *api.ModelRouteJson {
	frontend := ss.FindFrontend(frontendId)
	if frontend == nil {
		panic(kerror.Create("UnknownNode", "load_model from unregistered frontend").
			WithErrorCode(kerror.EC_NOT_FOUND).
			With("nodeId", frontendId.String()))
	}
	sessionId := session.SessionId()
	info, exists := ss.ModelTable[sessionId]
	if exists {
		// known session: just subscribe, the instances already run
		info.Subscribers[frontendId] = common.Unit{}
		frontend.Subscriptions[sessionId] = common.Unit{}
		if requestRate > info.RequestedRate {
			info.RequestedRate = requestRate
		}
		return ss.buildModelRoute(sessionId)
	}

	info = ss.ensureModelInfo(sessionId, requestRate)
	info.Subscribers[frontendId] = common.Unit{}
	frontend.Subscriptions[sessionId] = common.Unit{}
	ss.UnassignedWorkloads = append(ss.UnassignedWorkloads, &UnassignedWorkload{
		SessionId:   sessionId,
		RequestRate: requestRate,
	})
	changed, _ := ss.allocateUnassignedWorkloads(ctx, nil)
	ss.updateModelRoutes(ctx, changed)
	klogging.Info(ctx).With("sessionId", string(sessionId)).With("frontendId", frontendId.String()).With("requestRate", requestRate).Log("LoadModel", "new model session")
	return ss.buildModelRoute(sessionId)
}
