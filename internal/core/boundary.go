package core

import (
	"context"
	"sort"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/kcommon"
	"github.com/sugartom/nexus/internal/kerror"
)

// Exported operations of the scheduler. Each one enters the run loop via
// PostActionAndWait; a kerror panic raised inside the critical section is
// caught there and re-raised on the calling goroutine, so the run loop
// itself never dies on a bad request.

func (ss *SchedulerState) runInLoop(name string, fn func(ctx context.Context, ss *SchedulerState)) {
	var ke *kerror.Kerror
	ss.PostActionAndWait(name, func(ctx context.Context, ss *SchedulerState) {
		ke = kcommon.TryCatchRun(ctx, func() {
			fn(ctx, ss)
		})
	})
	if ke != nil {
		panic(ke)
	}
}

// RegisterNode registers a backend or frontend. Backends get back the
// instance configs seeded onto them.
func (ss *SchedulerState) RegisterNode(nodeId data.NodeId, kind data.NodeKind, address string, capacity float64) []*api.InstanceConfigJson {
	var configs []*api.InstanceConfigJson
	ss.runInLoop("RegisterNode", func(ctx context.Context, ss *SchedulerState) {
		switch kind {
		case data.NK_Backend:
			configs = ss.registerBackend(ctx, nodeId, address, capacity)
		case data.NK_Frontend:
			ss.registerFrontend(ctx, nodeId, address)
		default:
			panic(kerror.Create("InvalidParameter", "unknown node kind").
				WithErrorCode(kerror.EC_INVALID_PARAMETER).
				With("kind", string(kind)))
		}
	})
	return configs
}

// Unregister removes a node. Unregistering an absent node succeeds.
func (ss *SchedulerState) Unregister(nodeId data.NodeId, kind data.NodeKind) {
	ss.runInLoop("Unregister", func(ctx context.Context, ss *SchedulerState) {
		switch kind {
		case data.NK_Backend:
			ss.unregisterBackend(ctx, nodeId)
		case data.NK_Frontend:
			ss.unregisterFrontend(ctx, nodeId)
		default:
			panic(kerror.Create("InvalidParameter", "unknown node kind").
				WithErrorCode(kerror.EC_INVALID_PARAMETER).
				With("kind", string(kind)))
		}
	})
}

func (ss *SchedulerState) UpdateBackendStats(nodeId data.NodeId, modelRates map[string]float64) {
	ss.runInLoop("UpdateBackendStats", func(ctx context.Context, ss *SchedulerState) {
		ss.updateBackendStats(ctx, nodeId, modelRates)
	})
}

func (ss *SchedulerState) KeepAlive(nodeId data.NodeId, kind data.NodeKind) {
	ss.runInLoop("KeepAlive", func(ctx context.Context, ss *SchedulerState) {
		ss.keepAlive(ctx, nodeId, kind)
	})
}

func (ss *SchedulerState) LoadModel(frontendId data.NodeId, session data.ModelSession, requestRate float64) *api.ModelRouteJson {
	var route *api.ModelRouteJson
	ss.runInLoop("LoadModel", func(ctx context.Context, ss *SchedulerState) {
		route = ss.loadModel(ctx, frontendId, session, requestRate)
	})
	return route
}

// GetModelRoute returns the current route for a session id. A well-formed
// id with no table entry yields an empty route; a malformed id panics
// InvalidModelSession.
func (ss *SchedulerState) GetModelRoute(sessionId string) *api.ModelRouteJson {
	session := data.ParseModelSessionId(sessionId)
	var route *api.ModelRouteJson
	ss.runInLoop("GetModelRoute", func(ctx context.Context, ss *SchedulerState) {
		route = ss.buildModelRoute(session.SessionId())
	})
	return route
}

// BuildStatus renders a snapshot of the whole scheduler state.
func (ss *SchedulerState) BuildStatus(version string) *api.GetStatusResponse {
	resp := &api.GetStatusResponse{Version: version}
	ss.runInLoop("BuildStatus", func(ctx context.Context, ss *SchedulerState) {
		for _, nodeId := range sortedNodeIdsOfBackends(ss.AllBackends) {
			backend := ss.AllBackends[nodeId]
			status := &api.BackendStatus{
				NodeId:          uint32(nodeId),
				Address:         backend.Address,
				Capacity:        backend.Capacity,
				AssignedLoad:    backend.AssignedLoad(),
				LastHeartbeatMs: backend.LastHeartbeatMs,
			}
			for _, sessionId := range sortedSessionIds(backend.Instances) {
				status.Instances = append(status.Instances, &api.InstanceConfigJson{
					ModelSessionId: string(sessionId),
					RequestRate:    backend.Instances[sessionId],
				})
			}
			resp.Backends = append(resp.Backends, status)
		}
		for nodeId, frontend := range ss.AllFrontends {
			status := &api.FrontendStatus{
				NodeId:          uint32(nodeId),
				Address:         frontend.Address,
				LastHeartbeatMs: frontend.LastHeartbeatMs,
			}
			for _, sessionId := range sortedSessionIdSet(frontend.Subscriptions) {
				status.Subscriptions = append(status.Subscriptions, string(sessionId))
			}
			resp.Frontends = append(resp.Frontends, status)
		}
		for _, sessionId := range sortedModelSessionIds(ss.ModelTable) {
			info := ss.ModelTable[sessionId]
			demand := ss.DemandPolicy(info.RateHistory, info.RequestedRate)
			resp.Models = append(resp.Models, &api.ModelStatus{
				ModelSessionId:  string(sessionId),
				ServedState:     info.ServedStateFor(demand),
				RequestedRate:   info.RequestedRate,
				TotalThroughput: info.TotalThroughput(),
				Subscribers:     len(info.Subscribers),
				RateHistory:     append([]float64(nil), info.RateHistory...),
			})
		}
		for _, wl := range ss.UnassignedWorkloads {
			resp.Unassigned = append(resp.Unassigned, &api.UnassignedJson{
				ModelSessionId: string(wl.SessionId),
				RequestRate:    wl.RequestRate,
			})
		}
	})
	sort.Slice(resp.Frontends, func(i, j int) bool { return resp.Frontends[i].NodeId < resp.Frontends[j].NodeId })
	return resp
}
