package core

import (
	"context"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/common"
	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/klogging"
)

// buildModelRoute renders the current routing entry for a session. An
// unknown session yields an empty route, not an error. Every throughput
// contribution must reference a live backend; a dangling reference means
// the membership and model tables went out of sync, which is fatal.
func (ss *SchedulerState) buildModelRoute(sessionId data.ModelSessionId) *api.ModelRouteJson {
	route := &api.ModelRouteJson{ModelSessionId: string(sessionId)}
	info, ok := ss.ModelTable[sessionId]
	if !ok {
		return route
	}
	for _, nodeId := range sortedNodeIds(info.BackendThroughputs) {
		backend := ss.FindBackend(nodeId)
		if backend == nil {
			klogging.Fatal(context.Background()).With("sessionId", string(sessionId)).With("nodeId", nodeId.String()).Log("BuildModelRoute", "throughput contribution references unregistered backend")
		}
		route.Backends = append(route.Backends, &api.BackendRouteJson{
			NodeId:     uint32(nodeId),
			Address:    backend.Address,
			Throughput: info.BackendThroughputs[nodeId],
		})
	}
	return route
}

// updateModelRoutes persists the routing entries of the changed sessions
// and queues a route push to every subscriber.
func (ss *SchedulerState) updateModelRoutes(ctx context.Context, changed map[data.ModelSessionId]common.Unit) {
	for _, sessionId := range sortedSessionIdSet(changed) {
		if _, exists := ss.ModelTable[sessionId]; !exists {
			ss.Store.StoreRoutingEntry(ctx, string(sessionId), nil)
			continue
		}
		route := ss.buildModelRoute(sessionId)
		ss.Store.StoreRoutingEntry(ctx, string(sessionId), route)
		info := ss.ModelTable[sessionId]
		for frontendId := range info.Subscribers {
			frontend := ss.FindFrontend(frontendId)
			if frontend == nil {
				continue
			}
			ss.notifyPushRoute(frontend, route)
		}
	}
}

/********************************* notification builders ************************************/

func (ss *SchedulerState) notifyLoadInstance(backend *BackendState, sessionId data.ModelSessionId, rate float64) {
	nodeId, address := backend.NodeId, backend.Address
	cfg := &api.InstanceConfigJson{ModelSessionId: string(sessionId), RequestRate: rate}
	ss.notify(func(ctx context.Context) {
		GetCurrentDelegateProvider().GetBackendDelegate(nodeId, address).LoadInstance(ctx, cfg)
	})
}

func (ss *SchedulerState) notifyUnloadInstance(backend *BackendState, sessionId data.ModelSessionId) {
	nodeId, address := backend.NodeId, backend.Address
	ss.notify(func(ctx context.Context) {
		GetCurrentDelegateProvider().GetBackendDelegate(nodeId, address).UnloadInstance(ctx, sessionId)
	})
}

func (ss *SchedulerState) notifyPushRoute(frontend *FrontendState, route *api.ModelRouteJson) {
	nodeId, address := frontend.NodeId, frontend.Address
	ss.notify(func(ctx context.Context) {
		GetCurrentDelegateProvider().GetFrontendDelegate(nodeId, address).PushRoute(ctx, route)
	})
}
