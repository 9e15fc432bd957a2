package core

import (
	"context"
	"sync"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/data"
)

// FakeDelegateProvider records every delegate call instead of dialing the
// peer. Tests poll the recorded calls.
type FakeDelegateProvider struct {
	mu sync.Mutex

	LoadedInstances  map[data.NodeId][]*api.InstanceConfigJson
	UnloadedSessions map[data.NodeId][]data.ModelSessionId
	PushedRoutes     map[data.NodeId][]*api.ModelRouteJson
}

func NewFakeDelegateProvider() *FakeDelegateProvider {
	return &FakeDelegateProvider{
		LoadedInstances:  make(map[data.NodeId][]*api.InstanceConfigJson),
		UnloadedSessions: make(map[data.NodeId][]data.ModelSessionId),
		PushedRoutes:     make(map[data.NodeId][]*api.ModelRouteJson),
	}
}

func (f *FakeDelegateProvider) GetBackendDelegate(nodeId data.NodeId, address string) BackendDelegate {
	return &fakeBackendDelegate{parent: f, nodeId: nodeId}
}

func (f *FakeDelegateProvider) GetFrontendDelegate(nodeId data.NodeId, address string) FrontendDelegate {
	return &fakeFrontendDelegate{parent: f, nodeId: nodeId}
}

// LastPushedRoute returns the most recent route pushed to the frontend, or
// nil when none arrived yet.
func (f *FakeDelegateProvider) LastPushedRoute(nodeId data.NodeId, sessionId string) *api.ModelRouteJson {
	f.mu.Lock()
	defer f.mu.Unlock()
	routes := f.PushedRoutes[nodeId]
	for i := len(routes) - 1; i >= 0; i-- {
		if routes[i].ModelSessionId == sessionId {
			return routes[i]
		}
	}
	return nil
}

func (f *FakeDelegateProvider) LoadInstanceCount(nodeId data.NodeId) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.LoadedInstances[nodeId])
}

func (f *FakeDelegateProvider) UnloadCount(nodeId data.NodeId) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.UnloadedSessions[nodeId])
}

type fakeBackendDelegate struct {
	parent *FakeDelegateProvider
	nodeId data.NodeId
}

func (d *fakeBackendDelegate) LoadInstance(ctx context.Context, cfg *api.InstanceConfigJson) {
	d.parent.mu.Lock()
	defer d.parent.mu.Unlock()
	d.parent.LoadedInstances[d.nodeId] = append(d.parent.LoadedInstances[d.nodeId], cfg)
}

func (d *fakeBackendDelegate) UnloadInstance(ctx context.Context, sessionId data.ModelSessionId) {
	d.parent.mu.Lock()
	defer d.parent.mu.Unlock()
	d.parent.UnloadedSessions[d.nodeId] = append(d.parent.UnloadedSessions[d.nodeId], sessionId)
}

type fakeFrontendDelegate struct {
	parent *FakeDelegateProvider
	nodeId data.NodeId
}

func (d *fakeFrontendDelegate) PushRoute(ctx context.Context, route *api.ModelRouteJson) {
	d.parent.mu.Lock()
	defer d.parent.mu.Unlock()
	d.parent.PushedRoutes[d.nodeId] = append(d.parent.PushedRoutes[d.nodeId], route)
}
