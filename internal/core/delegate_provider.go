package core

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/klogging"
)

// BackendDelegate is the slice of a backend node the scheduler talks to.
// Calls are best-effort: a peer that stays unreachable shows up as a missed
// heartbeat and gets evicted, so there is no retry here.
type BackendDelegate interface {
	LoadInstance(ctx context.Context, cfg *api.InstanceConfigJson)
	UnloadInstance(ctx context.Context, sessionId data.ModelSessionId)
}

// FrontendDelegate is the slice of a frontend node the scheduler talks to.
type FrontendDelegate interface {
	PushRoute(ctx context.Context, route *api.ModelRouteJson)
}

type DelegateProvider interface {
	GetBackendDelegate(nodeId data.NodeId, address string) BackendDelegate
	GetFrontendDelegate(nodeId data.NodeId, address string) FrontendDelegate
}

var currentDelegateProvider DelegateProvider

func GetCurrentDelegateProvider() DelegateProvider {
	if currentDelegateProvider == nil {
		currentDelegateProvider = NewHttpDelegateProvider()
	}
	return currentDelegateProvider
}

// RunWithDelegateProvider temporarily swaps the global provider while fn
// runs. Test-only entry point.
func RunWithDelegateProvider(provider DelegateProvider, fn func()) {
	old := currentDelegateProvider
	currentDelegateProvider = provider
	defer func() {
		currentDelegateProvider = old
	}()
	fn()
}

/********************************* HTTP delegates ************************************/

// httpDelegateProvider posts JSON to the node's control endpoints.
type httpDelegateProvider struct {
	client *http.Client
}

func NewHttpDelegateProvider() DelegateProvider {
	return &httpDelegateProvider{
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (p *httpDelegateProvider) GetBackendDelegate(nodeId data.NodeId, address string) BackendDelegate {
	return &httpBackendDelegate{provider: p, nodeId: nodeId, address: address}
}

func (p *httpDelegateProvider) GetFrontendDelegate(nodeId data.NodeId, address string) FrontendDelegate {
	return &httpFrontendDelegate{provider: p, nodeId: nodeId, address: address}
}

type httpBackendDelegate struct {
	provider *httpDelegateProvider
	nodeId   data.NodeId
	address  string
}

func (d *httpBackendDelegate) LoadInstance(ctx context.Context, cfg *api.InstanceConfigJson) {
	d.provider.post(ctx, d.address, "/api/load_instance", cfg)
}

func (d *httpBackendDelegate) UnloadInstance(ctx context.Context, sessionId data.ModelSessionId) {
	d.provider.post(ctx, d.address, "/api/unload_instance", &api.InstanceConfigJson{ModelSessionId: string(sessionId)})
}

type httpFrontendDelegate struct {
	provider *httpDelegateProvider
	nodeId   data.NodeId
	address  string
}

func (d *httpFrontendDelegate) PushRoute(ctx context.Context, route *api.ModelRouteJson) {
	d.provider.post(ctx, d.address, "/api/push_route", route)
}

func (p *httpDelegateProvider) post(ctx context.Context, address, path string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		klogging.Error(ctx).WithError(err).With("path", path).Log("DelegatePost", "marshal failed")
		return
	}
	url := "http://" + address + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		klogging.Error(ctx).WithError(err).With("url", url).Log("DelegatePost", "request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		// unreachable peers surface as missed heartbeats, nothing to do here
		klogging.Warning(ctx).With("url", url).With("error", err.Error()).Log("DelegatePost", "peer unreachable")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		klogging.Warning(ctx).With("url", url).With("status", resp.StatusCode).Log("DelegatePost", "peer rejected call")
	}
}
