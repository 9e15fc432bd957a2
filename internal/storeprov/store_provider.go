package storeprov

import (
	"context"
	"encoding/json"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/config"
	"github.com/sugartom/nexus/internal/etcdprov"
	"github.com/sugartom/nexus/internal/kerror"
	"github.com/sugartom/nexus/internal/klogging"
)

// StoreProvider is the write-through persistence of the scheduler: per
// session routing entries (observability + frontend recovery) and the
// unassigned workload queue (pending demand survives a scheduler restart).
type StoreProvider interface {
	// entry == nil deletes the routing entry
	StoreRoutingEntry(ctx context.Context, sessionId string, entry *api.ModelRouteJson)
	StoreUnassigned(ctx context.Context, entries []*api.UnassignedJson)
	LoadUnassigned(ctx context.Context) []*api.UnassignedJson
}

// EtcdStore implements StoreProvider on the current etcd provider.
type EtcdStore struct {
	pathManager *config.PathManager
}

func NewEtcdStore(pathManager *config.PathManager) *EtcdStore {
	return &EtcdStore{pathManager: pathManager}
}

func (store *EtcdStore) StoreRoutingEntry(ctx context.Context, sessionId string, entry *api.ModelRouteJson) {
	provider := etcdprov.GetCurrentEtcdProvider(ctx)
	path := store.pathManager.FmtRoutingPath(sessionId)
	if entry == nil {
		provider.Delete(ctx, path)
		return
	}
	provider.Set(ctx, path, marshal(entry))
}

func (store *EtcdStore) StoreUnassigned(ctx context.Context, entries []*api.UnassignedJson) {
	provider := etcdprov.GetCurrentEtcdProvider(ctx)
	path := store.pathManager.UnassignedPath()
	if len(entries) == 0 {
		provider.Delete(ctx, path)
		return
	}
	provider.Set(ctx, path, marshal(entries))
}

func (store *EtcdStore) LoadUnassigned(ctx context.Context) []*api.UnassignedJson {
	provider := etcdprov.GetCurrentEtcdProvider(ctx)
	item := provider.Get(ctx, store.pathManager.UnassignedPath())
	if item.Value == "" {
		return nil
	}
	var entries []*api.UnassignedJson
	if err := json.Unmarshal([]byte(item.Value), &entries); err != nil {
		// a corrupt entry must not brick startup; pending demand will be
		// re-declared by frontends
		klogging.Error(ctx).WithError(err).With("key", item.Key).Log("LoadUnassigned", "discarding corrupt unassigned queue")
		return nil
	}
	return entries
}

func marshal(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(kerror.Wrap(err, "MarshalError", "failed to marshal store entry", true).
			WithErrorCode(kerror.EC_INTERNAL_ERROR))
	}
	return string(raw)
}
