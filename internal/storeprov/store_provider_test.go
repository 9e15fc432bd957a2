package storeprov

import (
	"context"
	"testing"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/config"
	"github.com/sugartom/nexus/internal/etcdprov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingEntryRoundTrip(t *testing.T) {
	fake := etcdprov.NewFakeEtcdProvider()
	etcdprov.RunWithEtcdProvider(fake, func() {
		ctx := context.Background()
		pathManager := config.NewPathManager()
		store := NewEtcdStore(pathManager)

		route := &api.ModelRouteJson{
			ModelSessionId: "resnet:1",
			Backends: []*api.BackendRouteJson{
				{NodeId: 1, Address: "10.0.0.1:8001", Throughput: 40},
			},
		}
		store.StoreRoutingEntry(ctx, "resnet:1", route)
		item := fake.Get(ctx, pathManager.FmtRoutingPath("resnet:1"))
		assert.Contains(t, item.Value, "10.0.0.1:8001")

		// nil deletes
		store.StoreRoutingEntry(ctx, "resnet:1", nil)
		item = fake.Get(ctx, pathManager.FmtRoutingPath("resnet:1"))
		assert.Empty(t, item.Value)
	})
}

func TestUnassignedQueueRoundTrip(t *testing.T) {
	etcdprov.RunWithEtcdProvider(etcdprov.NewFakeEtcdProvider(), func() {
		ctx := context.Background()
		store := NewEtcdStore(config.NewPathManager())

		entries := []*api.UnassignedJson{
			{ModelSessionId: "resnet:1", RequestRate: 40},
			{ModelSessionId: "vgg:2", RequestRate: 15},
		}
		store.StoreUnassigned(ctx, entries)

		loaded := store.LoadUnassigned(ctx)
		require.Len(t, loaded, 2)
		assert.Equal(t, "resnet:1", loaded[0].ModelSessionId)
		assert.InDelta(t, 15.0, loaded[1].RequestRate, 1e-9)

		// empty list clears the key
		store.StoreUnassigned(ctx, nil)
		assert.Empty(t, store.LoadUnassigned(ctx))
	})
}

func TestLoadUnassignedToleratesCorruptValue(t *testing.T) {
	fake := etcdprov.NewFakeEtcdProvider()
	etcdprov.RunWithEtcdProvider(fake, func() {
		ctx := context.Background()
		pathManager := config.NewPathManager()
		store := NewEtcdStore(pathManager)

		fake.Set(ctx, pathManager.UnassignedPath(), "{not json")
		assert.Empty(t, store.LoadUnassigned(ctx))
	})
}
