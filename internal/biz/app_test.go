package biz

import (
	"context"
	"testing"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/config"
	"github.com/sugartom/nexus/internal/core"
	"github.com/sugartom/nexus/internal/etcdprov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithApp(t *testing.T, fn func(ctx context.Context, app *App)) {
	etcdprov.RunWithEtcdProvider(etcdprov.NewFakeEtcdProvider(), func() {
		core.RunWithDelegateProvider(core.NewFakeDelegateProvider(), func() {
			ctx := context.Background()
			app := NewApp(ctx, config.NewSchedulerConfigForTest())
			defer app.Stop(ctx)
			fn(ctx, app)
		})
	})
}

func TestRegisterReplyCarriesIntervals(t *testing.T) {
	runWithApp(t, func(ctx context.Context, app *App) {
		reply := app.Register(ctx, &api.RegisterRequest{
			NodeId: 1, Kind: "backend", Address: "10.0.0.1:8001", Capacity: 100,
		})
		assert.Equal(t, api.StatusOK, reply.Status)
		assert.Equal(t, app.Config.BeaconIntervalSec, reply.BeaconIntervalSec)
		assert.Equal(t, app.Config.EpochIntervalSec, reply.EpochIntervalSec)
	})
}

func TestLoadModelSoftFailure(t *testing.T) {
	runWithApp(t, func(ctx context.Context, app *App) {
		app.Register(ctx, &api.RegisterRequest{NodeId: 10, Kind: "frontend", Address: "10.0.0.10:9001"})

		// no backends: still OK, but the route is empty and the msg says so
		reply := app.LoadModel(ctx, &api.LoadModelRequest{
			FrontendId: 10, ModelId: "resnet", Version: "1", RequestRate: 40,
		})
		assert.Equal(t, api.StatusOK, reply.Status)
		assert.NotEmpty(t, reply.Msg)
		require.NotNil(t, reply.Route)
		assert.Empty(t, reply.Route.Backends)

		status := app.GetStatus(ctx)
		require.Len(t, status.Unassigned, 1)
		assert.InDelta(t, 40.0, status.Unassigned[0].RequestRate, 1e-9)
	})
}

func TestUnregisterIdempotent(t *testing.T) {
	runWithApp(t, func(ctx context.Context, app *App) {
		reply := app.Unregister(ctx, &api.UnregisterRequest{NodeId: 42, Kind: "backend"})
		assert.Equal(t, api.StatusOK, reply.Status)
	})
}

func TestKeepAliveRoundTrip(t *testing.T) {
	runWithApp(t, func(ctx context.Context, app *App) {
		app.Register(ctx, &api.RegisterRequest{NodeId: 1, Kind: "backend", Address: "10.0.0.1:8001", Capacity: 100})
		reply := app.KeepAlive(ctx, &api.KeepAliveRequest{NodeId: 1, Kind: "backend"})
		assert.Equal(t, api.StatusOK, reply.Status)
	})
}
