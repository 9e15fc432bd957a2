package biz

import (
	"context"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/common"
	"github.com/sugartom/nexus/internal/config"
	"github.com/sugartom/nexus/internal/core"
	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/klogging"
)

// App is the application layer between the HTTP handler and the scheduler
// state. It translates wire types to domain types; errors travel as kerror
// panics and are rendered by the handler middleware.
type App struct {
	Config    *config.SchedulerConfig
	scheduler *core.SchedulerState
}

func NewApp(ctx context.Context, cfg *config.SchedulerConfig) *App {
	var staticWorkloads []config.StaticWorkloadGroup
	if cfg.WorkloadFile != "" {
		staticWorkloads = config.LoadWorkloadFile(cfg.WorkloadFile)
		klogging.Info(ctx).With("path", cfg.WorkloadFile).With("groups", len(staticWorkloads)).Log("AppInit", "static workload file loaded")
	}
	return &App{
		Config:    cfg,
		scheduler: core.NewSchedulerState(ctx, "scheduler", cfg, staticWorkloads),
	}
}

func (app *App) Stop(ctx context.Context) {
	app.scheduler.StopAndWaitForExit(ctx)
}

func (app *App) Register(ctx context.Context, req *api.RegisterRequest) *api.RegisterReply {
	configs := app.scheduler.RegisterNode(data.NodeId(req.NodeId), data.NodeKind(req.Kind), req.Address, req.Capacity)
	return &api.RegisterReply{
		Status:            api.StatusOK,
		BeaconIntervalSec: app.Config.BeaconIntervalSec,
		EpochIntervalSec:  app.Config.EpochIntervalSec,
		InstanceConfigs:   configs,
	}
}

func (app *App) Unregister(ctx context.Context, req *api.UnregisterRequest) *api.RpcReply {
	app.scheduler.Unregister(data.NodeId(req.NodeId), data.NodeKind(req.Kind))
	return &api.RpcReply{Status: api.StatusOK}
}

func (app *App) LoadModel(ctx context.Context, req *api.LoadModelRequest) *api.LoadModelReply {
	session := data.ModelSession{
		ModelId:      req.ModelId,
		Version:      req.Version,
		TargetConfig: req.TargetConfig,
	}
	route := app.scheduler.LoadModel(data.NodeId(req.FrontendId), session, req.RequestRate)
	reply := &api.LoadModelReply{Status: api.StatusOK, Route: route}
	if len(route.Backends) == 0 {
		// soft failure: demand is queued until capacity shows up
		reply.Msg = "no serving capacity yet, workload queued"
	}
	return reply
}

func (app *App) UpdateStats(ctx context.Context, req *api.BackendStatsRequest) *api.RpcReply {
	app.scheduler.UpdateBackendStats(data.NodeId(req.NodeId), req.ModelRates)
	return &api.RpcReply{Status: api.StatusOK}
}

func (app *App) KeepAlive(ctx context.Context, req *api.KeepAliveRequest) *api.RpcReply {
	app.scheduler.KeepAlive(data.NodeId(req.NodeId), data.NodeKind(req.Kind))
	return &api.RpcReply{Status: api.StatusOK}
}

func (app *App) GetRoute(ctx context.Context, sessionId string) *api.ModelRouteJson {
	return app.scheduler.GetModelRoute(sessionId)
}

func (app *App) GetStatus(ctx context.Context) *api.GetStatusResponse {
	return app.scheduler.BuildStatus(common.GetVersion())
}

func (app *App) Ping(ctx context.Context) *api.RpcReply {
	return &api.RpcReply{Status: api.StatusOK, Msg: common.GetVersion()}
}
