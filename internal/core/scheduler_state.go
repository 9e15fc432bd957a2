package core

import (
	"context"

	"github.com/sugartom/nexus/api"
	"github.com/sugartom/nexus/internal/common"
	"github.com/sugartom/nexus/internal/config"
	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/kcommon"
	"github.com/sugartom/nexus/internal/klogging"
	"github.com/sugartom/nexus/internal/krunloop"
	"github.com/sugartom/nexus/internal/storeprov"
)

// SchedulerState is the critical resource of the scheduler run loop: the
// membership table, the model table, the unassigned workload queue and the
// static workload assignment all live here. Everything below the runloop
// field is mutable cluster state and must only be touched from inside the
// run loop, which is the single serialization domain — removing a backend
// and purging every ModelInfo reference to it happens inside one event.
type SchedulerState struct {
	Name        string
	runloop     *krunloop.RunLoop[*SchedulerState]
	Config      *config.SchedulerConfig
	PathManager *config.PathManager
	Store       storeprov.StoreProvider

	AllBackends  map[data.NodeId]*BackendState
	AllFrontends map[data.NodeId]*FrontendState
	ModelTable   map[data.ModelSessionId]*ModelInfo

	UnassignedWorkloads []*UnassignedWorkload

	// static workload seeding, see static_workload.go
	StaticWorkloads         []config.StaticWorkloadGroup
	AssignedStaticWorkloads map[int]data.NodeId
	seededStaticGroups      map[int]common.Unit

	DemandPolicy DemandPolicy

	// remote notifications collected during event processing, dispatched
	// after the event finishes so no remote call happens inside the
	// serialization domain
	pendingNotifications []func(ctx context.Context)
}

// UnassignedWorkload is one pending (session, rate) demand not yet bound to
// a backend.
type UnassignedWorkload struct {
	SessionId   data.ModelSessionId
	RequestRate float64
}

func NewSchedulerState(ctx context.Context, name string, cfg *config.SchedulerConfig, staticWorkloads []config.StaticWorkloadGroup) *SchedulerState {
	pathManager := config.NewPathManager()
	ss := &SchedulerState{
		Name:                    name,
		Config:                  cfg,
		PathManager:             pathManager,
		Store:                   storeprov.NewEtcdStore(pathManager),
		AllBackends:             make(map[data.NodeId]*BackendState),
		AllFrontends:            make(map[data.NodeId]*FrontendState),
		ModelTable:              make(map[data.ModelSessionId]*ModelInfo),
		StaticWorkloads:         staticWorkloads,
		AssignedStaticWorkloads: make(map[int]data.NodeId),
		seededStaticGroups:      make(map[int]common.Unit),
		DemandPolicy:            MeanDemandPolicy,
	}

	// pending demand persisted by a previous incarnation. The model table is
	// not persisted, so each recovered session gets its entry rebuilt here;
	// without it the placement pass would treat the queued demand as
	// belonging to a collected session and drop it.
	for _, entry := range ss.Store.LoadUnassigned(ctx) {
		sessionId := data.ModelSessionId(entry.ModelSessionId)
		ss.ensureModelInfo(sessionId, entry.RequestRate)
		ss.UnassignedWorkloads = append(ss.UnassignedWorkloads, &UnassignedWorkload{
			SessionId:   sessionId,
			RequestRate: entry.RequestRate,
		})
	}
	if len(ss.UnassignedWorkloads) > 0 {
		klogging.Info(ctx).With("count", len(ss.UnassignedWorkloads)).Log("SchedulerInit", "recovered unassigned workloads from store")
	}

	ss.runloop = krunloop.NewRunLoop[*SchedulerState](ctx, ss, name)
	go ss.runloop.Run(ctx)

	kcommon.ScheduleRun(cfg.BeaconIntervalSec*1000, func() {
		ss.PostEvent(NewBeaconCheckEvent())
	})
	kcommon.ScheduleRun(cfg.EpochIntervalSec*1000, func() {
		ss.PostEvent(NewEpochScheduleEvent())
	})
	klogging.Info(ctx).With("beaconIntervalSec", cfg.BeaconIntervalSec).With("epochIntervalSec", cfg.EpochIntervalSec).Log("SchedulerInit", "scheduler state created")
	return ss
}

// IsResource implements krunloop.CriticalResource
func (ss *SchedulerState) IsResource() {}

func (ss *SchedulerState) PostEvent(event krunloop.IEvent[*SchedulerState]) {
	ss.runloop.PostEvent(event)
}

// PostActionAndWait runs fn inside the run loop and blocks the caller until
// it finished. This is how the RPC boundary enters the serialization
// domain.
func (ss *SchedulerState) PostActionAndWait(name string, fn func(ctx context.Context, ss *SchedulerState)) {
	ch := make(chan struct{})
	ss.PostEvent(NewActionEvent(name, func(ctx context.Context, ss *SchedulerState) {
		defer close(ch)
		fn(ctx, ss)
	}))
	<-ch
}

// StopAndWaitForExit stops the run loop. In-flight events finish; timers
// fire into a closed queue and are dropped.
func (ss *SchedulerState) StopAndWaitForExit(ctx context.Context) {
	ss.runloop.StopAndWaitForExit()
}

/********************************* notifications ************************************/

func (ss *SchedulerState) notify(fn func(ctx context.Context)) {
	ss.pendingNotifications = append(ss.pendingNotifications, fn)
}

// flushNotifications dispatches the collected remote calls fire-and-forget,
// outside the serialization domain. Called at the tail of event processing.
func (ss *SchedulerState) flushNotifications(ctx context.Context) {
	pending := ss.pendingNotifications
	ss.pendingNotifications = nil
	if len(pending) == 0 {
		return
	}
	go func() {
		for _, fn := range pending {
			fn(ctx)
		}
	}()
}

/********************************* lookups ************************************/

// FindBackend returns nil when the node is not registered; a missing id
// means "not currently serving", never a crash.
func (ss *SchedulerState) FindBackend(nodeId data.NodeId) *BackendState {
	backend, ok := ss.AllBackends[nodeId]
	if !ok {
		return nil
	}
	return backend
}

func (ss *SchedulerState) FindFrontend(nodeId data.NodeId) *FrontendState {
	frontend, ok := ss.AllFrontends[nodeId]
	if !ok {
		return nil
	}
	return frontend
}

func (ss *SchedulerState) persistUnassigned(ctx context.Context) {
	entries := make([]*api.UnassignedJson, 0, len(ss.UnassignedWorkloads))
	for _, wl := range ss.UnassignedWorkloads {
		entries = append(entries, &api.UnassignedJson{
			ModelSessionId: string(wl.SessionId),
			RequestRate:    wl.RequestRate,
		})
	}
	ss.Store.StoreUnassigned(ctx, entries)
}
