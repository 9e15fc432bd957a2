package core

import (
	"context"
	"testing"

	"github.com/sugartom/nexus/internal/common"
	"github.com/sugartom/nexus/internal/config"
	"github.com/sugartom/nexus/internal/data"
	"github.com/sugartom/nexus/internal/storeprov"
	"github.com/stretchr/testify/assert"
)

// bareState builds a SchedulerState without a run loop for direct unit
// tests of the placement engine. Callers run inside setup.RunWith so the
// store writes hit the fake etcd.
func bareState(cfg *config.SchedulerConfig) *SchedulerState {
	pathManager := config.NewPathManager()
	return &SchedulerState{
		Name:                    "bare",
		Config:                  cfg,
		PathManager:             pathManager,
		Store:                   storeprov.NewEtcdStore(pathManager),
		AllBackends:             make(map[data.NodeId]*BackendState),
		AllFrontends:            make(map[data.NodeId]*FrontendState),
		ModelTable:              make(map[data.ModelSessionId]*ModelInfo),
		AssignedStaticWorkloads: make(map[int]data.NodeId),
		seededStaticGroups:      make(map[int]common.Unit),
		DemandPolicy:            MeanDemandPolicy,
	}
}

func addBackend(ss *SchedulerState, nodeId data.NodeId, capacity float64) *BackendState {
	backend := &BackendState{
		NodeId:      nodeId,
		Address:     "10.0.0." + nodeId.String() + ":8001",
		Capacity:    capacity,
		Instances:   make(map[data.ModelSessionId]float64),
		stagedRates: make(map[data.ModelSessionId]float64),
	}
	ss.AllBackends[nodeId] = backend
	return backend
}

func TestFindBestBackendPrefersMostSpare(t *testing.T) {
	ss := bareState(config.NewSchedulerConfigForTest())
	addBackend(ss, 1, 100).Instances["resnet:1"] = 70
	addBackend(ss, 2, 100).Instances["resnet:1"] = 20

	candidate := ss.findBestBackend(50, nil)
	assert.NotNil(t, candidate)
	assert.Equal(t, data.NodeId(2), candidate.backend.NodeId)
	assert.Equal(t, 50.0, candidate.absorbRate)
}

func TestFindBestBackendTieGoesToLowestId(t *testing.T) {
	ss := bareState(config.NewSchedulerConfigForTest())
	addBackend(ss, 7, 100)
	addBackend(ss, 3, 100)
	addBackend(ss, 9, 100)

	candidate := ss.findBestBackend(10, nil)
	assert.NotNil(t, candidate)
	assert.Equal(t, data.NodeId(3), candidate.backend.NodeId)
}

func TestFindBestBackendClampsToSpare(t *testing.T) {
	ss := bareState(config.NewSchedulerConfigForTest())
	addBackend(ss, 1, 100).Instances["resnet:1"] = 80

	candidate := ss.findBestBackend(50, nil)
	assert.NotNil(t, candidate)
	assert.InDelta(t, 20.0, candidate.absorbRate, 1e-9)
}

func TestFindBestBackendNoEligibleBackends(t *testing.T) {
	ss := bareState(config.NewSchedulerConfigForTest())
	assert.Nil(t, ss.findBestBackend(10, nil))

	addBackend(ss, 1, 100).Instances["resnet:1"] = 100
	assert.Nil(t, ss.findBestBackend(10, nil))
}

func TestFindBestBackendIsPure(t *testing.T) {
	ss := bareState(config.NewSchedulerConfigForTest())
	addBackend(ss, 1, 100).Instances["resnet:1"] = 30

	first := ss.findBestBackend(50, nil)
	second := ss.findBestBackend(50, nil)
	assert.Equal(t, first.backend.NodeId, second.backend.NodeId)
	assert.Equal(t, first.absorbRate, second.absorbRate)
	assert.InDelta(t, 30.0, ss.AllBackends[1].AssignedLoad(), 1e-9)
}

func TestAllocateSpreadsAcrossBackends(t *testing.T) {
	setup := newTestSetup(t)
	setup.RunWith(func() {
		ctx := context.Background()
		ss := bareState(setup.Config)
		addBackend(ss, 1, 100)
		addBackend(ss, 2, 100)
		ss.ensureModelInfo("resnet:1", 150)
		ss.UnassignedWorkloads = append(ss.UnassignedWorkloads, &UnassignedWorkload{SessionId: "resnet:1", RequestRate: 150})

		changed, _ := ss.allocateUnassignedWorkloads(ctx, nil)

		assert.Contains(t, changed, data.ModelSessionId("resnet:1"))
		assert.Empty(t, ss.UnassignedWorkloads)
		assert.InDelta(t, 100.0, ss.AllBackends[1].Instances["resnet:1"], 1e-9)
		assert.InDelta(t, 50.0, ss.AllBackends[2].Instances["resnet:1"], 1e-9)
		assert.InDelta(t, 150.0, ss.ModelTable["resnet:1"].TotalThroughput(), 1e-9)
	})
}

func TestAllocateKeepsResidualQueued(t *testing.T) {
	setup := newTestSetup(t)
	setup.RunWith(func() {
		ctx := context.Background()
		ss := bareState(setup.Config)
		addBackend(ss, 1, 100).Instances["vgg:2"] = 70
		ss.ModelTable["vgg:2"] = NewModelInfo("vgg:2", 70, setup.Config.HistoryLen)
		ss.ModelTable["vgg:2"].BackendThroughputs[1] = 70
		ss.ensureModelInfo("resnet:1", 50)
		ss.UnassignedWorkloads = append(ss.UnassignedWorkloads, &UnassignedWorkload{SessionId: "resnet:1", RequestRate: 50})

		ss.allocateUnassignedWorkloads(ctx, nil)

		assert.InDelta(t, 30.0, ss.AllBackends[1].Instances["resnet:1"], 1e-9)
		assert.Len(t, ss.UnassignedWorkloads, 1)
		assert.InDelta(t, 20.0, ss.UnassignedWorkloads[0].RequestRate, 1e-9)
	})
}

func TestAllocateNeverDropsDemand(t *testing.T) {
	setup := newTestSetup(t)
	setup.RunWith(func() {
		ctx := context.Background()
		ss := bareState(setup.Config)
		ss.ensureModelInfo("resnet:1", 50)
		ss.UnassignedWorkloads = append(ss.UnassignedWorkloads, &UnassignedWorkload{SessionId: "resnet:1", RequestRate: 50})

		changed, _ := ss.allocateUnassignedWorkloads(ctx, nil)

		assert.Empty(t, changed)
		assert.Len(t, ss.UnassignedWorkloads, 1)
		assert.InDelta(t, 50.0, ss.UnassignedWorkloads[0].RequestRate, 1e-9)
	})
}

func TestAllocateDropsGarbageCollectedSessions(t *testing.T) {
	setup := newTestSetup(t)
	setup.RunWith(func() {
		ctx := context.Background()
		ss := bareState(setup.Config)
		addBackend(ss, 1, 100)
		// session no longer in the model table
		ss.UnassignedWorkloads = append(ss.UnassignedWorkloads, &UnassignedWorkload{SessionId: "gone:1", RequestRate: 50})

		changed, _ := ss.allocateUnassignedWorkloads(ctx, nil)

		assert.Empty(t, changed)
		assert.Empty(t, ss.UnassignedWorkloads)
		assert.Zero(t, ss.AllBackends[1].AssignedLoad())
	})
}

func TestFindBestBackendHonorsSkip(t *testing.T) {
	ss := bareState(config.NewSchedulerConfigForTest())
	addBackend(ss, 1, 100)
	addBackend(ss, 2, 100).Instances["resnet:1"] = 40

	// backend 1 has the most spare but is excluded
	skip := map[data.NodeId]common.Unit{1: {}}
	candidate := ss.findBestBackend(50, skip)
	assert.NotNil(t, candidate)
	assert.Equal(t, data.NodeId(2), candidate.backend.NodeId)

	skip[2] = common.Unit{}
	assert.Nil(t, ss.findBestBackend(50, skip))
}

func TestAllocateHonorsSkip(t *testing.T) {
	setup := newTestSetup(t)
	setup.RunWith(func() {
		ctx := context.Background()
		ss := bareState(setup.Config)
		addBackend(ss, 1, 100)
		addBackend(ss, 2, 60)
		ss.ensureModelInfo("resnet:1", 50)
		ss.UnassignedWorkloads = append(ss.UnassignedWorkloads, &UnassignedWorkload{SessionId: "resnet:1", RequestRate: 50})

		changed, touched := ss.allocateUnassignedWorkloads(ctx, map[data.NodeId]common.Unit{1: {}})

		assert.Contains(t, changed, data.ModelSessionId("resnet:1"))
		assert.Contains(t, touched, data.NodeId(2))
		assert.NotContains(t, touched, data.NodeId(1))
		assert.Zero(t, ss.AllBackends[1].AssignedLoad())
		assert.InDelta(t, 50.0, ss.AllBackends[2].Instances["resnet:1"], 1e-9)
	})
}
