package core

import (
	"context"
	"testing"

	"github.com/sugartom/nexus/internal/config"
	"github.com/sugartom/nexus/internal/etcdprov"
	"github.com/sugartom/nexus/internal/kcommon"
)

// testSetup bundles the fake providers every scheduler test needs: a
// virtual clock, an in-memory etcd and recording delegates.
type testSetup struct {
	t         *testing.T
	FakeTime  *kcommon.FakeTimeProvider
	FakeEtcd  *etcdprov.FakeEtcdProvider
	Delegates *FakeDelegateProvider
	Config    *config.SchedulerConfig
}

func newTestSetup(t *testing.T) *testSetup {
	return &testSetup{
		t:         t,
		FakeTime:  kcommon.NewFakeTimeProvider(1000),
		FakeEtcd:  etcdprov.NewFakeEtcdProvider(),
		Delegates: NewFakeDelegateProvider(),
		Config:    config.NewSchedulerConfigForTest(),
	}
}

// RunWith nests the three provider swaps around fn.
func (setup *testSetup) RunWith(fn func()) {
	kcommon.RunWithTimeProvider(setup.FakeTime, func() {
		etcdprov.RunWithEtcdProvider(setup.FakeEtcd, func() {
			RunWithDelegateProvider(setup.Delegates, fn)
		})
	})
}

// NewScheduler creates a scheduler wired to the fakes. Caller must stop it.
func (setup *testSetup) NewScheduler(ctx context.Context) *SchedulerState {
	return NewSchedulerState(ctx, "test-scheduler", setup.Config, nil)
}
