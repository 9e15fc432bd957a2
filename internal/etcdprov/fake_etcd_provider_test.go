package etcdprov

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFakeEtcdBasicOps(t *testing.T) {
	ctx := context.Background()
	fake := NewFakeEtcdProvider()

	assert.Equal(t, "", fake.Get(ctx, "/nexus/routing/a").Value)

	fake.Set(ctx, "/nexus/routing/a", "1")
	fake.Set(ctx, "/nexus/routing/b", "2")
	fake.Set(ctx, "/nexus/unassigned", "[]")

	item := fake.Get(ctx, "/nexus/routing/a")
	assert.Equal(t, "1", item.Value)
	assert.Greater(t, int64(item.ModRevision), int64(1))

	items := fake.LoadAllByPrefix(ctx, "/nexus/routing/")
	assert.Len(t, items, 2)
	assert.Equal(t, "/nexus/routing/a", items[0].Key)
	assert.Equal(t, "/nexus/routing/b", items[1].Key)

	fake.Delete(ctx, "/nexus/routing/a")
	assert.Equal(t, "", fake.Get(ctx, "/nexus/routing/a").Value)
	// deleting a missing key is a no-op
	fake.Delete(ctx, "/nexus/routing/a")
}

func TestRunWithEtcdProviderRestores(t *testing.T) {
	ctx := context.Background()
	fake := NewFakeEtcdProvider()
	fake.Set(ctx, "/k", "v")
	RunWithEtcdProvider(fake, func() {
		assert.Equal(t, "v", GetCurrentEtcdProvider(ctx).Get(ctx, "/k").Value)
	})
}
