package etcdprov

import (
	"context"
)

type EtcdRevision int64

// EtcdKvItem is one key/value pair as seen at some revision.
type EtcdKvItem struct {
	Key         string
	Value       string
	ModRevision EtcdRevision
}

// EtcdProvider is the slice of the etcd client the scheduler needs. The
// default implementation talks to a real cluster; tests swap in the fake.
type EtcdProvider interface {
	// Get returns an empty-value item when the key does not exist.
	Get(ctx context.Context, key string) EtcdKvItem

	Set(ctx context.Context, key, value string)

	// Delete is a no-op when the key does not exist.
	Delete(ctx context.Context, key string)

	LoadAllByPrefix(ctx context.Context, pathPrefix string) []EtcdKvItem
}

var currentEtcdProvider EtcdProvider

func GetCurrentEtcdProvider(ctx context.Context) EtcdProvider {
	if currentEtcdProvider == nil {
		currentEtcdProvider = NewDefaultEtcdProvider(ctx)
	}
	return currentEtcdProvider
}

// RunWithEtcdProvider temporarily swaps the global provider while fn runs,
// restoring the previous one even when fn panics. Test-only entry point.
func RunWithEtcdProvider(provider EtcdProvider, fn func()) {
	oldProvider := currentEtcdProvider
	currentEtcdProvider = provider
	defer func() {
		currentEtcdProvider = oldProvider
	}()
	fn()
}
