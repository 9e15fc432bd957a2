package etcdprov

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// FakeEtcdProvider is a pure in-memory EtcdProvider for tests.
type FakeEtcdProvider struct {
	mu              sync.RWMutex
	data            map[string]*fakeKV
	currentRevision EtcdRevision
}

type fakeKV struct {
	value       string
	modRevision EtcdRevision
}

func NewFakeEtcdProvider() *FakeEtcdProvider {
	return &FakeEtcdProvider{
		data:            make(map[string]*fakeKV),
		currentRevision: 1,
	}
}

func (f *FakeEtcdProvider) Get(ctx context.Context, key string) EtcdKvItem {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if kv, exists := f.data[key]; exists {
		return EtcdKvItem{Key: key, Value: kv.value, ModRevision: kv.modRevision}
	}
	return EtcdKvItem{Key: key}
}

func (f *FakeEtcdProvider) Set(ctx context.Context, key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentRevision++
	f.data[key] = &fakeKV{value: value, modRevision: f.currentRevision}
}

func (f *FakeEtcdProvider) Delete(ctx context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentRevision++
	delete(f.data, key)
}

func (f *FakeEtcdProvider) LoadAllByPrefix(ctx context.Context, pathPrefix string) []EtcdKvItem {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var items []EtcdKvItem
	for k, v := range f.data {
		if strings.HasPrefix(k, pathPrefix) {
			items = append(items, EtcdKvItem{Key: k, Value: v.value, ModRevision: v.modRevision})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})
	return items
}
