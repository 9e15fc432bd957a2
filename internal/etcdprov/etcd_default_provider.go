package etcdprov

import (
	"context"
	"strings"
	"time"

	"github.com/sugartom/nexus/internal/kcommon"
	"github.com/sugartom/nexus/internal/kerror"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// etcdDefaultProvider wraps a clientv3 client. Configured via env:
//   ETCD_ENDPOINTS      comma separated, default "localhost:2379"
//   ETCD_DIAL_TIMEOUT_SEC   default 5
type etcdDefaultProvider struct {
	client *clientv3.Client
}

func NewDefaultEtcdProvider(_ context.Context) EtcdProvider {
	endpoints := strings.Split(kcommon.GetEnvString("ETCD_ENDPOINTS", "localhost:2379"), ",")
	dialTimeoutSec := kcommon.GetEnvInt("ETCD_DIAL_TIMEOUT_SEC", 5)

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: time.Duration(dialTimeoutSec) * time.Second,
	})
	if err != nil {
		panic(kerror.Wrap(err, "EtcdConnectError", "failed to connect to etcd", false).
			WithErrorCode(kerror.EC_INTERNAL_ERROR).
			With("endpoints", strings.Join(endpoints, ",")))
	}
	return &etcdDefaultProvider{client: cli}
}

func (pvd *etcdDefaultProvider) Get(ctx context.Context, key string) EtcdKvItem {
	resp, err := pvd.client.Get(ctx, key)
	if err != nil {
		panic(kerror.Wrap(err, "EtcdGetError", "failed to get key from etcd", false).
			WithErrorCode(kerror.EC_INTERNAL_ERROR).
			With("key", key))
	}
	if len(resp.Kvs) == 0 {
		return EtcdKvItem{Key: key}
	}
	kv := resp.Kvs[0]
	return EtcdKvItem{
		Key:         string(kv.Key),
		Value:       string(kv.Value),
		ModRevision: EtcdRevision(kv.ModRevision),
	}
}

func (pvd *etcdDefaultProvider) Set(ctx context.Context, key, value string) {
	_, err := pvd.client.Put(ctx, key, value)
	if err != nil {
		panic(kerror.Wrap(err, "EtcdPutError", "failed to set key in etcd", false).
			WithErrorCode(kerror.EC_INTERNAL_ERROR).
			With("key", key))
	}
}

func (pvd *etcdDefaultProvider) Delete(ctx context.Context, key string) {
	_, err := pvd.client.Delete(ctx, key)
	if err != nil {
		panic(kerror.Wrap(err, "EtcdDeleteError", "failed to delete key from etcd", false).
			WithErrorCode(kerror.EC_INTERNAL_ERROR).
			With("key", key))
	}
}

func (pvd *etcdDefaultProvider) LoadAllByPrefix(ctx context.Context, pathPrefix string) []EtcdKvItem {
	resp, err := pvd.client.Get(ctx, pathPrefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		panic(kerror.Wrap(err, "EtcdLoadError", "failed to load keys from etcd", false).
			WithErrorCode(kerror.EC_INTERNAL_ERROR).
			With("pathPrefix", pathPrefix))
	}
	items := make([]EtcdKvItem, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		items = append(items, EtcdKvItem{
			Key:         string(kv.Key),
			Value:       string(kv.Value),
			ModRevision: EtcdRevision(kv.ModRevision),
		})
	}
	return items
}
