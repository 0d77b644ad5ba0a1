package client

import (
	"fmt"

	"github.com/ValentinKolb/tKV/lib/kvstore"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/rpc/common"
	"github.com/ValentinKolb/tKV/rpc/serializer"
	"github.com/ValentinKolb/tKV/rpc/transport"
)

// fixedUpdaterReason is returned by SetUpdater on workers
const fixedUpdaterReason = "updaters cannot be sent to a remote coordinator, configure the shard updater on the server"

// NewDistributedKVStore creates a worker side kvstore whose table lives on the coordinator.
// The transport is connected lazily when the store enters the running state,
// a failing connection is reported as RetCTransportError by the first init, push or pull.
func NewDistributedKVStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) *kvstore.KVStore {
	return kvstore.New(fmt.Sprintf("dist/%d", shardId), func() (store.IStore, error) {
		return NewRPCStore(shardId, config, transport, serializer)
	}, kvstore.WithFixedUpdater(fixedUpdaterReason))
}
