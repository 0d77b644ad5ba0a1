// Package client implements the worker side of tKV. NewRPCStore returns a
// store.IStore that relays every operation to the coordinator, and
// NewDistributedKVStore wraps it in a kvstore.KVStore so workers use the same
// API in distributed and single process mode.
//
// Values are sent encoded with the tensor codec. Every request carries the
// worker's random ID in Message.Meta. Errors raised on the coordinator come back
// with their original return code; failures of the transport itself (connection,
// timeout, undecodable response) are reported as store.RetCTransportError.
// Requests are never retried.
//
// SetUpdater is not available on workers. Configure the updater of a shard on
// the coordinator instead (see common.ParseShards).
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints: []string{"localhost:8080"},
//	  },
//	}
//
//	kv := client.NewDistributedKVStore(100, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	_ = kv.InitDevices([]tensor.Context{tensor.GPU(0), tensor.GPU(1)})
//	err := kv.InitOne(3, tensor.Ones(tensor.Shape{2, 3}, tensor.CPU(0)))
package client
