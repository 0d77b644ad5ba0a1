// Package server implements the tKV coordinator. The coordinator owns the
// authoritative table of every configured shard and answers init, push, pull
// and info requests of the workers, plus validate requests that check a batch
// before any of it is applied.
//
// Key Components:
//
//   - IRPCServerAdapter: translates a decoded common.Message into calls on a
//     store.IStore and builds the response. NewIStoreServerAdapter is the only
//     adapter; pulls are answered with store.ISnapshotter so the coordinator does
//     not need to know the shape the worker expects.
//
//   - RPCServer: creates one local store per shard (with the shard's updater),
//     decodes requests, dispatches them to the shard adapter and records
//     request metrics (VictoriaMetrics) that are exposed at MetricsEndpoint/metrics.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100},                  // element-wise sum
//	    {ShardID: 200, Updater: "max"},
//	  },
//	  Transport: common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	}
//
//	s, err := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// A worker running inside the coordinator process can skip the transport:
//
//	backend, _ := s.Store(100)
//	kv := kvstore.NewWithStore("local", backend)
//
// Thread Safety:
//
//	Requests of different connections are handled concurrently, requests of one
//	connection use up to WorkersPerConn goroutines. Serve must be called once.
package server
