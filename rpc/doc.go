// Package rpc connects workers to the coordinator that holds the authoritative tables.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, configuration structures and logging.
//
//   - transport: framed request/response transports (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization (Binary, JSON, GOB).
//
//   - client: a store.IStore that relays Init, Push and Pull to the coordinator,
//     and a factory for distributed kvstore.KVStore workers.
//
//   - server: the coordinator. It hosts one aggregation engine per shard and
//     dispatches incoming requests to them.
package rpc
