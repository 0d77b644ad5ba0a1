// Package transport defines the interfaces for moving serialized messages between
// tKV workers and the coordinator.
//
// Key Components:
//
//   - IRPCClientTransport: connects to one or more coordinator endpoints and sends
//     a request to a shard, blocking until its response arrives.
//
//   - IRPCServerTransport: accepts connections and hands every request to the
//     registered ServerHandleFunc together with its shard ID.
//
// Implementations live in the tcp, unix and http subpackages; tcp and unix share
// the framing and connection handling of the base package.
package transport
