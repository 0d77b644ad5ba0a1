// Package base implements the framed request/response transport shared by the
// tcp and unix transports. Protocol specific work (dialing, listening, socket
// options) is injected through IClientConnector and IServerConnector.
//
// Frame format (all big endian):
//
//	shardID (8B) | requestID (8B) | length (4B) | payload
//
// Client:
//
//   - Keeps ConnectionsPerEndpoint connections per endpoint and picks one round
//     robin per request.
//   - Requests are multiplexed on a connection and matched to responses by
//     request ID. A reader goroutine per connection delivers responses.
//   - When a connection fails, every request waiting on it fails immediately and
//     the next Send dials a new connection. Requests are never resent.
//
// Server:
//
//   - One goroutine per connection reads frames, up to WorkersPerConn handlers
//     run concurrently per connection. With one worker, responses are written in
//     request order.
//   - Read buffers come from a sync.Pool.
//   - Close stops the listener, closes all connections and waits for their handlers.
//
// TimeoutSecond bounds writes and the wait for a response. Idle connections are
// never timed out.
package base
