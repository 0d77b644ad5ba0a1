// Package http implements the RPC transport over HTTP. Each request is a
// POST /{shardId} with the serialized message as body; the response body is
// the serialized response.
//
// The client spreads requests round robin over all endpoints (plain host:port
// endpoints get an http:// prefix) and never retries. TimeoutSecond is the
// overall request timeout. With log level debug the server logs every request.
//
// The HTTP transport is simpler to inspect and proxy than tcp or unix, but
// pays for a full HTTP exchange per request.
package http
