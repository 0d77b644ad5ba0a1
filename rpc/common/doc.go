// Package common provides the data structures shared by the coordinator and its
// workers: the message protocol, configuration and logging.
//
// Key Components:
//
//   - Message: the single structure used for all requests and responses. Requests
//     carry a key and an encoded tensor, responses carry the pulled tensor, the
//     generation of the snapshot and a (Code, Err) pair. Code is a store.RetCode,
//     so typed errors survive the round trip (see Message.ResponseError).
//
//   - MessageType: init, push, pull and info plus the generic success and error types.
//
//   - ServerConfig: shards (each with its own updater), listener settings, timeouts,
//     log level and the metrics endpoint. ParseShards reads the "ID=store(<updater>)"
//     notation used on the command line.
//
//   - ClientConfig: endpoints, connections per endpoint, socket tuning and the
//     request timeout. There is no retry setting, requests are never retried
//     because a repeated push would be merged twice.
//
//   - Logger: a logger factory for Dragonboat's logger package with a consistent
//     "LEVEL | name | message" format, installed with InitLoggers.
package common
