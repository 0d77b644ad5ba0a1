// Package cmd implements the command-line interface for tKV. It provides a
// coordinator server and client commands that act as a worker against it.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a coordinator that owns one tensor store per shard
//   - kv: Worker commands (init, push, pull, info, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See tkv -help for a list of all commands.
package cmd
