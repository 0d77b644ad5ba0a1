// Package unix provides Unix domain socket connectors for the base transport,
// for workers running on the same machine as the coordinator.
//
// The server removes a stale socket file before listening. The default read
// buffer is 64 KB.
package unix
