// Package db defines the table abstraction that backs the tensor store.
//
// A table maps integer keys to owned tensor values. Each entry carries a
// generation counter that starts at 0 when the entry is created and grows by one
// for every successful Update or Set, so readers can tell which merge they observed.
//
// Key Components:
//
//   - Table Interface: create (Init), mutate (Update, Set), read (Read, Get, Has,
//     Len, Range) and introspect (GetInfo, SupportsFeature) entries.
//
//   - Feature Flags: implementations may support a subset of operations. Callers
//     check support with SupportsFeature before relying on an operation.
//
//   - Errors: ErrKeyNotFound, ErrKeyExists and ErrClosed are returned wrapped, test
//     them with errors.Is.
//
// Concurrency Contract:
//
//	All methods are safe for concurrent use. Update and Read run their callback
//	while holding the lock of that single entry, so concurrent updates of one key
//	are applied one after another and never interleave. Entries of different keys
//	do not share locks.
//
// Ownership:
//
//	Init and Set store copies. Get returns a copy. Read and Range expose the stored
//	value directly and only for the duration of the callback.
//
// Implementations:
//
//	The maple engine (lib/db/engines/maple) is a sharded in-memory implementation.
package db
