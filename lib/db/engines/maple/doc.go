// Package maple implements an in-memory tensor table (db.Table) built for many
// concurrent writers hammering a small set of keys.
//
// Key Components:
//
//   - mapleImpl: The table structure implementing db.Table. It owns a fixed number
//     of shards and routes every key to exactly one of them.
//
//   - Shard: A partition of the key space backed by an xsync.MapOf. Each shard is
//     a concurrent map, lookups never block writers on other shards.
//
//   - Entry: An owned tensor value, its generation counter and a mutex. Entries
//     are stored by pointer, so the map is only touched on Init and lookups while
//     all merges lock the single entry they modify.
//
// Internal Mechanisms:
//
//   - Sharding Strategy: Keys are small integers (0, 1, 2, ...). To avoid placing
//     neighbouring keys on the same shard they are mixed with a per-table seed
//     using the splitmix64 finalizer before the modulo.
//
//   - Atomic Creation: Init uses LoadOrCompute on the shard map. If two goroutines
//     initialize the same key concurrently exactly one entry is created and the
//     second caller receives db.ErrKeyExists.
//
//   - Per-Entry Serialization: Update and Read take the entry mutex and run the
//     callback while holding it. Merges on one key are therefore applied strictly
//     one after another. The generation is only incremented when the callback
//     succeeds.
//
// Statistics:
//
//	GetInfo samples up to 100 entries per shard to estimate the memory footprint
//	and reports the shard distribution quality. All values are estimates.
//
// Usage Example:
//
//	table := maple.NewMapleDB(nil)
//	_ = table.Init(7, tensor.Ones(tensor.Shape{4}, tensor.CPU(0)))
//	gen, err := table.Update(7, func(v tensor.Value) error {
//		return v.AddInPlace(tensor.Ones(tensor.Shape{4}, tensor.CPU(0)))
//	})
package maple
