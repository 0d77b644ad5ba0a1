// Package lstore implements the aggregation engine: a local, in-memory store.IStore
// on top of any db.Table.
//
// Key Features:
//   - Init stores an owned copy, re-init fails with RetCDuplicateKey
//   - Push merges synchronously in the caller's goroutine under the entry lock
//   - Pull copies the canonical value into a caller supplied buffer
//   - A store wide updater replaces the default element-wise sum
//   - Validate checks a request without executing it (store.IValidator)
//
// Implementation Details:
//
//   - Merge: Push resolves the updater once and runs it inside db.Table.Update. The
//     table serializes all updates of one key and only bumps the generation when
//     the updater succeeds. Shapes are checked before the updater runs, so a custom
//     updater never sees a mismatched pair.
//
//   - Updater Slot: the updater is an atomic pointer on the store instance. Pushes
//     that already resolved the old updater finish with it, replacing the updater
//     while pushes are in flight is therefore not atomic across those pushes.
//
//   - Error Mapping: table and tensor errors (db.ErrKeyNotFound, db.ErrKeyExists,
//     tensor.ErrShapeMismatch, ...) are converted into *store.Error values with the
//     matching return code.
//
// Usage Example:
//
//	factory := func() db.Table { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	_ = s.Init(0, tensor.New(tensor.Shape{2}, tensor.CPU(0)))
//	_ = s.Push(0, tensor.Ones(tensor.Shape{2}, tensor.CPU(0)))
//
//	out := tensor.New(tensor.Shape{2}, tensor.CPU(0))
//	gen, err := s.Pull(0, out) // out = [1 1], gen = 1
package lstore
