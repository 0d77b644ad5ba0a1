// Package kvstore is the public API of the tensor store. It turns batched calls into
// independent key/value pairs (the device router), enforces the lifecycle of a store
// instance and relays every pair to a store.IStore backend: a local aggregation
// engine, a shard of a coordinator in the same process or a remote coordinator.
//
// Lifecycle:
//
//	Uninitialized --InitDevices--> DevicesInitialized --first op--> Running --Stop--> Stopped
//
//   - InitDevices registers the local devices once. A second call fails with
//     store.ErrAlreadyInitialized.
//   - The first Init, Push, Pull or Info after InitDevices opens the backend (for a
//     worker this connects to the coordinator, a failure is store.ErrTransport).
//   - Stop waits for in-flight operations, closes the backend and is idempotent.
//     Every later call fails with store.ErrStopped.
//
// Key/Value Expansion:
//
// Push and Pull accept one key with N values (N devices contributing to or
// reading one parameter), M keys with M values, or a single key with a single
// value. Init accepts only 1:1 pairs. Anything else fails with
// store.ErrArityMismatch. Values must live on a registered device.
//
// Broadcast:
//
// All outputs requested for one key in a Pull are filled from the same snapshot,
// the backend is asked once per distinct key.
//
// Usage Example:
//
//	kv := kvstore.NewLocal()
//	_ = kv.InitDevices([]tensor.Context{tensor.GPU(0), tensor.GPU(1)})
//	_ = kv.InitOne(3, tensor.New(tensor.Shape{2, 2}, tensor.GPU(0)))
//
//	// both devices contribute a gradient
//	_ = kv.Push([]db.Key{3}, []tensor.Value{g0, g1})
//
//	// both devices read the aggregated value
//	_ = kv.Pull([]db.Key{3}, []tensor.Value{w0, w1})
//	_ = kv.Stop()
package kvstore
