// Package store defines the aggregation engine contract of the tensor store and the
// unified error system used across all layers (local engine, RPC client and server,
// public kvstore API).
//
// Key Components:
//
//   - IStore Interface: Init, Push, Pull and SetUpdater on a single table of
//     tensors. All implementations share this interface so the public API can run
//     against a local engine or a remote coordinator without code changes.
//
//   - Updater: the merge function applied by Push. It receives the incoming value
//     and the stored value and modifies the stored value in place. Without an
//     updater Push sums element-wise.
//
//   - IValidator: optional pre-validation. The public API uses it to reject a batch
//     (unknown keys, shape mismatches) before any pair of the batch is applied.
//
//   - Error System: every failure is a *Error carrying a RetCode. Each code has a
//     sentinel (ErrUnknownKey, ErrStopped, ...) and *Error implements Is by code,
//     so callers test errors with errors.Is regardless of which layer produced them.
//     Codes travel over the wire unchanged, a remote ErrShapeMismatch is still an
//     ErrShapeMismatch on the worker.
//
// Implementations:
//
//   - Local Store (lstore): the aggregation engine on top of a db.Table.
//     Available in the "github.com/ValentinKolb/tKV/lib/store/lstore" package.
//
//   - RPC Store (rpc/client): relays every call to a coordinator process.
//     Available in the "github.com/ValentinKolb/tKV/rpc/client" package.
package store
