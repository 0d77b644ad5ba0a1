// Package tensor provides the dense numeric value type that is stored, pushed and
// pulled by the key-value store.
//
// The store itself only depends on the Value interface. It copies numbers in
// exactly three places (init, push merge and pull copy) and never keeps a
// reference to a caller supplied value after a call returns.
//
// Key Components:
//
//   - Context: identifies the device a value lives on (device type mask + id).
//     The masks follow the usual convention: cpu=1, gpu=2, cpu_pinned=3.
//
//   - Shape: the dimensions of a value. Two values are compatible for merging
//     only if their shapes are exactly equal.
//
//   - Value: the adapter interface consumed by the store (Copy, CopyFrom,
//     AddInPlace, Shape, Context, Data and a binary encoding for transport).
//
//   - Dense: a row-major float32 implementation of Value.
//
// Binary Encoding:
//
//	All values share one little endian wire format:
//
//	  magic "TNSR" | version (1B) | device type (1B) | device id (4B) |
//	  rank (1B) | dims (rank x 4B) | data (size x 4B float32)
//
// Usage Example:
//
//	v, _ := tensor.FromSlice(tensor.Shape{2, 2}, []float32{1, 2, 3, 4}, tensor.CPU(0))
//	g := tensor.Ones(tensor.Shape{2, 2}, tensor.CPU(0))
//	_ = v.AddInPlace(g) // v = [2 3 4 5]
package tensor
