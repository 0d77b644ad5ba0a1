// Package testing provides standardised tests and benchmarks for
// table implementations that satisfy the db.Table interface.
//
// The package contains:
//   - testing: A conformance suite for the Table contract (ownership, generations,
//     per-entry serialization under concurrency, error semantics)
//   - benchmark: Throughput tests for init, update (cold and hot keys) and get
//
// Example usage:
//
//	factory := func() db.Table {
//		return NewMyTable()
//	}
//
//	dbtesting.RunTableTests(t, "MyTable", factory)
//	dbtesting.RunTableBenchmarks(b, "MyTable", factory)
package testing
