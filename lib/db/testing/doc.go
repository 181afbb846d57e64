// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.PathDB interface.
//
// The package contains:
//   - testing: A comprehensive test suite for validating conformance to the PathDB interface contract,
//     including randomized comparisons of prefix enumeration and pattern matching against simple
//     reference implementations
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.PathDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunPathDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunPathDBBenchmarks(b, "MyDatabase", factory)
package testing
