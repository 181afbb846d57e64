package testing

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
)

// RunPathDBBenchmarks runs all benchmarks for a path database implementation
func RunPathDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Insert", func(b *testing.B) {
		benchmarkInsert(b, factory())
	})

	b.Run("InsertExisting", func(b *testing.B) {
		benchmarkInsertExisting(b, factory())
	})

	b.Run("Lookup", func(b *testing.B) {
		benchmarkLookup(b, factory())
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory())
	})

	b.Run("Prefix", func(b *testing.B) {
		benchmarkPrefix(b, factory())
	})

	b.Run("Match", func(b *testing.B) {
		benchmarkMatch(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// benchPath builds (edge <i/1000> <i>) so that the benchmark trie has shared prefixes
func benchPath(i int) token.Path {
	return token.P(token.Arity(3), token.Atom("edge"), token.Int(int64(i/1000)), token.Int(int64(i)))
}

func populate(database db.PathDB, n int) {
	for i := 0; i < n; i++ {
		database.Insert(benchPath(i), []byte("payload"), uint64(i+1))
	}
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Insert operation
func benchmarkInsert(b *testing.B, database db.PathDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := int(counter.Add(1))
			database.Insert(benchPath(i), []byte("payload"), 0)
		}
	})
}

// Benchmark for Insert operation with existing paths
func benchmarkInsertExisting(b *testing.B, database db.PathDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	numPaths := 10000
	populate(database, numPaths)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Insert(benchPath(counter%numPaths), []byte("replaced"), 0)
			counter++
		}
	})
}

// Parallel benchmarking for Lookup operation
func benchmarkLookup(b *testing.B, database db.PathDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureLookup)

	numPaths := 10000
	populate(database, numPaths)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Lookup(benchPath(counter % numPaths))
			counter++
		}
	})
}

// Parallel benchmarking for Delete operation
func benchmarkDelete(b *testing.B, database db.PathDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureDelete)

	numPaths := min(b.N, 100000)
	populate(database, numPaths)

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			idx := int(counter.Add(1)-1) % numPaths
			database.Delete(benchPath(idx), 0)
		}
	})
}

// Enumerates the 1000 paths below one (edge n) prefix per iteration
func benchmarkPrefix(b *testing.B, database db.PathDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeaturePrefix)

	populate(database, 10000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			prefix := token.P(token.Arity(3), token.Atom("edge"), token.Int(int64(counter%10)))
			cur := database.Snapshot().Prefix(context.Background(), prefix)
			for cur.Next() {
			}
			cur.Close()
			counter++
		}
	})
}

// Matches (edge $x $x), which restricts the second variable to the bound value
func benchmarkMatch(b *testing.B, database db.PathDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureMatch)

	populate(database, 10000)
	pattern := token.Pattern{
		token.Lit(token.Arity(3)), token.Lit(token.Atom("edge")), token.Var("x"), token.Var("x"),
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cur, err := database.Snapshot().Match(context.Background(), pattern)
			if err != nil {
				b.Error(err)
				return
			}
			for cur.Next() {
			}
			cur.Close()
		}
	})
}

// Benchmark for Save and Load operations
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {

	database := factory()

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureSave|db.FeatureLoad)

	populate(database, 10000)

	b.Run("Save", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			database.Save(&buf)
		}
	})

	// Prepare a data buffer for Load benchmark
	var loadBuf bytes.Buffer
	database.Save(&loadBuf)
	data := loadBuf.Bytes()

	b.Run("Load", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			loadDB := factory()
			loadDB.Load(bytes.NewReader(data))
			loadDB.Close()
		}
	})
}

// Benchmark for mixed usage patterns: lookups, inserts, deletes and small prefix scans
func benchmarkMixedUsage(b *testing.B, database db.PathDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureDelete|db.FeatureLookup|db.FeaturePrefix)

	numPaths := min(b.N, 100000)
	populate(database, numPaths)

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localCounter := 0
		for pb.Next() {
			idx := int(counter.Add(1)-1) % numPaths
			path := benchPath(idx)

			switch localCounter % 5 {
			case 0, 1:
				database.Lookup(path)
			case 2:
				database.Insert(path, []byte("mixed"), 0)
			case 3:
				database.Delete(path, 0)
			case 4:
				cur := database.Snapshot().Prefix(context.Background(), path[:3])
				for k := 0; k < 10 && cur.Next(); k++ {
				}
				cur.Close()
			}
			localCounter++
		}
	})
}
