package cow

import (
	"testing"

	"github.com/ValentinKolb/dTrie/lib/db"
	dbtesting "github.com/ValentinKolb/dTrie/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunPathDBTests(t, "CowDB", func() db.PathDB {
		return NewCowDB(nil)
	})
	dbtesting.RunPathDBTests(t, "CowDB(keys)", func() db.PathDB {
		return NewCowDB(&DBOptions{KeysOnly: true})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunPathDBBenchmarks(b, "CowDB", func() db.PathDB {
		return NewCowDB(nil)
	})
}
