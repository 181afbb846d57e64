package path

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dTrie/cmd/util"
	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dTrie servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfPathPrefix       = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfPathSpread       = 1000
	perfOps              = 10000
	perfSkip             = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,match)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("Number of operations per benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the payload for the insert-large test should be (in KB)"))
	key = "paths"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("How many different paths to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfPathSpread = max(1, viper.GetInt("paths"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfOps = max(1, viper.GetInt("ops"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfResult is the outcome of one benchmark
type perfResult struct {
	name    string
	timer   metrics.Timer
	elapsed time.Duration
	errors  int64
	skipped bool
}

// perfTest describes one benchmark: setup and cleanup run untimed, op is called perfOps times
type perfTest struct {
	name    string
	setup   func() error
	op      func(ctx context.Context, i int) error
	cleanup func()
}

func runPerf(cmd *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dTrie servers")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Operations: %d, Paths: %d\n", perfNumThreads, perfOps, perfPathSpread)
	fmt.Println()

	fmt.Println("starting tests...")

	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	registry := metrics.NewRegistry()

	tests := []perfTest{
		{
			name: "insert",
			op: func(_ context.Context, i int) error {
				_, err := rpcStore.Insert(perfPath("insert", i), nil)
				return err
			},
			cleanup: func() { deletePaths("insert") },
		},
		{
			name: "insert-large",
			op: func(_ context.Context, i int) error {
				_, err := rpcStore.Insert(perfPath("insert-large", i), largeValue)
				return err
			},
			cleanup: func() { deletePaths("insert-large") },
		},
		{
			name:  "lookup",
			setup: func() error { return insertPaths("lookup") },
			op: func(_ context.Context, i int) error {
				_, _, err := rpcStore.Lookup(perfPath("lookup", i))
				return err
			},
			cleanup: func() { deletePaths("lookup") },
		},
		{
			name: "lookup-miss",
			op: func(_ context.Context, i int) error {
				_, _, err := rpcStore.Lookup(perfPath("lookup-miss", i))
				return err
			},
		},
		{
			name:  "delete",
			setup: func() error { return insertPaths("delete") },
			op: func(_ context.Context, i int) error {
				_, err := rpcStore.Delete(perfPath("delete", i))
				return err
			},
			cleanup: func() { deletePaths("delete") },
		},
		{
			// reads the first 10 paths below the test prefix, the rest of the scan is cancelled
			name:  "prefix",
			setup: func() error { return insertPaths("prefix") },
			op: func(ctx context.Context, _ int) error {
				cur, err := rpcStore.Prefix(ctx, token.P(token.Arity(3), token.Atom(perfPathPrefix), token.Atom("prefix")))
				if err != nil {
					return err
				}
				return drain(cur, 10)
			},
			cleanup: func() { deletePaths("prefix") },
		},
		{
			name:  "match",
			setup: func() error { return insertPaths("match") },
			op: func(ctx context.Context, i int) error {
				cur, err := rpcStore.Match(ctx, token.Pattern{
					token.Lit(token.Arity(3)), token.Lit(token.Atom(perfPathPrefix)), token.Var("test"),
					token.Lit(token.Int(int64(i % perfPathSpread))),
				})
				if err != nil {
					return err
				}
				return drain(cur, 0)
			},
			cleanup: func() { deletePaths("match") },
		},
		{
			name:  "mixed",
			setup: func() error { return insertPaths("mixed") },
			op: func(ctx context.Context, i int) error {
				p := perfPath("mixed", i)
				var err error
				switch i % 4 {
				case 0:
					_, err = rpcStore.Insert(p, nil)
				case 1:
					_, _, err = rpcStore.Lookup(p)
				case 2:
					_, err = rpcStore.Delete(p)
				case 3:
					cur, cerr := rpcStore.Prefix(ctx, p[:3])
					if cerr != nil {
						return cerr
					}
					err = drain(cur, 10)
				}
				return err
			},
			cleanup: func() { deletePaths("mixed") },
		},
	}

	results := make([]perfResult, 0, len(tests))
	for _, test := range tests {
		res, err := runPerfTest(cmd.Context(), test)
		if err != nil {
			registry.UnregisterAll()
			return fmt.Errorf("benchmark %s aborted: %w", test.name, err)
		}
		if !res.skipped {
			_ = registry.Register(test.name, res.timer)
		}
		results = append(results, res)
		printResult(res)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	registry.UnregisterAll()
	return nil
}

// runPerfTest distributes perfOps operations over perfNumThreads workers and times each.
// Failed operations are only counted in the result. The returned error is set if ctx was
// cancelled before all operations ran.
func runPerfTest(ctx context.Context, test perfTest) (perfResult, error) {
	res := perfResult{name: test.name, timer: metrics.NewTimer()}
	if slices.Contains(perfSkip, test.name) {
		res.skipped = true
		return res, nil
	}

	if test.setup != nil {
		if err := test.setup(); err != nil {
			log.Printf("(%s) - setup failed: %v\n", test.name, err)
		}
	}
	if test.cleanup != nil {
		defer test.cleanup()
	}

	var errCount atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < perfNumThreads; w++ {
		g.Go(func() error {
			for i := w; i < perfOps; i += perfNumThreads {
				if err := ctx.Err(); err != nil {
					return err
				}
				opStart := time.Now()
				err := test.op(ctx, i)
				res.timer.UpdateSince(opStart)
				if err != nil {
					if errCount.Add(1) == 1 {
						log.Printf("(%s) - error: %v\n", test.name, err)
					}
				}
			}
			return nil
		})
	}
	err := g.Wait()
	res.elapsed = time.Since(start)
	res.errors = errCount.Load()
	res.timer.Stop()
	return res, err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// perfPath builds (__perf <test> <i % paths>)
func perfPath(test string, i int) token.Path {
	return token.P(token.Arity(3), token.Atom(perfPathPrefix), token.Atom(test), token.Int(int64(i%perfPathSpread)))
}

func insertPaths(test string) error {
	for i := 0; i < perfPathSpread; i++ {
		if _, err := rpcStore.Insert(perfPath(test, i), nil); err != nil {
			return err
		}
	}
	return nil
}

func deletePaths(test string) {
	for i := 0; i < perfPathSpread; i++ {
		if _, err := rpcStore.Delete(perfPath(test, i)); err != nil {
			log.Printf("(%s) - error deleting path: %v\n", test, err)
			return
		}
	}
}

// drain reads up to limit entries (all for limit <= 0) and closes the cursor
func drain(cur db.Cursor, limit int) error {
	defer cur.Close()
	for n := 0; (limit <= 0 || n < limit) && cur.Next(); n++ {
	}
	return cur.Err()
}

func opsPerSec(res perfResult) float64 {
	if res.elapsed <= 0 {
		return 0
	}
	return float64(res.timer.Count()) / res.elapsed.Seconds()
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(res perfResult) {
	if res.skipped {
		fmt.Printf("%-15sskipped\n", res.name)
		return
	}
	ps := res.timer.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-15s%8.0f ops/sec\tmean %-12s p50 %-12s p99 %-12s errors %d\n",
		res.name,
		opsPerSec(res),
		time.Duration(res.timer.Mean()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		res.errors,
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult) error {
	config := util.GetClientConfig()

	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "Ops", "OpsPerSec", "MeanNs", "P50Ns", "P99Ns", "Errors", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Paths",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, res := range results {
		ps := res.timer.Percentiles([]float64{0.5, 0.99})
		row := []string{
			res.name,
			strconv.FormatInt(res.timer.Count(), 10),
			fmt.Sprintf("%.0f", opsPerSec(res)),
			fmt.Sprintf("%.0f", res.timer.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			strconv.FormatInt(res.errors, 10),
			strconv.FormatBool(res.skipped),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfPathSpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", res.name, err)
		}
	}

	return nil
}
