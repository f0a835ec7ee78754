// Command kvbench is a concurrent benchmark harness for emberdb: N workers
// put and get their own disjoint key range concurrently and report
// throughput.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"emberdb/pkg/config"
	"emberdb/pkg/kvstore"
)

func main() {
	dir := flag.String("db", "emberdb-bench", "path to the database directory")
	workers := flag.Int("workers", 100, "number of concurrent writers")
	perWorker := flag.Int("n", 1000, "number of puts per worker")
	valueSize := flag.Int("value-size", 256, "value size in bytes")
	flag.Parse()

	opts := config.Default()
	db, err := kvstore.Open(*dir, opts)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	value := make([]byte, *valueSize)
	for i := range value {
		value[i] = byte(i)
	}

	var puts, gets int64
	start := time.Now()

	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < *workers; w++ {
		w := w
		g.Go(func() error {
			return runWorker(ctx, db, w, *perWorker, value, &puts, &gets)
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "benchmark failed:", err)
		os.Exit(1)
	}

	elapsed := time.Since(start)
	fmt.Printf("%d workers x %d ops: %d puts, %d gets in %s (%.0f ops/sec)\n",
		*workers, *perWorker, puts, gets, elapsed,
		float64(puts+gets)/elapsed.Seconds())
}

func runWorker(ctx context.Context, db *kvstore.DB, worker, n int, value []byte, puts, gets *int64) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := []byte(fmt.Sprintf("worker-%04d-key-%08d", worker, i))
		if err := db.Put(key, value); err != nil {
			return fmt.Errorf("worker %d put %d: %w", worker, i, err)
		}
		atomic.AddInt64(puts, 1)

		got, closer, err := db.Get(ctx, kvstore.ReadOptions{}, key)
		if err != nil {
			return fmt.Errorf("worker %d get %d: %w", worker, i, err)
		}
		closer.Close()
		if len(got) != len(value) {
			return fmt.Errorf("worker %d get %d: size mismatch", worker, i)
		}
		atomic.AddInt64(gets, 1)
	}
	return nil
}
