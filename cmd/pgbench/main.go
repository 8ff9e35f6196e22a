// Command pgbench drives a synthetic random-access workload against a
// pagecache handle and reports throughput and how many reads returned
// data (engine hit/miss counts are on /metrics when enabled). It is an
// external consumer of the handle API: argument parsing, file
// pre-allocation, and wall-clock timing live here, not in the core
// engine.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"sync/atomic"
	"time"

	"github.com/ondisk/pagecache"
	pmet "github.com/ondisk/pagecache/metrics/prom"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		path     = flag.String("file", "pgbench.dat", "backing file path")
		pages    = flag.Int("pages", 100_000, "working-set size in pages")
		workers  = flag.Int("workers", 4, "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")
		zipfS    = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV    = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", "", "serve Prometheus metrics at addr; empty = disabled")
	)
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	if *metricsAddr != "" {
		metrics := pmet.New(nil, "pagecache", "bench", nil)
		pagecache.SetMetrics(metrics)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics: serving at %s", *metricsAddr)
			log.Println(http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	if err := preallocate(*path, *pages); err != nil {
		log.Fatalf("preallocate: %v", err)
	}

	pageSize := os.Getpagesize()
	keysMax := uint64(*pages - 1)
	readPctVal := *readPct
	seedBase := *seed
	zipfSVal, zipfVVal := *zipfS, *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	var reads, writes, hits, misses, total uint64

	start := time.Now()
	deadline := start.Add(*duration)
	var g errgroup.Group
	for w := 0; w < workersN; w++ {
		w := w
		g.Go(func() error {
			// Each worker owns its own handle: handles are
			// single-threaded, so concurrent throughput comes from
			// independent file descriptors and replacement engines,
			// not shared access to one.
			id, err := pagecache.Open(*path, pagecache.ORead|pagecache.OWrite)
			if err != nil {
				return err
			}
			defer func() { _ = pagecache.Close(id) }()

			localR := rand.New(rand.NewSource(seedBase + int64(w)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)
			buf := make([]byte, pageSize)

			for time.Now().Before(deadline) {
				atomic.AddUint64(&total, 1)
				pageNo := int64(localZipf.Uint64())
				offset := pageNo * int64(pageSize)

				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					if _, err := pagecache.Seek(id, offset, pagecache.SeekSet); err != nil {
						continue
					}
					n, err := pagecache.Read(id, buf)
					if err == nil && n > 0 {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					if _, err := pagecache.Seek(id, offset, pagecache.SeekSet); err != nil {
						continue
					}
					_, _ = pagecache.Write(id, buf)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	fmt.Printf("pages=%d workers=%d dur=%v seed=%d\n", *pages, workersN, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("served-reads=%d  empty-reads=%d\n", hitsN, missesN)
}

// preallocate ensures the backing file is at least pages*pageSize bytes.
func preallocate(path string, pages int) error {
	id, err := pagecache.Open(path, pagecache.ORead|pagecache.OWrite|pagecache.OCreate)
	if err != nil {
		return err
	}
	defer func() { _ = pagecache.Close(id) }()

	pageSize := os.Getpagesize()
	target := int64(pages) * int64(pageSize)
	if _, err := pagecache.Seek(id, target-1, pagecache.SeekSet); err != nil {
		return err
	}
	_, err = pagecache.Write(id, []byte{0})
	return err
}
