// Command cache_flush evicts the CPU caches before a benchmark by streaming
// through a buffer larger than the last-level cache, the same flush the
// many-core platform performs before every run.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/internal/logging"
	"github.com/LynnColeArt/sbench/platform"
	"github.com/LynnColeArt/sbench/storage"
)

func main() {
	var (
		sizeMB  = flag.Int("size", sbench.DefaultFlushSize/(1<<20), "Flush buffer size in MB")
		workers = flag.Int("workers", 0, "Threads touching the buffer, 0 for all CPUs")
		passes  = flag.Int("passes", 2, "Number of flushes")
		level   = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()

	log, err := logging.New(logging.Options{Level: *level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cache_flush: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	fmt.Printf("Cache flush utility: streaming %d MB to evict CPU caches...\n", *sizeMB)

	p := platform.NewManyCore(storage.NewHostAllocator(), platform.ManyCoreConfig{
		Workers:   *workers,
		FlushSize: *sizeMB << 20,
	}, log)
	defer p.Close()

	start := time.Now()
	for i := 0; i < *passes; i++ {
		if err := p.FlushCache(); err != nil {
			fmt.Fprintf(os.Stderr, "cache_flush: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Cache flush completed in %v\n", time.Since(start))
	fmt.Println("Caches should now be mostly cold. Running benchmarks...")

	runtime.GC()
}
