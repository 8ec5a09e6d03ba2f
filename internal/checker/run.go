// Package checker implements the proxy-checker: a bounded worker pool
// of probers that validate a list of upstream proxies and report
// outcomes in input order.
package checker

import (
	"context"
	"sync"

	"github.com/tunelo-project/tunelo/internal/upstream"
)

// Run probes every proxy concurrently with a bounded pool of
// cfg.Probers workers and returns results in the same order as
// proxies, regardless of completion order: an index channel feeds
// workers, and each worker writes its outcome into a pre-allocated,
// index-addressed result slot rather than appending to a shared slice.
func Run(ctx context.Context, proxies []upstream.Proxy, cfg Config) []ProbeResult {
	results := make([]ProbeResult, len(proxies))
	if len(proxies) == 0 {
		return results
	}

	workers := cfg.Probers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(proxies) {
		workers = len(proxies)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = probeOne(ctx, proxies[idx], cfg)
			}
		}()
	}

	for i := range proxies {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
