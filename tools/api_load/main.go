// Load generator for the fxdesk HTTP API. Hammers a read endpoint
// (funding report by default) with a fixed number of workers and
// reports throughput and error counts.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

func main() {
	var (
		targetURL    string
		workers      int
		testDuration time.Duration
		rampUp       time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/api/orders/1/funding", "endpoint URL to hit")
	flag.IntVar(&workers, "workers", 100, "number of concurrent workers")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "ramp-up duration (spread worker starts across this window)")
	flag.Parse()

	if workers <= 0 {
		log.Fatalf("invalid workers: %d", workers)
	}

	log.Printf("starting API load: url=%s workers=%d duration=%s ramp=%s", targetURL, workers, testDuration, rampUp)

	transport := &http.Transport{
		MaxConnsPerHost:     workers + 10,
		MaxIdleConns:        workers + 10,
		MaxIdleConnsPerHost: workers + 10,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("caught signal: %s, shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if testDuration > 0 {
		go func() {
			timer := time.NewTimer(testDuration)
			defer timer.Stop()
			select {
			case <-timer.C:
				log.Printf("duration reached, stopping...")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	var (
		requests  int64
		errs      int64
		non2xx    int64
		totalNsec int64
	)

	var wg sync.WaitGroup
	start := time.Now()

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(workers)
	}

	for i := 0; i < workers; i++ {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
				if err != nil {
					atomic.AddInt64(&errs, 1)
					return
				}

				began := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						atomic.AddInt64(&errs, 1)
					}
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()

				atomic.AddInt64(&requests, 1)
				atomic.AddInt64(&totalNsec, int64(time.Since(began)))
				if resp.StatusCode < 200 || resp.StatusCode > 299 {
					atomic.AddInt64(&non2xx, 1)
				}
			}
		}()
	}

	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Printf("status: requests=%d errs=%d non2xx=%d elapsed=%s",
					atomic.LoadInt64(&requests),
					atomic.LoadInt64(&errs),
					atomic.LoadInt64(&non2xx),
					time.Since(start).Truncate(time.Second),
				)
			}
		}
	}()

	wg.Wait()
	cancel()

	elapsed := time.Since(start)
	if elapsed == 0 {
		elapsed = time.Millisecond
	}
	done := atomic.LoadInt64(&requests)
	var avg time.Duration
	if done > 0 {
		avg = time.Duration(atomic.LoadInt64(&totalNsec) / done)
	}

	fmt.Printf("done: requests=%d errs=%d non2xx=%d elapsed=%s req/s=%.2f avg=%s\n",
		done,
		atomic.LoadInt64(&errs),
		atomic.LoadInt64(&non2xx),
		elapsed.Truncate(time.Millisecond),
		float64(done)/elapsed.Seconds(),
		avg.Truncate(time.Microsecond),
	)
}
