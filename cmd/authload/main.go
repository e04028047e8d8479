// Command authload drives the failure-lockout counter and refresh
// verification record concurrently against Redis (or miniredis) and prints
// per-phase latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/almagest-io/almagestAuth/internal"
	"github.com/almagest-io/almagestAuth/internal/limiters"
	"github.com/almagest-io/almagestAuth/internal/stores"
)

type memberState struct {
	id     string
	verify string
	mu     sync.Mutex
}

func main() {
	var (
		members     = flag.Int("members", 10000, "number of members to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (lockout + refresh)")
		maxAttempts = flag.Int("max-attempts", 5, "failures before an identity locks")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *members <= 0 || *concurrency <= 0 || *ops <= 0 || *maxAttempts <= 0 {
		fmt.Fprintln(os.Stderr, "members, concurrency, ops and max-attempts must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	runID := time.Now().UnixNano()
	lockout := limiters.NewLockoutLimiter(client, limiters.LockoutConfig{
		Prefix:      fmt.Sprintf("load-fail-%d", runID),
		Window:      10 * time.Minute,
		MaxAttempts: *maxAttempts,
	})
	refresh := stores.NewRefreshStore(client, fmt.Sprintf("load-refresh-%d", runID))

	states := make([]memberState, *members)
	fmt.Printf("seeding %d refresh records...\n", *members)
	startSeed := time.Now()
	for i := range states {
		v, err := internal.NewVerificationString()
		if err != nil {
			fmt.Fprintf(os.Stderr, "verification string: %v\n", err)
			os.Exit(1)
		}
		states[i].id = fmt.Sprintf("member-%d", i)
		states[i].verify = v
		if err := refresh.Save(ctx, states[i].id, v, time.Hour); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	lockoutStats, locked := runLockoutPhase(ctx, lockout, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, refresh, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("lockout", lockoutStats)
	fmt.Printf("lockout: locked responses=%d\n", locked)
	printStats("refresh", refreshStats)
}

// runLockoutPhase records failures against random members. The counter may
// under-count under concurrency, so the locked total is informative only.
func runLockoutPhase(ctx context.Context, l *limiters.LockoutLimiter, states []memberState, ops, concurrency int) (phaseStats, int64) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		locked    int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(states))
				t0 := time.Now()
				out, err := l.RecordFailure(ctx, states[idx].id)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else if out.Locked() {
					atomic.AddInt64(&locked, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures), locked
}

// runRefreshPhase checks the current verification string and rotates it,
// the same sequence token issuance and renewal perform.
func runRefreshPhase(ctx context.Context, s *stores.RefreshStore, states []memberState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				next, err := internal.NewVerificationString()
				if err != nil {
					state.mu.Unlock()
					atomic.AddInt64(&failures, 1)
					continue
				}
				t0 := time.Now()
				ok, err := s.Matches(ctx, state.id, state.verify)
				if err == nil && ok {
					err = s.Save(ctx, state.id, next, time.Hour)
				}
				d := time.Since(t0)
				if err == nil && ok {
					state.verify = next
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
