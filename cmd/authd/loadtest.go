package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/session"
)

type loadtestOptions struct {
	sessions    int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
}

// NewLoadtestCmd creates the loadtest subcommand, which measures session store
// read and extend latency against Redis or an in-process miniredis.
func NewLoadtestCmd() *cobra.Command {
	opts := loadtestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure session store latency",
		Long: `Seed sessions into Redis, then run a read phase (Get) and an extend phase
(ExtendExpiry) with concurrent workers and report p50/p95/p99 latencies.
Without --redis-addr an in-process miniredis is used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&opts.sessions, "sessions", 100000, "number of sessions to seed")
	fs.IntVar(&opts.concurrency, "concurrency", 256, "number of concurrent workers")
	fs.IntVar(&opts.ops, "ops", 200000, "operations per phase")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; empty uses miniredis")
	fs.StringVar(&opts.prefix, "prefix", "sa-loadtest", "session key prefix")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("sessions, concurrency, and ops must be > 0")
	}

	addr := opts.redisAddr
	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() { _ = client.Close() }()

	store := session.NewStore(client, opts.prefix)
	now := time.Now()

	ids := make([]string, opts.sessions)
	fmt.Fprintf(out, "seeding %d sessions...\n", opts.sessions)
	startSeed := time.Now()
	for i := range ids {
		sid, err := internal.NewID()
		if err != nil {
			return err
		}
		ids[i] = sid
		sess := &session.Session{
			SessionID: sid,
			UserID:    fmt.Sprintf("user-%d", i%1000),
			UserAgent: "authd-loadtest",
			CreatedAt: now.UnixMilli(),
			ExpiresAt: now.Add(24 * time.Hour).UnixMilli(),
		}
		if err := store.Create(ctx, sess, now); err != nil {
			return fmt.Errorf("seed session: %w", err)
		}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	getStats := runPhase(opts, len(ids), func(idx, _ int) error {
		_, err := store.Get(ctx, ids[idx], time.Now())
		return err
	})
	extendStats := runPhase(opts, len(ids), func(idx, i int) error {
		sess, err := store.Get(ctx, ids[idx], time.Now())
		if err != nil {
			return err
		}
		sess.ExpiresAt = now.Add(24*time.Hour + time.Duration(i)*time.Millisecond).UnixMilli()
		return store.ExtendExpiry(ctx, sess, time.Now())
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "get", getStats)
	printStats(out, "extend", extendStats)
	return nil
}

// runPhase runs opts.ops calls of op across opts.concurrency workers, each picking a
// random session index.
func runPhase(opts loadtestOptions, n int, op func(idx, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.ops {
					return
				}
				t0 := time.Now()
				err := op(r.Intn(n), i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
