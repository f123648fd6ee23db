// Command slateauth-loadtest drives concurrent sign-ups and sign-ins against
// one storage backend and reports latency and exactly-once account creation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/slatekit/slateauth"
	"github.com/slatekit/slateauth/store"
	"github.com/slatekit/slateauth/store/filestore"
	"github.com/slatekit/slateauth/store/redisstore"
	"github.com/slatekit/slateauth/store/sqlstore"
)

func main() {
	var (
		backendName = flag.String("backend", "memory", "memory, file, redis or sqlite")
		users       = flag.Int("users", 200, "distinct usernames to create")
		racers      = flag.Int("racers", 4, "concurrent sign-up attempts per username")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 2000, "sign-in operations")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		verbose     = flag.Bool("v", false, "log engine events to stderr")
	)
	flag.Parse()

	if *users <= 0 || *racers <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, racers, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	backend, cleanup, err := openBackend(*backendName, *redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backend: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := slateauth.DefaultConfig()
	// Loadtests measure the store path, not Argon2.
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	builder := slateauth.New().WithConfig(cfg).WithBackend(backend)
	if *verbose {
		builder = builder.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}
	engine, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close(ctx)

	signUp := runSignUpPhase(ctx, engine, *users, *racers, *concurrency)
	signIn := runSignInPhase(ctx, engine, *users, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("sign-up", signUp.phaseStats)
	fmt.Printf("sign-up: created=%d duplicates=%d (want created=%d)\n", signUp.created, signUp.duplicates, *users)
	printStats("sign-in", signIn)

	if signUp.created != int64(*users) {
		fmt.Fprintln(os.Stderr, "exactly-once creation violated")
		os.Exit(1)
	}
}

func openBackend(name, redisAddr string) (store.Backend, func(), error) {
	switch name {
	case "memory":
		return store.NewMemoryBackend(), func() {}, nil
	case "file":
		dir, err := os.MkdirTemp("", "slateauth-loadtest")
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf("using file store in %s\n", dir)
		return filestore.New(filepath.Join(dir, "store.json"), filestore.Options{}), func() { _ = os.RemoveAll(dir) }, nil
	case "sqlite":
		dir, err := os.MkdirTemp("", "slateauth-loadtest")
		if err != nil {
			return nil, nil, err
		}
		backend, err := sqlstore.Open(sqlstore.DialectSQLite, filepath.Join(dir, "store.db"))
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, nil, err
		}
		fmt.Printf("using sqlite in %s\n", dir)
		return backend, func() { _ = os.RemoveAll(dir) }, nil
	case "redis":
		addr := redisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		var mr *miniredis.Miniredis
		if addr == "" {
			var err error
			mr, err = miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("start miniredis: %w", err)
			}
			addr = mr.Addr()
			fmt.Printf("using miniredis at %s\n", addr)
		} else {
			fmt.Printf("using redis at %s\n", addr)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		return redisstore.New(client, "slateauth-loadtest"), func() {
			_ = client.Close()
			if mr != nil {
				mr.Close()
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
}

type signUpStats struct {
	phaseStats
	created    int64
	duplicates int64
}

// runSignUpPhase has racers workers contend for every username at once.
func runSignUpPhase(ctx context.Context, engine *slateauth.Engine, users, racers, concurrency int) signUpStats {
	var (
		wg         sync.WaitGroup
		cursor     int64
		created    int64
		duplicates int64
		failures   int64
		total      = users * racers
		latencies  = make([]time.Duration, 0, total)
		mu         sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= total {
					return
				}
				req := slateauth.SignUpRequest{
					Username: username(i % users),
					Password: "pw-" + username(i%users),
				}
				t0 := time.Now()
				_, err := engine.SignUp(ctx, req)
				d := time.Since(t0)
				switch {
				case err == nil:
					atomic.AddInt64(&created, 1)
				case errors.Is(err, slateauth.ErrAccountExists):
					atomic.AddInt64(&duplicates, 1)
				default:
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return signUpStats{
		phaseStats: computeStats(time.Since(start), latencies, failures),
		created:    created,
		duplicates: duplicates,
	}
}

// runSignInPhase mixes correct and wrong passwords; only store failures
// count as failures.
func runSignInPhase(ctx context.Context, engine *slateauth.Engine, users, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				name := username(r.Intn(users))
				pw := "pw-" + name
				if r.Intn(10) == 0 {
					pw = "wrong"
				}
				t0 := time.Now()
				_, err := engine.SignIn(ctx, name, pw)
				d := time.Since(t0)
				if err != nil && !errors.Is(err, slateauth.ErrWrongPassword) {
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

func username(i int) string {
	return fmt.Sprintf("user-%d", i)
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
