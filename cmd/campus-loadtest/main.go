// Command campus-loadtest drives many concurrent goCampus clients against a
// backend and reports per-phase latency percentiles.
//
// Without -base-url it starts the in-process mock backend; without -redis-addr it
// mirrors sessions into miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	goCampus "github.com/MrEthical07/goCampus"
	"github.com/MrEthical07/goCampus/api"
	"github.com/MrEthical07/goCampus/internal/mockapi"
	"github.com/MrEthical07/goCampus/metrics/export/prometheus"
	"github.com/MrEthical07/goCampus/session"
	"github.com/MrEthical07/goCampus/storage"
)

const defaultPassword = "secret"

func main() {
	var (
		clients     = flag.Int("clients", 64, "number of concurrent sessions")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (request + restore)")
		baseURL     = flag.String("base-url", "", "backend API root; if empty an in-process mock is used")
		username    = flag.String("username", "", "account used by every client against -base-url")
		password    = flag.String("password", defaultPassword, "password for -username")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "loadtest", "session key prefix")
		showMetrics = flag.Bool("metrics", false, "print Prometheus metrics of the first client")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	if *baseURL != "" && *username == "" {
		fmt.Fprintln(os.Stderr, "-username is required with -base-url")
		os.Exit(2)
	}

	ctx := context.Background()

	rdb, cleanupRedis, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanupRedis()

	url := *baseURL
	httpClient := &http.Client{Timeout: 10 * time.Second}
	if url == "" {
		srv, err := startMock(*clients)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mock backend: %v\n", err)
			os.Exit(1)
		}
		defer srv.Close()
		url = srv.URL
		httpClient = srv.Client()
		fmt.Printf("using mock backend at %s\n", url)
	}

	cfg := goCampus.DefaultConfig()
	cfg.API.BaseURL = url
	cfg.Metrics.EnableLatencyHistograms = true

	pool := make([]*goCampus.Client, *clients)
	for i := range pool {
		c, err := goCampus.New().
			WithConfig(cfg).
			WithHTTPClient(httpClient).
			WithStorage(storage.NewRedis(rdb, *prefix+":"+strconv.Itoa(i))).
			Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build client: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()
		pool[i] = c
	}

	creds := func(i int) session.Credentials {
		if *username != "" {
			return session.Credentials{Username: *username, Password: *password}
		}
		return session.Credentials{Username: mockUsername(i), Password: defaultPassword}
	}

	fmt.Printf("logging in %d clients...\n", len(pool))
	loginStats := runPhase(ctx, len(pool), *concurrency, func(ctx context.Context, i, _ int) error {
		if res := pool[i].Login(ctx, creds(i)); !res.Success {
			return fmt.Errorf("login %d: %s", i, res.Message)
		}
		return nil
	})

	requestStats := runPhase(ctx, *ops, *concurrency, func(ctx context.Context, _, worker int) error {
		c := pool[worker%len(pool)]
		_, err := c.API().GetCourses(ctx, api.ListQuery{Page: 1, PageSize: 10})
		return err
	})

	restoreStats := runPhase(ctx, *ops, *concurrency, func(ctx context.Context, i, _ int) error {
		if !pool[i%len(pool)].CheckLogin(ctx) {
			return fmt.Errorf("session %d not restored", i%len(pool))
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("request", requestStats)
	printStats("restore", restoreStats)

	if *showMetrics {
		fmt.Println("---- metrics (client 0) ----")
		fmt.Print(prometheus.NewPrometheusExporter(pool[0]).Render())
	}
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func mockUsername(i int) string {
	return "load-" + strconv.Itoa(i)
}

func startMock(users int) (*httptest.Server, error) {
	seed := make([]mockapi.User, users)
	for i := range seed {
		seed[i] = mockapi.User{
			ID:       i + 1,
			Username: mockUsername(i),
			Password: defaultPassword,
			Nickname: "Load " + strconv.Itoa(i),
			Avatar:   "/img/load.png",
			UserType: api.UserTypeStudent,
		}
	}
	mock, err := mockapi.New(mockapi.Config{Users: seed})
	if err != nil {
		return nil, err
	}
	return httptest.NewServer(mock.Router()), nil
}

// runPhase runs op ops times across concurrency workers and collects latencies.
// Failures are counted, not fatal.
func runPhase(ctx context.Context, ops, concurrency int, op func(ctx context.Context, i, worker int) error) phaseStats {
	var (
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		worker := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return nil
				}
				t0 := time.Now()
				err := op(gctx, i, worker+r.Intn(concurrency))
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	_ = g.Wait()
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
	return samples[(len(samples)-1)*p/100]
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
