// Command load drives concurrent payments against a running finance api and
// checks that the global balance grew by exactly what was accepted.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/worker"
	"github.com/valyala/fasthttp"
)

type Config struct {
	URL               string        `env:"TARGET_URL,default=http://localhost:8080/api/finance/pay"`
	Token             string        `env:"BEARER_TOKEN"`
	MemberIDs         string        `env:"MEMBER_IDS"`
	Type              string        `env:"CONTRIBUTION_TYPE,default=Cotisation"`
	Amount            int64         `env:"AMOUNT,default=100"`
	RequestsPerSecond int           `env:"REQUESTS_PER_SECOND,default=500"`
	DurationSeconds   int           `env:"DURATION_SECONDS,default=30"`
	ConcurrentWorkers int           `env:"CONCURRENT_WORKERS,default=64"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
}

type payResponse struct {
	Success          bool  `json:"success"`
	NewGlobalBalance int64 `json:"newGlobalBalance"`
}

type stats struct {
	accepted atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64

	mu         sync.Mutex
	latencies  []time.Duration
	minBalance int64
	maxBalance int64
}

func (s *stats) balance(b int64) {
	s.mu.Lock()
	if s.minBalance == 0 || b < s.minBalance {
		s.minBalance = b
	}
	if b > s.maxBalance {
		s.maxBalance = b
	}
	s.mu.Unlock()
}

func (s *stats) observe(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func (s *stats) sorted() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]time.Duration(nil), s.latencies...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)) * p)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

type payer struct {
	cfg     Config
	members []string
	client  *fasthttp.Client
	stats   *stats
}

func (p *payer) pay(n int) {
	body, _ := json.Marshal(map[string]any{
		"memberId": p.members[n%len(p.members)],
		"type":     p.cfg.Type,
		"amount":   p.cfg.Amount,
	})

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(p.cfg.URL)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	req.Header.Set("Idempotency-Key", uuid.NewString())
	req.SetBody(body)

	start := time.Now()
	err := p.client.DoTimeout(req, resp, p.cfg.RequestTimeout)
	p.stats.observe(time.Since(start))
	if err != nil {
		p.stats.failed.Add(1)
		return
	}
	if resp.StatusCode() != fasthttp.StatusCreated {
		p.stats.rejected.Add(1)
		return
	}

	var out payResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		p.stats.failed.Add(1)
		return
	}
	p.stats.accepted.Add(1)
	p.stats.balance(out.NewGlobalBalance)
}

func main() {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		logger.Fatal(err)
	}
	members := strings.FieldsFunc(cfg.MemberIDs, func(r rune) bool { return r == ',' || r == ' ' })
	if cfg.Token == "" || len(members) == 0 {
		logger.Fatal(fmt.Errorf("BEARER_TOKEN and MEMBER_IDS are required"))
	}

	p := &payer{
		cfg:     cfg,
		members: members,
		stats:   &stats{},
		client: &fasthttp.Client{
			MaxConnsPerHost: cfg.ConcurrentWorkers,
			ReadTimeout:     cfg.RequestTimeout,
			WriteTimeout:    cfg.RequestTimeout,
		},
	}

	logger.Info("starting load run",
		"target", cfg.URL,
		"rps", cfg.RequestsPerSecond,
		"duration_s", cfg.DurationSeconds,
		"workers", cfg.ConcurrentWorkers,
		"members", len(members))

	pool := worker.NewPool[int](cfg.RequestsPerSecond, cfg.ConcurrentWorkers, func(_ int, n int) { p.pay(n) })
	pool.Start()

	ctx := context.Background()
	start := time.Now()
	sent := 0
	for second := 1; second <= cfg.DurationSeconds; second++ {
		tick := time.Now()
		for i := 0; i < cfg.RequestsPerSecond; i++ {
			if err := pool.Enqueue(ctx, sent); err != nil {
				logger.Fatal(err)
			}
			sent++
		}
		logger.Info("progress",
			"second", second,
			"accepted", p.stats.accepted.Load(),
			"rejected", p.stats.rejected.Load(),
			"failed", p.stats.failed.Load(),
			"backlog", pool.Backlog())
		if elapsed := time.Since(tick); elapsed < time.Second {
			time.Sleep(time.Second - elapsed)
		}
	}
	for pool.Backlog() > 0 {
		time.Sleep(50 * time.Millisecond)
	}
	pool.Stop()
	elapsed := time.Since(start)

	accepted := p.stats.accepted.Load()
	lat := p.stats.sorted()
	logger.Info("load run finished",
		"elapsed", elapsed.Round(time.Millisecond),
		"sent", sent,
		"accepted", accepted,
		"rejected", p.stats.rejected.Load(),
		"failed", p.stats.failed.Load(),
		"rps", fmt.Sprintf("%.1f", float64(sent)/elapsed.Seconds()),
		"p50", percentile(lat, 0.50),
		"p95", percentile(lat, 0.95),
		"p99", percentile(lat, 0.99))

	// with no other writers the balance moves by exactly the accepted sum
	if accepted > 0 {
		grew := p.stats.maxBalance - (p.stats.minBalance - cfg.Amount)
		if grew != accepted*cfg.Amount {
			logger.Warn("balance growth does not match accepted payments",
				"expected", accepted*cfg.Amount, "observed", grew)
		}
	}
	logger.Sync()
}
