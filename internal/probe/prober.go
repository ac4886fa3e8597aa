// Package probe health-checks CQi servers and exports the results over HTTP
// as JSON and Prometheus metrics. Every check opens its own connection; no
// Conn is shared between goroutines.
package probe

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/cqi/internal/observability"
	"github.com/danmuck/cqi/internal/protocol/session"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

var features = []string{"ASK_FEATURE_CQI_1_0", "ASK_FEATURE_CL_2_3", "ASK_FEATURE_CQP_2_3"}

type Config struct {
	Targets  []string
	Interval time.Duration
	User     string
	Password string
	Session  session.Config
	Backoff  Backoff
	// MaxConcurrent bounds ProbeAll fan-out. Zero means one goroutine per
	// target.
	MaxConcurrent int
}

// Status is the last observation of one target.
type Status struct {
	Target    string          `json:"target"`
	Up        bool            `json:"up"`
	LatencyMS float64         `json:"latency_ms"`
	Error     string          `json:"error,omitempty"`
	Checked   time.Time       `json:"checked"`
	Failures  int             `json:"consecutive_failures"`
	Corpora   []string        `json:"corpora,omitempty"`
	Features  map[string]bool `json:"features,omitempty"`
}

type Prober struct {
	cfg Config

	mu     sync.RWMutex
	status map[string]Status
}

func New(cfg Config) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Backoff.InitialDelay <= 0 {
		cfg.Backoff = DefaultBackoff()
	}
	return &Prober{cfg: cfg, status: make(map[string]Status, len(cfg.Targets))}
}

func (p *Prober) Targets() []string {
	return append([]string(nil), p.cfg.Targets...)
}

// ProbeOnce runs one full check: dial, login, ping, list corpora, ask
// features, logout.
func (p *Prober) ProbeOnce(ctx context.Context, target string) Status {
	start := time.Now()
	st := Status{Target: target, Checked: start}
	err := p.check(ctx, target, &st)
	elapsed := time.Since(start)
	st.LatencyMS = float64(elapsed) / float64(time.Millisecond)
	st.Up = err == nil
	if err != nil {
		st.Error = err.Error()
	}
	observability.RecordProbe(target, st.Up, elapsed)
	return p.record(st)
}

func (p *Prober) check(ctx context.Context, target string, st *Status) error {
	cfg := p.cfg.Session
	cfg.Address = target
	client, err := session.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	res, err := client.Login(p.cfg.User, p.cfg.Password)
	if err != nil {
		return err
	}
	if !res.Accepted() {
		return fmt.Errorf("login refused: %s", res.Response)
	}
	if err := session.Ping(client); err != nil {
		return err
	}
	corpora, err := session.ListCorpora(client)
	if err != nil {
		return err
	}
	st.Corpora = corpora
	st.Features = make(map[string]bool, len(features))
	for _, f := range features {
		ok, err := session.AskFeature(client, f)
		if err != nil {
			return err
		}
		st.Features[f] = ok
	}
	if _, err := client.Logout(); err != nil {
		return err
	}
	return nil
}

func (p *Prober) record(st Status) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.status[st.Target]
	if !st.Up {
		st.Failures = prev.Failures + 1
	}
	p.status[st.Target] = st
	if st.Up {
		log.Debug().Msgf("probe target=%q up latency=%.1fms corpora=%d", st.Target, st.LatencyMS, len(st.Corpora))
	} else {
		log.Warn().Msgf("probe target=%q down failures=%d err=%s", st.Target, st.Failures, st.Error)
	}
	return st
}

// ProbeAll checks every target concurrently and returns results sorted by
// target.
func (p *Prober) ProbeAll(ctx context.Context) []Status {
	pl := pool.NewWithResults[Status]()
	if p.cfg.MaxConcurrent > 0 {
		pl = pl.WithMaxGoroutines(p.cfg.MaxConcurrent)
	}
	for _, target := range p.cfg.Targets {
		pl.Go(func() Status { return p.ProbeOnce(ctx, target) })
	}
	out := pl.Wait()
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// Snapshot returns the latest status of every probed target.
func (p *Prober) Snapshot() []Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Status, 0, len(p.status))
	for _, st := range p.status {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

func (p *Prober) Lookup(target string) (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.status[target]
	return st, ok
}

// Run probes each target on its own schedule until ctx is done. A failing
// target is retried with backoff, never more slowly than Interval.
func (p *Prober) Run(ctx context.Context) error {
	g := pool.New().WithContext(ctx)
	for i, target := range p.cfg.Targets {
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
		g.Go(func(ctx context.Context) error {
			p.watch(ctx, target, rng)
			return nil
		})
	}
	return g.Wait()
}

func (p *Prober) watch(ctx context.Context, target string, rng *rand.Rand) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		st := p.ProbeOnce(ctx, target)
		delay := p.cfg.Interval
		if !st.Up {
			delay = p.cfg.Backoff.RetryDelay(st.Failures, p.cfg.Interval, rng)
		}
		timer.Reset(delay)
	}
}
