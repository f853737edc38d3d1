package poller

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// Refresher reloads the roster from the source of truth. The occupancy
// cache's FetchUserCollection satisfies it.
type Refresher interface {
	FetchUserCollection(ctx context.Context) error
}

// Gate reports whether a reconcile should run now. Wired to the
// supervisor's IsOpen so cycles are skipped while disconnected.
type Gate func() bool

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Reconcile interval (default: 5m)
	Jitter   time.Duration // Random extra delay per cycle (default: 30s)
	Timeout  time.Duration // Per-reconcile timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
		Jitter:   30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Stats holds reconcile counters.
type Stats struct {
	Cycles  int64 // completed reconciles
	Skipped int64 // cycles skipped while disconnected
	Errors  int64
}

// Poller periodically reloads the room roster into the cache.
type Poller struct {
	cfg       Config
	refresher Refresher
	gate      Gate
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles  atomic.Int64
	skipped atomic.Int64
	errors  atomic.Int64
}

// New creates a new Poller. gate may be nil, in which case every cycle runs.
func New(cfg Config, refresher Refresher, gate Gate, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Poller{
		cfg:       cfg,
		refresher: refresher,
		gate:      gate,
		logger:    logger.With("component", "poller"),
	}
}

// Start begins the reconcile loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("roster poller started",
		"interval", p.cfg.Interval,
		"jitter", p.cfg.Jitter,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("roster poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Cycles:  p.cycles.Load(),
		Skipped: p.skipped.Load(),
		Errors:  p.errors.Load(),
	}
}

// run is the main reconcile loop. The first cycle waits a full interval;
// the handshake roster load has just run when the poller starts.
func (p *Poller) run() {
	defer p.wg.Done()

	timer := time.NewTimer(p.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
			p.reconcile()
			timer.Reset(p.nextInterval())
		}
	}
}

// nextInterval spreads cycles out so multiple instances watching the same
// room do not hit the REST API in lockstep.
func (p *Poller) nextInterval() time.Duration {
	if p.cfg.Jitter <= 0 {
		return p.cfg.Interval
	}
	return p.cfg.Interval + rand.N(p.cfg.Jitter)
}

// reconcile runs one roster reload.
func (p *Poller) reconcile() {
	if p.gate != nil && !p.gate() {
		p.skipped.Add(1)
		p.logger.Debug("skipping reconcile while disconnected")
		return
	}

	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	if err := p.refresher.FetchUserCollection(ctx); err != nil {
		p.errors.Add(1)
		p.logger.Warn("roster reconcile failed", "err", err)
		return
	}

	p.cycles.Add(1)
	p.logger.Info("roster reconciled", "duration", time.Since(start))
}
