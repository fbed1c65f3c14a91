package sppoll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/solpulse/solpulse/spmetrics"
	"github.com/solpulse/solpulse/sprpc"
)

// Result is the outcome of one poll tick:
// either fresh metrics or the failure that prevented them.
// Exactly one of the fields is set.
type Result struct {
	Metrics *spmetrics.TPSMetrics
	Err     error
}

// Config holds the poll policy.
type Config struct {
	// Interval between ticks. Must be positive.
	Interval time.Duration

	// SampleCount is how many recent samples to request per fetch.
	SampleCount int

	// Clock drives the tick timer.
	// Tests substitute a mock to advance time virtually.
	// Nil means the real clock.
	Clock clock.Clock
}

// DefaultConfig returns the default poll policy:
// a 5 second cadence requesting the 5 most recent samples.
func DefaultConfig() *Config {
	return &Config{
		Interval:    5 * time.Second,
		SampleCount: 5,
	}
}

// Cycle is one connection binding plus its repeating fetch timer.
// It is the unit of cancellation:
// switching endpoints always destroys the old Cycle
// before a new one is created.
type Cycle struct {
	log    *slog.Logger
	handle sprpc.Handle
	cfg    Config

	onResult func(Result)

	ctx       context.Context
	cancelCtx context.CancelFunc

	// mu is held for the full duration of every callback delivery,
	// and Cancel sets cancelled under the same lock.
	// That ordering is what makes Cancel's no-further-callbacks
	// guarantee hold even against an in-flight fetch.
	mu        sync.Mutex
	cancelled bool

	inFlight atomic.Bool
	fetchWG  sync.WaitGroup

	done chan struct{}
}

// Start dials the endpoint and begins polling it.
//
// The first fetch is triggered immediately,
// so the caller does not wait a full interval for initial data;
// subsequent fetches follow the configured interval.
func Start(
	ctx context.Context,
	log *slog.Logger,
	dialer sprpc.Dialer,
	endpoint string,
	cfg *Config,
	onResult func(Result),
) (*Cycle, error) {
	if dialer == nil {
		return nil, fmt.Errorf("dialer required")
	}
	if onResult == nil {
		return nil, fmt.Errorf("result callback required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", cfg.Interval)
	}
	if cfg.SampleCount <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", cfg.SampleCount)
	}
	if log == nil {
		log = slog.Default()
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	handle, err := dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	ctx, cancel := context.WithCancel(ctx)

	c := &Cycle{
		log:       log,
		handle:    handle,
		cfg:       *cfg,
		onResult:  onResult,
		ctx:       ctx,
		cancelCtx: cancel,
		done:      make(chan struct{}),
	}

	go c.run(clk)

	return c, nil
}

func (c *Cycle) run(clk clock.Clock) {
	defer func() {
		// Let any in-flight fetch drain before releasing the handle.
		c.fetchWG.Wait()
		if err := c.handle.Close(); err != nil {
			c.log.Warn("Failed to close RPC handle", "err", err)
		}
		close(c.done)
	}()

	c.maybeFetch()

	ticker := clk.Ticker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.maybeFetch()
		}
	}
}

// maybeFetch starts a fetch in its own goroutine,
// unless one is already in flight.
// A slow fetch therefore delays only its own result;
// it does not back up the ticker,
// and overlapping requests never pile onto a struggling endpoint.
func (c *Cycle) maybeFetch() {
	if !c.inFlight.CompareAndSwap(false, true) {
		return
	}
	c.fetchWG.Add(1)
	go func() {
		defer c.fetchWG.Done()

		res := c.poll()

		// Clear the flag before delivering:
		// anyone who has observed the result must also observe
		// that the next tick is free to fetch again.
		c.inFlight.Store(false)
		c.deliver(res)
	}()
}

func (c *Cycle) poll() Result {
	samples, err := c.handle.FetchRecentPerformanceSamples(c.ctx, c.cfg.SampleCount)
	if err != nil {
		return Result{Err: fmt.Errorf("fetch performance samples: %w", err)}
	}

	m, err := spmetrics.Transform(samples)
	if err != nil {
		return Result{Err: err}
	}

	return Result{Metrics: &m}
}

func (c *Cycle) deliver(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return
	}
	c.onResult(res)
}

// Cancel stops the timer and suppresses all further result delivery.
// It is idempotent and safe for concurrent use.
// If a delivery is in progress when Cancel is called,
// Cancel blocks until it completes;
// once Cancel returns, onResult will never be invoked again.
func (c *Cycle) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()

	c.cancelCtx()
}

// Wait blocks until the cycle's goroutines have fully stopped
// and the RPC handle has been closed.
func (c *Cycle) Wait() {
	<-c.done
}
