package spwatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/solpulse/solpulse/spendpoint"
	"github.com/solpulse/solpulse/spmetrics"
	"github.com/solpulse/solpulse/sppoll"
	"github.com/solpulse/solpulse/sprpc"
	"github.com/solpulse/solpulse/spstore"
)

// Snapshot is the externally observable state of the supervisor.
// It is a value copy; holding one never blocks the supervisor.
type Snapshot struct {
	Status   Status `json:"status"`
	Endpoint string `json:"endpoint"`

	// Metrics is the most recent successful tick's output.
	// It stays populated through transient errors,
	// so consumers keep showing the last good value.
	Metrics *spmetrics.TPSMetrics `json:"metrics,omitempty"`

	// Error is the most recent tick's failure message,
	// empty after a successful tick.
	Error string `json:"error,omitempty"`

	Ticks TickStats `json:"ticks"`
}

// TickStats counts poll outcomes since the supervisor was created.
type TickStats struct {
	OK     uint64 `json:"ok"`
	Failed uint64 `json:"failed"`
}

// Options configures a new Supervisor.
type Options struct {
	Log *slog.Logger

	// Store persists the endpoint choice. Required.
	Store spstore.SettingStore

	// Dialer constructs RPC handles. Required.
	Dialer sprpc.Dialer

	// PollInterval between ticks. Zero means the 5 second default.
	PollInterval time.Duration

	// SampleCount per fetch. Zero means the default of 5.
	SampleCount int

	// Clock for the poll timer. Nil means the real clock.
	Clock clock.Clock
}

// Supervisor owns the current endpoint, the live poll cycle,
// and the connection health state machine.
type Supervisor struct {
	log     *slog.Logger
	store   spstore.SettingStore
	dialer  sprpc.Dialer
	pollCfg sppoll.Config

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
	// generation increments on every endpoint change;
	// results stamped with an older generation are dropped.
	generation uint64
	cycle      *sppoll.Cycle
	endpoint   string
	status     Status
	metrics    *spmetrics.TPSMetrics
	errMsg     string
	ticks      TickStats

	closeOnce sync.Once
}

// New creates a Supervisor and immediately begins polling the endpoint
// loaded from the store (sanitized against the blocklist,
// falling back to the default endpoint).
//
// A failure to start the initial poll cycle does not fail construction;
// the supervisor surfaces it through the snapshot as StatusError,
// and a later SetEndpoint can recover.
func New(ctx context.Context, opts Options) (*Supervisor, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("setting store required")
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("dialer required")
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	pollCfg := *sppoll.DefaultConfig()
	if opts.PollInterval > 0 {
		pollCfg.Interval = opts.PollInterval
	}
	if opts.SampleCount > 0 {
		pollCfg.SampleCount = opts.SampleCount
	}
	pollCfg.Clock = opts.Clock

	ctx, cancel := context.WithCancel(ctx)

	s := &Supervisor{
		log:     log,
		store:   opts.Store,
		dialer:  opts.Dialer,
		pollCfg: pollCfg,
		ctx:     ctx,
		cancel:  cancel,
		status:  StatusConnecting,
	}

	endpoint, err := spendpoint.LoadPersisted(ctx, opts.Store)
	if err != nil {
		cancel()
		return nil, err
	}

	if err := s.SetEndpoint(endpoint); err != nil {
		s.log.Warn("Initial connection failed; awaiting endpoint change",
			"endpoint", endpoint, "err", err)
	}

	return s, nil
}

// SetEndpoint switches polling to the given endpoint.
//
// The endpoint is persisted and used exactly as supplied;
// blocklist sanitization applies only to values loaded from storage
// at construction time (see the spendpoint package).
//
// The previous poll cycle is fully cancelled before the new one starts,
// so at most one cycle is ever live,
// and no result from the old endpoint can be applied
// after this call returns.
func (s *Supervisor) SetEndpoint(endpoint string) error {
	s.mu.Lock()
	s.status = StatusConnecting
	s.generation++
	gen := s.generation
	s.endpoint = endpoint
	old := s.cycle
	s.cycle = nil
	s.mu.Unlock()

	if err := s.store.Set(s.ctx, spendpoint.SettingKey, endpoint); err != nil {
		if old != nil {
			old.Cancel()
		}
		s.recordStartFailure(gen, err)
		return fmt.Errorf("persist endpoint: %w", err)
	}

	if old != nil {
		old.Cancel()
	}

	cycle, err := sppoll.Start(
		s.ctx,
		s.log.With("sys", "pollcycle", "endpoint", endpoint),
		s.dialer,
		endpoint,
		&s.pollCfg,
		func(res sppoll.Result) { s.applyResult(gen, res) },
	)
	if err != nil {
		s.recordStartFailure(gen, err)
		return fmt.Errorf("start poll cycle for %s: %w", endpoint, err)
	}

	s.mu.Lock()
	if gen != s.generation {
		// Another endpoint change raced ahead while we were starting;
		// our cycle is already stale.
		s.mu.Unlock()
		cycle.Cancel()
		return nil
	}
	s.cycle = cycle
	s.mu.Unlock()

	s.log.Info("Polling endpoint", "endpoint", endpoint)
	return nil
}

func (s *Supervisor) recordStartFailure(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.status = StatusError
	s.errMsg = err.Error()
}

func (s *Supervisor) applyResult(gen uint64, res sppoll.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// Late result from an abandoned cycle.
		return
	}

	if res.Err != nil {
		s.ticks.Failed++
		s.status = StatusError
		s.errMsg = res.Err.Error()
		// Last good metrics deliberately stay visible.
		return
	}

	s.ticks.OK++
	s.status = StatusConnected
	s.errMsg = ""
	s.metrics = res.Metrics
}

// Snapshot returns a copy of the current observable state.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:   s.status,
		Endpoint: s.endpoint,
		Error:    s.errMsg,
		Ticks:    s.ticks,
	}
	if s.metrics != nil {
		m := *s.metrics
		snap.Metrics = &m
	}
	return snap
}

// Close cancels the active poll cycle and waits for it to stop.
// It is idempotent.
func (s *Supervisor) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.generation++
		cycle := s.cycle
		s.cycle = nil
		s.mu.Unlock()

		if cycle != nil {
			cycle.Cancel()
			cycle.Wait()
		}
		s.cancel()
	})
}
