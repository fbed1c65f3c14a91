// Package sprpctest provides scripted in-memory implementations
// of the sprpc capability, for tests that drive the poll engine
// without a network.
package sprpctest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/solpulse/solpulse/spmetrics"
	"github.com/solpulse/solpulse/sprpc"
)

// FetchFunc produces one fetch outcome.
type FetchFunc func(ctx context.Context, limit int) ([]spmetrics.PerformanceSample, error)

// Dialer hands out [Handle] values whose fetch behavior
// is controlled per endpoint.
//
// If no behavior has been registered for a dialed endpoint,
// the handle returns an empty sample history.
type Dialer struct {
	mu      sync.Mutex
	fetches map[string]FetchFunc
	dialErr error

	handles []*Handle
}

var _ sprpc.Dialer = (*Dialer)(nil)

func NewDialer() *Dialer {
	return &Dialer{fetches: make(map[string]FetchFunc)}
}

// SetFetch registers the fetch behavior for handles dialed to endpoint.
// It applies to handles dialed both before and after the call.
func (d *Dialer) SetFetch(endpoint string, fn FetchFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetches[endpoint] = fn
}

// SetDialError makes subsequent Dial calls fail with err.
func (d *Dialer) SetDialError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}

func (d *Dialer) Dial(_ context.Context, endpoint string) (sprpc.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	h := &Handle{dialer: d, Endpoint: endpoint}
	d.handles = append(d.handles, h)
	return h, nil
}

// Handles returns every handle handed out so far, in dial order.
func (d *Dialer) Handles() []*Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Handle(nil), d.handles...)
}

// Handle is a scripted sprpc.Handle.
type Handle struct {
	dialer   *Dialer
	Endpoint string

	fetchCalls atomic.Int64
	closed     atomic.Bool
}

var _ sprpc.Handle = (*Handle)(nil)

func (h *Handle) FetchRecentPerformanceSamples(
	ctx context.Context, limit int,
) ([]spmetrics.PerformanceSample, error) {
	h.fetchCalls.Add(1)

	h.dialer.mu.Lock()
	fn := h.dialer.fetches[h.Endpoint]
	h.dialer.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(ctx, limit)
}

func (h *Handle) Close() error {
	h.closed.Store(true)
	return nil
}

// FetchCalls reports how many fetches this handle has served.
func (h *Handle) FetchCalls() int {
	return int(h.fetchCalls.Load())
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}

// StaticSamples returns a FetchFunc that always yields the given history.
func StaticSamples(samples ...spmetrics.PerformanceSample) FetchFunc {
	return func(context.Context, int) ([]spmetrics.PerformanceSample, error) {
		return samples, nil
	}
}

// FailWith returns a FetchFunc that always fails with err.
func FailWith(err error) FetchFunc {
	return func(context.Context, int) ([]spmetrics.PerformanceSample, error) {
		return nil, err
	}
}
