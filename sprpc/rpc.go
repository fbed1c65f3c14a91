// Package sprpc (SolPulse RPC) defines the capability surface the watcher
// needs from an RPC transport: dialing an endpoint and fetching its recent
// performance samples.
//
// The production implementation lives in [github.com/solpulse/solpulse/sprpc/spsolana];
// tests substitute scripted fakes.
package sprpc

import (
	"context"

	"github.com/solpulse/solpulse/spmetrics"
)

// Handle is a live binding to one RPC endpoint.
// A Handle is owned by exactly one poll cycle and is closed with it.
type Handle interface {
	// FetchRecentPerformanceSamples returns up to limit samples,
	// ordered most recent first.
	// An empty result is valid; it is the transformer's job
	// to turn that into a failure.
	FetchRecentPerformanceSamples(ctx context.Context, limit int) ([]spmetrics.PerformanceSample, error)

	// Close releases the underlying transport resources.
	Close() error
}

// Dialer constructs handles bound to an endpoint URL.
//
// Dial must not block indefinitely;
// any connect timeout is the implementation's responsibility.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Handle, error)
}
