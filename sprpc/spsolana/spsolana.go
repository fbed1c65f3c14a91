// Package spsolana implements the sprpc capability
// against the Solana JSON-RPC API.
package spsolana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solpulse/solpulse/spmetrics"
	"github.com/solpulse/solpulse/sprpc"
)

// Dialer creates handles backed by [rpc.Client].
//
// Client construction is purely local
// (the JSON-RPC transport is plain HTTP),
// so Dial never blocks on the network.
type Dialer struct{}

var _ sprpc.Dialer = Dialer{}

func (Dialer) Dial(_ context.Context, endpoint string) (sprpc.Handle, error) {
	return &handle{client: rpc.New(endpoint)}, nil
}

type handle struct {
	client *rpc.Client
}

// performanceSample mirrors one entry of the getRecentPerformanceSamples
// response. Declared locally because the upstream client's result type
// predates the numNonVoteTransactions field.
type performanceSample struct {
	Slot                   uint64  `json:"slot"`
	NumTransactions        uint64  `json:"numTransactions"`
	NumNonVoteTransactions uint64  `json:"numNonVoteTransactions"`
	NumSlots               uint64  `json:"numSlots"`
	SamplePeriodSecs       float64 `json:"samplePeriodSecs"`
}

func (h *handle) FetchRecentPerformanceSamples(
	ctx context.Context, limit int,
) ([]spmetrics.PerformanceSample, error) {
	var raw []performanceSample
	if err := h.client.RPCCallForInto(
		ctx, &raw, "getRecentPerformanceSamples", []interface{}{limit},
	); err != nil {
		return nil, fmt.Errorf("getRecentPerformanceSamples: %w", err)
	}

	samples := make([]spmetrics.PerformanceSample, len(raw))
	for i, s := range raw {
		samples[i] = spmetrics.PerformanceSample{
			Slot:                   s.Slot,
			NumTransactions:        s.NumTransactions,
			NumNonVoteTransactions: s.NumNonVoteTransactions,
			SamplePeriodSecs:       s.SamplePeriodSecs,
		}
	}
	return samples, nil
}

func (h *handle) Close() error {
	return h.client.Close()
}
