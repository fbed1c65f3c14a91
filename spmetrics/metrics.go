package spmetrics

import "errors"

// ErrNoSamples indicates the endpoint returned an empty sample history.
// The collaborator legitimately may have nothing to report,
// e.g. immediately after a cluster restart,
// so this is an ordinary per-tick failure, not a fatal condition.
var ErrNoSamples = errors.New("no performance samples available")

// PerformanceSample is one entry of the cluster's recent performance history,
// as returned by the getRecentPerformanceSamples RPC method.
// Samples arrive ordered most recent first.
//
// NumNonVoteTransactions is assumed to never exceed NumTransactions,
// and SamplePeriodSecs is assumed positive;
// both are trusted as reported by the endpoint and not re-validated here.
type PerformanceSample struct {
	// Slot at which the sample was taken.
	Slot uint64

	// Total transactions during the sample period,
	// including consensus vote transactions.
	NumTransactions uint64

	// Transactions excluding consensus votes -- the "real" workload.
	NumNonVoteTransactions uint64

	// Length of the sample window, in seconds.
	SamplePeriodSecs float64
}

// TPSMetrics is the derived throughput for one sample.
// Values are never mutated in place;
// each poll produces a fresh TPSMetrics replacing the prior one.
type TPSMetrics struct {
	// RealTPS is non-vote transactions per second.
	RealTPS float64 `json:"real_tps"`

	// TotalTPS is all transactions per second, votes included.
	TotalTPS float64 `json:"total_tps"`

	// VotePercent is the share of total throughput spent on votes,
	// in the range [0, 100] for well-formed input.
	VotePercent float64 `json:"vote_percent"`

	// Slot the underlying sample was taken at.
	Slot uint64 `json:"slot"`
}

// Transform derives throughput metrics from the most recent sample
// in the given history.
// It returns [ErrNoSamples] if the history is empty.
//
// When the sample reports zero total throughput,
// VotePercent is defined to be 0 rather than the NaN
// that the naive division would produce;
// a NaN would propagate as garbage into any consumer of the metrics.
func Transform(samples []PerformanceSample) (TPSMetrics, error) {
	if len(samples) == 0 {
		return TPSMetrics{}, ErrNoSamples
	}

	s := samples[0]
	m := TPSMetrics{
		RealTPS:  float64(s.NumNonVoteTransactions) / s.SamplePeriodSecs,
		TotalTPS: float64(s.NumTransactions) / s.SamplePeriodSecs,
		Slot:     s.Slot,
	}

	if m.TotalTPS > 0 {
		m.VotePercent = ((m.TotalTPS - m.RealTPS) / m.TotalTPS) * 100
	}

	return m, nil
}
