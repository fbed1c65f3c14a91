// Package spmetrics (SolPulse METRICS) contains the pure transformation
// from raw cluster performance samples into derived throughput metrics.
//
// The types here are deliberately decoupled from any RPC client:
// callers adapt whatever their transport returns into [PerformanceSample]
// values, and [Transform] does the rest.
// Keeping the arithmetic free of I/O makes every edge case,
// including the zero-throughput division guard,
// directly unit-testable.
package spmetrics
