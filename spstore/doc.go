// Package spstore (SolPulse STORE) provides the small key-value
// persistence capability used for settings that survive process restarts,
// currently just the configured RPC endpoint.
//
// Two implementations are provided:
// [SQLiteStore] for real deployments,
// and [MemoryStore] for tests and storage-less runs.
package spstore
