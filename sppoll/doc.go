// Package sppoll (SolPulse POLL) contains the repeating fetch cycle
// at the heart of the watcher.
//
// A [Cycle] owns exactly one RPC handle and one repeating timer.
// Each tick fetches the endpoint's recent performance samples,
// transforms them, and publishes the outcome to a single callback.
// Fetch failures never stop the timer;
// the cycle keeps retrying at the configured interval until cancelled,
// so a transient bad tick self-heals on the next one.
//
// Cancellation is total: once [Cycle.Cancel] returns,
// no further callback invocation can begin,
// including from a tick whose fetch was already in flight.
package sppoll
