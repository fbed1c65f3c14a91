// Package spwatch (SolPulse WATCH) contains the connection supervisor:
// the single owner of the current endpoint, the live poll cycle,
// and the externally observable connection state.
//
// The supervisor holds at most one live poll cycle at any time.
// An endpoint change cancels the old cycle before starting the new one,
// and every cycle is stamped with a generation so that a result from
// an abandoned cycle, however late it lands, can never overwrite
// state belonging to the current one.
package spwatch
