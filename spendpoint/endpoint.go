// Package spendpoint (SolPulse ENDPOINT) decides which RPC endpoint
// the watcher connects to: the built-in default, a persisted choice,
// or a caller-supplied override.
//
// Blocklist enforcement is intentionally asymmetric.
// A value loaded from persistent storage is checked against the blocklist,
// so that a previously shipped default that has since been blocked
// cannot be carried over from an old settings database.
// An endpoint supplied interactively is the user's explicit choice
// and is persisted and used as-is.
package spendpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/solpulse/solpulse/spstore"
)

// DefaultEndpoint is used when nothing is persisted
// or the persisted value is blocked.
const DefaultEndpoint = "https://solana-rpc.publicnode.com"

// SettingKey is the settings-store key holding the persisted endpoint.
const SettingKey = "rpcUrl"

// Public endpoints that aggressively rate-limit or reject
// programmatic polling.
// Matching is case-sensitive substring, so path or port suffixes
// on the same host are still caught.
var blockedSubstrings = []string{
	"api.mainnet-beta.solana.com",
	"solana-api.projectserum.com",
}

// IsBlocked reports whether the endpoint contains any blocked substring.
func IsBlocked(endpoint string) bool {
	for _, b := range blockedSubstrings {
		if strings.Contains(endpoint, b) {
			return true
		}
	}
	return false
}

// Sanitize maps a candidate endpoint loaded from storage
// to the endpoint the watcher should actually use.
// Empty or blocked candidates map to [DefaultEndpoint];
// anything else passes through unchanged.
func Sanitize(candidate string) string {
	if candidate == "" || IsBlocked(candidate) {
		return DefaultEndpoint
	}
	return candidate
}

// LoadPersisted reads the persisted endpoint from the store and sanitizes it.
// A blocked persisted value is also removed from the store,
// so it cannot resurface on a later load.
func LoadPersisted(ctx context.Context, store spstore.SettingStore) (string, error) {
	v, ok, err := store.Get(ctx, SettingKey)
	if err != nil {
		return "", fmt.Errorf("load persisted endpoint: %w", err)
	}
	if !ok {
		return DefaultEndpoint, nil
	}
	if IsBlocked(v) {
		if err := store.Remove(ctx, SettingKey); err != nil {
			return "", fmt.Errorf("clear blocked endpoint: %w", err)
		}
		return DefaultEndpoint, nil
	}
	return v, nil
}
