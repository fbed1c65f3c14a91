package spstore

import "context"

// SettingStore is the persistence capability for string settings.
//
// Get reports ok=false when the key has never been set
// or has been removed; that is not an error.
type SettingStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
