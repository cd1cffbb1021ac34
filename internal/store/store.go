package store

import "context"

// Store is the persistent client-side key/value storage. It holds only
// small identity fields, never tasks or notifications.
type Store interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	SetItems(ctx context.Context, items map[string]string) error
	RemoveItems(ctx context.Context, keys ...string) error
	Items(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}
