// Package storage provides the key/value backends behind session state.
package storage

import "context"

// KV is a string key/value store. A missing key is reported with ok == false, not an error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key owned by this store
	Clear(ctx context.Context) error
}

// Partitioner hands out independent KVs by name, one per browser session on the auth server.
type Partitioner interface {
	Partition(name string) KV
}
