package storage

import "context"

// Artifacts stores rendered videos and staged inputs by key.
type Artifacts interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
