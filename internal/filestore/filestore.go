// Package filestore persists uploaded invoice documents.
package filestore

import (
	"context"
	"io"
)

// Store abstracts document storage. Keys are relative paths generated by the
// caller; a store must never interpret them beyond separator handling.
type Store interface {
	Save(ctx context.Context, key, contentType string, content io.Reader) error
	Open(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// URL returns a browser-usable location for the stored document. Stores
	// that cannot mint one return an empty string.
	URL(ctx context.Context, key string) (string, error)
}
