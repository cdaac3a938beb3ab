// Package storage keeps raw file bytes addressed by string keys, either in
// a local directory or in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Store is byte-addressable blob storage.
//
// Open and Fetch return common.ErrorNotFound for unknown keys. Put and
// Delete failures match common.ErrStorageFailure. Delete of a missing key
// succeeds.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Fetch copies the blob at key into a local file at dstPath.
	Fetch(ctx context.Context, key, dstPath string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// cleanKey validates key as a relative, slash separated path without
// parent references.
func cleanKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return "", fmt.Errorf("empty storage key")
	}
	if strings.HasPrefix(k, "/") || strings.Contains(k, `\`) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	for _, part := range strings.Split(k, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid storage key %q", key)
		}
	}
	return path.Clean(k), nil
}
