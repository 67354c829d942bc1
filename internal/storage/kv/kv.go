// Package kv provides the durable process-wide key to string cache that
// backs the local session.
//
// Implementations are synchronous. Batch operations (SetAll, RemoveAll) are
// applied atomically so callers can keep multi-key records consistent across
// crashes.
package kv

import "errors"

// ErrClosed is returned when a cache is used after Close.
var ErrClosed = errors.New("kv cache is closed")

// ErrKeyRequired is returned for blank keys.
var ErrKeyRequired = errors.New("kv key is required")

// Cache stores string values by key.
type Cache interface {
	Set(key, value string) error
	Get(key string) (string, bool, error)
	Remove(key string) error
	SetAll(values map[string]string) error
	RemoveAll(keys ...string) error
}
