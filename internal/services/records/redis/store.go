// Package redis provides a Redis-backed record store.
//
// Each top-level path segment owns one hash, records:<segment>. Hash fields
// are full leaf paths and hash values are the JSON encoded leaves, so a
// subtree read is a single HGETALL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/messenger/internal/services/records"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultPrefix   = "records:"
	maxWriteRetries = 3
)

// Store persists record leaves in Redis hashes.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix overrides the hash key prefix; defaults to "records:".
	Prefix string
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, opts.Prefix), nil
}

// New wraps an existing client.
func New(client goredis.UniversalClient, prefix string) *Store {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Close closes the Redis client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Get returns the subtree stored at path.
func (s *Store) Get(ctx context.Context, path string) (any, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("storage is not configured")
	}
	clean, err := records.CleanPath(path)
	if err != nil {
		return nil, err
	}

	fields, err := s.client.HGetAll(ctx, s.hashKey(clean)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, records.Unavailable("get", clean, err)
	}
	return records.Assemble(clean, toRows(fields))
}

// Set replaces the subtree at path. The read of existing fields and the
// write are guarded by WATCH so concurrent writers to the same hash retry.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	if s == nil || s.client == nil {
		return errors.New("storage is not configured")
	}
	clean, err := records.CleanPath(path)
	if err != nil {
		return err
	}
	leaves, err := records.Flatten(clean, value)
	if err != nil {
		return err
	}

	key := s.hashKey(clean)
	write := func(tx *goredis.Tx) error {
		existing, err := tx.HKeys(ctx, key).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		stale := staleFields(clean, existing)
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if len(stale) > 0 {
				pipe.HDel(ctx, key, stale...)
			}
			if len(leaves) > 0 {
				pipe.HSet(ctx, key, hashFields(leaves))
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		err = s.client.Watch(ctx, write, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return records.Unavailable("set", clean, err)
	}
	return nil
}

func (s *Store) hashKey(path string) string {
	return s.prefix + records.TopSegment(path)
}

// staleFields returns the existing fields that a write at path replaces:
// the path itself, its descendants and any ancestor leaves.
func staleFields(path string, existing []string) []string {
	ancestors := make(map[string]struct{})
	for _, ancestor := range records.Ancestors(path) {
		ancestors[ancestor] = struct{}{}
	}
	prefix := path + "/"
	var stale []string
	for _, field := range existing {
		if _, ok := ancestors[field]; ok || field == path || strings.HasPrefix(field, prefix) {
			stale = append(stale, field)
		}
	}
	return stale
}

// hashFields maps leaf rows to HSET field values.
func hashFields(leaves []records.Row) map[string]any {
	values := make(map[string]any, len(leaves))
	for _, leaf := range leaves {
		values[leaf.Path] = string(leaf.Value)
	}
	return values
}

func toRows(fields map[string]string) []records.Row {
	rows := make([]records.Row, 0, len(fields))
	for path, payload := range fields {
		rows = append(rows, records.Row{Path: path, Value: []byte(payload)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	return rows
}
