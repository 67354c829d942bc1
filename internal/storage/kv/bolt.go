package kv

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const defaultsBucket = "defaults"

// Bolt is a Cache persisted in a single BoltDB bucket.
type Bolt struct {
	db *bbolt.DB
}

// Open opens or creates a BoltDB-backed cache at path.
func Open(path string) (*Bolt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	cache := &Bolt{db: db}
	if err := cache.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

// Close closes the underlying BoltDB database.
func (b *Bolt) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Set stores value under key.
func (b *Bolt) Set(key, value string) error {
	return b.SetAll(map[string]string{key: value})
}

// Get returns the value for key and whether it was present.
func (b *Bolt) Get(key string) (string, bool, error) {
	if b == nil || b.db == nil {
		return "", false, ErrClosed
	}
	if strings.TrimSpace(key) == "" {
		return "", false, ErrKeyRequired
	}

	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(defaultsBucket))
		if bucket == nil {
			return errors.New("defaults bucket is missing")
		}
		payload := bucket.Get([]byte(key))
		if payload == nil {
			return nil
		}
		value, found = string(payload), true
		return nil
	})
	if err != nil {
		return "", false, translate(err)
	}
	return value, found, nil
}

// Remove deletes key. Missing keys are not an error.
func (b *Bolt) Remove(key string) error {
	return b.RemoveAll(key)
}

// SetAll writes every pair in one transaction.
func (b *Bolt) SetAll(values map[string]string) error {
	if b == nil || b.db == nil {
		return ErrClosed
	}
	for key := range values {
		if strings.TrimSpace(key) == "" {
			return ErrKeyRequired
		}
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(defaultsBucket))
		if bucket == nil {
			return errors.New("defaults bucket is missing")
		}
		for key, value := range values {
			if err := bucket.Put([]byte(key), []byte(value)); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
		}
		return nil
	})
	return translate(err)
}

// RemoveAll deletes every key in one transaction.
func (b *Bolt) RemoveAll(keys ...string) error {
	if b == nil || b.db == nil {
		return ErrClosed
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(defaultsBucket))
		if bucket == nil {
			return errors.New("defaults bucket is missing")
		}
		for _, key := range keys {
			if strings.TrimSpace(key) == "" {
				return ErrKeyRequired
			}
			if err := bucket.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
	return translate(err)
}

func (b *Bolt) ensureBuckets() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(defaultsBucket)); err != nil {
			return fmt.Errorf("create defaults bucket: %w", err)
		}
		return nil
	})
}

func translate(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}
