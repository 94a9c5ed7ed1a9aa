// Package cache stores generation results keyed by request fingerprint, so
// repeated semantically-identical requests reuse a prior itinerary instead
// of paying for a new generation call.
package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/planora-app/assistant-go/internal/logger"
)

var bucketGenerations = []byte("generations")

// ErrMiss signals an absent or expired entry in a typed way, so callers can
// tell misses apart from transport errors.
var ErrMiss = errors.New("cache: miss")

type record struct {
	Payload   string    `json:"payload"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Store is a bbolt-backed generation cache. Expiry is lazy: expired records
// are dropped when read, there is no background sweeper.
type Store struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (creating if needed) the cache file at path. A zero ttl means
// entries never expire.
func Open(path string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketGenerations)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached payload for key, or ErrMiss when absent, expired
// or unreadable. Malformed records are treated as misses, never as errors.
func (s *Store) Get(key string) (string, error) {
	var rec record
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGenerations)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if len(v) == 0 {
			return nil
		}
		if e := json.Unmarshal(v, &rec); e != nil {
			logger.L.Warn("cache: dropping malformed record", "key", key, "error", e)
			return nil
		}
		found = true
		return nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrMiss
	}
	if !rec.ExpiresAt.IsZero() && s.now().After(rec.ExpiresAt) {
		s.evict(key)
		return "", ErrMiss
	}
	return rec.Payload, nil
}

// Set stores payload under key, stamping the configured TTL.
func (s *Store) Set(key, payload string) error {
	rec := record{Payload: payload}
	if s.ttl > 0 {
		rec.ExpiresAt = s.now().Add(s.ttl)
	}
	enc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGenerations).Put([]byte(key), enc)
	})
}

func (s *Store) evict(key string) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGenerations).Delete([]byte(key))
	})
	if err != nil {
		logger.L.Warn("cache: evict failed", "key", key, "error", err)
	}
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}
