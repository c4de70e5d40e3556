package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	bolt "go.etcd.io/bbolt"
)

const articlesBktName = "articles"

// Bolt is a storage that uses BoltDB as a backend.
type Bolt struct {
	db *bolt.DB
}

// NewBolt creates new Bolt storage.
func NewBolt(dir string) (*Bolt, error) {
	db, err := bolt.Open(path.Join(dir, "articles.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to make boltdb for %s: %w", dir, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{articlesBktName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create top-level bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("make buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Put puts article to storage, keyed by its URL.
func (b *Bolt) Put(_ context.Context, a Article) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(articlesBktName))

		bts, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal article: %w", err)
		}

		if err := bkt.Put([]byte(a.URL), bts); err != nil {
			return fmt.Errorf("put article to storage: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("update storage: %w", err)
	}

	return nil
}

// Get returns article from storage.
func (b *Bolt) Get(_ context.Context, url string) (a Article, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(articlesBktName))

		bts := bkt.Get([]byte(url))
		if bts == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(bts, &a); err != nil {
			return fmt.Errorf("unmarshal article: %w", err)
		}

		return nil
	})
	if err != nil {
		return Article{}, fmt.Errorf("view storage: %w", err)
	}

	return a, nil
}

// Close closes the storage.
func (b *Bolt) Close() error { return b.db.Close() }
