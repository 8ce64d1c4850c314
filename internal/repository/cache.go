package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/assemble"
)

const resultsBucket = "results"

// CacheEntry is what the cache remembers about an extracted document.
type CacheEntry struct {
	DocumentID  string                 `json:"documentId"`
	Filename    string                 `json:"filename"`
	Status      constants.ResultStatus `json:"status"`
	Location    string                 `json:"location,omitempty"`
	ExtractedAt time.Time              `json:"extractedAt"`
}

// ResultCache maps content hashes to finished extractions so unchanged files are
// skipped on the next run. Failed results are never cached.
type ResultCache struct {
	db *bbolt.DB
}

func NewResultCache(path string) (*ResultCache, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening result cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(resultsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &ResultCache{db: db}, nil
}

// Seen reports whether contentHash has a cached entry.
func (c *ResultCache) Seen(_ context.Context, contentHash string) (bool, error) {
	_, ok, err := c.Get(contentHash)
	return ok, err
}

func (c *ResultCache) Get(contentHash string) (CacheEntry, bool, error) {
	var (
		entry CacheEntry
		found bool
	)
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(resultsBucket)).Get([]byte(contentHash))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("reading cache entry: %w", err)
	}
	return entry, found, nil
}

// Put records res under its content hash. Failed results and results without a
// hash are ignored so they are retried next run.
func (c *ResultCache) Put(res assemble.Result, loc Location) error {
	if res.Failed() || res.ContentHash == "" {
		return nil
	}
	entry := CacheEntry{
		DocumentID:  res.DocumentID,
		Filename:    res.Filename,
		Status:      res.Status,
		ExtractedAt: res.ExtractedAt,
	}
	if loc.Backend != "" {
		entry.Location = loc.String()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(resultsBucket)).Put([]byte(res.ContentHash), data)
	})
}

func (c *ResultCache) Delete(contentHash string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(resultsBucket)).Delete([]byte(contentHash))
	})
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() (int, error) {
	n := 0
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(resultsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

func (c *ResultCache) Close() error {
	return c.db.Close()
}
