// Package photocache keeps fetched place photos in an embedded badger store on
// local disk. Every entry expires after the configured TTL.
package photocache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/benvon/restaurant-finder/internal/services/places"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const keyPrefix = "photo:"

// gcDiscardRatio is the fraction of a value log file that must be garbage
// before badger rewrites it.
const gcDiscardRatio = 0.5

// ErrClosed is returned once the cache has been closed.
var ErrClosed = errors.New("photo cache is closed")

// Fetcher loads a photo from upstream on a cache miss.
type Fetcher func(ctx context.Context) (*places.Image, error)

// Stats summarises the cache contents.
type Stats struct {
	Entries   int   `json:"entries"`
	LSMBytes  int64 `json:"lsm_bytes"`
	VLogBytes int64 `json:"vlog_bytes"`
}

// Cache is a TTL-bounded photo store.
type Cache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *zap.Logger
}

// Open opens (or creates) the cache directory.
func Open(dir string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open photo cache at %s: %w", dir, err)
	}
	return New(db, ttl, logger), nil
}

// New wraps an already opened badger database.
func New(db *badger.DB, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{db: db, ttl: ttl, logger: logger}
}

// Key derives the storage key for a photo reference at a given width.
func Key(photoReference string, maxWidth int) []byte {
	sum := sha256.Sum256([]byte(photoReference + ":" + strconv.Itoa(maxWidth)))
	return []byte(keyPrefix + hex.EncodeToString(sum[:]))
}

// Get returns the cached photo. The second result is false on a miss.
func (c *Cache) Get(photoReference string, maxWidth int) (*places.Image, bool, error) {
	if c.db.IsClosed() {
		return nil, false, ErrClosed
	}

	var img *places.Image
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(photoReference, maxWidth))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeImage(val)
			if err != nil {
				return err
			}
			img = decoded
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached photo: %w", err)
	}
	return img, true, nil
}

// Put stores a photo until the TTL elapses.
func (c *Cache) Put(photoReference string, maxWidth int, img *places.Image) error {
	if c.db.IsClosed() {
		return ErrClosed
	}

	entry := badger.NewEntry(Key(photoReference, maxWidth), encodeImage(img)).WithTTL(c.ttl)
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("failed to store photo: %w", err)
	}
	return nil
}

// GetOrFetch serves from the cache or calls fetch and stores the result. The
// second result reports a cache hit. A failed store write is logged, not returned.
func (c *Cache) GetOrFetch(ctx context.Context, photoReference string, maxWidth int, fetch Fetcher) (*places.Image, bool, error) {
	img, hit, err := c.Get(photoReference, maxWidth)
	if err != nil {
		c.logger.Warn("photo_cache_read_failed", zap.Error(err))
	}
	if hit {
		return img, true, nil
	}

	img, err = fetch(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := c.Put(photoReference, maxWidth, img); err != nil {
		c.logger.Warn("photo_cache_write_failed", zap.Error(err))
	}
	return img, false, nil
}

// Stats counts live entries and reports on-disk sizes.
func (c *Cache) Stats() (Stats, error) {
	if c.db.IsClosed() {
		return Stats{}, ErrClosed
	}

	var stats Stats
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stats.Entries++
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to scan photo cache: %w", err)
	}

	stats.LSMBytes, stats.VLogBytes = c.db.Size()
	return stats, nil
}

// Purge drops every cached photo.
func (c *Cache) Purge() error {
	if c.db.IsClosed() {
		return ErrClosed
	}
	if err := c.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("failed to purge photo cache: %w", err)
	}
	return nil
}

// HealthCheck reports whether the store is open.
func (c *Cache) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// CollectGarbage rewrites value log files until nothing is left to reclaim.
func (c *Cache) CollectGarbage() error {
	for {
		err := c.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log GC: %w", err)
		}
	}
}

// RunGC collects garbage every interval until ctx is cancelled.
func (c *Cache) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := c.CollectGarbage(); err != nil {
				c.logger.Warn("photo_cache_gc_failed", zap.Error(err))
				continue
			}
			c.logger.Debug("photo_cache_gc_completed", zap.Duration("duration", time.Since(start)))
		}
	}
}

// Close flushes and closes the store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Entries are stored as "<content type>\x00<bytes>".
func encodeImage(img *places.Image) []byte {
	buf := make([]byte, 0, len(img.ContentType)+1+len(img.Data))
	buf = append(buf, img.ContentType...)
	buf = append(buf, 0)
	return append(buf, img.Data...)
}

func decodeImage(val []byte) (*places.Image, error) {
	i := bytes.IndexByte(val, 0)
	if i < 0 {
		return nil, errors.New("corrupt photo cache entry")
	}
	data := make([]byte, len(val)-i-1)
	copy(data, val[i+1:])
	return &places.Image{ContentType: string(val[:i]), Data: data}, nil
}
