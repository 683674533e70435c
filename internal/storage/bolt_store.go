package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/draftsmith-hq/genprobe/internal/domain"
)

const (
	runBucket      = "runs"
	keyPrefixBytes = 8
)

// boltStore implements a Store backed by BoltDB. Keys carry the run start
// time as a big-endian nanosecond prefix so a cursor walks runs in
// chronological order.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	runTTL          time.Duration
	cleanupInterval time.Duration
	maxRuns         int
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		runTTL:          opts.RunTTL,
		cleanupInterval: opts.CleanupInterval,
		maxRuns:         opts.MaxRuns,
	}
	store.lastCleanup.Store(time.Now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// RecordRun appends the report, then prunes history beyond the run cap.
func (b *boltStore) RecordRun(ctx context.Context, report domain.RunReport) error {
	if b == nil || b.db == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	startedAt := report.StartedAt
	if startedAt.IsZero() {
		startedAt = now
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runBucket))
		if bucket == nil {
			return fmt.Errorf("run bucket missing")
		}
		if err := bucket.Put(runKey(startedAt, report.RunID), payload); err != nil {
			return err
		}
		return pruneOldest(bucket, b.maxRuns)
	})
}

// RecentRuns returns up to limit reports, newest first.
func (b *boltStore) RecentRuns(ctx context.Context, limit int) ([]domain.RunReport, error) {
	if b == nil || b.db == nil || limit <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-b.runTTL)

	var reports []domain.RunReport
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runBucket))
		if bucket == nil {
			return fmt.Errorf("run bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(reports) < limit; k, v = cursor.Prev() {
			started, ok := keyTime(k)
			if !ok || started.Before(cutoff) {
				continue
			}
			var report domain.RunReport
			if err := json.Unmarshal(v, &report); err != nil {
				continue
			}
			reports = append(reports, report)
		}
		return nil
	})
	return reports, err
}

// maybeCleanupExpired removes runs past their TTL on a fixed cadence to
// avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	cutoff := now.Add(-b.runTTL)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runBucket))
		if bucket == nil {
			return fmt.Errorf("run bucket missing")
		}

		var expired [][]byte
		cursor := bucket.Cursor()
		for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
			started, ok := keyTime(k)
			if ok && !started.Before(cutoff) {
				break
			}
			expired = append(expired, append([]byte(nil), k...))
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

// pruneOldest deletes the oldest entries until the bucket holds at most max.
func pruneOldest(bucket *bolt.Bucket, max int) error {
	if max <= 0 {
		return nil
	}

	var keys [][]byte
	cursor := bucket.Cursor()
	for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}

	for i := 0; len(keys)-i > max; i++ {
		if err := bucket.Delete(keys[i]); err != nil {
			return err
		}
	}
	return nil
}

// runKey builds a key ordered by start time with the run ID as tiebreaker.
func runKey(startedAt time.Time, runID string) []byte {
	key := make([]byte, keyPrefixBytes, keyPrefixBytes+len(runID))
	binary.BigEndian.PutUint64(key, uint64(startedAt.UnixNano()))
	return append(key, runID...)
}

// keyTime decodes the start time from the key prefix.
func keyTime(key []byte) (time.Time, bool) {
	if len(key) < keyPrefixBytes {
		return time.Time{}, false
	}
	nanos := int64(binary.BigEndian.Uint64(key[:keyPrefixBytes]))
	if nanos <= 0 {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}
