package cachestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskcache/domain"
)

var (
	tasksBucket = []byte("tasks")
	metaBucket  = []byte("meta")

	collectionKey = []byte("collection")
	lastSyncKey   = []byte("last_sync")
	writtenAtKey  = []byte("written_at")
)

// Store persists the task collection in a BoltDB file so it survives restarts.
// The collection is read and written as a whole; every write is one Bolt
// transaction, so readers see either the old or the new collection.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open initializes the BoltDB file and ensures the buckets exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{tasksBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Load returns the whole collection in stored order.
func (s *Store) Load(ctx context.Context) ([]domain.Task, error) {
	raw, err := s.Raw(ctx)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// Raw returns the stored bytes of the collection, nil when nothing was written yet.
func (s *Store) Raw(ctx context.Context) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(tasksBucket).Get(collectionKey); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	return raw, err
}

// Replace swaps the stored collection for tasks.
func (s *Store) Replace(ctx context.Context, tasks []domain.Task) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encode(tasks)
	if err != nil {
		return err
	}
	stamp, err := s.now().UTC().MarshalText()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(tasksBucket).Put(collectionKey, payload); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put(writtenAtKey, stamp)
	})
}

// MarkSynced records the instant of the last successful reconciliation.
func (s *Store) MarkSynced(ctx context.Context, at time.Time) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	stamp, err := at.UTC().MarshalText()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(lastSyncKey, stamp)
	})
}

// Info reports collection statistics for monitoring endpoints.
func (s *Store) Info() (Info, error) {
	if s == nil || s.db == nil {
		return Info{}, bolt.ErrDatabaseNotOpen
	}
	var info Info
	err := s.db.View(func(tx *bolt.Tx) error {
		tasks, err := decode(tx.Bucket(tasksBucket).Get(collectionKey))
		if err != nil {
			return err
		}
		info.Tasks = len(tasks)
		for i := range tasks {
			if tasks[i].IsPending() {
				info.Pending++
			}
		}
		meta := tx.Bucket(metaBucket)
		info.LastSync = parseStamp(meta.Get(lastSyncKey))
		info.LastWrite = parseStamp(meta.Get(writtenAtKey))
		return nil
	})
	return info, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func decode(raw []byte) ([]domain.Task, error) {
	tasks := []domain.Task{}
	if len(raw) == 0 {
		return tasks, nil
	}
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "corrupt task collection", err)
	}
	return tasks, nil
}

func encode(tasks []domain.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return json.Marshal(tasks)
}

func parseStamp(v []byte) time.Time {
	var t time.Time
	if len(v) == 0 {
		return t
	}
	_ = t.UnmarshalText(v)
	return t
}
