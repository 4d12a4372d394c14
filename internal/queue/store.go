package queue

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/evobench/evobenchd/internal/job"
	"github.com/evobench/evobenchd/internal/kvstore"
)

// Queue pairs a Kind with the durable kvstore.Store holding its jobs.
type Queue struct {
	Kind  Kind
	store *kvstore.Store
}

// Open opens (creating if absent) the on-disk job store for kind under
// queuesRoot/<kind.Name()>.
func Open(queuesRoot string, kind Kind) (*Queue, error) {
	store, err := kvstore.Open(filepath.Join(queuesRoot, kind.Name()))
	if err != nil {
		return nil, fmt.Errorf("queue %s: %w", kind.Name(), err)
	}
	return &Queue{Kind: kind, store: store}, nil
}

// Insert persists rec under a freshly minted key and returns it.
func (q *Queue) Insert(rec job.Record) (job.Key, error) {
	key := job.NewKey(time.Now())
	data, err := job.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := q.store.Insert(key.String(), data); err != nil {
		return "", fmt.Errorf("queue %s: insert: %w", q.Kind.Name(), err)
	}
	return key, nil
}

// Put overwrites the record at key, used to persist a mutated job back into
// the queue that already holds it.
func (q *Queue) Put(key job.Key, rec job.Record) error {
	data, err := job.Marshal(rec)
	if err != nil {
		return err
	}
	if err := q.store.Put(key.String(), data); err != nil {
		return fmt.Errorf("queue %s: put %s: %w", q.Kind.Name(), key, err)
	}
	return nil
}

// Get reads the record at key.
func (q *Queue) Get(key job.Key) (job.Record, error) {
	data, err := q.store.Get(key.String())
	if err != nil {
		return job.Record{}, fmt.Errorf("queue %s: get %s: %w", q.Kind.Name(), key, err)
	}
	return job.Unmarshal(data)
}

// Remove deletes the record at key.
func (q *Queue) Remove(key job.Key) error {
	if err := q.store.Remove(key.String()); err != nil {
		return fmt.Errorf("queue %s: remove %s: %w", q.Kind.Name(), key, err)
	}
	return nil
}

// Keys lists all keys currently held, ascending.
func (q *Queue) Keys() ([]job.Key, error) {
	raw, err := q.store.List()
	if err != nil {
		return nil, fmt.Errorf("queue %s: list: %w", q.Kind.Name(), err)
	}
	keys := make([]job.Key, len(raw))
	for i, k := range raw {
		keys[i] = job.Key(k)
	}
	return keys, nil
}

// Entries lists (key, record) pairs, skipping any key that disappears between
// listing and reading (spec §5 tolerant-reader posture).
func (q *Queue) Entries() ([]Entry, error) {
	keys, err := q.Keys()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		rec, err := q.Get(key)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Key: key, Record: rec})
	}
	return entries, nil
}

// MoveInto relocates the record at key from q into dst under a fresh key,
// so that two queues never collide on insertion-order filenames.
func (q *Queue) MoveInto(dst *Queue, key job.Key) (job.Key, error) {
	rec, err := q.Get(key)
	if err != nil {
		return "", err
	}
	newKey, err := dst.Insert(rec)
	if err != nil {
		return "", err
	}
	if err := q.Remove(key); err != nil {
		return "", fmt.Errorf("queue %s: move %s: remove source: %w", q.Kind.Name(), key, err)
	}
	return newKey, nil
}

// Entry is a (key, record) pair returned by Entries.
type Entry struct {
	Key    job.Key
	Record job.Record
}
