// Copyright 2024 The Radiam Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package queue implements the Crawler's durable work queue (spec.md §3,
// "Work Queue"): a FIFO of directory paths to visit, backed by a bbolt
// bucket so a crash mid-crawl does not lose un-acked entries. An item
// dequeued must be acked once fully processed; a re-run after a crash
// re-visits anything left un-acked, never double-acks a path already
// acknowledged.
package queue

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	pendingBucket = []byte("pending")
	inFlightBucket = []byte("inflight")
)

// Queue is a durable, per-project FIFO of directory paths.
type Queue struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt-backed queue at path.
func Open(path string) (*Queue, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(pendingBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(inFlightBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Queue{db: db}, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Push enqueues path, appended after anything already pending.
func (q *Queue) Push(path string) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), []byte(path))
	})
}

// Pop dequeues the oldest pending path and moves it to the in-flight set,
// returning ok=false if the queue is empty. The caller must call Ack(path)
// once the path has been fully processed.
func (q *Queue) Pop() (path string, ok bool, err error) {
	err = q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket)
		c := b.Cursor()
		k, v := c.First()
		if k == nil {
			return nil
		}
		path = string(v)
		ok = true
		if err := tx.Bucket(inFlightBucket).Put(k, v); err != nil {
			return err
		}
		return b.Delete(k)
	})
	return path, ok, err
}

// Ack acknowledges that path (previously returned by Pop) has been fully
// processed and removes it from the in-flight set.
func (q *Queue) Ack(path string) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(inFlightBucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if string(v) == path {
				return b.Delete(k)
			}
		}
		return nil
	})
}

// Recover moves every un-acked in-flight entry back onto the pending
// queue, ahead of anything pushed since. Call this once after Open to
// resume a crawl interrupted mid-run.
func (q *Queue) Recover() error {
	return q.db.Update(func(tx *bolt.Tx) error {
		inflight := tx.Bucket(inFlightBucket)
		pending := tx.Bucket(pendingBucket)

		var paths [][]byte
		c := inflight.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			cp := make([]byte, len(v))
			copy(cp, v)
			paths = append(paths, cp)
			if err := inflight.Delete(k); err != nil {
				return err
			}
		}

		// Re-push oldest first, then re-key so they sort ahead of anything
		// already pending (bbolt's NextSequence is monotonically increasing
		// across the bucket's lifetime, so a fresh sequence sorts after).
		existing := make([][]byte, 0)
		pc := pending.Cursor()
		for k, v := pc.First(); k != nil; k, v = pc.Next() {
			cp := make([]byte, len(v))
			copy(cp, v)
			existing = append(existing, cp)
			if err := pending.Delete(k); err != nil {
				return err
			}
		}

		seq := uint64(0)
		for _, p := range paths {
			seq++
			if err := pending.Put(sequenceKey(seq), p); err != nil {
				return err
			}
		}
		for _, p := range existing {
			seq++
			if err := pending.Put(sequenceKey(seq), p); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of pending (not yet popped) entries.
func (q *Queue) Len() (int, error) {
	var n int
	err := q.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(pendingBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func sequenceKey(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
