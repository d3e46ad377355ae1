/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package journal implements the store transaction described in spec §4.1
// "Journaling": writes buffer in an ordered, column-tagged map, save-point
// and rollback support speculative execution inside the mempool, and
// commit atomically flushes to the durable store or fails (fatal).
package journal

import (
	"bytes"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
)

type write struct {
	col     kv.Column
	key     []byte
	value   []byte
	deleted bool
}

// Txn buffers writes against one underlying DB until Commit, supporting
// nested save points the way the mempool's per-item admission needs to
// (spec §4.3 "Batch channel" applies each item under per-item
// save-point/rollback on the underlying store journal).
type Txn struct {
	db     *kv.DB
	writes []write
	// index maps "col|key" to the position of its latest write, so Get can
	// answer from the buffer without a linear scan.
	index map[string]int
}

func New(db *kv.DB) *Txn {
	return &Txn{db: db, index: make(map[string]int)}
}

func idxKey(col kv.Column, key []byte) string {
	var b bytes.Buffer
	b.WriteByte(byte(col))
	b.Write(key)
	return b.String()
}

func (t *Txn) Put(col kv.Column, key, value []byte) {
	w := write{col: col, key: append([]byte(nil), key...), value: append([]byte(nil), value...)}
	t.index[idxKey(col, key)] = len(t.writes)
	t.writes = append(t.writes, w)
}

func (t *Txn) Delete(col kv.Column, key []byte) {
	w := write{col: col, key: append([]byte(nil), key...), deleted: true}
	t.index[idxKey(col, key)] = len(t.writes)
	t.writes = append(t.writes, w)
}

// Get reads the most recent buffered write for (col, key), falling back to
// the durable store if this txn hasn't touched it.
func (t *Txn) Get(col kv.Column, key []byte) ([]byte, error) {
	if i, ok := t.index[idxKey(col, key)]; ok {
		w := t.writes[i]
		if w.deleted {
			return nil, kv.ErrNotFound
		}
		return w.value, nil
	}
	return t.db.Get(col, key)
}

// SavePoint returns a marker that RollbackToSavePoint can later return to.
func (t *Txn) SavePoint() int { return len(t.writes) }

// RollbackToSavePoint discards every write made since sp, restoring index
// entries that sp had shadowed.
func (t *Txn) RollbackToSavePoint(sp int) {
	for i := len(t.writes) - 1; i >= sp; i-- {
		w := t.writes[i]
		k := idxKey(w.col, w.key)
		// find the next-most-recent write of this key before sp, if any.
		restored := false
		for j := sp - 1; j >= 0; j-- {
			if idxKey(t.writes[j].col, t.writes[j].key) == k {
				t.index[k] = j
				restored = true
				break
			}
		}
		if !restored {
			delete(t.index, k)
		}
	}
	t.writes = t.writes[:sp]
}

// Commit flushes every buffered write to the durable store in one atomic
// batch. A failure here is unrecoverable: the caller's in-memory watermarks
// would otherwise diverge from what is actually durable (spec §4.1 "Failure
// semantics" / §7 "CommitFailed").
func (t *Txn) Commit() error {
	batch := kv.NewWriteBatch()
	for _, w := range t.writes {
		if w.deleted {
			batch.Delete(w.col, w.key)
		} else {
			batch.Put(w.col, w.key, w.value)
		}
	}
	if err := t.db.Commit(batch); err != nil {
		return rerrors.Fatal(err, "journal commit failed, %d writes lost", len(t.writes))
	}
	t.writes = nil
	t.index = make(map[string]int)
	return nil
}

// Discard drops every buffered write without touching the durable store,
// used when an attach attempt aborts (spec §4.2 "leaves the store
// unchanged").
func (t *Txn) Discard() {
	t.writes = nil
	t.index = make(map[string]int)
}
