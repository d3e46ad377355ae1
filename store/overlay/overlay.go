/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package overlay implements the memory-overlay store of spec §4.1: the
// same column interface as store/kv, backed by an in-memory map layered on
// a durable snapshot. Used by the mempool to speculate without holding the
// durable writer (store/journal.Txn is for that). Cloning copies the
// in-memory layer by structural sharing; clones do not observe each
// other's subsequent mutations.
package overlay

import (
	"github.com/godwokenrises/godwoken-sub004/store/kv"
)

type entry struct {
	value   []byte
	deleted bool
}

// layer is one generation of an overlay's in-memory writes, chained to its
// parent generation. Once a generation has a child (via Clone) it is never
// mutated again -- only its child layers accumulate new writes -- which is
// what makes clones independent without copying the whole map.
type layer struct {
	parent  *layer
	entries map[string]entry
}

func newLayer(parent *layer) *layer {
	return &layer{parent: parent, entries: make(map[string]entry)}
}

func (l *layer) lookup(k string) (entry, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if e, ok := cur.entries[k]; ok {
			return e, true
		}
	}
	return entry{}, false
}

// Store is a clonable, column-tagged key/value store: the durable base plus
// whatever this generation (and its ancestors) have written on top.
type Store struct {
	base *kv.DB
	cur  *layer
}

func New(base *kv.DB) *Store {
	return &Store{base: base, cur: newLayer(nil)}
}

func key(col kv.Column, k []byte) string {
	b := make([]byte, 1+len(k))
	b[0] = byte(col)
	copy(b[1:], k)
	return string(b)
}

func (s *Store) Get(col kv.Column, k []byte) ([]byte, error) {
	if e, ok := s.cur.lookup(key(col, k)); ok {
		if e.deleted {
			return nil, kv.ErrNotFound
		}
		return e.value, nil
	}
	return s.base.Get(col, k)
}

func (s *Store) Put(col kv.Column, k, v []byte) {
	s.cur.entries[key(col, k)] = entry{value: append([]byte(nil), v...)}
}

func (s *Store) Delete(col kv.Column, k []byte) {
	s.cur.entries[key(col, k)] = entry{deleted: true}
}

// Clone returns an independent copy: this Store and the returned one both
// get a fresh top layer parented on the same frozen snapshot of writes so
// far, and neither observes the other's future mutations.
func (s *Store) Clone() *Store {
	frozen := s.cur
	s.cur = newLayer(frozen)
	return &Store{base: s.base, cur: newLayer(frozen)}
}
