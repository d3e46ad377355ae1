/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package kv

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
)

// DB is the single physical engine backing every column (spec §4.1
// "Columns"), following the teacher's pattern of layering several logical
// stores (block/state/event) over one physical database handle.
type DB struct {
	ldb *leveldb.DB
}

func Open(path string) (*DB, error) {
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.StorageCorruption, err, "open leveldb at %s", path)
	}
	return &DB{ldb: ldb}, nil
}

func OpenInMemory() *DB {
	ldb, err := leveldb.Open(newMemStorage(), nil)
	if err != nil {
		// in-memory storage allocation failing is not a recoverable state.
		panic(err)
	}
	return &DB{ldb: ldb}
}

func (d *DB) Close() error { return d.ldb.Close() }

func (d *DB) Get(col Column, key []byte) ([]byte, error) {
	v, err := d.ldb.Get(Key(col, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, rerrors.Wrap(rerrors.StorageCorruption, err, "get col=%x", col)
	}
	return v, nil
}

func (d *DB) Has(col Column, key []byte) (bool, error) {
	ok, err := d.ldb.Has(Key(col, key), nil)
	if err != nil {
		return false, rerrors.Wrap(rerrors.StorageCorruption, err, "has col=%x", col)
	}
	return ok, nil
}

func (d *DB) Put(col Column, key, value []byte) error {
	if err := d.ldb.Put(Key(col, key), value, nil); err != nil {
		return rerrors.Wrap(rerrors.CommitFailed, err, "put col=%x", col)
	}
	return nil
}

func (d *DB) Delete(col Column, key []byte) error {
	if err := d.ldb.Delete(Key(col, key), nil); err != nil {
		return rerrors.Wrap(rerrors.CommitFailed, err, "delete col=%x", col)
	}
	return nil
}

// WriteBatch atomically applies a set of writes, the only commit path the
// journal (store/journal) is allowed to use (spec §4.1 "commit atomically
// flushes to the durable store or fails").
type WriteBatch struct {
	batch *leveldb.Batch
}

func NewWriteBatch() *WriteBatch { return &WriteBatch{batch: new(leveldb.Batch)} }

func (b *WriteBatch) Put(col Column, key, value []byte) { b.batch.Put(Key(col, key), value) }
func (b *WriteBatch) Delete(col Column, key []byte)      { b.batch.Delete(Key(col, key)) }

func (d *DB) Commit(b *WriteBatch) error {
	if err := d.ldb.Write(b.batch, nil); err != nil {
		return rerrors.Fatal(err, "commit batch")
	}
	return nil
}

// Iterate walks [start, end) within a single column in key order, required
// for the three range-iterable columns (spec §4.1).
func (d *DB) Iterate(col Column, start, end []byte) iterator.Iterator {
	r := &util.Range{Start: Key(col, start)}
	if end != nil {
		r.Limit = Key(col, end)
	} else {
		r.Limit = Key(col+1, nil)
	}
	return d.ldb.NewIterator(r, nil)
}

var ErrNotFound = rerrors.New(rerrors.Unknown, "kv: not found")
