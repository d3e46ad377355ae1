/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package journal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/store/kv"
)

func TestTxnGetFallsBackToDurableStore(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	require.NoError(t, db.Put(kv.ColMeta, []byte("a"), []byte("durable")))

	txn := New(db)
	v, err := txn.Get(kv.ColMeta, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("durable"), v)

	txn.Put(kv.ColMeta, []byte("a"), []byte("buffered"))
	v, err = txn.Get(kv.ColMeta, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("buffered"), v)
}

func TestTxnRollbackToSavePointRestoresPriorWrite(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := New(db)

	txn.Put(kv.ColMeta, []byte("k"), []byte("v1"))
	sp := txn.SavePoint()
	txn.Put(kv.ColMeta, []byte("k"), []byte("v2"))
	txn.Put(kv.ColMeta, []byte("other"), []byte("x"))

	txn.RollbackToSavePoint(sp)

	v, err := txn.Get(kv.ColMeta, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	_, err = txn.Get(kv.ColMeta, []byte("other"))
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestTxnRollbackToZeroSavePointDropsFirstWrite(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := New(db)

	sp := txn.SavePoint()
	txn.Put(kv.ColMeta, []byte("k"), []byte("v1"))
	txn.RollbackToSavePoint(sp)

	_, err := txn.Get(kv.ColMeta, []byte("k"))
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestTxnCommitFlushesToDurableStoreAndResets(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := New(db)

	txn.Put(kv.ColMeta, []byte("k"), []byte("v"))
	txn.Delete(kv.ColMeta, []byte("absent"))
	require.NoError(t, txn.Commit())

	got, err := db.Get(kv.ColMeta, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	// Commit clears the buffer: a subsequent Get falls through to the store.
	_, err = txn.Get(kv.ColMeta, []byte("k"))
	require.NoError(t, err)
}

func TestTxnDiscardDropsBufferedWrites(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := New(db)

	txn.Put(kv.ColMeta, []byte("k"), []byte("v"))
	txn.Discard()

	_, err := db.Get(kv.ColMeta, []byte("k"))
	require.ErrorIs(t, err, kv.ErrNotFound)
}
