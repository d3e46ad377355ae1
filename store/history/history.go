/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package history implements the history-indexed read path of spec §4.1:
// every write to an SMT leaf at block N is duplicated into a forward
// (block -> value) and reverse (key -> block) column, so a historic read
// never touches the live SMT, and pruning bounds storage to FINALITY+1
// generations per key.
package history

import (
	"encoding/binary"

	"github.com/godwokenrises/godwoken-sub004/store/journal"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/types"
)

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func forwardKey(blockNumber uint64, stateKey types.Hash) []byte {
	k := make([]byte, 8+types.HashSize)
	copy(k, be64(blockNumber))
	copy(k[8:], stateKey[:])
	return k
}

func reverseKey(stateKey types.Hash, blockNumber uint64) []byte {
	k := make([]byte, types.HashSize+8)
	copy(k, stateKey[:])
	copy(k[types.HashSize:], be64(blockNumber))
	return k
}

// Record duplicates one SMT leaf write into the history index (spec §4.1
// "History index"). Called only from an attach-block state tree; detach
// must not record (it replays, it does not extend history).
func Record(txn *journal.Txn, blockNumber uint64, stateKey, newValue types.Hash) {
	txn.Put(kv.ColBlockStateForward, forwardKey(blockNumber, stateKey), newValue[:])
	txn.Put(kv.ColBlockStateReverse, reverseKey(stateKey, blockNumber), []byte{})
}

// GetHistoryState answers "what was stateKey's value as of block N" purely
// from the index: seek the reverse column to the largest block <= N for
// that key, then read the forward column at that exact position.
func GetHistoryState(db *kv.DB, blockNumber uint64, stateKey types.Hash) (types.Hash, error) {
	start := reverseKey(stateKey, 0)
	limit := reverseKey(stateKey, blockNumber+1)
	iter := db.Iterate(kv.ColBlockStateReverse, start, limit)
	defer iter.Release()
	if !iter.Last() {
		return types.ZeroHash, nil // no write at or before N: absent
	}
	// iter.Key() is column-prefixed; strip the 1-byte column tag.
	raw := iter.Key()[1:]
	if len(raw) < types.HashSize+8 {
		return types.ZeroHash, nil
	}
	foundBlock := binary.BigEndian.Uint64(raw[types.HashSize:])
	val, err := db.Get(kv.ColBlockStateForward, forwardKey(foundBlock, stateKey))
	if err == kv.ErrNotFound {
		return types.ZeroHash, nil
	}
	if err != nil {
		return types.ZeroHash, err
	}
	return types.HashFromBytes(val), nil
}

// ForEachKeyAtBlock visits every state key the history index recorded a
// write for at exactly blockNumber, in key order. Used by chain.Detach to
// discover which keys a block touched so they can be replayed to their
// prior value.
func ForEachKeyAtBlock(db *kv.DB, blockNumber uint64, fn func(stateKey types.Hash) error) error {
	prefix := be64(blockNumber)
	limit := be64(blockNumber + 1)
	iter := db.Iterate(kv.ColBlockStateForward, prefix, limit)
	defer iter.Release()
	for iter.Next() {
		raw := iter.Key()[1:]
		if len(raw) < 8+types.HashSize {
			continue
		}
		if err := fn(types.HashFromBytes(raw[8:])); err != nil {
			return err
		}
	}
	return nil
}

// Prune deletes the history index entries for exactly blockNumber (spec
// §4.1 "Pruning" is invoked once per attach with blockNumber = N-FINALITY-1).
func Prune(db *kv.DB, blockNumber uint64) error {
	prefix := be64(blockNumber)
	limit := be64(blockNumber + 1)
	iter := db.Iterate(kv.ColBlockStateForward, prefix, limit)
	defer iter.Release()

	batch := kv.NewWriteBatch()
	for iter.Next() {
		raw := append([]byte(nil), iter.Key()[1:]...)
		stateKey := types.HashFromBytes(raw[8:])
		batch.Delete(kv.ColBlockStateForward, raw)
		batch.Delete(kv.ColBlockStateReverse, reverseKey(stateKey, blockNumber))
	}
	return db.Commit(batch)
}
