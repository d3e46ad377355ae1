/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package history

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/store/journal"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/types"
)

func h(b byte) types.Hash {
	var out types.Hash
	out[31] = b
	return out
}

func TestGetHistoryStateSeeksLargestBlockAtOrBeforeN(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()

	key := h(1)

	txn := journal.New(db)
	Record(txn, 5, key, h(50))
	Record(txn, 10, key, h(100))
	Record(txn, 20, key, h(200))
	require.NoError(t, txn.Commit())

	v, err := GetHistoryState(db, 3, key)
	require.NoError(t, err)
	require.True(t, v.IsZero(), "no write at or before block 3")

	v, err = GetHistoryState(db, 5, key)
	require.NoError(t, err)
	require.Equal(t, h(50), v)

	v, err = GetHistoryState(db, 9, key)
	require.NoError(t, err)
	require.Equal(t, h(50), v)

	v, err = GetHistoryState(db, 10, key)
	require.NoError(t, err)
	require.Equal(t, h(100), v)

	v, err = GetHistoryState(db, 1000, key)
	require.NoError(t, err)
	require.Equal(t, h(200), v)
}

func TestForEachKeyAtBlockVisitsOnlyThatBlocksWrites(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()

	txn := journal.New(db)
	Record(txn, 5, h(1), h(10))
	Record(txn, 5, h(2), h(20))
	Record(txn, 6, h(3), h(30))
	require.NoError(t, txn.Commit())

	var visited []types.Hash
	require.NoError(t, ForEachKeyAtBlock(db, 5, func(k types.Hash) error {
		visited = append(visited, k)
		return nil
	}))
	require.ElementsMatch(t, []types.Hash{h(1), h(2)}, visited)
}

func TestPruneDeletesOnlyTargetBlock(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()

	txn := journal.New(db)
	Record(txn, 5, h(1), h(10))
	Record(txn, 6, h(1), h(11))
	require.NoError(t, txn.Commit())

	require.NoError(t, Prune(db, 5))

	v, err := GetHistoryState(db, 5, h(1))
	require.NoError(t, err)
	require.True(t, v.IsZero(), "block 5's record was pruned")

	v, err = GetHistoryState(db, 6, h(1))
	require.NoError(t, err)
	require.Equal(t, h(11), v)
}
