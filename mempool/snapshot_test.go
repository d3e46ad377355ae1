/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package mempool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/types"
)

func TestDumpThenRestoreReadmitsQueuedItems(t *testing.T) {
	dir := t.TempDir()
	f := newPoolFixture(t)
	tx := &types.L2Transaction{FromID: f.senderID, ToID: f.targetID, Nonce: 0, ChainID: 1, CyclesLimit: 10}
	_, err := f.pool.SubmitTransaction(tx)
	require.NoError(t, err)
	w := &types.WithdrawalRequest{AccountScriptHash: f.senderHash, Capacity: 100, Nonce: 1}
	_, err = f.pool.SubmitWithdrawal(w)
	require.NoError(t, err)

	require.NoError(t, f.pool.Dump(dir))

	// A restarted pool over the same store starts with empty queues;
	// Restore should re-admit both items from the dumped snapshot.
	pool2, err := New(f.st, f.pool.gen, f.pool.backends, f.pool.locks, f.pool.params, nil, nil, 10, 100)
	require.NoError(t, err)
	n, err := pool2.Restore(dir, 0)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 1, pool2.txs.len())
	require.Equal(t, 1, pool2.withdrawals.len())
}

func TestRestoreDiscardsStaleItemsWithoutFailing(t *testing.T) {
	dir := t.TempDir()
	f := newPoolFixture(t)

	// A withdrawal whose nonce no longer matches the account's current
	// nonce has gone stale by the time Restore replays it; queue it
	// directly (bypassing admission) to dump a snapshot that will fail to
	// re-admit.
	stale := &types.WithdrawalRequest{AccountScriptHash: f.senderHash, Capacity: 100, Nonce: 99}
	f.pool.withdrawals.insert(&withdrawalItem{w: stale, seq: 1})
	require.NoError(t, f.pool.Dump(dir))
	f.pool.withdrawals = withdrawalQueue{}

	n, err := f.pool.Restore(dir, 0)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, 0, f.pool.withdrawals.len())
}

func TestRestoreReturnsZeroWhenDirectoryMissing(t *testing.T) {
	f := newPoolFixture(t)
	n, err := f.pool.Restore(t.TempDir()+"/does-not-exist", 0)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestCleanOldSnapshotsKeepsNewestRegardlessOfAge(t *testing.T) {
	dir := t.TempDir()
	f := newPoolFixture(t)
	require.NoError(t, f.pool.Dump(dir))

	deleted, err := CleanOldSnapshots(dir, time.Nanosecond)
	require.NoError(t, err)
	require.Equal(t, 0, deleted)
}

func TestCleanOldSnapshotsRemovesOlderFiles(t *testing.T) {
	dir := t.TempDir()
	f := newPoolFixture(t)
	require.NoError(t, f.pool.Dump(dir))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, f.pool.Dump(dir))

	deleted, err := CleanOldSnapshots(dir, 0)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
}
