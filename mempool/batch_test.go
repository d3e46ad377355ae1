/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/types"
)

func TestRunBatchAppliesQueuedTransactionIntoOverlay(t *testing.T) {
	f := newPoolFixture(t)
	tx := &types.L2Transaction{FromID: f.senderID, ToID: f.targetID, Nonce: 0, ChainID: 1, CyclesLimit: 10}
	_, err := f.pool.SubmitTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, 1, f.pool.txs.len())

	f.pool.runBatch()
	require.Equal(t, 0, f.pool.txs.len())
	require.Len(t, f.pool.mb.Txs, 1)
	require.Equal(t, tx.Hash(), f.pool.mb.Txs[0].Hash())
}

func TestRunBatchDropsWithdrawalThatOverdraftsOnReapply(t *testing.T) {
	f := newPoolFixture(t)

	w1 := &types.WithdrawalRequest{AccountScriptHash: f.senderHash, Capacity: 60000, Nonce: 0}
	_, err := f.pool.SubmitWithdrawal(w1)
	require.NoError(t, err)
	w2 := &types.WithdrawalRequest{AccountScriptHash: f.senderHash, Capacity: 60000, Nonce: 1}
	_, err = f.pool.SubmitWithdrawal(w2)
	require.NoError(t, err)
	require.Equal(t, 2, f.pool.withdrawals.len())

	// Admission checked each withdrawal against the pool's pre-batch
	// balance view; the second cannot actually be afforded once the first
	// has debited the account during the batch, so it is dropped silently
	// rather than the batch failing outright.
	f.pool.runBatch()
	require.Equal(t, 0, f.pool.withdrawals.len())
	require.Len(t, f.pool.mb.Withdrawals, 1)
	require.Equal(t, w1.Hash(), f.pool.mb.Withdrawals[0].Hash())
}

func TestOutputMemBlockReturnsSnapshotWithoutMutatingPool(t *testing.T) {
	f := newPoolFixture(t)
	tx := &types.L2Transaction{FromID: f.senderID, ToID: f.targetID, Nonce: 0, ChainID: 1, CyclesLimit: 10}
	_, err := f.pool.SubmitTransaction(tx)
	require.NoError(t, err)
	f.pool.runBatch()

	snap, post, err := f.pool.OutputMemBlock(OutputParam{ResolvePendingCreate: false})
	require.NoError(t, err)
	require.Len(t, snap.Txs, 1)
	require.Equal(t, f.pool.mb.PostAccount, post)

	// Mutating the returned snapshot's slices must not affect the pool's
	// own mem-block state.
	snap.Txs[0] = nil
	require.NotNil(t, f.pool.mb.Txs[0])
}

func TestOutputMemBlockResolvesPendingCreateSenders(t *testing.T) {
	f := newPoolFixture(t)
	f.pool.creator = &AccountCreator{AccountID: f.senderID}

	tx := &types.L2Transaction{FromID: 0, ToID: f.targetID, ChainID: 1, CyclesLimit: 10, Args: make([]byte, 20)}
	_, err := f.pool.SubmitTransaction(tx)
	require.NoError(t, err)
	require.Len(t, f.pool.pendingCreate, 1)

	snap, post, err := f.pool.OutputMemBlock(OutputParam{ResolvePendingCreate: true})
	require.NoError(t, err)
	// The synthesized batch-create transaction is prepended ahead of the
	// rewritten pending-create transaction.
	require.Len(t, snap.Txs, 2)
	require.NotEqual(t, uint32(0), snap.Txs[1].FromID)
	require.NotEqual(t, types.AccountMerkleState{}, post)

	// The pool's own pending-create queue and overlay are untouched.
	require.Len(t, f.pool.pendingCreate, 1)
}
