/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/generator"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// alwaysOKBackend executes successfully without touching state, mirroring
// the generator package's own fixture backend of the same name.
type alwaysOKBackend struct{}

func (alwaysOKBackend) Execute(ctx *generator.Context, count *uint32) error { return nil }

type poolFixture struct {
	pool       *Pool
	st         *store.Store
	senderID   uint32
	targetID   uint32
	senderHash types.Hash
}

func newPoolFixture(t *testing.T) *poolFixture {
	t.Helper()
	st := store.OpenInMemory(1000)

	senderCodeHash := types.CkbHash([]byte("eoa"))
	targetCodeHash := types.CkbHash([]byte("backend"))

	txn := st.NewTxn()
	tree := statetree.Attach(txn, statetree.AccountColumns, types.ZeroHash, 1)
	count := types.FirstUserAccountID
	senderScript := &types.Script{CodeHash: senderCodeHash, HashType: types.HashTypeType}
	senderID, err := store.CreateAccount(txn, txn, tree, &count, senderScript)
	require.NoError(t, err)
	require.NoError(t, store.SetBalance(tree, senderID, types.ZeroHash, types.NewAmount(100000)))
	targetScript := &types.Script{CodeHash: targetCodeHash, HashType: types.HashTypeType}
	targetID, err := store.CreateAccount(txn, txn, tree, &count, targetScript)
	require.NoError(t, err)

	tip := &types.GlobalState{
		Account: types.AccountMerkleState{Root: tree.Root(), AccountCount: count},
		Version: types.VersionTimepoint,
	}
	st.SetTipGlobalState(txn, tip)
	require.NoError(t, txn.Commit())

	params := &RollupParams{
		RollupTypeHash:     types.CkbHash([]byte("rollup")),
		AllowedEOACodeHash: map[types.Hash]bool{senderCodeHash: true},
		DefaultEOACodeHash: senderCodeHash,
		ChainID:            1,
	}
	locks := generator.NewAccountLockRegistry()
	locks.Register(senderCodeHash, func(messageHash types.Hash, signature []byte) ([20]byte, error) {
		return [20]byte{}, nil
	})
	backends := generator.BackendTable{targetCodeHash: alwaysOKBackend{}}
	gen := generator.New(backends, locks)

	pool, err := New(st, gen, backends, locks, params, nil, nil, 10, 100)
	require.NoError(t, err)

	return &poolFixture{pool: pool, st: st, senderID: senderID, targetID: targetID, senderHash: senderScript.Hash()}
}

func TestSubmitTransactionAcceptsValidTransaction(t *testing.T) {
	f := newPoolFixture(t)
	tx := &types.L2Transaction{FromID: f.senderID, ToID: f.targetID, Nonce: 0, ChainID: 1, CyclesLimit: 10, Fee: types.NewAmount(1)}
	hash, err := f.pool.SubmitTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), hash)
	require.Equal(t, 1, f.pool.txs.len())
}

func TestSubmitTransactionRejectsWrongNonce(t *testing.T) {
	f := newPoolFixture(t)
	tx := &types.L2Transaction{FromID: f.senderID, ToID: f.targetID, Nonce: 5, ChainID: 1, CyclesLimit: 10}
	_, err := f.pool.SubmitTransaction(tx)
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.InvalidNonce))
}

func TestSubmitTransactionTracksAdmittedNonceAcrossSubmissions(t *testing.T) {
	f := newPoolFixture(t)
	tx0 := &types.L2Transaction{FromID: f.senderID, ToID: f.targetID, Nonce: 0, ChainID: 1, CyclesLimit: 10}
	_, err := f.pool.SubmitTransaction(tx0)
	require.NoError(t, err)

	tx1 := &types.L2Transaction{FromID: f.senderID, ToID: f.targetID, Nonce: 1, ChainID: 1, CyclesLimit: 10}
	_, err = f.pool.SubmitTransaction(tx1)
	require.NoError(t, err)
	require.Equal(t, 2, f.pool.txs.len())
}

func TestSubmitPendingCreateTransactionQueuedSeparately(t *testing.T) {
	f := newPoolFixture(t)
	tx := &types.L2Transaction{FromID: 0, ToID: f.targetID, ChainID: 1, CyclesLimit: 10}
	hash, err := f.pool.SubmitTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), hash)
	require.Len(t, f.pool.pendingCreate, 1)
	require.Equal(t, 0, f.pool.txs.len())
}

func TestSubmitPendingCreateTransactionRejectsZeroCyclesLimit(t *testing.T) {
	f := newPoolFixture(t)
	tx := &types.L2Transaction{FromID: 0, ToID: f.targetID, ChainID: 1, CyclesLimit: 0}
	_, err := f.pool.SubmitTransaction(tx)
	require.Error(t, err)
}

func TestSubmitWithdrawalAcceptsValidWithdrawal(t *testing.T) {
	f := newPoolFixture(t)
	w := &types.WithdrawalRequest{AccountScriptHash: f.senderHash, Capacity: 100, Nonce: 0}
	hash, err := f.pool.SubmitWithdrawal(w)
	require.NoError(t, err)
	require.Equal(t, w.Hash(), hash)
	require.Equal(t, 1, f.pool.withdrawals.len())
}

func TestSubmitWithdrawalRejectsUnknownAccount(t *testing.T) {
	f := newPoolFixture(t)
	w := &types.WithdrawalRequest{AccountScriptHash: types.CkbHash([]byte("nobody")), Capacity: 100, Nonce: 0}
	_, err := f.pool.SubmitWithdrawal(w)
	require.Error(t, err)
}

func TestResetClearsQueuesAndOverlay(t *testing.T) {
	f := newPoolFixture(t)
	tx := &types.L2Transaction{FromID: f.senderID, ToID: f.targetID, Nonce: 0, ChainID: 1, CyclesLimit: 10}
	_, err := f.pool.SubmitTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, 1, f.pool.txs.len())

	tip, err := f.st.GetTipGlobalState()
	require.NoError(t, err)
	f.pool.Reset(tip, types.BlockInfo{})
	require.Equal(t, 0, f.pool.txs.len())
	require.Equal(t, 0, f.pool.withdrawals.len())
	require.Len(t, f.pool.pendingCreate, 0)
}

func TestTakeSlotRejectsOnceQueueFull(t *testing.T) {
	st := store.OpenInMemory(1000)
	params := &RollupParams{ChainID: 1, AllowedEOACodeHash: map[types.Hash]bool{}}
	locks := generator.NewAccountLockRegistry()
	backends := generator.BackendTable{}
	gen := generator.New(backends, locks)
	pool, err := New(st, gen, backends, locks, params, nil, nil, 10, 1)
	require.NoError(t, err)

	require.NoError(t, pool.takeSlot())
	err = pool.takeSlot()
	require.Error(t, err)
}
