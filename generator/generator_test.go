/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	"testing"

	"github.com/stretchr/testify/require"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/journal"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// alwaysOKBackend executes successfully without touching state, used to
// isolate ExecuteTransaction's own bookkeeping (nonce bump, fee settlement)
// from any particular backend's behavior.
type alwaysOKBackend struct{}

func (alwaysOKBackend) Execute(ctx *Context, count *uint32) error { return nil }

type failingBackend struct{ err error }

func (b failingBackend) Execute(ctx *Context, count *uint32) error { return b.err }

func newGeneratorFixture(t *testing.T) (*journal.Txn, *statetree.Tree, uint32, uint32) {
	t.Helper()
	db := kv.OpenInMemory()
	t.Cleanup(func() { db.Close() })
	txn := journal.New(db)
	tree := statetree.Attach(txn, statetree.AccountColumns, types.ZeroHash, 1)

	count := types.FirstUserAccountID
	senderScript := &types.Script{CodeHash: types.CkbHash([]byte("eoa")), HashType: types.HashTypeType}
	senderID, err := store.CreateAccount(txn, txn, tree, &count, senderScript)
	require.NoError(t, err)

	return txn, tree, senderID, count
}

func registerTarget(t *testing.T, txn *journal.Txn, tree *statetree.Tree, count *uint32, codeHash types.Hash) uint32 {
	t.Helper()
	targetScript := &types.Script{CodeHash: codeHash, HashType: types.HashTypeType}
	id, err := store.CreateAccount(txn, txn, tree, count, targetScript)
	require.NoError(t, err)
	return id
}

func TestExecuteTransactionRejectsPendingCreateSender(t *testing.T) {
	txn, tree, _, count := newGeneratorFixture(t)
	g := New(BackendTable{}, NewAccountLockRegistry())
	tx := &types.L2Transaction{FromID: 0, ToID: 2, Nonce: 0, CyclesLimit: 10}
	_, err := g.ExecuteTransaction(tree, txn, &count, types.BlockInfo{}, tx, 10)
	require.Error(t, err)
}

func TestExecuteTransactionRejectsNonceMismatch(t *testing.T) {
	txn, tree, senderID, count := newGeneratorFixture(t)
	codeHash := types.CkbHash([]byte("backend"))
	targetID := registerTarget(t, txn, tree, &count, codeHash)

	g := New(BackendTable{codeHash: alwaysOKBackend{}}, NewAccountLockRegistry())
	tx := &types.L2Transaction{FromID: senderID, ToID: targetID, Nonce: 5, CyclesLimit: 10}
	_, err := g.ExecuteTransaction(tree, txn, &count, types.BlockInfo{}, tx, 10)
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.InvalidNonce))
}

func TestExecuteTransactionSuccessBumpsNonce(t *testing.T) {
	txn, tree, senderID, count := newGeneratorFixture(t)
	codeHash := types.CkbHash([]byte("backend"))
	targetID := registerTarget(t, txn, tree, &count, codeHash)

	g := New(BackendTable{codeHash: alwaysOKBackend{}}, NewAccountLockRegistry())
	tx := &types.L2Transaction{FromID: senderID, ToID: targetID, Nonce: 0, CyclesLimit: 10}
	rr, err := g.ExecuteTransaction(tree, txn, &count, types.BlockInfo{}, tx, 10)
	require.NoError(t, err)
	require.Equal(t, types.ExitOK, rr.ExitCode)

	nonceKey := types.NonceKey(senderID)
	require.Contains(t, rr.WriteSet, nonceKey)
}

func TestExecuteTransactionFailureStillConsumesNonceButDropsOtherEffects(t *testing.T) {
	txn, tree, senderID, count := newGeneratorFixture(t)
	codeHash := types.CkbHash([]byte("backend"))
	targetID := registerTarget(t, txn, tree, &count, codeHash)

	backendErr := rerrors.New(rerrors.Unknown, "boom")
	g := New(BackendTable{codeHash: failingBackend{err: backendErr}}, NewAccountLockRegistry())
	tx := &types.L2Transaction{FromID: senderID, ToID: targetID, Nonce: 0, CyclesLimit: 10}
	rr, err := g.ExecuteTransaction(tree, txn, &count, types.BlockInfo{}, tx, 10)
	require.NoError(t, err) // execution failure is reported via ExitCode, not a Go error
	require.Equal(t, types.ExitExecutionFailure, rr.ExitCode)
	require.Len(t, rr.WriteSet, 1) // only the nonce bump survives
	require.Empty(t, rr.Logs)
}

func TestExecuteTransactionOutOfCyclesSetsExitCode(t *testing.T) {
	txn, tree, senderID, count := newGeneratorFixture(t)
	codeHash := types.CkbHash([]byte("backend"))
	targetID := registerTarget(t, txn, tree, &count, codeHash)

	g := New(BackendTable{codeHash: failingBackend{err: errOutOfCycles}}, NewAccountLockRegistry())
	tx := &types.L2Transaction{FromID: senderID, ToID: targetID, Nonce: 0, CyclesLimit: 10}
	rr, err := g.ExecuteTransaction(tree, txn, &count, types.BlockInfo{}, tx, 10)
	require.NoError(t, err)
	require.Equal(t, types.ExitOutOfCycles, rr.ExitCode)
}

func TestExecuteTransactionSettlesFeeToBoundProducer(t *testing.T) {
	txn, tree, senderID, count := newGeneratorFixture(t)
	codeHash := types.CkbHash([]byte("backend"))
	targetID := registerTarget(t, txn, tree, &count, codeHash)

	producerScript := &types.Script{CodeHash: types.CkbHash([]byte("producer")), HashType: types.HashTypeType}
	producerID, err := store.CreateAccount(txn, txn, tree, &count, producerScript)
	require.NoError(t, err)

	require.NoError(t, store.SetBalance(tree, senderID, types.ZeroHash, types.NewAmount(100)))

	producerAddr := types.RegistryAddress{RegistryID: types.RegistryIDEth, Address: [20]byte{7}}
	require.NoError(t, store.BindRegistryAddress(txn, txn, producerAddr, producerScript.Hash()))

	g := New(BackendTable{codeHash: alwaysOKBackend{}}, NewAccountLockRegistry())
	tx := &types.L2Transaction{FromID: senderID, ToID: targetID, Nonce: 0, CyclesLimit: 10, Fee: types.NewAmount(30)}
	blockInfo := types.BlockInfo{ProducerAddress: producerAddr}
	rr, err := g.ExecuteTransaction(tree, txn, &count, blockInfo, tx, 10)
	require.NoError(t, err)
	require.Equal(t, types.ExitOK, rr.ExitCode)

	senderAfter := types.AmountFromBytes32([32]byte(rr.WriteSet[types.BalanceKey(senderID, types.ZeroHash)]))
	require.Equal(t, 0, senderAfter.Cmp(types.NewAmount(70)))

	producerAfter := types.AmountFromBytes32([32]byte(rr.WriteSet[types.BalanceKey(producerID, types.ZeroHash)]))
	require.Equal(t, 0, producerAfter.Cmp(types.NewAmount(30)))
}

func TestExecuteTransactionFeeSettlementFailsOnInsufficientBalance(t *testing.T) {
	txn, tree, senderID, count := newGeneratorFixture(t)
	codeHash := types.CkbHash([]byte("backend"))
	targetID := registerTarget(t, txn, tree, &count, codeHash)

	producerScript := &types.Script{CodeHash: types.CkbHash([]byte("producer")), HashType: types.HashTypeType}
	_, err := store.CreateAccount(txn, txn, tree, &count, producerScript)
	require.NoError(t, err)
	producerAddr := types.RegistryAddress{RegistryID: types.RegistryIDEth, Address: [20]byte{7}}
	require.NoError(t, store.BindRegistryAddress(txn, txn, producerAddr, producerScript.Hash()))

	g := New(BackendTable{codeHash: alwaysOKBackend{}}, NewAccountLockRegistry())
	tx := &types.L2Transaction{FromID: senderID, ToID: targetID, Nonce: 0, CyclesLimit: 10, Fee: types.NewAmount(5)}
	blockInfo := types.BlockInfo{ProducerAddress: producerAddr}
	_, err = g.ExecuteTransaction(tree, txn, &count, blockInfo, tx, 10)
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.InsufficientBalance))
}
