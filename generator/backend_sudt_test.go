/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/journal"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

func newSudtFixture(t *testing.T) (*Context, *journal.Txn, *statetree.Tree, uint32, uint32) {
	t.Helper()
	db := kv.OpenInMemory()
	t.Cleanup(func() { db.Close() })
	txn := journal.New(db)
	tree := statetree.Attach(txn, statetree.AccountColumns, types.ZeroHash, 1)
	count := types.FirstUserAccountID

	senderScript := &types.Script{CodeHash: types.CkbHash([]byte("eoa-sender")), HashType: types.HashTypeType}
	senderID, err := store.CreateAccount(txn, txn, tree, &count, senderScript)
	require.NoError(t, err)

	sudtScript := &types.Script{CodeHash: types.CkbHash([]byte("sudt")), HashType: types.HashTypeType}
	sudtID, err := store.CreateAccount(txn, txn, tree, &count, sudtScript)
	require.NoError(t, err)

	tx := &types.L2Transaction{FromID: senderID, ToID: sudtID, CyclesLimit: 1000}
	ctx := newContext(tree, txn, types.BlockInfo{}, tx, senderID, 1000)
	return ctx, txn, tree, senderID, sudtID
}

func TestSudtBackendQueryReturnsBalance(t *testing.T) {
	ctx, _, tree, senderID, sudtID := newSudtFixture(t)
	sudtHash, err := store.GetScriptHash(tree, sudtID)
	require.NoError(t, err)
	require.NoError(t, store.SetBalance(tree, senderID, sudtHash, types.NewAmount(42)))

	ctx.tx.Args = append([]byte{sudtOpQuery}, be32(senderID)...)
	require.NoError(t, SudtBackend{}.Execute(ctx, nil))

	var b [32]byte
	copy(b[:], ctx.returnData)
	require.Equal(t, 0, types.AmountFromBytes32(b).Cmp(types.NewAmount(42)))
}

func TestSudtBackendTransferMovesBalance(t *testing.T) {
	ctx, txn, tree, senderID, sudtID := newSudtFixture(t)
	sudtHash, err := store.GetScriptHash(tree, sudtID)
	require.NoError(t, err)
	require.NoError(t, store.SetBalance(tree, senderID, sudtHash, types.NewAmount(100)))

	count := types.FirstUserAccountID + 2
	recvScript := &types.Script{CodeHash: types.CkbHash([]byte("recv")), HashType: types.HashTypeType}
	recvID, err := store.CreateAccount(txn, txn, tree, &count, recvScript)
	require.NoError(t, err)

	amt := types.NewAmount(30).Bytes32()
	ctx.tx.Args = append(append([]byte{sudtOpTransfer}, be32(recvID)...), amt[:]...)
	require.NoError(t, SudtBackend{}.Execute(ctx, nil))

	rr := ctx.result(types.ExitOK)
	fromAfter := types.AmountFromBytes32([32]byte(rr.WriteSet[types.BalanceKey(senderID, sudtHash)]))
	toAfter := types.AmountFromBytes32([32]byte(rr.WriteSet[types.BalanceKey(recvID, sudtHash)]))
	require.Equal(t, 0, fromAfter.Cmp(types.NewAmount(70)))
	require.Equal(t, 0, toAfter.Cmp(types.NewAmount(30)))
	require.Len(t, rr.Logs, 1)
}

func TestSudtBackendTransferRejectsInsufficientBalance(t *testing.T) {
	ctx, txn, tree, senderID, sudtID := newSudtFixture(t)
	sudtHash, err := store.GetScriptHash(tree, sudtID)
	require.NoError(t, err)
	require.NoError(t, store.SetBalance(tree, senderID, sudtHash, types.NewAmount(5)))

	count := types.FirstUserAccountID + 2
	recvScript := &types.Script{CodeHash: types.CkbHash([]byte("recv")), HashType: types.HashTypeType}
	recvID, err := store.CreateAccount(txn, txn, tree, &count, recvScript)
	require.NoError(t, err)

	amt := types.NewAmount(30).Bytes32()
	ctx.tx.Args = append(append([]byte{sudtOpTransfer}, be32(recvID)...), amt[:]...)
	err = SudtBackend{}.Execute(ctx, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.InsufficientBalance))
}
