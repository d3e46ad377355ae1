/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/journal"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

func newRegistryFixture(t *testing.T) *Context {
	t.Helper()
	db := kv.OpenInMemory()
	t.Cleanup(func() { db.Close() })
	txn := journal.New(db)
	tree := statetree.Attach(txn, statetree.AccountColumns, types.ZeroHash, 1)
	count := types.FirstUserAccountID

	senderScript := &types.Script{CodeHash: types.CkbHash([]byte("eoa")), HashType: types.HashTypeType}
	senderID, err := store.CreateAccount(txn, txn, tree, &count, senderScript)
	require.NoError(t, err)

	tx := &types.L2Transaction{FromID: senderID, CyclesLimit: 1000}
	return newContext(tree, txn, types.BlockInfo{}, tx, senderID, 1000)
}

func TestRegistryBackendBindAndResolve(t *testing.T) {
	ctx := newRegistryFixture(t)
	senderHash, err := store.GetScriptHash(ctx.tree, ctx.SenderID())
	require.NoError(t, err)
	require.False(t, senderHash.IsZero())

	addrBytes := append(be32(types.RegistryIDEth), make([]byte, 20)...)
	ctx.tx.Args = append([]byte{registryOpBind}, addrBytes...)
	require.NoError(t, RegistryBackend{}.Execute(ctx, nil))

	ctx.tx.Args = append([]byte{registryOpResolve}, addrBytes...)
	require.NoError(t, RegistryBackend{}.Execute(ctx, nil))
	require.Equal(t, senderHash[:], ctx.returnData)
}

func TestRegistryBackendResolveUnboundReturnsEmpty(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	addrBytes := append(be32(types.RegistryIDEth), make([]byte, 20)...)
	ctx.tx.Args = append([]byte{registryOpResolve}, addrBytes...)
	require.NoError(t, RegistryBackend{}.Execute(ctx, nil))
	require.Nil(t, ctx.returnData)
}

func TestRegistryBackendRejectsTruncatedAddress(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	ctx.tx.Args = []byte{registryOpBind, 1, 2}
	err := RegistryBackend{}.Execute(ctx, nil)
	require.Error(t, err)
}
