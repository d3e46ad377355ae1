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

func newTestContext(t *testing.T) (*Context, *journal.Txn, *statetree.Tree) {
	t.Helper()
	db := kv.OpenInMemory()
	t.Cleanup(func() { db.Close() })
	txn := journal.New(db)
	tree := statetree.Attach(txn, statetree.AccountColumns, types.ZeroHash, 1)
	tx := &types.L2Transaction{FromID: 2, ToID: 3, CyclesLimit: 1000}
	ctx := newContext(tree, txn, types.BlockInfo{}, tx, 2, 1000)
	return ctx, txn, tree
}

func TestContextStoreAndLoadSeesOwnWrites(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	key := types.CkbHash([]byte("k"))
	val := types.CkbHash([]byte("v"))
	require.NoError(t, ctx.Store(key, val))
	got, err := ctx.Load(key)
	require.NoError(t, err)
	require.Equal(t, val, got)
}

func TestContextChargeReturnsOutOfCyclesOnceLimitExceeded(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	ctx.cyclesLimit = 2
	require.NoError(t, ctx.charge(1))
	require.NoError(t, ctx.charge(1))
	err := ctx.charge(1)
	require.Error(t, err)
	require.Equal(t, errOutOfCycles, err)
}

func TestContextSetReturnDataRejectsOversizedPayload(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	require.Error(t, ctx.SetReturnData(make([]byte, MaxReturnData+1)))
	require.NoError(t, ctx.SetReturnData(make([]byte, MaxReturnData)))
}

func TestContextCreateAccountRejectsDuplicateScriptHash(t *testing.T) {
	ctx, txn, tree := newTestContext(t)
	count := types.FirstUserAccountID
	script := &types.Script{CodeHash: types.CkbHash([]byte("a")), HashType: types.HashTypeType}

	// Pre-create the account directly through the store helper that
	// CreateAccount's duplicate check actually reads (kv.ColScriptHashToAccountID),
	// then verify ctx.CreateAccount refuses the same script.
	_, err := store.CreateAccount(txn, txn, tree, &count, script)
	require.NoError(t, err)

	_, err = ctx.CreateAccount(&count, script)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.DuplicatedScriptHash))
}

func TestContextBindRegistryAddressRejectsCollidingHash(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	addr := types.RegistryAddress{RegistryID: types.RegistryIDEth, Address: [20]byte{9}}
	h1 := types.CkbHash([]byte("s1"))
	require.NoError(t, ctx.BindRegistryAddress(addr, h1))

	// Same binding, same hash: no-op.
	require.NoError(t, ctx.BindRegistryAddress(addr, h1))

	h2 := types.CkbHash([]byte("s2"))
	err := ctx.BindRegistryAddress(addr, h2)
	require.Error(t, err)

	resolved, ok, err := ctx.ResolveRegistryAddress(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, h1, resolved)
}

func TestContextResultCollectsBufferedEffects(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	key := types.CkbHash([]byte("k"))
	val := types.CkbHash([]byte("v"))
	require.NoError(t, ctx.Store(key, val))
	ctx.Log(2, types.LogUserEvent, []byte("hi"))
	require.NoError(t, ctx.SetReturnData([]byte("ret")))

	rr := ctx.result(types.ExitOK)
	require.Equal(t, val, rr.WriteSet[key])
	require.Len(t, rr.Logs, 1)
	require.Equal(t, []byte("ret"), rr.ReturnData)
	require.Equal(t, types.ExitOK, rr.ExitCode)
}
