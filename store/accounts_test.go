/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store/journal"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

func newAttachTree(db *kv.DB, txn *journal.Txn, blockNumber uint64) *statetree.Tree {
	return statetree.Attach(txn, statetree.AccountColumns, types.ZeroHash, blockNumber)
}

func TestCreateAccountAssignsSequentialIDs(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := journal.New(db)
	tree := newAttachTree(db, txn, 1)

	count := types.FirstUserAccountID
	script1 := &types.Script{CodeHash: types.CkbHash([]byte("a")), HashType: types.HashTypeType}
	id1, err := CreateAccount(txn, txn, tree, &count, script1)
	require.NoError(t, err)
	require.Equal(t, types.FirstUserAccountID, id1)

	script2 := &types.Script{CodeHash: types.CkbHash([]byte("b")), HashType: types.HashTypeType}
	id2, err := CreateAccount(txn, txn, tree, &count, script2)
	require.NoError(t, err)
	require.Equal(t, id1+1, id2)
	require.Equal(t, id2+1, count)
}

func TestCreateAccountRejectsDuplicateScriptHash(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := journal.New(db)
	tree := newAttachTree(db, txn, 1)

	count := types.FirstUserAccountID
	script := &types.Script{CodeHash: types.CkbHash([]byte("dup")), HashType: types.HashTypeType}
	_, err := CreateAccount(txn, txn, tree, &count, script)
	require.NoError(t, err)

	_, err = CreateAccount(txn, txn, tree, &count, script)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.DuplicatedScriptHash))
}

func TestSetGetNonceAndBalance(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := journal.New(db)
	tree := newAttachTree(db, txn, 1)

	require.NoError(t, SetNonce(tree, 2, 7))
	n, err := GetNonce(tree, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(7), n)

	amt := types.NewAmount(500)
	require.NoError(t, SetBalance(tree, 2, types.ZeroHash, amt))
	got, err := GetBalance(tree, 2, types.ZeroHash)
	require.NoError(t, err)
	require.Equal(t, 0, got.Cmp(amt))
}

func TestRegisterScriptIsWriteOnce(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := journal.New(db)

	script := &types.Script{CodeHash: types.CkbHash([]byte("s")), HashType: types.HashTypeData, Args: []byte("v1")}
	require.NoError(t, RegisterScript(txn, txn, script))

	// Registering a second, different script under the same already-used
	// hash key is impossible by construction (hash covers Args), so we
	// instead verify the no-op path: re-registering the identical script
	// does not error and the stored bytes are unchanged.
	require.NoError(t, RegisterScript(txn, txn, script))

	got, err := GetScript(txn, script.Hash())
	require.NoError(t, err)
	require.Equal(t, script.Args, got.Args)
}

func TestBindRegistryAddressCollisionMustMatch(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := journal.New(db)

	addr := types.RegistryAddress{RegistryID: types.RegistryIDEth, Address: [20]byte{1}}
	h1 := types.CkbHash([]byte("script-1"))
	require.NoError(t, BindRegistryAddress(txn, txn, addr, h1))

	// Same binding, same hash: no-op.
	require.NoError(t, BindRegistryAddress(txn, txn, addr, h1))

	// Same binding, different hash: rejected.
	h2 := types.CkbHash([]byte("script-2"))
	err := BindRegistryAddress(txn, txn, addr, h2)
	require.Error(t, err)

	resolved, ok, err := ResolveRegistryAddress(txn, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, h1, resolved)
}

func TestRegisterDataIsContentAddressedAndWriteOnce(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := journal.New(db)

	h1 := RegisterData(txn, txn, []byte("hello"))
	h2 := RegisterData(txn, txn, []byte("hello"))
	require.Equal(t, h1, h2)

	got, err := GetData(txn, h1)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}
