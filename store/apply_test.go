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
	"github.com/godwokenrises/godwoken-sub004/types"
)

func TestApplyDepositCreditsCapacityAndSudtAmount(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := journal.New(db)
	tree := newAttachTree(db, txn, 1)
	count := types.FirstUserAccountID

	d := &types.DepositRequest{
		Capacity:       500_00000000,
		SudtScriptHash: types.CkbHash([]byte("sudt")),
		Amount:         types.NewAmount(10_00000000),
		Script:         &types.Script{CodeHash: types.CkbHash([]byte("eoa")), HashType: types.HashTypeType},
	}
	require.NoError(t, ApplyDeposit(txn, txn, tree, &count, d))

	id, ok, err := GetAccountIDByScriptHash(txn, d.Script.Hash())
	require.NoError(t, err)
	require.True(t, ok)

	capBalance, err := GetBalance(tree, id, types.ZeroHash)
	require.NoError(t, err)
	require.Equal(t, 0, capBalance.Cmp(types.NewAmount(500_00000000)))

	sudtBalance, err := GetBalance(tree, id, d.SudtScriptHash)
	require.NoError(t, err)
	require.Equal(t, 0, sudtBalance.Cmp(types.NewAmount(10_00000000)))
}

// TestApplyDepositRejectsFakedCKB exercises spec §8 scenario 3: a deposit
// with sudt_script_hash == zero but a non-zero amount declares native-token
// value under the sUDT slot instead of the capacity slot and must be
// rejected rather than silently minting balance.
func TestApplyDepositRejectsFakedCKB(t *testing.T) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := journal.New(db)
	tree := newAttachTree(db, txn, 1)
	count := types.FirstUserAccountID

	d := &types.DepositRequest{
		Capacity:       500_00000000,
		SudtScriptHash: types.ZeroHash,
		Amount:         types.NewAmount(42_00000000),
		Script:         &types.Script{CodeHash: types.CkbHash([]byte("eoa")), HashType: types.HashTypeType},
	}
	err := ApplyDeposit(txn, txn, tree, &count, d)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.DepositFakedCKB))

	_, ok, lookupErr := GetAccountIDByScriptHash(txn, d.Script.Hash())
	require.NoError(t, lookupErr)
	require.False(t, ok, "state must be unchanged: no account created for a rejected deposit")
}
