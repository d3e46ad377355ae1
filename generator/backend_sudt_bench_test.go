/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	"testing"

	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/journal"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// BenchmarkSudtTransfer documents the transfer hot path's allocation budget
// (supplemented from the original's benches/benchmarks/sudt.rs); it is not
// a new runtime feature, only a fixture to catch regressions in the
// store/overlay write-set path each transfer goes through.
func BenchmarkSudtTransfer(b *testing.B) {
	db := kv.OpenInMemory()
	defer db.Close()
	txn := journal.New(db)
	tree := statetree.Attach(txn, statetree.AccountColumns, types.ZeroHash, 1)
	count := types.FirstUserAccountID

	senderScript := &types.Script{CodeHash: types.CkbHash([]byte("eoa-sender")), HashType: types.HashTypeType}
	senderID, err := store.CreateAccount(txn, txn, tree, &count, senderScript)
	if err != nil {
		b.Fatal(err)
	}
	sudtScript := &types.Script{CodeHash: types.CkbHash([]byte("sudt")), HashType: types.HashTypeType}
	sudtID, err := store.CreateAccount(txn, txn, tree, &count, sudtScript)
	if err != nil {
		b.Fatal(err)
	}
	recvScript := &types.Script{CodeHash: types.CkbHash([]byte("recv")), HashType: types.HashTypeType}
	recvID, err := store.CreateAccount(txn, txn, tree, &count, recvScript)
	if err != nil {
		b.Fatal(err)
	}

	sudtHash, err := store.GetScriptHash(tree, sudtID)
	if err != nil {
		b.Fatal(err)
	}
	if err := store.SetBalance(tree, senderID, sudtHash, types.NewAmount(1<<62)); err != nil {
		b.Fatal(err)
	}

	tx := &types.L2Transaction{FromID: senderID, ToID: sudtID, CyclesLimit: 1000}
	amt := types.NewAmount(1).Bytes32()
	tx.Args = append(append([]byte{sudtOpTransfer}, be32(recvID)...), amt[:]...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx := newContext(tree, txn, types.BlockInfo{}, tx, senderID, 1000)
		if err := (SudtBackend{}).Execute(ctx, nil); err != nil {
			b.Fatal(err)
		}
	}
}
