/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// DebugExecute runs tx against the account state as of blockNumber without
// persisting anything, backing the rpc package's ExecuteL2Transaction and
// ExecuteRawL2Transaction handlers (spec
// supplement: "dry-run a transaction against historic state"). It opens an
// attach-mode tree over the historic account root so backends see the same
// read/write surface as a real execution, then discards the transaction
// unconditionally.
func (g *Generator) DebugExecute(st *store.Store, blockNumber uint64, blockInfo types.BlockInfo, tx *types.L2Transaction, cyclesLimit uint64) (*types.RunResult, error) {
	gs, err := st.GetGlobalStateAt(blockNumber)
	if err != nil {
		return nil, err
	}
	txn := st.NewTxn()
	defer txn.Discard()

	tree := statetree.Attach(txn, statetree.AccountColumns, gs.Account.Root, blockNumber)
	count := gs.Account.AccountCount
	return g.ExecuteTransaction(tree, txn, &count, blockInfo, tx, cyclesLimit)
}
