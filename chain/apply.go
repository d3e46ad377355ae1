/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package chain

import (
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// applyDeposit/applyWithdrawal/applyRunResult are thin aliases onto the
// store package's shared state-transition rules (store/apply.go), which
// the mempool's batcher applies against its own overlay the same way
// Attach applies them against the durable journal.
func applyDeposit(w store.Writer, r store.Reader, tree *statetree.Tree, count *uint32, d *types.DepositRequest) error {
	return store.ApplyDeposit(w, r, tree, count, d)
}

func applyWithdrawal(tree *statetree.Tree, r store.Reader, w *types.WithdrawalRequest) (uint32, error) {
	return store.ApplyWithdrawal(tree, r, w)
}

func applyRunResult(w store.Writer, r store.Reader, tree *statetree.Tree, count *uint32, rr *types.RunResult) error {
	return store.ApplyRunResult(w, r, tree, count, rr)
}
