/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package chain

import (
	stderrors "errors"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Bootstrap writes block 0's GlobalState the first time a store is opened,
// the same one-shot guard the teacher's ledgerstore.InitLedgerStoreWithGenesisBlock
// applies around hasAlreadyInitGenesisBlock/initGenesisBlock: a database that
// already has a tip is left untouched and Bootstrap reports that instead of
// silently overwriting it.
func (c *Chain) Bootstrap(g0 *types.GlobalState) error {
	_, err := c.st.GetTipGlobalState()
	if err == nil {
		return rerrors.New(rerrors.InvalidStatus, "chain: store already initialized, refusing to overwrite genesis")
	}
	if !stderrors.Is(err, kv.ErrNotFound) {
		return err
	}
	txn := c.st.NewTxn()
	c.st.SetTipGlobalState(txn, g0)
	c.st.PutGlobalStateAt(txn, 0, g0)
	return txn.Commit()
}
