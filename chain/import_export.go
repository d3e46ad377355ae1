/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package chain

import (
	stderrors "errors"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Export builds spec §6.6's ExportedBlock record for an already-attached
// block, reading the body back from the store (chain.Attach persists it
// alongside the header-only record — see store.Store.PutBlockBody).
// committedInfo is supplied by the caller: the chain itself never learns
// which base-chain transaction carried a block, only the sync driver does
// (spec §4.6).
func Export(st *store.Store, number uint64, committedInfo types.CommittedInfo) (*types.ExportedBlock, error) {
	hash, err := st.GetBlockHashByNumber(number)
	if err != nil {
		return nil, err
	}
	body, err := st.GetBlockBody(hash)
	if err != nil {
		return nil, err
	}
	post, err := st.GetGlobalStateAt(number)
	if err != nil {
		return nil, err
	}
	return &types.ExportedBlock{
		Block:           body,
		CommittedInfo:   committedInfo,
		PostGlobalState: post,
		DepositRequests: body.Deposits,
		Withdrawals:     body.Withdrawals,
	}, nil
}

// Import replays one exported block (spec §6.6): it verifies the block
// against its declared parent and attaches it; Attach itself recomputes and
// cross-checks the account root, account count and block root against
// e.PostGlobalState, so a successful return already proves the replay
// reached the same committed state. The reverted-block root and tip hash
// are carried unconditionally from e.PostGlobalState into the store only
// once Attach's own checks pass, so they match by construction — this
// function additionally rejects a record whose reverted-block root doesn't
// match the chain's current one, since Attach has no reason to touch that
// field on a normal (non-revert) block.
func Import(c *Chain, e *types.ExportedBlock) error {
	prev, err := c.st.GetTipGlobalState()
	if err != nil && !stderrors.Is(err, kv.ErrNotFound) {
		return err
	}
	if prev != nil && e.PostGlobalState.RevertedBlockRoot != prev.RevertedBlockRoot {
		return rerrors.New(rerrors.StorageCorruption, "chain: import block %d: reverted-block root changed on a non-revert import", e.Block.Header.Number)
	}
	if err := c.Attach(e.Block, e.PostGlobalState); err != nil {
		return err
	}
	tip, err := c.st.GetTipGlobalState()
	if err != nil {
		return err
	}
	if tip.Account.Root != e.PostGlobalState.Account.Root || tip.Block.Root != e.PostGlobalState.Block.Root || tip.TipBlockHash != e.Block.Hash() {
		return rerrors.New(rerrors.StorageCorruption, "chain: import block %d: replay diverged from exported state", e.Block.Header.Number)
	}
	return nil
}
