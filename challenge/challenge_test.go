/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package challenge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/rollup/config"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

type noopGenerator struct{}

func (noopGenerator) ExecuteTransaction(tree *statetree.Tree, r store.Reader, count *uint32, blockInfo types.BlockInfo, tx *types.L2Transaction, cyclesLimit uint64) (*types.RunResult, error) {
	return nil, rerrors.New(rerrors.Unknown, "challenge: noopGenerator does not execute transactions")
}

func testConfig() *config.RollupConfig {
	return &config.RollupConfig{
		RewardBurnRate:          50,
		Finality:                100,
		ChallengeMaturityBlocks: 10,
	}
}

// attachOneBlock bootstraps a chain and attaches a single deposit-only block,
// returning the chain, the store, the protocol under test and the attached
// block's header and hash.
func attachOneBlock(t *testing.T) (*chain.Chain, *store.Store, *Protocol, *types.RawHeader, types.Hash) {
	t.Helper()
	st := store.OpenInMemory(1000)
	c := chain.New(st, noopGenerator{}, 1000)
	require.NoError(t, c.Bootstrap(&types.GlobalState{Version: types.VersionTimepoint}))

	deposit := &types.DepositRequest{
		Capacity: 500_00000000,
		Script:   &types.Script{CodeHash: types.CkbHash([]byte("eoa")), HashType: types.HashTypeType},
	}

	accTxn := st.NewTxn()
	tree := statetree.Attach(accTxn, statetree.AccountColumns, types.ZeroHash, 1)
	count := uint32(0)
	require.NoError(t, store.ApplyDeposit(accTxn, accTxn, tree, &count, deposit))
	prevCheckpoint := types.Checkpoint(tree.Root(), count)
	postAccount := types.AccountMerkleState{Root: tree.Root(), AccountCount: count}
	accTxn.Discard()

	header := types.RawHeader{ParentHash: types.ZeroHash, Number: 1}
	block := &types.Block{
		Header:             header,
		Deposits:           []*types.DepositRequest{deposit},
		SubmitTransactions: types.SubmitTransactions{PrevStateCheckpoint: prevCheckpoint},
	}
	blockHash := block.Hash()

	blockTxn := st.NewTxn()
	blockTree := statetree.Attach(blockTxn, statetree.BlockColumns, types.ZeroHash, 1)
	require.NoError(t, blockTree.Update(types.BlockNumberKey(1), blockHash))
	blockTxn.Discard()

	g1 := &types.GlobalState{
		Account: postAccount,
		Block:   types.BlockMerkleState{Root: blockTree.Root(), Count: 1},
		Version: types.VersionTimepoint,
	}
	require.NoError(t, c.Attach(block, g1))

	p := New(st, testConfig())
	block.Header.Number = 1
	return c, st, p, &block.Header, blockHash
}

func blockProofFor(t *testing.T, st *store.Store, number uint64) types.SMTBranchProof {
	t.Helper()
	tip, err := st.GetTipGlobalState()
	require.NoError(t, err)
	tree := statetree.Live(st.DB(), statetree.BlockColumns, tip.Block.Root)
	proof, err := tree.MerkleProof(types.BlockNumberKey(number))
	require.NoError(t, err)
	return proof
}

func TestEnterChallengeRejectsOutOfRangeTargetIndex(t *testing.T) {
	_, st, p, header, blockHash := attachOneBlock(t)
	proof := blockProofFor(t, st, 1)

	// The attached block declared TxCount 0, so target_index 0 names no
	// transaction.
	cell := Cell{
		Target: Target{BlockHash: blockHash, BlockNumber: header.Number, TargetIndex: 0, TargetType: TargetTypeTransaction},
	}
	_, err := p.EnterChallenge(cell, proof)
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.InvalidChallengeTarget))
}

func TestEnterChallengeRejectsWrongStatus(t *testing.T) {
	_, st, p, header, blockHash := attachOneBlock(t)
	proof := blockProofFor(t, st, 1)
	cell := Cell{Target: Target{BlockHash: blockHash, BlockNumber: header.Number, TargetType: TargetTypeTransaction}}

	// Force status to Halting out of band to exercise the gate.
	txn := st.NewTxn()
	tip, err := st.GetTipGlobalState()
	require.NoError(t, err)
	halting := tip.Clone()
	halting.Status = types.StatusHalting
	st.SetTipGlobalState(txn, halting)
	require.NoError(t, txn.Commit())

	_, err = p.EnterChallenge(cell, proof)
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.InvalidStatus))
}

func TestEnterChallengeRejectsUnknownBlock(t *testing.T) {
	_, st, p, _, _ := attachOneBlock(t)
	proof := blockProofFor(t, st, 1)
	cell := Cell{Target: Target{BlockHash: types.CkbHash([]byte("nonexistent")), BlockNumber: 1, TargetType: TargetTypeTransaction}}
	_, err := p.EnterChallenge(cell, proof)
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.InvalidChallengeTarget))
}

func TestEnterChallengeRejectsBadProof(t *testing.T) {
	_, _, p, header, blockHash := attachOneBlock(t)
	cell := Cell{Target: Target{BlockHash: blockHash, BlockNumber: header.Number, TargetType: TargetTypeTransaction}}
	_, err := p.EnterChallenge(cell, types.SMTBranchProof{Proof: []byte("garbage")})
	require.Error(t, err)
}

func TestCancelChallengeRequiresHaltingStatus(t *testing.T) {
	_, st, p, _, _ := attachOneBlock(t)
	_ = st
	_, err := p.CancelChallenge(1000)
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.InvalidStatus))
}

func TestCancelChallengeRejectsInsufficientBurn(t *testing.T) {
	_, st, p, _, _ := attachOneBlock(t)
	cell := Cell{RewardCapacity: 1000}
	txn := st.NewTxn()
	tip, err := st.GetTipGlobalState()
	require.NoError(t, err)
	halting := tip.Clone()
	halting.Status = types.StatusHalting
	st.SetTipGlobalState(txn, halting)
	txn.Put(kv.ColChallengeCell, challengeCellKey, encodeCell(cell))
	require.NoError(t, txn.Commit())

	_, err = p.CancelChallenge(100) // required burn is 50% of 1000 = 500
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.InvalidChallengeReward))
}

func TestCancelChallengeAcceptsSufficientBurnAndResumesRunning(t *testing.T) {
	_, st, p, _, _ := attachOneBlock(t)
	cell := Cell{RewardCapacity: 1000}
	txn := st.NewTxn()
	tip, err := st.GetTipGlobalState()
	require.NoError(t, err)
	halting := tip.Clone()
	halting.Status = types.StatusHalting
	st.SetTipGlobalState(txn, halting)
	txn.Put(kv.ColChallengeCell, challengeCellKey, encodeCell(cell))
	require.NoError(t, txn.Commit())

	next, err := p.CancelChallenge(500)
	require.NoError(t, err)
	require.Equal(t, types.StatusRunning, next.Status)

	_, ok, err := p.GetChallengeCell()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEncodeDecodeCellRoundTrip(t *testing.T) {
	cell := Cell{
		Target:         Target{BlockHash: types.CkbHash([]byte("b")), BlockNumber: 7, TargetIndex: 2, TargetType: TargetTypeWithdrawal},
		Challenger:     types.RegistryAddress{RegistryID: types.RegistryIDEth, Address: [20]byte{5}},
		RewardCapacity: 12345,
		SinceBlocks:    200,
	}
	decoded, err := decodeCell(encodeCell(cell))
	require.NoError(t, err)
	require.Equal(t, cell, decoded)
}
