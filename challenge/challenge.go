/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package challenge implements the halting state machine of spec §4.4:
// status gate, enter/cancel-challenge, multi-block revert and the finality
// check, driven the same way package chain drives attach/detach — a plain
// method set wrapped by an actor for serialized mutation (see actor.go).
package challenge

import (
	"encoding/binary"

	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/rollup/config"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/rollup/log"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/smt"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// TargetType discriminates what a challenge names within a block (spec §4.4
// "target_index must be in range for the declared target_type").
type TargetType byte

const (
	TargetTypeTransaction TargetType = 0
	TargetTypeWithdrawal  TargetType = 1
)

// Target names the disputed (block, index, type) (GLOSSARY "Challenge
// cell").
type Target struct {
	BlockHash   types.Hash
	BlockNumber uint64
	TargetIndex uint32
	TargetType  TargetType
}

// Cell mirrors a confirmed challenge cell observed on the base chain: the
// reward capacity it posts and the since-value it carries, both needed by
// CancelChallenge/Revert.
type Cell struct {
	Target         Target
	Challenger     types.RegistryAddress
	RewardCapacity uint64
	// SinceBlocks is the consumed challenge cell's since-value, assumed
	// already parsed into a relative block count by the time it reaches this
	// package (same convention chosen for deposit cancel-timeouts, see
	// DESIGN.md's Open Question on cancel-timeout units).
	SinceBlocks uint64
}

// MinChallengeMaturityBlocks is the spec's own example threshold (§4.4
// "Challenge maturity") used when a rollup config does not override it.
const MinChallengeMaturityBlocks uint64 = 10000

var challengeCellKey = []byte("challenge_cell")

// Protocol drives the status transitions and proof checks of spec §4.4
// against one store.Store, the same "owns the durable state, no graph of
// back-references" shape package chain uses (DESIGN NOTES §9 "Cyclic
// ownership").
type Protocol struct {
	st     *store.Store
	config *config.RollupConfig
}

func New(st *store.Store, cfg *config.RollupConfig) *Protocol {
	return &Protocol{st: st, config: cfg}
}

func encodeCell(c Cell) []byte {
	out := make([]byte, 0, 64+len(c.Challenger.Address))
	out = append(out, c.Target.BlockHash[:]...)
	out = appendU64(out, c.Target.BlockNumber)
	out = appendU32(out, c.Target.TargetIndex)
	out = append(out, byte(c.Target.TargetType))
	out = appendU32(out, c.Challenger.RegistryID)
	out = append(out, c.Challenger.Address[:]...)
	out = appendU64(out, c.RewardCapacity)
	out = appendU64(out, c.SinceBlocks)
	return out
}

func decodeCell(buf []byte) (Cell, error) {
	const want = types.HashSize + 8 + 4 + 1 + 4 + 20 + 8 + 8
	if len(buf) != want {
		return Cell{}, rerrors.New(rerrors.StorageCorruption, "challenge: malformed challenge cell record")
	}
	var c Cell
	off := 0
	c.Target.BlockHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	c.Target.BlockNumber = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	c.Target.TargetIndex = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	c.Target.TargetType = TargetType(buf[off])
	off++
	c.Challenger.RegistryID = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	copy(c.Challenger.Address[:], buf[off:off+20])
	off += 20
	c.RewardCapacity = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	c.SinceBlocks = binary.BigEndian.Uint64(buf[off : off+8])
	return c, nil
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendU64(b []byte, v uint64) []byte {
	return append(b, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// GetChallengeCell reports the outstanding challenge cell, if any.
func (p *Protocol) GetChallengeCell() (Cell, bool, error) {
	raw, err := p.st.DB().Get(kv.ColChallengeCell, challengeCellKey)
	if err == kv.ErrNotFound {
		return Cell{}, false, nil
	}
	if err != nil {
		return Cell{}, false, err
	}
	c, err := decodeCell(raw)
	return c, true, err
}

// EnterChallenge validates a challenge cell against the current tip (spec
// §4.4 "Enter challenge") and returns the new (Halting) global state. The
// caller is responsible for observing exactly one challenge cell created
// and none consumed on the base-chain transaction (spec step 4) — a pure
// base-chain-transaction-shape check this package has no view into.
func (p *Protocol) EnterChallenge(cell Cell, blockProof types.SMTBranchProof) (*types.GlobalState, error) {
	prev, err := p.st.GetTipGlobalState()
	if err != nil {
		return nil, err
	}
	if prev.Status != types.StatusRunning {
		return nil, rerrors.New(rerrors.InvalidStatus, "challenge: enter-challenge requires status Running")
	}

	header, err := p.st.GetBlockHeader(cell.Target.BlockHash)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.InvalidChallengeTarget, err, "challenge: unknown block %s", cell.Target.BlockHash)
	}
	if header.Number != cell.Target.BlockNumber {
		return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: block %s is number %d, not %d", cell.Target.BlockHash, header.Number, cell.Target.BlockNumber)
	}

	tp := types.BlockNumberTimepoint(header.Number)
	if tp.Before(prev.LastFinalized()) {
		return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: block %d is already finalized", header.Number)
	}

	ok, err := smt.Verify(prev.Block.Root, types.BlockNumberKey(header.Number), cell.Target.BlockHash, blockProof)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rerrors.New(rerrors.MerkleProof, "challenge: block proof failed for block %d", header.Number)
	}

	switch cell.Target.TargetType {
	case TargetTypeTransaction:
		if cell.Target.TargetIndex >= header.TxCount {
			return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: tx index %d out of range (count %d)", cell.Target.TargetIndex, header.TxCount)
		}
	case TargetTypeWithdrawal:
		if cell.Target.TargetIndex >= header.WithdrawalCount {
			return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: withdrawal index %d out of range (count %d)", cell.Target.TargetIndex, header.WithdrawalCount)
		}
	default:
		return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: unknown target type %d", cell.Target.TargetType)
	}

	next := prev.Clone()
	next.Status = types.StatusHalting

	txn := p.st.NewTxn()
	txn.Put(kv.ColChallengeCell, challengeCellKey, encodeCell(cell))
	p.st.SetTipGlobalState(txn, next)
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	log.Infof("challenge: entered challenge on block %d target %d/%d", header.Number, cell.Target.TargetIndex, cell.Target.TargetType)
	return next, nil
}

// CancelChallenge refunds the challenger and burns the configured share of
// the staked reward (spec §4.4 "Cancel challenge"). burnedCapacity is the
// net increase in outputs locked to the configured burn lock, observed by
// the caller from the base-chain transaction; this package only checks it
// meets the required floor.
func (p *Protocol) CancelChallenge(burnedCapacity uint64) (*types.GlobalState, error) {
	prev, err := p.st.GetTipGlobalState()
	if err != nil {
		return nil, err
	}
	if prev.Status != types.StatusHalting {
		return nil, rerrors.New(rerrors.InvalidStatus, "challenge: cancel-challenge requires status Halting")
	}
	cell, ok, err := p.GetChallengeCell()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: no outstanding challenge cell")
	}

	requiredBurn := cell.RewardCapacity * uint64(p.config.RewardBurnRate) / 100
	if burnedCapacity < requiredBurn {
		return nil, rerrors.New(rerrors.InvalidChallengeReward, "challenge: burned %d below required %d", burnedCapacity, requiredBurn)
	}

	next := prev.Clone()
	next.Status = types.StatusRunning

	txn := p.st.NewTxn()
	txn.Delete(kv.ColChallengeCell, challengeCellKey)
	p.st.SetTipGlobalState(txn, next)
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	log.Infof("challenge: cancelled, refunded %d burned %d", cell.RewardCapacity-requiredBurn, burnedCapacity)
	return next, nil
}

// RevertRange reverts the contiguous block sequence headers[0]..headers[n-1]
// (headers[n-1] must be the current tip) by driving c.Detach() once per
// block and folding each reverted hash into the reverted-block SMT (spec
// §4.4 "Revert").
func (p *Protocol) RevertRange(c *chain.Chain, headers []*types.RawHeader) (*types.GlobalState, error) {
	if len(headers) == 0 {
		return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: empty revert range")
	}
	prev, err := p.st.GetTipGlobalState()
	if err != nil {
		return nil, err
	}
	if prev.Status != types.StatusHalting {
		return nil, rerrors.New(rerrors.InvalidStatus, "challenge: revert requires status Halting")
	}
	tipWM, err := c.LastValid()
	if err != nil {
		return nil, err
	}
	last := headers[len(headers)-1]
	if last.Number != tipWM.Number || last.Hash() != tipWM.Hash {
		return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: revert range does not end at current tip")
	}
	for i := 1; i < len(headers); i++ {
		if headers[i].ParentHash != headers[i-1].Hash() || headers[i].Number != headers[i-1].Number+1 {
			return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: revert range is not contiguous")
		}
	}

	cell, ok, err := p.GetChallengeCell()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: no outstanding challenge cell")
	}
	maturity := p.config.ChallengeMaturityBlocks
	if maturity == 0 {
		maturity = MinChallengeMaturityBlocks
	}
	if cell.SinceBlocks <= maturity {
		return nil, rerrors.New(rerrors.InvalidChallengeTarget, "challenge: challenge not mature (%d <= %d)", cell.SinceBlocks, maturity)
	}

	first := headers[0]

	// Detach from the tip down to (and including) the first reverted block,
	// folding each hash into the reverted-block SMT as it goes.
	txn := p.st.NewTxn()
	revertedRoot := prev.RevertedBlockRoot
	revTree := statetree.Attach(txn, statetree.RevertedColumns, revertedRoot, 0)
	for i := len(headers) - 1; i >= 0; i-- {
		if err := c.Detach(); err != nil {
			txn.Discard()
			return nil, err
		}
		if err := revTree.Update(headers[i].Hash(), types.RevertedBlockFlag); err != nil {
			txn.Discard()
			return nil, err
		}
	}

	newTip, err := c.LastValid()
	if err != nil {
		txn.Discard()
		return nil, err
	}
	newTipGS, err := p.st.GetGlobalStateAt(newTip.Number)
	if err != nil {
		txn.Discard()
		return nil, err
	}
	if newTipGS.Account.Root != first.PrevAccount.Root || newTipGS.Account.AccountCount != first.PrevAccount.AccountCount {
		txn.Discard()
		return nil, rerrors.New(rerrors.StorageCorruption, "challenge: post-revert account state does not match block %d's prev-account", first.Number)
	}

	next := newTipGS.Clone()
	next.Status = types.StatusRunning
	next.RevertedBlockRoot = revTree.Root()
	var finalityWindow uint64 = p.config.Finality
	lastFinalizedNumber := int64(first.Number) - 1 - int64(finalityWindow)
	if lastFinalizedNumber < 0 {
		lastFinalizedNumber = 0
	}
	next.SetLastFinalized(types.BlockNumberTimepoint(uint64(lastFinalizedNumber)))

	txn.Delete(kv.ColChallengeCell, challengeCellKey)
	p.st.SetTipGlobalState(txn, next)
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	log.Infof("challenge: reverted blocks %d..%d, new tip %d", first.Number, last.Number, newTip.Number)
	return next, nil
}
