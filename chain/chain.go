/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package chain implements the block lifecycle state machine of spec §4.2:
// three persisted watermarks, an attach/detach pair driving the state
// trees, and L1-reorg recovery. It is the rough analogue of the teacher's
// core/chainmgr, generalized from a multi-shard ledger manager to a single
// rollup's local/submitted/confirmed pipeline.
package chain

import (
	"encoding/binary"
	"fmt"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/rollup/log"
	"github.com/godwokenrises/godwoken-sub004/rollup/metrics"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/history"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Generator is the capability chain.Attach needs from the generator host
// (spec §4.5 "execute_transaction"); kept minimal and defined here rather
// than imported from package generator so the two packages don't cycle.
type Generator interface {
	ExecuteTransaction(tree *statetree.Tree, r store.Reader, count *uint32, blockInfo types.BlockInfo, tx *types.L2Transaction, cyclesLimit uint64) (*types.RunResult, error)
}

// Watermark is a (number, hash) pair (spec §4.2 "Watermarks").
type Watermark struct {
	Number uint64
	Hash   types.Hash
}

var (
	metaKeyLastValid     = []byte("wm_last_valid")
	metaKeyLastSubmitted = []byte("wm_last_submitted")
	metaKeyLastConfirmed = []byte("wm_last_confirmed")
)

func encodeWatermark(w Watermark) []byte {
	b := make([]byte, 8+types.HashSize)
	binary.BigEndian.PutUint64(b, w.Number)
	copy(b[8:], w.Hash[:])
	return b
}

func decodeWatermark(b []byte) (Watermark, error) {
	if len(b) != 8+types.HashSize {
		return Watermark{}, rerrors.New(rerrors.StorageCorruption, "chain: malformed watermark record")
	}
	return Watermark{
		Number: binary.BigEndian.Uint64(b[:8]),
		Hash:   types.HashFromBytes(b[8:]),
	}, nil
}

// Publisher is the L2-P2P broadcast hook (spec §6.4's LocalBlock stream
// entry), satisfied structurally by *p2p.Broadcaster without chain
// importing package p2p.
type Publisher interface {
	PublishLocalBlock(b *types.Block)
}

// Chain owns the watermarks and drives attach/detach against the store.
type Chain struct {
	st       *store.Store
	gen      Generator
	finality uint64
	pub      Publisher
}

func New(st *store.Store, gen Generator, finality uint64) *Chain {
	return &Chain{st: st, gen: gen, finality: finality}
}

// SetPublisher wires an optional L2-P2P broadcaster; nil (the default)
// means Attach simply doesn't broadcast, which keeps package chain usable
// without ever constructing a p2p.Broadcaster (tests, the import tool).
func (c *Chain) SetPublisher(pub Publisher) { c.pub = pub }

func (c *Chain) watermark(key []byte) (Watermark, error) {
	raw, err := c.st.DB().Get(kv.ColMeta, key)
	if err == kv.ErrNotFound {
		return Watermark{}, nil
	}
	if err != nil {
		return Watermark{}, err
	}
	return decodeWatermark(raw)
}

func (c *Chain) LastValid() (Watermark, error)     { return c.watermark(metaKeyLastValid) }
func (c *Chain) LastSubmitted() (Watermark, error) { return c.watermark(metaKeyLastSubmitted) }
func (c *Chain) LastConfirmed() (Watermark, error) { return c.watermark(metaKeyLastConfirmed) }

func (c *Chain) setWatermark(w store.Writer, key []byte, wm Watermark) {
	w.Put(kv.ColMeta, key, encodeWatermark(wm))
}

// MarkSubmitted/MarkConfirmed advance the two watermarks that track the
// block's progress through the base chain, independent of Attach/Detach
// which only move last_valid.
func (c *Chain) MarkSubmitted(number uint64, hash types.Hash) error {
	txn := c.st.NewTxn()
	c.setWatermark(txn, metaKeyLastSubmitted, Watermark{Number: number, Hash: hash})
	return txn.Commit()
}

func (c *Chain) MarkConfirmed(number uint64, hash types.Hash) error {
	txn := c.st.NewTxn()
	c.setWatermark(txn, metaKeyLastConfirmed, Watermark{Number: number, Hash: hash})
	return txn.Commit()
}

// Attach applies block b against the current tip, verifying its claimed
// post global state g1 at every step (spec §4.2 "Attach"). Any mismatch
// aborts with a specific error kind and leaves the store unchanged.
func (c *Chain) Attach(b *types.Block, g1 *types.GlobalState) error {
	tip, err := c.LastValid()
	if err != nil {
		return err
	}
	number := b.Header.Number
	if number != 0 && b.Header.ParentHash != tip.Hash {
		return rerrors.New(rerrors.BadParent, "chain: block %d parent %s != tip %s", number, b.Header.ParentHash, tip.Hash)
	}

	txn := c.st.NewTxn()
	prev, err := c.st.GetTipGlobalState()
	if err != nil && err != kv.ErrNotFound {
		return err
	}
	var count uint32
	var accountRoot types.Hash
	if prev != nil {
		count = prev.Account.AccountCount
		accountRoot = prev.Account.Root
	}
	tree := statetree.Attach(txn, statetree.AccountColumns, accountRoot, number)

	for _, d := range b.Deposits {
		if err := applyDeposit(txn, txn, tree, &count, d); err != nil {
			txn.Discard()
			return err
		}
	}
	prevCheckpoint := types.Checkpoint(tree.Root(), count)
	if prevCheckpoint != b.SubmitTransactions.PrevStateCheckpoint {
		txn.Discard()
		return rerrors.New(rerrors.PrevStateCheckpointMismatch, "chain: block %d prev-state checkpoint mismatch", number)
	}

	if len(b.WithdrawalCheckpoints) != len(b.Withdrawals) {
		txn.Discard()
		return rerrors.New(rerrors.PrevStateCheckpointMismatch, "chain: block %d withdrawal checkpoint count mismatch", number)
	}
	for i, wdr := range b.Withdrawals {
		accountID, err := applyWithdrawal(tree, txn, wdr)
		if err != nil {
			txn.Discard()
			return err
		}
		cp := types.Checkpoint(tree.Root(), count)
		if cp != b.WithdrawalCheckpoints[i] {
			txn.Discard()
			return rerrors.New(rerrors.PrevStateCheckpointMismatch, "chain: block %d withdrawal %d checkpoint mismatch", number, i)
		}
		c.st.PutWithdrawalReceipt(txn, &types.WithdrawalReceipt{
			WithdrawalHash: wdr.Hash(), BlockNumber: number, AccountID: accountID, PostCheckpoint: cp,
		})
	}

	if int(b.Header.WithdrawalCount) != len(b.Withdrawals) {
		txn.Discard()
		return rerrors.New(rerrors.PrevStateCheckpointMismatch, "chain: block %d withdrawal count mismatch", number)
	}

	blockInfo := types.BlockInfo{ProducerAddress: b.Header.ProducerAddress, Number: number, Timestamp: b.Header.Timestamp}
	if int(b.Header.TxCount) != len(b.Transactions) {
		txn.Discard()
		return rerrors.New(rerrors.PrevStateCheckpointMismatch, "chain: block %d declared tx count mismatch", number)
	}
	if len(b.TxCheckpoints) != len(b.Transactions) {
		txn.Discard()
		return rerrors.New(rerrors.PrevStateCheckpointMismatch, "chain: block %d tx checkpoint count mismatch", number)
	}
	for i, tx := range b.Transactions {
		rr, err := c.gen.ExecuteTransaction(tree, txn, &count, blockInfo, tx, tx.CyclesLimit)
		if err != nil {
			txn.Discard()
			return err
		}
		if rr.ExitCode != types.ExitOK {
			txn.Discard()
			return rerrors.New(rerrors.Unknown, "chain: block %d tx %d exited %d", number, i, rr.ExitCode)
		}
		if err := applyRunResult(txn, txn, tree, &count, rr); err != nil {
			txn.Discard()
			return err
		}
		cp := types.Checkpoint(tree.Root(), count)
		if cp != b.TxCheckpoints[i] {
			txn.Discard()
			return rerrors.New(rerrors.PrevStateCheckpointMismatch, "chain: block %d tx %d checkpoint mismatch", number, i)
		}
		c.st.PutTxReceipt(txn, &types.TxReceipt{
			TxHash: tx.Hash(), BlockNumber: number, ReturnData: rr.ReturnData,
			Logs: rr.Logs, ExitCode: rr.ExitCode, PostCheckpoint: cp,
		})
	}

	if tree.Root() != g1.Account.Root || count != g1.Account.AccountCount {
		txn.Discard()
		return rerrors.New(rerrors.PostAccountRootMismatch, "chain: block %d post-account-root mismatch", number)
	}

	blockTree := statetree.Attach(txn, statetree.BlockColumns, prevBlockRoot(prev), number)
	blockHash := b.Hash()
	if err := blockTree.Update(types.BlockNumberKey(number), blockHash); err != nil {
		txn.Discard()
		return err
	}
	blockCount := uint64(0)
	if prev != nil {
		blockCount = prev.Block.Count
	}
	blockCount++
	if blockTree.Root() != g1.Block.Root || blockCount != g1.Block.Count {
		txn.Discard()
		return rerrors.New(rerrors.PostAccountRootMismatch, "chain: block %d post-block-root mismatch", number)
	}

	c.st.PutBlockHeader(txn, &b.Header)
	c.st.PutBlockBody(txn, b)
	c.st.PutBlockHashByNumber(txn, number, blockHash)
	c.st.SetTipGlobalState(txn, g1)
	c.st.PutGlobalStateAt(txn, number, g1)
	c.setWatermark(txn, metaKeyLastValid, Watermark{Number: number, Hash: blockHash})

	if err := txn.Commit(); err != nil {
		return err
	}
	log.Infof("chain: attached block %d (%s)", number, blockHash)
	metrics.Default.SetGauge("chain_last_valid_number", float64(number), nil)
	metrics.Default.IncCounter("chain_blocks_attached_total", nil)
	metrics.Default.ObserveHistogram("chain_block_tx_count", float64(len(b.Transactions)), nil)
	if err := c.st.PruneIfFinalized(number); err != nil {
		log.Errorf("chain: prune after block %d failed: %v", number, err)
	}
	if c.pub != nil {
		c.pub.PublishLocalBlock(b)
	}
	return nil
}

func prevBlockRoot(prev *types.GlobalState) types.Hash {
	if prev == nil {
		return types.ZeroHash
	}
	return prev.Block.Root
}

// Detach undoes the tip block: replay each key the block touched back to
// its value at N-1, then drop its hash from the block SMT. It does not
// touch the reverted-block root — that is §4.4's concern.
func (c *Chain) Detach() error {
	tip, err := c.LastValid()
	if err != nil {
		return err
	}
	if tip.Number == 0 {
		return rerrors.New(rerrors.InvalidStatus, "chain: cannot detach genesis")
	}
	number := tip.Number

	cur, err := c.st.GetGlobalStateAt(number)
	if err != nil {
		return err
	}
	prev, err := c.st.GetGlobalStateAt(number - 1)
	if err != nil {
		return err
	}

	txn := c.st.NewTxn()
	tree := statetree.Detach(txn, statetree.AccountColumns, cur.Account.Root, number)
	if err := replayKeysToPrevious(c.st.DB(), tree, number); err != nil {
		txn.Discard()
		return err
	}
	if tree.Root() != prev.Account.Root {
		txn.Discard()
		return rerrors.New(rerrors.StorageCorruption, "chain: block %d detach produced unexpected account root", number)
	}

	blockTree := statetree.Detach(txn, statetree.BlockColumns, cur.Block.Root, number)
	if err := blockTree.Update(types.BlockNumberKey(number), types.ZeroHash); err != nil {
		txn.Discard()
		return err
	}
	if blockTree.Root() != prev.Block.Root {
		txn.Discard()
		return rerrors.New(rerrors.StorageCorruption, "chain: block %d detach produced unexpected block root", number)
	}

	c.st.DeleteBlockHashByNumber(txn, number)
	c.st.SetTipGlobalState(txn, prev)
	c.setWatermark(txn, metaKeyLastValid, Watermark{Number: number - 1, Hash: prev.TipBlockHash})

	if err := txn.Commit(); err != nil {
		return err
	}
	log.Infof("chain: detached block %d", number)
	metrics.Default.SetGauge("chain_last_valid_number", float64(number-1), nil)
	metrics.Default.IncCounter("chain_blocks_detached_total", nil)
	return nil
}

// replayKeysToPrevious walks every key the history index recorded for
// block `number` and writes each back to its value as of number-1.
func replayKeysToPrevious(db *kv.DB, tree *statetree.Tree, number uint64) error {
	return history.ForEachKeyAtBlock(db, number, func(key types.Hash) error {
		priorValue, err := history.GetHistoryState(db, number-1, key)
		if err != nil {
			return err
		}
		return tree.Update(key, priorValue)
	})
}

// Reorg walks last_confirmed downward until a submission tx is still
// present on l1, detaching every block above that point (spec §4.2 "L1
// reorg recovery").
func (c *Chain) Reorg(stillPresent func(blockNumber uint64) (bool, error)) error {
	confirmed, err := c.LastConfirmed()
	if err != nil {
		return err
	}
	n := confirmed.Number
	for n > 0 {
		present, err := stillPresent(n)
		if err != nil {
			return err
		}
		if present {
			break
		}
		n--
	}
	valid, err := c.LastValid()
	if err != nil {
		return err
	}
	for valid.Number > n {
		if err := c.Detach(); err != nil {
			return fmt.Errorf("chain: reorg detach at %d: %w", valid.Number, err)
		}
		valid, err = c.LastValid()
		if err != nil {
			return err
		}
	}
	return nil
}
