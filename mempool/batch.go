/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package mempool

import (
	"github.com/godwokenrises/godwoken-sub004/rollup/log"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/rollup/metrics"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// runBatch folds queued deposits, then withdrawals, then priority-ordered
// transactions into the pool's overlay, up to batchSize items (spec §5
// "the batcher drains the mem-pool's queues into the mem-overlay"). Each
// item is tried against a clone of the current overlay; only on success is
// the clone adopted, which is this node's save-point/rollback equivalent
// (spec §4.3 "items that fail verification leave no trace").
func (p *Pool) runBatch() {
	p.mu.Lock()
	defer p.mu.Unlock()

	applied := 0
	for applied < p.batchSize && len(p.depositQ.items) > 0 {
		d := p.depositQ.items[0]
		if p.tryApplyDeposit(d) {
			metrics.Default.IncCounter("mempool_batch_applied_total", map[string]string{"kind": "deposit"})
		} else {
			log.Errorf("mempool: dropping deposit that failed to re-apply")
			metrics.Default.IncCounter("mempool_batch_dropped_total", map[string]string{"kind": "deposit"})
		}
		p.depositQ.items = p.depositQ.items[1:]
		p.releaseSlot()
		applied++
	}

	for applied < p.batchSize && p.withdrawals.len() > 0 {
		it := p.withdrawals.items[0]
		if p.tryApplyWithdrawal(it.w) {
			metrics.Default.IncCounter("mempool_batch_applied_total", map[string]string{"kind": "withdrawal"})
		} else {
			log.Errorf("mempool: dropping withdrawal %s that failed to re-apply", it.w.Hash())
			metrics.Default.IncCounter("mempool_batch_dropped_total", map[string]string{"kind": "withdrawal"})
		}
		p.withdrawals.items = p.withdrawals.items[1:]
		p.releaseSlot()
		applied++
	}

	for applied < p.batchSize && p.txs.len() > 0 {
		it := p.txs.items[0]
		if p.tryApplyTransaction(it.tx) {
			metrics.Default.IncCounter("mempool_batch_applied_total", map[string]string{"kind": "tx"})
		} else {
			log.Errorf("mempool: dropping transaction %s that failed to re-apply", it.tx.Hash())
			metrics.Default.IncCounter("mempool_batch_dropped_total", map[string]string{"kind": "tx"})
		}
		p.txs.items = p.txs.items[1:]
		p.releaseSlot()
		applied++
	}
	metrics.Default.SetGauge("mempool_pending_deposits", float64(len(p.depositQ.items)), nil)
	metrics.Default.SetGauge("mempool_pending_withdrawals", float64(p.withdrawals.len()), nil)
	metrics.Default.SetGauge("mempool_pending_txs", float64(p.txs.len()), nil)
}

func (p *Pool) tryApplyDeposit(d *types.DepositRequest) bool {
	candidate := p.ov.Clone()
	tree := statetree.Overlay(candidate, statetree.AccountColumns, p.accountRoot)
	count := p.accountCount
	if err := store.ApplyDeposit(candidate, candidate, tree, &count, d); err != nil {
		return false
	}
	p.ov = candidate
	p.accountRoot = tree.Root()
	p.accountCount = count
	p.mb.Deposits = append(p.mb.Deposits, d)
	p.mb.StateCheckpoints = append(p.mb.StateCheckpoints, types.Checkpoint(p.accountRoot, p.accountCount))
	p.mb.PostAccount = types.AccountMerkleState{Root: p.accountRoot, AccountCount: p.accountCount}
	return true
}

func (p *Pool) tryApplyWithdrawal(w *types.WithdrawalRequest) bool {
	candidate := p.ov.Clone()
	tree := statetree.Overlay(candidate, statetree.AccountColumns, p.accountRoot)
	if _, err := store.ApplyWithdrawal(tree, candidate, w); err != nil {
		return false
	}
	p.ov = candidate
	p.accountRoot = tree.Root()
	p.mb.Withdrawals = append(p.mb.Withdrawals, w)
	p.mb.StateCheckpoints = append(p.mb.StateCheckpoints, types.Checkpoint(p.accountRoot, p.accountCount))
	p.mb.PostAccount = types.AccountMerkleState{Root: p.accountRoot, AccountCount: p.accountCount}
	return true
}

func (p *Pool) tryApplyTransaction(tx *types.L2Transaction) bool {
	candidate := p.ov.Clone()
	tree := statetree.Overlay(candidate, statetree.AccountColumns, p.accountRoot)
	count := p.accountCount
	rr, err := p.gen.ExecuteTransaction(tree, candidate, &count, p.blockInfo, tx, tx.CyclesLimit)
	if err != nil {
		return false
	}
	if rr.ExitCode != types.ExitOK {
		log.Infof("mempool: transaction %s reverted (exit %d), dropping", tx.Hash(), rr.ExitCode)
		return false
	}
	if err := store.ApplyRunResult(candidate, candidate, tree, &count, rr); err != nil {
		return false
	}
	p.ov = candidate
	p.accountRoot = tree.Root()
	p.accountCount = count
	p.mb.Txs = append(p.mb.Txs, tx)
	p.mb.StateCheckpoints = append(p.mb.StateCheckpoints, types.Checkpoint(p.accountRoot, p.accountCount))
	p.mb.PostAccount = types.AccountMerkleState{Root: p.accountRoot, AccountCount: p.accountCount}
	p.mb.MarkTouched(keysOf(rr.WriteSet)...)
	return true
}

func keysOf(m map[types.Hash]types.Hash) []types.Hash {
	keys := make([]types.Hash, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// OutputParam controls how OutputMemBlock resolves the snapshot it
// returns (spec §4.3 "output_mem_block"). ResolvePendingCreate is false
// for read-only callers, which want the mem-block exactly as accumulated
// so far, and true for the block
// producer, which needs pending-create senders synthesised into real
// account ids before it can submit the block.
type OutputParam struct {
	ResolvePendingCreate bool
}

// OutputMemBlock returns a snapshot of the pool's accumulated mem-block and
// its resulting account merkle state without mutating the pool (spec §4.3
// "does not mutate the mem-pool"). When resolving pending-create senders it
// works against a throwaway clone of the pool's overlay so the pool's own
// generation pointer is left untouched; the real accounts get created for
// real only when the block this snapshot describes is later attached.
func (p *Pool) OutputMemBlock(param OutputParam) (*types.MemBlock, types.AccountMerkleState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := &types.MemBlock{
		ProducerID:               p.mb.ProducerID,
		Block:                    p.mb.Block,
		PrevAccount:              p.mb.PrevAccount,
		PostAccount:              p.mb.PostAccount,
		Deposits:                 append([]*types.DepositRequest(nil), p.mb.Deposits...),
		Withdrawals:              append([]*types.WithdrawalRequest(nil), p.mb.Withdrawals...),
		Txs:                      append([]*types.L2Transaction(nil), p.mb.Txs...),
		StateCheckpoints:         append([]types.Hash(nil), p.mb.StateCheckpoints...),
		TouchedKeys:              p.mb.TouchedKeys,
		FinalizedCustodianLedger: p.mb.FinalizedCustodianLedger,
	}

	if !param.ResolvePendingCreate || len(p.pendingCreate) == 0 {
		return out, out.PostAccount, nil
	}

	candidate := p.ov.Clone()
	tree := statetree.Overlay(candidate, statetree.AccountColumns, p.accountRoot)
	count := p.accountCount

	ids := make([]uint32, len(p.pendingCreate))
	for i, item := range p.pendingCreate {
		script, err := syntheticEOAScript(p.params, item.tx)
		if err != nil {
			return nil, types.AccountMerkleState{}, err
		}
		hash := script.Hash()
		id, ok, err := store.GetAccountIDByScriptHash(candidate, hash)
		if err != nil {
			return nil, types.AccountMerkleState{}, err
		}
		if !ok {
			id, err = store.CreateAccount(candidate, candidate, tree, &count, script)
			if err != nil {
				return nil, types.AccountMerkleState{}, err
			}
		}
		ids[i] = id
	}

	createTx := &types.L2Transaction{
		FromID:      p.creator.AccountID,
		ToID:        metaContractAccountID,
		Nonce:       0,
		CyclesLimit: batchCreateCyclesLimit,
		ChainID:     p.params.ChainID,
	}
	if p.creator.Sign != nil {
		msgHash := createTx.MessageHash(p.params.RollupTypeHash)
		sig, err := p.creator.Sign(msgHash)
		if err != nil {
			return nil, types.AccountMerkleState{}, err
		}
		createTx.Signature = sig
	}

	rewritten := make([]*types.L2Transaction, len(p.pendingCreate))
	for i, item := range p.pendingCreate {
		t := *item.tx
		t.FromID = ids[i]
		rewritten[i] = &t
	}

	out.Txs = append([]*types.L2Transaction{createTx}, append(rewritten, out.Txs...)...)
	out.PostAccount = types.AccountMerkleState{Root: tree.Root(), AccountCount: count}
	return out, out.PostAccount, nil
}

// metaContractAccountID is the well-known account id the meta contract
// (account creation, among other bookkeeping) is registered under (spec §3
// "Meta contract").
const metaContractAccountID = 0

// batchCreateCyclesLimit bounds the synthesised batch-create transaction;
// account creation is cheap and fixed-cost, so a generous constant budget
// is simpler than threading a configurable limit through for one call site.
const batchCreateCyclesLimit = 1_000_000

// syntheticEOAScript derives the account script a pending-create
// transaction's sender resolves to: Args carries the 20-byte address the
// sender authenticates as over the default allowed EOA lock (spec §4.3.5
// "from_id==0... a transaction whose sender does not exist yet"), and the
// script args follow the standard rollup_type_hash||address convention
// used throughout this node for EOA locks.
func syntheticEOAScript(params *RollupParams, tx *types.L2Transaction) (*types.Script, error) {
	if len(tx.Args) < 20 {
		return nil, rerrors.New(rerrors.Unknown, "mempool: pending-create transaction args must carry a 20-byte address")
	}
	addr := tx.Args[:20]
	args := make([]byte, 0, types.HashSize+20)
	args = append(args, params.RollupTypeHash[:]...)
	args = append(args, addr...)
	return &types.Script{
		CodeHash: params.DefaultEOACodeHash,
		HashType: types.HashTypeType,
		Args:     args,
	}, nil
}
