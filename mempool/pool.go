/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package mempool

import (
	"sync"

	"github.com/godwokenrises/godwoken-sub004/generator"
	"github.com/godwokenrises/godwoken-sub004/rollup/log"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/overlay"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// AccountCreator signs the synthesized batch-create-accounts transaction
// the pool prepends ahead of any from_id==0 transactions when it resolves
// a mem-block snapshot (spec §4.3 "Pending-create sender"). Defined
// locally, the way chain.Generator is defined in package chain, so this
// package does not depend on whichever concrete wallet signs for it.
type AccountCreator struct {
	AccountID uint32
	Sign      func(messageHash types.Hash) ([]byte, error)
}

// DepositProvider supplies the candidate deposits the pool re-emits on
// every Reset (spec §4.3 "Reset... re-emits any deposits passed by the
// deposit provider"), decoupling the pool from however deposits are
// actually discovered (the sync driver, in this node).
type DepositProvider interface {
	PendingDeposits() []*types.DepositRequest
}

// pendingCreateItem is a from_id==0 transaction waiting for its account to
// be synthesised; it is kept apart from txQueue because it cannot be
// nonce/priority-ordered against a resolved sender until it has one (spec
// §4.3.5).
type pendingCreateItem struct {
	tx  *types.L2Transaction
	seq uint64
}

// Pool is the mempool of spec §4.3: one mutex guarding an overlay state, a
// priority-ordered set of admitted items, and a background batcher that
// folds them into that state (spec §5 "Mempool — protected by one mutex").
type Pool struct {
	mu sync.Mutex

	st       *store.Store
	gen      *generator.Generator
	backends generator.BackendTable
	locks    *generator.AccountLockRegistry
	params   *RollupParams
	creator  *AccountCreator
	provider DepositProvider

	batchSize int

	ov           *overlay.Store
	accountRoot  types.Hash
	accountCount uint32
	blockInfo    types.BlockInfo

	mb            *types.MemBlock
	txs           txQueue
	withdrawals   withdrawalQueue
	depositQ      depositQueue
	pendingCreate []*pendingCreateItem
	admittedNonce map[types.Hash]uint32
	seq           uint64

	slots  chan struct{}
	wakeCh chan struct{}
	stopCh chan struct{}
}

// New builds a Pool seeded from the store's current tip. Callers must call
// Start to run the batcher goroutine.
func New(st *store.Store, gen *generator.Generator, backends generator.BackendTable, locks *generator.AccountLockRegistry, params *RollupParams, creator *AccountCreator, provider DepositProvider, batchSize, maxQueueSize int) (*Pool, error) {
	p := &Pool{
		st:            st,
		gen:           gen,
		backends:      backends,
		locks:         locks,
		params:        params,
		creator:       creator,
		provider:      provider,
		batchSize:     batchSize,
		admittedNonce: make(map[types.Hash]uint32),
		slots:         make(chan struct{}, maxQueueSize),
		wakeCh:        make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}
	tip, err := st.GetTipGlobalState()
	if err != nil {
		return nil, err
	}
	p.resetLocked(tip, types.BlockInfo{})
	return p, nil
}

func (p *Pool) Start() {
	go p.run()
}

func (p *Pool) Stop() {
	close(p.stopCh)
}

func (p *Pool) run() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.wakeCh:
			p.runBatch()
		}
	}
}

func (p *Pool) notify() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *Pool) takeSlot() error {
	select {
	case p.slots <- struct{}{}:
		return nil
	default:
		return rerrors.New(rerrors.Unknown, "mempool: queue exceeded max limit")
	}
}

func (p *Pool) releaseSlot() { <-p.slots }

// SetBlockInfo updates the producer/number/timestamp the next batch of
// transactions executes against; the block producer calls this before
// resuming admission for the block it is about to assemble.
func (p *Pool) SetBlockInfo(info types.BlockInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blockInfo = info
}

// Reset recomputes pool validity under a new tip (spec §4.3 "Reset"):
// drops every queued item, opens a fresh overlay on the new tip, and
// re-emits whatever the deposit provider currently has pending.
func (p *Pool) Reset(tip *types.GlobalState, info types.BlockInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked(tip, info)
}

func (p *Pool) resetLocked(tip *types.GlobalState, info types.BlockInfo) {
	p.ov = overlay.New(p.st.DB())
	if tip != nil {
		p.accountRoot = tip.Account.Root
		p.accountCount = tip.Account.AccountCount
	} else {
		p.accountRoot = types.ZeroHash
		p.accountCount = 0
	}
	p.blockInfo = info
	p.mb = types.NewMemBlock(info.ProducerAddress.RegistryID, info, types.AccountMerkleState{Root: p.accountRoot, AccountCount: p.accountCount})
	p.txs = txQueue{}
	p.withdrawals = withdrawalQueue{}
	p.depositQ = depositQueue{}
	p.pendingCreate = nil
	p.admittedNonce = make(map[types.Hash]uint32)
	for len(p.slots) > 0 {
		<-p.slots
	}
	if p.provider != nil {
		for _, d := range p.provider.PendingDeposits() {
			if err := p.admitAndQueueDeposit(d); err != nil {
				log.Errorf("mempool: reset: dropping deposit: %v", err)
			}
		}
	}
}

func (p *Pool) nextNonce(tree *statetree.Tree, accountID uint32, key types.Hash) (uint32, error) {
	if n, ok := p.admittedNonce[key]; ok {
		return n, nil
	}
	return store.GetNonce(tree, accountID)
}

func (p *Pool) admitAndQueueDeposit(d *types.DepositRequest) error {
	if err := p.takeSlot(); err != nil {
		return err
	}
	if err := admitDeposit(p.ov, p.params, d); err != nil {
		p.releaseSlot()
		return err
	}
	p.depositQ.push(d)
	p.notify()
	return nil
}

// SubmitTransaction admits tx against the pool's overlay state and, on
// success, queues it in priority order (spec §4.3 "Admission for
// transactions").
func (p *Pool) SubmitTransaction(tx *types.L2Transaction) (hash types.Hash, err error) {
	if err = p.takeSlot(); err != nil {
		return types.ZeroHash, err
	}
	ok := false
	defer func() {
		if !ok {
			p.releaseSlot()
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()

	if tx.FromID == 0 {
		if err = admitPendingCreateTransaction(p.params, p.backends, tx); err != nil {
			return types.ZeroHash, err
		}
		p.seq++
		p.pendingCreate = append(p.pendingCreate, &pendingCreateItem{tx: tx, seq: p.seq})
		ok = true
		return tx.Hash(), nil
	}

	tree := statetree.Overlay(p.ov, statetree.AccountColumns, p.accountRoot)
	senderKey, gerr := store.GetScriptHash(tree, tx.FromID)
	if gerr != nil {
		return types.ZeroHash, gerr
	}
	senderScript, gerr := store.GetScript(p.ov, senderKey)
	if gerr != nil {
		return types.ZeroHash, gerr
	}
	targetKey, gerr := store.GetScriptHash(tree, tx.ToID)
	if gerr != nil {
		return types.ZeroHash, gerr
	}
	targetScript, gerr := store.GetScript(p.ov, targetKey)
	if gerr != nil {
		return types.ZeroHash, gerr
	}
	senderNonce, gerr := p.nextNonce(tree, tx.FromID, senderKey)
	if gerr != nil {
		return types.ZeroHash, gerr
	}
	balance, gerr := store.GetBalance(tree, tx.FromID, types.ZeroHash)
	if gerr != nil {
		return types.ZeroHash, gerr
	}
	msgHash := tx.MessageHash(p.params.RollupTypeHash)
	if err = admitTransaction(p.params, p.backends, p.locks, senderScript.CodeHash, senderNonce, tx.Nonce, balance, targetScript.CodeHash, tx, msgHash); err != nil {
		return types.ZeroHash, err
	}

	p.admittedNonce[senderKey] = tx.Nonce + 1
	p.seq++
	p.txs.insert(&txItem{tx: tx, seq: p.seq, senderID: senderKey})
	ok = true
	p.notify()
	return tx.Hash(), nil
}

// SubmitWithdrawal admits w against the pool's overlay state and, on
// success, queues it in priority order (spec §4.3 "Admission for
// withdrawals").
func (p *Pool) SubmitWithdrawal(w *types.WithdrawalRequest) (hash types.Hash, err error) {
	if err = p.takeSlot(); err != nil {
		return types.ZeroHash, err
	}
	ok := false
	defer func() {
		if !ok {
			p.releaseSlot()
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()

	tree := statetree.Overlay(p.ov, statetree.AccountColumns, p.accountRoot)
	accountID, found, gerr := store.GetAccountIDByScriptHash(p.ov, w.AccountScriptHash)
	if gerr != nil {
		return types.ZeroHash, gerr
	}
	if !found {
		return types.ZeroHash, rerrors.New(rerrors.Unknown, "mempool: withdrawal from unknown account")
	}
	script, gerr := store.GetScript(p.ov, w.AccountScriptHash)
	if gerr != nil {
		return types.ZeroHash, gerr
	}
	pendingNonce, gerr := p.nextNonce(tree, accountID, w.AccountScriptHash)
	if gerr != nil {
		return types.ZeroHash, gerr
	}
	balance, gerr := store.GetBalance(tree, accountID, types.ZeroHash)
	if gerr != nil {
		return types.ZeroHash, gerr
	}
	var sudtAmount types.Amount
	if !w.SudtScriptHash.IsZero() {
		sudtAmount, gerr = store.GetBalance(tree, accountID, w.SudtScriptHash)
		if gerr != nil {
			return types.ZeroHash, gerr
		}
		_ = sudtAmount
	}
	msgHash := w.MessageHash(p.params.RollupTypeHash)
	if err = admitWithdrawal(p.params, p.locks, script.CodeHash, pendingNonce, w.Nonce, balance, w.Amount, w, msgHash); err != nil {
		return types.ZeroHash, err
	}

	p.admittedNonce[w.AccountScriptHash] = w.Nonce + 1
	p.seq++
	p.withdrawals.insert(&withdrawalItem{w: w, seq: p.seq})
	ok = true
	p.notify()
	return w.Hash(), nil
}
