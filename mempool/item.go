/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package mempool

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/godwokenrises/godwoken-sub004/types"
)

// txItem wraps one admitted transaction with the bookkeeping its ordering
// comparator needs (spec §4.3 "Ordering"): the values a dimension of the
// comparator reads beyond what types.L2Transaction itself carries.
type txItem struct {
	tx       *types.L2Transaction
	seq      uint64 // insertion order, tie-break 2
	senderID types.Hash // sender's account script hash; from_id==0 transactions wait in Pool.pendingCreate instead
}

// withdrawalItem mirrors txItem for the withdrawal queue; withdrawals carry
// a fee too, so the same priority dimensions apply (spec §4.3 "Admission
// for withdrawals... fee sufficient per config").
type withdrawalItem struct {
	w   *types.WithdrawalRequest
	seq uint64
}

// less implements the five-dimension comparator of spec §4.3 "Ordering":
// fee/cycles_limit descending, insertion order ascending, cycles ascending,
// nonce ascending, byte-lexicographic. "cycles" here is the declared
// cycles_limit itself, used as a tiebreak independent of the ratio it also
// appears in (see DESIGN.md Open Questions).
func txLess(a, b *txItem) bool {
	if cmp := compareFeeRate(a.tx.Fee, a.tx.CyclesLimit, b.tx.Fee, b.tx.CyclesLimit); cmp != 0 {
		return cmp > 0 // descending: a wins (sorts first) when its rate is higher
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	if a.tx.CyclesLimit != b.tx.CyclesLimit {
		return a.tx.CyclesLimit < b.tx.CyclesLimit
	}
	if a.tx.Nonce != b.tx.Nonce {
		return a.tx.Nonce < b.tx.Nonce
	}
	return bytes.Compare(a.tx.Signature, b.tx.Signature) < 0
}

func withdrawalLess(a, b *withdrawalItem) bool {
	if cmp := compareFeeRate(a.w.Fee, 1, b.w.Fee, 1); cmp != 0 {
		return cmp > 0
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	if a.w.Nonce != b.w.Nonce {
		return a.w.Nonce < b.w.Nonce
	}
	return bytes.Compare(a.w.Signature, b.w.Signature) < 0
}

// compareFeeRate compares feeA/cyclesA against feeB/cyclesB without
// floating point, by cross-multiplying (spec §9 numeric semantics forbid
// anything but exact integer comparison on consensus-relevant values).
func compareFeeRate(feeA types.Amount, cyclesA uint64, feeB types.Amount, cyclesB uint64) int {
	lhs := new(big.Int).Mul(feeA.Big(), big.NewInt(0).SetUint64(cyclesB))
	rhs := new(big.Int).Mul(feeB.Big(), big.NewInt(0).SetUint64(cyclesA))
	return lhs.Cmp(rhs)
}

// txQueue keeps admitted transactions sorted by priority; re-sorted on
// every insertion rather than kept as a heap because the mempool also
// needs ordered iteration for output_mem_block and for per-sender nonce
// eviction, not just pop-the-best.
type txQueue struct {
	items []*txItem
}

func (q *txQueue) insert(it *txItem) {
	i := sort.Search(len(q.items), func(i int) bool { return !txLess(q.items[i], it) })
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = it
}

func (q *txQueue) removeBySeq(seq uint64) {
	for i, it := range q.items {
		if it.seq == seq {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

func (q *txQueue) len() int { return len(q.items) }

type withdrawalQueue struct {
	items []*withdrawalItem
}

func (q *withdrawalQueue) insert(it *withdrawalItem) {
	i := sort.Search(len(q.items), func(i int) bool { return !withdrawalLess(q.items[i], it) })
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = it
}

func (q *withdrawalQueue) removeBySeq(seq uint64) {
	for i, it := range q.items {
		if it.seq == seq {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

func (q *withdrawalQueue) len() int { return len(q.items) }

// depositQueue is plain FIFO: deposits carry no fee/cycles dimension, they
// are re-emitted by the deposit provider on every reset (spec §4.3
// "Reset").
type depositQueue struct {
	items []*types.DepositRequest
}

func (q *depositQueue) push(d *types.DepositRequest) { q.items = append(q.items, d) }

func (q *depositQueue) clear() { q.items = q.items[:0] }
