/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package statetree implements the read/write modes of spec §4.1 "State
// trees" over a single generic state tree: read-only live,
// attach-block(N) (writes update the SMT and record to history),
// detach-block(N) (writes update the SMT but do not record), read-only
// historic(N) (all reads go through the history index), and overlay
// (writes update the SMT in an in-memory layer, with no history).
package statetree

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store/history"
	"github.com/godwokenrises/godwoken-sub004/store/journal"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/smt"
	"github.com/godwokenrises/godwoken-sub004/types"
)

type Mode int

const (
	ModeLive Mode = iota
	ModeAttach
	ModeDetach
	ModeHistoric
	ModeOverlay
)

// ReadWriter is the capability an overlay-mode tree needs: the same shape
// store/overlay.Store exposes, so the mempool can speculate against an
// in-memory layer without a durable journal transaction.
type ReadWriter interface {
	smt.Reader
	smt.Writer
}

// Tree is the single generic state tree spec §4.1 calls for; its behavior
// is selected entirely by Mode, not by an open class hierarchy (spec §9
// "Dynamic dispatch" — model as a tagged variant).
type Tree struct {
	mode          Mode
	db            *kv.DB
	txn           *journal.Txn // non-nil only for Attach, so history.Record can journal
	writer        smt.Writer   // the Writer every write-capable mode stages through
	smt           *smt.Tree
	blockNumber   uint64
	recordHistory bool // only the account tree feeds the history index
}

// Columns selects which (leaf, branch) column pair a tree reads/writes —
// the account SMT and the block SMT share this same generic tree type over
// two different column pairs (spec §3 "Account merkle state" / "Block
// merkle state").
type Columns struct {
	Leaf   kv.Column
	Branch kv.Column
}

var AccountColumns = Columns{Leaf: kv.ColAccountSMTLeaf, Branch: kv.ColAccountSMTBranch}
var BlockColumns = Columns{Leaf: kv.ColBlockSMTLeaf, Branch: kv.ColBlockSMTBranch}

// RevertedColumns backs the reverted-block SMT (spec §3 "reverted-block
// merkle root"): keys are block hashes, value types.RevertedBlockFlag marks
// membership, zero (absence) marks a block that was never reverted.
var RevertedColumns = Columns{Leaf: kv.ColRevertedBlockHash, Branch: kv.ColRevertedBlockSMTBranch}

// Live opens a read-only tree over the current (durable) SMT root.
func Live(db *kv.DB, cols Columns, root types.Hash) *Tree {
	return &Tree{mode: ModeLive, db: db, smt: smt.Open(db, cols.Leaf, cols.Branch, root)}
}

// Attach opens a tree that updates the SMT and records history for block N.
func Attach(txn *journal.Txn, cols Columns, root types.Hash, blockNumber uint64) *Tree {
	return &Tree{
		mode:          ModeAttach,
		txn:           txn,
		writer:        txn,
		smt:           smt.Open(txn, cols.Leaf, cols.Branch, root),
		blockNumber:   blockNumber,
		recordHistory: cols.Leaf == kv.ColAccountSMTLeaf,
	}
}

// Detach opens a tree that updates the SMT without recording history, used
// to undo block N by replaying each touched key's value at N-1.
func Detach(txn *journal.Txn, cols Columns, root types.Hash, blockNumber uint64) *Tree {
	return &Tree{
		mode:   ModeDetach,
		writer: txn,
		smt:    smt.Open(txn, cols.Leaf, cols.Branch, root),
	}
}

// Overlay opens a tree over an in-memory read/write layer — no journal, no
// history — for the mempool's speculative per-item admission (spec §4.3
// "mem-overlay state").
func Overlay(rw ReadWriter, cols Columns, root types.Hash) *Tree {
	return &Tree{
		mode:   ModeOverlay,
		writer: rw,
		smt:    smt.Open(rw, cols.Leaf, cols.Branch, root),
	}
}

// Historic opens a read-only tree whose reads are all served through the
// history index as of blockNumber. The history index is only ever written
// from the account tree's attach path, so Historic always reads it (the
// column parameter of other modes does not apply here).
func Historic(db *kv.DB, blockNumber uint64) *Tree {
	return &Tree{mode: ModeHistoric, db: db, blockNumber: blockNumber}
}

func (t *Tree) Mode() Mode { return t.mode }

func (t *Tree) Get(key types.Hash) (types.Hash, error) {
	if t.mode == ModeHistoric {
		return history.GetHistoryState(t.db, t.blockNumber, key)
	}
	return t.smt.Get(key)
}

// Update writes value at key. Read-only modes reject it outright.
func (t *Tree) Update(key, value types.Hash) error {
	switch t.mode {
	case ModeLive, ModeHistoric:
		return rerrors.New(rerrors.Unknown, "statetree: write rejected in read-only mode")
	case ModeAttach:
		if _, err := t.smt.Update(t.writer, key, value); err != nil {
			return err
		}
		if t.recordHistory {
			history.Record(t.txn, t.blockNumber, key, value)
		}
		return nil
	case ModeDetach, ModeOverlay:
		_, err := t.smt.Update(t.writer, key, value)
		return err
	default:
		return rerrors.New(rerrors.Unknown, "statetree: unknown mode")
	}
}

func (t *Tree) Root() types.Hash { return t.smt.Root() }

func (t *Tree) MerkleProof(key types.Hash) (types.SMTBranchProof, error) {
	if t.mode == ModeHistoric {
		return types.SMTBranchProof{}, rerrors.New(rerrors.Unknown, "statetree: no live proof in historic mode")
	}
	return t.smt.MerkleProof(key)
}
