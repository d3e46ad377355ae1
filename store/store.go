/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package store

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store/history"
	"github.com/godwokenrises/godwoken-sub004/store/journal"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// CurrentSchemaVersion gates every open (spec §6.1 "migration version gate"):
// an empty database is initialized at this version; an older database runs
// the registered fast migrations in order; a newer database refuses to
// start rather than risk silently misreading a format it predates.
const CurrentSchemaVersion byte = 1

var metaKeySchemaVersion = []byte("schema_version")
var metaKeyTipGlobalState = []byte("tip_global_state")

// migrations[i] upgrades a database from version i+1 to i+2 (there is no
// entry for version 1, the genesis schema). None are registered yet; the
// slice exists so a future format change has somewhere to live without
// touching Open's control flow.
var migrations = []func(*kv.DB) error{}

// Store is the facade spec §4.1 describes tying the columnar KV layer, the
// SMT-backed state trees and the history index into one handle that chain,
// mempool and generator share.
type Store struct {
	db       *kv.DB
	finality uint64
}

// Open opens (or initializes) the database at path and runs any migration
// the on-disk schema version requires before handing back a Store.
func Open(path string, finality uint64) (*Store, error) {
	db, err := kv.Open(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db, finality: finality}, nil
}

// OpenInMemory is the in-process variant used by tests, mirroring
// kv.OpenInMemory.
func OpenInMemory(finality uint64) *Store {
	db := kv.OpenInMemory()
	if err := migrate(db); err != nil {
		// an in-memory store failing its own genesis migration is a bug,
		// not a runtime condition callers can recover from.
		panic(err)
	}
	return &Store{db: db, finality: finality}
}

func migrate(db *kv.DB) error {
	raw, err := db.Get(kv.ColMeta, metaKeySchemaVersion)
	if err == kv.ErrNotFound {
		return db.Put(kv.ColMeta, metaKeySchemaVersion, []byte{CurrentSchemaVersion})
	}
	if err != nil {
		return err
	}
	if len(raw) != 1 {
		return rerrors.New(rerrors.StorageCorruption, "store: malformed schema version record")
	}
	version := raw[0]
	if version > CurrentSchemaVersion {
		return rerrors.New(rerrors.StorageCorruption, "store: database schema v%d is newer than this binary (v%d)", version, CurrentSchemaVersion)
	}
	for v := version; v < CurrentSchemaVersion; v++ {
		if int(v-1) >= len(migrations) {
			return rerrors.New(rerrors.StorageCorruption, "store: no migration registered from schema v%d", v)
		}
		if err := migrations[v-1](db); err != nil {
			return rerrors.Wrap(rerrors.StorageCorruption, err, "store: migration from v%d failed", v)
		}
	}
	if version != CurrentSchemaVersion {
		return db.Put(kv.ColMeta, metaKeySchemaVersion, []byte{CurrentSchemaVersion})
	}
	return nil
}

func (s *Store) DB() *kv.DB { return s.db }

func (s *Store) NewTxn() *journal.Txn { return journal.New(s.db) }

func (s *Store) Close() error { return s.db.Close() }

// GetTipGlobalState returns the durable tip (spec §3 "Global state"); an
// empty database (no block attached yet) reports kv.ErrNotFound so callers
// can distinguish "genesis not yet written" from a corrupt record.
func (s *Store) GetTipGlobalState() (*types.GlobalState, error) {
	raw, err := s.db.Get(kv.ColMeta, metaKeyTipGlobalState)
	if err != nil {
		return nil, err
	}
	return DecodeGlobalState(raw)
}

func (s *Store) SetTipGlobalState(w Writer, g *types.GlobalState) {
	w.Put(kv.ColMeta, metaKeyTipGlobalState, EncodeGlobalState(g))
}

// PutGlobalStateAt/GetGlobalStateAt persist one snapshot per block number,
// independent of the history index, so a detach or a historic RPC query can
// recover the exact committed GlobalState without replaying state-tree
// writes.
func (s *Store) PutGlobalStateAt(w Writer, blockNumber uint64, g *types.GlobalState) {
	w.Put(kv.ColBlockState, be64(blockNumber), EncodeGlobalState(g))
}

func (s *Store) GetGlobalStateAt(blockNumber uint64) (*types.GlobalState, error) {
	raw, err := s.db.Get(kv.ColBlockState, be64(blockNumber))
	if err != nil {
		return nil, err
	}
	return DecodeGlobalState(raw)
}

func (s *Store) PutBlockHeader(w Writer, header *types.RawHeader) {
	w.Put(kv.ColBlockHeaderByHash, header.Hash().Bytes(), EncodeRawHeader(header))
}

func (s *Store) GetBlockHeader(hash types.Hash) (*types.RawHeader, error) {
	raw, err := s.db.Get(kv.ColBlockHeaderByHash, hash[:])
	if err != nil {
		return nil, err
	}
	return DecodeRawHeader(raw)
}

func (s *Store) PutBlockHashByNumber(w Writer, number uint64, hash types.Hash) {
	w.Put(kv.ColBlockHashByNumber, be64(number), hash[:])
}

func (s *Store) GetBlockHashByNumber(number uint64) (types.Hash, error) {
	raw, err := s.db.Get(kv.ColBlockHashByNumber, be64(number))
	if err != nil {
		return types.ZeroHash, err
	}
	return types.HashFromBytes(raw), nil
}

func (s *Store) DeleteBlockHashByNumber(w Writer, number uint64) {
	w.Delete(kv.ColBlockHashByNumber, be64(number))
}

func (s *Store) PutTxReceipt(w Writer, r *types.TxReceipt) {
	w.Put(kv.ColTxReceipt, r.TxHash[:], EncodeTxReceipt(r))
}

func (s *Store) GetTxReceipt(hash types.Hash) (*types.TxReceipt, error) {
	raw, err := s.db.Get(kv.ColTxReceipt, hash[:])
	if err != nil {
		return nil, err
	}
	return DecodeTxReceipt(raw)
}

// PutBlockBody/GetBlockBody persist the full block (deposits, transactions,
// withdrawals, declared checkpoints) keyed by its hash, separate from the
// header-only record Attach always keeps: only the export tool (spec §6.6)
// and the p2p sync server's LocalBlock replay (spec §6.4) need the body, so
// it is not threaded through Attach's hot path reads.
func (s *Store) PutBlockBody(w Writer, block *types.Block) {
	w.Put(kv.ColBlockBody, block.Hash().Bytes(), EncodeBlock(block))
}

func (s *Store) GetBlockBody(hash types.Hash) (*types.Block, error) {
	raw, err := s.db.Get(kv.ColBlockBody, hash[:])
	if err != nil {
		return nil, err
	}
	return DecodeBlock(raw)
}

func (s *Store) PutWithdrawalReceipt(w Writer, r *types.WithdrawalReceipt) {
	w.Put(kv.ColWithdrawalReceipt, r.WithdrawalHash[:], EncodeWithdrawalReceipt(r))
}

func (s *Store) GetWithdrawalReceipt(hash types.Hash) (*types.WithdrawalReceipt, error) {
	raw, err := s.db.Get(kv.ColWithdrawalReceipt, hash[:])
	if err != nil {
		return nil, err
	}
	return DecodeWithdrawalReceipt(raw)
}

// PruneIfFinalized runs the history index's pruning pass for the generation
// that just fell out of the FINALITY+1 retention window (spec §4.1
// "Pruning"), a no-op until the chain is at least finality+1 blocks deep.
func (s *Store) PruneIfFinalized(attachedBlockNumber uint64) error {
	if attachedBlockNumber <= s.finality+1 {
		return nil
	}
	return history.Prune(s.db, attachedBlockNumber-s.finality-1)
}
