/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package mempool implements spec §4.3: admission of candidate deposits,
// transactions and withdrawals against a speculative mem-overlay state,
// priority ordering, a batch channel feeding a cooperative applier, and
// mem-block snapshotting. It is the rough analogue of the teacher's
// txnpool/proc.TXPoolServer, generalized from a single-state transaction
// pool to one that also tracks deposits and withdrawals against rollup
// admission rules.
package mempool

import (
	"github.com/godwokenrises/godwoken-sub004/rollup/config"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Minimum cancel-timeout thresholds for a deposit lock's relative since
// value (spec §4.3 "cancel-timeout must be relative and at least...").
const (
	MinCancelTimeoutBlocks         = 150
	MinCancelTimeoutTimestampSecs  = 20 * 60
	MinCancelTimeoutEpochs         = 1
)

// MinCustodianCapacity is the smallest capacity that can back a standalone
// custodian cell (spec §4.3 "capacity must suffice to produce a valid
// custodian cell"); the spec names the constraint but not the number, so
// this follows CKB's standard minimum cell capacity of 61 CKB (see
// DESIGN.md Open Questions).
const MinCustodianCapacity uint64 = 61_0000_0000

// RollupParams is the parsed, hash-typed form of config.RollupConfig that
// admission checks actually compare against, mirroring the teacher's
// pattern of resolving string config into typed values once at startup
// rather than re-parsing hex on every check.
type RollupParams struct {
	RollupTypeHash      types.Hash
	DepositLockCodeHash types.Hash
	L1SudtTypeHash      types.Hash
	AllowedEOACodeHash  map[types.Hash]bool
	DefaultEOACodeHash  types.Hash // first entry of allowed_eoa_code_hashes; used to synthesize pending-create accounts
	ChainID             uint64
	Fee                 config.FeeConfig
}

func NewRollupParams(cfg *config.RollupConfig, fee config.FeeConfig) (*RollupParams, error) {
	rollupHash, err := types.HashFromHex(cfg.RollupTypeHash)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Unknown, err, "mempool: parse rollup_type_hash")
	}
	depositHash, err := types.HashFromHex(cfg.DepositLockCodeHash)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Unknown, err, "mempool: parse deposit_lock_code_hash")
	}
	sudtHash, err := types.HashFromHex(cfg.L1SudtTypeHash)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Unknown, err, "mempool: parse l1_sudt_type_hash")
	}
	if len(cfg.AllowedEoaCodeHashes) == 0 {
		return nil, rerrors.New(rerrors.Unknown, "mempool: allowed_eoa_code_hashes must not be empty")
	}
	allowed := make(map[types.Hash]bool, len(cfg.AllowedEoaCodeHashes))
	var defaultHash types.Hash
	for i, s := range cfg.AllowedEoaCodeHashes {
		h, err := types.HashFromHex(s)
		if err != nil {
			return nil, rerrors.Wrap(rerrors.Unknown, err, "mempool: parse allowed_eoa_code_hashes entry")
		}
		allowed[h] = true
		if i == 0 {
			defaultHash = h
		}
	}
	return &RollupParams{
		RollupTypeHash:      rollupHash,
		DepositLockCodeHash: depositHash,
		L1SudtTypeHash:      sudtHash,
		AllowedEOACodeHash:  allowed,
		DefaultEOACodeHash:  defaultHash,
		ChainID:             cfg.ChainID,
		Fee:                 fee,
	}, nil
}
