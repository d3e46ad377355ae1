/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package config holds the node's configuration tree, loaded from TOML and
// overridable by CLI flags, mirroring the teacher's common/config.DefConfig
// + cmd/utils flag-registration split.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/godwokenrises/godwoken-sub004/types"
)

// FeeConfig is the richer, per-cycle fee structure pulled in from
// original_source's crates/mem-pool/src/fee/types.rs (see SPEC_FULL.md
// "Supplemented features" #4): a flat scalar fee is not enough to reject
// underpriced transactions without also enforcing a floor.
type FeeConfig struct {
	// MinFeeRateWeight is the minimum fee/cycles_limit ratio (numerator over
	// a fixed 2^32 denominator) admitted into the mempool.
	MinFeeRateWeight uint64 `toml:"min_fee_rate_weight"`
}

type RollupConfig struct {
	RollupTypeHash      string   `toml:"rollup_type_hash"`
	DepositLockCodeHash string   `toml:"deposit_lock_code_hash"`
	L1SudtTypeHash      string   `toml:"l1_sudt_type_hash"`
	AllowedEoaCodeHashes []string `toml:"allowed_eoa_code_hashes"`
	BurnLockHash        string   `toml:"burn_lock_hash"`
	RewardBurnRate      uint8    `toml:"reward_burn_rate"`
	Finality            uint64   `toml:"finality_blocks"`
	ChallengeMaturityBlocks uint64 `toml:"challenge_maturity_blocks"`
	ChainID             uint64   `toml:"chain_id"`
}

type GenesisConfig struct {
	Timestamp uint64 `toml:"timestamp"`
}

type MemPoolConfig struct {
	BatchSize       int       `toml:"batch_size"`
	MaxQueueSize    int       `toml:"max_queue_size"`
	RestoreDir      string    `toml:"restore_dir"`
	RestoreMaxAge   string    `toml:"restore_max_age"`
	Fee             FeeConfig `toml:"fee"`
}

type RPCConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	RequestTimeout string `toml:"request_timeout"`
}

type NodeConfig struct {
	DataDir string        `toml:"data_dir"`
	Rollup  RollupConfig  `toml:"rollup"`
	Genesis GenesisConfig `toml:"genesis"`
	MemPool MemPoolConfig `toml:"mempool"`
	RPC     RPCConfig     `toml:"rpc"`
}

// DefConfig mirrors the teacher's package-level DefConfig convention: code
// under this module reads from it unless a test constructs its own.
var DefConfig = Default()

func Default() *NodeConfig {
	return &NodeConfig{
		DataDir: "./data",
		Rollup: RollupConfig{
			RewardBurnRate:          50,
			Finality:                100,
			ChallengeMaturityBlocks: 10000,
			ChainID:                 1,
		},
		MemPool: MemPoolConfig{
			BatchSize:     100,
			MaxQueueSize:  10000,
			RestoreDir:    "./data/mempool",
			RestoreMaxAge: "1h",
			Fee:           FeeConfig{MinFeeRateWeight: 1},
		},
		RPC: RPCConfig{
			ListenAddr:     ":8119",
			RequestTimeout: "30s",
		},
	}
}

// Hash commits the deployment parameters every GlobalState carries
// (spec §3 "Global state" RollupConfigHash): a node that boots against a
// different rollup_type_hash, deposit lock, l1 sUDT type, burn lock, burn
// rate or allowed EOA set gets a different genesis commitment rather than
// silently producing blocks under the wrong parameters. finality_blocks,
// challenge_maturity_blocks and chain_id are not part of the hash.
func (c *RollupConfig) Hash() types.Hash {
	args := [][]byte{
		[]byte(c.RollupTypeHash),
		[]byte(c.DepositLockCodeHash),
		[]byte(c.L1SudtTypeHash),
		[]byte(c.BurnLockHash),
		{c.RewardBurnRate},
	}
	for _, h := range c.AllowedEoaCodeHashes {
		args = append(args, []byte(h))
	}
	return types.CkbHash(args...)
}

// Load reads a TOML file into cfg, overlaying Default().
func Load(path string) (*NodeConfig, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}
