/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package types

// RollupStatus gates every on-chain action (spec §4.4 "Status gate").
type RollupStatus byte

const (
	StatusRunning RollupStatus = 0
	StatusHalting RollupStatus = 1
)

// AccountMerkleState is (root, account_count), committed by every block
// (spec §3 "Account merkle state").
type AccountMerkleState struct {
	Root         Hash
	AccountCount uint32
}

// BlockMerkleState is (root, count) of the block_number -> block_hash SMT
// (spec §3 "Block merkle state").
type BlockMerkleState struct {
	Root  Hash
	Count uint64
}

// GlobalState is the consensus-critical summary committed on-chain at every
// block (spec §3 "Global state").
type GlobalState struct {
	Account               AccountMerkleState
	Block                 BlockMerkleState
	RevertedBlockRoot      Hash
	LastFinalizedRaw       uint64 // interpreted via Version, see timepoint.go
	Status                RollupStatus
	TipBlockHash           Hash
	TipBlockTimestamp      uint64
	RollupConfigHash       Hash
	Version                GlobalStateVersion
}

func (g *GlobalState) LastFinalized() Timepoint {
	return DecodeLastFinalizedTimepoint(g.Version, g.LastFinalizedRaw)
}

func (g *GlobalState) SetLastFinalized(tp Timepoint) {
	g.LastFinalizedRaw = EncodeLastFinalizedTimepoint(g.Version, tp)
}

// Hash commits the global state the way the on-chain validator would: the
// concatenation of its fields hashed with the shared keyed hash.
func (g *GlobalState) Hash() Hash {
	return CkbHash(
		g.Account.Root[:], be32(g.Account.AccountCount),
		g.Block.Root[:], be64(g.Block.Count),
		g.RevertedBlockRoot[:],
		be64(g.LastFinalizedRaw),
		[]byte{byte(g.Status)},
		g.TipBlockHash[:],
		be64(g.TipBlockTimestamp),
		g.RollupConfigHash[:],
		[]byte{byte(g.Version)},
	)
}

// Clone returns a deep (value) copy; GlobalState has no reference fields so
// a plain dereference copy suffices.
func (g *GlobalState) Clone() *GlobalState {
	c := *g
	return &c
}
