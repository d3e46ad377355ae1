/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package types holds the consensus-critical data model (spec §3): hashes,
// accounts, registry addresses, global/block state, deposits, withdrawals,
// mem-blocks and run results.
package types

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashSize is the width of every content identifier in this system.
const HashSize = 32

// Hash is a 32-byte content identifier. All merkle and addressing
// operations use it (spec §3 "Hash").
type Hash [HashSize]byte

var ZeroHash = Hash{}

// RevertedBlockFlag is the value the reverted-block SMT (spec §3
// "reverted-block merkle root") writes at a reverted block's hash; any
// nonzero value would do since the tree only distinguishes
// present/absent, but a fixed sentinel keeps every node's tree byte-for-byte
// identical, which the cross-node root comparison in §8 depends on.
var RevertedBlockFlag = Hash{31: 1}

func (h Hash) IsZero() bool { return h == ZeroHash }

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, err
	}
	return HashFromBytes(b), nil
}

// hashKey is the fixed key used by the domain-separated keyed hash (spec §3
// "a fixed keyed cryptographic hash"). It is a build-time constant, not a
// per-node secret: the keying exists to domain-separate this tree's hash
// from a bare sha256 used elsewhere in the stack, not to provide secrecy.
var hashKey = []byte("godwoken-sub004/ckb-sparse-merkle-tree")

// CkbHash is the fixed keyed cryptographic hash named throughout spec §3.
// All merkle and addressing operations route through it.
func CkbHash(parts ...[]byte) Hash {
	mac := hmac.New(sha256.New, hashKey)
	for _, p := range parts {
		mac.Write(p)
	}
	var out Hash
	copy(out[:], mac.Sum(nil))
	return out
}

// Checkpoint is hash(account_root ‖ account_count) — the per-step state
// commitment used in block submissions (GLOSSARY "Checkpoint").
func Checkpoint(accountRoot Hash, accountCount uint32) Hash {
	return CkbHash(accountRoot[:], be32(accountCount))
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func be64(v uint64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}
