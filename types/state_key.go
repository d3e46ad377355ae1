/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package types

// SubKeyKind discriminates what an account SMT key addresses (spec §3 "SMT
// state" — "domain-separated hashing of (account_id, subkey_kind, subkey)").
type SubKeyKind byte

const (
	SubKeyNonce      SubKeyKind = 0
	SubKeyScriptHash SubKeyKind = 1
	SubKeyStorage    SubKeyKind = 2 // contract key/value entries
	SubKeyBalance    SubKeyKind = 3 // keyed additionally by sudt script hash
)

// StateKey derives the account SMT key for a given account, subkey kind and
// subkey payload.
func StateKey(accountID uint32, kind SubKeyKind, subkey []byte) Hash {
	return CkbHash(be32(accountID), []byte{byte(kind)}, subkey)
}

// BalanceKey derives the storage key for an account's balance of a given
// sUDT (or the native token, denoted by the all-zero script hash).
func BalanceKey(accountID uint32, sudtScriptHash Hash) Hash {
	return StateKey(accountID, SubKeyBalance, sudtScriptHash[:])
}

func NonceKey(accountID uint32) Hash {
	return StateKey(accountID, SubKeyNonce, nil)
}

func ScriptHashKey(accountID uint32) Hash {
	return StateKey(accountID, SubKeyScriptHash, nil)
}

func StorageKey(accountID uint32, key Hash) Hash {
	return StateKey(accountID, SubKeyStorage, key[:])
}

// BlockNumberKey is the block SMT's key: the block number itself, not a
// domain-separated hash, since the block SMT maps block_number directly to
// block_hash (spec §3 "Block merkle state").
func BlockNumberKey(number uint64) Hash {
	var h Hash
	copy(h[24:], be64(number))
	return h
}
