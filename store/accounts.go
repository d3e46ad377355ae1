/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package store is the storage-engine facade of spec §4.1: it ties
// together the columnar KV layer (store/kv), the SMT-backed state trees
// (store/statetree, store/smt), the journal (store/journal), the history
// index (store/history) and the content-addressed account/script/data
// tables into the object chain, mempool and generator depend on.
package store

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store/kv"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Reader is satisfied by both *kv.DB (live reads) and *journal.Txn (reads
// that should see this transaction's own buffered writes first).
type Reader interface {
	Get(col kv.Column, key []byte) ([]byte, error)
}

// Writer is satisfied by both *kv.WriteBatch and *journal.Txn.
type Writer interface {
	Put(col kv.Column, key, value []byte)
	Delete(col kv.Column, key []byte)
}

// CreateAccount allocates the next account id, binds its script hash (spec
// §3 "account_id_of(hash) is injective" — rejected if already bound) and
// writes the script-hash leaf into the account tree. count is both read and
// advanced in place so callers can create several accounts in one pass
// (e.g. a deposit batch) before recomputing the account root once.
func CreateAccount(w Writer, r Reader, tree *statetree.Tree, count *uint32, script *types.Script) (uint32, error) {
	hash := script.Hash()
	if _, ok, err := GetAccountIDByScriptHash(r, hash); err != nil {
		return 0, err
	} else if ok {
		return 0, rerrors.New(rerrors.DuplicatedScriptHash, "store: script hash %s already bound", hash)
	}
	id := *count
	if err := RegisterScript(w, r, script); err != nil {
		return 0, err
	}
	w.Put(kv.ColScriptHashToAccountID, hash[:], be32(id))
	if err := tree.Update(types.ScriptHashKey(id), hash); err != nil {
		return 0, err
	}
	if err := tree.Update(types.NonceKey(id), types.ZeroHash); err != nil {
		return 0, err
	}
	*count = id + 1
	return id, nil
}

func GetAccountIDByScriptHash(r Reader, hash types.Hash) (uint32, bool, error) {
	raw, err := r.Get(kv.ColScriptHashToAccountID, hash[:])
	if err == kv.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 4 {
		return 0, false, rerrors.New(rerrors.StorageCorruption, "store: malformed account-id record")
	}
	return uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3]), true, nil
}

func GetScriptHash(tree *statetree.Tree, id uint32) (types.Hash, error) {
	return tree.Get(types.ScriptHashKey(id))
}

func GetNonce(tree *statetree.Tree, id uint32) (uint32, error) {
	h, err := tree.Get(types.NonceKey(id))
	if err != nil {
		return 0, err
	}
	return uint32(h[28])<<24 | uint32(h[29])<<16 | uint32(h[30])<<8 | uint32(h[31]), nil
}

func SetNonce(tree *statetree.Tree, id, nonce uint32) error {
	var h types.Hash
	copy(h[28:], be32(nonce))
	return tree.Update(types.NonceKey(id), h)
}

func GetBalance(tree *statetree.Tree, id uint32, sudtScriptHash types.Hash) (types.Amount, error) {
	h, err := tree.Get(types.BalanceKey(id, sudtScriptHash))
	if err != nil {
		return types.Amount{}, err
	}
	return types.AmountFromBytes32(h), nil
}

func SetBalance(tree *statetree.Tree, id uint32, sudtScriptHash types.Hash, amount types.Amount) error {
	b := amount.Bytes32()
	return tree.Update(types.BalanceKey(id, sudtScriptHash), types.Hash(b))
}

func GetStorage(tree *statetree.Tree, id uint32, key types.Hash) (types.Hash, error) {
	return tree.Get(types.StorageKey(id, key))
}

func SetStorage(tree *statetree.Tree, id uint32, key, value types.Hash) error {
	return tree.Update(types.StorageKey(id, key), value)
}

// RegisterScript writes a script keyed by its own hash, write-once (spec §3
// "Scripts and data blobs are write-once, keyed by their own hash").
func RegisterScript(w Writer, r Reader, script *types.Script) error {
	hash := script.Hash()
	if _, err := r.Get(kv.ColScriptByHash, hash[:]); err == nil {
		return nil // already present, write-once means this is a no-op not an error
	}
	w.Put(kv.ColScriptByHash, hash[:], EncodeScript(script))
	return nil
}

func GetScript(r Reader, hash types.Hash) (*types.Script, error) {
	raw, err := r.Get(kv.ColScriptByHash, hash[:])
	if err != nil {
		return nil, err
	}
	return DecodeScript(raw)
}

// RegisterData writes a content-addressed data blob, write-once.
func RegisterData(w Writer, r Reader, data []byte) types.Hash {
	hash := types.CkbHash(data)
	if _, err := r.Get(kv.ColDataByHash, hash[:]); err == nil {
		return hash
	}
	w.Put(kv.ColDataByHash, hash[:], data)
	return hash
}

func GetData(r Reader, hash types.Hash) ([]byte, error) {
	return r.Get(kv.ColDataByHash, hash[:])
}

// BindRegistryAddress binds (registry_id, address) to a script hash. If the
// binding already exists it must map to the same script hash (spec §4.3
// "if it collides with an existing registry binding, must map to the same
// script hash").
func BindRegistryAddress(w Writer, r Reader, addr types.RegistryAddress, scriptHash types.Hash) error {
	return BindRegistryAddressKey(w, r, addr.Key(), scriptHash)
}

func ResolveRegistryAddress(r Reader, addr types.RegistryAddress) (types.Hash, bool, error) {
	return ResolveRegistryAddressKey(r, addr.Key())
}

// BindRegistryAddressKey is BindRegistryAddress keyed directly by a
// pre-hashed RegistryAddress.Key(), for callers (the generator's registry
// backend) that only carry the hash by the time the binding is applied.
func BindRegistryAddressKey(w Writer, r Reader, key, scriptHash types.Hash) error {
	existing, ok, err := ResolveRegistryAddressKey(r, key)
	if err != nil {
		return err
	}
	if ok {
		if existing != scriptHash {
			return rerrors.New(rerrors.Unknown, "store: registry address already bound to a different script hash")
		}
		return nil
	}
	w.Put(kv.ColRegistryAddressBinding, key[:], scriptHash[:])
	return nil
}

func ResolveRegistryAddressKey(r Reader, key types.Hash) (types.Hash, bool, error) {
	raw, err := r.Get(kv.ColRegistryAddressBinding, key[:])
	if err == kv.ErrNotFound {
		return types.ZeroHash, false, nil
	}
	if err != nil {
		return types.ZeroHash, false, err
	}
	return types.HashFromBytes(raw), true, nil
}
