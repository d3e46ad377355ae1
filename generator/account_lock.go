/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	"github.com/ethereum/go-ethereum/crypto"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// LockVerifier recovers the signer's 20-byte address from a message hash
// and signature, for one account-lock algorithm.
type LockVerifier func(messageHash types.Hash, signature []byte) ([20]byte, error)

// AccountLockRegistry maps a lock script's code hash to the verifier that
// checks its EOA signatures (spec supplement: "account lock registry" —
// the original's secp256k1/eth-personal-sign lock scripts, generalized so
// additional lock algorithms can be added without touching the backends).
type AccountLockRegistry struct {
	verifiers map[types.Hash]LockVerifier
}

func NewAccountLockRegistry() *AccountLockRegistry {
	return &AccountLockRegistry{verifiers: make(map[types.Hash]LockVerifier)}
}

func (r *AccountLockRegistry) Register(codeHash types.Hash, verifier LockVerifier) {
	r.verifiers[codeHash] = verifier
}

func (r *AccountLockRegistry) Verify(codeHash types.Hash, messageHash types.Hash, signature []byte) ([20]byte, error) {
	verifier, ok := r.verifiers[codeHash]
	if !ok {
		return [20]byte{}, rerrors.New(rerrors.Unknown, "generator: no lock verifier registered for code hash %s", codeHash)
	}
	return verifier(messageHash, signature)
}

// EthEOAVerifier recovers an Ethereum-style EOA address from a 65-byte
// [R || S || V] secp256k1 signature over messageHash.
func EthEOAVerifier(messageHash types.Hash, signature []byte) ([20]byte, error) {
	if len(signature) != 65 {
		return [20]byte{}, rerrors.New(rerrors.Unknown, "generator: eth signature must be 65 bytes, got %d", len(signature))
	}
	pubkey, err := crypto.SigToPub(messageHash[:], signature)
	if err != nil {
		return [20]byte{}, rerrors.Wrap(rerrors.Unknown, err, "generator: recover eth pubkey")
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}
