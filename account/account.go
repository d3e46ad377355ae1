/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package account wraps the two signing identities this node needs: the
// block producer wallet (signs submitted blocks) and the account-creator
// wallet the mempool uses to sign the synthesized batch-create-accounts
// transaction ahead of pending-create transactions (spec §4.3.5). Grounded
// on the teacher's main.go (account.Account, wallet loading) and
// consensus/solo/solo.go's self.Account.PublicKey / signature.Sign call
// shape.
package account

import (
	"github.com/ontio/ontology-crypto/keypair"
	"github.com/ontio/ontology-crypto/signature"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Account is a single signing identity: a keypair plus the signature scheme
// it signs with, the same two fields the teacher's consensus loop reads off
// self.Account.
type Account struct {
	Private keypair.PrivateKey
	Public  keypair.PublicKey
	Scheme  signature.SignatureScheme
}

// New generates a fresh identity; used by the `init` subcommand to
// provision a node's producer/account-creator wallets (spec §4.3
// "account-creator wallet").
func New() (*Account, error) {
	pri, pub, err := keypair.GenerateKeyPair(keypair.PK_ECDSA, keypair.P256)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Unknown, err, "account: generate key pair")
	}
	return &Account{Private: pri, Public: pub, Scheme: signature.SHA256withECDSA}, nil
}

// FromPrivateKeyBytes reconstructs an identity from an on-disk wallet file's
// decrypted private key bytes.
func FromPrivateKeyBytes(raw []byte) (*Account, error) {
	pri, err := keypair.DeserializePrivateKey(raw)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Unknown, err, "account: deserialize private key")
	}
	return &Account{Private: pri, Public: pri.Public(), Scheme: signature.SHA256withECDSA}, nil
}

// Sign produces a signature over messageHash under this identity's scheme,
// the same shape the mempool's AccountCreator.Sign and the block
// producer's submission signer both need (spec §4.3 "Pending-create
// sender", §6.5 "Block Submission Transaction").
func (a *Account) Sign(messageHash types.Hash) ([]byte, error) {
	sig, err := signature.Sign(a.Scheme, a.Private, messageHash[:], nil)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Unknown, err, "account: sign")
	}
	return signature.Serialize(sig)
}

// Verify checks sig over messageHash against pub, the shape the generator's
// account-lock backend (spec §4.5 backend dispatch) and the mempool's
// admission checks (§4.3) both call into for non-EVM-style locks.
func Verify(pub keypair.PublicKey, messageHash types.Hash, sig []byte) (bool, error) {
	s, err := signature.Deserialize(sig)
	if err != nil {
		return false, rerrors.Wrap(rerrors.Unknown, err, "account: deserialize signature")
	}
	return signature.Verify(pub, messageHash[:], s)
}

// VerifyRaw is Verify for a caller that only has the serialized public key
// bytes (the RPC surface's signature-check helper, spec §6.3), not a
// keypair.PublicKey value.
func VerifyRaw(pubBytes []byte, messageHash types.Hash, sig []byte) (bool, error) {
	pub, err := keypair.DeserializePublicKey(pubBytes)
	if err != nil {
		return false, rerrors.Wrap(rerrors.Unknown, err, "account: deserialize public key")
	}
	return Verify(pub, messageHash, sig)
}

// RegistryAddress derives the 20-byte EOA-visible address this identity
// binds to (spec §3 "Registry address"): the low 20 bytes of the keyed hash
// of the serialized public key, the same derivation the mempool's deposit
// admission and the generator's address-registry backend both expect of an
// ECDSA-class layer-2 script.
func (a *Account) RegistryAddress(registryID uint32) types.RegistryAddress {
	pubBytes := keypair.SerializePublicKey(a.Public)
	h := types.CkbHash(pubBytes)
	var addr types.RegistryAddress
	addr.RegistryID = registryID
	copy(addr.Address[:], h[12:])
	return addr
}
