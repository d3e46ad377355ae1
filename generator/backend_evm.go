/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// EVMBackend runs a contract account's code. Per the spec's Non-goals
// ("full EVM bytecode interpretation is out of scope"), this is not an
// interpreter: it is the polyjuice-style entry point that checks the
// caller's lock signature through the account-lock registry, charges the
// payload length against the cycle budget and returns empty return data.
// It does not read or write contract key/value state and does not run the
// contract's own deployed logic.
type EVMBackend struct {
	locks *AccountLockRegistry
}

func NewEVMBackend(locks *AccountLockRegistry) *EVMBackend {
	return &EVMBackend{locks: locks}
}

// args: lock_code_hash(32) || signature(65) || message_hash(32) || payload
func (b *EVMBackend) Execute(ctx *Context, count *uint32) error {
	tx := ctx.LoadTxContext()
	if len(tx.Args) < 32+65+32 {
		return rerrors.New(rerrors.Unknown, "generator: evm backend: truncated args")
	}
	var lockCodeHash types.Hash
	copy(lockCodeHash[:], tx.Args[:32])
	signature := tx.Args[32:97]
	var messageHash types.Hash
	copy(messageHash[:], tx.Args[97:129])
	payload := tx.Args[129:]

	senderScript, err := ctx.LoadAccountScript(ctx.SenderID())
	if err != nil {
		return err
	}
	if senderScript.CodeHash != lockCodeHash {
		return rerrors.New(rerrors.Unknown, "generator: evm backend: lock code hash does not match sender script")
	}
	if _, err := b.locks.Verify(lockCodeHash, messageHash, signature); err != nil {
		return err
	}

	if err := ctx.charge(uint64(len(payload))); err != nil {
		return err
	}
	return ctx.SetReturnData(nil)
}
