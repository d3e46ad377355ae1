/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Generator dispatches one transaction to the backend named by its target
// account's script, charging cycles and settling the fee, the way the
// teacher's neovm Service runs one invocation and settles system fees
// afterward (spec §4.5 "Contract").
type Generator struct {
	backends BackendTable
	locks    *AccountLockRegistry
}

func New(backends BackendTable, locks *AccountLockRegistry) *Generator {
	return &Generator{backends: backends, locks: locks}
}

// ExecuteTransaction implements chain.Generator.
func (g *Generator) ExecuteTransaction(tree *statetree.Tree, r store.Reader, count *uint32, blockInfo types.BlockInfo, tx *types.L2Transaction, cyclesLimit uint64) (*types.RunResult, error) {
	if tx.FromID == 0 {
		return nil, rerrors.New(rerrors.Unknown, "generator: transaction not resolved to a sender account")
	}

	nonce, err := store.GetNonce(tree, tx.FromID)
	if err != nil {
		return nil, err
	}
	if nonce != tx.Nonce {
		return nil, rerrors.New(rerrors.InvalidNonce, "generator: account %d expected nonce %d got %d", tx.FromID, nonce, tx.Nonce)
	}

	targetHash, err := store.GetScriptHash(tree, tx.ToID)
	if err != nil {
		return nil, err
	}
	targetScript, err := store.GetScript(r, targetHash)
	if err != nil {
		return nil, err
	}
	backend, err := g.backends.lookup(targetScript.CodeHash)
	if err != nil {
		return nil, err
	}

	ctx := newContext(tree, r, blockInfo, tx, tx.FromID, cyclesLimit)

	if err := ctx.bumpNonce(tx.FromID, nonce); err != nil {
		return nil, err
	}

	execErr := backend.Execute(ctx, count)
	exitCode := types.ExitOK
	if execErr != nil {
		if execErr == errOutOfCycles {
			exitCode = types.ExitOutOfCycles
		} else {
			exitCode = types.ExitExecutionFailure
		}
	}

	if exitCode == types.ExitOK && !tx.Fee.IsZero() {
		if err := g.settleFee(ctx, tx, blockInfo); err != nil {
			return nil, err
		}
	}

	rr := ctx.result(exitCode)
	if exitCode != types.ExitOK {
		// a failed execution still consumes nonce and cycles, but its state
		// effects (other than the nonce bump just recorded) must not apply.
		rr.WriteSet = map[types.Hash]types.Hash{types.NonceKey(tx.FromID): nonceHash(nonce + 1)}
		rr.NewScripts = map[types.Hash]*types.Script{}
		rr.NewData = map[types.Hash][]byte{}
		rr.NewRegistryBindings = map[types.Hash]types.Hash{}
		rr.Logs = nil
		rr.ReturnData = nil
	}
	return rr, nil
}

// settleFee moves tx.Fee from the sender to the block producer's account
// (native token) and emits a LogSudtPayFee entry for the sender and a
// LogNativeSummary entry for the producer (spec §4.5 "fee settlement").
func (g *Generator) settleFee(ctx *Context, tx *types.L2Transaction, blockInfo types.BlockInfo) error {
	producerHash, ok, err := store.ResolveRegistryAddress(ctx.store, blockInfo.ProducerAddress)
	if err != nil {
		return err
	}
	if !ok {
		return rerrors.New(rerrors.Unknown, "generator: block producer address not bound to any account")
	}
	producerID, ok, err := store.GetAccountIDByScriptHash(ctx.store, producerHash)
	if err != nil {
		return err
	}
	if !ok {
		return rerrors.New(rerrors.Unknown, "generator: block producer script hash has no account")
	}

	senderBalance, err := ctx.GetBalance(tx.FromID, types.ZeroHash)
	if err != nil {
		return err
	}
	senderAfter, underflow := senderBalance.Sub(tx.Fee)
	if underflow {
		return rerrors.New(rerrors.InsufficientBalance, "generator: account %d cannot pay fee", tx.FromID)
	}
	if err := ctx.SetBalance(tx.FromID, types.ZeroHash, senderAfter); err != nil {
		return err
	}

	producerBalance, err := ctx.GetBalance(producerID, types.ZeroHash)
	if err != nil {
		return err
	}
	producerAfter, overflow := producerBalance.Add(tx.Fee)
	if overflow {
		return rerrors.New(rerrors.Unknown, "generator: producer balance overflow paying fee")
	}
	if err := ctx.SetBalance(producerID, types.ZeroHash, producerAfter); err != nil {
		return err
	}

	feeBytes := tx.Fee.Bytes32()
	ctx.Log(tx.FromID, types.LogSudtPayFee, append(be32(producerID), feeBytes[:]...))
	ctx.Log(producerID, types.LogNativeSummary, append(be32(tx.FromID), feeBytes[:]...))
	return nil
}

func nonceHash(nonce uint32) types.Hash {
	var h types.Hash
	copy(h[28:], be32(nonce))
	return h
}

// bumpNonce records the sender's post-execution nonce up front so it is
// included in the result even if the backend itself fails.
func (c *Context) bumpNonce(accountID, currentNonce uint32) error {
	return c.Store(types.NonceKey(accountID), nonceHash(currentNonce+1))
}
