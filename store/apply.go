/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package store

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store/statetree"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// ApplyDeposit credits a deposit's capacity (and optional sUDT amount) to
// the target script's account, creating the account on first sight (spec
// §3 "Accounts are created on first deposit"). Shared between chain.Attach
// (against the durable journal) and the mempool's batcher (against its own
// overlay) so the one state-transition rule has one implementation.
func ApplyDeposit(w Writer, r Reader, tree *statetree.Tree, count *uint32, d *types.DepositRequest) error {
	if d.SudtScriptHash == types.ZeroHash && !d.Amount.IsZero() {
		return rerrors.New(rerrors.DepositFakedCKB, "store: deposit declares amount %s under zero sUDT script hash", d.Amount)
	}
	hash := d.Script.Hash()
	id, ok, err := GetAccountIDByScriptHash(r, hash)
	if err != nil {
		return err
	}
	if !ok {
		id, err = CreateAccount(w, r, tree, count, d.Script)
		if err != nil {
			return err
		}
	}
	if err := CreditBalance(tree, id, types.ZeroHash, types.NewAmount(d.Capacity)); err != nil {
		return err
	}
	if !d.Amount.IsZero() {
		if err := CreditBalance(tree, id, d.SudtScriptHash, d.Amount); err != nil {
			return err
		}
	}
	return nil
}

func CreditBalance(tree *statetree.Tree, id uint32, sudtHash types.Hash, amount types.Amount) error {
	cur, err := GetBalance(tree, id, sudtHash)
	if err != nil {
		return err
	}
	next, overflow := cur.Add(amount)
	if overflow {
		return rerrors.New(rerrors.InsufficientBalance, "store: balance overflow crediting account %d", id)
	}
	return SetBalance(tree, id, sudtHash, next)
}

func DebitBalance(tree *statetree.Tree, id uint32, sudtHash types.Hash, amount types.Amount) error {
	cur, err := GetBalance(tree, id, sudtHash)
	if err != nil {
		return err
	}
	next, underflow := cur.Sub(amount)
	if underflow {
		return rerrors.New(rerrors.WithdrawalOverdraft, "store: account %d balance underflow", id)
	}
	return SetBalance(tree, id, sudtHash, next)
}

// ApplyWithdrawal debits the withdrawing account by capacity+amount and
// advances its nonce (spec §4.2 step 4).
func ApplyWithdrawal(tree *statetree.Tree, r Reader, w *types.WithdrawalRequest) (uint32, error) {
	id, ok, err := GetAccountIDByScriptHash(r, w.AccountScriptHash)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, rerrors.New(rerrors.StorageCorruption, "store: withdrawal from unknown account script hash")
	}
	nonce, err := GetNonce(tree, id)
	if err != nil {
		return 0, err
	}
	if w.Nonce != nonce {
		return 0, rerrors.New(rerrors.InvalidNonce, "store: withdrawal nonce %d != account nonce %d", w.Nonce, nonce)
	}
	if err := DebitBalance(tree, id, types.ZeroHash, types.NewAmount(w.Capacity)); err != nil {
		return 0, err
	}
	if !w.Amount.IsZero() {
		if err := DebitBalance(tree, id, w.SudtScriptHash, w.Amount); err != nil {
			return 0, err
		}
	}
	if err := SetNonce(tree, id, nonce+1); err != nil {
		return 0, err
	}
	return id, nil
}

// ApplyRunResult writes a generator run result's write set and newly
// registered scripts/data/registry-bindings into the state tree (spec §4.5
// "Run result").
func ApplyRunResult(w Writer, r Reader, tree *statetree.Tree, count *uint32, rr *types.RunResult) error {
	for _, script := range rr.NewScripts {
		if err := RegisterScript(w, r, script); err != nil {
			return err
		}
	}
	for _, data := range rr.NewData {
		RegisterData(w, r, data)
	}
	for key, scriptHash := range rr.NewRegistryBindings {
		if err := BindRegistryAddressKey(w, r, key, scriptHash); err != nil {
			return err
		}
	}
	for key, value := range rr.WriteSet {
		if err := tree.Update(key, value); err != nil {
			return err
		}
	}
	if rr.NewAccountCount != nil && *rr.NewAccountCount > *count {
		*count = *rr.NewAccountCount
	}
	return nil
}
