/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package mempool

import (
	"github.com/godwokenrises/godwoken-sub004/generator"
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/store/overlay"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// admitDeposit runs the deposit checklist of spec §4.3 "Admission for
// deposits" against the pool's mem-overlay state: ov is both the reader and
// the writer, so a registry binding made by an earlier deposit in the same
// generation is already visible to a later one. Registry bindings live in a
// plain kv column, not the account SMT, so no state tree is needed here.
func admitDeposit(ov *overlay.Store, params *RollupParams, d *types.DepositRequest) error {
	if d.L1Lock == nil {
		return rerrors.New(rerrors.Unknown, "mempool: deposit missing L1 lock script")
	}
	if d.L1Lock.HashType != types.HashTypeType || d.L1Lock.CodeHash != params.DepositLockCodeHash {
		return rerrors.New(rerrors.Unknown, "mempool: deposit lock script does not match configured deposit lock")
	}
	if len(d.L1Lock.Args) < types.HashSize || types.HashFromBytes(d.L1Lock.Args[:types.HashSize]) != params.RollupTypeHash {
		return rerrors.New(rerrors.Unknown, "mempool: deposit lock args do not carry the rollup type hash")
	}
	if err := checkCancelTimeout(d.CancelTimeout); err != nil {
		return err
	}
	if !d.SudtScriptHash.IsZero() && d.SudtScriptHash != params.L1SudtTypeHash {
		return rerrors.New(rerrors.Unknown, "mempool: deposit sUDT type does not match configured l1 sUDT")
	}
	if d.SudtScriptHash.IsZero() && !d.Amount.IsZero() {
		return rerrors.New(rerrors.DepositFakedCKB, "mempool: deposit declares amount %s under zero sUDT script hash", d.Amount)
	}
	if d.Script == nil || d.Script.HashType != types.HashTypeType || !params.AllowedEOACodeHash[d.Script.CodeHash] {
		return rerrors.New(rerrors.Unknown, "mempool: deposit target script is not an allowed EOA type")
	}
	addr := types.RegistryAddress{RegistryID: d.RegistryID, Address: d.Address}
	scriptHash := d.Script.Hash()
	existing, ok, err := store.ResolveRegistryAddress(ov, addr)
	if err != nil {
		return err
	}
	if ok && existing != scriptHash {
		return rerrors.New(rerrors.Unknown, "mempool: deposit registry address already bound to a different script hash")
	}
	if d.Capacity < MinCustodianCapacity {
		return rerrors.New(rerrors.Unknown, "mempool: deposit capacity %d cannot back a custodian cell", d.Capacity)
	}
	if !ok {
		if err := store.BindRegistryAddress(ov, ov, addr, scriptHash); err != nil {
			return err
		}
	}
	return nil
}

func checkCancelTimeout(relative uint64) error {
	// The relative value is block-number denominated in this node (spec
	// §4.3 "relative and at least: 150 blocks, or 20 minutes of timestamp,
	// or 1 epoch"); the timestamp/epoch forms are the L1 lock's own
	// encoding choice and are validated upstream when the lock script's
	// since-field is parsed into this relative block count.
	if relative < MinCancelTimeoutBlocks {
		return rerrors.New(rerrors.Unknown, "mempool: deposit cancel-timeout %d below minimum %d blocks", relative, MinCancelTimeoutBlocks)
	}
	return nil
}

// admitTransaction runs spec §4.3 "Admission for transactions". nonce is
// the sender's pending (not-yet-committed) nonce as tracked by the pool;
// balance is the sender's balance in the pool's mem-overlay state. Admission
// never mutates state (actual execution and balance debit happen at
// batch-apply time).
func admitTransaction(params *RollupParams, backends generator.BackendTable, locks *generator.AccountLockRegistry, senderLockCodeHash types.Hash, senderNonce, txNonce uint32, balance types.Amount, targetCodeHash types.Hash, tx *types.L2Transaction, messageHash types.Hash) error {
	if tx.ChainID != params.ChainID {
		return rerrors.New(rerrors.Unknown, "mempool: transaction chain id %d != %d", tx.ChainID, params.ChainID)
	}
	if txNonce != senderNonce {
		return rerrors.New(rerrors.InvalidNonce, "mempool: transaction nonce %d != sender nonce %d", txNonce, senderNonce)
	}
	if _, err := locks.Verify(senderLockCodeHash, messageHash, tx.Signature); err != nil {
		return err
	}
	if _, err := backends.Lookup(targetCodeHash); err != nil {
		return err
	}
	cost := tx.Fee.SaturatingMul(types.NewAmount(tx.CyclesLimit))
	if cost.Cmp(balance) > 0 {
		return rerrors.New(rerrors.InsufficientBalance, "mempool: fee*cycles_limit exceeds sender balance")
	}
	rate := params.Fee.MinFeeRateWeight
	if rate > 0 {
		// fee/cycles_limit must be >= min_fee_rate_weight / 2^32 (spec
		// supplement #4): compare fee*2^32 >= min_fee_rate_weight*cycles_limit.
		lhs := tx.Fee.SaturatingMul(types.NewAmount(1 << 32))
		rhs := types.NewAmount(rate).SaturatingMul(types.NewAmount(tx.CyclesLimit))
		if lhs.Cmp(rhs) < 0 {
			return rerrors.New(rerrors.Unknown, "mempool: fee rate below configured minimum")
		}
	}
	return nil
}

// admitPendingCreateTransaction runs the lighter admission check spec
// §4.3.5 describes for a from_id==0 transaction: no sender account exists
// yet, so no nonce, balance or lock check is made; OutputMemBlock later only
// resolves the sender's account id. Only the chain id and a non-zero
// cycles_limit are checked; the target backend is not looked up here.
func admitPendingCreateTransaction(params *RollupParams, backends generator.BackendTable, tx *types.L2Transaction) error {
	if tx.ChainID != params.ChainID {
		return rerrors.New(rerrors.Unknown, "mempool: transaction chain id %d != %d", tx.ChainID, params.ChainID)
	}
	if tx.CyclesLimit == 0 {
		return rerrors.New(rerrors.Unknown, "mempool: transaction cycles_limit must be non-zero")
	}
	return nil
}

// admitWithdrawal runs spec §4.3 "Admission for withdrawals".
func admitWithdrawal(params *RollupParams, locks *generator.AccountLockRegistry, lockCodeHash types.Hash, pendingNonce, wNonce uint32, balance, amount types.Amount, w *types.WithdrawalRequest, messageHash types.Hash) error {
	if wNonce != pendingNonce {
		return rerrors.New(rerrors.InvalidNonce, "mempool: withdrawal nonce %d != pending nonce %d", wNonce, pendingNonce)
	}
	cost, overflow := types.NewAmount(w.Capacity).Add(amount)
	if overflow {
		return rerrors.New(rerrors.Unknown, "mempool: withdrawal amount overflow")
	}
	cost, overflow = cost.Add(w.Fee)
	if overflow {
		return rerrors.New(rerrors.Unknown, "mempool: withdrawal amount overflow")
	}
	if cost.Cmp(balance) > 0 {
		return rerrors.New(rerrors.InsufficientBalance, "mempool: withdrawal exceeds sender balance")
	}
	if _, err := locks.Verify(lockCodeHash, messageHash, w.Signature); err != nil {
		return err
	}
	if params.Fee.MinFeeRateWeight > 0 && w.Fee.IsZero() {
		return rerrors.New(rerrors.Unknown, "mempool: withdrawal fee below configured minimum")
	}
	return nil
}
