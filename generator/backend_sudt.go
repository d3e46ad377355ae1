/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// SudtBackend implements balance query and transfer for one sUDT, the
// sibling of the meta-contract in spec §4.5's backend table. Each sUDT is
// its own account; its script hash is the key balances are stored under.
type SudtBackend struct{}

const (
	sudtOpQuery    byte = 0
	sudtOpTransfer byte = 1
)

func (SudtBackend) Execute(ctx *Context, count *uint32) error {
	tx := ctx.LoadTxContext()
	script, err := ctx.LoadAccountScript(tx.ToID)
	if err != nil {
		return err
	}
	sudtHash := script.Hash()

	if len(tx.Args) < 1 {
		return rerrors.New(rerrors.Unknown, "generator: sudt backend: empty args")
	}
	switch tx.Args[0] {
	case sudtOpQuery:
		if len(tx.Args) < 5 {
			return rerrors.New(rerrors.Unknown, "generator: sudt backend: truncated query args")
		}
		accountID := be32ToUint(tx.Args[1:5])
		balance, err := ctx.GetBalance(accountID, sudtHash)
		if err != nil {
			return err
		}
		b := balance.Bytes32()
		return ctx.SetReturnData(b[:])
	case sudtOpTransfer:
		if len(tx.Args) < 1+4+32 {
			return rerrors.New(rerrors.Unknown, "generator: sudt backend: truncated transfer args")
		}
		toID := be32ToUint(tx.Args[1:5])
		var amountBytes [32]byte
		copy(amountBytes[:], tx.Args[5:37])
		amount := types.AmountFromBytes32(amountBytes)

		fromBalance, err := ctx.GetBalance(ctx.SenderID(), sudtHash)
		if err != nil {
			return err
		}
		fromAfter, underflow := fromBalance.Sub(amount)
		if underflow {
			return rerrors.New(rerrors.InsufficientBalance, "generator: account %d insufficient sudt balance", ctx.SenderID())
		}
		toBalance, err := ctx.GetBalance(toID, sudtHash)
		if err != nil {
			return err
		}
		toAfter, overflow := toBalance.Add(amount)
		if overflow {
			return rerrors.New(rerrors.Unknown, "generator: account %d sudt balance overflow", toID)
		}
		if err := ctx.SetBalance(ctx.SenderID(), sudtHash, fromAfter); err != nil {
			return err
		}
		if err := ctx.SetBalance(toID, sudtHash, toAfter); err != nil {
			return err
		}
		ctx.Log(tx.ToID, types.LogSudtTransfer, append(append(be32(ctx.SenderID()), be32(toID)...), amountBytes[:]...))
		return nil
	default:
		return rerrors.New(rerrors.Unknown, "generator: sudt backend: unknown op %d", tx.Args[0])
	}
}
