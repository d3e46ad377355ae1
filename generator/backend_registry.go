/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// RegistryBackend exposes registry-address binding as a contract-callable
// backend, distinct from the binding the mempool performs on deposit
// admission (spec §4.3) — this one lets an already-running account bind a
// second registry address to itself, e.g. an EOA registering an ETH address
// after its account already exists under the base-chain registry.
type RegistryBackend struct{}

const (
	registryOpBind    byte = 0
	registryOpResolve byte = 1
)

func (RegistryBackend) Execute(ctx *Context, count *uint32) error {
	tx := ctx.LoadTxContext()
	if len(tx.Args) < 1 {
		return rerrors.New(rerrors.Unknown, "generator: registry backend: empty args")
	}
	switch tx.Args[0] {
	case registryOpBind:
		addr, err := decodeRegistryAddress(tx.Args[1:])
		if err != nil {
			return err
		}
		scriptHash, err := store.GetScriptHash(ctx.tree, ctx.SenderID())
		if err != nil {
			return err
		}
		return ctx.BindRegistryAddress(addr, scriptHash)
	case registryOpResolve:
		addr, err := decodeRegistryAddress(tx.Args[1:])
		if err != nil {
			return err
		}
		scriptHash, ok, err := ctx.ResolveRegistryAddress(addr)
		if err != nil {
			return err
		}
		if !ok {
			return ctx.SetReturnData(nil)
		}
		return ctx.SetReturnData(scriptHash[:])
	default:
		return rerrors.New(rerrors.Unknown, "generator: registry backend: unknown op %d", tx.Args[0])
	}
}

func decodeRegistryAddress(buf []byte) (types.RegistryAddress, error) {
	if len(buf) < 4+20 {
		return types.RegistryAddress{}, rerrors.New(rerrors.Unknown, "generator: truncated registry address")
	}
	var addr types.RegistryAddress
	addr.RegistryID = be32ToUint(buf[:4])
	copy(addr.Address[:], buf[4:24])
	return addr, nil
}
