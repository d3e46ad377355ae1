/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Backend executes one transaction against ctx, the way the teacher's
// smartcontract/service/neovm.Service executes one NeoVM opcode stream
// against its ExecutionEngine — here dispatched by code hash rather than by
// opcode, onto one of four rollup backend kinds (spec §4.5 "Backend
// dispatch").
type Backend interface {
	Execute(ctx *Context, count *uint32) error
}

// BackendTable maps a script's code hash to the Backend that interprets it,
// mirroring the teacher's neovm ServiceMap's name->handler table.
type BackendTable map[types.Hash]Backend

func (t BackendTable) lookup(codeHash types.Hash) (Backend, error) {
	b, ok := t[codeHash]
	if !ok {
		return nil, rerrors.New(rerrors.Unknown, "generator: unknown backend for code hash %s", codeHash)
	}
	return b, nil
}

// Lookup is the exported form of lookup, for callers outside this package
// that only need to know whether a code hash resolves to a known backend
// (the mempool's admission check, spec §4.3 "backend type is known").
func (t BackendTable) Lookup(codeHash types.Hash) (Backend, error) {
	return t.lookup(codeHash)
}
