/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// MetaBackend implements the meta-contract: create / batch-create accounts
// (spec §4.5 "Backend dispatch" — meta-contract). Args encoding:
// byte 0 selects the op (0 = create, 1 = batch-create), followed by one or
// more length-prefixed encoded scripts (store.EncodeScript's format).
type MetaBackend struct{}

const (
	metaOpCreate      byte = 0
	metaOpBatchCreate byte = 1
)

func (MetaBackend) Execute(ctx *Context, count *uint32) error {
	args := ctx.tx.Args
	if len(args) < 1 {
		return rerrors.New(rerrors.Unknown, "generator: meta backend: empty args")
	}
	switch args[0] {
	case metaOpCreate:
		script, err := decodeOneScript(args[1:])
		if err != nil {
			return err
		}
		id, err := ctx.CreateAccount(count, script)
		if err != nil {
			return err
		}
		return ctx.SetReturnData(be32(id))
	case metaOpBatchCreate:
		rest := args[1:]
		ids := make([]byte, 0, 4)
		for len(rest) > 0 {
			script, consumed, err := decodeOneScriptPrefixed(rest)
			if err != nil {
				return err
			}
			id, err := ctx.CreateAccount(count, script)
			if err != nil {
				return err
			}
			ids = append(ids, be32(id)...)
			rest = rest[consumed:]
		}
		return ctx.SetReturnData(ids)
	default:
		return rerrors.New(rerrors.Unknown, "generator: meta backend: unknown op %d", args[0])
	}
}

func decodeOneScript(buf []byte) (*types.Script, error) {
	if len(buf) < types.HashSize+1+4 {
		return nil, rerrors.New(rerrors.Unknown, "generator: truncated script")
	}
	s := &types.Script{}
	s.CodeHash = types.HashFromBytes(buf[:types.HashSize])
	s.HashType = buf[types.HashSize]
	argLen := be32ToUint(buf[types.HashSize+1 : types.HashSize+5])
	rest := buf[types.HashSize+5:]
	if uint32(len(rest)) < argLen {
		return nil, rerrors.New(rerrors.Unknown, "generator: truncated script args")
	}
	s.Args = append([]byte(nil), rest[:argLen]...)
	return s, nil
}

// decodeOneScriptPrefixed returns the script plus the number of bytes it
// consumed, for walking a concatenated sequence of encoded scripts.
func decodeOneScriptPrefixed(buf []byte) (*types.Script, int, error) {
	s, err := decodeOneScript(buf)
	if err != nil {
		return nil, 0, err
	}
	return s, types.HashSize + 1 + 4 + len(s.Args), nil
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func be32ToUint(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
