/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package generator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/godwokenrises/godwoken-sub004/types"
)

func encodeScript(s *types.Script) []byte {
	buf := append([]byte{}, s.CodeHash[:]...)
	buf = append(buf, s.HashType)
	buf = append(buf, be32(uint32(len(s.Args)))...)
	buf = append(buf, s.Args...)
	return buf
}

func TestMetaBackendCreateAssignsNextID(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	count := types.FirstUserAccountID
	script := &types.Script{CodeHash: types.CkbHash([]byte("new-acct")), HashType: types.HashTypeType, Args: []byte("x")}
	ctx.tx.Args = append([]byte{metaOpCreate}, encodeScript(script)...)

	require.NoError(t, MetaBackend{}.Execute(ctx, &count))
	require.Equal(t, types.FirstUserAccountID+1, count)
	require.Equal(t, be32(types.FirstUserAccountID), ctx.returnData)
}

func TestMetaBackendBatchCreateAssignsSequentialIDs(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	count := types.FirstUserAccountID
	s1 := &types.Script{CodeHash: types.CkbHash([]byte("a")), HashType: types.HashTypeType}
	s2 := &types.Script{CodeHash: types.CkbHash([]byte("b")), HashType: types.HashTypeType}
	args := append([]byte{metaOpBatchCreate}, encodeScript(s1)...)
	args = append(args, encodeScript(s2)...)
	ctx.tx.Args = args

	require.NoError(t, MetaBackend{}.Execute(ctx, &count))
	require.Equal(t, types.FirstUserAccountID+2, count)
	require.Equal(t, append(be32(types.FirstUserAccountID), be32(types.FirstUserAccountID+1)...), ctx.returnData)
}

func TestMetaBackendRejectsUnknownOp(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	count := types.FirstUserAccountID
	ctx.tx.Args = []byte{200}
	err := MetaBackend{}.Execute(ctx, &count)
	require.Error(t, err)
}

func TestMetaBackendRejectsTruncatedScript(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	count := types.FirstUserAccountID
	ctx.tx.Args = []byte{metaOpCreate, 1, 2, 3}
	err := MetaBackend{}.Execute(ctx, &count)
	require.Error(t, err)
}
