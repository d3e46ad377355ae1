/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmountAddNoOverflow(t *testing.T) {
	a := NewAmount(100)
	b := NewAmount(200)
	sum, overflow := a.Add(b)
	require.False(t, overflow)
	require.Equal(t, uint64(300), sum.Uint64())
}

func TestAmountSubUnderflow(t *testing.T) {
	a := NewAmount(100)
	b := NewAmount(200)
	_, underflow := a.Sub(b)
	require.True(t, underflow)
}

func TestAmountSubExact(t *testing.T) {
	a := NewAmount(300)
	b := NewAmount(200)
	diff, underflow := a.Sub(b)
	require.False(t, underflow)
	require.Equal(t, uint64(100), diff.Uint64())
}

func TestAmountSaturatingMulSaturatesOnOverflow(t *testing.T) {
	a := NewAmount(math.MaxUint64)
	b := NewAmount(math.MaxUint64)
	out := a.SaturatingMul(b)

	var maxU256 Amount
	maxU256 = AmountFromBytes32([32]byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	})
	require.Equal(t, 0, out.Cmp(maxU256))
}

func TestAmountSaturatingMulNoOverflow(t *testing.T) {
	a := NewAmount(10)
	b := NewAmount(20)
	out := a.SaturatingMul(b)
	require.Equal(t, uint64(200), out.Uint64())
}

func TestAmountBytes32RoundTrip(t *testing.T) {
	a := NewAmount(123456789)
	b := AmountFromBytes32(a.Bytes32())
	require.Equal(t, 0, a.Cmp(b))
}

func TestAmountCmp(t *testing.T) {
	a := NewAmount(5)
	b := NewAmount(10)
	require.Equal(t, -1, a.Cmp(b))
	require.Equal(t, 1, b.Cmp(a))
	require.Equal(t, 0, a.Cmp(a))
}
