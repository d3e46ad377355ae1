/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package types

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 256-bit sUDT/native-token quantity (spec §9
// "Numeric semantics" — overflow is a hard error, never a wrap).
type Amount struct{ inner uint256.Int }

func NewAmount(v uint64) Amount {
	var a Amount
	a.inner.SetUint64(v)
	return a
}

func AmountFromBig(hi, lo uint64) Amount {
	var a Amount
	a.inner = *uint256.NewInt(lo)
	if hi != 0 {
		var h uint256.Int
		h.SetUint64(hi)
		h.Lsh(&h, 64)
		a.inner.Add(&a.inner, &h)
	}
	return a
}

// AmountFromBytes32 decodes a big-endian 32-byte balance leaf as stored in
// the account SMT (spec §3 "balance leaves store the raw 256-bit amount").
func AmountFromBytes32(b [32]byte) Amount {
	var a Amount
	a.inner.SetBytes32(b[:])
	return a
}

func (a Amount) Uint64() uint64 { return a.inner.Uint64() }

func (a Amount) IsZero() bool { return a.inner.IsZero() }

func (a Amount) Cmp(b Amount) int { return a.inner.Cmp(&b.inner) }

func (a Amount) Bytes32() [32]byte { return a.inner.Bytes32() }

// Add returns a+b and reports overflow instead of wrapping.
func (a Amount) Add(b Amount) (Amount, bool) {
	var out Amount
	overflow := out.inner.AddOverflow(&a.inner, &b.inner)
	return out, overflow
}

// Sub returns a-b and reports underflow instead of wrapping.
func (a Amount) Sub(b Amount) (Amount, bool) {
	var out Amount
	underflow := out.inner.SubOverflow(&a.inner, &b.inner)
	return out, underflow
}

// SaturatingMul multiplies and saturates to math.MaxUint256 on overflow,
// matching spec §9's "Fee/gas product must be checked with saturating
// multiplication compared against balance before admission".
func (a Amount) SaturatingMul(b Amount) Amount {
	var out Amount
	_, overflow := out.inner.MulOverflow(&a.inner, &b.inner)
	if overflow {
		out.inner = *uint256.NewInt(0)
		out.inner.Not(&out.inner) // all-ones = max value
	}
	return out
}

func (a Amount) String() string { return a.inner.Dec() }

// Big exposes the value as a big.Int for comparisons that need exact
// cross-multiplication (e.g. comparing two fee/cycles_limit ratios) without
// the saturation SaturatingMul applies.
func (a Amount) Big() *big.Int { return a.inner.ToBig() }
