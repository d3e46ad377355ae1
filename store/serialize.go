/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package store

import (
	"encoding/binary"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// EncodeScript is a plain length-prefixed encoding; scripts are small and
// write-once so there is no need for a self-describing schema here.
func EncodeScript(s *types.Script) []byte {
	out := make([]byte, 0, types.HashSize+1+4+len(s.Args))
	out = append(out, s.CodeHash[:]...)
	out = append(out, s.HashType)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(s.Args)))
	out = append(out, lenBuf...)
	out = append(out, s.Args...)
	return out
}

func DecodeScript(buf []byte) (*types.Script, error) {
	if len(buf) < types.HashSize+1+4 {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated script record")
	}
	s := &types.Script{}
	s.CodeHash = types.HashFromBytes(buf[:types.HashSize])
	s.HashType = buf[types.HashSize]
	argLen := binary.BigEndian.Uint32(buf[types.HashSize+1 : types.HashSize+5])
	rest := buf[types.HashSize+5:]
	if uint32(len(rest)) < argLen {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated script args")
	}
	s.Args = append([]byte(nil), rest[:argLen]...)
	return s, nil
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// EncodeGlobalState is a fixed-width encoding of the consensus-critical
// summary (spec §3 "Global state"); every field is a known size so there is
// no framing to get wrong.
func EncodeGlobalState(g *types.GlobalState) []byte {
	out := make([]byte, 0, 4*types.HashSize+4+8+8+8+1+1)
	out = append(out, g.Account.Root[:]...)
	out = append(out, be32(g.Account.AccountCount)...)
	out = append(out, g.Block.Root[:]...)
	out = append(out, be64(g.Block.Count)...)
	out = append(out, g.RevertedBlockRoot[:]...)
	out = append(out, be64(g.LastFinalizedRaw)...)
	out = append(out, byte(g.Status))
	out = append(out, g.TipBlockHash[:]...)
	out = append(out, be64(g.TipBlockTimestamp)...)
	out = append(out, g.RollupConfigHash[:]...)
	out = append(out, byte(g.Version))
	return out
}

const globalStateEncodedLen = 4*types.HashSize + 4 + 8 + 8 + 8 + 1 + 1

func DecodeGlobalState(buf []byte) (*types.GlobalState, error) {
	if len(buf) != globalStateEncodedLen {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: malformed global state record")
	}
	g := &types.GlobalState{}
	off := 0
	g.Account.Root = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	g.Account.AccountCount = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	g.Block.Root = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	g.Block.Count = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	g.RevertedBlockRoot = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	g.LastFinalizedRaw = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	g.Status = types.RollupStatus(buf[off])
	off++
	g.TipBlockHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	g.TipBlockTimestamp = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	g.RollupConfigHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	g.Version = types.GlobalStateVersion(buf[off])
	return g, nil
}

// EncodeRawHeader mirrors EncodeGlobalState's fixed-width approach.
func EncodeRawHeader(h *types.RawHeader) []byte {
	out := make([]byte, 0, 256)
	out = append(out, h.ParentHash[:]...)
	out = append(out, be64(h.Number)...)
	out = append(out, be32(h.ProducerAddress.RegistryID)...)
	out = append(out, h.ProducerAddress.Address[:]...)
	out = append(out, be64(h.Timestamp)...)
	out = append(out, h.PrevAccount.Root[:]...)
	out = append(out, be32(h.PrevAccount.AccountCount)...)
	out = append(out, h.PostAccount.Root[:]...)
	out = append(out, be32(h.PostAccount.AccountCount)...)
	out = append(out, h.SubmitTransactionsHash[:]...)
	out = append(out, h.SubmitWithdrawalsHash[:]...)
	out = append(out, be32(h.TxCount)...)
	out = append(out, be32(h.WithdrawalCount)...)
	return out
}

const rawHeaderEncodedLen = types.HashSize + 8 + 4 + 20 + 8 + types.HashSize + 4 + types.HashSize + 4 + types.HashSize + types.HashSize + 4 + 4

func DecodeRawHeader(buf []byte) (*types.RawHeader, error) {
	if len(buf) != rawHeaderEncodedLen {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: malformed block header record")
	}
	h := &types.RawHeader{}
	off := 0
	h.ParentHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	h.Number = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	h.ProducerAddress.RegistryID = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	copy(h.ProducerAddress.Address[:], buf[off:off+20])
	off += 20
	h.Timestamp = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	h.PrevAccount.Root = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	h.PrevAccount.AccountCount = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	h.PostAccount.Root = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	h.PostAccount.AccountCount = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	h.SubmitTransactionsHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	h.SubmitWithdrawalsHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	h.TxCount = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	h.WithdrawalCount = binary.BigEndian.Uint32(buf[off : off+4])
	return h, nil
}

// EncodeTxReceipt/DecodeTxReceipt use a trailing length-prefixed section for
// the variable-length return data and logs, fixed-width fields first.
func EncodeTxReceipt(r *types.TxReceipt) []byte {
	out := make([]byte, 0, 128+len(r.ReturnData))
	out = append(out, r.TxHash[:]...)
	out = append(out, be64(r.BlockNumber)...)
	out = append(out, byte(r.ExitCode))
	out = append(out, r.PostCheckpoint[:]...)
	out = append(out, be32(uint32(len(r.ReturnData)))...)
	out = append(out, r.ReturnData...)
	out = append(out, be32(uint32(len(r.Logs)))...)
	for _, l := range r.Logs {
		out = append(out, be32(l.AccountID)...)
		out = append(out, byte(l.ServiceFlag))
		out = append(out, be32(uint32(len(l.Data)))...)
		out = append(out, l.Data...)
	}
	return out
}

func DecodeTxReceipt(buf []byte) (*types.TxReceipt, error) {
	min := types.HashSize + 8 + 1 + types.HashSize + 4
	if len(buf) < min {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated tx receipt")
	}
	r := &types.TxReceipt{}
	off := 0
	r.TxHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	r.BlockNumber = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	r.ExitCode = types.ExitCode(int32(buf[off]))
	off++
	r.PostCheckpoint = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	dataLen := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	if uint32(len(buf)-off) < dataLen {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated tx receipt return data")
	}
	r.ReturnData = append([]byte(nil), buf[off:off+int(dataLen)]...)
	off += int(dataLen)
	if len(buf)-off < 4 {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated tx receipt log count")
	}
	logCount := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	r.Logs = make([]types.LogItem, 0, logCount)
	for i := uint32(0); i < logCount; i++ {
		if len(buf)-off < 9 {
			return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated tx receipt log entry")
		}
		var l types.LogItem
		l.AccountID = binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
		l.ServiceFlag = types.LogServiceFlag(buf[off])
		off++
		dl := binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
		if uint32(len(buf)-off) < dl {
			return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated tx receipt log data")
		}
		l.Data = append([]byte(nil), buf[off:off+int(dl)]...)
		off += int(dl)
		r.Logs = append(r.Logs, l)
	}
	return r, nil
}

func EncodeWithdrawalReceipt(r *types.WithdrawalReceipt) []byte {
	out := make([]byte, 0, 2*types.HashSize+8+4)
	out = append(out, r.WithdrawalHash[:]...)
	out = append(out, be64(r.BlockNumber)...)
	out = append(out, be32(r.AccountID)...)
	out = append(out, r.PostCheckpoint[:]...)
	return out
}

func DecodeWithdrawalReceipt(buf []byte) (*types.WithdrawalReceipt, error) {
	if len(buf) != 2*types.HashSize+8+4 {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: malformed withdrawal receipt record")
	}
	r := &types.WithdrawalReceipt{}
	r.WithdrawalHash = types.HashFromBytes(buf[:types.HashSize])
	r.BlockNumber = binary.BigEndian.Uint64(buf[types.HashSize : types.HashSize+8])
	r.AccountID = binary.BigEndian.Uint32(buf[types.HashSize+8 : types.HashSize+8+4])
	r.PostCheckpoint = types.HashFromBytes(buf[types.HashSize+8+4:])
	return r, nil
}

// EncodeL2Transaction/DecodeL2Transaction serialise a transaction for
// mem-block snapshot files (spec §4.3 "persist the mem-block across
// restarts"), stored block bodies and p2p messages.
func EncodeL2Transaction(tx *types.L2Transaction) []byte {
	out := make([]byte, 0, 4+4+4+4+32+8+8+len(tx.Args)+4+len(tx.Signature))
	out = append(out, be32(tx.FromID)...)
	out = append(out, be32(tx.ToID)...)
	out = append(out, be32(tx.Nonce)...)
	feeBytes := tx.Fee.Bytes32()
	out = append(out, feeBytes[:]...)
	out = append(out, be64(tx.CyclesLimit)...)
	out = append(out, be64(tx.ChainID)...)
	out = append(out, be32(uint32(len(tx.Args)))...)
	out = append(out, tx.Args...)
	out = append(out, be32(uint32(len(tx.Signature)))...)
	out = append(out, tx.Signature...)
	return out
}

func DecodeL2Transaction(buf []byte) (*types.L2Transaction, error) {
	const fixed = 4 + 4 + 4 + 32 + 8 + 8 + 4
	if len(buf) < fixed {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated transaction record")
	}
	tx := &types.L2Transaction{}
	off := 0
	tx.FromID = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	tx.ToID = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	tx.Nonce = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	var feeBytes [32]byte
	copy(feeBytes[:], buf[off:off+32])
	tx.Fee = types.AmountFromBytes32(feeBytes)
	off += 32
	tx.CyclesLimit = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	tx.ChainID = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	argLen := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	if uint32(len(buf)-off) < argLen+4 {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated transaction args")
	}
	tx.Args = append([]byte(nil), buf[off:off+int(argLen)]...)
	off += int(argLen)
	sigLen := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	if uint32(len(buf)-off) < sigLen {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated transaction signature")
	}
	tx.Signature = append([]byte(nil), buf[off:off+int(sigLen)]...)
	return tx, nil
}

// EncodeDepositRequest/DecodeDepositRequest persist a pending deposit. The
// two variable-length scripts (target layer-2 script, L1 deposit-lock
// script) are each length-prefixed so they can sit back to back.
func EncodeDepositRequest(d *types.DepositRequest) []byte {
	amountBytes := d.Amount.Bytes32()
	scriptBytes := EncodeScript(d.Script)
	lockBytes := EncodeScript(d.L1Lock)
	out := make([]byte, 0, 8+types.HashSize+32+4+20+8+4+len(scriptBytes)+4+len(lockBytes))
	out = append(out, be64(d.Capacity)...)
	out = append(out, d.SudtScriptHash[:]...)
	out = append(out, amountBytes[:]...)
	out = append(out, be32(d.RegistryID)...)
	out = append(out, d.Address[:]...)
	out = append(out, be64(d.CancelTimeout)...)
	out = append(out, be32(uint32(len(scriptBytes)))...)
	out = append(out, scriptBytes...)
	out = append(out, be32(uint32(len(lockBytes)))...)
	out = append(out, lockBytes...)
	return out
}

func DecodeDepositRequest(buf []byte) (*types.DepositRequest, error) {
	const fixed = 8 + types.HashSize + 32 + 4 + 20 + 8 + 4
	if len(buf) < fixed {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated deposit record")
	}
	d := &types.DepositRequest{}
	off := 0
	d.Capacity = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	d.SudtScriptHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	var amountBytes [32]byte
	copy(amountBytes[:], buf[off:off+32])
	d.Amount = types.AmountFromBytes32(amountBytes)
	off += 32
	d.RegistryID = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	copy(d.Address[:], buf[off:off+20])
	off += 20
	d.CancelTimeout = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	scriptLen := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	if uint32(len(buf)-off) < scriptLen+4 {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated deposit script")
	}
	script, err := DecodeScript(buf[off : off+int(scriptLen)])
	if err != nil {
		return nil, err
	}
	d.Script = script
	off += int(scriptLen)
	lockLen := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	if uint32(len(buf)-off) < lockLen {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated deposit lock script")
	}
	lock, err := DecodeScript(buf[off : off+int(lockLen)])
	if err != nil {
		return nil, err
	}
	d.L1Lock = lock
	return d, nil
}

// EncodeWithdrawalRequest/DecodeWithdrawalRequest persist a pending
// withdrawal.
func EncodeWithdrawalRequest(w *types.WithdrawalRequest) []byte {
	amountBytes := w.Amount.Bytes32()
	feeBytes := w.Fee.Bytes32()
	out := make([]byte, 0, 8+types.HashSize+32+2*types.HashSize+4+32+4+len(w.Signature))
	out = append(out, be64(w.Capacity)...)
	out = append(out, w.SudtScriptHash[:]...)
	out = append(out, amountBytes[:]...)
	out = append(out, w.AccountScriptHash[:]...)
	out = append(out, w.OwnerLockHash[:]...)
	out = append(out, be32(w.Nonce)...)
	out = append(out, feeBytes[:]...)
	out = append(out, be32(uint32(len(w.Signature)))...)
	out = append(out, w.Signature...)
	return out
}

func DecodeWithdrawalRequest(buf []byte) (*types.WithdrawalRequest, error) {
	const fixed = 8 + types.HashSize + 32 + 2*types.HashSize + 4 + 32 + 4
	if len(buf) < fixed {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated withdrawal record")
	}
	w := &types.WithdrawalRequest{}
	off := 0
	w.Capacity = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	w.SudtScriptHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	var amountBytes [32]byte
	copy(amountBytes[:], buf[off:off+32])
	w.Amount = types.AmountFromBytes32(amountBytes)
	off += 32
	w.AccountScriptHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	w.OwnerLockHash = types.HashFromBytes(buf[off : off+types.HashSize])
	off += types.HashSize
	w.Nonce = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	var feeBytes [32]byte
	copy(feeBytes[:], buf[off:off+32])
	w.Fee = types.AmountFromBytes32(feeBytes)
	off += 32
	sigLen := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	if uint32(len(buf)-off) < sigLen {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated withdrawal signature")
	}
	w.Signature = append([]byte(nil), buf[off:off+int(sigLen)]...)
	return w, nil
}
