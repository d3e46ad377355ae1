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

// appendChunk appends a length-prefixed byte slice, the convention every
// variable-length field in this file follows (spec §6.6 "canonically
// serialised" just means self-describing, not any particular schema).
func appendChunk(out, chunk []byte) []byte {
	out = append(out, be32(uint32(len(chunk)))...)
	return append(out, chunk...)
}

func readChunk(buf []byte) (chunk, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, rerrors.New(rerrors.StorageCorruption, "store: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, rerrors.New(rerrors.StorageCorruption, "store: truncated chunk")
	}
	return buf[:n], buf[n:], nil
}

// EncodeBlock serialises a full block (header, proof, bodies, declared
// checkpoints) for p2p transmission (spec §6.4) and for §6.6 export
// records, composing the existing per-field codecs rather than introducing
// a second one.
func EncodeBlock(b *types.Block) []byte {
	out := make([]byte, 0, 512)
	out = appendChunk(out, EncodeRawHeader(&b.Header))
	out = appendChunk(out, b.BlockProof.Proof)

	out = append(out, be32(uint32(len(b.Deposits)))...)
	for _, d := range b.Deposits {
		out = appendChunk(out, EncodeDepositRequest(d))
	}
	out = append(out, be32(uint32(len(b.Transactions)))...)
	for _, tx := range b.Transactions {
		out = appendChunk(out, EncodeL2Transaction(tx))
	}
	out = append(out, be32(uint32(len(b.Withdrawals)))...)
	for _, w := range b.Withdrawals {
		out = appendChunk(out, EncodeWithdrawalRequest(w))
	}

	out = append(out, b.SubmitTransactions.TxWitnessRoot[:]...)
	out = append(out, be32(b.SubmitTransactions.TxCount)...)
	out = append(out, b.SubmitTransactions.PrevStateCheckpoint[:]...)
	out = append(out, b.SubmitWithdrawals.WithdrawalWitnessRoot[:]...)
	out = append(out, be32(b.SubmitWithdrawals.WithdrawalCount)...)

	out = append(out, be32(uint32(len(b.WithdrawalCheckpoints)))...)
	for _, h := range b.WithdrawalCheckpoints {
		out = append(out, h[:]...)
	}
	out = append(out, be32(uint32(len(b.TxCheckpoints)))...)
	for _, h := range b.TxCheckpoints {
		out = append(out, h[:]...)
	}
	return out
}

func DecodeBlock(buf []byte) (*types.Block, error) {
	b := &types.Block{}

	headerBytes, rest, err := readChunk(buf)
	if err != nil {
		return nil, err
	}
	header, err := DecodeRawHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	b.Header = *header

	proof, rest, err := readChunk(rest)
	if err != nil {
		return nil, err
	}
	b.BlockProof = types.SMTBranchProof{Proof: append([]byte(nil), proof...)}

	depositCount, rest, err := readU32(rest)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < depositCount; i++ {
		var chunk []byte
		chunk, rest, err = readChunk(rest)
		if err != nil {
			return nil, err
		}
		d, err := DecodeDepositRequest(chunk)
		if err != nil {
			return nil, err
		}
		b.Deposits = append(b.Deposits, d)
	}

	txCount, rest, err := readU32(rest)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < txCount; i++ {
		var chunk []byte
		chunk, rest, err = readChunk(rest)
		if err != nil {
			return nil, err
		}
		tx, err := DecodeL2Transaction(chunk)
		if err != nil {
			return nil, err
		}
		b.Transactions = append(b.Transactions, tx)
	}

	wdCount, rest, err := readU32(rest)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < wdCount; i++ {
		var chunk []byte
		chunk, rest, err = readChunk(rest)
		if err != nil {
			return nil, err
		}
		w, err := DecodeWithdrawalRequest(chunk)
		if err != nil {
			return nil, err
		}
		b.Withdrawals = append(b.Withdrawals, w)
	}

	const fixed = types.HashSize + 4 + types.HashSize + types.HashSize + 4
	if len(rest) < fixed {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated block submit-commitments")
	}
	off := 0
	b.SubmitTransactions.TxWitnessRoot = types.HashFromBytes(rest[off : off+types.HashSize])
	off += types.HashSize
	b.SubmitTransactions.TxCount = binary.BigEndian.Uint32(rest[off : off+4])
	off += 4
	b.SubmitTransactions.PrevStateCheckpoint = types.HashFromBytes(rest[off : off+types.HashSize])
	off += types.HashSize
	b.SubmitWithdrawals.WithdrawalWitnessRoot = types.HashFromBytes(rest[off : off+types.HashSize])
	off += types.HashSize
	b.SubmitWithdrawals.WithdrawalCount = binary.BigEndian.Uint32(rest[off : off+4])
	off += 4
	rest = rest[off:]

	wcCount, rest, err := readU32(rest)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < wcCount; i++ {
		if len(rest) < types.HashSize {
			return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated withdrawal checkpoint list")
		}
		b.WithdrawalCheckpoints = append(b.WithdrawalCheckpoints, types.HashFromBytes(rest[:types.HashSize]))
		rest = rest[types.HashSize:]
	}
	tcCount, rest, err := readU32(rest)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < tcCount; i++ {
		if len(rest) < types.HashSize {
			return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated tx checkpoint list")
		}
		b.TxCheckpoints = append(b.TxCheckpoints, types.HashFromBytes(rest[:types.HashSize]))
		rest = rest[types.HashSize:]
	}
	return b, nil
}

func readU32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, rerrors.New(rerrors.StorageCorruption, "store: truncated count prefix")
	}
	return binary.BigEndian.Uint32(buf[:4]), buf[4:], nil
}

// EncodeExportedBlock/DecodeExportedBlock implement spec §6.6's
// line-delimited record payload: one block plus the committed-info/
// post-global-state/deposit-asset-script/bad-block-hash context the
// offline import tool needs to replay and cross-check it.
func EncodeExportedBlock(e *types.ExportedBlock) []byte {
	out := make([]byte, 0, 1024)
	out = appendChunk(out, EncodeBlock(e.Block))
	out = append(out, be64(e.CommittedInfo.L1BlockNumber)...)
	out = append(out, be32(e.CommittedInfo.TxIndex)...)
	out = append(out, e.CommittedInfo.TxHash[:]...)
	out = appendChunk(out, EncodeGlobalState(e.PostGlobalState))

	out = append(out, be32(uint32(len(e.DepositRequests)))...)
	for _, d := range e.DepositRequests {
		out = appendChunk(out, EncodeDepositRequest(d))
	}
	out = append(out, be32(uint32(len(e.DepositAssetScripts)))...)
	for _, s := range e.DepositAssetScripts {
		out = appendChunk(out, EncodeScript(s))
	}
	out = append(out, be32(uint32(len(e.Withdrawals)))...)
	for _, w := range e.Withdrawals {
		out = appendChunk(out, EncodeWithdrawalRequest(w))
	}
	out = append(out, be32(uint32(len(e.BadBlockHashes)))...)
	for _, h := range e.BadBlockHashes {
		out = append(out, h[:]...)
	}
	return out
}

func DecodeExportedBlock(buf []byte) (*types.ExportedBlock, error) {
	e := &types.ExportedBlock{}

	blockBytes, rest, err := readChunk(buf)
	if err != nil {
		return nil, err
	}
	e.Block, err = DecodeBlock(blockBytes)
	if err != nil {
		return nil, err
	}

	if len(rest) < 8+4+types.HashSize {
		return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated exported-block committed info")
	}
	e.CommittedInfo.L1BlockNumber = binary.BigEndian.Uint64(rest[:8])
	rest = rest[8:]
	e.CommittedInfo.TxIndex = binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	e.CommittedInfo.TxHash = types.HashFromBytes(rest[:types.HashSize])
	rest = rest[types.HashSize:]

	gsBytes, rest, err := readChunk(rest)
	if err != nil {
		return nil, err
	}
	e.PostGlobalState, err = DecodeGlobalState(gsBytes)
	if err != nil {
		return nil, err
	}

	depositCount, rest, err := readU32(rest)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < depositCount; i++ {
		var chunk []byte
		chunk, rest, err = readChunk(rest)
		if err != nil {
			return nil, err
		}
		d, err := DecodeDepositRequest(chunk)
		if err != nil {
			return nil, err
		}
		e.DepositRequests = append(e.DepositRequests, d)
	}

	scriptCount, rest, err := readU32(rest)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < scriptCount; i++ {
		var chunk []byte
		chunk, rest, err = readChunk(rest)
		if err != nil {
			return nil, err
		}
		s, err := DecodeScript(chunk)
		if err != nil {
			return nil, err
		}
		e.DepositAssetScripts = append(e.DepositAssetScripts, s)
	}

	withdrawalCount, rest, err := readU32(rest)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < withdrawalCount; i++ {
		var chunk []byte
		chunk, rest, err = readChunk(rest)
		if err != nil {
			return nil, err
		}
		w, err := DecodeWithdrawalRequest(chunk)
		if err != nil {
			return nil, err
		}
		e.Withdrawals = append(e.Withdrawals, w)
	}

	badCount, rest, err := readU32(rest)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < badCount; i++ {
		if len(rest) < types.HashSize {
			return nil, rerrors.New(rerrors.StorageCorruption, "store: truncated bad-block-hash list")
		}
		e.BadBlockHashes = append(e.BadBlockHashes, types.HashFromBytes(rest[:types.HashSize]))
		rest = rest[types.HashSize:]
	}
	return e, nil
}
