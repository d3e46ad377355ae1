/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package p2p

import (
	"google.golang.org/protobuf/encoding/protowire"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
	"github.com/godwokenrises/godwoken-sub004/store"
	"github.com/godwokenrises/godwoken-sub004/types"
)

// Field numbers for the wire encoding below. There is no .proto source:
// protoc isn't available to this build, so the schema lives here as direct
// calls into google.golang.org/protobuf/encoding/protowire, the same
// low-level varint/length-delimited primitives a generated marshaler would
// call into. The wire format is standard protobuf and any generated client
// could decode it from this field layout.
const (
	fieldKind          = 1
	fieldLocalBlock    = 2
	fieldMemBlock      = 3
	fieldTransaction   = 4
	fieldBlockNumber   = 5
	fieldBlockHash     = 6
	fieldCommittedInfo = 7
	fieldRevertNumber  = 8
	fieldRevertHash    = 9

	ciFieldL1BlockNumber = 1
	ciFieldTxIndex       = 2
	ciFieldTxHash        = 3

	mbFieldProducerID    = 1
	mbFieldNumber        = 2
	mbFieldTimestamp     = 3
	mbFieldPrevRoot      = 4
	mbFieldPrevCount     = 5
	mbFieldPostRoot      = 6
	mbFieldPostCount     = 7
	mbFieldDeposit       = 8
	mbFieldWithdrawal    = 9
	mbFieldTx            = 10
	mbFieldCheckpoint    = 11
)

// EncodeMessage serialises one BlockSync stream entry (spec §6.4) to the
// protobuf wire format.
func EncodeMessage(m *Message) []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldKind, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(m.Kind))

	switch m.Kind {
	case KindLocalBlock:
		out = protowire.AppendTag(out, fieldLocalBlock, protowire.BytesType)
		out = protowire.AppendBytes(out, store.EncodeBlock(m.LocalBlock))
	case KindNextMemBlock:
		out = protowire.AppendTag(out, fieldMemBlock, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeMemBlock(m.MemBlock))
	case KindPushTransaction:
		out = protowire.AppendTag(out, fieldTransaction, protowire.BytesType)
		out = protowire.AppendBytes(out, store.EncodeL2Transaction(m.Transaction))
	case KindSubmitted, KindConfirmed:
		out = protowire.AppendTag(out, fieldBlockNumber, protowire.VarintType)
		out = protowire.AppendVarint(out, m.BlockNumber)
		out = protowire.AppendTag(out, fieldBlockHash, protowire.BytesType)
		out = protowire.AppendBytes(out, m.BlockHash[:])
		out = protowire.AppendTag(out, fieldCommittedInfo, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeCommittedInfo(m.CommittedInfo))
	case KindRevert:
		out = protowire.AppendTag(out, fieldRevertNumber, protowire.VarintType)
		out = protowire.AppendVarint(out, m.RevertToNumber)
		out = protowire.AppendTag(out, fieldRevertHash, protowire.BytesType)
		out = protowire.AppendBytes(out, m.RevertToHash[:])
	}
	return out
}

// DecodeMessage reverses EncodeMessage, tolerating fields arriving in any
// order the way protobuf parsers must.
func DecodeMessage(buf []byte) (*Message, error) {
	m := &Message{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed message tag")
		}
		buf = buf[n:]
		switch num {
		case fieldKind:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed kind field")
			}
			m.Kind = Kind(v)
			buf = buf[n:]
		case fieldLocalBlock:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			b, err := store.DecodeBlock(raw)
			if err != nil {
				return nil, err
			}
			m.LocalBlock = b
			buf = buf[n:]
		case fieldMemBlock:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			mb, err := decodeMemBlock(raw)
			if err != nil {
				return nil, err
			}
			m.MemBlock = mb
			buf = buf[n:]
		case fieldTransaction:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			tx, err := store.DecodeL2Transaction(raw)
			if err != nil {
				return nil, err
			}
			m.Transaction = tx
			buf = buf[n:]
		case fieldBlockNumber:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed block_number field")
			}
			m.BlockNumber = v
			buf = buf[n:]
		case fieldBlockHash:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			m.BlockHash = types.HashFromBytes(raw)
			buf = buf[n:]
		case fieldCommittedInfo:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			ci, err := decodeCommittedInfo(raw)
			if err != nil {
				return nil, err
			}
			m.CommittedInfo = ci
			buf = buf[n:]
		case fieldRevertNumber:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed revert_to_number field")
			}
			m.RevertToNumber = v
			buf = buf[n:]
		case fieldRevertHash:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			m.RevertToHash = types.HashFromBytes(raw)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed unknown field")
			}
			buf = buf[n:]
		}
	}
	return m, nil
}

func consumeBytes(buf []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, rerrors.New(rerrors.StorageCorruption, "p2p: expected length-delimited field")
	}
	v, n := protowire.ConsumeBytes(buf)
	if n < 0 {
		return nil, 0, rerrors.New(rerrors.StorageCorruption, "p2p: malformed length-delimited field")
	}
	return v, n, nil
}

func encodeCommittedInfo(ci types.CommittedInfo) []byte {
	var out []byte
	out = protowire.AppendTag(out, ciFieldL1BlockNumber, protowire.VarintType)
	out = protowire.AppendVarint(out, ci.L1BlockNumber)
	out = protowire.AppendTag(out, ciFieldTxIndex, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(ci.TxIndex))
	out = protowire.AppendTag(out, ciFieldTxHash, protowire.BytesType)
	out = protowire.AppendBytes(out, ci.TxHash[:])
	return out
}

func decodeCommittedInfo(buf []byte) (types.CommittedInfo, error) {
	var ci types.CommittedInfo
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return ci, rerrors.New(rerrors.StorageCorruption, "p2p: malformed committed_info tag")
		}
		buf = buf[n:]
		switch num {
		case ciFieldL1BlockNumber:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return ci, rerrors.New(rerrors.StorageCorruption, "p2p: malformed committed_info l1_block_number")
			}
			ci.L1BlockNumber = v
			buf = buf[n:]
		case ciFieldTxIndex:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return ci, rerrors.New(rerrors.StorageCorruption, "p2p: malformed committed_info tx_index")
			}
			ci.TxIndex = uint32(v)
			buf = buf[n:]
		case ciFieldTxHash:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return ci, err
			}
			ci.TxHash = types.HashFromBytes(raw)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return ci, rerrors.New(rerrors.StorageCorruption, "p2p: malformed committed_info field")
			}
			buf = buf[n:]
		}
	}
	return ci, nil
}

// encodeMemBlock/decodeMemBlock cover the fields a follower replaying
// NextMemBlock actually needs to speculatively re-execute against: the
// producer's declared items and per-item checkpoints. TouchedKeys and
// FinalizedCustodianLedger are this node's own bookkeeping for producing
// the *next* block and aren't part of the wire contract.
func encodeMemBlock(mb *types.MemBlock) []byte {
	var out []byte
	out = protowire.AppendTag(out, mbFieldProducerID, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(mb.ProducerID))
	out = protowire.AppendTag(out, mbFieldNumber, protowire.VarintType)
	out = protowire.AppendVarint(out, mb.Block.Number)
	out = protowire.AppendTag(out, mbFieldTimestamp, protowire.VarintType)
	out = protowire.AppendVarint(out, mb.Block.Timestamp)
	out = protowire.AppendTag(out, mbFieldPrevRoot, protowire.BytesType)
	out = protowire.AppendBytes(out, mb.PrevAccount.Root[:])
	out = protowire.AppendTag(out, mbFieldPrevCount, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(mb.PrevAccount.AccountCount))
	out = protowire.AppendTag(out, mbFieldPostRoot, protowire.BytesType)
	out = protowire.AppendBytes(out, mb.PostAccount.Root[:])
	out = protowire.AppendTag(out, mbFieldPostCount, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(mb.PostAccount.AccountCount))
	for _, d := range mb.Deposits {
		out = protowire.AppendTag(out, mbFieldDeposit, protowire.BytesType)
		out = protowire.AppendBytes(out, store.EncodeDepositRequest(d))
	}
	for _, w := range mb.Withdrawals {
		out = protowire.AppendTag(out, mbFieldWithdrawal, protowire.BytesType)
		out = protowire.AppendBytes(out, store.EncodeWithdrawalRequest(w))
	}
	for _, tx := range mb.Txs {
		out = protowire.AppendTag(out, mbFieldTx, protowire.BytesType)
		out = protowire.AppendBytes(out, store.EncodeL2Transaction(tx))
	}
	for _, h := range mb.StateCheckpoints {
		out = protowire.AppendTag(out, mbFieldCheckpoint, protowire.BytesType)
		out = protowire.AppendBytes(out, h[:])
	}
	return out
}

func decodeMemBlock(buf []byte) (*types.MemBlock, error) {
	mb := &types.MemBlock{TouchedKeys: make(map[types.Hash]struct{})}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed mem_block tag")
		}
		buf = buf[n:]
		switch num {
		case mbFieldProducerID:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed mem_block producer_id")
			}
			mb.ProducerID = uint32(v)
			buf = buf[n:]
		case mbFieldNumber:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed mem_block number")
			}
			mb.Block.Number = v
			buf = buf[n:]
		case mbFieldTimestamp:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed mem_block timestamp")
			}
			mb.Block.Timestamp = v
			buf = buf[n:]
		case mbFieldPrevRoot:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			mb.PrevAccount.Root = types.HashFromBytes(raw)
			buf = buf[n:]
		case mbFieldPrevCount:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed mem_block prev_count")
			}
			mb.PrevAccount.AccountCount = uint32(v)
			buf = buf[n:]
		case mbFieldPostRoot:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			mb.PostAccount.Root = types.HashFromBytes(raw)
			buf = buf[n:]
		case mbFieldPostCount:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed mem_block post_count")
			}
			mb.PostAccount.AccountCount = uint32(v)
			buf = buf[n:]
		case mbFieldDeposit:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			d, err := store.DecodeDepositRequest(raw)
			if err != nil {
				return nil, err
			}
			mb.Deposits = append(mb.Deposits, d)
			buf = buf[n:]
		case mbFieldWithdrawal:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			w, err := store.DecodeWithdrawalRequest(raw)
			if err != nil {
				return nil, err
			}
			mb.Withdrawals = append(mb.Withdrawals, w)
			buf = buf[n:]
		case mbFieldTx:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			tx, err := store.DecodeL2Transaction(raw)
			if err != nil {
				return nil, err
			}
			mb.Txs = append(mb.Txs, tx)
			buf = buf[n:]
		case mbFieldCheckpoint:
			raw, n, err := consumeBytes(buf, typ)
			if err != nil {
				return nil, err
			}
			mb.StateCheckpoints = append(mb.StateCheckpoints, types.HashFromBytes(raw))
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, rerrors.New(rerrors.StorageCorruption, "p2p: malformed mem_block field")
			}
			buf = buf[n:]
		}
	}
	return mb, nil
}
