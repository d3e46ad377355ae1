/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

// Package kv provides the columnar key/value layer described in spec §4.1:
// a fixed, enumerated set of disjoint namespaces over one physical LevelDB
// engine, addressed the way the teacher's core/store/common.DataEntryPrefix
// addresses ontology's single physical store.
package kv

// Column is a one-byte namespace discriminant, mirroring the teacher's
// DataEntryPrefix byte-tag convention.
type Column byte

const (
	ColMeta                    Column = 0x00 // migration sentinel, misc singletons
	ColBlockHeaderByHash       Column = 0x01
	ColBlockHashByNumber       Column = 0x02
	ColTxReceipt               Column = 0x03
	ColAccountSMTLeaf          Column = 0x04
	ColAccountSMTBranch        Column = 0x05
	ColBlockSMTBranch          Column = 0x06
	ColScriptByHash            Column = 0x07
	ColDataByHash              Column = 0x08
	ColMempoolDeposit          Column = 0x09
	ColMempoolTx               Column = 0x0a
	ColMempoolWithdrawal       Column = 0x0b
	ColRevertedBlockHash       Column = 0x0c
	ColBlockStateForward       Column = 0x0d // history index forward record
	ColBlockStateReverse       Column = 0x0e // history index reverse record
	ColWithdrawalReceipt       Column = 0x0f
	ColScriptHashToAccountID  Column = 0x10
	ColRegistryAddressBinding Column = 0x11
	ColBlockState              Column = 0x12 // block number -> persisted GlobalState snapshot
	ColBlockSMTLeaf            Column = 0x13 // block SMT leaves: block_number -> block_hash
	ColRevertedBlockSMTBranch  Column = 0x14 // branch pair for ColRevertedBlockHash's leaves
	ColChallengeCell           Column = 0x15 // the single outstanding challenge, if any
	ColBlockBody               Column = 0x16 // block hash -> full body (deposits/txs/withdrawals), spec §6.6 export
)

// RangeIterableColumns lists the columns that must support range iteration
// (spec §4.1 "range iteration is required on the last three"): the two
// history-index columns plus the mempool transaction column.
var RangeIterableColumns = map[Column]bool{
	ColBlockStateForward: true,
	ColBlockStateReverse: true,
	ColMempoolTx:         true,
}

// Key prefixes a raw key with its column tag; physical engines never see an
// un-prefixed key, which is what keeps the namespaces disjoint in one
// physical keyspace.
func Key(col Column, raw []byte) []byte {
	out := make([]byte, 1+len(raw))
	out[0] = byte(col)
	copy(out[1:], raw)
	return out
}
