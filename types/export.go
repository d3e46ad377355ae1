/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package types

// CommittedInfo locates the base-chain transaction a block's submission was
// observed in (spec §6.6 "ExportedBlock"); mirrors sync.CommittedInfo's
// fields for the wire/file format, kept as its own type here so types does
// not import package sync.
type CommittedInfo struct {
	L1BlockNumber uint64
	TxIndex       uint32
	TxHash        Hash
}

// ExportedBlock is the unit of spec §6.6's line-delimited hex import/export
// format: one canonically serialised record per block, self-contained
// enough that Import can re-verify it without touching anything but the
// block immediately before it.
type ExportedBlock struct {
	Block             *Block
	CommittedInfo     CommittedInfo
	PostGlobalState   *GlobalState
	DepositRequests   []*DepositRequest
	DepositAssetScripts []*Script
	Withdrawals       []*WithdrawalRequest
	BadBlockHashes    []Hash // present only for a block later proven fraudulent
}
