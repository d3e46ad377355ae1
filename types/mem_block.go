/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package types

// MemBlock is the in-memory, not-yet-submitted block (spec §3 "Mem-block").
type MemBlock struct {
	ProducerID     uint32
	Block          BlockInfo
	PrevAccount    AccountMerkleState
	PostAccount    AccountMerkleState
	Deposits       []*DepositRequest
	Withdrawals    []*WithdrawalRequest // finalised first
	Txs            []*L2Transaction
	StateCheckpoints []Hash // parallel to Deposits+Withdrawals+Txs, in that order
	TouchedKeys    map[Hash]struct{}
	FinalizedCustodianLedger *CustodianLedger // optional
}

func NewMemBlock(producerID uint32, info BlockInfo, prev AccountMerkleState) *MemBlock {
	return &MemBlock{
		ProducerID:  producerID,
		Block:       info,
		PrevAccount: prev,
		PostAccount: prev,
		TouchedKeys: make(map[Hash]struct{}),
	}
}

func (m *MemBlock) TxCount() int {
	return len(m.Txs)
}

func (m *MemBlock) MarkTouched(keys ...Hash) {
	for _, k := range keys {
		m.TouchedKeys[k] = struct{}{}
	}
}

// CustodianLedger tracks capacity/sUDT amounts escrowed by finalized
// deposits still pending custodian-cell consolidation (GLOSSARY "Custodian
// cell").
type CustodianLedger struct {
	Capacity uint64
	Sudt     map[Hash]Amount
}
