/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package types

// RawHeader is the portion of a block header that participates in its hash
// (spec §3 "Block").
type RawHeader struct {
	ParentHash           Hash
	Number               uint64
	ProducerAddress      RegistryAddress
	Timestamp            uint64
	PrevAccount          AccountMerkleState
	PostAccount          AccountMerkleState
	SubmitTransactionsHash Hash // commitment to SubmitTransactions
	SubmitWithdrawalsHash  Hash // commitment to the withdrawal list
	// TxCount/WithdrawalCount let a challenge target's index be range-checked
	// (spec §4.4 "target_index must be in range") without refetching the
	// full block body.
	TxCount         uint32
	WithdrawalCount uint32
}

func (h *RawHeader) Hash() Hash {
	return CkbHash(
		h.ParentHash[:], be64(h.Number),
		be32(h.ProducerAddress.RegistryID), h.ProducerAddress.Address[:],
		be64(h.Timestamp),
		h.PrevAccount.Root[:], be32(h.PrevAccount.AccountCount),
		h.PostAccount.Root[:], be32(h.PostAccount.AccountCount),
		h.SubmitTransactionsHash[:], h.SubmitWithdrawalsHash[:],
		be32(h.TxCount), be32(h.WithdrawalCount),
	)
}

// SMTBranchProof is the compact sparse-Merkle proof exchanged across every
// merkle-adjacent interface in this node (state tree, block tree, revert
// proofs). It is opaque bytes from the SMT's point of view except for the
// leaves it accompanies; see store/smt for the encoding.
type SMTBranchProof struct {
	Proof []byte
}

// SubmitTransactions carries, in addition to the tx/withdrawal commitments,
// a prev-state checkpoint so the base-chain validator can isolate the
// pre-execution state root (spec §3 "Block").
type SubmitTransactions struct {
	TxWitnessRoot        Hash
	TxCount              uint32
	PrevStateCheckpoint  Hash
}

type SubmitWithdrawals struct {
	WithdrawalWitnessRoot Hash
	WithdrawalCount       uint32
}

// Block is the unit attached to / detached from local state (spec §3
// "Block").
type Block struct {
	Header              RawHeader
	BlockProof          SMTBranchProof
	Deposits            []*DepositRequest
	Transactions        []*L2Transaction
	Withdrawals         []*WithdrawalRequest
	SubmitTransactions  SubmitTransactions
	SubmitWithdrawals   SubmitWithdrawals
	// WithdrawalCheckpoints/TxCheckpoints are the block producer's declared
	// per-item post-state checkpoints, parallel to Withdrawals/Transactions;
	// Attach recomputes and cross-checks each one (spec §4.2 step 4/5).
	WithdrawalCheckpoints []Hash
	TxCheckpoints         []Hash
}

func (b *Block) Hash() Hash { return b.Header.Hash() }

// L2Transaction is a user transaction admitted by the mempool and executed
// by the generator (spec §4.3/§4.5).
type L2Transaction struct {
	FromID      uint32 // 0 marks a pending-create transaction (spec §4.3.5)
	ToID        uint32
	Nonce       uint32
	Args        []byte
	Fee         Amount
	CyclesLimit uint64
	Signature   []byte // over the canonical message, by the sender's lock algorithm
	ChainID     uint64
}

func (tx *L2Transaction) Hash() Hash {
	feeBytes := tx.Fee.Bytes32()
	return CkbHash(
		be32(tx.FromID), be32(tx.ToID), be32(tx.Nonce), tx.Args,
		feeBytes[:], be64(tx.CyclesLimit), be64(tx.ChainID),
	)
}

// MessageHash is the value the sender's lock algorithm signs, parallel to
// WithdrawalRequest.MessageHash: domain-separated by the rollup type hash
// so a signature cannot be replayed across rollups.
func (tx *L2Transaction) MessageHash(rollupTypeHash Hash) Hash {
	feeBytes := tx.Fee.Bytes32()
	return CkbHash(
		rollupTypeHash[:],
		be32(tx.FromID), be32(tx.ToID), be32(tx.Nonce), tx.Args,
		feeBytes[:], be64(tx.CyclesLimit), be64(tx.ChainID),
	)
}

// DepositRequest is the off-chain representation of a base-chain deposit
// intent (spec §3 "Deposit request").
type DepositRequest struct {
	Capacity       uint64
	SudtScriptHash Hash
	Amount         Amount
	Script         *Script // target layer-2 script
	RegistryID     uint32
	Address        [20]byte // registry address bound to Script's hash on admission
	CancelTimeout  uint64   // relative block/timestamp timeout encoded per lock convention
	L1Lock         *Script  // the base-chain deposit-lock cell's lock script, parsed
}

// WithdrawalRequest is the off-chain representation of a base-chain
// withdrawal intent (spec §3 "Withdrawal request").
type WithdrawalRequest struct {
	Capacity        uint64
	SudtScriptHash  Hash
	Amount          Amount
	AccountScriptHash Hash
	OwnerLockHash   Hash
	Nonce           uint32
	Fee             Amount
	Signature       []byte
}

func (w *WithdrawalRequest) MessageHash(rollupTypeHash Hash) Hash {
	amountBytes := w.Amount.Bytes32()
	feeBytes := w.Fee.Bytes32()
	return CkbHash(
		rollupTypeHash[:],
		be64(w.Capacity), w.SudtScriptHash[:], amountBytes[:],
		w.AccountScriptHash[:], w.OwnerLockHash[:],
		be32(w.Nonce), feeBytes[:],
	)
}

func (w *WithdrawalRequest) Hash() Hash {
	amountBytes := w.Amount.Bytes32()
	feeBytes := w.Fee.Bytes32()
	return CkbHash(
		be64(w.Capacity), w.SudtScriptHash[:], amountBytes[:],
		w.AccountScriptHash[:], w.OwnerLockHash[:],
		be32(w.Nonce), feeBytes[:], w.Signature,
	)
}
