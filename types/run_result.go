/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package types

// LogServiceFlag tags an emitted log item (spec §4.5 "log(service_flag, data)").
type LogServiceFlag byte

const (
	LogSudtTransfer LogServiceFlag = iota
	LogSudtPayFee
	LogNativeSummary
	LogUserEvent
)

type LogItem struct {
	AccountID   uint32
	ServiceFlag LogServiceFlag
	Data        []byte
}

// ExitCode is the generator's well-known completion status (spec §4.5
// "Gas accounting").
type ExitCode int32

const (
	ExitOK ExitCode = iota
	ExitOutOfCycles
	ExitInvalidSyscall
	ExitBackendError
	ExitExecutionFailure
)

// RunResult is the generator's output: new account count (if changed),
// write set, newly registered scripts/data, emitted logs, return data and
// exit code (spec §3 "Run result").
type RunResult struct {
	NewAccountCount     *uint32
	WriteSet            map[Hash]Hash
	NewScripts          map[Hash]*Script
	NewData             map[Hash][]byte
	NewRegistryBindings map[Hash]Hash // RegistryAddress.Key() -> script hash
	Logs                []LogItem
	ReturnData          []byte
	CyclesUsed          uint64
	ExitCode            ExitCode
}

func NewRunResult() *RunResult {
	return &RunResult{
		WriteSet:            make(map[Hash]Hash),
		NewScripts:          make(map[Hash]*Script),
		NewData:             make(map[Hash][]byte),
		NewRegistryBindings: make(map[Hash]Hash),
	}
}

// BlockInfo is the producer/number/timestamp triple passed into the
// generator host (spec §4.5 "Contract").
type BlockInfo struct {
	ProducerAddress RegistryAddress
	Number          uint64
	Timestamp       uint64
}

// TxReceipt is persisted per executed transaction and served over RPC
// (spec §6.3 "get_transaction_receipt").
type TxReceipt struct {
	TxHash        Hash
	BlockNumber   uint64
	ReturnData    []byte
	Logs          []LogItem
	ExitCode      ExitCode
	PostCheckpoint Hash
}

// WithdrawalReceipt mirrors TxReceipt for withdrawals (spec §8 scenario 1:
// "a withdrawal receipt is emitted whose post-state matches").
type WithdrawalReceipt struct {
	WithdrawalHash Hash
	BlockNumber    uint64
	AccountID      uint32
	PostCheckpoint Hash
}
